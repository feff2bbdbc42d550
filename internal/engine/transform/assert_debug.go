//go:build debug

package transform

import "fmt"

// assertf aborts on misuse of the graph. Debug builds panic so the offending
// call stack is visible.
func assertf(format string, args ...any) {
	panic(fmt.Sprintf("transform: "+format, args...))
}
