//go:build !debug

package transform

import (
	"fmt"

	"github.com/Faultbox/midgard-world/internal/logger"
)

// assertf reports misuse of the graph. Release builds log and let the caller
// return an error.
func assertf(format string, args ...any) {
	logger.Named("transform").Error(fmt.Sprintf(format, args...))
}
