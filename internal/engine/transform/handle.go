// Package transform implements the scene graph: hierarchical nodes addressed
// by generation-checked handles, and the dirty-root registry that limits each
// commit sweep to the branches that actually changed.
package transform

import "fmt"

// Handle is a stable reference to a node in a Graph.
// The zero Handle never resolves.
type Handle struct {
	Index uint32
	Gen   uint32
}

// IsZero reports whether h is the zero handle.
func (h Handle) IsZero() bool {
	return h.Gen == 0
}

// Less orders handles by index, then generation.
func (h Handle) Less(other Handle) bool {
	if h.Index != other.Index {
		return h.Index < other.Index
	}
	return h.Gen < other.Gen
}

func (h Handle) String() string {
	return fmt.Sprintf("#%d.%d", h.Index, h.Gen)
}
