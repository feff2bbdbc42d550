package octree

import "errors"

var (
	// ErrInsertFailed is returned when an entry cannot be placed even after
	// expanding the root. The entry is dropped.
	ErrInsertFailed = errors.New("octree: insert failed")
	// ErrNotInserted is returned when moving or removing an entry that is
	// not in this tree.
	ErrNotInserted = errors.New("octree: entry not in tree")
)

// maxExpansions bounds how many times one insert may re-root the tree.
const maxExpansions = 16
