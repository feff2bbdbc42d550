package transform

import "errors"

var (
	// ErrStaleHandle is returned when a handle or node has been destroyed.
	ErrStaleHandle = errors.New("transform: stale handle")
	// ErrWalkInProgress is returned for structural changes during a clean walk.
	ErrWalkInProgress = errors.New("transform: structural change during clean walk")
	// ErrCycle is returned when attaching a node under itself or a descendant.
	ErrCycle = errors.New("transform: attach would create a cycle")
	// ErrNotChild is returned by RemoveChild for a node with a different parent.
	ErrNotChild = errors.New("transform: node is not a child")
	// ErrParentInactive is returned when activating a child of an unmounted parent.
	ErrParentInactive = errors.New("transform: parent is not active")
)
