package transform

import (
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-world/internal/logger"
	"github.com/Faultbox/midgard-world/pkg/math"
)

type slot struct {
	node *Node
	gen  uint32
}

// Graph is the node arena. It owns every node, hands out handles, and runs
// the commit sweep over the dirty roots tracked by its registry.
//
// A Graph is not safe for concurrent use; all mutation happens on the
// simulation goroutine.
type Graph struct {
	slots    []slot
	free     []uint32
	registry *DirtyRegistry
	walking  bool
	live     int
}

// NewGraph creates an empty graph backed by the given registry.
func NewGraph(registry *DirtyRegistry) *Graph {
	if registry == nil {
		registry = NewDirtyRegistry()
	}
	return &Graph{registry: registry}
}

// Registry returns the dirty-root registry the graph reports into.
func (g *Graph) Registry() *DirtyRegistry {
	return g.registry
}

// Len returns the number of live nodes.
func (g *Graph) Len() int {
	return g.live
}

// Walking reports whether a clean walk is in progress.
func (g *Graph) Walking() bool {
	return g.walking
}

// New creates a detached, inactive node with identity transform.
func (g *Graph) New(name string) *Node {
	var idx uint32
	if n := len(g.free); n > 0 {
		idx = g.free[n-1]
		g.free = g.free[:n-1]
	} else {
		idx = uint32(len(g.slots))
		g.slots = append(g.slots, slot{gen: 1})
	}

	n := &Node{
		graph:    g,
		handle:   Handle{Index: idx, Gen: g.slots[idx].gen},
		name:     name,
		rotation: math.QuatIdentity(),
		scale:    math.Vec3One,
		local:    math.Identity(),
		world:    math.Identity(),
	}
	g.slots[idx].node = n
	g.live++
	return n
}

// Node resolves a handle. It returns nil for zero, stale or unknown handles.
func (g *Graph) Node(h Handle) *Node {
	if h.IsZero() || int(h.Index) >= len(g.slots) {
		return nil
	}
	s := g.slots[h.Index]
	if s.gen != h.Gen {
		return nil
	}
	return s.node
}

func (g *Graph) release(n *Node) {
	s := &g.slots[n.handle.Index]
	s.node = nil
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	g.free = append(g.free, n.handle.Index)
	g.live--
}

// Flush is the commit sweep: it cleans every tracked root in registration
// order and resets the registry. Roots registered by commit hooks during the
// sweep are cleaned in the same call. Returns the number of roots cleaned.
func (g *Graph) Flush() int {
	if g.walking {
		assertf("flush during clean walk")
		return 0
	}

	r := g.registry
	r.draining = true
	cleaned := 0
	for i := 0; i < len(r.roots); i++ {
		root := r.roots[i]
		if root == nil {
			continue
		}
		r.roots[i] = nil
		delete(r.index, root)
		r.live--
		g.walk(root)
		cleaned++
	}
	r.draining = false
	r.reset()

	if cleaned > 0 {
		logger.Debug("transform flush", zap.Int("roots", cleaned))
	}
	return cleaned
}

// walk recomputes the subtree under root in pre-order and commits mounted
// nodes.
func (g *Graph) walk(root *Node) {
	g.walking = true
	defer func() { g.walking = false }()

	parentTransformed := false
	for p := root.parent; p != nil; p = p.parent {
		if p.isTransformed {
			parentTransformed = true
			break
		}
	}
	g.cleanNode(root, parentTransformed)
}

func (g *Graph) cleanNode(n *Node, parentTransformed bool) {
	didTransform := parentTransformed || n.isTransformed
	if n.isTransformed {
		n.local = math.Compose(n.position, n.rotation, n.scale)
	}
	n.updateWorld()
	n.isTransformed = false
	n.isDirty = false

	if n.mounted {
		for _, b := range n.bindings {
			b.Commit(n, didTransform)
		}
	}
	for _, c := range n.children {
		g.cleanNode(c, didTransform)
	}
}
