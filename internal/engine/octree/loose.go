package octree

import (
	"cmp"
	gomath "math"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-world/internal/engine/picking"
	"github.com/Faultbox/midgard-world/internal/engine/transform"
	"github.com/Faultbox/midgard-world/internal/logger"
	"github.com/Faultbox/midgard-world/internal/metrics"
	"github.com/Faultbox/midgard-world/pkg/math"
)

// DefaultMinRadius is the smallest bounding radius an item is given, so
// degenerate shapes cannot force unbounded subdivision.
const DefaultMinRadius = 1e-3

// Item is an entry of a Loose tree: a shape placed by a live world matrix.
type Item struct {
	Matrix *math.Mat4
	Shape  Shape
	Owner  transform.Handle

	center math.Vec3
	radius float32
	tree   *Loose
	node   *cell[*Item]
}

// NewItem creates an item placed by matrix.
func NewItem(matrix *math.Mat4, shape Shape, owner transform.Handle) *Item {
	return &Item{Matrix: matrix, Shape: shape, Owner: owner}
}

// Sphere returns the bounding sphere from the last insert or move.
func (it *Item) Sphere() (center math.Vec3, radius float32) {
	return it.center, it.radius
}

// Inserted reports whether the item is stored in a tree.
func (it *Item) Inserted() bool {
	return it.node != nil
}

func (it *Item) refresh(minRadius float32) {
	m := math.Identity()
	if it.Matrix != nil {
		m = *it.Matrix
	}
	c, r := it.Shape.BoundingSphere()
	it.center = m.TransformPoint(c)
	it.radius = max(r*m.MaxScale(), minRadius)
}

// Hit is a raycast result.
type Hit struct {
	Item     *Item
	Owner    transform.Handle
	Distance float32
	Point    math.Vec3
}

// Loose is a loose octree of bounding spheres. Each cell accepts items whose
// center lies in its inner box and whose radius fits its half-size, so an
// item never straddles more than the cell's outer box (twice the inner).
type Loose struct {
	name      string
	root      *cell[*Item]
	minRadius float32

	items      prometheus.Gauge
	expansions prometheus.Counter
	failures   prometheus.Counter
}

// NewLoose creates a tree whose root is centered at the origin.
// name labels the tree's metrics.
func NewLoose(name string, rootHalfSize, minRadius float32) *Loose {
	if minRadius <= 0 {
		minRadius = DefaultMinRadius
	}
	return &Loose{
		name:       name,
		root:       newCell[*Item](math.Vec3{}, rootHalfSize, nil),
		minRadius:  minRadius,
		items:      metrics.OctreeItems.WithLabelValues(name),
		expansions: metrics.OctreeExpansions.WithLabelValues(name),
		failures:   metrics.OctreeInsertFailures.WithLabelValues(name),
	}
}

// Count returns the number of stored items.
func (t *Loose) Count() int { return t.root.count }

// Depth returns the number of levels, counting the root as 1.
func (t *Loose) Depth() int { return t.root.depth() }

// RootHalfSize returns the current root half-size.
func (t *Loose) RootHalfSize() float32 { return t.root.size }

func canContain(c *cell[*Item], center math.Vec3, radius float32) bool {
	return c.size >= radius && c.innerContains(center)
}

// Insert places the item, expanding the root as needed.
func (t *Loose) Insert(it *Item) error {
	if it.tree != nil {
		if it.tree != t {
			return ErrNotInserted
		}
		return t.Move(it)
	}
	it.refresh(t.minRadius)
	if err := t.place(it); err != nil {
		return err
	}
	it.tree = t
	t.items.Set(float64(t.root.count))
	return nil
}

func (t *Loose) place(it *Item) error {
	if !it.center.IsFinite() || !isFinite32(it.radius) {
		return t.fail(it, "non-finite bounds")
	}

	for n := 0; !canContain(t.root, it.center, it.radius); n++ {
		if n == maxExpansions {
			return t.fail(it, "expansion limit")
		}
		t.root = t.root.wrap()
		t.expansions.Inc()
		logger.Named("octree").Debug("expanded root",
			zap.String("tree", t.name),
			zap.Float32("half_size", t.root.size))
	}

	c := t.root
	for c.size/2 >= it.radius {
		c.subdivide()
		c = c.children[c.octant(it.center)]
	}
	c.add(it)
	it.node = c
	return nil
}

func (t *Loose) fail(it *Item, reason string) error {
	t.failures.Inc()
	logger.Named("octree").Error("dropping item",
		zap.String("tree", t.name),
		zap.String("reason", reason),
		zap.Stringer("owner", it.Owner),
		zap.Float32("radius", it.radius))
	return ErrInsertFailed
}

// Move refreshes the item's sphere and relocates it if its cell no longer
// contains it.
func (t *Loose) Move(it *Item) error {
	if it.tree != t || it.node == nil {
		return ErrNotInserted
	}
	it.refresh(t.minRadius)
	if canContain(it.node, it.center, it.radius) {
		return nil
	}

	prev := it.node
	prev.remove(it)
	it.node = nil
	err := t.place(it)
	if err != nil {
		it.tree = nil
	}
	prev.checkCollapse()
	t.items.Set(float64(t.root.count))
	return err
}

// Remove detaches the item and collapses the branch it leaves empty.
func (t *Loose) Remove(it *Item) error {
	if it.tree != t || it.node == nil {
		return ErrNotInserted
	}
	prev := it.node
	prev.remove(it)
	it.node = nil
	it.tree = nil
	prev.checkCollapse()
	t.items.Set(float64(t.root.count))
	return nil
}

// Raycast returns every item whose shape the ray hits, nearest first. Equal
// distances are ordered by owner handle.
func (t *Loose) Raycast(r picking.Ray) []Hit {
	var hits []Hit
	stack := []*cell[*Item]{t.root}
	for len(stack) > 0 {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if c.count == 0 {
			continue
		}
		outer := picking.AABB{
			Min: c.center.Sub(splat(2 * c.size)),
			Max: c.center.Add(splat(2 * c.size)),
		}
		if _, ok := r.IntersectAABB(outer); !ok {
			continue
		}

		for _, it := range c.entries {
			if _, ok := r.IntersectSphere(it.center, it.radius); !ok {
				continue
			}
			d, ok := rayShape(r, it)
			if !ok {
				continue
			}
			hits = append(hits, Hit{Item: it, Owner: it.Owner, Distance: d, Point: r.At(d)})
		}
		if c.children != nil {
			stack = append(stack, c.children[:]...)
		}
	}

	slices.SortFunc(hits, func(a, b Hit) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return compareHandles(a.Owner, b.Owner)
	})
	return hits
}

func rayShape(r picking.Ray, it *Item) (float32, bool) {
	if it.Matrix == nil {
		return it.Shape.Raycast(r)
	}
	return it.Shape.Raycast(r.Transform(it.Matrix.Inverse()))
}

// Walk visits every cell pre-order with its depth (root is 0) and items.
func (t *Loose) Walk(fn func(center math.Vec3, halfSize float32, depth int, items []*Item)) {
	t.root.walk(0, func(c *cell[*Item], depth int) {
		fn(c.center, c.size, depth, c.entries)
	})
}

func isFinite32(f float32) bool {
	return !gomath.IsNaN(float64(f)) && !gomath.IsInf(float64(f), 0)
}

func compareHandles(a, b transform.Handle) int {
	switch {
	case a.Less(b):
		return -1
	case b.Less(a):
		return 1
	}
	return 0
}
