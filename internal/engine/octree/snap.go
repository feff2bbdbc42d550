package octree

import (
	"cmp"
	gomath "math"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-world/internal/engine/transform"
	"github.com/Faultbox/midgard-world/internal/logger"
	"github.com/Faultbox/midgard-world/internal/metrics"
	"github.com/Faultbox/midgard-world/pkg/math"
)

// Point is an entry of a Snap tree.
type Point struct {
	Owner transform.Handle

	position math.Vec3
	active   bool
	tree     *Snap
	node     *cell[*Point]
}

// NewPoint creates an active point at position.
func NewPoint(position math.Vec3, owner transform.Handle) *Point {
	return &Point{Owner: owner, position: position, active: true}
}

// Position returns the stored position.
func (p *Point) Position() math.Vec3 { return p.position }

// Active reports whether queries may return the point.
func (p *Point) Active() bool { return p.active }

// Inserted reports whether the point is stored in a tree.
func (p *Point) Inserted() bool { return p.node != nil }

// SnapHit is a snap query result.
type SnapHit struct {
	Point    *Point
	Owner    transform.Handle
	Position math.Vec3
	Distance float32
}

// Snap is an octree of points. Cells subdivide until their half-size drops
// below the minimum cell size and store points there.
type Snap struct {
	name    string
	root    *cell[*Point]
	minCell float32

	items      prometheus.Gauge
	expansions prometheus.Counter
	failures   prometheus.Counter
}

// DefaultMinCellSize replaces a non-positive minimum cell size.
const DefaultMinCellSize = 1

// NewSnap creates a point tree whose root is centered at the origin.
func NewSnap(name string, rootHalfSize, minCellSize float32) *Snap {
	if !(minCellSize > 0) {
		minCellSize = DefaultMinCellSize
	}
	return &Snap{
		name:       name,
		root:       newCell[*Point](math.Vec3{}, rootHalfSize, nil),
		minCell:    minCellSize,
		items:      metrics.OctreeItems.WithLabelValues(name),
		expansions: metrics.OctreeExpansions.WithLabelValues(name),
		failures:   metrics.OctreeInsertFailures.WithLabelValues(name),
	}
}

// Count returns the number of stored points, active or not.
func (t *Snap) Count() int { return t.root.count }

// Depth returns the number of levels, counting the root as 1.
func (t *Snap) Depth() int { return t.root.depth() }

// Insert stores the point, expanding the root as needed.
func (t *Snap) Insert(p *Point) error {
	if p.tree != nil {
		if p.tree != t {
			return ErrNotInserted
		}
		return t.Move(p, p.position)
	}
	if err := t.place(p); err != nil {
		return err
	}
	p.tree = t
	t.items.Set(float64(t.root.count))
	return nil
}

func (t *Snap) place(p *Point) error {
	if !p.position.IsFinite() {
		return t.fail(p, "non-finite position")
	}
	for n := 0; !t.root.innerContains(p.position); n++ {
		if n == maxExpansions {
			return t.fail(p, "expansion limit")
		}
		t.root = t.root.wrap()
		t.expansions.Inc()
		logger.Named("octree").Debug("expanded root",
			zap.String("tree", t.name),
			zap.Float32("half_size", t.root.size))
	}

	c := t.root
	for c.size >= t.minCell {
		c.subdivide()
		c = c.children[c.octant(p.position)]
	}
	c.add(p)
	p.node = c
	return nil
}

func (t *Snap) fail(p *Point, reason string) error {
	t.failures.Inc()
	logger.Named("octree").Error("dropping point",
		zap.String("tree", t.name),
		zap.String("reason", reason),
		zap.Stringer("owner", p.Owner))
	return ErrInsertFailed
}

// Move sets the point's position and relocates it if it left its cell.
func (t *Snap) Move(p *Point, position math.Vec3) error {
	if p.tree != t || p.node == nil {
		return ErrNotInserted
	}
	p.position = position
	if p.node.innerContains(position) {
		return nil
	}

	prev := p.node
	prev.remove(p)
	p.node = nil
	err := t.place(p)
	if err != nil {
		p.tree = nil
	}
	prev.checkCollapse()
	t.items.Set(float64(t.root.count))
	return err
}

// Remove detaches the point and collapses the branch it leaves empty.
func (t *Snap) Remove(p *Point) error {
	if p.tree != t || p.node == nil {
		return ErrNotInserted
	}
	prev := p.node
	prev.remove(p)
	p.node = nil
	p.tree = nil
	prev.checkCollapse()
	t.items.Set(float64(t.root.count))
	return nil
}

// SetActive toggles whether queries return the point.
func (t *Snap) SetActive(p *Point, active bool) {
	p.active = active
}

// Query returns active points within radius of position, nearest first.
func (t *Snap) Query(position math.Vec3, radius float32) []SnapHit {
	if !(radius >= 0) {
		return nil
	}
	var hits []SnapHit
	r2 := radius * radius
	stack := []*cell[*Point]{t.root}
	for len(stack) > 0 {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if c.count == 0 || !sphereTouchesCell(position, r2, c.center, c.size) {
			continue
		}
		for _, p := range c.entries {
			if !p.active {
				continue
			}
			if d2 := p.position.DistanceSq(position); d2 <= r2 {
				hits = append(hits, SnapHit{Point: p, Owner: p.Owner, Position: p.position, Distance: sqrt32(d2)})
			}
		}
		if c.children != nil {
			stack = append(stack, c.children[:]...)
		}
	}

	slices.SortFunc(hits, func(a, b SnapHit) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return compareHandles(a.Owner, b.Owner)
	})
	return hits
}

// Walk visits every cell pre-order with its depth (root is 0) and points.
func (t *Snap) Walk(fn func(center math.Vec3, halfSize float32, depth int, points []*Point)) {
	t.root.walk(0, func(c *cell[*Point], depth int) {
		fn(c.center, c.size, depth, c.entries)
	})
}

func sphereTouchesCell(center math.Vec3, r2 float32, cellCenter math.Vec3, size float32) bool {
	lo := cellCenter.Sub(splat(size))
	hi := cellCenter.Add(splat(size))
	closest := center.Max(lo).Min(hi)
	return closest.DistanceSq(center) <= r2
}

func sqrt32(f float32) float32 {
	return float32(gomath.Sqrt(float64(f)))
}
