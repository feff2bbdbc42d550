// Package debug builds line geometry for the debug viewer.
package debug

import (
	"github.com/Faultbox/midgard-world/internal/engine/octree"
	"github.com/Faultbox/midgard-world/internal/engine/transform"
	"github.com/Faultbox/midgard-world/internal/game/mover"
	"github.com/Faultbox/midgard-world/pkg/math"
)

// Color is an RGB triple.
type Color [3]float32

// Palette used by the viewer.
var (
	ColorCell     = Color{0.25, 0.35, 0.55}
	ColorItem     = Color{0.9, 0.8, 0.2}
	ColorHit      = Color{1, 0.2, 0.2}
	ColorSnap     = Color{0.2, 0.9, 0.4}
	ColorSnapOff  = Color{0.3, 0.4, 0.3}
	ColorBlocked  = Color{0.6, 0.2, 0.6}
	ColorGridLine = Color{0.2, 0.2, 0.25}
)

// VertexStride is the number of floats per vertex: x, y, z, r, g, b.
const VertexStride = 6

// BoxVertexCount is the number of vertices for a box wireframe (12 edges x 2).
const BoxVertexCount = 24

// Lines accumulates GL_LINES vertices.
type Lines struct {
	Vertices []float32
}

// Reset drops all vertices, keeping the buffer.
func (l *Lines) Reset() {
	l.Vertices = l.Vertices[:0]
}

// Count returns the number of vertices.
func (l *Lines) Count() int {
	return len(l.Vertices) / VertexStride
}

// Segment adds a line from a to b.
func (l *Lines) Segment(a, b math.Vec3, c Color) {
	l.Vertices = append(l.Vertices,
		a.X, a.Y, a.Z, c[0], c[1], c[2],
		b.X, b.Y, b.Z, c[0], c[1], c[2],
	)
}

// Box adds the 12 edges of an axis-aligned box.
func (l *Lines) Box(lo, hi math.Vec3, c Color) {
	corner := func(x, y, z bool) math.Vec3 {
		p := lo
		if x {
			p.X = hi.X
		}
		if y {
			p.Y = hi.Y
		}
		if z {
			p.Z = hi.Z
		}
		return p
	}
	for _, y := range []bool{false, true} {
		// Bottom and top faces
		l.Segment(corner(false, y, false), corner(true, y, false), c)
		l.Segment(corner(true, y, false), corner(true, y, true), c)
		l.Segment(corner(true, y, true), corner(false, y, true), c)
		l.Segment(corner(false, y, true), corner(false, y, false), c)
	}
	// Vertical edges
	l.Segment(corner(false, false, false), corner(false, true, false), c)
	l.Segment(corner(true, false, false), corner(true, true, false), c)
	l.Segment(corner(true, false, true), corner(true, true, true), c)
	l.Segment(corner(false, false, true), corner(false, true, true), c)
}

// Cube adds a box of the given half size around center.
func (l *Lines) Cube(center math.Vec3, half float32, c Color) {
	h := math.Vec3{X: half, Y: half, Z: half}
	l.Box(center.Sub(h), center.Add(h), c)
}

// Cross adds three axis-aligned lines through p.
func (l *Lines) Cross(p math.Vec3, size float32, c Color) {
	l.Segment(p.Sub(math.Vec3{X: size}), p.Add(math.Vec3{X: size}), c)
	l.Segment(p.Sub(math.Vec3{Y: size}), p.Add(math.Vec3{Y: size}), c)
	l.Segment(p.Sub(math.Vec3{Z: size}), p.Add(math.Vec3{Z: size}), c)
}

// LooseTree adds every cell of t and the world box of every item. Items
// owned by a handle in highlight use ColorHit.
func (l *Lines) LooseTree(t *octree.Loose, highlight map[transform.Handle]bool) {
	t.Walk(func(center math.Vec3, half float32, depth int, items []*octree.Item) {
		l.Cube(center, half, ColorCell)
		for _, it := range items {
			if it.Matrix == nil {
				continue
			}
			box := it.Shape.Bounds().Transform(*it.Matrix)
			c := ColorItem
			if highlight[it.Owner] {
				c = ColorHit
			}
			l.Box(box.Min, box.Max, c)
		}
	})
}

// SnapTree adds a cross for every point of t; cells are skipped.
func (l *Lines) SnapTree(t *octree.Snap, size float32) {
	t.Walk(func(_ math.Vec3, _ float32, _ int, points []*octree.Point) {
		for _, p := range points {
			c := ColorSnap
			if !p.Active() {
				c = ColorSnapOff
			}
			l.Cross(p.Position(), size, c)
		}
	})
}

// Grid adds the outline of g at height y and marks blocked cells.
func (l *Lines) Grid(g *mover.Grid, y float32) {
	w, d := g.Size()
	if w == 0 || d == 0 {
		return
	}
	half := g.CellSize() / 2
	lo := g.CellCenter(0, 0).Sub(math.Vec3{X: half, Z: half})
	hi := g.CellCenter(w-1, d-1).Add(math.Vec3{X: half, Z: half})
	lo.Y, hi.Y = y, y

	for x := 0; x <= w; x++ {
		px := lo.X + float32(x)*g.CellSize()
		l.Segment(math.Vec3{X: px, Y: y, Z: lo.Z}, math.Vec3{X: px, Y: y, Z: hi.Z}, ColorGridLine)
	}
	for z := 0; z <= d; z++ {
		pz := lo.Z + float32(z)*g.CellSize()
		l.Segment(math.Vec3{X: lo.X, Y: y, Z: pz}, math.Vec3{X: hi.X, Y: y, Z: pz}, ColorGridLine)
	}

	for z := 0; z < d; z++ {
		for x := 0; x < w; x++ {
			if g.IsWalkable(x, z) {
				continue
			}
			c := g.CellCenter(x, z)
			c.Y = y
			a := c.Sub(math.Vec3{X: half, Z: half})
			b := c.Add(math.Vec3{X: half, Z: half})
			l.Segment(a, b, ColorBlocked)
			l.Segment(math.Vec3{X: a.X, Y: y, Z: b.Z}, math.Vec3{X: b.X, Y: y, Z: a.Z}, ColorBlocked)
		}
	}
}
