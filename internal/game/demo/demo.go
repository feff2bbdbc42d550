// Package demo builds the showcase scene served by the headless server and
// simulated offline by the viewer.
package demo

import (
	"fmt"
	"time"

	"github.com/tanema/gween/ease"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-world/internal/engine/octree"
	"github.com/Faultbox/midgard-world/internal/engine/physics"
	"github.com/Faultbox/midgard-world/internal/engine/transform"
	"github.com/Faultbox/midgard-world/internal/game/mover"
	"github.com/Faultbox/midgard-world/internal/game/world"
	"github.com/Faultbox/midgard-world/internal/logger"
	"github.com/Faultbox/midgard-world/pkg/math"
)

// Grid layout: 24 x 24 cells of 1m centered on the origin.
const (
	gridSize = 24
	cellSize = 1
)

var pillarCells = [][2]int{{6, 6}, {6, 17}, {17, 6}, {17, 17}}

// Scene holds the handles the binaries need after Build.
type Scene struct {
	Grid      *mover.Grid
	Platform  *transform.Node
	Spinner   *transform.Node
	Patroller *transform.Node
	Bodies    []*transform.Node
}

type builder struct {
	w   *world.World
	rep *world.Replicator
	err error
}

// spawn creates a node with an optional box collider and physics body, and
// tracks it for replication when a replicator is set.
func (b *builder) spawn(name string, parent *transform.Node, pos math.Vec3, half math.Vec3, kind physics.Kind) *transform.Node {
	if b.err != nil {
		return nil
	}
	n, err := b.w.Spawn(name, parent, pos, math.QuatIdentity(), math.Vec3One)
	if err != nil {
		b.err = err
		return nil
	}
	if half != (math.Vec3{}) {
		if _, err := b.w.AttachCollider(n, octree.NewBoxShape(half)); err != nil {
			b.err = fmt.Errorf("collider for %s: %w", name, err)
			return nil
		}
	}
	if kind != physics.Static {
		if _, err := b.w.AttachBody(n, kind, half.Y); err != nil {
			b.err = fmt.Errorf("body for %s: %w", name, err)
			return nil
		}
	}
	if b.rep != nil {
		if _, err := b.rep.Track(n, kind, half); err != nil {
			b.err = fmt.Errorf("tracking %s: %w", name, err)
			return nil
		}
	}
	return n
}

func (b *builder) snap(n *transform.Node, offset math.Vec3) {
	if b.err != nil {
		return
	}
	if _, err := b.w.AttachSnapPoint(n, offset); err != nil {
		b.err = fmt.Errorf("snap point on %s: %w", n.Name(), err)
	}
}

// Build populates w. rep may be nil for a world that is not replicated.
func Build(w *world.World, rep *world.Replicator) (*Scene, error) {
	b := &builder{w: w, rep: rep}
	s := &Scene{}

	origin := math.Vec3{X: -gridSize * cellSize / 2, Z: -gridSize * cellSize / 2}
	s.Grid = mover.NewGrid(gridSize, gridSize, cellSize, origin)

	ground := b.spawn("ground", nil, math.Vec3{Y: -0.1}, math.Vec3{X: gridSize / 2, Y: 0.1, Z: gridSize / 2}, physics.Static)
	for _, c := range []math.Vec3{{X: -10, Z: -10}, {X: 10, Z: -10}, {X: 10, Z: 10}, {X: -10, Z: 10}} {
		if ground != nil {
			b.snap(ground, c.Add(math.Vec3{Y: 0.1}))
		}
	}

	for i, cell := range pillarCells {
		s.Grid.SetBlocked(cell[0], cell[1], true)
		pos := s.Grid.CellCenter(cell[0], cell[1])
		pos.Y = 1.5
		pillar := b.spawn(fmt.Sprintf("pillar-%d", i), nil, pos, math.Vec3{X: 0.5, Y: 1.5, Z: 0.5}, physics.Static)
		if pillar != nil {
			b.snap(pillar, math.Vec3{Y: 1.5})
		}
	}

	// A platform gliding back and forth carries a crate; moving the parent
	// moves the crate's collider and its snap anchor.
	s.Platform = b.spawn("platform", nil, math.Vec3{X: -6, Y: 1}, math.Vec3{X: 2, Y: 0.25, Z: 2}, physics.Kinematic)
	crate := b.spawn("crate", s.Platform, math.Vec3{Y: 0.75}, math.Vec3{X: 0.5, Y: 0.5, Z: 0.5}, physics.Static)
	if crate != nil {
		b.snap(crate, math.Vec3{Y: 0.5})
	}

	s.Spinner = b.spawn("spinner", nil, math.Vec3{Y: 0.5}, math.Vec3{X: 0.5, Y: 0.5, Z: 0.5}, physics.Kinematic)
	b.spawn("spinner-arm", s.Spinner, math.Vec3{X: 3}, math.Vec3{X: 2, Y: 0.1, Z: 0.2}, physics.Static)

	for i, x := range []float32{-3, 0, 3} {
		body := b.spawn(fmt.Sprintf("body-%d", i), nil, math.Vec3{X: x, Y: 6 + float32(i)*2, Z: 5}, math.Vec3{X: 0.5, Y: 0.5, Z: 0.5}, physics.Dynamic)
		s.Bodies = append(s.Bodies, body)
	}

	start := s.Grid.CellCenter(2, 2)
	start.Y = 0.5
	s.Patroller = b.spawn("patroller", nil, start, math.Vec3{X: 0.4, Y: 0.5, Z: 0.4}, physics.Kinematic)

	if b.err != nil {
		return nil, b.err
	}

	movers := w.Movers()
	movers.Add(mover.Tween(s.Platform, math.Vec3{X: 6, Y: 1}, 4*time.Second, ease.InOutQuad).PingPong())
	movers.Add(mover.NewSpin(s.Spinner, math.Vec3{Y: 1}, 6*time.Second))
	movers.Add(patrol(s.Grid, s.Patroller))

	logger.Named("demo").Info("scene built",
		zap.Int("nodes", w.Graph().Len()),
		zap.Int("colliders", w.Loose().Count()),
		zap.Int("snap_points", w.Snap().Count()))
	return s, nil
}

// patrol walks the patroller around the pillars on a grid path.
func patrol(g *mover.Grid, n *transform.Node) *mover.Route {
	corners := [][2]int{{2, 2}, {21, 2}, {21, 21}, {2, 21}, {2, 2}}
	var waypoints []math.Vec3
	for i := 1; i < len(corners); i++ {
		from, to := corners[i-1], corners[i]
		path := g.FindPath(from[0], from[1], to[0], to[1])
		if len(path) < 2 {
			continue
		}
		for _, c := range path[1:] {
			p := g.CellCenter(c[0], c[1])
			p.Y = n.Position().Y
			waypoints = append(waypoints, p)
		}
	}
	return mover.NewRoute(n, waypoints, 3, true)
}
