// Package world assembles the transform graph, spatial trees, scheduler and
// physics into one simulation and exposes its query surface.
package world

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-world/internal/assets"
	"github.com/Faultbox/midgard-world/internal/config"
	"github.com/Faultbox/midgard-world/internal/engine/octree"
	"github.com/Faultbox/midgard-world/internal/engine/physics"
	"github.com/Faultbox/midgard-world/internal/engine/picking"
	"github.com/Faultbox/midgard-world/internal/engine/tick"
	"github.com/Faultbox/midgard-world/internal/engine/transform"
	"github.com/Faultbox/midgard-world/internal/game/mover"
	"github.com/Faultbox/midgard-world/internal/logger"
	"github.com/Faultbox/midgard-world/internal/metrics"
	"github.com/Faultbox/midgard-world/pkg/math"
)

// View is the camera state used to turn screen points into rays.
type View struct {
	ViewProj      math.Mat4
	Width, Height float32
}

// World owns one simulation. It is not safe for concurrent use; everything
// runs on the scheduler's goroutine.
type World struct {
	registry  *transform.DirtyRegistry
	graph     *transform.Graph
	root      *transform.Node
	loose     *octree.Loose
	snap      *octree.Snap
	scheduler *tick.Scheduler
	physics   *physics.System
	movers    mover.Set

	view    View
	invView math.Mat4
	hasView bool
}

// New builds a world from configuration with the built-in integrator.
func New(cfg *config.Config) *World {
	return NewWithEngine(cfg, physics.NewIntegrator(cfg.Physics.Gravity, cfg.Physics.FloorY))
}

// NewWithEngine builds a world around a physics engine.
func NewWithEngine(cfg *config.Config, engine physics.Engine) *World {
	sp := cfg.Spatial
	w := &World{
		registry:  transform.NewDirtyRegistry(),
		loose:     octree.NewLoose("colliders", sp.LooseRootHalfSize, sp.MinItemRadius),
		snap:      octree.NewSnap("snap", sp.SnapRootHalfSize, sp.SnapMinCellSize),
		scheduler: tick.New(cfg.Simulation.FixedDelta(), cfg.Simulation.MaxFrameDelta),
		physics:   physics.NewSystem(engine),
	}
	w.graph = transform.NewGraph(w.registry)
	w.root = w.graph.New("world")
	if err := w.root.Activate(); err != nil {
		// A fresh root has no parent and no walk can be running.
		panic(fmt.Sprintf("world: activating root: %v", err))
	}

	w.scheduler.Register(tick.PhaseFixedUpdate, "movers", w.movers.Hook())
	w.scheduler.Register(tick.PhasePhysicsStep, "physics", func(f *tick.Frame) error {
		w.physics.Step(f.Fixed)
		return nil
	})
	w.scheduler.Register(tick.PhaseInterpolate, "interpolate", func(f *tick.Frame) error {
		w.physics.Interpolate(f.Alpha)
		return nil
	})
	w.scheduler.Register(tick.PhaseCommit, "flush", func(*tick.Frame) error {
		metrics.DirtyRoots.Observe(float64(w.graph.Flush()))
		return nil
	})

	logger.Named("world").Info("world created",
		zap.Duration("fixed_delta", cfg.Simulation.FixedDelta()),
		zap.Float32("loose_half_size", sp.LooseRootHalfSize),
		zap.Float32("snap_half_size", sp.SnapRootHalfSize))
	return w
}

// Graph returns the transform graph; use Graph().Node(h) to resolve hit owners.
func (w *World) Graph() *transform.Graph { return w.graph }

// Registry returns the dirty registry shared with the graph.
func (w *World) Registry() *transform.DirtyRegistry { return w.registry }

// Root returns the always-active scene root.
func (w *World) Root() *transform.Node { return w.root }

// Loose returns the collider tree.
func (w *World) Loose() *octree.Loose { return w.loose }

// Snap returns the snap point tree.
func (w *World) Snap() *octree.Snap { return w.snap }

// Scheduler returns the frame scheduler.
func (w *World) Scheduler() *tick.Scheduler { return w.scheduler }

// Physics returns the physics system.
func (w *World) Physics() *physics.System { return w.physics }

// Movers returns the set of active movers, advanced every fixed step.
func (w *World) Movers() *mover.Set { return &w.movers }

// Spawn creates a node with the given local transform and attaches it under
// parent, or the scene root when parent is nil. Attaching to an active parent
// activates the node.
func (w *World) Spawn(name string, parent *transform.Node, position math.Vec3, rotation math.Quat, scale math.Vec3) (*transform.Node, error) {
	if parent == nil {
		parent = w.root
	}
	n := w.graph.New(name)
	if err := n.SetLocalTransform(position, rotation, scale); err != nil {
		return nil, err
	}
	if err := parent.AddChild(n); err != nil {
		_ = n.Destroy()
		return nil, fmt.Errorf("attaching %s: %w", name, err)
	}
	return n, nil
}

// Destroy removes a node and its subtree.
func (w *World) Destroy(n *transform.Node) error {
	if n == w.root {
		return fmt.Errorf("destroying world root")
	}
	return n.Destroy()
}

// AttachCollider gives n a collider shape in the loose tree.
func (w *World) AttachCollider(n *transform.Node, shape octree.Shape) (*ItemBinding, error) {
	b := &ItemBinding{tree: w.loose, item: octree.NewItem(nil, shape, n.Handle())}
	if err := n.AddBinding(b); err != nil {
		return nil, err
	}
	return b, nil
}

// AttachSnapPoint gives n a snap point at a local offset.
func (w *World) AttachSnapPoint(n *transform.Node, offset math.Vec3) (*SnapBinding, error) {
	b := &SnapBinding{tree: w.snap, offset: offset, active: true}
	if err := n.AddBinding(b); err != nil {
		return nil, err
	}
	return b, nil
}

// AttachBody registers n with the physics engine.
func (w *World) AttachBody(n *transform.Node, kind physics.Kind, radius float32) (*physics.ActorBinding, error) {
	return w.physics.Bind(n, kind, radius)
}

// Instantiate builds a blueprint's nodes under parent (the scene root when
// nil). Nodes with mesh bounds get box colliders. The new nodes are returned
// in blueprint order.
func (w *World) Instantiate(bp *assets.Blueprint, parent *transform.Node) ([]*transform.Node, error) {
	if parent == nil {
		parent = w.root
	}

	nodes := make([]*transform.Node, len(bp.Nodes))
	cleanup := func() {
		for _, n := range nodes {
			if n != nil && n.Alive() && (n.Parent() == nil || n.Parent() == parent) {
				_ = n.Destroy()
			}
		}
	}

	for i, desc := range bp.Nodes {
		n := w.graph.New(desc.Name)
		nodes[i] = n
		if err := n.SetLocalTransform(desc.Position, desc.Rotation, desc.Scale); err != nil {
			cleanup()
			return nil, err
		}
		if desc.Bounds != nil {
			shape := octree.BoxShape{Box: picking.NewAABB(desc.Bounds.Min, desc.Bounds.Max)}
			if _, err := w.AttachCollider(n, shape); err != nil {
				cleanup()
				return nil, err
			}
		}
	}

	// Inner links first while every subtree is still detached, then the
	// roots, so each subtree activates in one pass. Both passes run in
	// blueprint order to keep sibling order.
	for _, roots := range []bool{false, true} {
		for i, desc := range bp.Nodes {
			if (desc.Parent < 0) != roots {
				continue
			}
			p := parent
			if !roots {
				p = nodes[desc.Parent]
			}
			if err := p.AddChild(nodes[i]); err != nil {
				cleanup()
				return nil, fmt.Errorf("instantiating %s: %w", bp.Name, err)
			}
		}
	}

	logger.Named("world").Debug("blueprint instantiated",
		zap.String("blueprint", bp.Name),
		zap.Int("nodes", len(nodes)))
	return nodes, nil
}

// SetView sets the camera used by the screen-space queries.
func (w *World) SetView(v View) {
	w.view = v
	w.invView = v.ViewProj.Inverse()
	w.hasView = v.Width > 0 && v.Height > 0
}

// Raycast returns collider hits along r, nearest first, as of the last
// commit. Hits whose owner no longer resolves are skipped.
func (w *World) Raycast(r picking.Ray) []octree.Hit {
	hits := w.loose.Raycast(r)
	live := hits[:0]
	for _, h := range hits {
		if w.graph.Node(h.Owner) != nil {
			live = append(live, h)
		}
	}
	return live
}

// RaycastFromScreenPoint casts through a pixel of the current view. It
// returns nil until SetView has been called.
func (w *World) RaycastFromScreenPoint(x, y float32) []octree.Hit {
	if !w.hasView {
		return nil
	}
	return w.Raycast(picking.ScreenToRay(x, y, w.view.Width, w.view.Height, w.invView))
}

// RaycastFromReticle casts through the center of the current view.
func (w *World) RaycastFromReticle() []octree.Hit {
	return w.RaycastFromScreenPoint(w.view.Width/2, w.view.Height/2)
}

// QuerySnapPoints returns active snap points within radius, nearest first.
// Points whose owner no longer resolves are skipped.
func (w *World) QuerySnapPoints(position math.Vec3, radius float32) []octree.SnapHit {
	hits := w.snap.Query(position, radius)
	live := hits[:0]
	for _, h := range hits {
		if w.graph.Node(h.Owner) != nil {
			live = append(live, h)
		}
	}
	return live
}
