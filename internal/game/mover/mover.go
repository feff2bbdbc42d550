// Package mover drives kinematic nodes with eased tweens and grid routes.
//
// Movers only write local transforms; the transform graph's commit pass then
// pushes the new poses into physics and the spatial trees.
package mover

import (
	gomath "math"
	"time"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-world/internal/engine/tick"
	"github.com/Faultbox/midgard-world/internal/engine/transform"
	"github.com/Faultbox/midgard-world/internal/logger"
	"github.com/Faultbox/midgard-world/pkg/math"
)

// Mover advances by dt seconds and reports whether it has finished.
type Mover interface {
	Update(dt float32) bool
}

// Track tweens a node's local position toward a target.
// If the node is destroyed the track stops immediately.
type Track struct {
	target   *transform.Node
	from, to math.Vec3
	duration float32
	fn       ease.TweenFunc
	tweens   [3]*gween.Tween
	pingPong bool
	done     bool
}

// Tween creates a track from the node's current position to `to`.
func Tween(n *transform.Node, to math.Vec3, duration time.Duration, fn ease.TweenFunc) *Track {
	t := &Track{
		target:   n,
		from:     n.Position(),
		to:       to,
		duration: float32(duration.Seconds()),
		fn:       fn,
	}
	t.reset()
	return t
}

// PingPong makes the track reverse at each end instead of finishing.
func (t *Track) PingPong() *Track {
	t.pingPong = true
	return t
}

// Done reports whether the track has finished.
func (t *Track) Done() bool { return t.done }

func (t *Track) reset() {
	t.tweens[0] = gween.New(t.from.X, t.to.X, t.duration, t.fn)
	t.tweens[1] = gween.New(t.from.Y, t.to.Y, t.duration, t.fn)
	t.tweens[2] = gween.New(t.from.Z, t.to.Z, t.duration, t.fn)
}

// Update advances the tweens and writes the position.
func (t *Track) Update(dt float32) bool {
	if t.done {
		return true
	}
	if !t.target.Alive() {
		t.done = true
		return true
	}

	var v [3]float32
	finished := true
	for i, tw := range t.tweens {
		val, fin := tw.Update(dt)
		v[i] = val
		if !fin {
			finished = false
		}
	}
	if err := t.target.SetPosition(math.Vec3{X: v[0], Y: v[1], Z: v[2]}); err != nil {
		logger.Named("mover").Warn("track stopped", zap.Stringer("node", t.target), zap.Error(err))
		t.done = true
		return true
	}

	if finished {
		if t.pingPong {
			t.from, t.to = t.to, t.from
			t.reset()
		} else {
			t.done = true
		}
	}
	return t.done
}

// Spin rotates a node about an axis, one full turn per period, forever.
type Spin struct {
	target *transform.Node
	axis   math.Vec3
	base   math.Quat
	period float32
	tween  *gween.Tween
	done   bool
}

// NewSpin starts spinning n from its current rotation.
func NewSpin(n *transform.Node, axis math.Vec3, period time.Duration) *Spin {
	s := &Spin{
		target: n,
		axis:   axis.Normalize(),
		base:   n.Rotation(),
		period: float32(period.Seconds()),
	}
	s.tween = gween.New(0, 2*gomath.Pi, s.period, ease.Linear)
	return s
}

// Update advances the angle and writes the rotation.
func (s *Spin) Update(dt float32) bool {
	if s.done || !s.target.Alive() {
		s.done = true
		return true
	}

	angle, finished := s.tween.Update(dt)
	if finished {
		s.tween.Reset()
	}
	rot := s.base.Mul(math.QuatFromAxisAngle(s.axis, angle)).Normalize()
	if err := s.target.SetRotation(rot); err != nil {
		logger.Named("mover").Warn("spin stopped", zap.Stringer("node", s.target), zap.Error(err))
		s.done = true
	}
	return s.done
}

// Route moves a node through waypoints at constant speed, one track per leg.
type Route struct {
	target    *transform.Node
	waypoints []math.Vec3
	speed     float32
	loop      bool
	next      int
	leg       *Track
	done      bool
}

// NewRoute creates a route. With loop set the node returns to the first
// waypoint after the last and starts over.
func NewRoute(n *transform.Node, waypoints []math.Vec3, speed float32, loop bool) *Route {
	r := &Route{
		target:    n,
		waypoints: waypoints,
		speed:     speed,
		loop:      loop,
	}
	r.nextLeg()
	return r
}

// RouteOnGrid plans a path from the node's cell to the goal cell and returns
// a route through the cell centers, or nil when no path exists.
func RouteOnGrid(n *transform.Node, g *Grid, goalX, goalZ int, speed float32) *Route {
	sx, sz := g.CellAt(n.Position())
	path := g.FindPath(sx, sz, goalX, goalZ)
	if path == nil {
		return nil
	}

	// Skip the first cell, it's the current position.
	waypoints := make([]math.Vec3, 0, len(path))
	for _, c := range path[1:] {
		p := g.CellCenter(c[0], c[1])
		p.Y = n.Position().Y
		waypoints = append(waypoints, p)
	}
	return NewRoute(n, waypoints, speed, false)
}

// Done reports whether the route has finished.
func (r *Route) Done() bool { return r.done }

// Remaining returns the number of waypoints not yet reached.
func (r *Route) Remaining() int {
	n := len(r.waypoints) - r.next
	if r.leg != nil {
		n++
	}
	return n
}

func (r *Route) nextLeg() {
	r.leg = nil
	if len(r.waypoints) == 0 || r.speed <= 0 {
		r.done = true
		return
	}

	// Zero-length legs are skipped; a full lap of them ends the route.
	for skipped := 0; skipped <= len(r.waypoints); skipped++ {
		if r.next >= len(r.waypoints) {
			if !r.loop {
				break
			}
			r.next = 0
		}

		to := r.waypoints[r.next]
		r.next++
		dist := r.target.Position().Distance(to)
		if dist <= 0 {
			continue
		}
		dur := time.Duration(float64(dist/r.speed) * float64(time.Second))
		r.leg = Tween(r.target, to, dur, ease.Linear)
		return
	}
	r.done = true
}

// Update advances the current leg and starts the next one when it finishes.
func (r *Route) Update(dt float32) bool {
	if r.done {
		return true
	}
	if !r.target.Alive() {
		r.done = true
		return true
	}
	if r.leg.Update(dt) {
		if !r.target.Alive() {
			r.done = true
			return true
		}
		r.nextLeg()
	}
	return r.done
}

// Set updates a group of movers and discards finished ones.
type Set struct {
	movers []Mover
}

// Add adds a mover. Nil movers, including a nil *Route from RouteOnGrid,
// are ignored.
func (s *Set) Add(m Mover) {
	if !isNil(m) {
		s.movers = append(s.movers, m)
	}
}

func isNil(m Mover) bool {
	switch v := m.(type) {
	case nil:
		return true
	case *Track:
		return v == nil
	case *Spin:
		return v == nil
	case *Route:
		return v == nil
	}
	return false
}

// Len returns the number of active movers.
func (s *Set) Len() int { return len(s.movers) }

// Update advances every mover by dt seconds.
func (s *Set) Update(dt float32) {
	kept := s.movers[:0]
	for _, m := range s.movers {
		if !m.Update(dt) {
			kept = append(kept, m)
		}
	}
	for i := len(kept); i < len(s.movers); i++ {
		s.movers[i] = nil
	}
	s.movers = kept
}

// Hook returns a scheduler hook that advances the set by the frame delta.
func (s *Set) Hook() tick.Hook {
	return func(f *tick.Frame) error {
		s.Update(f.Seconds())
		return nil
	}
}
