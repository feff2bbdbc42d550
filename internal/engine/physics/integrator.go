package physics

import (
	"time"

	"github.com/Faultbox/midgard-world/internal/engine/transform"
	"github.com/Faultbox/midgard-world/pkg/math"
)

type body struct {
	handle transform.Handle
	Actor
}

// Integrator is a minimal deterministic engine: dynamic bodies fall under
// gravity with explicit Euler integration and rest on a horizontal floor.
// Bodies are stepped in insertion order.
type Integrator struct {
	Gravity math.Vec3
	FloorY  float32

	bodies []*body
	index  map[transform.Handle]int
}

// NewIntegrator creates an integrator with the given vertical gravity.
func NewIntegrator(gravityY, floorY float32) *Integrator {
	return &Integrator{
		Gravity: math.Vec3{Y: gravityY},
		FloorY:  floorY,
		index:   make(map[transform.Handle]int),
	}
}

// Len returns the number of registered actors.
func (g *Integrator) Len() int { return len(g.bodies) }

func (g *Integrator) AddActor(h transform.Handle, a Actor) {
	if i, ok := g.index[h]; ok {
		g.bodies[i].Actor = a
		return
	}
	g.index[h] = len(g.bodies)
	g.bodies = append(g.bodies, &body{handle: h, Actor: a})
}

func (g *Integrator) RemoveActor(h transform.Handle) {
	i, ok := g.index[h]
	if !ok {
		return
	}
	copy(g.bodies[i:], g.bodies[i+1:])
	g.bodies[len(g.bodies)-1] = nil
	g.bodies = g.bodies[:len(g.bodies)-1]
	delete(g.index, h)
	for j := i; j < len(g.bodies); j++ {
		g.index[g.bodies[j].handle] = j
	}
}

func (g *Integrator) SetKinematicPose(h transform.Handle, pose Pose) {
	if i, ok := g.index[h]; ok && g.bodies[i].Kind == Kinematic {
		g.bodies[i].Pose = pose
	}
}

func (g *Integrator) SetVelocity(h transform.Handle, v math.Vec3) {
	if i, ok := g.index[h]; ok {
		g.bodies[i].Velocity = v
	}
}

func (g *Integrator) Pose(h transform.Handle) (Pose, bool) {
	i, ok := g.index[h]
	if !ok {
		return Pose{}, false
	}
	return g.bodies[i].Pose, true
}

// Step advances every dynamic body by dt.
func (g *Integrator) Step(dt time.Duration) {
	sec := float32(dt.Seconds())
	for _, b := range g.bodies {
		if b.Kind != Dynamic {
			continue
		}
		b.Velocity = b.Velocity.Add(g.Gravity.Scale(sec))
		b.Pose.Position = b.Pose.Position.Add(b.Velocity.Scale(sec))

		if floor := g.FloorY + b.Radius; b.Pose.Position.Y < floor {
			b.Pose.Position.Y = floor
			if b.Velocity.Y < 0 {
				b.Velocity.Y = 0
			}
		}
	}
}
