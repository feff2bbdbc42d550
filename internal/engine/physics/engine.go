// Package physics is the boundary between the scene graph and a rigid-body
// engine: actor registration, fixed stepping, and render interpolation of
// dynamic bodies.
package physics

import (
	"time"

	"github.com/Faultbox/midgard-world/internal/engine/transform"
	"github.com/Faultbox/midgard-world/pkg/math"
)

// Pose is a rigid position and orientation.
type Pose struct {
	Position math.Vec3
	Rotation math.Quat
}

// IdentityPose is the pose at the origin with no rotation.
func IdentityPose() Pose {
	return Pose{Rotation: math.QuatIdentity()}
}

// Blend interpolates from p to next: positions linearly, rotations by slerp.
func (p Pose) Blend(next Pose, alpha float32) Pose {
	return Pose{
		Position: p.Position.Lerp(next.Position, alpha),
		Rotation: p.Rotation.Slerp(next.Rotation, alpha),
	}
}

// Kind selects who drives an actor.
type Kind int

const (
	// Static actors never move.
	Static Kind = iota
	// Kinematic actors are moved by gameplay; the engine follows.
	Kinematic
	// Dynamic actors are moved by the engine; render transforms follow.
	Dynamic
)

func (k Kind) String() string {
	switch k {
	case Static:
		return "static"
	case Kinematic:
		return "kinematic"
	case Dynamic:
		return "dynamic"
	}
	return "unknown"
}

// Actor describes a body registered with an engine.
type Actor struct {
	Kind     Kind
	Pose     Pose
	Velocity math.Vec3
	Radius   float32 // Contact radius against the floor plane
}

// Engine is the rigid-body simulation consumed by the world. Step is called
// exactly once per fixed step; Pose is read back for dynamic actors.
type Engine interface {
	AddActor(h transform.Handle, a Actor)
	RemoveActor(h transform.Handle)
	SetKinematicPose(h transform.Handle, pose Pose)
	SetVelocity(h transform.Handle, v math.Vec3)
	Step(dt time.Duration)
	Pose(h transform.Handle) (Pose, bool)
}
