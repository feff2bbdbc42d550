package physics

import (
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-world/internal/engine/transform"
	"github.com/Faultbox/midgard-world/internal/logger"
	"github.com/Faultbox/midgard-world/pkg/math"
)

// System connects nodes to an Engine. Kinematic nodes push their committed
// world pose into the engine; dynamic nodes receive blended engine poses.
type System struct {
	engine  Engine
	interp  *Interpolator
	dynamic []*ActorBinding
}

// NewSystem creates a system around engine.
func NewSystem(engine Engine) *System {
	return &System{engine: engine, interp: NewInterpolator()}
}

// Engine returns the wrapped engine.
func (s *System) Engine() Engine { return s.engine }

// Bind attaches an actor binding of the given kind to n.
func (s *System) Bind(n *transform.Node, kind Kind, radius float32) (*ActorBinding, error) {
	b := &ActorBinding{system: s, kind: kind, radius: radius}
	if err := n.AddBinding(b); err != nil {
		return nil, err
	}
	return b, nil
}

// Step advances the engine by one fixed step and records dynamic poses.
func (s *System) Step(dt time.Duration) {
	s.engine.Step(dt)
	for _, b := range s.dynamic {
		if pose, ok := s.engine.Pose(b.handle); ok {
			s.interp.Record(b.handle, pose)
		}
	}
}

// Interpolate writes blended poses into the world transforms of dynamic
// nodes, keeping each node's scale.
func (s *System) Interpolate(alpha float32) {
	for _, b := range s.dynamic {
		pose, ok := s.interp.Sample(b.handle, alpha)
		if !ok || b.node == nil {
			continue
		}
		_, _, scale := b.node.WorldMatrix().Decompose()
		if err := b.node.SetWorldTransform(pose.Position, pose.Rotation, scale); err != nil {
			logger.Named("physics").Warn("interpolated pose not applied",
				zap.Stringer("node", b.handle), zap.Error(err))
		}
	}
}

// DynamicCount returns the number of mounted dynamic actors.
func (s *System) DynamicCount() int { return len(s.dynamic) }

// ActorBinding registers its node with the engine while mounted.
type ActorBinding struct {
	system *System
	kind   Kind
	radius float32
	node   *transform.Node
	handle transform.Handle
}

// Kind returns the actor kind.
func (b *ActorBinding) Kind() Kind { return b.kind }

// SetVelocity forwards an initial or impulse velocity to the engine.
func (b *ActorBinding) SetVelocity(v math.Vec3) {
	if b.node != nil {
		b.system.engine.SetVelocity(b.handle, v)
	}
}

func worldPose(n *transform.Node) Pose {
	pos, rot, _ := n.WorldMatrix().Decompose()
	return Pose{Position: pos, Rotation: rot}
}

func (b *ActorBinding) Mount(n *transform.Node) {
	b.node = n
	b.handle = n.Handle()
	pose := worldPose(n)
	b.system.engine.AddActor(b.handle, Actor{Kind: b.kind, Pose: pose, Radius: b.radius})
	if b.kind == Dynamic {
		b.system.interp.Record(b.handle, pose)
		b.system.dynamic = append(b.system.dynamic, b)
	}
}

func (b *ActorBinding) Commit(n *transform.Node, didTransform bool) {
	if b.kind == Kinematic && didTransform {
		b.system.engine.SetKinematicPose(b.handle, worldPose(n))
	}
}

func (b *ActorBinding) Unmount(n *transform.Node) {
	b.system.engine.RemoveActor(b.handle)
	if b.kind == Dynamic {
		b.system.interp.Forget(b.handle)
		if i := slices.Index(b.system.dynamic, b); i >= 0 {
			b.system.dynamic = slices.Delete(b.system.dynamic, i, i+1)
		}
	}
	b.node = nil
}
