package physics

import (
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Faultbox/midgard-world/internal/engine/transform"
	"github.com/Faultbox/midgard-world/internal/logger"
	"github.com/Faultbox/midgard-world/pkg/math"
)

const eps = 1e-4

func h(i uint32) transform.Handle { return transform.Handle{Index: i, Gen: 1} }

func TestInterpolatorEndpoints(t *testing.T) {
	ip := NewInterpolator()
	a := Pose{Position: math.Vec3{X: 0}, Rotation: math.QuatIdentity()}
	b := Pose{Position: math.Vec3{X: 10}, Rotation: math.QuatFromAxisAngle(math.Vec3{Y: 1}, 1)}

	ip.Record(h(1), a)
	if got, _ := ip.Sample(h(1), 0.7); !got.Position.ApproxEqual(a.Position, eps) {
		t.Errorf("single record should seed both ends, got %+v", got.Position)
	}

	ip.Record(h(1), b)
	tests := []struct {
		alpha float32
		want  math.Vec3
	}{
		{0, math.Vec3{}},
		{0.5, math.Vec3{X: 5}},
		{1, math.Vec3{X: 10}},
	}
	for _, tt := range tests {
		got, ok := ip.Sample(h(1), tt.alpha)
		if !ok {
			t.Fatal("missing snapshot")
		}
		if !got.Position.ApproxEqual(tt.want, eps) {
			t.Errorf("alpha %.1f: position %+v, want %+v", tt.alpha, got.Position, tt.want)
		}
	}
	if got, _ := ip.Sample(h(1), 1); !got.Rotation.ApproxEqual(b.Rotation, eps) {
		t.Errorf("alpha 1 rotation = %+v, want %+v", got.Rotation, b.Rotation)
	}

	ip.Forget(h(1))
	if _, ok := ip.Sample(h(1), 0); ok {
		t.Error("forgotten actor should not sample")
	}
}

func TestIntegratorFallsAndRests(t *testing.T) {
	g := NewIntegrator(-10, 0)
	g.AddActor(h(1), Actor{Kind: Dynamic, Pose: Pose{Position: math.Vec3{Y: 10}, Rotation: math.QuatIdentity()}, Radius: 0.5})
	g.AddActor(h(2), Actor{Kind: Static, Pose: Pose{Position: math.Vec3{Y: 10}, Rotation: math.QuatIdentity()}})

	g.Step(100 * time.Millisecond)
	p, _ := g.Pose(h(1))
	if abs(p.Position.Y-9.9) > eps {
		t.Errorf("after one step y = %f, want 9.9", p.Position.Y)
	}
	if s, _ := g.Pose(h(2)); s.Position.Y != 10 {
		t.Error("static actor moved")
	}

	for i := 0; i < 100; i++ {
		g.Step(100 * time.Millisecond)
	}
	p, _ = g.Pose(h(1))
	if abs(p.Position.Y-0.5) > eps {
		t.Errorf("body should rest on the floor at its radius, y = %f", p.Position.Y)
	}
}

func TestIntegratorKinematicOnlyAcceptsPose(t *testing.T) {
	g := NewIntegrator(-10, -100)
	g.AddActor(h(1), Actor{Kind: Kinematic, Pose: IdentityPose()})
	g.AddActor(h(2), Actor{Kind: Dynamic, Pose: IdentityPose()})

	target := Pose{Position: math.Vec3{X: 3}, Rotation: math.QuatIdentity()}
	g.SetKinematicPose(h(1), target)
	g.SetKinematicPose(h(2), target)
	g.Step(time.Second)

	if p, _ := g.Pose(h(1)); p.Position != target.Position {
		t.Errorf("kinematic pose = %+v", p.Position)
	}
	if p, _ := g.Pose(h(2)); p.Position.X == 3 {
		t.Error("dynamic actor must ignore kinematic poses")
	}
}

func TestIntegratorRemoveKeepsOrder(t *testing.T) {
	g := NewIntegrator(0, 0)
	for i := uint32(1); i <= 4; i++ {
		g.AddActor(h(i), Actor{Kind: Dynamic, Pose: IdentityPose()})
	}
	g.RemoveActor(h(2))
	if g.Len() != 3 {
		t.Fatalf("len = %d", g.Len())
	}
	for i, want := range []uint32{1, 3, 4} {
		if g.bodies[i].handle != h(want) || g.index[h(want)] != i {
			t.Errorf("slot %d holds %v", i, g.bodies[i].handle)
		}
	}
	if _, ok := g.Pose(h(2)); ok {
		t.Error("removed actor still resolves")
	}
}

func TestSystemDrivesNodes(t *testing.T) {
	graph := transform.NewGraph(transform.NewDirtyRegistry())
	engine := NewIntegrator(-10, -1000)
	sys := NewSystem(engine)

	root := graph.New("root")
	root.Activate()

	platform := graph.New("platform")
	if _, err := sys.Bind(platform, Kinematic, 0); err != nil {
		t.Fatal(err)
	}
	crate := graph.New("crate")
	crate.SetPosition(math.Vec3{Y: 10})
	if _, err := sys.Bind(crate, Dynamic, 0); err != nil {
		t.Fatal(err)
	}
	root.AddChild(platform)
	root.AddChild(crate)

	if sys.DynamicCount() != 1 {
		t.Fatalf("dynamic actors = %d", sys.DynamicCount())
	}

	// Gameplay moves the platform; commit pushes the pose to the engine.
	platform.SetPosition(math.Vec3{X: 4})
	graph.Flush()
	if p, _ := engine.Pose(platform.Handle()); !p.Position.ApproxEqual(math.Vec3{X: 4}, eps) {
		t.Errorf("engine platform pose = %+v", p.Position)
	}

	// Physics moves the crate; interpolation writes it back.
	sys.Step(100 * time.Millisecond)
	sys.Interpolate(1)
	graph.Flush()
	if got := crate.WorldMatrix().Position(); abs(got.Y-9.9) > eps {
		t.Errorf("crate y at alpha 1 = %f, want 9.9", got.Y)
	}
	sys.Interpolate(0)
	graph.Flush()
	if got := crate.WorldMatrix().Position(); abs(got.Y-10) > eps {
		t.Errorf("crate y at alpha 0 = %f, want 10", got.Y)
	}

	crate.Deactivate()
	if sys.DynamicCount() != 0 || engine.Len() != 1 {
		t.Errorf("unmount should remove the actor: dynamic=%d engine=%d", sys.DynamicCount(), engine.Len())
	}
}

func TestInterpolateLogsStaleNode(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	prev := logger.Log
	logger.Log = zap.New(core)
	defer func() { logger.Log = prev }()

	graph := transform.NewGraph(transform.NewDirtyRegistry())
	sys := NewSystem(NewIntegrator(-10, -1000))

	ghost := graph.New("ghost")
	handle := ghost.Handle()
	if err := ghost.Destroy(); err != nil {
		t.Fatal(err)
	}
	sys.dynamic = append(sys.dynamic, &ActorBinding{system: sys, kind: Dynamic, node: ghost, handle: handle})
	sys.interp.Record(handle, Pose{Position: math.Vec3{Y: 1}, Rotation: math.QuatIdentity()})

	sys.Interpolate(1)

	entries := logs.FilterMessage("interpolated pose not applied").All()
	if len(entries) != 1 {
		t.Fatalf("warnings = %d, want 1", len(entries))
	}
	if entries[0].LoggerName != "physics" {
		t.Errorf("logger = %q", entries[0].LoggerName)
	}
}

func abs(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
