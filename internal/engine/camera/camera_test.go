package camera

import (
	"testing"

	"github.com/Faultbox/midgard-world/internal/engine/picking"
	"github.com/Faultbox/midgard-world/pkg/math"
)

func TestOrbitPosition(t *testing.T) {
	c := NewOrbitCamera()
	c.RotationX, c.RotationY, c.Distance = 0, 0, 10
	c.SetCenter(1, 2, 3)

	if got := c.Position(); !got.ApproxEqual(math.Vec3{X: 1, Y: 2, Z: 13}, 1e-4) {
		t.Errorf("Position = %v, want (1, 2, 13)", got)
	}
}

func TestClamps(t *testing.T) {
	c := NewOrbitCamera()
	c.HandleDrag(0, 1e6)
	if c.RotationX != c.MaxPitch {
		t.Errorf("pitch = %v, want clamp %v", c.RotationX, c.MaxPitch)
	}
	c.HandleZoom(100)
	if c.Distance != c.MinDistance {
		t.Errorf("distance = %v, want clamp %v", c.Distance, c.MinDistance)
	}
	c.FitToBounds(-1e5, 0, -1e5, 1e5, 0, 1e5)
	if c.Distance != c.MaxDistance {
		t.Errorf("fit distance = %v, want clamp %v", c.Distance, c.MaxDistance)
	}
}

func TestCenterRayHitsOrbitCenter(t *testing.T) {
	c := NewOrbitCamera()
	c.SetCenter(4, 0, -2)
	vp := c.ViewProjection(800, 600)

	r := picking.ScreenToRay(400, 300, 800, 600, vp.Inverse())
	if d := r.Origin.Distance(c.Position()); d > 0.5 {
		t.Errorf("ray starts %v from the eye", d)
	}
	toCenter := math.Vec3{X: 4, Z: -2}.Sub(r.Origin).Normalize()
	if dot := toCenter.Dot(r.Direction); dot < 0.99 {
		t.Errorf("center ray misses the orbit center, dot=%v", dot)
	}
}
