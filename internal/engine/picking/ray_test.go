package picking

import (
	"testing"

	"github.com/Faultbox/midgard-world/pkg/math"
)

const eps = 1e-4

func abs(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}

func TestIntersectAABB(t *testing.T) {
	box := NewAABB(math.Vec3{X: -1, Y: -1, Z: -1}, math.Vec3{X: 1, Y: 1, Z: 1})

	tests := []struct {
		name  string
		ray   Ray
		hit   bool
		wantT float32
	}{
		{"front hit", NewRay(math.Vec3{Z: -5}, math.Vec3{Z: 1}), true, 4},
		{"miss above", NewRay(math.Vec3{Y: 3, Z: -5}, math.Vec3{Z: 1}), false, 0},
		{"behind origin", NewRay(math.Vec3{Z: 5}, math.Vec3{Z: 1}), false, 0},
		{"inside", NewRay(math.Vec3{}, math.Vec3{X: 1}), true, 0},
		{"parallel outside slab", NewRay(math.Vec3{X: 2, Z: -5}, math.Vec3{Z: 1}), false, 0},
		{"diagonal", NewRay(math.Vec3{X: -5, Y: -5, Z: -5}, math.Vec3{X: 1, Y: 1, Z: 1}), true, 6.9282},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, hit := tt.ray.IntersectAABB(box)
			if hit != tt.hit {
				t.Fatalf("hit = %v, want %v", hit, tt.hit)
			}
			if hit && abs(got-tt.wantT) > 1e-3 {
				t.Errorf("t = %f, want %f", got, tt.wantT)
			}
		})
	}
}

func TestIntersectSphere(t *testing.T) {
	center := math.Vec3{X: 10}

	tests := []struct {
		name  string
		ray   Ray
		hit   bool
		wantT float32
	}{
		{"head on", NewRay(math.Vec3{}, math.Vec3{X: 1}), true, 8},
		{"graze miss", NewRay(math.Vec3{Y: 3}, math.Vec3{X: 1}), false, 0},
		{"pointing away", NewRay(math.Vec3{}, math.Vec3{X: -1}), false, 0},
		{"inside", NewRay(math.Vec3{X: 10.5}, math.Vec3{Y: 1}), true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, hit := tt.ray.IntersectSphere(center, 2)
			if hit != tt.hit {
				t.Fatalf("hit = %v, want %v", hit, tt.hit)
			}
			if hit && abs(got-tt.wantT) > eps {
				t.Errorf("t = %f, want %f", got, tt.wantT)
			}
		})
	}
}

func TestIntersectPlaneY(t *testing.T) {
	r := NewRay(math.Vec3{Y: 10}, math.Vec3{X: 1, Y: -1})
	x, z, ok := r.IntersectPlaneY(0)
	if !ok {
		t.Fatal("expected plane hit")
	}
	if abs(x-10) > eps || abs(z) > eps {
		t.Errorf("got (%f, %f), want (10, 0)", x, z)
	}

	flat := NewRay(math.Vec3{Y: 10}, math.Vec3{X: 1})
	if _, _, ok := flat.IntersectPlaneY(0); ok {
		t.Error("parallel ray should not hit plane")
	}
}

func TestRayTransformKeepsDistances(t *testing.T) {
	// Scaling by 2 then intersecting in local space must report the
	// world-space distance because the direction is left unnormalized.
	world := math.Scale(2, 2, 2)
	inv := world.Inverse()

	r := NewRay(math.Vec3{Z: -10}, math.Vec3{Z: 1})
	local := r.Transform(inv)

	box := NewAABB(math.Vec3{X: -1, Y: -1, Z: -1}, math.Vec3{X: 1, Y: 1, Z: 1})
	got, hit := local.IntersectAABB(box)
	if !hit {
		t.Fatal("expected hit")
	}
	// World box spans z in [-2, 2]; entry at distance 8.
	if abs(got-8) > eps {
		t.Errorf("t = %f, want 8", got)
	}
}

func TestScreenToRayCenter(t *testing.T) {
	view := math.LookAt(math.Vec3{Z: 10}, math.Vec3{}, math.Vec3{Y: 1})
	proj := math.Perspective(1.0, 1.0, 0.1, 100)
	inv := proj.Mul(view).Inverse()

	r := ScreenToRay(50, 50, 100, 100, inv)
	if abs(r.Direction.Z+1) > 1e-3 {
		t.Errorf("center ray should look down -Z, got %+v", r.Direction)
	}
	if abs(r.Origin.X) > 1e-3 || abs(r.Origin.Y) > 1e-3 {
		t.Errorf("center ray origin should be on axis, got %+v", r.Origin)
	}
}

func TestAABBTransformAndSphere(t *testing.T) {
	box := NewAABB(math.Vec3{X: 1, Y: 1, Z: 1}, math.Vec3{X: -1, Y: -1, Z: -1})
	if box.Min.X != -1 || box.Max.X != 1 {
		t.Fatalf("NewAABB did not order corners: %+v", box)
	}

	moved := box.Transform(math.Translate(5, 0, 0).Mul(math.RotateY(0.785398)))
	if !moved.ContainsPoint(math.Vec3{X: 5}) {
		t.Error("transformed box should contain its new center")
	}
	if moved.Extents().X < 1.41 {
		t.Errorf("rotated box should widen, extents %+v", moved.Extents())
	}

	if !box.IntersectsSphere(math.Vec3{X: 2}, 1.01) {
		t.Error("sphere touching face should intersect")
	}
	if box.IntersectsSphere(math.Vec3{X: 3, Y: 3}, 1) {
		t.Error("distant sphere should not intersect")
	}
}
