package math

import (
	"math"
	"testing"
)

func TestVec3Cross(t *testing.T) {
	x := Vec3{1, 0, 0}
	y := Vec3{0, 1, 0}
	got := x.Cross(y)
	want := Vec3{0, 0, 1}
	if got != want {
		t.Errorf("Vec3.Cross() = %v, want %v", got, want)
	}
}

func TestVec3Length(t *testing.T) {
	v := Vec3{2, 3, 6}
	if got := v.Length(); got != 7 {
		t.Errorf("Vec3.Length() = %v, want 7", got)
	}
	if got := v.LengthSq(); got != 49 {
		t.Errorf("Vec3.LengthSq() = %v, want 49", got)
	}
}

func TestVec3MinMax(t *testing.T) {
	a := Vec3{1, 5, -3}
	b := Vec3{2, -1, -4}
	if got, want := a.Min(b), (Vec3{1, -1, -4}); got != want {
		t.Errorf("Vec3.Min() = %v, want %v", got, want)
	}
	if got, want := a.Max(b), (Vec3{2, 5, -3}); got != want {
		t.Errorf("Vec3.Max() = %v, want %v", got, want)
	}
}

func TestVec3Lerp(t *testing.T) {
	got := Vec3{0, 0, 0}.Lerp(Vec3{10, 20, 30}, 0.5)
	want := Vec3{5, 10, 15}
	if !got.ApproxEqual(want, 0.001) {
		t.Errorf("Vec3.Lerp() = %v, want %v", got, want)
	}
}

func TestVec3IsFinite(t *testing.T) {
	inf := float32(math.Inf(1))
	if (Vec3{1, 2, 3}).IsFinite() != true {
		t.Error("expected finite vector")
	}
	if (Vec3{1, inf, 3}).IsFinite() {
		t.Error("expected infinite vector to be rejected")
	}
}
