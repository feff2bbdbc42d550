package octree

import (
	"math/rand"
	"testing"

	"github.com/Faultbox/midgard-world/internal/engine/transform"
	"github.com/Faultbox/midgard-world/pkg/math"
)

func point(pos math.Vec3, owner uint32) *Point {
	return NewPoint(pos, transform.Handle{Index: owner, Gen: 1})
}

func TestSnapQueryReturnsNearestOnly(t *testing.T) {
	tree := NewSnap("test-snap", 16, 1)
	a := point(math.Vec3{}, 1)
	b := point(math.Vec3{Z: 5}, 2)
	c := point(math.Vec3{X: 10}, 3)
	for _, p := range []*Point{a, b, c} {
		if err := tree.Insert(p); err != nil {
			t.Fatal(err)
		}
	}

	hits := tree.Query(math.Vec3{Z: 1}, 2)
	if len(hits) != 1 || hits[0].Point != a {
		t.Fatalf("expected only the origin point, got %+v", hits)
	}
	if hits[0].Distance != 1 {
		t.Errorf("distance = %f, want 1", hits[0].Distance)
	}
}

func TestSnapQuerySortedAndSkipsInactive(t *testing.T) {
	tree := NewSnap("test-snap-sort", 16, 1)
	pts := []*Point{
		point(math.Vec3{X: 3}, 1),
		point(math.Vec3{X: 1}, 2),
		point(math.Vec3{X: -2}, 3),
		point(math.Vec3{X: 0.5}, 4),
	}
	for _, p := range pts {
		tree.Insert(p)
	}
	tree.SetActive(pts[3], false)

	hits := tree.Query(math.Vec3{}, 5)
	want := []*Point{pts[1], pts[2], pts[0]}
	if len(hits) != len(want) {
		t.Fatalf("got %d hits, want %d", len(hits), len(want))
	}
	for i := range want {
		if hits[i].Point != want[i] {
			t.Errorf("hit %d = %v, want %v", i, hits[i].Owner, want[i].Owner)
		}
	}
}

func TestSnapRejectsDegenerateSizes(t *testing.T) {
	tree := NewSnap("test-snap-degenerate", 8, 0)
	a := point(math.Vec3{X: 1}, 1)
	b := point(math.Vec3{X: 1.25}, 2)
	for _, p := range []*Point{a, b} {
		if err := tree.Insert(p); err != nil {
			t.Fatal(err)
		}
	}
	if tree.Count() != 2 {
		t.Fatalf("count = %d, want 2", tree.Count())
	}

	if hits := tree.Query(math.Vec3{X: 1}, -1); len(hits) != 0 {
		t.Errorf("negative radius should find nothing, got %d hits", len(hits))
	}
	if hits := tree.Query(math.Vec3{X: 1}, 1); len(hits) != 2 || hits[0].Point != a {
		t.Errorf("expected both points nearest first, got %+v", hits)
	}
}

func TestSnapExpandsAndCollapses(t *testing.T) {
	tree := NewSnap("test-snap-expand", 4, 1)
	p := point(math.Vec3{X: 100, Y: -40}, 1)
	if err := tree.Insert(p); err != nil {
		t.Fatal(err)
	}
	if !tree.root.innerContains(p.Position()) {
		t.Fatal("root should expand to hold the point")
	}
	if p.node.size >= 1 {
		t.Errorf("point stored in cell of half-size %f, want < 1", p.node.size)
	}

	if err := tree.Remove(p); err != nil {
		t.Fatal(err)
	}
	if tree.root.children != nil || tree.Count() != 0 {
		t.Error("empty tree should collapse")
	}
}

func TestSnapMoveRelocates(t *testing.T) {
	tree := NewSnap("test-snap-move", 16, 1)
	p := point(math.Vec3{X: 1, Y: 1, Z: 1}, 1)
	tree.Insert(p)

	if err := tree.Move(p, math.Vec3{X: -8, Y: 3, Z: 7}); err != nil {
		t.Fatal(err)
	}
	if hits := tree.Query(math.Vec3{X: 1, Y: 1, Z: 1}, 0.5); len(hits) != 0 {
		t.Error("point still found at old position")
	}
	if hits := tree.Query(math.Vec3{X: -8, Y: 3, Z: 7}, 0.5); len(hits) != 1 {
		t.Error("point not found at new position")
	}
	checkCounts(t, tree.root)
}

func TestSnapCountConsistency(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	tree := NewSnap("test-snap-counts", 8, 0.5)
	var live []*Point
	for step := 0; step < 1500; step++ {
		rnd := func() math.Vec3 {
			return math.Vec3{X: rng.Float32()*100 - 50, Y: rng.Float32()*100 - 50, Z: rng.Float32()*100 - 50}
		}
		switch op := rng.Intn(3); {
		case op == 0 || len(live) == 0:
			p := point(rnd(), uint32(step))
			tree.Insert(p)
			live = append(live, p)
		case op == 1:
			i := rng.Intn(len(live))
			tree.Remove(live[i])
			live = append(live[:i], live[i+1:]...)
		default:
			tree.Move(live[rng.Intn(len(live))], rnd())
		}
		if tree.Count() != len(live) {
			t.Fatalf("step %d: count=%d live=%d", step, tree.Count(), len(live))
		}
	}
	checkCounts(t, tree.root)
}
