package debug

import (
	"image/png"
	"os"
	"testing"
	"time"

	"github.com/Faultbox/midgard-world/internal/engine/octree"
	"github.com/Faultbox/midgard-world/internal/engine/transform"
	"github.com/Faultbox/midgard-world/internal/game/mover"
	"github.com/Faultbox/midgard-world/pkg/math"
)

func TestBoxEdges(t *testing.T) {
	var l Lines
	l.Box(math.Vec3{X: -1, Y: -1, Z: -1}, math.Vec3{X: 1, Y: 1, Z: 1}, ColorItem)
	if l.Count() != BoxVertexCount {
		t.Fatalf("box vertices = %d, want %d", l.Count(), BoxVertexCount)
	}
	for i := 0; i < l.Count(); i += 2 {
		a := l.Vertices[i*VertexStride : i*VertexStride+3]
		b := l.Vertices[(i+1)*VertexStride : (i+1)*VertexStride+3]
		// Every edge runs along exactly one axis with length 2.
		diff := 0
		for k := 0; k < 3; k++ {
			if a[k] != b[k] {
				diff++
				if d := b[k] - a[k]; d != 2 && d != -2 {
					t.Errorf("edge %d has length %v on axis %d", i/2, d, k)
				}
			}
		}
		if diff != 1 {
			t.Errorf("edge %d spans %d axes", i/2, diff)
		}
	}

	l.Reset()
	if l.Count() != 0 {
		t.Errorf("Reset left %d vertices", l.Count())
	}
}

func TestLooseTreeHighlightsOwners(t *testing.T) {
	tree := octree.NewLoose("debug", 16, octree.DefaultMinRadius)
	m := math.Translate(2, 0, 0)
	owner := transform.Handle{Index: 1, Gen: 1}
	if err := tree.Insert(octree.NewItem(&m, octree.NewBoxShape(math.Vec3{X: 1, Y: 1, Z: 1}), owner)); err != nil {
		t.Fatal(err)
	}

	var l Lines
	l.LooseTree(tree, map[transform.Handle]bool{owner: true})
	hits := 0
	for i := 0; i < l.Count(); i++ {
		v := l.Vertices[i*VertexStride:]
		if (Color{v[3], v[4], v[5]}) == ColorHit {
			hits++
		}
	}
	if hits != BoxVertexCount {
		t.Errorf("highlighted vertices = %d, want %d", hits, BoxVertexCount)
	}
	if l.Count() < 2*BoxVertexCount {
		t.Errorf("expected at least one cell and one item, got %d vertices", l.Count())
	}
}

func TestGridMarksBlockedCells(t *testing.T) {
	g := mover.NewGrid(3, 2, 1, math.Vec3{})
	g.SetBlocked(1, 1, true)

	var l Lines
	l.Grid(g, 0)
	// 4 + 3 grid lines, plus two diagonals for the blocked cell.
	if got, want := l.Count(), (4+3+2)*2; got != want {
		t.Errorf("grid vertices = %d, want %d", got, want)
	}
}

func TestScreenshotFlipsRows(t *testing.T) {
	s := NewScreenshots(t.TempDir(), "frame")
	s.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	// Bottom row red, top row blue, as GL reads them.
	pixels := []byte{
		255, 0, 0, 255,
		0, 0, 255, 255,
	}
	name, err := s.Save(pixels, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(name)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if r, _, b, _ := img.At(0, 0).RGBA(); r != 0 || b == 0 {
		t.Errorf("top pixel should be blue, got r=%d b=%d", r, b)
	}
	if r, _, _, _ := img.At(0, 1).RGBA(); r == 0 {
		t.Error("bottom pixel should be red")
	}

	if _, err := s.Save(pixels, 2, 2); err == nil {
		t.Error("size mismatch should fail")
	}
}
