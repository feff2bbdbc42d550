package mover

import (
	"testing"

	"github.com/Faultbox/midgard-world/pkg/math"
)

func blockedGrid(width, depth int, blocked [][2]int) *Grid {
	g := NewGrid(width, depth, 1, math.Vec3{})
	for _, b := range blocked {
		g.SetBlocked(b[0], b[1], true)
	}
	return g
}

func TestFindPath(t *testing.T) {
	tests := []struct {
		name     string
		blocked  [][2]int
		from, to [2]int
		wantNil  bool
		wantLen  int // 0 skips the length check
	}{
		{name: "open diagonal", from: [2]int{0, 0}, to: [2]int{4, 4}, wantLen: 5},
		{name: "same cell", from: [2]int{2, 2}, to: [2]int{2, 2}, wantLen: 1},
		{name: "around wall", blocked: [][2]int{{2, 0}, {2, 1}, {2, 2}, {2, 3}}, from: [2]int{0, 0}, to: [2]int{4, 0}},
		{name: "closed wall", blocked: [][2]int{{2, 0}, {2, 1}, {2, 2}, {2, 3}, {2, 4}}, from: [2]int{0, 0}, to: [2]int{4, 0}, wantNil: true},
		{name: "blocked goal", blocked: [][2]int{{4, 4}}, from: [2]int{0, 0}, to: [2]int{4, 4}, wantNil: true},
		{name: "out of bounds", from: [2]int{-1, 0}, to: [2]int{4, 4}, wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := blockedGrid(5, 5, tt.blocked)
			path := g.FindPath(tt.from[0], tt.from[1], tt.to[0], tt.to[1])
			if tt.wantNil {
				if path != nil {
					t.Fatalf("expected no path, got %v", path)
				}
				return
			}
			if path == nil {
				t.Fatal("expected path, got nil")
			}
			if path[0] != tt.from || path[len(path)-1] != tt.to {
				t.Errorf("path runs %v -> %v, want %v -> %v", path[0], path[len(path)-1], tt.from, tt.to)
			}
			if tt.wantLen > 0 && len(path) != tt.wantLen {
				t.Errorf("path length = %d, want %d", len(path), tt.wantLen)
			}
			for _, c := range path {
				if !g.IsWalkable(c[0], c[1]) {
					t.Errorf("path crosses blocked cell %v", c)
				}
			}
		})
	}
}

func TestDiagonalDoesNotCutCorners(t *testing.T) {
	g := blockedGrid(3, 3, [][2]int{{1, 0}})
	path := g.FindPath(0, 0, 2, 1)
	if path == nil {
		t.Fatal("expected path")
	}
	for i := 1; i < len(path); i++ {
		a, b := path[i-1], path[i]
		if a[0] != b[0] && a[1] != b[1] {
			if !g.IsWalkable(b[0], a[1]) || !g.IsWalkable(a[0], b[1]) {
				t.Errorf("diagonal step %v -> %v cuts a blocked corner", a, b)
			}
		}
	}
}

func TestCellMapping(t *testing.T) {
	g := NewGrid(4, 4, 2, math.Vec3{X: -4, Y: 1, Z: -4})

	if got := g.CellCenter(0, 0); got != (math.Vec3{X: -3, Y: 1, Z: -3}) {
		t.Errorf("CellCenter(0,0) = %v", got)
	}
	if x, z := g.CellAt(math.Vec3{X: 0.5, Z: -0.5}); x != 2 || z != 1 {
		t.Errorf("CellAt = (%d,%d), want (2,1)", x, z)
	}
	if x, z := g.CellAt(math.Vec3{X: -5, Z: -5}); x >= 0 || z >= 0 {
		t.Errorf("position left of the origin should map to a negative cell, got (%d,%d)", x, z)
	}
	if g.IsWalkable(4, 0) {
		t.Error("cells outside the grid are not walkable")
	}
}
