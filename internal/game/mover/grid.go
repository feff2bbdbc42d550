package mover

import (
	"container/heap"
	gomath "math"

	"github.com/Faultbox/midgard-world/pkg/math"
)

// Grid is a walkability map over the XZ plane used to route movers.
type Grid struct {
	width, depth int
	cellSize     float32
	origin       math.Vec3 // World position of cell (0, 0)'s minimum corner
	blocked      []bool
}

// NewGrid creates a fully walkable grid.
func NewGrid(width, depth int, cellSize float32, origin math.Vec3) *Grid {
	return &Grid{
		width:    width,
		depth:    depth,
		cellSize: cellSize,
		origin:   origin,
		blocked:  make([]bool, width*depth),
	}
}

// Size returns the grid dimensions in cells.
func (g *Grid) Size() (width, depth int) { return g.width, g.depth }

// CellSize returns the edge length of a cell.
func (g *Grid) CellSize() float32 { return g.cellSize }

// SetBlocked marks a cell as blocked or walkable. Out-of-range cells are ignored.
func (g *Grid) SetBlocked(x, z int, blocked bool) {
	if g.inBounds(x, z) {
		g.blocked[g.key(x, z)] = blocked
	}
}

// IsWalkable checks if a cell is walkable.
func (g *Grid) IsWalkable(x, z int) bool {
	return g.inBounds(x, z) && !g.blocked[g.key(x, z)]
}

// CellCenter returns the world position of a cell's center at the grid's height.
func (g *Grid) CellCenter(x, z int) math.Vec3 {
	return math.Vec3{
		X: g.origin.X + (float32(x)+0.5)*g.cellSize,
		Y: g.origin.Y,
		Z: g.origin.Z + (float32(z)+0.5)*g.cellSize,
	}
}

// CellAt returns the cell containing a world position.
func (g *Grid) CellAt(p math.Vec3) (x, z int) {
	fx := float64((p.X - g.origin.X) / g.cellSize)
	fz := float64((p.Z - g.origin.Z) / g.cellSize)
	return int(gomath.Floor(fx)), int(gomath.Floor(fz))
}

type pathNode struct {
	x, z   int
	g, f   float32
	parent *pathNode
	index  int
}

type openList []*pathNode

func (h openList) Len() int           { return len(h) }
func (h openList) Less(i, j int) bool { return h[i].f < h[j].f }
func (h openList) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *openList) Push(x any) {
	n := x.(*pathNode)
	n.index = len(*h)
	*h = append(*h, n)
}

func (h *openList) Pop() any {
	old := *h
	n := old[len(old)-1]
	old[len(old)-1] = nil
	n.index = -1
	*h = old[:len(old)-1]
	return n
}

// 8-way neighbours; odd indices are diagonals.
var neighbours = [8][2]int{
	{0, 1}, {-1, 1}, {-1, 0}, {-1, -1},
	{0, -1}, {1, -1}, {1, 0}, {1, 1},
}

const diagonalCost = 1.414

// FindPath returns the cells from start to goal inclusive using A*, or nil
// when the goal is unreachable. Diagonal steps never cut a blocked corner.
func (g *Grid) FindPath(startX, startZ, goalX, goalZ int) [][2]int {
	if !g.inBounds(startX, startZ) || !g.IsWalkable(goalX, goalZ) {
		return nil
	}

	open := &openList{}
	closed := make(map[int]bool)
	nodes := make(map[int]*pathNode)

	start := &pathNode{x: startX, z: startZ, f: octile(startX, startZ, goalX, goalZ)}
	heap.Push(open, start)
	nodes[g.key(startX, startZ)] = start

	for open.Len() > 0 {
		cur := heap.Pop(open).(*pathNode)
		if cur.x == goalX && cur.z == goalZ {
			return unwind(cur)
		}
		closed[g.key(cur.x, cur.z)] = true

		for i, d := range neighbours {
			nx, nz := cur.x+d[0], cur.z+d[1]
			if !g.IsWalkable(nx, nz) || closed[g.key(nx, nz)] {
				continue
			}

			cost := float32(1)
			if i%2 == 1 {
				if !g.IsWalkable(cur.x+d[0], cur.z) || !g.IsWalkable(cur.x, cur.z+d[1]) {
					continue
				}
				cost = diagonalCost
			}

			gScore := cur.g + cost
			n, seen := nodes[g.key(nx, nz)]
			switch {
			case !seen:
				n = &pathNode{x: nx, z: nz, g: gScore, parent: cur}
				n.f = gScore + octile(nx, nz, goalX, goalZ)
				nodes[g.key(nx, nz)] = n
				heap.Push(open, n)
			case gScore < n.g:
				n.f += gScore - n.g
				n.g = gScore
				n.parent = cur
				heap.Fix(open, n.index)
			}
		}
	}
	return nil
}

func (g *Grid) inBounds(x, z int) bool {
	return x >= 0 && x < g.width && z >= 0 && z < g.depth
}

func (g *Grid) key(x, z int) int {
	return z*g.width + x
}

// octile distance: min(dx,dz)*sqrt(2) + |dx-dz|
func octile(x1, z1, x2, z2 int) float32 {
	dx, dz := abs(x2-x1), abs(z2-z1)
	if dx < dz {
		return float32(dx)*diagonalCost + float32(dz-dx)
	}
	return float32(dz)*diagonalCost + float32(dx-dz)
}

func unwind(n *pathNode) [][2]int {
	var path [][2]int
	for ; n != nil; n = n.parent {
		path = append(path, [2]int{n.x, n.z})
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
