// Package octree implements the two spatial indexes of the world: a loose
// octree of bounding spheres for raycasts and a point octree for snap
// queries. Both grow by re-rooting and shrink by collapsing empty branches.
package octree

import (
	"slices"

	"github.com/Faultbox/midgard-world/pkg/math"
)

// cell is one octree node. size is the half-size of the inner box; count is
// the number of entries in the whole subtree.
type cell[T comparable] struct {
	center   math.Vec3
	size     float32
	parent   *cell[T]
	children *[8]*cell[T]
	entries  []T
	count    int
}

func newCell[T comparable](center math.Vec3, size float32, parent *cell[T]) *cell[T] {
	return &cell[T]{center: center, size: size, parent: parent}
}

func splat(s float32) math.Vec3 {
	return math.Vec3{X: s, Y: s, Z: s}
}

// innerContains reports whether p lies in the inner box.
func (c *cell[T]) innerContains(p math.Vec3) bool {
	d := p.Sub(c.center)
	return d.X >= -c.size && d.X <= c.size &&
		d.Y >= -c.size && d.Y <= c.size &&
		d.Z >= -c.size && d.Z <= c.size
}

// octant returns the child index for p: bit 2 for +X, bit 1 for +Y, bit 0 for +Z.
func (c *cell[T]) octant(p math.Vec3) int {
	i := 0
	if p.X >= c.center.X {
		i |= 4
	}
	if p.Y >= c.center.Y {
		i |= 2
	}
	if p.Z >= c.center.Z {
		i |= 1
	}
	return i
}

// subdivide creates the eight children if they do not exist yet. They are
// created x-major over {-1, 1} so index 0 is (-,-,-) and 7 is (+,+,+).
func (c *cell[T]) subdivide() {
	if c.children != nil {
		return
	}
	half := c.size / 2
	var kids [8]*cell[T]
	i := 0
	for _, x := range [2]float32{-1, 1} {
		for _, y := range [2]float32{-1, 1} {
			for _, z := range [2]float32{-1, 1} {
				offset := math.Vec3{X: x * half, Y: y * half, Z: z * half}
				kids[i] = newCell(c.center.Add(offset), half, c)
				i++
			}
		}
	}
	c.children = &kids
}

func (c *cell[T]) add(e T) {
	c.entries = append(c.entries, e)
	for n := c; n != nil; n = n.parent {
		n.count++
	}
}

func (c *cell[T]) remove(e T) bool {
	i := slices.Index(c.entries, e)
	if i < 0 {
		return false
	}
	last := len(c.entries) - 1
	c.entries[i] = c.entries[last]
	var zero T
	c.entries[last] = zero
	c.entries = c.entries[:last]
	for n := c; n != nil; n = n.parent {
		n.count--
	}
	return true
}

// checkCollapse walks up from c while subtrees are empty and drops the
// children of the highest empty node that has any. Returns whether a
// collapse happened.
func (c *cell[T]) checkCollapse() bool {
	var top *cell[T]
	for n := c; n != nil && n.count == 0; n = n.parent {
		if n.children != nil {
			top = n
		}
	}
	if top == nil {
		return false
	}
	top.collapse()
	return true
}

func (c *cell[T]) collapse() {
	if c.children == nil {
		return
	}
	for _, k := range c.children {
		k.collapse()
		k.parent = nil
	}
	c.children = nil
}

// wrap re-roots the tree twice: first under a cell offset toward +XYZ with
// c as child 0, then under a cell offset toward -XYZ with the first new root
// as child 7. The returned root has four times c's half-size and keeps c's
// center inside its inner box.
func (c *cell[T]) wrap() *cell[T] {
	up := newCell[T](c.center.Add(splat(c.size)), c.size*2, nil)
	up.adopt(c, 0)
	down := newCell[T](up.center.Sub(splat(up.size)), up.size*2, nil)
	down.adopt(up, 7)
	return down
}

func (c *cell[T]) adopt(child *cell[T], index int) {
	c.subdivide()
	c.children[index].parent = nil
	c.children[index] = child
	child.parent = c
	c.count = child.count
}

func (c *cell[T]) depth() int {
	d := 0
	if c.children != nil {
		for _, k := range c.children {
			d = max(d, k.depth())
		}
	}
	return d + 1
}

func (c *cell[T]) walk(depth int, fn func(c *cell[T], depth int)) {
	fn(c, depth)
	if c.children != nil {
		for _, k := range c.children {
			k.walk(depth+1, fn)
		}
	}
}
