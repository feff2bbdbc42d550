package assets

import (
	"fmt"

	"github.com/qmuntal/gltf"

	"github.com/Faultbox/midgard-world/pkg/math"
)

// Box is an axis-aligned box in a node's local space.
type Box struct {
	Min, Max math.Vec3
}

// Center returns the box center.
func (b Box) Center() math.Vec3 {
	return b.Min.Add(b.Max).Scale(0.5)
}

// HalfExtents returns half the box size on each axis.
func (b Box) HalfExtents() math.Vec3 {
	return b.Max.Sub(b.Min).Scale(0.5)
}

// NodeDesc describes one node of a blueprint.
type NodeDesc struct {
	Name     string
	Parent   int // Index into Blueprint.Nodes, -1 for roots
	Position math.Vec3
	Rotation math.Quat
	Scale    math.Vec3

	// Bounds is the union of the node's mesh POSITION bounds, nil when the
	// node carries no mesh.
	Bounds *Box
}

// Blueprint is a flat node list imported from a glTF document. Parents
// always precede their children.
type Blueprint struct {
	Name  string
	Nodes []NodeDesc
}

// Roots returns the indices of nodes without a parent.
func (b *Blueprint) Roots() []int {
	var roots []int
	for i, n := range b.Nodes {
		if n.Parent < 0 {
			roots = append(roots, i)
		}
	}
	return roots
}

// FromDocument flattens doc into a blueprint.
func FromDocument(name string, doc *gltf.Document) (*Blueprint, error) {
	parents := make([]int, len(doc.Nodes))
	for i := range parents {
		parents[i] = -1
	}
	for i, node := range doc.Nodes {
		for _, child := range node.Children {
			c := int(child)
			if c < 0 || c >= len(doc.Nodes) {
				return nil, fmt.Errorf("node %d: child index %d out of range", i, c)
			}
			if parents[c] >= 0 {
				return nil, fmt.Errorf("node %d has more than one parent", c)
			}
			parents[c] = i
		}
	}

	// Depth-first from each root so parents come first; the new index of
	// each source node is recorded for remapping.
	order := make([]int, 0, len(doc.Nodes))
	remap := make([]int, len(doc.Nodes))
	for i := range remap {
		remap[i] = -1
	}
	var visit func(i int)
	visit = func(i int) {
		remap[i] = len(order)
		order = append(order, i)
		for _, child := range doc.Nodes[i].Children {
			visit(int(child))
		}
	}
	for i := range doc.Nodes {
		if parents[i] < 0 {
			visit(i)
		}
	}
	if len(order) != len(doc.Nodes) {
		return nil, fmt.Errorf("node hierarchy contains a cycle")
	}

	bp := &Blueprint{Name: name, Nodes: make([]NodeDesc, 0, len(order))}
	for _, src := range order {
		node := doc.Nodes[src]
		desc := NodeDesc{Name: node.Name, Parent: -1}
		if parents[src] >= 0 {
			desc.Parent = remap[parents[src]]
		}
		desc.Position, desc.Rotation, desc.Scale = nodeTRS(node)

		if node.Mesh != nil {
			box, err := meshBounds(doc, int(*node.Mesh))
			if err != nil {
				return nil, fmt.Errorf("node %q: %w", node.Name, err)
			}
			desc.Bounds = box
		}
		bp.Nodes = append(bp.Nodes, desc)
	}
	return bp, nil
}

func nodeTRS(node *gltf.Node) (math.Vec3, math.Quat, math.Vec3) {
	var m math.Mat4
	identity := true
	for i, v := range node.Matrix {
		m[i] = float32(v)
		if v != 0 && !(i%5 == 0 && v == 1) {
			identity = false
		}
	}
	if !identity {
		return m.Decompose()
	}

	pos := math.Vec3{X: float32(node.Translation[0]), Y: float32(node.Translation[1]), Z: float32(node.Translation[2])}
	rot := math.Quat{
		X: float32(node.Rotation[0]),
		Y: float32(node.Rotation[1]),
		Z: float32(node.Rotation[2]),
		W: float32(node.Rotation[3]),
	}
	if rot == (math.Quat{}) {
		rot = math.QuatIdentity()
	}
	scale := math.Vec3{X: float32(node.Scale[0]), Y: float32(node.Scale[1]), Z: float32(node.Scale[2])}
	if scale == (math.Vec3{}) {
		scale = math.Vec3One
	}
	return pos, rot.Normalize(), scale
}

func meshBounds(doc *gltf.Document, index int) (*Box, error) {
	if index < 0 || index >= len(doc.Meshes) {
		return nil, fmt.Errorf("mesh index %d out of range", index)
	}

	var box *Box
	for _, prim := range doc.Meshes[index].Primitives {
		acc, ok := prim.Attributes[gltf.POSITION]
		if !ok {
			continue
		}
		a := int(acc)
		if a < 0 || a >= len(doc.Accessors) {
			return nil, fmt.Errorf("accessor index %d out of range", a)
		}
		accessor := doc.Accessors[a]
		if len(accessor.Min) < 3 || len(accessor.Max) < 3 {
			continue
		}
		lo := math.Vec3{X: float32(accessor.Min[0]), Y: float32(accessor.Min[1]), Z: float32(accessor.Min[2])}
		hi := math.Vec3{X: float32(accessor.Max[0]), Y: float32(accessor.Max[1]), Z: float32(accessor.Max[2])}
		if box == nil {
			box = &Box{Min: lo, Max: hi}
			continue
		}
		box.Min = box.Min.Min(lo)
		box.Max = box.Max.Max(hi)
	}
	return box, nil
}
