package transform

import (
	"slices"

	"github.com/Faultbox/midgard-world/pkg/math"
)

// Binding attaches behavior to a node's lifecycle. Mount and Unmount run once
// per activation cycle; Commit runs for every mounted node visited by a clean
// walk, after its world matrix is final. didTransform is true when the node
// or an ancestor changed its local transform since the last commit.
type Binding interface {
	Mount(n *Node)
	Commit(n *Node, didTransform bool)
	Unmount(n *Node)
}

// Node is a transformable entity in a Graph.
type Node struct {
	graph  *Graph
	handle Handle
	name   string

	position math.Vec3
	rotation math.Quat
	scale    math.Vec3
	local    math.Mat4
	world    math.Mat4

	parent   *Node
	children []*Node
	bindings []Binding

	isDirty       bool
	isTransformed bool
	mounted       bool
}

// Handle returns the node's handle.
func (n *Node) Handle() Handle { return n.handle }

// Name returns the node's name.
func (n *Node) Name() string { return n.name }

// Graph returns the owning graph, or nil once destroyed.
func (n *Node) Graph() *Graph { return n.graph }

// Alive reports whether the node has not been destroyed.
func (n *Node) Alive() bool { return n.graph != nil }

// Parent returns the parent node or nil.
func (n *Node) Parent() *Node { return n.parent }

// Children returns the children in insertion order. The slice must not be
// modified.
func (n *Node) Children() []*Node { return n.children }

// Position returns the local position.
func (n *Node) Position() math.Vec3 { return n.position }

// Rotation returns the local rotation.
func (n *Node) Rotation() math.Quat { return n.rotation }

// Scale returns the local scale.
func (n *Node) Scale() math.Vec3 { return n.scale }

// LocalMatrix returns the local matrix as of the last clean.
func (n *Node) LocalMatrix() math.Mat4 { return n.local }

// WorldMatrix returns the world matrix as of the last clean.
func (n *Node) WorldMatrix() math.Mat4 { return n.world }

// WorldRef returns a pointer to the node's world matrix. Spatial items keep it
// to read the committed transform without copying.
func (n *Node) WorldRef() *math.Mat4 { return &n.world }

// IsDirty reports whether the node awaits a clean.
func (n *Node) IsDirty() bool { return n.isDirty }

// IsTransformed reports whether the local TRS changed since the last clean.
func (n *Node) IsTransformed() bool { return n.isTransformed }

// Mounted reports whether the node is active.
func (n *Node) Mounted() bool { return n.mounted }

// IsAncestorOf reports whether n is a strict ancestor of other.
func (n *Node) IsAncestorOf(other *Node) bool {
	for p := other.parent; p != nil; p = p.parent {
		if p == n {
			return true
		}
	}
	return false
}

// SetLocalTransform replaces the local position, rotation and scale.
func (n *Node) SetLocalTransform(position math.Vec3, rotation math.Quat, scale math.Vec3) error {
	if n.graph == nil {
		return ErrStaleHandle
	}
	n.position, n.rotation, n.scale = position, rotation, scale
	n.markTransformed()
	return nil
}

// SetPosition replaces the local position.
func (n *Node) SetPosition(position math.Vec3) error {
	return n.SetLocalTransform(position, n.rotation, n.scale)
}

// SetRotation replaces the local rotation.
func (n *Node) SetRotation(rotation math.Quat) error {
	return n.SetLocalTransform(n.position, rotation, n.scale)
}

// SetScale replaces the local scale.
func (n *Node) SetScale(scale math.Vec3) error {
	return n.SetLocalTransform(n.position, n.rotation, scale)
}

// SetWorldTransform sets the local transform so that the node's world
// transform becomes the given pose under its parent's last committed world
// matrix.
func (n *Node) SetWorldTransform(position math.Vec3, rotation math.Quat, scale math.Vec3) error {
	if n.parent == nil {
		return n.SetLocalTransform(position, rotation, scale)
	}
	local := n.parent.world.Inverse().Mul(math.Compose(position, rotation, scale))
	p, r, s := local.Decompose()
	return n.SetLocalTransform(p, r, s)
}

// markTransformed records a local change. The first change since the last
// clean registers the node as a dirty root unless an ancestor already covers
// it, and folds any roots below it into this one.
func (n *Node) markTransformed() {
	if n.isTransformed {
		return
	}
	n.isTransformed = true
	if !n.mounted {
		n.isDirty = true
		return
	}
	if n.isDirty {
		return
	}
	n.isDirty = true
	n.graph.registry.add(n)
	for _, c := range n.children {
		c.markCovered()
	}
}

// markCovered marks a subtree dirty under a tracked ancestor.
func (n *Node) markCovered() {
	n.graph.registry.remove(n)
	n.isDirty = true
	for _, c := range n.children {
		c.markCovered()
	}
}

func (n *Node) updateWorld() {
	if n.parent != nil {
		n.world = n.parent.world.Mul(n.local)
	} else {
		n.world = n.local
	}
}

// Clean brings this node's world matrix up to date. It is a no-op for clean
// nodes; otherwise it walks from the tracked root covering the node.
func (n *Node) Clean() error {
	if n.graph == nil {
		return ErrStaleHandle
	}
	if !n.isDirty {
		return nil
	}
	g := n.graph
	if g.walking {
		assertf("reentrant clean of %s", n)
		return ErrWalkInProgress
	}

	root := n
	for !g.registry.Contains(root) && root.parent != nil && root.parent.isDirty {
		root = root.parent
	}
	g.registry.remove(root)
	g.walk(root)
	return nil
}

// AddBinding attaches b. A mounted node mounts it immediately.
func (n *Node) AddBinding(b Binding) error {
	if n.graph == nil {
		return ErrStaleHandle
	}
	n.bindings = append(n.bindings, b)
	if n.mounted {
		b.Mount(n)
	}
	return nil
}

// RemoveBinding detaches b, unmounting it if the node is active.
func (n *Node) RemoveBinding(b Binding) {
	i := slices.Index(n.bindings, b)
	if i < 0 {
		return
	}
	n.bindings = slices.Delete(n.bindings, i, i+1)
	if n.mounted {
		b.Unmount(n)
	}
}

// Bindings returns the attached bindings. The slice must not be modified.
func (n *Node) Bindings() []Binding { return n.bindings }

func (n *Node) checkStructural(op string) error {
	if n.graph == nil {
		return ErrStaleHandle
	}
	if n.graph.walking {
		assertf("%s on %s during clean walk", op, n)
		return ErrWalkInProgress
	}
	return nil
}

// AddChild appends child, detaching it from any previous parent. A mounted
// parent activates the child.
func (n *Node) AddChild(child *Node) error {
	if err := n.checkStructural("AddChild"); err != nil {
		return err
	}
	if child.graph != n.graph {
		return ErrStaleHandle
	}
	if child == n || child.IsAncestorOf(n) {
		return ErrCycle
	}
	if child.parent == n {
		return nil
	}
	if child.parent != nil {
		if err := child.parent.RemoveChild(child); err != nil {
			return err
		}
	}

	n.children = append(n.children, child)
	child.parent = n
	// World must be rebuilt under the new parent.
	child.isTransformed = true
	child.isDirty = true

	if n.mounted {
		child.mount()
	}
	return nil
}

// RemoveChild detaches child, deactivating it first if mounted.
func (n *Node) RemoveChild(child *Node) error {
	if err := n.checkStructural("RemoveChild"); err != nil {
		return err
	}
	if child.parent != n {
		return ErrNotChild
	}
	if child.mounted {
		child.unmount()
	}
	i := slices.Index(n.children, child)
	n.children = slices.Delete(n.children, i, i+1)
	child.parent = nil
	child.isTransformed = true
	child.isDirty = true
	return nil
}

// Activate mounts the node and its subtree top-down.
func (n *Node) Activate() error {
	if err := n.checkStructural("Activate"); err != nil {
		return err
	}
	if n.mounted {
		return nil
	}
	if n.parent != nil && !n.parent.mounted {
		return ErrParentInactive
	}
	n.mount()
	return nil
}

// Deactivate unmounts the subtree bottom-up and drops its dirty roots.
func (n *Node) Deactivate() error {
	if err := n.checkStructural("Deactivate"); err != nil {
		return err
	}
	if n.mounted {
		n.unmount()
	}
	return nil
}

// mount computes the node's transform and mounts its bindings before
// descending. A node attached under a pending root stays covered by it.
func (n *Node) mount() {
	if n.isTransformed {
		n.local = math.Compose(n.position, n.rotation, n.scale)
	}
	n.updateWorld()
	n.isTransformed = false
	n.isDirty = n.parent != nil && n.parent.isDirty
	n.mounted = true

	for _, b := range n.bindings {
		b.Mount(n)
	}
	for _, c := range n.children {
		c.mount()
	}
}

func (n *Node) unmount() {
	for _, c := range n.children {
		c.unmount()
	}
	for i := len(n.bindings) - 1; i >= 0; i-- {
		n.bindings[i].Unmount(n)
	}
	n.graph.registry.remove(n)
	n.mounted = false
}

// Destroy deactivates and detaches the node, destroys its children, and
// invalidates its handle. Bindings receive Unmount if the node was active.
func (n *Node) Destroy() error {
	if err := n.checkStructural("Destroy"); err != nil {
		return err
	}
	if n.parent != nil {
		if err := n.parent.RemoveChild(n); err != nil {
			return err
		}
	} else if n.mounted {
		n.unmount()
	}
	n.destroyDetached()
	return nil
}

func (n *Node) destroyDetached() {
	for _, c := range n.children {
		c.parent = nil
		c.destroyDetached()
	}
	n.children = nil
	n.bindings = nil
	n.graph.release(n)
	n.graph = nil
}

func (n *Node) String() string {
	if n.name != "" {
		return n.name + n.handle.String()
	}
	return n.handle.String()
}
