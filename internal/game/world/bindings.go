package world

import (
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-world/internal/engine/octree"
	"github.com/Faultbox/midgard-world/internal/engine/transform"
	"github.com/Faultbox/midgard-world/internal/logger"
	"github.com/Faultbox/midgard-world/pkg/math"
)

// ItemBinding keeps a collider item in the loose tree in step with its node.
// The item reads the node's world matrix directly, so a move after commit
// only refreshes its bounds.
type ItemBinding struct {
	tree *octree.Loose
	item *octree.Item
}

// Item returns the bound item.
func (b *ItemBinding) Item() *octree.Item { return b.item }

func (b *ItemBinding) Mount(n *transform.Node) {
	b.item.Matrix = n.WorldRef()
	b.item.Owner = n.Handle()
	b.insert(n)
}

func (b *ItemBinding) Commit(n *transform.Node, didTransform bool) {
	if !didTransform {
		return
	}
	if !b.item.Inserted() {
		// A failed insert or move dropped the item; try again from the new pose.
		b.insert(n)
		return
	}
	if err := b.tree.Move(b.item); err != nil {
		logger.Named("world").Warn("collider dropped on move", zap.Stringer("node", n), zap.Error(err))
	}
}

func (b *ItemBinding) Unmount(n *transform.Node) {
	if b.item.Inserted() {
		_ = b.tree.Remove(b.item)
	}
}

func (b *ItemBinding) insert(n *transform.Node) {
	if err := b.tree.Insert(b.item); err != nil {
		logger.Named("world").Warn("collider not inserted", zap.Stringer("node", n), zap.Error(err))
	}
}

// SnapBinding keeps a snap point at a local offset of its node.
type SnapBinding struct {
	tree   *octree.Snap
	offset math.Vec3
	point  *octree.Point
	active bool
}

// Point returns the current point, nil while unmounted.
func (b *SnapBinding) Point() *octree.Point { return b.point }

// SetActive toggles whether queries see the point.
func (b *SnapBinding) SetActive(active bool) {
	b.active = active
	if b.point != nil {
		b.tree.SetActive(b.point, active)
	}
}

func (b *SnapBinding) position(n *transform.Node) math.Vec3 {
	return n.WorldMatrix().TransformPoint(b.offset)
}

func (b *SnapBinding) Mount(n *transform.Node) {
	b.point = octree.NewPoint(b.position(n), n.Handle())
	b.tree.SetActive(b.point, b.active)
	if err := b.tree.Insert(b.point); err != nil {
		logger.Named("world").Warn("snap point not inserted", zap.Stringer("node", n), zap.Error(err))
	}
}

func (b *SnapBinding) Commit(n *transform.Node, didTransform bool) {
	if !didTransform {
		return
	}
	if b.point == nil || !b.point.Inserted() {
		b.Mount(n)
		return
	}
	if err := b.tree.Move(b.point, b.position(n)); err != nil {
		logger.Named("world").Warn("snap point dropped on move", zap.Stringer("node", n), zap.Error(err))
	}
}

func (b *SnapBinding) Unmount(n *transform.Node) {
	if b.point != nil && b.point.Inserted() {
		_ = b.tree.Remove(b.point)
	}
	b.point = nil
}
