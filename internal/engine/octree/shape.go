package octree

import (
	"github.com/Faultbox/midgard-world/internal/engine/picking"
	"github.com/Faultbox/midgard-world/pkg/math"
)

// Shape is an item's local-space geometry.
type Shape interface {
	// Bounds returns the local-space bounding box.
	Bounds() picking.AABB
	// BoundingSphere returns a local-space sphere enclosing the shape.
	BoundingSphere() (center math.Vec3, radius float32)
	// Raycast tests a local-space ray. The ray direction may be
	// unnormalized; the returned distance is in ray parameter units.
	Raycast(r picking.Ray) (float32, bool)
}

// BoxShape is an axis-aligned box in local space.
type BoxShape struct {
	Box picking.AABB
}

// NewBoxShape returns a box centered on the origin.
func NewBoxShape(halfExtents math.Vec3) BoxShape {
	return BoxShape{Box: picking.AABB{Min: halfExtents.Scale(-1), Max: halfExtents}}
}

func (s BoxShape) Bounds() picking.AABB { return s.Box }

func (s BoxShape) BoundingSphere() (math.Vec3, float32) {
	return s.Box.Center(), s.Box.Extents().Length()
}

func (s BoxShape) Raycast(r picking.Ray) (float32, bool) {
	return r.IntersectAABB(s.Box)
}

// SphereShape is a sphere in local space.
type SphereShape struct {
	Center math.Vec3
	Radius float32
}

func (s SphereShape) Bounds() picking.AABB {
	e := splat(s.Radius)
	return picking.AABB{Min: s.Center.Sub(e), Max: s.Center.Add(e)}
}

func (s SphereShape) BoundingSphere() (math.Vec3, float32) {
	return s.Center, s.Radius
}

func (s SphereShape) Raycast(r picking.Ray) (float32, bool) {
	return r.IntersectSphere(s.Center, s.Radius)
}
