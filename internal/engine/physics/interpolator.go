package physics

import "github.com/Faultbox/midgard-world/internal/engine/transform"

type snapshot struct {
	prev, next Pose
}

// Interpolator keeps the poses of the last two fixed steps per actor so
// render transforms can be blended with the scheduler's alpha.
type Interpolator struct {
	poses map[transform.Handle]*snapshot
}

// NewInterpolator creates an empty interpolator.
func NewInterpolator() *Interpolator {
	return &Interpolator{poses: make(map[transform.Handle]*snapshot)}
}

// Record stores the pose reached by the latest step. The first record for an
// actor seeds both ends.
func (ip *Interpolator) Record(h transform.Handle, pose Pose) {
	s, ok := ip.poses[h]
	if !ok {
		ip.poses[h] = &snapshot{prev: pose, next: pose}
		return
	}
	s.prev = s.next
	s.next = pose
}

// Sample blends the stored poses: alpha 0 is the previous step, 1 the latest.
func (ip *Interpolator) Sample(h transform.Handle, alpha float32) (Pose, bool) {
	s, ok := ip.poses[h]
	if !ok {
		return Pose{}, false
	}
	return s.prev.Blend(s.next, alpha), true
}

// Forget drops an actor's history.
func (ip *Interpolator) Forget(h transform.Handle) {
	delete(ip.poses, h)
}
