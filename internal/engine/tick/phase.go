// Package tick implements the fixed-timestep frame scheduler.
package tick

// Phase is one stage of a frame. Phases run in declaration order; the fixed
// phases repeat once per fixed step.
type Phase int

const (
	PhasePreTick Phase = iota
	PhaseFixedUpdate
	PhasePhysicsStep
	PhaseInterpolate
	PhaseUpdate
	PhaseLateUpdate
	PhaseCommit

	phaseCount
)

var phaseNames = [phaseCount]string{
	"pre_tick",
	"fixed_update",
	"physics_step",
	"interpolate",
	"update",
	"late_update",
	"commit",
}

func (p Phase) String() string {
	if p < 0 || p >= phaseCount {
		return "unknown"
	}
	return phaseNames[p]
}

// Phases returns every phase in execution order.
func Phases() []Phase {
	out := make([]Phase, phaseCount)
	for i := range out {
		out[i] = Phase(i)
	}
	return out
}
