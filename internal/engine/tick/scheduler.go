package tick

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-world/internal/logger"
	"github.com/Faultbox/midgard-world/internal/metrics"
)

// Frame is the state handed to hooks.
type Frame struct {
	Index uint64        // Frame counter, starting at 1
	Step  uint64        // Fixed steps completed before this hook ran
	Delta time.Duration // Clamped frame delta; the fixed delta inside fixed phases
	Fixed time.Duration // Fixed step length
	Alpha float32       // Blend factor between the last two fixed steps
	Phase Phase
}

// Seconds returns Delta in seconds.
func (f *Frame) Seconds() float32 {
	return float32(f.Delta.Seconds())
}

// Hook is a unit of per-phase work.
type Hook func(f *Frame) error

type namedHook struct {
	name string
	fn   Hook
}

// Scheduler advances simulation time in fixed steps and runs phase hooks.
// Time is accounted in integer nanoseconds so identical deltas yield
// identical step counts everywhere.
type Scheduler struct {
	fixed    time.Duration
	maxDelta time.Duration

	acc   time.Duration
	last  time.Time
	alpha float32
	frame uint64
	step  uint64

	hooks    [phaseCount][]namedHook
	failures uint64
	inFrame  bool
	log      *zap.Logger
}

// New creates a scheduler. maxDelta bounds a single frame's delta.
func New(fixed, maxDelta time.Duration) *Scheduler {
	if fixed <= 0 {
		panic("tick: fixed delta must be positive")
	}
	if maxDelta < fixed {
		maxDelta = fixed
	}
	return &Scheduler{
		fixed:    fixed,
		maxDelta: maxDelta,
		log:      logger.Named("tick"),
	}
}

// Register appends a hook to a phase. Hooks run in registration order.
func (s *Scheduler) Register(p Phase, name string, h Hook) {
	s.hooks[p] = append(s.hooks[p], namedHook{name: name, fn: h})
}

// FixedDelta returns the fixed step length.
func (s *Scheduler) FixedDelta() time.Duration { return s.fixed }

// MaxDelta returns the frame delta clamp.
func (s *Scheduler) MaxDelta() time.Duration { return s.maxDelta }

// Alpha returns the interpolation factor of the last frame, in [0, 1).
func (s *Scheduler) Alpha() float32 { return s.alpha }

// Accumulator returns the simulated time not yet consumed by fixed steps.
func (s *Scheduler) Accumulator() time.Duration { return s.acc }

// FrameIndex returns the number of frames run.
func (s *Scheduler) FrameIndex() uint64 { return s.frame }

// StepIndex returns the number of fixed steps run.
func (s *Scheduler) StepIndex() uint64 { return s.step }

// Failures returns the number of hooks that failed.
func (s *Scheduler) Failures() uint64 { return s.failures }

// Tick runs a frame for wall-clock time now. The first call establishes the
// time base and runs a zero-delta frame.
func (s *Scheduler) Tick(now time.Time) Frame {
	var delta time.Duration
	if !s.last.IsZero() {
		delta = now.Sub(s.last)
	}
	s.last = now
	return s.Advance(delta)
}

// Advance runs one frame with an explicit delta.
func (s *Scheduler) Advance(delta time.Duration) Frame {
	if s.inFrame {
		s.log.Error("nested frame refused", zap.Uint64("frame", s.frame))
		return Frame{Index: s.frame, Step: s.step, Fixed: s.fixed, Alpha: s.alpha}
	}
	s.inFrame = true
	defer func() { s.inFrame = false }()

	start := time.Now()
	if delta < 0 {
		delta = 0
	}
	if delta > s.maxDelta {
		s.log.Debug("frame delta clamped",
			zap.Duration("delta", delta),
			zap.Duration("max", s.maxDelta))
		delta = s.maxDelta
		metrics.FrameClamps.Inc()
	}

	s.frame++
	s.acc += delta
	f := Frame{Index: s.frame, Step: s.step, Delta: delta, Fixed: s.fixed, Alpha: s.alpha}

	s.run(PhasePreTick, &f)

	for s.acc >= s.fixed {
		f.Delta = s.fixed
		s.run(PhaseFixedUpdate, &f)
		s.run(PhasePhysicsStep, &f)
		s.acc -= s.fixed
		s.step++
		f.Step = s.step
		metrics.FixedSteps.Inc()
	}

	s.alpha = float32(float64(s.acc) / float64(s.fixed))
	f.Alpha = s.alpha
	f.Delta = delta

	s.run(PhaseInterpolate, &f)
	s.run(PhaseUpdate, &f)
	s.run(PhaseLateUpdate, &f)
	s.run(PhaseCommit, &f)

	metrics.Frames.Inc()
	metrics.FrameSeconds.Observe(time.Since(start).Seconds())
	return f
}

func (s *Scheduler) run(p Phase, f *Frame) {
	f.Phase = p
	for _, h := range s.hooks[p] {
		if err := s.call(h, f); err != nil {
			s.failures++
			metrics.HookFailures.WithLabelValues(p.String(), h.name).Inc()
			s.log.Error("hook failed",
				zap.Stringer("phase", p),
				zap.String("hook", h.name),
				zap.Uint64("frame", f.Index),
				zap.Uint64("step", f.Step),
				zap.Error(err))
		}
	}
}

func (s *Scheduler) call(h namedHook, f *Frame) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h.fn(f)
}

// Run drives frames from a ticker until ctx is cancelled. A non-positive
// interval ticks at the fixed rate.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = s.fixed
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info("scheduler running",
		zap.Duration("fixed", s.fixed),
		zap.Duration("interval", interval))

	s.Tick(time.Now())
	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped",
				zap.Uint64("frames", s.frame),
				zap.Uint64("steps", s.step))
			return nil
		case now := <-ticker.C:
			s.Tick(now)
		}
	}
}
