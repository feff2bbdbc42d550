package tick

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Faultbox/midgard-world/internal/metrics"
)

func TestFixedStepsForSingleFrame(t *testing.T) {
	s := New(time.Second/50, time.Second)
	fixed := 0
	s.Register(PhaseFixedUpdate, "count", func(*Frame) error {
		fixed++
		return nil
	})

	f := s.Advance(100 * time.Millisecond)
	if fixed != 5 {
		t.Errorf("fixed updates = %d, want 5", fixed)
	}
	if f.Alpha != 0 || s.Alpha() != 0 {
		t.Errorf("alpha = %f, want 0", f.Alpha)
	}
	if s.StepIndex() != 5 || s.FrameIndex() != 1 {
		t.Errorf("steps=%d frames=%d", s.StepIndex(), s.FrameIndex())
	}
}

func TestAlphaCarriesRemainder(t *testing.T) {
	s := New(20*time.Millisecond, time.Second)
	s.Advance(30 * time.Millisecond)
	if s.StepIndex() != 1 {
		t.Fatalf("steps = %d, want 1", s.StepIndex())
	}
	if s.Alpha() != 0.5 {
		t.Errorf("alpha = %f, want 0.5", s.Alpha())
	}
	s.Advance(10 * time.Millisecond)
	if s.StepIndex() != 2 || s.Alpha() != 0 {
		t.Errorf("steps=%d alpha=%f, want 2 and 0", s.StepIndex(), s.Alpha())
	}
}

func TestFrameDeltaClamp(t *testing.T) {
	tests := []struct {
		name      string
		delta     time.Duration
		wantSteps uint64
		wantAcc   time.Duration
	}{
		{"stall clamped", 5 * time.Second, 12, 10 * time.Millisecond},
		{"negative ignored", -time.Second, 0, 0},
		{"exact max", 250 * time.Millisecond, 12, 10 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(20*time.Millisecond, 250*time.Millisecond)
			before := testutil.ToFloat64(metrics.FrameClamps)
			s.Advance(tt.delta)
			if s.StepIndex() != tt.wantSteps {
				t.Errorf("steps = %d, want %d", s.StepIndex(), tt.wantSteps)
			}
			if s.Accumulator() != tt.wantAcc {
				t.Errorf("accumulator = %v, want %v", s.Accumulator(), tt.wantAcc)
			}
			clamped := testutil.ToFloat64(metrics.FrameClamps) - before
			if (tt.delta > s.MaxDelta()) != (clamped == 1) {
				t.Errorf("clamp metric delta = %v", clamped)
			}
		})
	}
}

func TestAccumulatorStaysBelowFixed(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	s := New(16*time.Millisecond, 100*time.Millisecond)
	var total time.Duration
	for i := 0; i < 1000; i++ {
		d := time.Duration(rng.Int63n(int64(60 * time.Millisecond)))
		total += d
		s.Advance(d)
		if s.Accumulator() < 0 || s.Accumulator() >= s.FixedDelta() {
			t.Fatalf("frame %d: accumulator %v out of range", i, s.Accumulator())
		}
		if s.Alpha() < 0 || s.Alpha() >= 1 {
			t.Fatalf("frame %d: alpha %f out of range", i, s.Alpha())
		}
	}
	// No delta exceeded the clamp, so no time was lost.
	if got := time.Duration(s.StepIndex())*s.FixedDelta() + s.Accumulator(); got != total {
		t.Errorf("simulated %v, fed %v", got, total)
	}
}

func TestPhaseOrder(t *testing.T) {
	s := New(10*time.Millisecond, time.Second)
	var order []string
	for _, p := range Phases() {
		p := p
		s.Register(p, "rec", func(f *Frame) error {
			if f.Phase != p {
				t.Errorf("hook for %s saw phase %s", p, f.Phase)
			}
			order = append(order, p.String())
			return nil
		})
	}

	s.Advance(20 * time.Millisecond)
	want := []string{
		"pre_tick",
		"fixed_update", "physics_step",
		"fixed_update", "physics_step",
		"interpolate", "update", "late_update", "commit",
	}
	if fmt.Sprint(order) != fmt.Sprint(want) {
		t.Errorf("order = %v\nwant  %v", order, want)
	}
}

func TestHooksRunInRegistrationOrder(t *testing.T) {
	s := New(10*time.Millisecond, time.Second)
	var got []string
	for _, name := range []string{"a", "b", "c"} {
		name := name
		s.Register(PhaseUpdate, name, func(*Frame) error {
			got = append(got, name)
			return nil
		})
	}
	s.Advance(0)
	if fmt.Sprint(got) != "[a b c]" {
		t.Errorf("got %v", got)
	}
}

func TestHookFailureDoesNotHaltFrame(t *testing.T) {
	s := New(10*time.Millisecond, time.Second)
	failing := metrics.HookFailures.WithLabelValues("fixed_update", "explode")
	before := testutil.ToFloat64(failing)

	after := 0
	s.Register(PhaseFixedUpdate, "broken", func(*Frame) error { return errors.New("boom") })
	s.Register(PhaseFixedUpdate, "explode", func(*Frame) error { panic("kaboom") })
	s.Register(PhaseFixedUpdate, "after", func(*Frame) error {
		after++
		return nil
	})
	committed := false
	s.Register(PhaseCommit, "commit", func(*Frame) error {
		committed = true
		return nil
	})

	s.Advance(30 * time.Millisecond)
	if after != 3 {
		t.Errorf("later hook ran %d times, want 3", after)
	}
	if !committed {
		t.Error("commit phase skipped after failures")
	}
	if s.Failures() != 6 {
		t.Errorf("failures = %d, want 6", s.Failures())
	}
	if got := testutil.ToFloat64(failing) - before; got != 3 {
		t.Errorf("panic failures counted = %v, want 3", got)
	}
}

func TestNestedAdvanceRefused(t *testing.T) {
	s := New(10*time.Millisecond, time.Second)
	s.Register(PhaseUpdate, "nested", func(*Frame) error {
		s.Advance(time.Second)
		return nil
	})
	s.Advance(10 * time.Millisecond)
	if s.FrameIndex() != 1 || s.StepIndex() != 1 {
		t.Errorf("nested frame ran: frames=%d steps=%d", s.FrameIndex(), s.StepIndex())
	}
}

func TestTickUsesWallClock(t *testing.T) {
	s := New(20*time.Millisecond, time.Second)
	base := time.Unix(1000, 0)

	s.Tick(base)
	if s.StepIndex() != 0 {
		t.Fatal("first tick should only set the time base")
	}
	s.Tick(base.Add(50 * time.Millisecond))
	if s.StepIndex() != 2 || s.Accumulator() != 10*time.Millisecond {
		t.Errorf("steps=%d acc=%v", s.StepIndex(), s.Accumulator())
	}
	s.Tick(base.Add(40 * time.Millisecond)) // clock went backwards
	if s.StepIndex() != 2 {
		t.Errorf("backwards clock should not step, steps=%d", s.StepIndex())
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	s := New(time.Millisecond, 50*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.Register(PhaseCommit, "stop", func(f *Frame) error {
		if f.Index >= 5 {
			cancel()
		}
		return nil
	})

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, time.Millisecond) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
	if s.FrameIndex() < 5 {
		t.Errorf("frames = %d, want >= 5", s.FrameIndex())
	}
}
