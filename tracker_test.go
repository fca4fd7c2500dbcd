package otg

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func trackerInput(dofs int) *Input {
	in := NewInput(dofs)
	for i := 0; i < dofs; i++ {
		in.MaxVelocity[i] = 2
		in.MaxAcceleration[i] = 4
		in.MaxJerk[i] = 20
	}
	return in
}

func TestTracker_FollowsRamp(t *testing.T) {
	tr, err := NewTracker(Config{DOFs: 1, Cycle: testCycle})
	require.NoError(t, err)

	in := trackerInput(1)
	out := NewOutput(1)
	target := make([]State, 1)

	// Target slides at constant velocity well under the axis limit.
	const slope = 0.5
	for cycle := 1; cycle <= 300; cycle++ {
		tm := float64(cycle) * testCycle.Seconds()
		target[0] = State{Position: slope * tm, Velocity: slope}
		_, err := tr.Update(target, in, out)
		require.NoError(t, err)
		if !out.NewCalculation {
			t.Fatalf("cycle %d: tracker must recompute every cycle", cycle)
		}
		if math.Abs(out.NewVelocity[0]) > in.MaxVelocity[0]+1e-9 {
			t.Fatalf("cycle %d: velocity %v beyond limit", cycle, out.NewVelocity[0])
		}
		out.PassToInput(in)
	}

	finalTarget := slope * 300 * testCycle.Seconds()
	if gap := math.Abs(out.NewPosition[0] - finalTarget); gap > 0.2 {
		t.Fatalf("position lag %v after 3s, want under 0.2", gap)
	}
	if math.Abs(out.NewVelocity[0]-slope) > 0.1 {
		t.Fatalf("velocity %v, want near %v", out.NewVelocity[0], slope)
	}
}

func TestTracker_RampThenHold(t *testing.T) {
	// The target slides up a ramp and then stops dead. Settling onto
	// the hold point routes the solver through slight-overshoot states
	// with near-zero displacement, which every cycle must still solve.
	tr, err := NewTracker(Config{DOFs: 1, Cycle: testCycle})
	require.NoError(t, err)

	in := trackerInput(1)
	in.MaxVelocity[0] = 0.8
	in.MaxAcceleration[0] = 2
	in.MaxJerk[0] = 5
	out := NewOutput(1)
	target := make([]State, 1)

	const (
		slope = 0.5
		hold  = 1.0
	)
	for cycle := 1; cycle <= 500; cycle++ {
		tm := float64(cycle) * testCycle.Seconds()
		if pos := slope * tm; pos < hold {
			target[0] = State{Position: pos, Velocity: slope}
		} else {
			target[0] = State{Position: hold}
		}
		_, err := tr.Update(target, in, out)
		require.NoError(t, err, "cycle %d", cycle)
		out.PassToInput(in)
	}

	if math.Abs(out.NewPosition[0]-hold) > 1e-3 {
		t.Fatalf("position %v, want settled at %v", out.NewPosition[0], hold)
	}
	if math.Abs(out.NewVelocity[0]) > 1e-3 {
		t.Fatalf("velocity %v, want settled at rest", out.NewVelocity[0])
	}
}

func TestTracker_ReactivenessFiltersMotion(t *testing.T) {
	run := func(r float64) float64 {
		tr, err := NewTracker(Config{DOFs: 1, Cycle: testCycle})
		require.NoError(t, err)
		tr.Reactiveness = r

		in := trackerInput(1)
		out := NewOutput(1)
		target := []State{{Position: 1}}
		for cycle := 0; cycle < 50; cycle++ {
			_, err := tr.Update(target, in, out)
			require.NoError(t, err)
			out.PassToInput(in)
		}
		return out.NewPosition[0]
	}

	direct := run(1)
	filtered := run(0.2)
	if direct <= filtered {
		t.Fatalf("direct tracking reached %v, filtered %v; want direct ahead", direct, filtered)
	}
	if filtered <= 0 {
		t.Fatalf("filtered tracking did not move: %v", filtered)
	}

	frozen := run(0)
	if frozen != 0 {
		t.Fatalf("zero reactiveness moved to %v", frozen)
	}
}

func TestTracker_PositionBoundsClampTarget(t *testing.T) {
	tr, err := NewTracker(Config{DOFs: 1, Cycle: testCycle})
	require.NoError(t, err)

	in := trackerInput(1)
	in.MinPosition = []float64{-1}
	in.MaxPosition = []float64{1}
	out := NewOutput(1)

	// The moving target sits far outside the box; the tracker must
	// settle on the near face instead.
	target := []State{{Position: 5, Velocity: 0.3}}
	for cycle := 0; cycle < 400; cycle++ {
		_, err := tr.Update(target, in, out)
		require.NoError(t, err)
		if out.NewPosition[0] > 1+1e-9 {
			t.Fatalf("cycle %d: position %v beyond the box", cycle, out.NewPosition[0])
		}
		out.PassToInput(in)
	}
	if in.TargetPosition[0] != 1 || in.TargetVelocity[0] != 0 {
		t.Fatalf("recorded target = (%v, %v), want clamped (1, 0)",
			in.TargetPosition[0], in.TargetVelocity[0])
	}
	if math.Abs(out.NewPosition[0]-1) > 1e-3 {
		t.Fatalf("position %v, want settled at 1", out.NewPosition[0])
	}
	if math.Abs(out.NewVelocity[0]) > 1e-3 {
		t.Fatalf("velocity %v, want settled at rest", out.NewVelocity[0])
	}
}

func TestTracker_VelocityInterface(t *testing.T) {
	tr, err := NewTracker(Config{DOFs: 1, Cycle: testCycle})
	require.NoError(t, err)

	in := trackerInput(1)
	in.ControlInterface = ControlVelocity
	out := NewOutput(1)

	target := []State{{Velocity: 1.5}}
	for cycle := 0; cycle < 200; cycle++ {
		_, err := tr.Update(target, in, out)
		require.NoError(t, err)
		out.PassToInput(in)
	}
	if math.Abs(out.NewVelocity[0]-1.5) > 1e-6 {
		t.Fatalf("velocity %v, want 1.5", out.NewVelocity[0])
	}
	if out.NewPosition[0] <= 0 {
		t.Fatalf("position %v, want forward motion", out.NewPosition[0])
	}
}

func TestTracker_Validation(t *testing.T) {
	if _, err := NewTracker(Config{DOFs: 1}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("zero cycle: err = %v, want invalid input", err)
	}
	if _, err := NewTracker(Config{DOFs: 0, Cycle: testCycle}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("no axes: err = %v, want invalid input", err)
	}

	tr, err := NewTracker(Config{DOFs: 2, Cycle: testCycle})
	require.NoError(t, err)
	in := trackerInput(2)
	out := NewOutput(2)
	if _, err := tr.Update([]State{{}}, in, out); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("short target slice: err = %v, want invalid input", err)
	}
}

func TestTracker_DefaultReactiveness(t *testing.T) {
	tr, err := NewTracker(Config{DOFs: 1, Cycle: 20 * time.Millisecond})
	require.NoError(t, err)
	if tr.Reactiveness != 1 {
		t.Fatalf("default reactiveness %v, want 1", tr.Reactiveness)
	}
}