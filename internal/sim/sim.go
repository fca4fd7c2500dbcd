// Package sim runs closed-loop motion scenarios against the public
// generator API and records the sampled kinematics. Recordings feed
// the persistence and monitoring layers and the scenario tests.
package sim

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/banshee-data/otg"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Sample is the state of every axis at one control cycle.
type Sample struct {
	Time         float64
	Position     []float64
	Velocity     []float64
	Acceleration []float64
	Jerk         []float64

	// TargetPosition is the moving target at this cycle. Nil for runs
	// against a fixed target.
	TargetPosition []float64
}

// Recording is the full motion history of one closed-loop run.
type Recording struct {
	DOFs     int
	Cycle    float64
	Samples  []Sample
	Finished bool

	// PlannedDuration is the duration of the first computed
	// trajectory; zero for tracking runs, which replan every cycle.
	PlannedDuration float64
	// FirstCalculation is the wall-clock cost of the initial solve.
	FirstCalculation time.Duration
}

// Duration is the elapsed time covered by the recording.
func (r *Recording) Duration() float64 {
	if len(r.Samples) == 0 {
		return 0
	}
	return r.Samples[len(r.Samples)-1].Time
}

// AxisSummary aggregates the motion of one axis over a recording.
type AxisSummary struct {
	PeakVelocity     float64
	PeakAcceleration float64
	FinalPosition    float64
	// TrackingRMS is the root-mean-square gap to the moving target,
	// zero for fixed-target runs.
	TrackingRMS float64
}

// Summarize reduces the recording to per-axis aggregates.
func (r *Recording) Summarize() []AxisSummary {
	out := make([]AxisSummary, r.DOFs)
	if len(r.Samples) == 0 {
		return out
	}
	speeds := make([]float64, len(r.Samples))
	accels := make([]float64, len(r.Samples))
	var gaps []float64
	for i := 0; i < r.DOFs; i++ {
		for k, s := range r.Samples {
			speeds[k] = math.Abs(s.Velocity[i])
			accels[k] = math.Abs(s.Acceleration[i])
		}
		sum := AxisSummary{
			PeakVelocity:     floats.Max(speeds),
			PeakAcceleration: floats.Max(accels),
			FinalPosition:    r.Samples[len(r.Samples)-1].Position[i],
		}
		if r.Samples[0].TargetPosition != nil {
			gaps = gaps[:0]
			for _, s := range r.Samples {
				gap := s.Position[i] - s.TargetPosition[i]
				gaps = append(gaps, gap*gap)
			}
			sum.TrackingRMS = math.Sqrt(stat.Mean(gaps, nil))
		}
		out[i] = sum
	}
	return out
}

// RunLoop drives the generator until it reports Finished, feeding each
// cycle's sample back as the next cycle's current state. It errors
// when the loop is still working after maxCycles.
func RunLoop(g *otg.Generator, in *otg.Input, cycle time.Duration, maxCycles int) (*Recording, error) {
	dofs := len(in.CurrentPosition)
	out := otg.NewOutput(dofs)
	rec := &Recording{DOFs: dofs, Cycle: cycle.Seconds()}

	for n := 0; n < maxCycles; n++ {
		res, err := g.Update(in, out)
		if err != nil {
			return nil, fmt.Errorf("cycle %d: %w", n, err)
		}
		if out.NewCalculation && rec.PlannedDuration == 0 {
			rec.PlannedDuration = out.Trajectory.Duration()
			rec.FirstCalculation = out.CalculationDuration
		}
		rec.Samples = append(rec.Samples, snapshot(out, nil))
		if res == otg.Finished {
			rec.Finished = true
			return rec, nil
		}
		out.PassToInput(in)
	}
	return nil, fmt.Errorf("still working after %d cycles", maxCycles)
}

// RunTracking drives a tracker against per-axis moving targets for a
// fixed number of cycles.
func RunTracking(tr *otg.Tracker, in *otg.Input, targets []Target, cycle time.Duration, cycles int) (*Recording, error) {
	dofs := len(in.CurrentPosition)
	if len(targets) != dofs {
		return nil, fmt.Errorf("%d targets for %d axes", len(targets), dofs)
	}
	out := otg.NewOutput(dofs)
	rec := &Recording{DOFs: dofs, Cycle: cycle.Seconds()}
	states := make([]otg.State, dofs)

	for n := 1; n <= cycles; n++ {
		tm := float64(n) * cycle.Seconds()
		goal := make([]float64, dofs)
		for i, tgt := range targets {
			states[i] = tgt.At(tm)
			goal[i] = states[i].Position
		}
		if _, err := tr.Update(states, in, out); err != nil {
			return nil, fmt.Errorf("cycle %d: %w", n, err)
		}
		s := snapshot(out, goal)
		s.Time = tm
		rec.Samples = append(rec.Samples, s)
		out.PassToInput(in)
	}
	rec.Finished = true
	return rec, nil
}

func snapshot(out *otg.Output, goal []float64) Sample {
	return Sample{
		Time:           out.Time,
		Position:       slices.Clone(out.NewPosition),
		Velocity:       slices.Clone(out.NewVelocity),
		Acceleration:   slices.Clone(out.NewAcceleration),
		Jerk:           slices.Clone(out.NewJerk),
		TargetPosition: goal,
	}
}