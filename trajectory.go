package otg

import (
	"slices"

	"github.com/banshee-data/otg/internal/profile"
)

// Trajectory is an immutable synchronized plan across all axes. It is
// safe to sample from multiple goroutines and stays valid after the
// generator that produced it moves on.
type Trajectory struct {
	profiles     []profile.Profile
	duration     float64
	minDurations []float64
	sections     []float64
}

// DOFs is the number of axes the trajectory spans.
func (t *Trajectory) DOFs() int { return len(t.profiles) }

// Duration is the synchronized duration in seconds.
func (t *Trajectory) Duration() float64 { return t.duration }

// At samples every axis at time tm, clamped to [0, Duration]: queries
// before zero return the initial state, queries past the end hold the
// final state. Each destination slice may be nil to skip that
// component; non-nil slices must have DOFs entries.
func (t *Trajectory) At(tm float64, pos, vel, acc []float64) {
	t.at(tm, pos, vel, acc, nil)
}

func (t *Trajectory) at(tm float64, pos, vel, acc, jerk []float64) {
	for i := range t.profiles {
		s, j := t.profiles[i].At(tm)
		if pos != nil {
			pos[i] = s.Position
		}
		if vel != nil {
			vel[i] = s.Velocity
		}
		if acc != nil {
			acc[i] = s.Acceleration
		}
		if jerk != nil {
			jerk[i] = j
		}
	}
}

// IndependentMinDurations reports the per-axis minimum durations the
// synchronized duration was raised from. It is nil for waypoint
// trajectories, where each leg has its own minimums.
func (t *Trajectory) IndependentMinDurations() []float64 {
	return slices.Clone(t.minDurations)
}

// SectionTimes reports the cumulative end time of each waypoint
// section. Trajectories without waypoints have a single section ending
// at Duration.
func (t *Trajectory) SectionTimes() []float64 {
	return slices.Clone(t.sections)
}

// Extremum is the positional range of one axis over a trajectory and
// the times the bounds occur at.
type Extremum struct {
	Min, TMin float64
	Max, TMax float64
}

// PositionExtrema reports, per axis, the extreme positions reached
// anywhere on the trajectory, endpoints included.
func (t *Trajectory) PositionExtrema() []Extremum {
	out := make([]Extremum, len(t.profiles))
	for i := range t.profiles {
		ex := t.profiles[i].PositionExtrema()
		out[i] = Extremum{Min: ex.Min, TMin: ex.TMin, Max: ex.Max, TMax: ex.TMax}
	}
	return out
}