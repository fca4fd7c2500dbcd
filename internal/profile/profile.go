// Package profile holds the piecewise constant-jerk motion primitive
// shared by the solver and trajectory layers. A profile is an ordered
// run of phases, each integrating position, velocity and acceleration
// under one jerk value, anchored at a fixed initial state. Solvers
// append phases; trajectories sample them.
package profile

import (
	"sort"

	"github.com/banshee-data/otg/internal/roots"
	"gonum.org/v1/gonum/floats/scalar"
)

// State is the kinematic condition of a single axis at one instant.
type State struct {
	Position     float64
	Velocity     float64
	Acceleration float64
}

// Integrate advances a state by t seconds under constant jerk j using
// the exact polynomial solution.
func Integrate(s State, j, t float64) State {
	return State{
		Position:     s.Position + t*(s.Velocity+t*(s.Acceleration/2+t*j/6)),
		Velocity:     s.Velocity + t*(s.Acceleration+t*j/2),
		Acceleration: s.Acceleration + t*j,
	}
}

// Phase is one constant-jerk section. Entry is the state at the start
// of the phase and End the cumulative profile time at its end, both
// precomputed so sampling is a binary search plus one integration.
type Phase struct {
	Duration float64
	Jerk     float64
	Entry    State
	End      float64
}

// Profile is the motion of one axis. It is append-only while a solver
// builds it and treated as immutable once wrapped in a trajectory.
type Profile struct {
	start    State
	final    State
	phases   []Phase
	duration float64
}

// New returns an empty profile anchored at start. An empty profile has
// zero duration and samples as start everywhere.
func New(start State) Profile {
	return Profile{start: start, final: start}
}

// Append adds one constant-jerk phase. Non-positive durations are
// dropped, which lets solvers hand over section times with degenerate
// zero phases without special-casing them.
func (p *Profile) Append(duration, jerk float64) {
	if duration <= 0 {
		return
	}
	entry := p.final
	p.duration += duration
	p.phases = append(p.phases, Phase{
		Duration: duration,
		Jerk:     jerk,
		Entry:    entry,
		End:      p.duration,
	})
	p.final = Integrate(entry, jerk, duration)
}

// Duration is the total time the profile spans.
func (p *Profile) Duration() float64 { return p.duration }

// Start is the profile's anchor state at time zero.
func (p *Profile) Start() State { return p.start }

// Final is the profile's end state; after Seal it is the exact target.
func (p *Profile) Final() State { return p.final }

// Phases exposes the phase run for scaling and plotting.
func (p *Profile) Phases() []Phase { return p.phases }

// At samples the state and active jerk at time t. Queries before zero
// return the initial state, queries at or past the duration return the
// final state with zero jerk, so a finished profile holds its target.
func (p *Profile) At(t float64) (State, float64) {
	if len(p.phases) == 0 || t >= p.duration {
		return p.final, 0
	}
	if t <= 0 {
		return p.start, p.phases[0].Jerk
	}
	i := sort.Search(len(p.phases), func(i int) bool { return p.phases[i].End > t })
	ph := p.phases[i]
	return Integrate(ph.Entry, ph.Jerk, t-(ph.End-ph.Duration)), ph.Jerk
}

const (
	sealAbsTol = 1e-6
	sealRelTol = 1e-6
)

// Seal replaces the integrated endpoint with target, which the caller
// solved for analytically. It reports false when the accumulated
// endpoint disagrees with target beyond tolerance, meaning the phase
// durations do not actually reach it.
func (p *Profile) Seal(target State) bool {
	if !scalar.EqualWithinAbsOrRel(p.final.Position, target.Position, sealAbsTol, sealRelTol) ||
		!scalar.EqualWithinAbsOrRel(p.final.Velocity, target.Velocity, sealAbsTol, sealRelTol) ||
		!scalar.EqualWithinAbsOrRel(p.final.Acceleration, target.Acceleration, sealAbsTol, sealRelTol) {
		return false
	}
	p.final = target
	return true
}

// Concat appends every phase of next onto p. next must begin where p
// ends; its sealed endpoint becomes the combined endpoint so section
// boundaries stay exact under chaining.
func (p *Profile) Concat(next Profile) {
	for _, ph := range next.phases {
		p.Append(ph.Duration, ph.Jerk)
	}
	p.final = next.final
}

// Extremum is the positional range reached by a profile together with
// the times the bounds occur at.
type Extremum struct {
	Min, Max   float64
	TMin, TMax float64
}

// PositionExtrema scans phase boundaries and interior zero-velocity
// crossings for the positional range over the whole profile, endpoints
// included.
func (p *Profile) PositionExtrema() Extremum {
	ex := Extremum{Min: p.start.Position, Max: p.start.Position}
	consider := func(pos, t float64) {
		if pos < ex.Min {
			ex.Min, ex.TMin = pos, t
		}
		if pos > ex.Max {
			ex.Max, ex.TMax = pos, t
		}
	}
	consider(p.final.Position, p.duration)
	for _, ph := range p.phases {
		t0 := ph.End - ph.Duration
		consider(ph.Entry.Position, t0)
		// interior stationary points of position are the in-phase
		// zeros of velocity
		rts, n := roots.Quadratic(ph.Jerk/2, ph.Entry.Acceleration, ph.Entry.Velocity)
		for _, tau := range rts[:n] {
			if tau <= 0 || tau >= ph.Duration {
				continue
			}
			s := Integrate(ph.Entry, ph.Jerk, tau)
			consider(s.Position, t0+tau)
		}
	}
	return ex
}
