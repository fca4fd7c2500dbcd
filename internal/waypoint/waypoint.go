// Package waypoint chains multi-axis motion through intermediate
// positions.
//
// Each leg between consecutive positions is synchronized on its own,
// and the legs are joined by corner states: a heuristic pass-through
// velocity where the motion keeps its direction, a full stop where it
// reverses. When a leg cannot be solved with the chosen corner
// velocities the whole chain is retried with the corners slowed, and
// as a last resort with full stops everywhere.
package waypoint

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/otg/internal/blocksync"
	"github.com/banshee-data/otg/internal/profile"
	"github.com/banshee-data/otg/internal/solver"
)

const (
	// cornerScale derates the heuristic pass-through velocity so the
	// next leg keeps headroom to bend.
	cornerScale = 0.8

	// maxRelaxations bounds the retry ladder; the final rung plans
	// full stops at every corner.
	maxRelaxations = 4
)

// Request describes a chained motion. Points lists the intermediate
// positions in visiting order, one row per point, one column per axis.
// SectionFloors, when non-nil, carries one minimum duration per leg
// (len(Points)+1 legs); MinimumDuration floors the whole chain.
type Request struct {
	Start  []profile.State
	Target []profile.State
	Points [][]float64
	Limits []solver.Limits

	Mode            blocksync.Mode
	SectionFloors   []float64
	MinimumDuration float64
}

// Result is the planned chain. Profiles holds one concatenated profile
// per axis; Sections the cumulative end time of each leg, so
// Sections[len(Sections)-1] == Duration.
type Result struct {
	Profiles []profile.Profile
	Sections []float64
	Duration float64
}

// Chain plans the chained motion. poll runs before every solver call;
// a non-nil poll error aborts planning. Leg infeasibility retries with
// slower corners, any other error aborts unchanged.
func Chain(req Request, poll func() error) (Result, error) {
	if err := req.validate(); err != nil {
		return Result{}, err
	}

	scale := cornerScale
	var lastErr error
	for attempt := 0; attempt < maxRelaxations; attempt++ {
		if attempt == maxRelaxations-1 {
			scale = 0
		}
		res, err := chain(req, scale, poll)
		if err == nil {
			return res, nil
		}
		if !retryable(err) {
			return Result{}, err
		}
		lastErr = err
		scale /= 2
	}
	return Result{}, lastErr
}

func (r Request) validate() error {
	dofs := len(r.Start)
	if dofs == 0 {
		return errors.New("waypoint: no axes")
	}
	if len(r.Target) != dofs || len(r.Limits) != dofs {
		return fmt.Errorf("waypoint: start/target/limits length mismatch: %d/%d/%d",
			dofs, len(r.Target), len(r.Limits))
	}
	for k, pt := range r.Points {
		if len(pt) != dofs {
			return fmt.Errorf("waypoint: point %d has %d coordinates, want %d", k, len(pt), dofs)
		}
	}
	if r.SectionFloors != nil && len(r.SectionFloors) != len(r.Points)+1 {
		return fmt.Errorf("waypoint: %d section floors for %d legs",
			len(r.SectionFloors), len(r.Points)+1)
	}
	return nil
}

// retryable reports whether the error is a leg infeasibility that a
// slower corner could cure.
func retryable(err error) bool {
	return errors.Is(err, solver.ErrNoProfile) ||
		errors.Is(err, solver.ErrNoDuration) ||
		errors.Is(err, blocksync.ErrUnsynchronizable)
}

func chain(req Request, scale float64, poll func() error) (Result, error) {
	dofs := len(req.Start)
	legs := len(req.Points) + 1

	bounds := make([][]profile.State, legs+1)
	bounds[0] = req.Start
	for k := range req.Points {
		bounds[k+1] = req.corner(k, scale)
	}
	bounds[legs] = req.Target

	var (
		profiles []profile.Profile
		sections = make([]float64, legs)
		elapsed  float64
	)
	for leg := 0; leg < legs; leg++ {
		axes := make([]blocksync.Axis, dofs)
		for i := 0; i < dofs; i++ {
			axes[i] = blocksync.Axis{
				Current: bounds[leg][i],
				Target:  bounds[leg+1][i],
				Limits:  req.Limits[i],
			}
		}
		floor := 0.0
		if req.SectionFloors != nil {
			floor = req.SectionFloors[leg]
		}
		if leg == legs-1 {
			floor = math.Max(floor, req.MinimumDuration-elapsed)
		}

		plan, err := blocksync.Synchronize(axes, req.Mode, solver.Position, floor, poll)
		if err != nil {
			return Result{}, fmt.Errorf("leg %d: %w", leg, err)
		}
		if leg == 0 {
			profiles = plan.Profiles
		} else {
			for i := range profiles {
				profiles[i].Concat(plan.Profiles[i])
			}
		}
		elapsed += plan.Duration
		sections[leg] = elapsed
	}
	return Result{Profiles: profiles, Sections: sections, Duration: elapsed}, nil
}

// corner builds the boundary state at intermediate point k. An axis
// passing straight through keeps a derated velocity bounded by what
// the adjacent leg lengths can absorb; an axis reversing direction
// stops.
func (r Request) corner(k int, scale float64) []profile.State {
	states := make([]profile.State, len(r.Points[k]))

	prevPos := func(i int) float64 {
		if k == 0 {
			return r.Start[i].Position
		}
		return r.Points[k-1][i]
	}
	nextPos := func(i int) float64 {
		if k == len(r.Points)-1 {
			return r.Target[i].Position
		}
		return r.Points[k+1][i]
	}

	for i := range states {
		pt := r.Points[k][i]
		in := pt - prevPos(i)
		out := nextPos(i) - pt
		v := 0.0
		if in*out > 0 && scale > 0 {
			lim := r.Limits[i].Normalize()
			aEff := math.Min(lim.MaxAcceleration, -lim.MinAcceleration)
			vcap := lim.MaxVelocity
			if in < 0 {
				vcap = -lim.MinVelocity
			}
			mag := math.Min(vcap, math.Min(math.Sqrt(math.Abs(in)*aEff), math.Sqrt(math.Abs(out)*aEff)))
			v = math.Copysign(scale*mag, in)
		}
		states[i] = profile.State{Position: pt, Velocity: v}
	}
	return states
}
