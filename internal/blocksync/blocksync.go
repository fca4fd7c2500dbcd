// Package blocksync coordinates per-axis profiles onto a common
// duration.
//
// Each axis alone admits a minimum-time profile, but an axis cannot
// realize every duration above its minimum: between the fastest
// profile shapes lie blocked windows no profile can land in. Time
// synchronization therefore runs a fixed-point raise: propose the
// longest per-axis duration, ask every axis for the nearest duration
// at or above it that it can realize, and repeat until nobody raises.
// Phase synchronization instead solves one reference axis under
// limits shrunk by the axis scales and replays its jerk sequence,
// scaled, on every axis.
package blocksync

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/otg/internal/profile"
	"github.com/banshee-data/otg/internal/solver"
	"gonum.org/v1/gonum/floats/scalar"
)

var (
	// ErrUnsynchronizable reports that the fixed-point raise did not
	// settle within the iteration budget.
	ErrUnsynchronizable = errors.New("blocksync: axes cannot be synchronized")
)

// Mode selects how axis durations relate in the synchronized plan.
type Mode int

const (
	// Time forces every axis to the same duration.
	Time Mode = iota
	// TimeIfNecessary synchronizes only when more than one axis moves
	// or a duration floor forces it.
	TimeIfNecessary
	// Phase additionally keeps the axes on a straight line through
	// state space; it falls back to Time when the boundary states are
	// not collinear.
	Phase
	// None leaves every axis on its own minimum-time profile.
	None
)

const (
	// maxIterations caps the fixed-point raise.
	maxIterations = 16

	// timeTol matches the solver's treatment of duration dust.
	timeTol = 1e-9

	// collinearTol bounds the relative mismatch tolerated by the
	// phase-synchronization collinearity test.
	collinearTol = 1e-9
)

// Axis is one degree of freedom handed to Synchronize.
type Axis struct {
	Current profile.State
	Target  profile.State
	Limits  solver.Limits
}

// Plan is a synchronized set of profiles. Duration is the common plan
// duration; under None it is the longest per-axis duration instead.
// MinDurations carries each axis's unsynchronized minimum.
type Plan struct {
	Profiles     []profile.Profile
	Duration     float64
	MinDurations []float64
}

// Synchronize builds per-axis profiles whose durations agree according
// to mode. minDuration floors the plan duration; zero means no floor.
// poll runs before every solver call so callers can meter the work,
// and a non-nil poll error aborts the synchronization unchanged.
func Synchronize(axes []Axis, mode Mode, iface solver.Interface, minDuration float64, poll func() error) (Plan, error) {
	if len(axes) == 0 {
		return Plan{}, errors.New("blocksync: no axes")
	}
	if poll == nil {
		poll = func() error { return nil }
	}

	minProfiles := make([]profile.Profile, len(axes))
	minDurations := make([]float64, len(axes))
	for i, ax := range axes {
		if err := poll(); err != nil {
			return Plan{}, err
		}
		p, err := solver.MinimumTime(ax.Current, ax.Target, ax.Limits, iface)
		if err != nil {
			return Plan{}, fmt.Errorf("axis %d: %w", i, err)
		}
		minProfiles[i] = p
		minDurations[i] = p.Duration()
	}
	longest := 0.0
	for _, d := range minDurations {
		longest = math.Max(longest, d)
	}

	switch mode {
	case None:
		// the duration floor binds synchronized plans only
		return Plan{Profiles: minProfiles, Duration: longest, MinDurations: minDurations}, nil

	case TimeIfNecessary:
		moving := 0
		for _, d := range minDurations {
			if d > timeTol {
				moving++
			}
		}
		if moving <= 1 && minDuration <= longest+timeTol {
			return Plan{Profiles: minProfiles, Duration: longest, MinDurations: minDurations}, nil
		}

	case Phase:
		if plan, ok := phaseSync(axes, minDurations, iface, minDuration, poll); ok {
			return plan, nil
		}
	}

	return timeSync(axes, minProfiles, minDurations, iface, math.Max(minDuration, longest), poll)
}

// timeSync stretches every axis to a common total. The total starts at
// the longest per-axis minimum (or the floor) and rises to the fixed
// point of the per-axis achievable-duration map; an axis already at
// its minimum for the total keeps its minimum-time profile untouched.
func timeSync(axes []Axis, minProfiles []profile.Profile, minDurations []float64, iface solver.Interface, total float64, poll func() error) (Plan, error) {
	settled := false
	for iter := 0; iter < maxIterations && !settled; iter++ {
		raised := total
		for i, ax := range axes {
			if minDurations[i] >= total-timeTol {
				// this axis's own minimum realizes the total
				continue
			}
			if err := poll(); err != nil {
				return Plan{}, err
			}
			d, err := solver.NextDuration(ax.Current, ax.Target, ax.Limits, iface, total)
			if err != nil {
				return Plan{}, fmt.Errorf("axis %d: %w", i, err)
			}
			raised = math.Max(raised, d)
		}
		settled = raised == total
		total = raised
	}
	if !settled {
		return Plan{}, ErrUnsynchronizable
	}

	profiles := make([]profile.Profile, len(axes))
	for i, ax := range axes {
		if math.Abs(total-minDurations[i]) <= timeTol {
			profiles[i] = minProfiles[i]
			continue
		}
		if err := poll(); err != nil {
			return Plan{}, err
		}
		p, err := solver.Stretched(ax.Current, ax.Target, ax.Limits, iface, total)
		if err != nil {
			return Plan{}, fmt.Errorf("axis %d: %w", i, err)
		}
		profiles[i] = p
	}
	return Plan{Profiles: profiles, Duration: total, MinDurations: minDurations}, nil
}

// phaseSync attempts straight-line synchronization: solve the axis
// with the largest travel under limits every scaled axis can follow,
// then replay its jerk sequence scaled onto the rest. ok is false
// when the boundary states are not collinear or any replayed profile
// misses its target, and the caller falls back to time
// synchronization. Velocity-interface solves always fall back.
func phaseSync(axes []Axis, minDurations []float64, iface solver.Interface, minDuration float64, poll func() error) (Plan, bool) {
	if iface != solver.Position {
		return Plan{}, false
	}
	ref, scales, ok := collinear(axes)
	if !ok {
		return Plan{}, false
	}
	eff, ok := effectiveLimits(axes, scales)
	if !ok {
		return Plan{}, false
	}

	if err := poll(); err != nil {
		return Plan{}, false
	}
	refAx := axes[ref]
	refProfile, err := solver.MinimumTime(refAx.Current, refAx.Target, eff, solver.Position)
	if err != nil {
		return Plan{}, false
	}
	if minDuration > refProfile.Duration()+timeTol {
		refProfile, err = solver.Stretched(refAx.Current, refAx.Target, eff, solver.Position, minDuration)
		if err != nil {
			return Plan{}, false
		}
	}
	total := refProfile.Duration()

	profiles := make([]profile.Profile, len(axes))
	for i, ax := range axes {
		p := profile.New(ax.Current)
		if scales[i] == 0 {
			p.Append(total, 0)
		} else {
			for _, ph := range refProfile.Phases() {
				p.Append(ph.Duration, ph.Jerk*scales[i])
			}
		}
		if !p.Seal(ax.Target) {
			return Plan{}, false
		}
		profiles[i] = p
	}
	return Plan{Profiles: profiles, Duration: total, MinDurations: minDurations}, true
}

// collinear reports whether all axes travel along one line through
// state space: every kinematic component of every axis must be the
// same multiple of the reference axis's component. The reference is
// the axis with the largest travel, and axes with zero travel must be
// fully at rest.
func collinear(axes []Axis) (ref int, scales []float64, ok bool) {
	refDelta := 0.0
	for i, ax := range axes {
		d := ax.Target.Position - ax.Current.Position
		if math.Abs(d) > math.Abs(refDelta) {
			ref, refDelta = i, d
		}
	}
	if refDelta == 0 {
		return 0, nil, false
	}

	refAx := axes[ref]
	scales = make([]float64, len(axes))
	for i, ax := range axes {
		s := (ax.Target.Position - ax.Current.Position) / refDelta
		scales[i] = s
		pairs := [4][2]float64{
			{ax.Current.Velocity, refAx.Current.Velocity},
			{ax.Current.Acceleration, refAx.Current.Acceleration},
			{ax.Target.Velocity, refAx.Target.Velocity},
			{ax.Target.Acceleration, refAx.Target.Acceleration},
		}
		for _, pair := range pairs {
			if !scalar.EqualWithinAbsOrRel(pair[0], s*pair[1], collinearTol, collinearTol) {
				return 0, nil, false
			}
		}
	}
	return ref, scales, true
}

// effectiveLimits shrinks the reference axis's limit box so that the
// scaled replay respects every axis's own box. Dividing a bound window
// by a negative scale flips it.
func effectiveLimits(axes []Axis, scales []float64) (solver.Limits, bool) {
	inf := math.Inf(1)
	eff := solver.Limits{
		MaxVelocity: inf, MinVelocity: -inf,
		MaxAcceleration: inf, MinAcceleration: -inf,
		MaxJerk: inf,
	}
	for i, ax := range axes {
		s := scales[i]
		if s == 0 {
			continue
		}
		lim := ax.Limits.Normalize()
		vlo, vhi := lim.MinVelocity/s, lim.MaxVelocity/s
		if s < 0 {
			vlo, vhi = vhi, vlo
		}
		alo, ahi := lim.MinAcceleration/s, lim.MaxAcceleration/s
		if s < 0 {
			alo, ahi = ahi, alo
		}
		eff.MaxVelocity = math.Min(eff.MaxVelocity, vhi)
		eff.MinVelocity = math.Max(eff.MinVelocity, vlo)
		eff.MaxAcceleration = math.Min(eff.MaxAcceleration, ahi)
		eff.MinAcceleration = math.Max(eff.MinAcceleration, alo)
		eff.MaxJerk = math.Min(eff.MaxJerk, lim.MaxJerk/math.Abs(s))
	}
	if eff.MaxVelocity <= 0 || eff.MinVelocity >= 0 || eff.MaxAcceleration <= 0 || eff.MinAcceleration >= 0 {
		return solver.Limits{}, false
	}
	return eff, true
}
