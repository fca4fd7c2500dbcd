// Package solver synthesizes jerk-limited motion for a single axis.
//
// Every synthesis reduces to the same building block: a ramp that
// carries one (velocity, acceleration) pair to another in minimum time
// under the axis's jerk and acceleration bounds. A position profile is
// two ramps joined through a peak velocity with an optional cruise
// between them; a velocity profile is a single ramp. On top of the
// minimum-time solve the package offers a stretch mode that realizes a
// requested longer duration, and a probe for the next duration an axis
// can realize when the requested one falls in a blocked window.
package solver

import (
	"errors"
	"math"

	"github.com/banshee-data/otg/internal/profile"
)

var (
	// ErrNoProfile reports that no phase arrangement reaches the target
	// within the limits.
	ErrNoProfile = errors.New("solver: no feasible profile")

	// ErrNoDuration reports that the requested duration cannot be
	// realized by any profile shape.
	ErrNoDuration = errors.New("solver: duration not achievable")
)

// Interface selects which target components a solve must reach.
type Interface int

const (
	// Position binds target position, velocity and acceleration.
	Position Interface = iota
	// Velocity binds target velocity and acceleration; position runs
	// free.
	Velocity
)

const (
	// maxFiniteJerk stands in for an unbounded jerk limit. With it the
	// constant-jerk sections shrink to slivers and the profile
	// approaches its trapezoidal, acceleration-limited shape.
	maxFiniteJerk = 1e12

	// timeTol absorbs roundoff when a phase duration lands a hair
	// negative; anything below it is treated as zero.
	timeTol = 1e-9

	// rootTol is the abscissa tolerance for bracketed root solves.
	rootTol = 1e-13

	// restTol bounds when a kinematic component counts as at rest.
	restTol = 1e-12

	// scanPanels is the bracket-scan resolution across the velocity
	// window when locating candidate peak velocities.
	scanPanels = 64

	// seedShrink and seedFloor bound the refinement ladder the root
	// scan runs around each seeded abscissa: windows shrink by
	// seedShrink per level until their half-width drops below
	// seedFloor.
	seedShrink = 64.0
	seedFloor  = 1e-12
)

// Limits is the per-axis kinematic box. Velocity and acceleration
// bounds may be asymmetric; zero minimums default to the negated
// maximums.
type Limits struct {
	MaxVelocity     float64
	MinVelocity     float64
	MaxAcceleration float64
	MinAcceleration float64
	MaxJerk         float64
}

// Normalize fills defaulted minimum bounds and caps an infinite or
// oversized jerk limit at the finite surrogate.
func (l Limits) Normalize() Limits {
	if l.MinVelocity == 0 {
		l.MinVelocity = -l.MaxVelocity
	}
	if l.MinAcceleration == 0 {
		l.MinAcceleration = -l.MaxAcceleration
	}
	if math.IsInf(l.MaxJerk, 1) || l.MaxJerk > maxFiniteJerk {
		l.MaxJerk = maxFiniteJerk
	}
	return l
}

// MinimumTime builds the fastest profile from current to target. The
// current acceleration may sit outside the limit box, for example
// right after the caller tightened the limits mid-motion; a recovery
// phase is prepended before the optimal profile proper.
func MinimumTime(current, target profile.State, lim Limits, iface Interface) (profile.Profile, error) {
	lim = lim.Normalize()
	p := profile.New(current)
	entry := clampAcceleration(&p, current, lim)

	var err error
	switch iface {
	case Velocity:
		err = minTimeVelocity(&p, entry, target, lim)
	default:
		err = minTimePosition(&p, entry, target, lim)
	}
	if err != nil {
		return profile.Profile{}, err
	}
	if !sealFor(&p, target, iface) {
		return profile.Profile{}, ErrNoProfile
	}
	return p, nil
}

// Stretched builds a profile that reaches the target in exactly total
// seconds. The acceleration recovery phase, when one is needed, counts
// against the total.
func Stretched(current, target profile.State, lim Limits, iface Interface, total float64) (profile.Profile, error) {
	lim = lim.Normalize()
	p := profile.New(current)
	entry := clampAcceleration(&p, current, lim)
	remaining := total - p.Duration()
	if remaining < -timeTol {
		return profile.Profile{}, ErrNoDuration
	}
	if remaining < 0 {
		remaining = 0
	}

	var err error
	switch iface {
	case Velocity:
		err = stretchVelocity(&p, entry, target, lim, remaining)
	default:
		err = stretchPosition(&p, entry, target, lim, remaining)
	}
	if err != nil {
		return profile.Profile{}, err
	}
	if !sealFor(&p, target, iface) {
		return profile.Profile{}, ErrNoDuration
	}
	return p, nil
}

// NextDuration reports the smallest duration at or above total that
// the axis can realize. When total itself is realizable it is returned
// unchanged; otherwise the answer is the far edge of the blocked
// window total falls into.
func NextDuration(current, target profile.State, lim Limits, iface Interface, total float64) (float64, error) {
	lim = lim.Normalize()
	p := profile.New(current)
	entry := clampAcceleration(&p, current, lim)
	lead := p.Duration()
	remaining := math.Max(total-lead, 0)

	switch iface {
	case Velocity:
		next, err := nextDurationVelocity(entry, target, lim, remaining)
		if err != nil {
			return 0, err
		}
		return lead + next, nil
	default:
		next, err := nextDurationPosition(entry, target, lim, remaining)
		if err != nil {
			return 0, err
		}
		return lead + next, nil
	}
}

// sealFor pins the profile endpoint to the target components the
// interface binds. Velocity solves leave position wherever it
// integrated to.
func sealFor(p *profile.Profile, target profile.State, iface Interface) bool {
	want := target
	if iface == Velocity {
		want.Position = p.Final().Position
	}
	return p.Seal(want)
}

// atRest reports whether the state has no velocity or acceleration.
func atRest(s profile.State) bool {
	return math.Abs(s.Velocity) <= restTol && math.Abs(s.Acceleration) <= restTol
}

func sign(x float64) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}
