package solver

import (
	"math"

	"github.com/banshee-data/otg/internal/profile"
	"github.com/banshee-data/otg/internal/roots"
)

// minTimeVelocity appends the fastest phases reaching the target
// velocity and acceleration. With position unconstrained this is a
// single ramp.
func minTimeVelocity(p *profile.Profile, entry, target profile.State, lim Limits) error {
	r, ok := newRamp(entry.Velocity, entry.Acceleration, target.Velocity, target.Acceleration, lim)
	if !ok {
		return ErrNoProfile
	}
	r.appendTo(p)
	return nil
}

// stretchVelocity appends phases reaching the target velocity and
// acceleration in exactly total seconds by holding an intermediate
// peak acceleration. Both peak families yield a quadratic in the peak;
// among valid roots the smallest peak magnitude wins.
func stretchVelocity(p *profile.Profile, entry, target profile.State, lim Limits, total float64) error {
	j := lim.MaxJerk
	a0, a1 := entry.Acceleration, target.Acceleration
	dv := target.Velocity - entry.Velocity
	sq := (a0*a0 + a1*a1) / 2

	type shape struct {
		peak, t1, th, t2 float64
		j1, j2           float64
	}
	var best *shape
	consider := func(s shape) {
		if s.t1 < -timeTol || s.th < -timeTol || s.t2 < -timeTol {
			return
		}
		s.t1, s.th, s.t2 = math.Max(s.t1, 0), math.Max(s.th, 0), math.Max(s.t2, 0)
		if best == nil || math.Abs(s.peak) < math.Abs(best.peak) {
			best = &s
		}
	}

	// peak at or above both endpoint accelerations; a root beyond the
	// acceleration bound cannot be clamped without breaking the
	// velocity closure, so it is rejected rather than capped
	up, n := roots.Quadratic(1, -(j*total+a0+a1), sq+j*dv)
	for _, peak := range up[:n] {
		if peak > lim.MaxAcceleration+timeTol {
			continue
		}
		peak = math.Min(peak, lim.MaxAcceleration)
		consider(shape{
			peak: peak,
			t1:   (peak - a0) / j,
			th:   total - (2*peak-a0-a1)/j,
			t2:   (peak - a1) / j,
			j1:   j,
			j2:   -j,
		})
	}

	// peak at or below both endpoint accelerations
	down, n := roots.Quadratic(1, j*total-a0-a1, sq-j*dv)
	for _, peak := range down[:n] {
		if peak < lim.MinAcceleration-timeTol {
			continue
		}
		peak = math.Max(peak, lim.MinAcceleration)
		consider(shape{
			peak: peak,
			t1:   (a0 - peak) / j,
			th:   total - (a0+a1-2*peak)/j,
			t2:   (a1 - peak) / j,
			j1:   -j,
			j2:   j,
		})
	}

	if best == nil {
		return ErrNoDuration
	}
	p.Append(best.t1, best.j1)
	p.Append(best.th, 0)
	p.Append(best.t2, best.j2)
	return nil
}

// nextDurationVelocity reports the smallest realizable duration at or
// above total. Velocity transitions have no blocked windows: any
// duration beyond the minimum-time ramp is reachable by lowering and
// holding the peak acceleration.
func nextDurationVelocity(entry, target profile.State, lim Limits, total float64) (float64, error) {
	r, ok := newRamp(entry.Velocity, entry.Acceleration, target.Velocity, target.Acceleration, lim)
	if !ok {
		return 0, ErrNoProfile
	}
	return math.Max(total, r.duration), nil
}
