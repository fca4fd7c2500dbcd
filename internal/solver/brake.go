package solver

import (
	"github.com/banshee-data/otg/internal/profile"
)

// clampAcceleration prepends the constant-jerk phase that drives an
// out-of-box entry acceleration back inside the limits and returns the
// state the main solve takes over from. In-box entries pass through
// untouched.
//
// An out-of-bounds entry velocity needs no dedicated phase: the first
// ramp of the main profile already decelerates toward the admissible
// window at full jerk, so the profile discharges a velocity overshoot
// as fast as the acceleration box allows before settling at a cruise
// inside the limits.
func clampAcceleration(p *profile.Profile, s profile.State, lim Limits) profile.State {
	j := lim.MaxJerk
	switch {
	case s.Acceleration > lim.MaxAcceleration:
		p.Append((s.Acceleration-lim.MaxAcceleration)/j, -j)
	case s.Acceleration < lim.MinAcceleration:
		p.Append((lim.MinAcceleration-s.Acceleration)/j, j)
	default:
		return s
	}
	return p.Final()
}
