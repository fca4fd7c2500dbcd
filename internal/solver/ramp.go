package solver

import (
	"math"

	"github.com/banshee-data/otg/internal/profile"
)

// ramp is the minimum-time transition between two (velocity,
// acceleration) pairs under one axis's jerk and acceleration bounds:
// a constant-jerk section to a peak acceleration, an optional hold at
// the peak, and a constant-jerk section down to the exit acceleration.
// Position profiles are assembled as ramp, cruise, ramp; all the
// jerk-limited shape lives here.
type ramp struct {
	t1, th, t2 float64
	j1, j2     float64
	peak       float64
	duration   float64
	// distance is the signed displacement over the ramp when entered
	// at its entry velocity.
	distance float64
}

// rampFamily builds one of the two ramp shapes: raising the
// acceleration to a peak at or above both endpoint accelerations, or
// dipping it to a peak at or below both. For any endpoint pair inside
// the acceleration box at least one family is valid.
type rampFamily func(v0, a0, v1, a1 float64, lim Limits) (ramp, bool)

var rampFamilies = [2]rampFamily{rampUp, rampDown}

// newRamp returns the faster of the two ramp families, or ok == false
// when neither closes the velocity change. Endpoint accelerations must
// lie inside the box; velocities may not, which is how limit-violating
// entry states recover.
func newRamp(v0, a0, v1, a1 float64, lim Limits) (ramp, bool) {
	up, okUp := rampUp(v0, a0, v1, a1, lim)
	down, okDown := rampDown(v0, a0, v1, a1, lim)
	switch {
	case okUp && okDown:
		if down.duration < up.duration {
			return down, true
		}
		return up, true
	case okUp:
		return up, true
	case okDown:
		return down, true
	}
	return ramp{}, false
}

func rampUp(v0, a0, v1, a1 float64, lim Limits) (ramp, bool) {
	j := lim.MaxJerk
	dv := v1 - v0
	q := j*dv + (a0*a0+a1*a1)/2
	if q < 0 {
		return ramp{}, false
	}
	peak := math.Sqrt(q)
	r := ramp{j1: j, j2: -j}
	if peak > lim.MaxAcceleration {
		peak = lim.MaxAcceleration
		r.th = (dv - (2*peak*peak-a0*a0-a1*a1)/(2*j)) / peak
	}
	r.peak = peak
	r.t1 = (peak - a0) / j
	r.t2 = (peak - a1) / j
	return r.finish(v0, a0)
}

func rampDown(v0, a0, v1, a1 float64, lim Limits) (ramp, bool) {
	j := lim.MaxJerk
	dv := v1 - v0
	q := (a0*a0+a1*a1)/2 - j*dv
	if q < 0 {
		return ramp{}, false
	}
	peak := -math.Sqrt(q)
	r := ramp{j1: -j, j2: j}
	if peak < lim.MinAcceleration {
		peak = lim.MinAcceleration
		r.th = (dv - (a0*a0+a1*a1-2*peak*peak)/(2*j)) / peak
	}
	r.peak = peak
	r.t1 = (a0 - peak) / j
	r.t2 = (a1 - peak) / j
	return r.finish(v0, a0)
}

// finish validates the section times, clamps roundoff and integrates
// duration and displacement.
func (r ramp) finish(v0, a0 float64) (ramp, bool) {
	if r.t1 < -timeTol || r.th < -timeTol || r.t2 < -timeTol {
		return ramp{}, false
	}
	r.t1 = math.Max(r.t1, 0)
	r.th = math.Max(r.th, 0)
	r.t2 = math.Max(r.t2, 0)
	r.duration = r.t1 + r.th + r.t2

	s := profile.State{Velocity: v0, Acceleration: a0}
	s = profile.Integrate(s, r.j1, r.t1)
	s = profile.Integrate(s, 0, r.th)
	s = profile.Integrate(s, r.j2, r.t2)
	r.distance = s.Position
	return r, true
}

// appendTo writes the ramp's phases onto p.
func (r ramp) appendTo(p *profile.Profile) {
	p.Append(r.t1, r.j1)
	p.Append(r.th, 0)
	p.Append(r.t2, r.j2)
}
