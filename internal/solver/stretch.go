package solver

import (
	"math"

	"github.com/banshee-data/otg/internal/profile"
)

const (
	// windowSplit keeps the cruise-velocity scan away from the pole at
	// zero velocity, where the cruise duration diverges. Profiles whose
	// peak lies inside the split would cruise for longer than any
	// duration a caller can ask for.
	windowSplit = 1e-9

	// nextProbePanels is the sampling resolution of the blocked-window
	// probe. The probe only has to land inside the next feasible band,
	// not on its exact edge: the duration it returns is realizable by
	// construction, so synchronization stays conservative but sound.
	nextProbePanels = 256
)

// stretchPosition appends phases that reach the target in exactly
// total seconds. Candidate peak velocities are the roots of the
// duration error across the velocity window; when several realize the
// duration the slowest peak wins so stretched axes stay calm.
func stretchPosition(p *profile.Profile, entry, target profile.State, lim Limits, total float64) error {
	dp := target.Position - entry.Position
	if math.Abs(dp) <= restTol && atRest(entry) && atRest(target) {
		p.Append(total, 0)
		return nil
	}

	cands := stretchCandidates(entry, target, lim, total)
	if len(cands) == 0 {
		return ErrNoDuration
	}
	best := cands[0]
	for _, c := range cands[1:] {
		if math.Abs(c.vp) < math.Abs(best.vp) {
			best = c
		}
	}
	best.appendTo(p)
	return nil
}

// stretchCandidates enumerates peak velocities whose build lasts
// exactly total. The cruise takes whatever time the two ramps leave
// over, so the duration is exact by construction and the displacement
// residual is the validity gate.
func stretchCandidates(entry, target profile.State, lim Limits, total float64) []candidate {
	dp := target.Position - entry.Position
	resTol := positionTol(dp)
	split := windowSplit * math.Max(lim.MaxVelocity, -lim.MinVelocity)
	seeds := transitionSeeds(entry, target, lim)
	var cands []candidate

	for _, fi := range []int{0, 1} {
		for _, fj := range []int{0, 1} {
			build := func(vp float64) (candidate, bool) {
				r1, ok := rampFamilies[fi](entry.Velocity, entry.Acceleration, vp, 0, lim)
				if !ok {
					return candidate{}, false
				}
				r2, ok := rampFamilies[fj](vp, 0, target.Velocity, target.Acceleration, lim)
				if !ok {
					return candidate{}, false
				}
				cruise := total - r1.duration - r2.duration
				if cruise < -timeTol {
					return candidate{}, false
				}
				cruise = math.Max(cruise, 0)
				c := candidate{r1: r1, r2: r2, vp: vp, cruise: cruise}
				c.total = r1.duration + cruise + r2.duration
				if residual := dp - r1.distance - cruise*vp - r2.distance; math.Abs(residual) > resTol {
					return candidate{}, false
				}
				return c, true
			}

			// overtime is the duration excess when the cruise is sized
			// to close the displacement instead of the clock
			overtime := func(vp float64) float64 {
				r1, ok := rampFamilies[fi](entry.Velocity, entry.Acceleration, vp, 0, lim)
				if !ok {
					return math.NaN()
				}
				r2, ok := rampFamilies[fj](vp, 0, target.Velocity, target.Acceleration, lim)
				if !ok {
					return math.NaN()
				}
				leftover := dp - r1.distance - r2.distance
				return r1.duration + leftover/vp + r2.duration - total
			}

			for _, window := range [2][2]float64{
				{lim.MinVelocity, -split},
				{split, lim.MaxVelocity},
			} {
				for _, vp := range scanRoots(overtime, window[0], window[1], seeds...) {
					if c, ok := build(vp); ok {
						cands = append(cands, c)
					}
				}
			}
		}
	}
	return cands
}

// nextDurationPosition reports the smallest duration at or above total
// that the stretch solve will accept. Valid natural durations sampled
// across the velocity window seed a ceiling known to lie past the
// blocked window; bisection against the stretch candidate search then
// closes in on its far edge. Verifying through the same search the
// stretch uses keeps the two in exact agreement.
func nextDurationPosition(entry, target profile.State, lim Limits, total float64) (float64, error) {
	dp := target.Position - entry.Position
	if math.Abs(dp) <= restTol && atRest(entry) && atRest(target) {
		return total, nil
	}
	stretchable := func(d float64) bool {
		return len(stretchCandidates(entry, target, lim, d)) > 0
	}
	if stretchable(total) {
		return total, nil
	}

	hi, ok := probeNaturalAbove(entry, target, lim, total)
	for grow := 0; !ok || !stretchable(hi); grow++ {
		if grow >= 32 {
			return 0, ErrNoDuration
		}
		if !ok {
			hi = math.Max(total, 1)
		}
		hi *= 1.5
		ok = true
	}

	lo := total
	for i := 0; i < 48 && hi-lo > 1e-12*(1+hi); i++ {
		mid := lo + (hi-lo)/2
		if stretchable(mid) {
			hi = mid
		} else {
			lo = mid
		}
	}
	return hi, nil
}

// probeNaturalAbove samples natural profile durations across the
// velocity window and returns the smallest at or above total.
func probeNaturalAbove(entry, target profile.State, lim Limits, total float64) (float64, bool) {
	dp := target.Position - entry.Position
	best := math.Inf(1)
	split := windowSplit * math.Max(lim.MaxVelocity, -lim.MinVelocity)
	for _, fi := range []int{0, 1} {
		for _, fj := range []int{0, 1} {
			natural := func(vp float64) (float64, bool) {
				r1, ok := rampFamilies[fi](entry.Velocity, entry.Acceleration, vp, 0, lim)
				if !ok {
					return 0, false
				}
				r2, ok := rampFamilies[fj](vp, 0, target.Velocity, target.Acceleration, lim)
				if !ok {
					return 0, false
				}
				cruise := (dp - r1.distance - r2.distance) / vp
				if cruise < -timeTol {
					return 0, false
				}
				return r1.duration + math.Max(cruise, 0) + r2.duration, true
			}
			for _, window := range [2][2]float64{
				{lim.MinVelocity, -split},
				{split, lim.MaxVelocity},
			} {
				for i := 0; i <= nextProbePanels; i++ {
					vp := window[0] + (window[1]-window[0])*float64(i)/nextProbePanels
					if d, ok := natural(vp); ok && d >= total-timeTol && d < best {
						best = d
					}
				}
			}
		}
	}
	if math.IsInf(best, 1) {
		return 0, false
	}
	return math.Max(best, total), true
}
