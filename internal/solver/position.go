package solver

import (
	"math"

	"github.com/banshee-data/otg/internal/profile"
	"github.com/banshee-data/otg/internal/roots"
)

// candidate is one assembled position solve: two ramps joined through
// a peak velocity vp with an optional cruise between them.
type candidate struct {
	r1, r2 ramp
	vp     float64
	cruise float64
	total  float64
}

func (c candidate) appendTo(p *profile.Profile) {
	c.r1.appendTo(p)
	p.Append(c.cruise, 0)
	c.r2.appendTo(p)
}

// phaseCount reports how many sections of the candidate carry time.
func (c candidate) phaseCount() int {
	n := 0
	for _, t := range [7]float64{c.r1.t1, c.r1.th, c.r1.t2, c.cruise, c.r2.t1, c.r2.th, c.r2.t2} {
		if t > 0 {
			n++
		}
	}
	return n
}

// minTimePosition appends the fastest phase sequence from entry to the
// full target state. The minimum-time profile either cruises at a
// saturated velocity bound or has no cruise at all, and the no-cruise
// peak velocities are roots of the leftover displacement; both
// candidate classes are enumerated and the fastest valid one wins.
func minTimePosition(p *profile.Profile, entry, target profile.State, lim Limits) error {
	dp := target.Position - entry.Position
	if math.Abs(dp) <= restTol && atRest(entry) && atRest(target) {
		return nil
	}
	best, ok := bestDuration(positionCandidates(entry, target, lim), dp)
	if !ok {
		return ErrNoProfile
	}
	best.appendTo(p)
	return nil
}

// positionCandidates enumerates every profile shape that closes the
// displacement: cruises saturated at either velocity bound, and
// cruise-free builds at each root of the leftover displacement, per
// ramp family combination.
func positionCandidates(entry, target profile.State, lim Limits) []candidate {
	dp := target.Position - entry.Position
	resTol := positionTol(dp)
	seeds := transitionSeeds(entry, target, lim)
	var cands []candidate

	for _, fi := range []int{0, 1} {
		for _, fj := range []int{0, 1} {
			assemble := func(vp, cruise float64) (candidate, bool) {
				r1, ok := rampFamilies[fi](entry.Velocity, entry.Acceleration, vp, 0, lim)
				if !ok {
					return candidate{}, false
				}
				r2, ok := rampFamilies[fj](vp, 0, target.Velocity, target.Acceleration, lim)
				if !ok {
					return candidate{}, false
				}
				c := candidate{r1: r1, r2: r2, vp: vp, cruise: cruise}
				c.total = r1.duration + cruise + r2.duration
				if residual := dp - r1.distance - cruise*vp - r2.distance; math.Abs(residual) > resTol {
					return candidate{}, false
				}
				return c, true
			}

			leftover := func(vp float64) float64 {
				r1, ok := rampFamilies[fi](entry.Velocity, entry.Acceleration, vp, 0, lim)
				if !ok {
					return math.NaN()
				}
				r2, ok := rampFamilies[fj](vp, 0, target.Velocity, target.Acceleration, lim)
				if !ok {
					return math.NaN()
				}
				return dp - r1.distance - r2.distance
			}

			// saturated cruise at either velocity bound
			for _, vp := range [2]float64{lim.MaxVelocity, lim.MinVelocity} {
				gap := leftover(vp)
				if math.IsNaN(gap) {
					continue
				}
				cruise := gap / vp
				if cruise < -timeTol {
					continue
				}
				if c, ok := assemble(vp, math.Max(cruise, 0)); ok {
					cands = append(cands, c)
				}
			}

			// cruise-free builds at leftover roots
			for _, vp := range scanRoots(leftover, lim.MinVelocity, lim.MaxVelocity, seeds...) {
				if c, ok := assemble(vp, 0); ok {
					cands = append(cands, c)
				}
			}
		}
	}
	return cands
}

// bestDuration prefers the shortest candidate; near-ties resolve to
// fewer active phases, then to the peak velocity pointing along the
// net displacement.
func bestDuration(cands []candidate, dp float64) (candidate, bool) {
	if len(cands) == 0 {
		return candidate{}, false
	}
	best := cands[0]
	for _, c := range cands[1:] {
		switch {
		case c.total < best.total-timeTol:
			best = c
		case c.total <= best.total+timeTol:
			cn, bn := c.phaseCount(), best.phaseCount()
			if cn < bn || (cn == bn && sign(c.vp) == sign(dp) && sign(best.vp) != sign(dp)) {
				best = c
			}
		}
	}
	return best, true
}

// scanRoots locates zeros of f across [lo, hi] by panel scanning plus
// Brent refinement. Ramp shape transitions pinch some roots into
// intervals far narrower than a coarse panel; around each seed the scan
// repeats over geometrically shrinking windows so those still resolve.
// Shape-transition jumps can masquerade as sign changes, so callers
// re-validate each root through their displacement residual before
// trusting it.
func scanRoots(f roots.Func, lo, hi float64, seeds ...float64) []float64 {
	var out []float64
	collect := func(a, b float64) {
		for _, br := range roots.Scan(f, a, b, scanPanels) {
			x := br.Lo
			if br.Lo != br.Hi {
				r, err := roots.Brent(f, br.Lo, br.Hi, rootTol, 0)
				if err != nil {
					continue
				}
				x = r
			}
			out = append(out, x)
		}
	}
	collect(lo, hi)
	for _, s := range seeds {
		for half := (hi - lo) / scanPanels; half > seedFloor; half /= seedShrink {
			a, b := math.Max(lo, s-half), math.Min(hi, s+half)
			if a < b {
				collect(a, b)
			}
		}
	}
	return out
}

// positionTol scales the displacement-closure tolerance to the size of
// the move.
func positionTol(dp float64) float64 {
	return 1e-6 * (1 + math.Abs(dp))
}

// transitionSeeds lists the peak velocities where a ramp family changes
// shape: zero, each endpoint velocity, and the endpoint velocities
// offset by the distance a jerk-out of the endpoint acceleration
// covers. The leftover and overtime functions can pinch to a sliver at
// these abscissas, so the root scans refine around them.
func transitionSeeds(entry, target profile.State, lim Limits) []float64 {
	d0 := entry.Acceleration * entry.Acceleration / (2 * lim.MaxJerk)
	d1 := target.Acceleration * target.Acceleration / (2 * lim.MaxJerk)
	return []float64{
		0,
		entry.Velocity, entry.Velocity - d0, entry.Velocity + d0,
		target.Velocity, target.Velocity - d1, target.Velocity + d1,
	}
}
