// Package roots provides scalar root finding for the profile solvers.
//
// The solvers reduce every profile synthesis to a one-dimensional root
// problem in a known bracket (a peak velocity, a phase duration). The
// functions here are deterministic with bounded iteration counts so
// they can run inside a control cycle; Scan allocates only for the
// bracket list it returns.
package roots

import (
	"errors"
	"math"
)

var (
	// ErrNoBracket reports that the supplied interval does not straddle a
	// sign change.
	ErrNoBracket = errors.New("roots: interval does not bracket a root")

	// ErrMaxIterations reports that the iteration budget ran out before
	// the tolerance was met.
	ErrMaxIterations = errors.New("roots: maximum iterations exceeded")
)

// Func is a scalar function of one variable.
type Func func(x float64) float64

// Bracket is an interval known to contain a root. Lo == Hi marks an
// exact hit found during scanning.
type Bracket struct {
	Lo, Hi float64
}

// Brent finds a root of f in [a, b] using the Brent-Dekker method. The
// interval must bracket a sign change. The returned abscissa is within
// tol of a root, or ErrMaxIterations if maxIter refinements were not
// enough. A non-positive maxIter selects a default budget.
func Brent(f Func, a, b, tol float64, maxIter int) (float64, error) {
	if maxIter <= 0 {
		maxIter = 128
	}
	fa, fb := f(a), f(b)
	if fa == 0 {
		return a, nil
	}
	if fb == 0 {
		return b, nil
	}
	if (fa > 0) == (fb > 0) {
		return 0, ErrNoBracket
	}

	c, fc := a, fa
	d := b - a
	e := d
	for i := 0; i < maxIter; i++ {
		if (fb > 0) == (fc > 0) {
			c, fc = a, fa
			d = b - a
			e = d
		}
		if math.Abs(fc) < math.Abs(fb) {
			a, b, c = b, c, b
			fa, fb, fc = fb, fc, fb
		}

		m := 0.5 * (c - b)
		tol1 := 2*math.Abs(b)*eps + 0.5*tol
		if math.Abs(m) <= tol1 || fb == 0 {
			return b, nil
		}

		if math.Abs(e) >= tol1 && math.Abs(fa) > math.Abs(fb) {
			// Attempt inverse quadratic interpolation, falling back
			// to the secant step when only two points are distinct.
			s := fb / fa
			var p, q float64
			if a == c {
				p = 2 * m * s
				q = 1 - s
			} else {
				q = fa / fc
				r := fb / fc
				p = s * (2*m*q*(q-r) - (b-a)*(r-1))
				q = (q - 1) * (r - 1) * (s - 1)
			}
			if p > 0 {
				q = -q
			} else {
				p = -p
			}
			if 2*p < math.Min(3*m*q-math.Abs(tol1*q), math.Abs(e*q)) {
				e = d
				d = p / q
			} else {
				d = m
				e = m
			}
		} else {
			d = m
			e = m
		}

		a, fa = b, fb
		if math.Abs(d) > tol1 {
			b += d
		} else {
			b += math.Copysign(tol1, m)
		}
		fb = f(b)
	}
	return b, ErrMaxIterations
}

const eps = 2.220446049250313e-16

// Scan subdivides [a, b] into n equal panels and returns every panel
// whose endpoints straddle a sign change of f, in ascending order. An
// exact zero at a panel boundary is reported as a degenerate bracket.
// Panels with a NaN endpoint are skipped, so f may be defined only
// piecewise.
func Scan(f Func, a, b float64, n int) []Bracket {
	if n < 1 {
		n = 1
	}
	var out []Bracket
	prevX, prevF := a, f(a)
	for i := 1; i <= n; i++ {
		x := a + (b-a)*float64(i)/float64(n)
		if i == n {
			x = b
		}
		fx := f(x)
		switch {
		case math.IsNaN(prevF) || math.IsNaN(fx):
		case prevF == 0:
			out = append(out, Bracket{Lo: prevX, Hi: prevX})
		case (prevF > 0) != (fx > 0) && fx != 0:
			out = append(out, Bracket{Lo: prevX, Hi: x})
		}
		prevX, prevF = x, fx
	}
	if prevF == 0 {
		out = append(out, Bracket{Lo: prevX, Hi: prevX})
	}
	return out
}

// Quadratic returns the real roots of a*x^2 + b*x + c in ascending
// order. n reports how many entries of rts are valid; a double root is
// reported twice. The linear and constant degenerations are handled.
func Quadratic(a, b, c float64) (rts [2]float64, n int) {
	if a == 0 {
		if b == 0 {
			return rts, 0
		}
		rts[0] = -c / b
		return rts, 1
	}
	disc := b*b - 4*a*c
	if disc < 0 {
		return rts, 0
	}
	sq := math.Sqrt(disc)
	q := -0.5 * (b + math.Copysign(sq, b))
	x1 := q / a
	x2 := x1
	if q != 0 {
		x2 = c / q
	}
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	rts[0], rts[1] = x1, x2
	return rts, 2
}
