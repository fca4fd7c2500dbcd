package solver

import (
	"errors"
	"math"
	"testing"

	"github.com/banshee-data/otg/internal/profile"
)

func TestStretched_ExactDuration(t *testing.T) {
	lim := testLimits(3, 3, 4)
	p, err := Stretched(rest(0), rest(5), lim, Position, 5)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(p.Duration()-5) > 1e-12 {
		t.Fatalf("duration = %v, want 5", p.Duration())
	}
	if f := p.Final(); f != rest(5) {
		t.Errorf("final = %+v, want %+v", f, rest(5))
	}
	// slowed to the peak solving sqrt(vp) + 5/vp = 5
	_, vhi, _, _ := sampleBounds(t, p)
	if math.Abs(vhi-1.2946) > 5e-3 {
		t.Errorf("peak velocity = %v, want about 1.2946", vhi)
	}
}

func TestStretched_MovingBoundaries(t *testing.T) {
	lim := testLimits(2, 2, 4)
	cur := profile.State{Position: 0, Velocity: 1}
	tgt := profile.State{Position: 3, Velocity: 1}

	min, err := MinimumTime(cur, tgt, lim, Position)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(min.Duration()-2) > 1e-6 {
		t.Errorf("minimum duration = %v, want 2", min.Duration())
	}

	p, err := Stretched(cur, tgt, lim, Position, 4)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(p.Duration()-4) > 1e-12 {
		t.Fatalf("duration = %v, want 4", p.Duration())
	}
	if f := p.Final(); f != tgt {
		t.Errorf("final = %+v, want %+v", f, tgt)
	}
	// the stretched profile dips below the transfer velocity instead of
	// overshooting
	_, vhi, _, _ := sampleBounds(t, p)
	if vhi > 1+1e-6 {
		t.Errorf("peak velocity = %v, want no overshoot above 1", vhi)
	}
}

func TestStretched_BelowMinimumFails(t *testing.T) {
	lim := testLimits(3, 3, 4)
	_, err := Stretched(rest(0), rest(5), lim, Position, 2)
	if !errors.Is(err, ErrNoDuration) {
		t.Fatalf("err = %v, want ErrNoDuration", err)
	}
}

func TestStretched_RestHold(t *testing.T) {
	lim := testLimits(1, 1, 1)
	s := profile.State{Position: -4}
	p, err := Stretched(s, s, lim, Position, 3)
	if err != nil {
		t.Fatal(err)
	}
	if p.Duration() != 3 {
		t.Fatalf("duration = %v, want 3", p.Duration())
	}
	for _, frac := range []float64{0, 0.5, 1} {
		if got, _ := p.At(3 * frac); got != s {
			t.Errorf("At(%v) = %+v, want held state", 3*frac, got)
		}
	}
}

func TestNextDuration_ReturnsAchievableTotal(t *testing.T) {
	lim := testLimits(3, 3, 4)
	next, err := NextDuration(rest(0), rest(5), lim, Position, 5)
	if err != nil {
		t.Fatal(err)
	}
	if next != 5 {
		t.Errorf("next = %v, want the achievable total back unchanged", next)
	}
}

func TestNextDuration_RaisesBelowMinimum(t *testing.T) {
	lim := testLimits(3, 3, 4)
	wantMin := 3.4387 // minimum-time duration for the 5m move
	next, err := NextDuration(rest(0), rest(5), lim, Position, 2)
	if err != nil {
		t.Fatal(err)
	}
	if next < wantMin-1e-3 || next > wantMin+0.02 {
		t.Fatalf("next = %v, want just above the minimum %v", next, wantMin)
	}
	// the raised duration must itself be realizable
	p, err := Stretched(rest(0), rest(5), lim, Position, next)
	if err != nil {
		t.Fatalf("stretch to raised duration: %v", err)
	}
	if math.Abs(p.Duration()-next) > 1e-12 {
		t.Errorf("stretched duration = %v, want %v", p.Duration(), next)
	}
}

func TestNextDuration_SweepRealizable(t *testing.T) {
	// every answer NextDuration gives must be accepted by Stretched
	lim := testLimits(2, 1.5, 3)
	cur := profile.State{Position: 0, Velocity: 0.5, Acceleration: 0.25}
	tgt := profile.State{Position: 4, Velocity: -0.25}
	for _, total := range []float64{0.5, 1, 2, 3, 5, 8} {
		next, err := NextDuration(cur, tgt, lim, Position, total)
		if err != nil {
			t.Fatalf("total %v: %v", total, err)
		}
		if next < total-1e-9 {
			t.Fatalf("total %v: next %v went backwards", total, next)
		}
		p, err := Stretched(cur, tgt, lim, Position, next)
		if err != nil {
			t.Fatalf("total %v: stretch to %v: %v", total, next, err)
		}
		if math.Abs(p.Duration()-next) > 1e-9 {
			t.Errorf("total %v: stretched to %v, want %v", total, p.Duration(), next)
		}
		if f := p.Final(); f != tgt {
			t.Errorf("total %v: final = %+v, want %+v", total, f, tgt)
		}
	}
}
