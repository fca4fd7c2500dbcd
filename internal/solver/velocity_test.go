package solver

import (
	"math"
	"testing"

	"github.com/banshee-data/otg/internal/profile"
)

func TestMinimumTime_VelocityInterface(t *testing.T) {
	lim := testLimits(10, 3, 6)
	cur := profile.State{Velocity: 3}
	tgt := profile.State{Velocity: 0}
	p, err := MinimumTime(cur, tgt, lim, Velocity)
	if err != nil {
		t.Fatal(err)
	}
	// decelerate at the bound: 0.5s down, 0.5s hold, 0.5s up
	if math.Abs(p.Duration()-1.5) > 1e-9 {
		t.Errorf("duration = %v, want 1.5", p.Duration())
	}
	f := p.Final()
	if f.Velocity != 0 || f.Acceleration != 0 {
		t.Errorf("final = %+v, want zero velocity and acceleration", f)
	}
	// position is unconstrained but still integrated
	if math.Abs(f.Position-2.25) > 1e-9 {
		t.Errorf("final position = %v, want 2.25", f.Position)
	}
	_, _, alo, _ := sampleBounds(t, p)
	if alo < -3-1e-9 {
		t.Errorf("acceleration %v breaks the bound", alo)
	}
}

func TestStretched_VelocityInterface(t *testing.T) {
	lim := testLimits(10, 3, 6)
	cur := profile.State{Velocity: 3}
	tgt := profile.State{Velocity: 0}
	p, err := Stretched(cur, tgt, lim, Velocity, 2)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(p.Duration()-2) > 1e-12 {
		t.Fatalf("duration = %v, want 2", p.Duration())
	}
	f := p.Final()
	if f.Velocity != 0 || f.Acceleration != 0 {
		t.Errorf("final = %+v, want zero velocity and acceleration", f)
	}
	// held peak solves a^2 + 12a + 18 = 0
	wantPeak := (-12 + math.Sqrt(72)) / 2
	_, _, alo, _ := sampleBounds(t, p)
	if math.Abs(alo-wantPeak) > 1e-6 {
		t.Errorf("held acceleration = %v, want %v", alo, wantPeak)
	}
}

func TestStretched_VelocityRestHold(t *testing.T) {
	lim := testLimits(2, 2, 6)
	s := profile.State{Position: 1}
	p, err := Stretched(s, s, lim, Velocity, 2)
	if err != nil {
		t.Fatal(err)
	}
	if p.Duration() != 2 {
		t.Fatalf("duration = %v, want 2", p.Duration())
	}
	if f := p.Final(); f != s {
		t.Errorf("final = %+v, want held state", f)
	}
}

func TestNextDuration_VelocityInterface(t *testing.T) {
	lim := testLimits(10, 3, 6)
	cur := profile.State{Velocity: 3}
	tgt := profile.State{Velocity: 0}

	next, err := NextDuration(cur, tgt, lim, Velocity, 1)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(next-1.5) > 1e-9 {
		t.Errorf("next = %v, want raised to the ramp minimum 1.5", next)
	}

	next, err = NextDuration(cur, tgt, lim, Velocity, 3)
	if err != nil {
		t.Fatal(err)
	}
	if next != 3 {
		t.Errorf("next = %v, want the achievable total back", next)
	}
}
