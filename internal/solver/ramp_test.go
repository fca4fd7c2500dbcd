package solver

import (
	"math"
	"testing"
)

func testLimits(vmax, amax, jmax float64) Limits {
	return Limits{MaxVelocity: vmax, MaxAcceleration: amax, MaxJerk: jmax}.Normalize()
}

func TestNewRamp_TriangularAcceleration(t *testing.T) {
	// 0 -> 1 under amax=1, j=1: the peak just touches the bound, no hold
	r, ok := newRamp(0, 0, 1, 0, testLimits(10, 1, 1))
	if !ok {
		t.Fatal("ramp not found")
	}
	if math.Abs(r.t1-1) > 1e-9 || math.Abs(r.t2-1) > 1e-9 || r.th > 1e-9 {
		t.Errorf("times = %v %v %v, want 1 0 1", r.t1, r.th, r.t2)
	}
	if math.Abs(r.duration-2) > 1e-9 {
		t.Errorf("duration = %v, want 2", r.duration)
	}
	if math.Abs(r.distance-1) > 1e-9 {
		t.Errorf("distance = %v, want 1", r.distance)
	}
}

func TestNewRamp_HeldAcceleration(t *testing.T) {
	// 0 -> 3 under amax=1, j=1: hold the acceleration bound for 2s
	r, ok := newRamp(0, 0, 3, 0, testLimits(10, 1, 1))
	if !ok {
		t.Fatal("ramp not found")
	}
	if math.Abs(r.peak-1) > 1e-9 {
		t.Errorf("peak = %v, want clamped 1", r.peak)
	}
	if math.Abs(r.th-2) > 1e-9 {
		t.Errorf("hold = %v, want 2", r.th)
	}
	if math.Abs(r.duration-4) > 1e-9 {
		t.Errorf("duration = %v, want 4", r.duration)
	}
	if math.Abs(r.distance-6) > 1e-9 {
		t.Errorf("distance = %v, want 6", r.distance)
	}
}

func TestNewRamp_Deceleration(t *testing.T) {
	// mirror case: 3 -> 0 picks the dipping family
	r, ok := newRamp(3, 0, 0, 0, testLimits(10, 1, 1))
	if !ok {
		t.Fatal("ramp not found")
	}
	if r.j1 >= 0 {
		t.Errorf("first jerk = %v, want negative", r.j1)
	}
	if math.Abs(r.peak+1) > 1e-9 {
		t.Errorf("peak = %v, want -1", r.peak)
	}
	if math.Abs(r.duration-4) > 1e-9 {
		t.Errorf("duration = %v, want 4", r.duration)
	}
	if math.Abs(r.distance-6) > 1e-9 {
		t.Errorf("distance = %v, want 6", r.distance)
	}
}

func TestNewRamp_EndStateHit(t *testing.T) {
	lims := testLimits(5, 2, 3)
	cases := []struct {
		name           string
		v0, a0, v1, a1 float64
	}{
		{"accelerate", 0, 0, 4, 0},
		{"nonzero boundary accs", 1, 0.5, 2, -1},
		{"decelerate into negative", 2, -0.5, -3, 0},
		{"acceleration only", 1, -2, 1.2, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, ok := newRamp(tc.v0, tc.a0, tc.v1, tc.a1, lims)
			if !ok {
				t.Fatal("ramp not found")
			}
			if r.t1 < 0 || r.th < 0 || r.t2 < 0 {
				t.Fatalf("negative section time: %v %v %v", r.t1, r.th, r.t2)
			}
			if r.peak > lims.MaxAcceleration+1e-9 || r.peak < lims.MinAcceleration-1e-9 {
				t.Errorf("peak %v outside [%v, %v]", r.peak, lims.MinAcceleration, lims.MaxAcceleration)
			}
			// replay the phases and check the exit state
			v, a := tc.v0, tc.a0
			for _, ph := range [3][2]float64{{r.t1, r.j1}, {r.th, 0}, {r.t2, r.j2}} {
				v += a*ph[0] + ph[1]*ph[0]*ph[0]/2
				a += ph[1] * ph[0]
			}
			if math.Abs(v-tc.v1) > 1e-9 {
				t.Errorf("end velocity = %v, want %v", v, tc.v1)
			}
			if math.Abs(a-tc.a1) > 1e-9 {
				t.Errorf("end acceleration = %v, want %v", a, tc.a1)
			}
		})
	}
}

func TestNewRamp_PicksFasterFamily(t *testing.T) {
	// with both endpoint accelerations high, a small velocity gain is
	// quicker through a dip than through an even higher peak
	lim := testLimits(10, 3, 1)
	r, ok := newRamp(0, 2, 0.4, 2, lim)
	if !ok {
		t.Fatal("ramp not found")
	}
	up, okUp := rampUp(0, 2, 0.4, 2, lim)
	down, okDown := rampDown(0, 2, 0.4, 2, lim)
	if !okUp || !okDown {
		t.Fatalf("expected both families valid, got up=%v down=%v", okUp, okDown)
	}
	want := math.Min(up.duration, down.duration)
	if math.Abs(r.duration-want) > 1e-12 {
		t.Errorf("duration = %v, want faster family %v", r.duration, want)
	}
}
