package blocksync

import (
	"errors"
	"math"
	"testing"

	"github.com/banshee-data/otg/internal/profile"
	"github.com/banshee-data/otg/internal/solver"
)

func axis(p0, p1, vmax, amax, jmax float64) Axis {
	return Axis{
		Current: profile.State{Position: p0},
		Target:  profile.State{Position: p1},
		Limits:  solver.Limits{MaxVelocity: vmax, MaxAcceleration: amax, MaxJerk: jmax},
	}
}

func threeAxes() []Axis {
	return []Axis{
		axis(0, 1, 1, 1, 1),
		axis(0, 5, 3, 3, 4),
		axis(2, 2, 1, 1, 1),
	}
}

func TestSynchronize_Time(t *testing.T) {
	axes := threeAxes()
	plan, err := Synchronize(axes, Time, solver.Position, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.Profiles) != 3 {
		t.Fatalf("profiles = %d, want 3", len(plan.Profiles))
	}
	// the 5m axis is the slowest and sets the pace
	if math.Abs(plan.Duration-3.4387) > 1e-3 {
		t.Errorf("duration = %v, want about 3.4387", plan.Duration)
	}
	for i, p := range plan.Profiles {
		if math.Abs(p.Duration()-plan.Duration) > 1e-9 {
			t.Errorf("axis %d duration = %v, want %v", i, p.Duration(), plan.Duration)
		}
		if f := p.Final(); f != axes[i].Target {
			t.Errorf("axis %d final = %+v, want %+v", i, f, axes[i].Target)
		}
	}
	if plan.Duration != plan.MinDurations[1] {
		t.Errorf("pace %v, want the slowest axis minimum %v untouched", plan.Duration, plan.MinDurations[1])
	}
}

func TestSynchronize_TimeFloor(t *testing.T) {
	axes := threeAxes()
	plan, err := Synchronize(axes, Time, solver.Position, 5, nil)
	if err != nil {
		t.Fatal(err)
	}
	if plan.Duration != 5 {
		t.Fatalf("duration = %v, want the floor 5", plan.Duration)
	}
	for i, p := range plan.Profiles {
		if math.Abs(p.Duration()-5) > 1e-9 {
			t.Errorf("axis %d duration = %v, want 5", i, p.Duration())
		}
		if f := p.Final(); f != axes[i].Target {
			t.Errorf("axis %d final = %+v, want %+v", i, f, axes[i].Target)
		}
	}
}

func TestSynchronize_None(t *testing.T) {
	axes := threeAxes()
	plan, err := Synchronize(axes, None, solver.Position, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	for i, p := range plan.Profiles {
		if p.Duration() != plan.MinDurations[i] {
			t.Errorf("axis %d duration = %v, want its own minimum %v", i, p.Duration(), plan.MinDurations[i])
		}
	}
	if plan.Profiles[0].Duration() >= plan.Profiles[1].Duration() {
		t.Error("independent axes should finish at their own pace")
	}
	if plan.Duration != plan.MinDurations[1] {
		t.Errorf("plan duration = %v, want the longest minimum %v", plan.Duration, plan.MinDurations[1])
	}
}

func TestSynchronize_TimeIfNecessary(t *testing.T) {
	single := []Axis{
		axis(0, 1, 1, 1, 1),
		axis(2, 2, 1, 1, 1),
		axis(-1, -1, 1, 1, 1),
	}
	plan, err := Synchronize(single, TimeIfNecessary, solver.Position, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	// only one axis moves: nothing to synchronize
	if plan.Duration != plan.MinDurations[0] {
		t.Errorf("duration = %v, want the mover's minimum %v", plan.Duration, plan.MinDurations[0])
	}
	if plan.Profiles[1].Duration() != 0 || plan.Profiles[2].Duration() != 0 {
		t.Error("resting axes should keep empty profiles")
	}

	double := []Axis{
		axis(0, 1, 1, 1, 1),
		axis(0, 5, 3, 3, 4),
	}
	plan, err = Synchronize(double, TimeIfNecessary, solver.Position, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(plan.Profiles[0].Duration()-plan.Profiles[1].Duration()) > 1e-9 {
		t.Errorf("two movers not synchronized: %v vs %v",
			plan.Profiles[0].Duration(), plan.Profiles[1].Duration())
	}
}

func TestSynchronize_TimeIfNecessaryFloor(t *testing.T) {
	single := []Axis{
		axis(0, 1, 1, 1, 1),
		axis(2, 2, 1, 1, 1),
	}
	plan, err := Synchronize(single, TimeIfNecessary, solver.Position, 6, nil)
	if err != nil {
		t.Fatal(err)
	}
	if plan.Duration != 6 {
		t.Fatalf("duration = %v, want the floor 6", plan.Duration)
	}
	if math.Abs(plan.Profiles[0].Duration()-6) > 1e-9 {
		t.Errorf("mover duration = %v, want stretched to 6", plan.Profiles[0].Duration())
	}
}

func TestSynchronize_Phase(t *testing.T) {
	axes := []Axis{
		axis(0, 2, 2, 2, 4),
		axis(0, 1, 2, 2, 4),
		axis(0, -1, 2, 2, 4),
	}
	plan, err := Synchronize(axes, Phase, solver.Position, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	d := plan.Profiles[0].Duration()
	if plan.Profiles[1].Duration() != d || plan.Profiles[2].Duration() != d {
		t.Fatalf("phase profiles share phase times, durations must match exactly: %v %v %v",
			d, plan.Profiles[1].Duration(), plan.Profiles[2].Duration())
	}
	// straight line through state space: every sample is a fixed
	// multiple of the reference
	for _, frac := range []float64{0.2, 0.5, 0.8} {
		ref, _ := plan.Profiles[0].At(d * frac)
		s1, _ := plan.Profiles[1].At(d * frac)
		s2, _ := plan.Profiles[2].At(d * frac)
		if math.Abs(s1.Position-0.5*ref.Position) > 1e-9 || math.Abs(s1.Velocity-0.5*ref.Velocity) > 1e-9 {
			t.Errorf("axis 1 off the line at %v: %+v vs ref %+v", frac, s1, ref)
		}
		if math.Abs(s2.Position+0.5*ref.Position) > 1e-9 || math.Abs(s2.Velocity+0.5*ref.Velocity) > 1e-9 {
			t.Errorf("axis 2 off the line at %v: %+v vs ref %+v", frac, s2, ref)
		}
	}
	for i, p := range plan.Profiles {
		if f := p.Final(); f != axes[i].Target {
			t.Errorf("axis %d final = %+v, want %+v", i, f, axes[i].Target)
		}
	}
}

func TestSynchronize_PhaseWithRestingAxis(t *testing.T) {
	axes := []Axis{
		axis(0, 2, 2, 2, 4),
		axis(0, 1, 2, 2, 4),
		axis(1, 1, 2, 2, 4),
	}
	plan, err := Synchronize(axes, Phase, solver.Position, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	mid, _ := plan.Profiles[2].At(plan.Duration / 2)
	if mid != (profile.State{Position: 1}) {
		t.Errorf("resting axis moved: %+v", mid)
	}
	if plan.Profiles[2].Duration() != plan.Profiles[0].Duration() {
		t.Error("resting axis must hold for the full plan duration")
	}
}

func TestSynchronize_PhaseFallsBackToTime(t *testing.T) {
	axes := []Axis{
		axis(0, 2, 2, 2, 4),
		axis(0, 1, 2, 2, 4),
	}
	// a target velocity off the line breaks collinearity
	axes[1].Target.Velocity = 0.5
	plan, err := Synchronize(axes, Phase, solver.Position, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(plan.Profiles[0].Duration()-plan.Profiles[1].Duration()) > 1e-9 {
		t.Errorf("fallback must still time-synchronize: %v vs %v",
			plan.Profiles[0].Duration(), plan.Profiles[1].Duration())
	}
	if f := plan.Profiles[1].Final(); f != axes[1].Target {
		t.Errorf("axis 1 final = %+v, want %+v", f, axes[1].Target)
	}
}

func TestSynchronize_PollAborts(t *testing.T) {
	errBudget := errors.New("over budget")
	calls := 0
	poll := func() error {
		calls++
		if calls > 2 {
			return errBudget
		}
		return nil
	}
	_, err := Synchronize(threeAxes(), Time, solver.Position, 0, poll)
	if !errors.Is(err, errBudget) {
		t.Fatalf("err = %v, want the poll error", err)
	}
}

func TestSynchronize_VelocityInterface(t *testing.T) {
	axes := []Axis{
		{Current: profile.State{Velocity: 3}, Limits: solver.Limits{MaxVelocity: 10, MaxAcceleration: 3, MaxJerk: 6}},
		{Current: profile.State{Velocity: -1}, Limits: solver.Limits{MaxVelocity: 10, MaxAcceleration: 3, MaxJerk: 6}},
	}
	plan, err := Synchronize(axes, Time, solver.Velocity, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	// the faster entry needs 1.5s to stop and paces the pair
	if math.Abs(plan.Duration-1.5) > 1e-9 {
		t.Errorf("duration = %v, want 1.5", plan.Duration)
	}
	for i, p := range plan.Profiles {
		if math.Abs(p.Duration()-plan.Duration) > 1e-9 {
			t.Errorf("axis %d duration = %v, want %v", i, p.Duration(), plan.Duration)
		}
		f := p.Final()
		if math.Abs(f.Velocity) > 1e-12 || math.Abs(f.Acceleration) > 1e-12 {
			t.Errorf("axis %d final = %+v, want stopped", i, f)
		}
	}
}

func TestSynchronize_NoAxes(t *testing.T) {
	if _, err := Synchronize(nil, Time, solver.Position, 0, nil); err == nil {
		t.Fatal("want error for empty axis set")
	}
}
