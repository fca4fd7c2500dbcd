package otg

import (
	"fmt"

	"github.com/banshee-data/otg/internal/profile"
	"github.com/banshee-data/otg/internal/solver"
	"github.com/banshee-data/otg/internal/timeutil"
)

// Tracker follows a moving target. Where Generator plans a full
// trajectory to a fixed target and samples it over many cycles, the
// tracker re-aims every cycle at the latest target sample with a
// horizon of a single cycle, so the plan is rebuilt and discarded each
// call. It reuses the per-axis minimum-time solver without duration
// synchronization.
type Tracker struct {
	cfg   Config
	clock timeutil.Clock

	// Reactiveness in [0,1] sets how much of the gap to the target one
	// cycle aims for. 1 chases the target sample directly; smaller
	// values filter the commanded motion, smoother but laggier. 0
	// holds the current state.
	Reactiveness float64
}

// NewTracker returns a tracker for the given shape. The cycle must be
// positive; a tracker has no offline mode.
func NewTracker(cfg Config) (*Tracker, error) {
	if cfg.DOFs <= 0 {
		return nil, fmt.Errorf("config needs at least one axis: %w", ErrInvalidInput)
	}
	if cfg.Cycle <= 0 {
		return nil, fmt.Errorf("cycle %v, want > 0: %w", cfg.Cycle, ErrInvalidInput)
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	return &Tracker{cfg: cfg, clock: cfg.Clock, Reactiveness: 1}, nil
}

// Update aims every axis at target and advances one cycle. The current
// state, limits, control interface and position bounds come from in;
// the target kinematics come from the target slice and are recorded in
// in's target fields, clamped into the position bounds with outward
// velocity and acceleration zeroed. Waypoints are not accepted.
func (t *Tracker) Update(target []State, in *Input, out *Output) (Result, error) {
	if len(target) != t.cfg.DOFs {
		return Working, fmt.Errorf("%d target states for %d axes: %w", len(target), t.cfg.DOFs, ErrInvalidInput)
	}
	if len(in.TargetPosition) != t.cfg.DOFs || len(in.TargetVelocity) != t.cfg.DOFs ||
		len(in.TargetAcceleration) != t.cfg.DOFs {
		return Working, fmt.Errorf("target vectors not sized for %d axes: %w", t.cfg.DOFs, ErrInvalidInput)
	}
	for i, ts := range target {
		s := t.boxClamp(in, i, ts)
		in.TargetPosition[i] = s.Position
		in.TargetVelocity[i] = s.Velocity
		in.TargetAcceleration[i] = s.Acceleration
	}
	if err := in.Validate(t.cfg.DOFs, 0); err != nil {
		return Working, err
	}
	if err := checkOutput(out, t.cfg.DOFs); err != nil {
		return Working, err
	}

	iface := solver.Position
	if in.ControlInterface == ControlVelocity {
		iface = solver.Velocity
	}
	r := t.Reactiveness
	if r < 0 {
		r = 0
	} else if r > 1 {
		r = 1
	}

	start := t.clock.Now()
	poll := budgetPoll(t.clock, in.CalculationBudget)
	lims := limitsOf(in)
	profiles := make([]profile.Profile, t.cfg.DOFs)
	duration := 0.0
	for i := 0; i < t.cfg.DOFs; i++ {
		if poll != nil {
			if err := poll(); err != nil {
				return Working, err
			}
		}
		cur := profile.State{
			Position:     in.CurrentPosition[i],
			Velocity:     in.CurrentVelocity[i],
			Acceleration: in.CurrentAcceleration[i],
		}
		eff := t.boxClamp(in, i, State{
			Position:     cur.Position + r*(in.TargetPosition[i]-cur.Position),
			Velocity:     cur.Velocity + r*(in.TargetVelocity[i]-cur.Velocity),
			Acceleration: cur.Acceleration + r*(in.TargetAcceleration[i]-cur.Acceleration),
		})
		p, err := solver.MinimumTime(cur, profile.State(eff), lims[i], iface)
		if err != nil {
			return Working, fmt.Errorf("axis %d: %w: %w", i, ErrInfeasible, err)
		}
		profiles[i] = p
		if d := p.Duration(); d > duration {
			duration = d
		}
	}
	out.CalculationDuration = t.clock.Since(start)

	traj := &Trajectory{profiles: profiles, duration: duration, sections: []float64{duration}}
	cycle := t.cfg.Cycle.Seconds()
	out.NewCalculation = true
	out.Time = cycle
	out.Trajectory = traj
	traj.at(cycle, out.NewPosition, out.NewVelocity, out.NewAcceleration, out.NewJerk)
	if cycle < duration {
		return Working, nil
	}
	return Finished, nil
}

// boxClamp pulls a state's position into the axis's position bounds,
// zeroing velocity and acceleration that point further out.
func (t *Tracker) boxClamp(in *Input, i int, s State) State {
	if in.MinPosition == nil || in.MaxPosition == nil {
		return s
	}
	if s.Position > in.MaxPosition[i] {
		s.Position = in.MaxPosition[i]
		if s.Velocity > 0 {
			s.Velocity = 0
		}
		if s.Acceleration > 0 {
			s.Acceleration = 0
		}
	}
	if s.Position < in.MinPosition[i] {
		s.Position = in.MinPosition[i]
		if s.Velocity < 0 {
			s.Velocity = 0
		}
		if s.Acceleration < 0 {
			s.Acceleration = 0
		}
	}
	return s
}

