package otg

import (
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/otg/internal/blocksync"
	"github.com/banshee-data/otg/internal/profile"
	"github.com/banshee-data/otg/internal/solver"
	"github.com/banshee-data/otg/internal/timeutil"
	"github.com/banshee-data/otg/internal/waypoint"
)

// Result reports the progress of a control cycle.
type Result int

const (
	// Working means the trajectory is still being traversed.
	Working Result = iota
	// Finished means the trajectory end was reached; further cycles
	// hold the final state.
	Finished
)

func (r Result) String() string {
	switch r {
	case Working:
		return "working"
	case Finished:
		return "finished"
	}
	return fmt.Sprintf("Result(%d)", int(r))
}

// positionLimitTol pads the position box check so a trajectory that
// grazes a bound by roundoff is not rejected.
const positionLimitTol = 1e-9

// Config sets the fixed shape of a Generator or Tracker.
type Config struct {
	// DOFs is the number of axes.
	DOFs int
	// Cycle is the control period Update advances by. It may be zero
	// when the instance is only used for offline Calculate calls.
	Cycle time.Duration
	// WaypointCapacity caps len(Input.IntermediatePositions). Zero
	// means no waypoints are accepted.
	WaypointCapacity int
	// Clock drives the calculation budget. Nil means the wall clock.
	Clock timeutil.Clock
}

// DefaultConfig returns a config for dofs axes with a 10 ms control
// cycle and the wall clock.
func DefaultConfig(dofs int) Config {
	return Config{DOFs: dofs, Cycle: 10 * time.Millisecond, Clock: timeutil.RealClock{}}
}

// Generator produces time-optimal jerk-limited trajectories and serves
// them one control cycle at a time. It caches the active trajectory
// and recomputes only when the input changes, so a control loop that
// feeds the output back via PassToInput pays for a solve once per new
// target. A Generator is not safe for concurrent use; the trajectories
// it returns are.
type Generator struct {
	cfg   Config
	clock timeutil.Clock

	traj    *Trajectory
	last    *Input
	elapsed float64
}

// New returns a generator for the given shape.
func New(cfg Config) (*Generator, error) {
	if cfg.DOFs <= 0 {
		return nil, fmt.Errorf("config needs at least one axis: %w", ErrInvalidInput)
	}
	if cfg.Cycle < 0 {
		return nil, fmt.Errorf("cycle %v is negative: %w", cfg.Cycle, ErrInvalidInput)
	}
	if cfg.WaypointCapacity < 0 {
		return nil, fmt.Errorf("waypoint capacity %d is negative: %w", cfg.WaypointCapacity, ErrInvalidInput)
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	return &Generator{cfg: cfg, clock: cfg.Clock}, nil
}

// Update runs one control cycle: recompute the trajectory when the
// input changed since the last cycle, advance by the configured cycle
// and write the sampled state into out. When a recomputation exceeds
// the calculation budget the previous trajectory keeps being sampled
// and the cycle returns ErrCalculationTimeout alongside the usual
// result; the solve is retried next cycle.
func (g *Generator) Update(in *Input, out *Output) (Result, error) {
	if err := in.Validate(g.cfg.DOFs, g.cfg.WaypointCapacity); err != nil {
		return Working, err
	}
	if err := checkOutput(out, g.cfg.DOFs); err != nil {
		return Working, err
	}

	out.NewCalculation = false
	if g.traj == nil || !in.Equal(g.last) {
		start := g.clock.Now()
		traj, err := g.solve(in)
		out.CalculationDuration = g.clock.Since(start)
		switch {
		case err == nil:
			g.traj = traj
			g.last = in.Clone()
			g.elapsed = 0
			out.NewCalculation = true
		case errors.Is(err, ErrCalculationTimeout) && g.traj != nil:
			return g.sample(out), err
		default:
			return Working, err
		}
	}
	return g.sample(out), nil
}

// sample advances the cycle clock and writes the state at the new time
// into out. The sampled state also lands in the retained input so an
// unchanged, fed-back input keeps tracking this trajectory.
func (g *Generator) sample(out *Output) Result {
	g.elapsed += g.cfg.Cycle.Seconds()
	out.Time = g.elapsed
	out.Trajectory = g.traj
	g.traj.at(g.elapsed, out.NewPosition, out.NewVelocity, out.NewAcceleration, out.NewJerk)
	copy(g.last.CurrentPosition, out.NewPosition)
	copy(g.last.CurrentVelocity, out.NewVelocity)
	copy(g.last.CurrentAcceleration, out.NewAcceleration)
	if g.elapsed < g.traj.duration {
		return Working
	}
	return Finished
}

// Calculate solves for a trajectory without touching the cycle state.
// It is the offline entry point: deterministic for a given input and
// safe to call between Updates.
func (g *Generator) Calculate(in *Input) (*Trajectory, error) {
	if err := in.Validate(g.cfg.DOFs, g.cfg.WaypointCapacity); err != nil {
		return nil, err
	}
	return g.solve(in)
}

// Reset drops the cached trajectory so the next Update recomputes
// regardless of input equality.
func (g *Generator) Reset() {
	g.traj = nil
	g.last = nil
	g.elapsed = 0
}

func (g *Generator) solve(in *Input) (*Trajectory, error) {
	poll := budgetPoll(g.clock, in.CalculationBudget)
	iface := solver.Position
	if in.ControlInterface == ControlVelocity {
		iface = solver.Velocity
	}
	mode := syncMode(in.Synchronization)

	var traj *Trajectory
	if len(in.IntermediatePositions) > 0 {
		res, err := waypoint.Chain(waypoint.Request{
			Start:           statesOf(in.CurrentPosition, in.CurrentVelocity, in.CurrentAcceleration),
			Target:          statesOf(in.TargetPosition, in.TargetVelocity, in.TargetAcceleration),
			Points:          in.IntermediatePositions,
			Limits:          limitsOf(in),
			Mode:            mode,
			SectionFloors:   in.PerSectionMinimumDuration,
			MinimumDuration: in.MinimumDuration,
		}, poll)
		if err != nil {
			return nil, wrapSolve(err)
		}
		traj = &Trajectory{profiles: res.Profiles, duration: res.Duration, sections: res.Sections}
	} else {
		axes := make([]blocksync.Axis, g.cfg.DOFs)
		lims := limitsOf(in)
		for i := range axes {
			axes[i] = blocksync.Axis{
				Current: profile.State{Position: in.CurrentPosition[i], Velocity: in.CurrentVelocity[i], Acceleration: in.CurrentAcceleration[i]},
				Target:  profile.State{Position: in.TargetPosition[i], Velocity: in.TargetVelocity[i], Acceleration: in.TargetAcceleration[i]},
				Limits:  lims[i],
			}
		}
		plan, err := blocksync.Synchronize(axes, mode, iface, in.MinimumDuration, poll)
		if err != nil {
			return nil, wrapSolve(err)
		}
		traj = &Trajectory{
			profiles:     plan.Profiles,
			duration:     plan.Duration,
			minDurations: plan.MinDurations,
			sections:     []float64{plan.Duration},
		}
	}

	if in.MinPosition != nil {
		for i, ex := range traj.PositionExtrema() {
			if ex.Min < in.MinPosition[i]-positionLimitTol || ex.Max > in.MaxPosition[i]+positionLimitTol {
				return nil, fmt.Errorf("axis %d sweeps [%.6g, %.6g]: %w", i, ex.Min, ex.Max, ErrPositionLimits)
			}
		}
	}
	return traj, nil
}

// budgetPoll returns the cancellation hook handed to the solvers, nil
// when no budget is set.
func budgetPoll(clock timeutil.Clock, budget time.Duration) func() error {
	if budget <= 0 {
		return nil
	}
	start := clock.Now()
	return func() error {
		if clock.Since(start) > budget {
			return fmt.Errorf("budget %v spent: %w", budget, ErrCalculationTimeout)
		}
		return nil
	}
}

// wrapSolve maps internal solve failures onto the public sentinels.
// Budget errors already carry theirs and pass through untouched.
func wrapSolve(err error) error {
	if errors.Is(err, ErrCalculationTimeout) {
		return err
	}
	if errors.Is(err, solver.ErrNoProfile) || errors.Is(err, solver.ErrNoDuration) ||
		errors.Is(err, blocksync.ErrUnsynchronizable) {
		return fmt.Errorf("%w: %w", ErrInfeasible, err)
	}
	return err
}

func syncMode(s Synchronization) blocksync.Mode {
	switch s {
	case SyncTimeIfNecessary:
		return blocksync.TimeIfNecessary
	case SyncPhase:
		return blocksync.Phase
	case SyncNone:
		return blocksync.None
	}
	return blocksync.Time
}

func statesOf(pos, vel, acc []float64) []profile.State {
	out := make([]profile.State, len(pos))
	for i := range out {
		out[i] = profile.State{Position: pos[i], Velocity: vel[i], Acceleration: acc[i]}
	}
	return out
}

func limitsOf(in *Input) []solver.Limits {
	out := make([]solver.Limits, len(in.MaxVelocity))
	for i := range out {
		out[i] = solver.Limits{
			MaxVelocity:     in.MaxVelocity[i],
			MaxAcceleration: in.MaxAcceleration[i],
			MaxJerk:         in.MaxJerk[i],
		}
		if in.MinVelocity != nil {
			out[i].MinVelocity = in.MinVelocity[i]
		}
		if in.MinAcceleration != nil {
			out[i].MinAcceleration = in.MinAcceleration[i]
		}
	}
	return out
}

func checkOutput(out *Output, dofs int) error {
	if out == nil {
		return fmt.Errorf("nil output: %w", ErrInvalidInput)
	}
	if len(out.NewPosition) != dofs || len(out.NewVelocity) != dofs ||
		len(out.NewAcceleration) != dofs || len(out.NewJerk) != dofs {
		return fmt.Errorf("output not sized for %d axes: %w", dofs, ErrInvalidInput)
	}
	return nil
}