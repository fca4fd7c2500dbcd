package otg

import "time"

// Output receives the per-cycle sample written by Update. Callers
// allocate it once with NewOutput and reuse it every cycle.
type Output struct {
	NewPosition     []float64
	NewVelocity     []float64
	NewAcceleration []float64
	NewJerk         []float64

	// Time is the elapsed time on the current trajectory, in seconds.
	Time float64
	// NewCalculation reports whether this cycle recomputed the
	// trajectory rather than sampling the cached one.
	NewCalculation bool
	// CalculationDuration is the wall-clock cost of the last
	// recomputation triggered by this generator.
	CalculationDuration time.Duration

	// Trajectory is the plan the sample was taken from. It stays valid
	// after later cycles replace it.
	Trajectory *Trajectory
}

// NewOutput returns an output block sized for dofs axes.
func NewOutput(dofs int) *Output {
	return &Output{
		NewPosition:     make([]float64, dofs),
		NewVelocity:     make([]float64, dofs),
		NewAcceleration: make([]float64, dofs),
		NewJerk:         make([]float64, dofs),
	}
}

// PassToInput copies the sampled state into the input's current state,
// closing the loop for the next cycle. The copy never aliases, so the
// caller may overwrite the input with sensor feedback afterwards.
func (o *Output) PassToInput(in *Input) {
	copy(in.CurrentPosition, o.NewPosition)
	copy(in.CurrentVelocity, o.NewVelocity)
	copy(in.CurrentAcceleration, o.NewAcceleration)
}