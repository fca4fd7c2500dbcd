package otg

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"gonum.org/v1/gonum/floats"
)

var (
	// ErrInvalidInput reports a shape or limit problem detectable
	// before any computation.
	ErrInvalidInput = errors.New("otg: invalid input")

	// ErrInfeasible reports that no profile satisfies the target and
	// limit combination.
	ErrInfeasible = errors.New("otg: infeasible input")

	// ErrCalculationTimeout reports that a recomputation exceeded the
	// calculation budget. A previously computed trajectory, when one
	// exists, stays valid and keeps being sampled.
	ErrCalculationTimeout = errors.New("otg: calculation budget exceeded")

	// ErrPositionLimits reports a planned trajectory that would leave
	// the configured position bounds.
	ErrPositionLimits = errors.New("otg: trajectory exceeds position limits")

	// ErrSynchronization reports a synchronization mode the requested
	// motion cannot use.
	ErrSynchronization = errors.New("otg: synchronization mode not applicable")
)

// State is the kinematic triple of one axis.
type State struct {
	Position     float64
	Velocity     float64
	Acceleration float64
}

// ControlInterface selects which target components bind a solve.
type ControlInterface int

const (
	// ControlPosition binds target position, velocity and
	// acceleration.
	ControlPosition ControlInterface = iota
	// ControlVelocity binds target velocity and acceleration; position
	// runs free.
	ControlVelocity
)

func (c ControlInterface) String() string {
	switch c {
	case ControlPosition:
		return "position"
	case ControlVelocity:
		return "velocity"
	}
	return fmt.Sprintf("ControlInterface(%d)", int(c))
}

// Synchronization selects how the axis durations relate.
type Synchronization int

const (
	// SyncTime forces all axes to finish together.
	SyncTime Synchronization = iota
	// SyncTimeIfNecessary synchronizes only when more than one axis
	// moves.
	SyncTimeIfNecessary
	// SyncPhase keeps collinear axes on a straight line through state
	// space, falling back to SyncTime when that is not possible.
	SyncPhase
	// SyncNone lets every axis run its own minimum-time profile.
	SyncNone
)

func (s Synchronization) String() string {
	switch s {
	case SyncTime:
		return "time"
	case SyncTimeIfNecessary:
		return "time-if-necessary"
	case SyncPhase:
		return "phase"
	case SyncNone:
		return "none"
	}
	return fmt.Sprintf("Synchronization(%d)", int(s))
}

// Input is the caller-owned parameter block read by Update and
// Calculate. The required slices are sized by NewInput; the Min
// bounds, position box and waypoint fields stay nil unless used.
// The core never retains a reference to an Input.
type Input struct {
	CurrentPosition     []float64
	CurrentVelocity     []float64
	CurrentAcceleration []float64

	TargetPosition     []float64
	TargetVelocity     []float64
	TargetAcceleration []float64

	MaxVelocity     []float64
	MaxAcceleration []float64
	MaxJerk         []float64

	// Optional asymmetric lower bounds; nil means the negated maxima.
	MinVelocity     []float64
	MinAcceleration []float64

	// Optional position box. Both or neither must be set.
	MinPosition []float64
	MaxPosition []float64

	// IntermediatePositions lists waypoint position vectors in
	// visiting order, at most the generator's waypoint capacity.
	IntermediatePositions [][]float64

	// MinimumDuration floors the whole trajectory, in seconds.
	MinimumDuration float64
	// PerSectionMinimumDuration floors each waypoint leg in seconds,
	// len(IntermediatePositions)+1 entries.
	PerSectionMinimumDuration []float64

	ControlInterface ControlInterface
	Synchronization  Synchronization

	// CalculationBudget bounds the wall-clock time of one
	// recomputation. Zero disables the budget.
	CalculationBudget time.Duration
}

// NewInput returns an input block with the required vectors sized for
// dofs axes.
func NewInput(dofs int) *Input {
	return &Input{
		CurrentPosition:     make([]float64, dofs),
		CurrentVelocity:     make([]float64, dofs),
		CurrentAcceleration: make([]float64, dofs),
		TargetPosition:      make([]float64, dofs),
		TargetVelocity:      make([]float64, dofs),
		TargetAcceleration:  make([]float64, dofs),
		MaxVelocity:         make([]float64, dofs),
		MaxAcceleration:     make([]float64, dofs),
		MaxJerk:             make([]float64, dofs),
	}
}

// Validate checks the input against the instance shape before any
// computation. All failures wrap ErrInvalidInput except an unusable
// synchronization mode, which wraps ErrSynchronization.
func (in *Input) Validate(dofs, waypointCapacity int) error {
	required := []struct {
		name string
		vec  []float64
	}{
		{"current position", in.CurrentPosition},
		{"current velocity", in.CurrentVelocity},
		{"current acceleration", in.CurrentAcceleration},
		{"target position", in.TargetPosition},
		{"target velocity", in.TargetVelocity},
		{"target acceleration", in.TargetAcceleration},
		{"max velocity", in.MaxVelocity},
		{"max acceleration", in.MaxAcceleration},
		{"max jerk", in.MaxJerk},
	}
	for _, f := range required {
		if len(f.vec) != dofs {
			return fmt.Errorf("%s has %d entries, want %d: %w", f.name, len(f.vec), dofs, ErrInvalidInput)
		}
		if floats.HasNaN(f.vec) {
			return fmt.Errorf("%s contains NaN: %w", f.name, ErrInvalidInput)
		}
	}
	optional := []struct {
		name string
		vec  []float64
	}{
		{"min velocity", in.MinVelocity},
		{"min acceleration", in.MinAcceleration},
		{"min position", in.MinPosition},
		{"max position", in.MaxPosition},
	}
	for _, f := range optional {
		if f.vec == nil {
			continue
		}
		if len(f.vec) != dofs {
			return fmt.Errorf("%s has %d entries, want %d: %w", f.name, len(f.vec), dofs, ErrInvalidInput)
		}
		if floats.HasNaN(f.vec) {
			return fmt.Errorf("%s contains NaN: %w", f.name, ErrInvalidInput)
		}
	}

	for i := 0; i < dofs; i++ {
		if in.MaxVelocity[i] <= 0 {
			return fmt.Errorf("max velocity of axis %d is %v, want > 0: %w", i, in.MaxVelocity[i], ErrInvalidInput)
		}
		if in.MaxAcceleration[i] <= 0 {
			return fmt.Errorf("max acceleration of axis %d is %v, want > 0: %w", i, in.MaxAcceleration[i], ErrInvalidInput)
		}
		if in.MaxJerk[i] <= 0 || math.IsNaN(in.MaxJerk[i]) {
			return fmt.Errorf("max jerk of axis %d is %v, want > 0: %w", i, in.MaxJerk[i], ErrInvalidInput)
		}
		if in.MinVelocity != nil && in.MinVelocity[i] >= 0 {
			return fmt.Errorf("min velocity of axis %d is %v, want < 0: %w", i, in.MinVelocity[i], ErrInvalidInput)
		}
		if in.MinAcceleration != nil && in.MinAcceleration[i] >= 0 {
			return fmt.Errorf("min acceleration of axis %d is %v, want < 0: %w", i, in.MinAcceleration[i], ErrInvalidInput)
		}
	}

	if (in.MinPosition == nil) != (in.MaxPosition == nil) {
		return fmt.Errorf("position bounds must be set together: %w", ErrInvalidInput)
	}
	if in.MinPosition != nil {
		for i := 0; i < dofs; i++ {
			if in.MinPosition[i] > in.MaxPosition[i] {
				return fmt.Errorf("position bounds of axis %d are inverted: %w", i, ErrInvalidInput)
			}
			if in.TargetPosition[i] < in.MinPosition[i] || in.TargetPosition[i] > in.MaxPosition[i] {
				return fmt.Errorf("target position of axis %d outside bounds: %w", i, ErrInvalidInput)
			}
		}
	}

	if len(in.IntermediatePositions) > waypointCapacity {
		return fmt.Errorf("%d waypoints exceed capacity %d: %w", len(in.IntermediatePositions), waypointCapacity, ErrInvalidInput)
	}
	for k, pt := range in.IntermediatePositions {
		if len(pt) != dofs {
			return fmt.Errorf("waypoint %d has %d coordinates, want %d: %w", k, len(pt), dofs, ErrInvalidInput)
		}
		if floats.HasNaN(pt) {
			return fmt.Errorf("waypoint %d contains NaN: %w", k, ErrInvalidInput)
		}
	}
	if len(in.IntermediatePositions) > 0 {
		if in.ControlInterface != ControlPosition {
			return fmt.Errorf("waypoints need the position interface: %w", ErrSynchronization)
		}
		if in.Synchronization == SyncNone {
			return fmt.Errorf("waypoints need synchronized axes: %w", ErrSynchronization)
		}
	}
	if in.PerSectionMinimumDuration != nil && len(in.PerSectionMinimumDuration) != len(in.IntermediatePositions)+1 {
		return fmt.Errorf("%d section durations for %d sections: %w",
			len(in.PerSectionMinimumDuration), len(in.IntermediatePositions)+1, ErrInvalidInput)
	}
	for k, d := range in.PerSectionMinimumDuration {
		if d < 0 || math.IsNaN(d) {
			return fmt.Errorf("section duration %d is %v: %w", k, d, ErrInvalidInput)
		}
	}
	if in.MinimumDuration < 0 || math.IsNaN(in.MinimumDuration) {
		return fmt.Errorf("minimum duration is %v: %w", in.MinimumDuration, ErrInvalidInput)
	}
	if in.CalculationBudget < 0 {
		return fmt.Errorf("calculation budget is negative: %w", ErrInvalidInput)
	}
	if in.ControlInterface != ControlPosition && in.ControlInterface != ControlVelocity {
		return fmt.Errorf("unknown control interface %d: %w", int(in.ControlInterface), ErrInvalidInput)
	}
	if in.Synchronization < SyncTime || in.Synchronization > SyncNone {
		return fmt.Errorf("unknown synchronization %d: %w", int(in.Synchronization), ErrInvalidInput)
	}
	return nil
}

// Clone returns a deep copy sharing no slices with the original.
func (in *Input) Clone() *Input {
	out := *in
	out.CurrentPosition = slices.Clone(in.CurrentPosition)
	out.CurrentVelocity = slices.Clone(in.CurrentVelocity)
	out.CurrentAcceleration = slices.Clone(in.CurrentAcceleration)
	out.TargetPosition = slices.Clone(in.TargetPosition)
	out.TargetVelocity = slices.Clone(in.TargetVelocity)
	out.TargetAcceleration = slices.Clone(in.TargetAcceleration)
	out.MaxVelocity = slices.Clone(in.MaxVelocity)
	out.MaxAcceleration = slices.Clone(in.MaxAcceleration)
	out.MaxJerk = slices.Clone(in.MaxJerk)
	out.MinVelocity = slices.Clone(in.MinVelocity)
	out.MinAcceleration = slices.Clone(in.MinAcceleration)
	out.MinPosition = slices.Clone(in.MinPosition)
	out.MaxPosition = slices.Clone(in.MaxPosition)
	out.PerSectionMinimumDuration = slices.Clone(in.PerSectionMinimumDuration)
	if in.IntermediatePositions != nil {
		out.IntermediatePositions = make([][]float64, len(in.IntermediatePositions))
		for k, pt := range in.IntermediatePositions {
			out.IntermediatePositions[k] = slices.Clone(pt)
		}
	}
	return &out
}

// Equal reports bit-exact equality of every field. Update uses it to
// decide whether the cached trajectory still matches the input: a
// sampled state fed back through PassToInput compares equal, while a
// new target, edited limits or substituted sensor feedback does not.
func (in *Input) Equal(other *Input) bool {
	if in == nil || other == nil {
		return in == other
	}
	if !slices.Equal(in.CurrentPosition, other.CurrentPosition) ||
		!slices.Equal(in.CurrentVelocity, other.CurrentVelocity) ||
		!slices.Equal(in.CurrentAcceleration, other.CurrentAcceleration) ||
		!slices.Equal(in.TargetPosition, other.TargetPosition) ||
		!slices.Equal(in.TargetVelocity, other.TargetVelocity) ||
		!slices.Equal(in.TargetAcceleration, other.TargetAcceleration) ||
		!slices.Equal(in.MaxVelocity, other.MaxVelocity) ||
		!slices.Equal(in.MaxAcceleration, other.MaxAcceleration) ||
		!slices.Equal(in.MaxJerk, other.MaxJerk) ||
		!slices.Equal(in.MinVelocity, other.MinVelocity) ||
		!slices.Equal(in.MinAcceleration, other.MinAcceleration) ||
		!slices.Equal(in.MinPosition, other.MinPosition) ||
		!slices.Equal(in.MaxPosition, other.MaxPosition) ||
		!slices.Equal(in.PerSectionMinimumDuration, other.PerSectionMinimumDuration) {
		return false
	}
	if len(in.IntermediatePositions) != len(other.IntermediatePositions) {
		return false
	}
	for k := range in.IntermediatePositions {
		if !slices.Equal(in.IntermediatePositions[k], other.IntermediatePositions[k]) {
			return false
		}
	}
	return in.MinimumDuration == other.MinimumDuration &&
		in.ControlInterface == other.ControlInterface &&
		in.Synchronization == other.Synchronization &&
		in.CalculationBudget == other.CalculationBudget
}