package sim

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/otg"
)

// Scenario describes one recordable run loaded from a JSON file. Only
// name, dofs and the limit vectors are required; everything else keeps
// its zero value, so partial files are safe.
type Scenario struct {
	Name string `json:"name"`
	DOFs int    `json:"dofs"`

	CurrentPosition     []float64 `json:"current_position,omitempty"`
	CurrentVelocity     []float64 `json:"current_velocity,omitempty"`
	CurrentAcceleration []float64 `json:"current_acceleration,omitempty"`
	TargetPosition      []float64 `json:"target_position,omitempty"`
	TargetVelocity      []float64 `json:"target_velocity,omitempty"`
	TargetAcceleration  []float64 `json:"target_acceleration,omitempty"`

	MaxVelocity     []float64 `json:"max_velocity"`
	MaxAcceleration []float64 `json:"max_acceleration"`
	MaxJerk         []float64 `json:"max_jerk"`
	MinVelocity     []float64 `json:"min_velocity,omitempty"`
	MinAcceleration []float64 `json:"min_acceleration,omitempty"`
	MinPosition     []float64 `json:"min_position,omitempty"`
	MaxPosition     []float64 `json:"max_position,omitempty"`

	IntermediatePositions     [][]float64 `json:"intermediate_positions,omitempty"`
	MinimumDuration           float64     `json:"minimum_duration,omitempty"`
	PerSectionMinimumDuration []float64   `json:"per_section_minimum_duration,omitempty"`

	// ControlInterface is "position" (default) or "velocity".
	ControlInterface string `json:"control_interface,omitempty"`
	// Synchronization is "time" (default), "time-if-necessary",
	// "phase" or "none".
	Synchronization string `json:"synchronization,omitempty"`

	// MaxCycles caps the control loop; zero selects a default.
	MaxCycles int `json:"max_cycles,omitempty"`
}

// LoadScenario loads a Scenario from a JSON file. The file must have a
// .json extension and stay under the max file size.
func LoadScenario(path string) (*Scenario, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("scenario file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat scenario file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("scenario file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	sc := &Scenario{}
	if err := json.Unmarshal(data, sc); err != nil {
		return nil, fmt.Errorf("failed to parse scenario JSON: %w", err)
	}
	if sc.Name == "" {
		base := filepath.Base(cleanPath)
		sc.Name = base[:len(base)-len(".json")]
	}

	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return sc, nil
}

// Validate checks the scenario fields that the input block cannot
// check itself; vector shapes are validated by the generator.
func (s *Scenario) Validate() error {
	if s.DOFs <= 0 {
		return fmt.Errorf("dofs must be positive, got %d", s.DOFs)
	}
	if _, err := s.controlInterface(); err != nil {
		return err
	}
	if _, err := s.synchronization(); err != nil {
		return err
	}
	if s.MaxCycles < 0 {
		return fmt.Errorf("max_cycles must not be negative, got %d", s.MaxCycles)
	}
	return nil
}

func (s *Scenario) controlInterface() (otg.ControlInterface, error) {
	switch s.ControlInterface {
	case "", "position":
		return otg.ControlPosition, nil
	case "velocity":
		return otg.ControlVelocity, nil
	}
	return 0, fmt.Errorf("unknown control_interface %q", s.ControlInterface)
}

func (s *Scenario) synchronization() (otg.Synchronization, error) {
	switch s.Synchronization {
	case "", "time":
		return otg.SyncTime, nil
	case "time-if-necessary":
		return otg.SyncTimeIfNecessary, nil
	case "phase":
		return otg.SyncPhase, nil
	case "none":
		return otg.SyncNone, nil
	}
	return 0, fmt.Errorf("unknown synchronization %q", s.Synchronization)
}

// Input builds the input block the scenario describes.
func (s *Scenario) Input() (*otg.Input, error) {
	iface, err := s.controlInterface()
	if err != nil {
		return nil, err
	}
	sync, err := s.synchronization()
	if err != nil {
		return nil, err
	}

	in := otg.NewInput(s.DOFs)
	for _, f := range []struct {
		dst []float64
		src []float64
	}{
		{in.CurrentPosition, s.CurrentPosition},
		{in.CurrentVelocity, s.CurrentVelocity},
		{in.CurrentAcceleration, s.CurrentAcceleration},
		{in.TargetPosition, s.TargetPosition},
		{in.TargetVelocity, s.TargetVelocity},
		{in.TargetAcceleration, s.TargetAcceleration},
		{in.MaxVelocity, s.MaxVelocity},
		{in.MaxAcceleration, s.MaxAcceleration},
		{in.MaxJerk, s.MaxJerk},
	} {
		copy(f.dst, f.src)
	}
	if s.MinVelocity != nil {
		in.MinVelocity = append([]float64(nil), s.MinVelocity...)
	}
	if s.MinAcceleration != nil {
		in.MinAcceleration = append([]float64(nil), s.MinAcceleration...)
	}
	if s.MinPosition != nil {
		in.MinPosition = append([]float64(nil), s.MinPosition...)
	}
	if s.MaxPosition != nil {
		in.MaxPosition = append([]float64(nil), s.MaxPosition...)
	}
	for _, wp := range s.IntermediatePositions {
		in.IntermediatePositions = append(in.IntermediatePositions, append([]float64(nil), wp...))
	}
	if s.PerSectionMinimumDuration != nil {
		in.PerSectionMinimumDuration = append([]float64(nil), s.PerSectionMinimumDuration...)
	}
	in.MinimumDuration = s.MinimumDuration
	in.ControlInterface = iface
	in.Synchronization = sync
	return in, nil
}

// Run plans the scenario and plays it through a control loop at the
// given cycle.
func (s *Scenario) Run(cycle time.Duration) (*Recording, error) {
	in, err := s.Input()
	if err != nil {
		return nil, err
	}
	g, err := otg.New(otg.Config{
		DOFs:             s.DOFs,
		Cycle:            cycle,
		WaypointCapacity: len(s.IntermediatePositions),
	})
	if err != nil {
		return nil, err
	}
	maxCycles := s.MaxCycles
	if maxCycles == 0 {
		maxCycles = 100000
	}
	return RunLoop(g, in, cycle, maxCycles)
}