package sim

import (
	"math"

	"github.com/banshee-data/otg"
)

// Target is a moving setpoint for one axis, queried per cycle.
type Target interface {
	At(t float64) otg.State
}

// Ramp moves at constant velocity.
type Ramp struct {
	Start float64
	Slope float64
}

func (r Ramp) At(t float64) otg.State {
	return otg.State{Position: r.Start + r.Slope*t, Velocity: r.Slope}
}

// Parabola moves at constant acceleration.
type Parabola struct {
	Start float64
	Accel float64
}

func (p Parabola) At(t float64) otg.State {
	return otg.State{
		Position:     p.Start + p.Accel*t*t/2,
		Velocity:     p.Accel * t,
		Acceleration: p.Accel,
	}
}

// Sinusoid oscillates around a center position.
type Sinusoid struct {
	Center    float64
	Amplitude float64
	// Frequency in hertz.
	Frequency float64
}

func (s Sinusoid) At(t float64) otg.State {
	w := 2 * math.Pi * s.Frequency
	return otg.State{
		Position:     s.Center + s.Amplitude*math.Sin(w*t),
		Velocity:     s.Amplitude * w * math.Cos(w*t),
		Acceleration: -s.Amplitude * w * w * math.Sin(w*t),
	}
}

// Hold keeps a fixed state.
type Hold struct {
	State otg.State
}

func (h Hold) At(float64) otg.State { return h.State }