// Package stream paces computed trajectory setpoints over a serial
// link, one line per control cycle, so an external motion controller
// can follow a plan without running the solver itself.
package stream

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/otg"
	"github.com/banshee-data/otg/internal/timeutil"
)

// Logf is the package-level diagnostic logger. It defaults to
// log.Printf but may be replaced by SetLogger.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op
// logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// ErrWriteFailed reports a failed write to the setpoint port.
var ErrWriteFailed = errors.New("stream: write to port failed")

// Streamer paces trajectory setpoints out a port at a fixed control
// cycle. Each cycle emits one line:
//
//	SP <t> <p0,p1,...> <v0,v1,...> <a0,a1,...>
//
// with time in seconds and one comma-separated group per kinematic
// field.
type Streamer struct {
	port  Porter
	cycle time.Duration
	clock timeutil.Clock
}

// StreamerConfig contains configuration options for a Streamer.
type StreamerConfig struct {
	Port  Porter
	Cycle time.Duration

	// Clock paces the stream. Nil selects the real clock.
	Clock timeutil.Clock
}

// NewStreamer creates a Streamer with the provided configuration.
func NewStreamer(config StreamerConfig) (*Streamer, error) {
	if config.Port == nil {
		return nil, errors.New("stream: port is required")
	}
	if config.Cycle <= 0 {
		return nil, errors.New("stream: cycle must be positive")
	}
	clock := config.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Streamer{port: config.Port, cycle: config.Cycle, clock: clock}, nil
}

// Stream samples traj once per cycle and writes each setpoint to the
// port. It returns after writing the setpoint at or past the end of
// the trajectory, or earlier if the context is cancelled or a write
// fails. The port is left open.
func (s *Streamer) Stream(ctx context.Context, traj *otg.Trajectory) error {
	if traj == nil {
		return errors.New("stream: nil trajectory")
	}
	dofs := traj.DOFs()
	pos := make([]float64, dofs)
	vel := make([]float64, dofs)
	acc := make([]float64, dofs)

	ticker := s.clock.NewTicker(s.cycle)
	defer ticker.Stop()

	cycle := s.cycle.Seconds()
	elapsed := 0.0
	setpoints := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			elapsed += cycle
			traj.At(elapsed, pos, vel, acc)
			if err := s.writeSetpoint(elapsed, pos, vel, acc); err != nil {
				return err
			}
			setpoints++
			if elapsed >= traj.Duration() {
				Logf("stream: finished trajectory (%d setpoints, %.3fs)", setpoints, traj.Duration())
				return nil
			}
		}
	}
}

func (s *Streamer) writeSetpoint(t float64, pos, vel, acc []float64) error {
	var b strings.Builder
	b.WriteString("SP ")
	b.WriteString(strconv.FormatFloat(t, 'f', 6, 64))
	appendGroup(&b, pos)
	appendGroup(&b, vel)
	appendGroup(&b, acc)
	b.WriteByte('\n')

	if _, err := s.port.Write([]byte(b.String())); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	return nil
}

func appendGroup(b *strings.Builder, vals []float64) {
	b.WriteByte(' ')
	for i, v := range vals {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(v, 'f', 6, 64))
	}
}