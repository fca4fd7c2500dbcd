package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/otg"
	"github.com/banshee-data/otg/internal/monitor"
	"github.com/banshee-data/otg/internal/sim"
	"github.com/banshee-data/otg/internal/store"
	"github.com/banshee-data/otg/internal/stream"
	"github.com/banshee-data/otg/internal/version"
)

var (
	listen   = flag.String("listen", ":8080", "HTTP listen address")
	dbFile   = flag.String("db", "trajectory_runs.db", "Path to the SQLite database file")
	cycle    = flag.Duration("cycle", 10*time.Millisecond, "Control cycle")
	scenario = flag.String("scenario", "all", "Scenario to record on startup (demo, waypoints, tracking, all, none)")
	scenFile = flag.String("scenario-file", "", "Path to a JSON scenario file to record on startup")
	portName = flag.String("port", "", "Serial port to stream the demo trajectory to")
	baudRate = flag.Int("baud", 115200, "Serial baud rate")
	devMode  = flag.Bool("dev", false, "Run in dev mode (stream to an in-memory port)")
)

// demoInput is a three-axis point-to-point move that starts mid-flight
// on two axes.
func demoInput() *otg.Input {
	in := otg.NewInput(3)
	copy(in.CurrentPosition, []float64{0, 0, 0.5})
	copy(in.CurrentVelocity, []float64{0, -2.2, -0.5})
	copy(in.CurrentAcceleration, []float64{0, 2.5, -0.5})
	copy(in.TargetPosition, []float64{5, -2, -3.5})
	copy(in.TargetVelocity, []float64{0, -0.5, -2})
	copy(in.TargetAcceleration, []float64{0, 0, 0.5})
	copy(in.MaxVelocity, []float64{3, 1, 3})
	copy(in.MaxAcceleration, []float64{3, 2, 1})
	copy(in.MaxJerk, []float64{4, 3, 2})
	return in
}

func demoScenario(cycle time.Duration) (*sim.Recording, error) {
	g, err := otg.New(otg.Config{DOFs: 3, Cycle: cycle})
	if err != nil {
		return nil, err
	}
	return sim.RunLoop(g, demoInput(), cycle, 4000)
}

func waypointScenario(cycle time.Duration) (*sim.Recording, error) {
	g, err := otg.New(otg.Config{DOFs: 2, Cycle: cycle, WaypointCapacity: 4})
	if err != nil {
		return nil, err
	}
	in := otg.NewInput(2)
	in.IntermediatePositions = [][]float64{{0.3, 0.2}, {0.6, -0.2}, {0.9, 0.2}}
	copy(in.TargetPosition, []float64{1.2, 0})
	copy(in.MaxVelocity, []float64{1, 1})
	copy(in.MaxAcceleration, []float64{4, 4})
	copy(in.MaxJerk, []float64{16, 16})
	in.MinimumDuration = 2
	return sim.RunLoop(g, in, cycle, 4000)
}

func trackingScenario(cycle time.Duration) (*sim.Recording, error) {
	tr, err := otg.NewTracker(otg.Config{DOFs: 2, Cycle: cycle})
	if err != nil {
		return nil, err
	}
	in := otg.NewInput(2)
	copy(in.MaxVelocity, []float64{1.5, 1.5})
	copy(in.MaxAcceleration, []float64{6, 6})
	copy(in.MaxJerk, []float64{40, 40})
	targets := []sim.Target{
		sim.Sinusoid{Amplitude: 0.4, Frequency: 0.5},
		sim.Ramp{Start: -0.2, Slope: 0.15},
	}
	return sim.RunTracking(tr, in, targets, cycle, 600)
}

// runScenarios plans the requested scenarios and records each one.
func runScenarios(st *store.Store, which string, cycle time.Duration) error {
	scenarios := []struct {
		name string
		run  func(time.Duration) (*sim.Recording, error)
	}{
		{"demo", demoScenario},
		{"waypoints", waypointScenario},
		{"tracking", trackingScenario},
	}
	for _, sc := range scenarios {
		if which != "all" && which != sc.name {
			continue
		}
		rec, err := sc.run(cycle)
		if err != nil {
			return fmt.Errorf("%s: %w", sc.name, err)
		}
		id, err := st.RecordRun(sc.name, rec)
		if err != nil {
			return fmt.Errorf("record %s: %w", sc.name, err)
		}
		log.Printf("Recorded %s run %s (%.3fs, %d samples)", sc.name, id, rec.Duration(), len(rec.Samples))
	}
	return nil
}

// Main
func main() {
	flag.Parse()

	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	if *cycle <= 0 {
		log.Fatal("Cycle must be positive")
	}

	log.Printf("otg %s (%s) starting", version.Version, version.GitSHA)

	st, err := store.Open(*dbFile)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer st.Close()

	if err := runScenarios(st, *scenario, *cycle); err != nil {
		log.Fatalf("Failed to run scenarios: %v", err)
	}

	if *scenFile != "" {
		sc, err := sim.LoadScenario(*scenFile)
		if err != nil {
			log.Fatalf("Failed to load scenario file: %v", err)
		}
		rec, err := sc.Run(*cycle)
		if err != nil {
			log.Fatalf("Failed to run scenario %s: %v", sc.Name, err)
		}
		id, err := st.RecordRun(sc.Name, rec)
		if err != nil {
			log.Fatalf("Failed to record scenario %s: %v", sc.Name, err)
		}
		log.Printf("Recorded %s run %s (%.3fs, %d samples)", sc.Name, id, rec.Duration(), len(rec.Samples))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	// stream the demo plan to a motion controller when a port is
	// configured; dev mode uses an in-memory port instead
	if *portName != "" || *devMode {
		var port stream.Porter
		if *devMode {
			port = stream.NewTestablePort()
		} else {
			port, err = stream.OpenPort(*portName, stream.PortOptions{BaudRate: *baudRate})
			if err != nil {
				log.Fatalf("failed to open serial port: %v", err)
			}
		}
		defer port.Close()

		streamer, err := stream.NewStreamer(stream.StreamerConfig{Port: port, Cycle: *cycle})
		if err != nil {
			log.Fatalf("failed to create streamer: %v", err)
		}

		g, err := otg.New(otg.Config{DOFs: 3, Cycle: *cycle})
		if err != nil {
			log.Fatalf("failed to create generator: %v", err)
		}
		traj, err := g.Calculate(demoInput())
		if err != nil {
			log.Fatalf("failed to plan streamed trajectory: %v", err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Printf("streaming %.3fs trajectory at %v cycle", traj.Duration(), *cycle)
			if err := streamer.Stream(ctx, traj); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("streaming stopped: %v", err)
				return
			}
			log.Printf("streaming routine terminated")
		}()
	}

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		ws := monitor.NewWebServer(monitor.WebServerConfig{Address: *listen, Store: st})
		if err := ws.Start(ctx); err != nil {
			log.Printf("web server: %v", err)
		}
	}()

	// Wait for all goroutines to finish
	wg.Wait()
	log.Printf("Graceful shutdown complete")
}