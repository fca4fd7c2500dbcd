// Package monitor serves the HTTP interface for inspecting recorded
// trajectory runs: JSON APIs for run headers and per-axis summaries,
// rendered charts, and PNG plots.
package monitor

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"time"

	"github.com/banshee-data/otg/internal/httputil"
	"github.com/banshee-data/otg/internal/sim"
	"github.com/banshee-data/otg/internal/store"
	"github.com/banshee-data/otg/internal/version"
)

//go:embed status.html
var statusHTML embed.FS

// WebServer handles the HTTP interface for monitoring recorded runs.
type WebServer struct {
	address string
	store   *store.Store
	server  *http.Server
	started time.Time
}

// WebServerConfig contains configuration options for the web server.
type WebServerConfig struct {
	Address string
	Store   *store.Store
}

// NewWebServer creates a new web server with the provided configuration.
func NewWebServer(config WebServerConfig) *WebServer {
	ws := &WebServer{
		address: config.Address,
		store:   config.Store,
		started: time.Now(),
	}
	ws.server = &http.Server{
		Addr:    ws.address,
		Handler: ws.setupRoutes(),
	}
	return ws
}

// setupRoutes configures the HTTP routes and handlers.
func (ws *WebServer) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", ws.handleHealth)
	mux.HandleFunc("/", ws.handleStatus)
	mux.HandleFunc("/api/runs", ws.handleRuns)
	mux.HandleFunc("/api/run", ws.handleRun)
	mux.HandleFunc("/charts/run", ws.handleRunChart)
	mux.HandleFunc("/plots/run.png", ws.handleRunPlot)

	if ws.store != nil {
		if err := ws.store.AttachAdminRoutes(mux); err != nil {
			log.Printf("attach admin routes: %v", err)
		}
	}
	return mux
}

// Start begins the HTTP server in a goroutine and handles graceful shutdown.
func (ws *WebServer) Start(ctx context.Context) error {
	go func() {
		log.Printf("Starting HTTP server on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := ws.server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}

	log.Printf("HTTP server routine stopped")
	return nil
}

// Close shuts down the web server.
func (ws *WebServer) Close() error {
	if ws.server != nil {
		return ws.server.Close()
	}
	return nil
}

// handleHealth handles the health check endpoint.
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status": "ok", "service": "otg", "version": "%s", "timestamp": "%s"}`,
		version.Version, time.Now().UTC().Format(time.RFC3339))
}

// handleStatus handles the main status page endpoint.
func (ws *WebServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	var runs []store.Run
	if ws.store != nil {
		var err error
		runs, err = ws.store.Runs(20)
		if err != nil {
			http.Error(w, "Error listing runs: "+err.Error(), http.StatusInternalServerError)
			return
		}
	}

	tmpl, err := template.ParseFS(statusHTML, "status.html")
	if err != nil {
		http.Error(w, "Error loading template: "+err.Error(), http.StatusInternalServerError)
		return
	}

	data := struct {
		Address string
		Uptime  string
		Runs    []store.Run
	}{
		Address: ws.address,
		Uptime:  time.Since(ws.started).Round(time.Second).String(),
		Runs:    runs,
	}

	w.Header().Set("Content-Type", "text/html")
	if err := tmpl.Execute(w, data); err != nil {
		http.Error(w, "Error executing template: "+err.Error(), http.StatusInternalServerError)
		return
	}
}

// runSummary is the JSON shape of one run header.
type runSummary struct {
	ID         string  `json:"run_id"`
	Name       string  `json:"name"`
	DOFs       int     `json:"dofs"`
	Cycle      float64 `json:"cycle_s"`
	Duration   float64 `json:"duration_s"`
	Planned    float64 `json:"planned_s"`
	Finished   bool    `json:"finished"`
	CalcMicros int64   `json:"calc_us"`
	CreatedAt  string  `json:"created_at"`
}

func summarizeRun(r store.Run) runSummary {
	return runSummary{
		ID:         r.ID,
		Name:       r.Name,
		DOFs:       r.DOFs,
		Cycle:      r.Cycle,
		Duration:   r.Duration,
		Planned:    r.Planned,
		Finished:   r.Finished,
		CalcMicros: r.Calculation.Microseconds(),
		CreatedAt:  r.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// handleRuns returns a JSON array of the most recent run headers.
// Query params:
//
//	limit (optional, default 50)
func (ws *WebServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if ws.store == nil {
		httputil.InternalServerError(w, "no database configured")
		return
	}
	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		fmt.Sscanf(l, "%d", &limit)
		if limit < 0 || limit > 1000 {
			limit = 0
		}
	}
	runs, err := ws.store.Runs(limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("list runs: %v", err))
		return
	}
	summaries := make([]runSummary, 0, len(runs))
	for _, run := range runs {
		summaries = append(summaries, summarizeRun(run))
	}
	httputil.WriteJSONOK(w, summaries)
}

// axisReport is the JSON shape of one axis summary within a run.
type axisReport struct {
	Axis             int     `json:"axis"`
	PeakVelocity     float64 `json:"peak_velocity"`
	PeakAcceleration float64 `json:"peak_acceleration"`
	FinalPosition    float64 `json:"final_position"`
	TrackingRMS      float64 `json:"tracking_rms"`
}

// handleRun returns the header and per-axis motion summary of one run.
// Query params:
//
//	id (required)
func (ws *WebServer) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if ws.store == nil {
		httputil.InternalServerError(w, "no database configured")
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		httputil.BadRequest(w, "missing 'id' parameter")
		return
	}
	run, err := ws.store.Run(id)
	if errors.Is(err, store.ErrNotFound) {
		httputil.NotFound(w, fmt.Sprintf("run %q not found", id))
		return
	}
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("load run: %v", err))
		return
	}
	rec, err := ws.store.Samples(id)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("load samples: %v", err))
		return
	}

	axes := make([]axisReport, 0, rec.DOFs)
	for axis, s := range rec.Summarize() {
		axes = append(axes, axisReport{
			Axis:             axis,
			PeakVelocity:     s.PeakVelocity,
			PeakAcceleration: s.PeakAcceleration,
			FinalPosition:    s.FinalPosition,
			TrackingRMS:      s.TrackingRMS,
		})
	}

	resp := struct {
		runSummary
		Samples int          `json:"samples"`
		Axes    []axisReport `json:"axes"`
	}{
		runSummary: summarizeRun(run),
		Samples:    len(rec.Samples),
		Axes:       axes,
	}
	httputil.WriteJSONOK(w, resp)
}

// loadRun fetches a run header and its samples, writing the HTTP error
// itself when the run cannot be served. The bool reports success.
func (ws *WebServer) loadRun(w http.ResponseWriter, r *http.Request) (store.Run, *sim.Recording, bool) {
	if ws.store == nil {
		httputil.InternalServerError(w, "no database configured")
		return store.Run{}, nil, false
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		httputil.BadRequest(w, "missing 'id' parameter")
		return store.Run{}, nil, false
	}
	run, err := ws.store.Run(id)
	if errors.Is(err, store.ErrNotFound) {
		httputil.NotFound(w, fmt.Sprintf("run %q not found", id))
		return store.Run{}, nil, false
	}
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("load run: %v", err))
		return store.Run{}, nil, false
	}
	rec, err := ws.store.Samples(id)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("load samples: %v", err))
		return store.Run{}, nil, false
	}
	if len(rec.Samples) == 0 {
		httputil.NotFound(w, "run has no samples")
		return store.Run{}, nil, false
	}
	return run, rec, true
}

// sampleField selects one per-axis series of a sample by name.
func sampleField(sm sim.Sample, field string, axis int) float64 {
	switch field {
	case "velocity":
		return sm.Velocity[axis]
	case "acceleration":
		return sm.Acceleration[axis]
	case "jerk":
		return sm.Jerk[axis]
	default:
		return sm.Position[axis]
	}
}

// fieldParam validates the optional 'field' query parameter.
func fieldParam(r *http.Request) (string, error) {
	field := r.URL.Query().Get("field")
	switch field {
	case "":
		return "position", nil
	case "position", "velocity", "acceleration", "jerk":
		return field, nil
	}
	return "", fmt.Errorf("unknown field %q", field)
}