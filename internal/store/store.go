// Package store persists closed-loop recordings in SQLite so runs can
// be compared, charted and queried after the fact. The schema is
// managed by versioned migrations embedded in the binary.
package store

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/banshee-data/otg/internal/sim"
	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

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

// ErrNotFound reports a run id with no stored run.
var ErrNotFound = errors.New("store: run not found")

// Store is a handle on one recordings database.
type Store struct {
	*sql.DB
	path string
}

// Open opens or creates the database at path and applies pending
// migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	s := &Store{DB: db, path: path}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrateUp() error {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(s.DB, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// Run is the stored header of one recording.
type Run struct {
	ID          string
	Name        string
	DOFs        int
	Cycle       float64
	Duration    float64
	Planned     float64
	Finished    bool
	Calculation time.Duration
	CreatedAt   time.Time
}

// RecordRun stores a recording under a fresh run id and returns it.
func (s *Store) RecordRun(name string, rec *sim.Recording) (string, error) {
	id := uuid.NewString()
	tx, err := s.Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs (run_id, name, dofs, cycle, duration, planned, finished, calc_us)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, name, rec.DOFs, rec.Cycle, rec.Duration(), rec.PlannedDuration,
		rec.Finished, rec.FirstCalculation.Microseconds(),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	ins, err := tx.Prepare(
		`INSERT INTO samples (run_id, seq, axis, t, position, velocity, acceleration, jerk, target)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer ins.Close()
	for seq, sm := range rec.Samples {
		for axis := 0; axis < rec.DOFs; axis++ {
			var target sql.NullFloat64
			if sm.TargetPosition != nil {
				target = sql.NullFloat64{Float64: sm.TargetPosition[axis], Valid: true}
			}
			if _, err := ins.Exec(id, seq, axis, sm.Time,
				sm.Position[axis], sm.Velocity[axis], sm.Acceleration[axis], sm.Jerk[axis],
				target); err != nil {
				return "", fmt.Errorf("insert sample %d axis %d: %w", seq, axis, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	Logf("store: recorded run %s (%s, %d samples)", id, name, len(rec.Samples))
	return id, nil
}

// Runs lists the most recent run headers, newest first.
func (s *Store) Runs(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.Query(
		`SELECT run_id, name, dofs, cycle, duration, planned, finished, calc_us, created_at
		 FROM runs ORDER BY created_at DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Run fetches one run header.
func (s *Store) Run(id string) (Run, error) {
	row := s.QueryRow(
		`SELECT run_id, name, dofs, cycle, duration, planned, finished, calc_us, created_at
		 FROM runs WHERE run_id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return r, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var r Run
	var calcUS int64
	if err := row.Scan(&r.ID, &r.Name, &r.DOFs, &r.Cycle, &r.Duration, &r.Planned,
		&r.Finished, &calcUS, &r.CreatedAt); err != nil {
		return Run{}, err
	}
	r.Calculation = time.Duration(calcUS) * time.Microsecond
	return r, nil
}

// Samples rebuilds the recorded motion of one run.
func (s *Store) Samples(id string) (*sim.Recording, error) {
	run, err := s.Run(id)
	if err != nil {
		return nil, err
	}
	rows, err := s.Query(
		`SELECT seq, axis, t, position, velocity, acceleration, jerk, target
		 FROM samples WHERE run_id = ? ORDER BY seq, axis`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rec := &sim.Recording{
		DOFs:             run.DOFs,
		Cycle:            run.Cycle,
		Finished:         run.Finished,
		PlannedDuration:  run.Planned,
		FirstCalculation: run.Calculation,
	}
	for rows.Next() {
		var seq, axis int
		var t, pos, vel, acc, jerk float64
		var target sql.NullFloat64
		if err := rows.Scan(&seq, &axis, &t, &pos, &vel, &acc, &jerk, &target); err != nil {
			return nil, err
		}
		for seq >= len(rec.Samples) {
			rec.Samples = append(rec.Samples, sim.Sample{
				Position:     make([]float64, run.DOFs),
				Velocity:     make([]float64, run.DOFs),
				Acceleration: make([]float64, run.DOFs),
				Jerk:         make([]float64, run.DOFs),
			})
		}
		sm := &rec.Samples[seq]
		sm.Time = t
		sm.Position[axis] = pos
		sm.Velocity[axis] = vel
		sm.Acceleration[axis] = acc
		sm.Jerk[axis] = jerk
		if target.Valid {
			if sm.TargetPosition == nil {
				sm.TargetPosition = make([]float64, run.DOFs)
			}
			sm.TargetPosition[axis] = target.Float64
		}
	}
	return rec, rows.Err()
}