// Package runstore keeps a history of tracing runs in SQLite.
package runstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/fieldlines/internal/monitoring"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned by Get for unknown run ids.
var ErrNotFound = errors.New("runstore: run not found")

// Run is one recorded invocation.
type Run struct {
	ID            string
	StartedAt     time.Time
	Input         string
	Output        string
	SeedThreshold float64
	MaxIterations int
	MinLength     float64
	MaxLength     float64
	Seeds         int
	Written       int
	Elapsed       time.Duration
	MeanLength    float64
	MedianLength  float64
	MaxLengthSeen float64
	// Stops maps a stop reason name to the number of lines that ended with it.
	Stops map[string]int
}

// Store wraps the run database.
type Store struct {
	db *sql.DB
}

func dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "foreign_keys(1)")
	return "file:" + path + "?" + q.Encode()
}

// Open opens (or creates) the database at path and applies pending
// migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open run store %s: %w", path, err)
	}
	s := &Store{db: db}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }

// Version returns the applied schema version.
func (s *Store) Version() (uint, error) {
	m, err := s.newMigrate()
	if err != nil {
		return 0, err
	}
	v, _, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	return v, err
}

func (s *Store) migrateUp() error {
	m, err := s.newMigrate()
	if err != nil {
		return err
	}
	// m is not closed: that would close the shared *sql.DB.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

func (s *Store) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}
	return m, nil
}

// migrateLogger implements migrate.Logger on top of the debug logger.
type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	monitoring.Debugf("[migrate] "+format, v...)
}

func (l *migrateLogger) Verbose() bool { return monitoring.Verbose() }

// Record stores r and returns its id. A fresh UUID is assigned when r.ID
// is empty.
func (s *Store) Record(ctx context.Context, r Run) (string, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("record run: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (
			run_id, started_at, input_path, output_path,
			seed_threshold, max_iterations, min_length, max_length,
			seeds, written, elapsed_ms, mean_length, median_length, max_length_seen
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.StartedAt.UTC().Format(time.RFC3339Nano), r.Input, r.Output,
		r.SeedThreshold, r.MaxIterations, r.MinLength, r.MaxLength,
		r.Seeds, r.Written, float64(r.Elapsed)/float64(time.Millisecond),
		r.MeanLength, r.MedianLength, r.MaxLengthSeen,
	)
	if err != nil {
		return "", fmt.Errorf("insert run %s: %w", r.ID, err)
	}
	for reason, n := range r.Stops {
		if n == 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO run_stops (run_id, reason, count) VALUES (?, ?, ?)`,
			r.ID, reason, n); err != nil {
			return "", fmt.Errorf("insert stops for run %s: %w", r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit run %s: %w", r.ID, err)
	}
	return r.ID, nil
}

const runColumns = `run_id, started_at, input_path, output_path,
	seed_threshold, max_iterations, min_length, max_length,
	seeds, written, elapsed_ms, mean_length, median_length, max_length_seen`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		r         Run
		started   string
		elapsedMs float64
	)
	err := sc.Scan(&r.ID, &started, &r.Input, &r.Output,
		&r.SeedThreshold, &r.MaxIterations, &r.MinLength, &r.MaxLength,
		&r.Seeds, &r.Written, &elapsedMs, &r.MeanLength, &r.MedianLength, &r.MaxLengthSeen)
	if err != nil {
		return Run{}, err
	}
	if r.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return Run{}, fmt.Errorf("run %s: bad started_at %q: %w", r.ID, started, err)
	}
	r.Elapsed = time.Duration(elapsedMs * float64(time.Millisecond))
	return r, nil
}

// Get returns the run with the given id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", id, err)
	}
	if r.Stops, err = s.stops(ctx, id); err != nil {
		return Run{}, err
	}
	return r, nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("list runs: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("list runs: %w", err)
	}
	rows.Close()

	for i := range runs {
		if runs[i].Stops, err = s.stops(ctx, runs[i].ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (s *Store) stops(ctx context.Context, id string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT reason, count FROM run_stops WHERE run_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("stops for run %s: %w", id, err)
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var reason string
		var n int
		if err := rows.Scan(&reason, &n); err != nil {
			return nil, fmt.Errorf("stops for run %s: %w", id, err)
		}
		out[reason] = n
	}
	return out, rows.Err()
}
