// Package store keeps the history of analysis runs in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("run not found")

// Store wraps the run history database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	// MaxRetryElapsed bounds retries of writes that hit a locked database.
	MaxRetryElapsed time.Duration
}

// Run is one persisted analysis.
type Run struct {
	ID        string
	StartedAt time.Time
	Source    string
	NObs      int
	Model     string

	// BestP and BestQ are -1 and BestAICc is NaN when no order was viable.
	BestP    int
	BestQ    int
	BestAICc float64

	HWAlpha float64
	HWBeta  float64
	HWGamma float64

	// NaN when not computed.
	LjungBoxP float64
	ADFP      float64
	KPSSP     float64

	Duration time.Duration

	Scores    []GridScore
	Forecasts []ForecastPoint
}

// GridScore is one cell of the order grid. AICc is NaN when unavailable.
type GridScore struct {
	P         int
	Q         int
	AICc      float64
	Available bool
	Error     string
}

// ForecastPoint is one forecast month.
type ForecastPoint struct {
	Period time.Time
	Point  float64
	Lower  float64
	Upper  float64
}

// New wraps an open database. Call Migrate before use.
func New(db *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger, MaxRetryElapsed: 30 * time.Second}
}

// Open opens the database at path in WAL mode and applies migrations.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// One writer; also keeps ":memory:" databases on a single connection.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	s := New(db, logger)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	v, err := s.SchemaVersion(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("schema version: %w", err)
	}
	s.logger.Debug("database ready", "path", path, "schema_version", v)
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun writes the run with its scores and forecasts in one transaction.
// Writes that find the database busy or locked are retried with exponential
// backoff; other failures are returned immediately.
func (s *Store) SaveRun(ctx context.Context, run Run) error {
	operation := func() error {
		err := s.saveRun(ctx, run)
		if err == nil {
			return nil
		}
		if isBusy(err) {
			s.logger.Warn("database busy, retrying", "run", run.ID, "error", err)
			return err
		}
		return backoff.Permanent(err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxElapsedTime = s.MaxRetryElapsed
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	return nil
}

func (s *Store) saveRun(ctx context.Context, run Run) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, source, n_obs, model, best_p, best_q, best_aicc, hw_alpha, hw_beta, hw_gamma, ljung_box_p, adf_p, kpss_p, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.StartedAt.UTC().Format(timeLayout), run.Source, run.NObs, run.Model,
		nullableOrder(run.BestP), nullableOrder(run.BestQ), nullable(run.BestAICc),
		run.HWAlpha, run.HWBeta, run.HWGamma, nullable(run.LjungBoxP), nullable(run.ADFP), nullable(run.KPSSP),
		run.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for i, sc := range run.Scores {
		aicc := sql.NullFloat64{}
		if sc.Available {
			aicc = nullable(sc.AICc)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO grid_scores (run_id, position, p, q, aicc, error) VALUES (?, ?, ?, ?, ?, ?)",
			run.ID, i, sc.P, sc.Q, aicc, sc.Error,
		); err != nil {
			return fmt.Errorf("insert score (%d,%d): %w", sc.P, sc.Q, err)
		}
	}

	for _, f := range run.Forecasts {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO forecasts (run_id, period, point, lower, upper) VALUES (?, ?, ?, ?, ?)",
			run.ID, f.Period.Format(periodLayout), f.Point, f.Lower, f.Upper,
		); err != nil {
			return fmt.Errorf("insert forecast %s: %w", f.Period.Format(periodLayout), err)
		}
	}

	return tx.Commit()
}

const (
	periodLayout = "2006-01"
	// Fixed width so that lexical order is chronological.
	timeLayout = "2006-01-02T15:04:05.000000000Z"
)

const runColumns = `id, started_at, source, n_obs, model, best_p, best_q, best_aicc, hw_alpha, hw_beta, hw_gamma, ljung_box_p, adf_p, kpss_p, duration_ms`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		r                     Run
		started               string
		bestP, bestQ          sql.NullInt64
		aicc, lbP, adfP, kpss sql.NullFloat64
		durationMS            int64
	)
	err := row.Scan(&r.ID, &started, &r.Source, &r.NObs, &r.Model, &bestP, &bestQ,
		&aicc, &r.HWAlpha, &r.HWBeta, &r.HWGamma, &lbP, &adfP, &kpss, &durationMS)
	if err != nil {
		return Run{}, err
	}
	if r.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return Run{}, fmt.Errorf("parse started_at %q: %w", started, err)
	}
	r.BestP, r.BestQ = fromNullableOrder(bestP), fromNullableOrder(bestQ)
	r.BestAICc = fromNullable(aicc)
	r.LjungBoxP = fromNullable(lbP)
	r.ADFP = fromNullable(adfP)
	r.KPSSP = fromNullable(kpss)
	r.Duration = time.Duration(durationMS) * time.Millisecond
	return r, nil
}

// ListRuns returns up to limit runs, newest first, without scores or
// forecasts.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+runColumns+" FROM runs ORDER BY started_at DESC, id LIMIT ?", limit)
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

// GetRun returns a run with its scores and forecasts.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	if r.Scores, err = s.GetScores(ctx, id); err != nil {
		return nil, err
	}
	if r.Forecasts, err = s.GetForecasts(ctx, id); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetScores returns the grid of a run in its original row-major order.
func (s *Store) GetScores(ctx context.Context, runID string) ([]GridScore, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT p, q, aicc, COALESCE(error, '') FROM grid_scores WHERE run_id = ? ORDER BY position", runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scores []GridScore
	for rows.Next() {
		var (
			sc   GridScore
			aicc sql.NullFloat64
		)
		if err := rows.Scan(&sc.P, &sc.Q, &aicc, &sc.Error); err != nil {
			return nil, err
		}
		sc.Available = aicc.Valid
		sc.AICc = fromNullable(aicc)
		scores = append(scores, sc)
	}
	return scores, rows.Err()
}

// GetForecasts returns the forecast of a run in period order.
func (s *Store) GetForecasts(ctx context.Context, runID string) ([]ForecastPoint, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT period, point, lower, upper FROM forecasts WHERE run_id = ? ORDER BY period", runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []ForecastPoint
	for rows.Next() {
		var (
			f      ForecastPoint
			period string
		)
		if err := rows.Scan(&period, &f.Point, &f.Lower, &f.Upper); err != nil {
			return nil, err
		}
		if f.Period, err = time.Parse(periodLayout, period); err != nil {
			return nil, fmt.Errorf("parse period %q: %w", period, err)
		}
		points = append(points, f)
	}
	return points, rows.Err()
}

func isBusy(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}

func nullable(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func fromNullable(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

// Orders are stored as NULL when negative, which marks "no viable order".
func nullableOrder(v int) sql.NullInt64 {
	if v < 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(v), Valid: true}
}

func fromNullableOrder(v sql.NullInt64) int {
	if !v.Valid {
		return -1
	}
	return int(v.Int64)
}
