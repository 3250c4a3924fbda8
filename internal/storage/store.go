package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dyike/twpbr/models"
	"github.com/dyike/twpbr/pkg/sqlite"
)

const (
	KindDay       = "day"
	KindWeek      = "week"
	KindValuation = "valuation"
)

// ErrRunNotFound is returned for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    stock TEXT NOT NULL,
    first_date TEXT,
    last_date TEXT,
    point_count INTEGER NOT NULL DEFAULT 0,
    image_path TEXT,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS points (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    seq INTEGER NOT NULL,
    date TEXT NOT NULL,
    close REAL,
    value REAL NOT NULL,
    diff REAL NOT NULL,
    UNIQUE(run_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
`

// Store records indicator runs in sqlite.
type Store struct {
	db *sql.DB
}

// Run is one computed indicator series.
type Run struct {
	ID        string
	Kind      string
	Stock     string
	FirstDate string
	LastDate  string
	Points    int
	ImagePath string
	CreatedAt time.Time
}

// Point is one stored row of a run. Value is the raw input of the indicator
// (PBR count or P/E).
type Point struct {
	Date  string
	Close *float64
	Value float64
	Diff  float64
}

func Open(dbPath string) (*Store, error) {
	db, err := sqlite.Open(dbPath, schema)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveRun stores run and its points in one transaction and returns the new
// run id.
func (s *Store) SaveRun(ctx context.Context, run Run, points []Point) (string, error) {
	if strings.TrimSpace(run.Kind) == "" || strings.TrimSpace(run.Stock) == "" {
		return "", fmt.Errorf("run kind and stock are required")
	}
	run.ID = uuid.NewString()
	run.Points = len(points)
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	if len(points) > 0 {
		run.FirstDate = points[0].Date
		run.LastDate = points[len(points)-1].Date
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
INSERT INTO runs (id, kind, stock, first_date, last_date, point_count, image_path, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`, run.ID, run.Kind, run.Stock, run.FirstDate, run.LastDate, run.Points, run.ImagePath, run.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO points (run_id, seq, date, close, value, diff)
VALUES (?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return "", fmt.Errorf("prepare points: %w", err)
	}
	defer stmt.Close()

	for i, p := range points {
		var closeVal sql.NullFloat64
		if p.Close != nil {
			closeVal = sql.NullFloat64{Float64: *p.Close, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, run.ID, i+1, p.Date, closeVal, p.Value, p.Diff); err != nil {
			return "", fmt.Errorf("insert point %s: %w", p.Date, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit run: %w", err)
	}
	return run.ID, nil
}

// ListRuns returns the most recent runs first. limit <= 0 means 20.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, kind, stock, COALESCE(first_date, ''), COALESCE(last_date, ''), point_count, COALESCE(image_path, ''), created_at
FROM runs
ORDER BY created_at DESC, rowid DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Kind, &r.Stock, &r.FirstDate, &r.LastDate, &r.Points, &r.ImagePath, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Run returns a run with its rows.
func (s *Store) Run(ctx context.Context, runID string) (Run, []Point, error) {
	var r Run
	err := s.db.QueryRowContext(ctx, `
SELECT id, kind, stock, COALESCE(first_date, ''), COALESCE(last_date, ''), point_count, COALESCE(image_path, ''), created_at
FROM runs WHERE id = ?
`, runID).Scan(&r.ID, &r.Kind, &r.Stock, &r.FirstDate, &r.LastDate, &r.Points, &r.ImagePath, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, nil, fmt.Errorf("%s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return Run{}, nil, fmt.Errorf("lookup run: %w", err)
	}

	points, err := s.Points(ctx, runID)
	if err != nil {
		return Run{}, nil, err
	}
	return r, points, nil
}

// Points returns the rows of a run in insertion order.
func (s *Store) Points(ctx context.Context, runID string) ([]Point, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM runs WHERE id = ?`, runID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("lookup run: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("%s: %w", runID, ErrRunNotFound)
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT date, close, value, diff FROM points WHERE run_id = ? ORDER BY seq
`, runID)
	if err != nil {
		return nil, fmt.Errorf("query points: %w", err)
	}
	defer rows.Close()

	var points []Point
	for rows.Next() {
		var p Point
		var closeVal sql.NullFloat64
		if err := rows.Scan(&p.Date, &closeVal, &p.Value, &p.Diff); err != nil {
			return nil, fmt.Errorf("scan point: %w", err)
		}
		if closeVal.Valid {
			v := closeVal.Float64
			p.Close = &v
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// DeleteRun removes a run and its points.
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, runID)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", runID, ErrRunNotFound)
	}
	return nil
}

// IndicatorPoints converts PB-C rows for storage.
func IndicatorPoints(points []models.IndicatorPoint) []Point {
	out := make([]Point, len(points))
	for i, p := range points {
		c := p.Close
		out[i] = Point{Date: p.Date, Close: &c, Value: p.Value, Diff: p.Diff}
	}
	return out
}

// ValuationPoints converts %b_DIF rows for storage; Value holds the P/E.
func ValuationPoints(points []models.ValuationPoint) []Point {
	out := make([]Point, len(points))
	for i, p := range points {
		out[i] = Point{Date: p.Date, Close: p.Close, Value: p.PE, Diff: p.Diff}
	}
	return out
}
