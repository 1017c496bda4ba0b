// Package metrics records per-render timing samples in a local SQLite
// database and fits a linear duration model used for queue wait estimates.
package metrics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS render_metrics (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at  INTEGER NOT NULL,
	megapixels  REAL    NOT NULL,
	duration_s  REAL    NOT NULL,
	backend     TEXT    NOT NULL,
	preset      TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_render_metrics_created ON render_metrics (created_at);
`

// fitWindow bounds how many recent samples feed the model so old hardware or
// old presets age out of the estimate.
const fitWindow = 200

// Sample is one completed render's timing record.
type Sample struct {
	Megapixels float64
	DurationS  float64
	Backend    string
	Preset     string
}

// Estimate is the fitted duration model: predicted seconds for a render is
// Slope*megapixels + Intercept.
type Estimate struct {
	Slope       float64 `json:"slope"`
	Intercept   float64 `json:"intercept"`
	SampleCount int     `json:"sample_count"`
}

// Store wraps the SQLite metrics database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the metrics database at path. Use
// ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("metrics: open database: %w", err)
	}
	// The queue worker is the only writer, but the HTTP handlers read
	// concurrently; a single connection sidesteps SQLITE_BUSY entirely.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("metrics: ensure schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores one render sample.
func (s *Store) Record(ctx context.Context, sample Sample) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO render_metrics (created_at, megapixels, duration_s, backend, preset) VALUES (?, ?, ?, ?, ?)`,
		time.Now().Unix(), sample.Megapixels, sample.DurationS, sample.Backend, sample.Preset,
	)
	if err != nil {
		return fmt.Errorf("metrics: record sample: %w", err)
	}
	return nil
}

// Estimate fits duration = slope*megapixels + intercept over the most recent
// samples. With no history it returns a conservative flat guess; with a
// single sample or degenerate x variance it returns the mean duration.
func (s *Store) Estimate(ctx context.Context) (Estimate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT megapixels, duration_s FROM render_metrics ORDER BY id DESC LIMIT ?`, fitWindow)
	if err != nil {
		return Estimate{}, fmt.Errorf("metrics: query samples: %w", err)
	}
	defer rows.Close()

	var xs, ys []float64
	for rows.Next() {
		var x, y float64
		if err := rows.Scan(&x, &y); err != nil {
			return Estimate{}, fmt.Errorf("metrics: scan sample: %w", err)
		}
		xs = append(xs, x)
		ys = append(ys, y)
	}
	if err := rows.Err(); err != nil {
		return Estimate{}, fmt.Errorf("metrics: iterate samples: %w", err)
	}
	return fit(xs, ys), nil
}

func fit(xs, ys []float64) Estimate {
	n := len(xs)
	switch n {
	case 0:
		return Estimate{Slope: 0, Intercept: 12, SampleCount: 0}
	case 1:
		return Estimate{Slope: 0, Intercept: ys[0], SampleCount: 1}
	}

	var sumX, sumY float64
	for i := 0; i < n; i++ {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX := sumX / float64(n)
	meanY := sumY / float64(n)

	var varX, covXY float64
	for i := 0; i < n; i++ {
		dx := xs[i] - meanX
		varX += dx * dx
		covXY += dx * (ys[i] - meanY)
	}
	if varX <= 1e-6 {
		return Estimate{Slope: 0, Intercept: meanY, SampleCount: n}
	}
	slope := covXY / varX
	return Estimate{Slope: slope, Intercept: meanY - slope*meanX, SampleCount: n}
}
