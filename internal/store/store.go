// Package store keeps a per-job history row in an embedded SQLite database,
// so finished jobs can be looked up after the synchronous reply is gone.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// Job statuses.
const (
	StatusDone   = "done"
	StatusFailed = "failed"
)

// ErrNotFound is returned when no history row exists for a job id.
var ErrNotFound = errors.New("job not found")

// Row is one recorded job.
type Row struct {
	JobID        string    `json:"job_id"`
	Status       string    `json:"status"`
	Source       string    `json:"source"`
	Format       string    `json:"format,omitempty"`
	Text         string    `json:"text,omitempty"`
	NumTokens    int       `json:"num_tokens"`
	NumSegments  int       `json:"num_segments"`
	ElapsedSec   float64   `json:"elapsed_sec"`
	ArtifactPath string    `json:"artifact_path,omitempty"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store wraps the SQLite-backed job history.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open initializes the job history database, creating the schema if needed.
func Open(ctx context.Context, path string, log zerolog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, log: log.With().Str("component", "store").Logger()}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS jobs (
    job_id TEXT PRIMARY KEY,
    status TEXT NOT NULL,
    source TEXT NOT NULL,
    format TEXT,
    text TEXT,
    num_tokens INTEGER NOT NULL DEFAULT 0,
    num_segments INTEGER NOT NULL DEFAULT 0,
    elapsed_sec REAL NOT NULL DEFAULT 0,
    artifact_path TEXT,
    error TEXT,
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_jobs_created ON jobs(created_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Record inserts one job history row.
func (s *Store) Record(ctx context.Context, row Row) error {
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO jobs (job_id, status, source, format, text, num_tokens, num_segments, elapsed_sec, artifact_path, error, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.JobID, row.Status, row.Source, row.Format, row.Text,
		row.NumTokens, row.NumSegments, row.ElapsedSec, row.ArtifactPath,
		row.Error, row.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// Get returns the history row for one job id.
func (s *Store) Get(ctx context.Context, jobID string) (Row, error) {
	row := Row{}
	var created string
	err := s.db.QueryRowContext(ctx, `
SELECT job_id, status, source, format, text, num_tokens, num_segments, elapsed_sec, artifact_path, error, created_at
FROM jobs WHERE job_id = ?`, jobID).Scan(
		&row.JobID, &row.Status, &row.Source, &row.Format, &row.Text,
		&row.NumTokens, &row.NumSegments, &row.ElapsedSec, &row.ArtifactPath,
		&row.Error, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Row{}, ErrNotFound
	}
	if err != nil {
		return Row{}, fmt.Errorf("select job: %w", err)
	}
	if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
		row.CreatedAt = ts
	}
	return row, nil
}

// Recent returns up to limit most recent jobs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Row, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT job_id, status, source, format, text, num_tokens, num_segments, elapsed_sec, artifact_path, error, created_at
FROM jobs ORDER BY created_at DESC, job_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("select recent: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var row Row
		var created string
		if err := rows.Scan(
			&row.JobID, &row.Status, &row.Source, &row.Format, &row.Text,
			&row.NumTokens, &row.NumSegments, &row.ElapsedSec, &row.ArtifactPath,
			&row.Error, &created); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			row.CreatedAt = ts
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// HealthCheck verifies the database is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
