package manifest

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Fetch is one downloaded asset.
type Fetch struct {
	URL         string
	FileName    string
	Bytes       int64
	ContentType string
	Transcoded  bool
	FetchedAt   time.Time
	RunID       string
}

// Run is the summary of one pipeline run.
type Run struct {
	RunID            string
	StartedAt        time.Time
	Duration         time.Duration
	Discovered       int
	Fetched          int
	Reused           int
	Failed           int
	DocumentsUpdated int
}

// Store wraps the manifest database.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the manifest database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create manifest directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.applyMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordRun stores the run summary and its fetches in one transaction.
func (s *Store) RecordRun(ctx context.Context, run Run, fetches []Fetch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin manifest tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs (run_id, started_at, duration_ms, discovered, fetched, reused, failed, documents_updated)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, formatTime(run.StartedAt), run.Duration.Milliseconds(),
		run.Discovered, run.Fetched, run.Reused, run.Failed, run.DocumentsUpdated,
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO fetches (url, file_name, bytes, content_type, transcoded, fetched_at, run_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare fetch insert: %w", err)
	}
	defer stmt.Close()

	for _, f := range fetches {
		runID := f.RunID
		if runID == "" {
			runID = run.RunID
		}
		fetchedAt := f.FetchedAt
		if fetchedAt.IsZero() {
			fetchedAt = run.StartedAt
		}
		if _, err := stmt.ExecContext(ctx, f.URL, f.FileName, f.Bytes, f.ContentType, boolToInt(f.Transcoded), formatTime(fetchedAt), runID); err != nil {
			return fmt.Errorf("insert fetch %s: %w", f.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit manifest: %w", err)
	}
	return nil
}

// ListFetches returns the most recent fetches first. A limit of zero returns all.
func (s *Store) ListFetches(ctx context.Context, limit int) ([]Fetch, error) {
	query := `SELECT url, file_name, bytes, content_type, transcoded, fetched_at, run_id
		FROM fetches ORDER BY fetched_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query fetches: %w", err)
	}
	defer rows.Close()

	var out []Fetch
	for rows.Next() {
		var (
			f          Fetch
			transcoded int
			fetchedAt  string
		)
		if err := rows.Scan(&f.URL, &f.FileName, &f.Bytes, &f.ContentType, &transcoded, &fetchedAt, &f.RunID); err != nil {
			return nil, fmt.Errorf("scan fetch: %w", err)
		}
		f.Transcoded = transcoded != 0
		f.FetchedAt = parseTime(fetchedAt)
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fetches: %w", err)
	}
	return out, nil
}

// ListRuns returns the most recent runs first. A limit of zero returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT run_id, started_at, duration_ms, discovered, fetched, reused, failed, documents_updated
		FROM runs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			r          Run
			startedAt  string
			durationMs int64
		)
		if err := rows.Scan(&r.RunID, &startedAt, &durationMs, &r.Discovered, &r.Fetched, &r.Reused, &r.Failed, &r.DocumentsUpdated); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = parseTime(startedAt)
		r.Duration = time.Duration(durationMs) * time.Millisecond
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
