package database

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/mattn/go-sqlite3"

	"github.com/tomyedwab/jsprettify/errors"
)

// uncachedStrategy is never stored: it is cheap and always succeeds, and a
// cached heuristic result would shadow a better formatter that becomes
// available later
const uncachedStrategy = "reindent"

// CachedResult is a formatted output stored under a cache key
type CachedResult struct {
	Key       string
	Strategy  string
	Output    string
	CreatedAt time.Time
}

// Run is one recorded invocation
type Run struct {
	ID          int64
	RunID       string
	Input       string
	Output      string
	Strategy    string
	Status      string
	Error       string
	Attempts    int
	CacheHit    bool
	InputBytes  int
	OutputBytes int
	DurationMs  int64
	// Validated is true when the output passed the syntax check;
	// ValidationError holds the failure otherwise
	Validated       bool
	ValidationError string
	CreatedAt       time.Time
}

// Run statuses
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Stats summarizes the database contents
type Stats struct {
	Path        string
	Results     int
	ResultBytes int64
	Runs        int
	CacheHits   int
	FileBytes   int64
}

// DB is the result cache and run history
type DB struct {
	db    *sql.DB
	path  string
	cache *lru.Cache[string, CachedResult]
}

// CacheKey combines the source hash with the configuration fingerprint
func CacheKey(source, fingerprint string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:]) + ":" + fingerprint
}

// Open opens (creating when needed) the database at path. cacheSize bounds
// the in-memory front of the result cache.
func Open(path string, cacheSize int) (*DB, error) {
	if cacheSize <= 0 {
		cacheSize = 1
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.NewDatabaseConnectionError(fmt.Errorf("failed to create database directory: %w", err))
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, errors.NewDatabaseConnectionError(err)
	}
	// Batch runs share one handle; sqlite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, errors.NewDatabaseConnectionError(fmt.Errorf("failed to create schema: %w", err))
	}

	cache, err := lru.New[string, CachedResult](cacheSize)
	if err != nil {
		db.Close()
		return nil, errors.NewDatabaseConnectionError(err)
	}

	return &DB{db: db, path: path, cache: cache}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS results (
		cache_key TEXT PRIMARY KEY,
		strategy TEXT NOT NULL,
		output TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		input_path TEXT NOT NULL,
		output_path TEXT,
		strategy TEXT,
		status TEXT NOT NULL,
		error TEXT,
		attempts INTEGER NOT NULL DEFAULT 0,
		cache_hit BOOLEAN NOT NULL DEFAULT FALSE,
		input_bytes INTEGER NOT NULL DEFAULT 0,
		output_bytes INTEGER NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		validated BOOLEAN NOT NULL DEFAULT FALSE,
		validation_error TEXT,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);`

	_, err := db.Exec(schema)
	return err
}

// Path returns the database file path
func (d *DB) Path() string {
	return d.path
}

// Close closes the database
func (d *DB) Close() error {
	return d.db.Close()
}

// Lookup returns the cached result for key, or nil when there is none
func (d *DB) Lookup(key string) (*CachedResult, error) {
	if cached, ok := d.cache.Get(key); ok {
		return &cached, nil
	}

	var result CachedResult
	err := d.db.QueryRow(`
		SELECT cache_key, strategy, output, created_at
		FROM results
		WHERE cache_key = ?`, key).Scan(&result.Key, &result.Strategy, &result.Output, &result.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabaseOperationFailed, err, "failed to query cached result")
	}

	d.cache.Add(key, result)
	return &result, nil
}

// Store caches output under key. Results of the heuristic re-indenter are
// not stored.
func (d *DB) Store(key, strategy, output string) error {
	if key == "" {
		return errors.NewInvalidInputError("cache key is required")
	}
	if strategy == uncachedStrategy {
		return nil
	}

	result := CachedResult{Key: key, Strategy: strategy, Output: output, CreatedAt: time.Now().UTC()}
	_, err := d.db.Exec(`
		INSERT OR REPLACE INTO results (cache_key, strategy, output, created_at)
		VALUES (?, ?, ?, ?)`, result.Key, result.Strategy, result.Output, result.CreatedAt)
	if err != nil {
		return errors.Wrap(errors.ErrDatabaseOperationFailed, err, "failed to store result")
	}

	d.cache.Add(key, result)
	return nil
}

// RecordRun appends run to the history and sets its ID
func (d *DB) RecordRun(run *Run) error {
	if run == nil {
		return errors.NewInvalidInputError("run cannot be nil")
	}
	if run.Status == "" {
		return errors.NewInvalidInputError("run status is required")
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	result, err := d.db.Exec(`
		INSERT INTO runs (
			run_id, input_path, output_path, strategy, status, error,
			attempts, cache_hit, input_bytes, output_bytes, duration_ms,
			validated, validation_error, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Input, run.Output, run.Strategy, run.Status, run.Error,
		run.Attempts, run.CacheHit, run.InputBytes, run.OutputBytes, run.DurationMs,
		run.Validated, run.ValidationError, run.CreatedAt)
	if err != nil {
		return errors.Wrap(errors.ErrDatabaseOperationFailed, err, "failed to record run")
	}

	id, err := result.LastInsertId()
	if err != nil {
		return errors.Wrap(errors.ErrDatabaseOperationFailed, err, "failed to get last insert id")
	}
	run.ID = id
	return nil
}

// RecentRuns returns up to limit runs, newest first
func (d *DB) RecentRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := d.db.Query(`
		SELECT id, run_id, input_path, COALESCE(output_path, ''), COALESCE(strategy, ''),
		       status, COALESCE(error, ''), attempts, cache_hit, input_bytes,
		       output_bytes, duration_ms, validated, COALESCE(validation_error, ''),
		       created_at
		FROM runs
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabaseOperationFailed, err, "failed to query runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.RunID, &r.Input, &r.Output, &r.Strategy,
			&r.Status, &r.Error, &r.Attempts, &r.CacheHit, &r.InputBytes,
			&r.OutputBytes, &r.DurationMs, &r.Validated, &r.ValidationError,
			&r.CreatedAt); err != nil {
			return nil, errors.Wrap(errors.ErrDatabaseOperationFailed, err, "failed to scan run")
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrDatabaseOperationFailed, err, "failed to iterate runs")
	}

	return runs, nil
}

// ClearCache removes every cached result and returns how many there were.
// Run history is kept.
func (d *DB) ClearCache() (int64, error) {
	result, err := d.db.Exec("DELETE FROM results")
	if err != nil {
		return 0, errors.Wrap(errors.ErrDatabaseOperationFailed, err, "failed to clear cache")
	}
	d.cache.Purge()

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(errors.ErrDatabaseOperationFailed, err, "failed to count removed results")
	}
	return removed, nil
}

// Stats summarizes the cache and history
func (d *DB) Stats() (*Stats, error) {
	stats := &Stats{Path: d.path}

	err := d.db.QueryRow("SELECT COUNT(*), COALESCE(SUM(LENGTH(output)), 0) FROM results").
		Scan(&stats.Results, &stats.ResultBytes)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabaseOperationFailed, err, "failed to count results")
	}

	err = d.db.QueryRow("SELECT COUNT(*), COALESCE(SUM(CASE WHEN cache_hit THEN 1 ELSE 0 END), 0) FROM runs").
		Scan(&stats.Runs, &stats.CacheHits)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabaseOperationFailed, err, "failed to count runs")
	}

	if info, err := os.Stat(d.path); err == nil {
		stats.FileBytes = info.Size()
	}

	return stats, nil
}
