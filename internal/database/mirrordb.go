package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/webmirror/webmirror/internal/model"
)

// MirrorDB provides SQLite-based storage for mirror run history.
// It manages connection pooling and provides methods for CRUD operations.
//
// Design decision: We use a single database file for all runs rather
// than one per site. This simplifies history queries across sites and
// backup/restore operations.
type MirrorDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures MirrorDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	// This is recommended for most use cases.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a MirrorDB at the specified directory.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*MirrorDB, error) {
	dbPath := filepath.Join(dbDir, "webmirror.db")

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// modernc.org/sqlite connection string: mode=rw prevents creating
	// new files, mode=rwc allows creation.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	mdb := &MirrorDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := mdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return mdb, nil
}

// Close closes the database connection.
func (mdb *MirrorDB) Close() error {
	return mdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (mdb *MirrorDB) createTables() error {
	schema := `
	-- One record per completed mirror run
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		base_url TEXT NOT NULL,
		output_dir TEXT NOT NULL,
		pages_visited INTEGER NOT NULL DEFAULT 0,
		resources_total INTEGER NOT NULL DEFAULT 0,
		resources_failed INTEGER NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		stats_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_base_url ON runs(base_url);
	CREATE INDEX IF NOT EXISTS idx_runs_timestamp ON runs(timestamp);

	-- Pages mirrored in a run
	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id),
		url TEXT NOT NULL,
		local_path TEXT NOT NULL,
		title TEXT,
		fetched_at DATETIME,
		UNIQUE(run_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_run ON pages(run_id);
	CREATE INDEX IF NOT EXISTS idx_pages_url ON pages(url);

	-- Resources downloaded in a run
	CREATE TABLE IF NOT EXISTS resources (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id),
		url TEXT NOT NULL,
		local_path TEXT NOT NULL,
		category TEXT NOT NULL,
		status TEXT NOT NULL,
		UNIQUE(run_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_resources_run ON resources(run_id);
	CREATE INDEX IF NOT EXISTS idx_resources_status ON resources(status);
	`

	_, err := mdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveRun persists one run's statistics, pages, and resources in a
// single transaction and returns the run's ID.
func (mdb *MirrorDB) SaveRun(ctx context.Context, stats *model.MirrorStats, resources []*model.Resource) (int64, error) {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize stats: %w", err)
	}

	tx, err := mdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	result, err := tx.ExecContext(ctx, `
	INSERT INTO runs (base_url, output_dir, pages_visited, resources_total, resources_failed, duration_ms, stats_json)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		stats.BaseURL,
		stats.OutputDir,
		stats.PagesVisited,
		stats.ResourcesTotal,
		stats.ResourcesFailed,
		stats.Duration.Milliseconds(),
		string(statsJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}

	runID, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, page := range stats.Pages {
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO pages (run_id, url, local_path, title, fetched_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id, url) DO NOTHING
		`, runID, page.URL, page.LocalPath, page.Title, page.FetchedAt.UTC().Format(time.RFC3339)); err != nil {
			return 0, fmt.Errorf("failed to insert page: %w", err)
		}
	}

	for _, res := range resources {
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO resources (run_id, url, local_path, category, status)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id, url) DO NOTHING
		`, runID, res.URL, res.LocalPath, string(res.Category), string(res.Status)); err != nil {
			return 0, fmt.Errorf("failed to insert resource: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}
	return runID, nil
}

// GetRun retrieves one run's full statistics by ID.
// Returns nil when no such run exists.
func (mdb *MirrorDB) GetRun(ctx context.Context, id int64) (*model.MirrorStats, error) {
	var statsJSON string
	err := mdb.db.QueryRowContext(ctx,
		`SELECT stats_json FROM runs WHERE id = ?`, id,
	).Scan(&statsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var stats model.MirrorStats
	if err := json.Unmarshal([]byte(statsJSON), &stats); err != nil {
		return nil, fmt.Errorf("failed to parse stats: %w", err)
	}
	return &stats, nil
}

// RunMetadata contains summary information about a stored run.
// This is used for listing history without loading the full record.
type RunMetadata struct {
	// ID is the unique identifier of the run in the database.
	ID int64

	// BaseURL is the mirrored site's start URL.
	BaseURL string

	// PagesVisited is the number of pages mirrored.
	PagesVisited int

	// ResourcesFailed is the number of failed downloads.
	ResourcesFailed int

	// Timestamp is when the run was saved.
	Timestamp time.Time
}

// ListRuns returns metadata for every stored run, newest first.
func (mdb *MirrorDB) ListRuns(ctx context.Context) ([]RunMetadata, error) {
	rows, err := mdb.db.QueryContext(ctx, `
	SELECT id, base_url, pages_visited, resources_failed, timestamp
	FROM runs
	ORDER BY timestamp DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var results []RunMetadata
	for rows.Next() {
		var meta RunMetadata
		var timestamp string
		if err := rows.Scan(&meta.ID, &meta.BaseURL, &meta.PagesVisited, &meta.ResourcesFailed, &timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		meta.Timestamp = parseTimestamp(timestamp)
		results = append(results, meta)
	}

	return results, rows.Err()
}

// PagesForRun returns the pages stored for one run in insertion order.
func (mdb *MirrorDB) PagesForRun(ctx context.Context, runID int64) ([]model.PageResult, error) {
	rows, err := mdb.db.QueryContext(ctx, `
	SELECT url, local_path, title, fetched_at
	FROM pages
	WHERE run_id = ?
	ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pages: %w", err)
	}
	defer rows.Close()

	var pages []model.PageResult
	for rows.Next() {
		var page model.PageResult
		var title sql.NullString
		var fetchedAt string
		if err := rows.Scan(&page.URL, &page.LocalPath, &title, &fetchedAt); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		page.Title = title.String
		page.FetchedAt = parseTimestamp(fetchedAt)
		pages = append(pages, page)
	}

	return pages, rows.Err()
}

// ResourcesForRun returns the resources stored for one run in insertion
// order.
func (mdb *MirrorDB) ResourcesForRun(ctx context.Context, runID int64) ([]model.Resource, error) {
	rows, err := mdb.db.QueryContext(ctx, `
	SELECT url, local_path, category, status
	FROM resources
	WHERE run_id = ?
	ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query resources: %w", err)
	}
	defer rows.Close()

	var resources []model.Resource
	for rows.Next() {
		var res model.Resource
		var category, status string
		if err := rows.Scan(&res.URL, &res.LocalPath, &category, &status); err != nil {
			return nil, fmt.Errorf("failed to scan resource: %w", err)
		}
		res.Category = model.Category(category)
		res.Status = model.Status(status)
		resources = append(resources, res)
	}

	return resources, rows.Err()
}

// HasRecentRun checks whether baseURL was mirrored within the given
// duration.
func (mdb *MirrorDB) HasRecentRun(ctx context.Context, baseURL string, within time.Duration) (bool, error) {
	// SQLite datetime modifier format
	modifier := fmt.Sprintf("-%d seconds", int(within.Seconds()))

	var count int
	err := mdb.db.QueryRowContext(ctx, `
	SELECT COUNT(*) FROM runs
	WHERE base_url = ? AND timestamp > datetime('now', ?)
	`, baseURL, modifier).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check recent run: %w", err)
	}

	return count > 0, nil
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// SQLite may return timestamps in different formats depending on configuration.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
