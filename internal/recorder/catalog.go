package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ManuGH/liveplay/internal/persistence/sqlite"
)

// Entry is one saved recording.
type Entry struct {
	ID        int64     `json:"id"`
	Path      string    `json:"path"`
	Name      string    `json:"name"`
	SizeBytes int64     `json:"sizeBytes"`
	StartedAt time.Time `json:"startedAt"`
	SavedAt   time.Time `json:"savedAt"`
}

// Catalog lists saved recordings in SQLite.
type Catalog struct {
	db   *sql.DB
	path string
}

// OpenCatalog opens or creates the catalog at dbPath.
func OpenCatalog(dbPath string) (*Catalog, error) {
	db, err := sqlite.Open(dbPath, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	c := &Catalog{db: db, path: dbPath}
	if err := c.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("recorder: migrate catalog: %w", err)
	}
	return c, nil
}

// Close closes the database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

func (c *Catalog) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS recordings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL,
		name TEXT NOT NULL,
		size_bytes INTEGER NOT NULL DEFAULT 0,
		started_at TEXT NOT NULL,
		saved_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_recordings_saved_at ON recordings(saved_at);
	`
	_, err := c.db.Exec(schema)
	return err
}

// Check runs a quick integrity check and returns any problems found.
func (c *Catalog) Check() ([]string, error) {
	return sqlite.VerifyIntegrity(c.path, "quick")
}

// Add inserts e. Its ID is ignored.
func (c *Catalog) Add(ctx context.Context, e Entry) error {
	query := `
	INSERT INTO recordings (path, name, size_bytes, started_at, saved_at)
	VALUES (?, ?, ?, ?, ?)
	`
	_, err := c.db.ExecContext(ctx, query,
		e.Path, e.Name, e.SizeBytes,
		e.StartedAt.UTC().Format(time.RFC3339Nano),
		e.SavedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("recorder: insert recording: %w", err)
	}
	return nil
}

// List returns up to limit recordings, newest first. limit <= 0 means all.
func (c *Catalog) List(ctx context.Context, limit int) ([]Entry, error) {
	query := `
	SELECT id, path, name, size_bytes, started_at, saved_at
	FROM recordings
	ORDER BY saved_at DESC, id DESC
	LIMIT ?
	`
	if limit <= 0 {
		limit = -1
	}
	rows, err := c.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("recorder: list recordings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		var (
			e                  Entry
			started, savedTime string
		)
		if err := rows.Scan(&e.ID, &e.Path, &e.Name, &e.SizeBytes, &started, &savedTime); err != nil {
			return nil, err
		}
		e.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		e.SavedAt, _ = time.Parse(time.RFC3339Nano, savedTime)
		out = append(out, e)
	}
	return out, rows.Err()
}
