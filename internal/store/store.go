package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// isBusyLock reports whether err indicates SQLite database lock (SQLITE_BUSY).
// Handles wrapped errors from database/sql.
func isBusyLock(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "database is locked") || strings.Contains(s, "SQLITE_BUSY")
}

// retryOnBusy runs fn and retries on SQLITE_BUSY with exponential backoff.
func retryOnBusy(fn func() error) error {
	const maxAttempts = 4
	backoff := 25 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil || !isBusyLock(lastErr) {
			return lastErr
		}
		if attempt < maxAttempts-1 {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	return lastErr
}

// ImageBuild records the recipe fingerprint an image was last built from.
type ImageBuild struct {
	Image       string    `json:"image"`
	Fingerprint string    `json:"fingerprint"`
	RecipePath  string    `json:"recipe_path"`
	BuiltAt     time.Time `json:"built_at"`
}

type Store struct {
	db *sql.DB
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS image_builds (
	image        TEXT PRIMARY KEY,
	fingerprint  TEXT NOT NULL,
	recipe_path  TEXT NOT NULL DEFAULT '',
	built_at     DATETIME NOT NULL
);
`

// dsnWithPragmas returns a connection string with WAL and busy_timeout
// applied to every new connection.
func dsnWithPragmas(dbPath string) string {
	return dbPath + "?_pragma=busy_timeout(15000)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)"
}

// New opens the store at dbPath, creating the schema if needed.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dsnWithPragmas(dbPath))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Every connection to ":memory:" is its own database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(2)
	}

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// GetImageBuild returns the record for image, or nil if none exists.
func (s *Store) GetImageBuild(image string) (*ImageBuild, error) {
	row := s.db.QueryRow(
		`SELECT image, fingerprint, recipe_path, built_at FROM image_builds WHERE image = ?`, image,
	)
	var b ImageBuild
	err := row.Scan(&b.Image, &b.Fingerprint, &b.RecipePath, &b.BuiltAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning image build: %w", err)
	}
	return &b, nil
}

// RecordImageBuild inserts or replaces the record for b.Image.
func (s *Store) RecordImageBuild(b *ImageBuild) error {
	err := retryOnBusy(func() error {
		_, e := s.db.Exec(
			`INSERT INTO image_builds (image, fingerprint, recipe_path, built_at)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT(image) DO UPDATE SET
			   fingerprint = excluded.fingerprint,
			   recipe_path = excluded.recipe_path,
			   built_at    = excluded.built_at`,
			b.Image, b.Fingerprint, b.RecipePath, b.BuiltAt.UTC(),
		)
		return e
	})
	if err != nil {
		return fmt.Errorf("recording image build: %w", err)
	}
	return nil
}

// ListImageBuilds returns all records, most recent first.
func (s *Store) ListImageBuilds() ([]*ImageBuild, error) {
	rows, err := s.db.Query(
		`SELECT image, fingerprint, recipe_path, built_at FROM image_builds ORDER BY built_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing image builds: %w", err)
	}
	defer rows.Close()

	var builds []*ImageBuild
	for rows.Next() {
		var b ImageBuild
		if err := rows.Scan(&b.Image, &b.Fingerprint, &b.RecipePath, &b.BuiltAt); err != nil {
			return nil, fmt.Errorf("scanning image build: %w", err)
		}
		builds = append(builds, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating image builds: %w", err)
	}
	return builds, nil
}
