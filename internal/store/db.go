package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite connection holding activities, plans, pairs and streams
type DB struct {
	*sql.DB
}

var (
	// ErrNoAuth is returned when no authentication is stored
	ErrNoAuth = errors.New("no authentication stored")

	// ErrActivityNotFound is returned when an activity doesn't exist
	ErrActivityNotFound = errors.New("activity not found")

	// ErrPlannedItemNotFound is returned when a planned item doesn't exist
	ErrPlannedItemNotFound = errors.New("planned item not found")

	// ErrPairNotFound is returned when a pair doesn't exist
	ErrPairNotFound = errors.New("pair not found")

	// ErrStreamNotFound is returned when a telemetry stream doesn't exist
	ErrStreamNotFound = errors.New("stream not found")
)

// Open opens the SQLite database at path, creating it if necessary.
func Open(path string) (*DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// A single connection keeps :memory: databases shared and serializes writers.
	sqlDB.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := sqlDB.Exec(p); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}

	if err := migrate(sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &DB{DB: sqlDB}, nil
}

// OpenMemory opens an in-memory database, used by tests.
func OpenMemory() (*DB, error) {
	return Open(":memory:")
}

// DefaultPath returns the database location inside the config directory
func DefaultPath(configDir string) string {
	return filepath.Join(configDir, "data.db")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
