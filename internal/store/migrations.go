package store

import (
	"database/sql"
	"fmt"
)

// schemaVersion is stored in PRAGMA user_version once all migrations ran
const schemaVersion = 1

// migrate runs all database migrations
func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("reading user_version: %w", err)
	}
	if version >= schemaVersion {
		return nil
	}

	migrations := []string{
		// Authentication (singleton row)
		`CREATE TABLE IF NOT EXISTS auth (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			athlete_id INTEGER NOT NULL,
			access_token TEXT NOT NULL,
			refresh_token TEXT NOT NULL,
			expires_at INTEGER NOT NULL,
			created_at TEXT DEFAULT CURRENT_TIMESTAMP,
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP
		)`,

		// Completed activities (synced or imported)
		`CREATE TABLE IF NOT EXISTS activities (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			start_date_local TEXT NOT NULL,
			moving_time INTEGER NOT NULL,
			distance REAL NOT NULL,
			elevation_gain REAL NOT NULL DEFAULT 0,
			avg_heartrate REAL,
			min_heartrate REAL,
			max_heartrate REAL,
			avg_power REAL,
			min_power REAL,
			max_power REAL,
			tss_override REAL NOT NULL DEFAULT 0,
			if_value REAL NOT NULL DEFAULT 0,
			stream_id TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			feel INTEGER NOT NULL DEFAULT 0,
			rpe INTEGER NOT NULL DEFAULT 0,
			rpe_touched INTEGER NOT NULL DEFAULT 0,
			comments_json TEXT NOT NULL DEFAULT '[]',
			hidden INTEGER NOT NULL DEFAULT 0,
			display_date TEXT NOT NULL DEFAULT '',
			display_title TEXT NOT NULL DEFAULT '',
			created_at TEXT DEFAULT CURRENT_TIMESTAMP,
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_activities_start_date ON activities(start_date_local)`,

		// Calendar entries
		`CREATE TABLE IF NOT EXISTS planned_items (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			date TEXT NOT NULL,
			title TEXT NOT NULL,
			workout_type TEXT NOT NULL DEFAULT '',
			duration_min REAL NOT NULL DEFAULT 0,
			distance_km REAL NOT NULL DEFAULT 0,
			intensity REAL NOT NULL DEFAULT 0,
			planned_tss REAL NOT NULL DEFAULT 0,
			planned_if REAL NOT NULL DEFAULT 0,
			completed_duration_min REAL NOT NULL DEFAULT 0,
			completed_distance_km REAL NOT NULL DEFAULT 0,
			completed_tss REAL NOT NULL DEFAULT 0,
			completed_if REAL NOT NULL DEFAULT 0,
			description TEXT NOT NULL DEFAULT '',
			feel INTEGER NOT NULL DEFAULT 0,
			rpe INTEGER NOT NULL DEFAULT 0,
			comments_json TEXT NOT NULL DEFAULT '[]',
			created_at TEXT DEFAULT CURRENT_TIMESTAMP,
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_planned_items_date ON planned_items(date)`,

		// Plan-to-activity links, at most one per side
		`CREATE TABLE IF NOT EXISTS pairs (
			id TEXT PRIMARY KEY,
			planned_id TEXT NOT NULL UNIQUE,
			activity_id TEXT NOT NULL UNIQUE,
			override_date TEXT NOT NULL DEFAULT '',
			override_title TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			FOREIGN KEY (planned_id) REFERENCES planned_items(id) ON DELETE CASCADE,
			FOREIGN KEY (activity_id) REFERENCES activities(id) ON DELETE CASCADE
		)`,

		// Telemetry streams: laps and summary are stored as JSON documents
		`CREATE TABLE IF NOT EXISTS streams (
			id TEXT PRIMARY KEY,
			summary_json TEXT NOT NULL,
			laps_json TEXT NOT NULL,
			created_at TEXT DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS stream_samples (
			stream_id TEXT NOT NULL,
			idx INTEGER NOT NULL,
			ts TEXT NOT NULL,
			heart_rate REAL,
			power REAL,
			cadence REAL,
			speed REAL,
			distance REAL,
			altitude REAL,
			PRIMARY KEY (stream_id, idx),
			FOREIGN KEY (stream_id) REFERENCES streams(id) ON DELETE CASCADE
		)`,

		// Sync State (key-value store for sync tracking)
		`CREATE TABLE IF NOT EXISTS sync_state (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}

	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion))
	return err
}
