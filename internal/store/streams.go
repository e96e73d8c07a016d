package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SaveStream stores a telemetry stream and returns its ID.
// A stream with an existing ID is replaced.
func (db *DB) SaveStream(s *Stream) (string, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}

	summary, err := json.Marshal(s.Summary)
	if err != nil {
		return "", fmt.Errorf("encoding summary: %w", err)
	}
	laps := s.Laps
	if laps == nil {
		laps = []Lap{}
	}
	lapsJSON, err := json.Marshal(laps)
	if err != nil {
		return "", fmt.Errorf("encoding laps: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM streams WHERE id = ?", s.ID); err != nil {
		return "", fmt.Errorf("deleting existing stream: %w", err)
	}
	if _, err := tx.Exec(`
		INSERT INTO streams (id, summary_json, laps_json) VALUES (?, ?, ?)
	`, s.ID, string(summary), string(lapsJSON)); err != nil {
		return "", fmt.Errorf("inserting stream: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO stream_samples (
			stream_id, idx, ts, heart_rate, power, cadence, speed, distance, altitude
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for i, p := range s.Series {
		_, err := stmt.Exec(
			s.ID, i, p.Timestamp.UTC().Format(time.RFC3339Nano),
			p.HeartRate, p.Power, p.Cadence, p.Speed, p.Distance, p.Altitude,
		)
		if err != nil {
			return "", fmt.Errorf("inserting sample %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing transaction: %w", err)
	}
	return s.ID, nil
}

// LoadStream retrieves a stream with its samples, laps and summary
func (db *DB) LoadStream(ctx context.Context, id string) (*Stream, error) {
	var summaryJSON, lapsJSON string
	err := db.QueryRowContext(ctx, `
		SELECT summary_json, laps_json FROM streams WHERE id = ?
	`, id).Scan(&summaryJSON, &lapsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStreamNotFound
	}
	if err != nil {
		return nil, err
	}

	s := &Stream{ID: id}
	if err := json.Unmarshal([]byte(summaryJSON), &s.Summary); err != nil {
		return nil, fmt.Errorf("decoding summary: %w", err)
	}
	if err := json.Unmarshal([]byte(lapsJSON), &s.Laps); err != nil {
		return nil, fmt.Errorf("decoding laps: %w", err)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT ts, heart_rate, power, cadence, speed, distance, altitude
		FROM stream_samples
		WHERE stream_id = ?
		ORDER BY idx
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p Sample
		var ts string
		if err := rows.Scan(&ts, &p.HeartRate, &p.Power, &p.Cadence, &p.Speed, &p.Distance, &p.Altitude); err != nil {
			return nil, err
		}
		if p.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("parsing sample time %q: %w", ts, err)
		}
		s.Series = append(s.Series, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return s, nil
}

// DeleteStream removes a stream and its samples
func (db *DB) DeleteStream(id string) error {
	result, err := db.Exec("DELETE FROM streams WHERE id = ?", id)
	if err != nil {
		return err
	}
	return requireRow(result, ErrStreamNotFound)
}
