package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreatePair links a planned workout to an activity. Any existing pair on
// either side is removed first so each item takes part in at most one pair.
// A non-empty override date or title is recorded on the activity.
func (db *DB) CreatePair(plannedID, activityID, overrideDate, overrideTitle string) (*Pair, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// Clear overrides on activities losing their pair
	if _, err := tx.Exec(`
		UPDATE activities
		SET display_date = '', display_title = '', updated_at = CURRENT_TIMESTAMP
		WHERE id IN (SELECT activity_id FROM pairs WHERE planned_id = ? OR activity_id = ?)
	`, plannedID, activityID); err != nil {
		return nil, fmt.Errorf("clearing overrides: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM pairs WHERE planned_id = ? OR activity_id = ?`, plannedID, activityID); err != nil {
		return nil, fmt.Errorf("removing existing pairs: %w", err)
	}

	pair := &Pair{
		ID:            uuid.NewString(),
		PlannedID:     plannedID,
		ActivityID:    activityID,
		OverrideDate:  overrideDate,
		OverrideTitle: overrideTitle,
		CreatedAt:     time.Now().UTC().Truncate(time.Second),
	}
	if _, err := tx.Exec(`
		INSERT INTO pairs (id, planned_id, activity_id, override_date, override_title, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, pair.ID, pair.PlannedID, pair.ActivityID, pair.OverrideDate, pair.OverrideTitle,
		pair.CreatedAt.Format(time.RFC3339)); err != nil {
		return nil, fmt.Errorf("inserting pair: %w", err)
	}

	result, err := tx.Exec(`
		UPDATE activities
		SET display_date = ?, display_title = ?, hidden = 0, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, overrideDate, overrideTitle, activityID)
	if err != nil {
		return nil, fmt.Errorf("applying overrides: %w", err)
	}
	if err := requireRow(result, ErrActivityNotFound); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return pair, nil
}

// DeletePair removes a pair and clears the overrides it applied
func (db *DB) DeletePair(id string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		UPDATE activities
		SET display_date = '', display_title = '', updated_at = CURRENT_TIMESTAMP
		WHERE id IN (SELECT activity_id FROM pairs WHERE id = ?)
	`, id); err != nil {
		return err
	}

	result, err := tx.Exec(`DELETE FROM pairs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if err := requireRow(result, ErrPairNotFound); err != nil {
		return err
	}
	return tx.Commit()
}

// ListPairs returns all pairs
func (db *DB) ListPairs() ([]Pair, error) {
	rows, err := db.Query(`
		SELECT id, planned_id, activity_id, override_date, override_title, created_at
		FROM pairs
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pairs []Pair
	for rows.Next() {
		var p Pair
		var createdAt string
		if err := rows.Scan(&p.ID, &p.PlannedID, &p.ActivityID, &p.OverrideDate, &p.OverrideTitle, &createdAt); err != nil {
			return nil, err
		}
		if p.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at %q: %w", createdAt, err)
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}
