package store

import (
	"database/sql"
	"errors"

	"github.com/google/uuid"
)

const plannedColumns = `id, kind, date, title, workout_type, duration_min, distance_km,
	intensity, planned_tss, planned_if, completed_duration_min, completed_distance_km,
	completed_tss, completed_if, description, feel, rpe, comments_json`

var defaultTitles = map[string]string{
	KindWorkout:      "Untitled Workout",
	KindEvent:        "Untitled Event",
	KindGoal:         "Untitled Goal",
	KindNote:         "Note",
	KindMetrics:      "Metrics",
	KindAvailability: "Availability",
}

// Normalize clamps the item's numeric fields into their valid ranges and
// fills in the kind, title and workout type defaults.
func (p *PlannedItem) Normalize() {
	if _, ok := defaultTitles[p.Kind]; !ok {
		p.Kind = KindWorkout
	}
	if p.Title == "" {
		p.Title = defaultTitles[p.Kind]
	}
	if p.Kind == KindWorkout && p.WorkoutType == "" {
		p.WorkoutType = "Other"
	}

	p.DurationMin = positive(p.DurationMin)
	p.DistanceKm = positive(p.DistanceKm)
	p.PlannedTSS = positive(p.PlannedTSS)
	p.PlannedIF = positive(p.PlannedIF)
	p.CompletedDurationMin = positive(p.CompletedDurationMin)
	p.CompletedDistanceKm = positive(p.CompletedDistanceKm)
	p.CompletedTSS = positive(p.CompletedTSS)
	p.CompletedIF = positive(p.CompletedIF)
	if p.Intensity > 0 {
		p.Intensity = clampFloat(p.Intensity, 1, 10)
	} else {
		p.Intensity = 0
	}
	p.Feel = clampInt(p.Feel, 0, 5)
	p.RPE = clampInt(p.RPE, 0, 10)
}

// SavePlannedItem normalizes and stores a planned item, assigning an ID to new items
func (db *DB) SavePlannedItem(p *PlannedItem) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.Normalize()
	comments, err := encodeComments(p.Comments)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		INSERT INTO planned_items (`+plannedColumns+`, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			date = excluded.date,
			title = excluded.title,
			workout_type = excluded.workout_type,
			duration_min = excluded.duration_min,
			distance_km = excluded.distance_km,
			intensity = excluded.intensity,
			planned_tss = excluded.planned_tss,
			planned_if = excluded.planned_if,
			completed_duration_min = excluded.completed_duration_min,
			completed_distance_km = excluded.completed_distance_km,
			completed_tss = excluded.completed_tss,
			completed_if = excluded.completed_if,
			description = excluded.description,
			feel = excluded.feel,
			rpe = excluded.rpe,
			comments_json = excluded.comments_json,
			updated_at = CURRENT_TIMESTAMP
	`,
		p.ID, p.Kind, p.Date, p.Title, p.WorkoutType, p.DurationMin, p.DistanceKm,
		p.Intensity, p.PlannedTSS, p.PlannedIF, p.CompletedDurationMin, p.CompletedDistanceKm,
		p.CompletedTSS, p.CompletedIF, p.Description, p.Feel, p.RPE, comments,
	)
	return err
}

// GetPlannedItem retrieves a planned item by ID
func (db *DB) GetPlannedItem(id string) (*PlannedItem, error) {
	row := db.QueryRow(`SELECT `+plannedColumns+` FROM planned_items WHERE id = ?`, id)
	p, err := scanPlannedItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPlannedItemNotFound
	}
	return p, err
}

// ListPlannedItems returns all planned items ordered by date
func (db *DB) ListPlannedItems() ([]PlannedItem, error) {
	rows, err := db.Query(`SELECT ` + plannedColumns + ` FROM planned_items ORDER BY date, created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []PlannedItem
	for rows.Next() {
		p, err := scanPlannedItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *p)
	}
	return items, rows.Err()
}

// DeletePlannedItem removes a planned item. An activity paired with a
// deleted workout is hidden from the calendar along with it.
func (db *DB) DeletePlannedItem(id string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var activityID string
	err = tx.QueryRow(`SELECT activity_id FROM pairs WHERE planned_id = ?`, id).Scan(&activityID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if activityID != "" {
		if _, err := tx.Exec(`DELETE FROM pairs WHERE planned_id = ?`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(`
			UPDATE activities
			SET hidden = 1, display_date = '', display_title = '', updated_at = CURRENT_TIMESTAMP
			WHERE id = ?
		`, activityID); err != nil {
			return err
		}
	}

	result, err := tx.Exec(`DELETE FROM planned_items WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if err := requireRow(result, ErrPlannedItemNotFound); err != nil {
		return err
	}
	return tx.Commit()
}

func scanPlannedItem(row scanner) (*PlannedItem, error) {
	var p PlannedItem
	var comments string
	err := row.Scan(
		&p.ID, &p.Kind, &p.Date, &p.Title, &p.WorkoutType, &p.DurationMin, &p.DistanceKm,
		&p.Intensity, &p.PlannedTSS, &p.PlannedIF, &p.CompletedDurationMin, &p.CompletedDistanceKm,
		&p.CompletedTSS, &p.CompletedIF, &p.Description, &p.Feel, &p.RPE, &comments,
	)
	if err != nil {
		return nil, err
	}
	if p.Comments, err = decodeComments(comments); err != nil {
		return nil, err
	}
	return &p, nil
}
