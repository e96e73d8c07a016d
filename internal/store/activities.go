package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const activityColumns = `id, source, name, type, start_date_local, moving_time, distance,
	elevation_gain, avg_heartrate, min_heartrate, max_heartrate,
	avg_power, min_power, max_power, tss_override, if_value, stream_id,
	description, feel, rpe, rpe_touched, comments_json, hidden, display_date, display_title`

// UpsertActivity inserts or updates an activity. Imported activities
// without an ID get a fresh one.
func (db *DB) UpsertActivity(a *Activity) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Source == "" {
		a.Source = SourceImport
	}
	a.Feel = clampInt(a.Feel, 0, 5)
	a.RPE = clampInt(a.RPE, 0, 10)
	if a.RPE > 0 {
		a.RPETouched = true
	}
	comments, err := encodeComments(a.Comments)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		INSERT INTO activities (`+activityColumns+`, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			source = excluded.source,
			name = excluded.name,
			type = excluded.type,
			start_date_local = excluded.start_date_local,
			moving_time = excluded.moving_time,
			distance = excluded.distance,
			elevation_gain = excluded.elevation_gain,
			avg_heartrate = excluded.avg_heartrate,
			min_heartrate = excluded.min_heartrate,
			max_heartrate = excluded.max_heartrate,
			avg_power = excluded.avg_power,
			min_power = excluded.min_power,
			max_power = excluded.max_power,
			tss_override = excluded.tss_override,
			if_value = excluded.if_value,
			stream_id = CASE WHEN excluded.stream_id = '' THEN activities.stream_id ELSE excluded.stream_id END,
			description = excluded.description,
			feel = excluded.feel,
			rpe = excluded.rpe,
			rpe_touched = excluded.rpe_touched,
			comments_json = excluded.comments_json,
			updated_at = CURRENT_TIMESTAMP
	`,
		a.ID, a.Source, a.Name, a.Type, a.StartDateLocal.Format(time.RFC3339),
		a.MovingTime, a.Distance, a.ElevationGain,
		a.AvgHeartrate, a.MinHeartrate, a.MaxHeartrate,
		a.AvgPower, a.MinPower, a.MaxPower,
		a.TSSOverride, a.IF, a.StreamID,
		a.Description, a.Feel, a.RPE, boolToInt(a.RPETouched), comments,
		boolToInt(a.Hidden), a.DisplayDate, a.DisplayTitle,
	)
	return err
}

// GetActivity retrieves an activity by ID
func (db *DB) GetActivity(id string) (*Activity, error) {
	row := db.QueryRow(`SELECT `+activityColumns+` FROM activities WHERE id = ?`, id)
	a, err := scanActivity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrActivityNotFound
	}
	return a, err
}

// ListActivities returns all activities ordered by start date ascending
func (db *DB) ListActivities() ([]Activity, error) {
	rows, err := db.Query(`SELECT ` + activityColumns + ` FROM activities ORDER BY start_date_local`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanActivities(rows)
}

// GetActivitiesNeedingStreams returns synced activities that have no stream attached yet
func (db *DB) GetActivitiesNeedingStreams(limit int) ([]Activity, error) {
	rows, err := db.Query(`
		SELECT `+activityColumns+`
		FROM activities
		WHERE source = ? AND stream_id = ''
		ORDER BY start_date_local DESC
		LIMIT ?
	`, SourceStrava, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanActivities(rows)
}

// AttachStream records the stream belonging to an activity
func (db *DB) AttachStream(activityID, streamID string) error {
	return db.updateActivity(`stream_id = ?`, streamID, activityID)
}

// SetActivityHidden hides or shows an activity on the calendar
func (db *DB) SetActivityHidden(activityID string, hidden bool) error {
	return db.updateActivity(`hidden = ?`, boolToInt(hidden), activityID)
}

// UpdateFeedback stores the athlete's subjective feedback for an activity.
// The RPE counts as rated afterwards, even when it is zero.
func (db *DB) UpdateFeedback(activityID string, feel, rpe int, description string) error {
	result, err := db.Exec(`
		UPDATE activities
		SET feel = ?, rpe = ?, rpe_touched = 1, description = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, clampInt(feel, 0, 5), clampInt(rpe, 0, 10), description, activityID)
	if err != nil {
		return err
	}
	return requireRow(result, ErrActivityNotFound)
}

// AddComment appends a comment to an activity
func (db *DB) AddComment(activityID, text string) error {
	a, err := db.GetActivity(activityID)
	if err != nil {
		return err
	}
	comments, err := encodeComments(append(a.Comments, text))
	if err != nil {
		return err
	}
	return db.updateActivity(`comments_json = ?`, comments, activityID)
}

// CountActivities returns the total number of activities
func (db *DB) CountActivities() (int, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM activities").Scan(&count)
	return count, err
}

func (db *DB) updateActivity(set string, value any, activityID string) error {
	result, err := db.Exec(`
		UPDATE activities SET `+set+`, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, value, activityID)
	if err != nil {
		return err
	}
	return requireRow(result, ErrActivityNotFound)
}

// scanner is satisfied by *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanActivity(row scanner) (*Activity, error) {
	var a Activity
	var startDateLocal, comments string
	var hidden, rpeTouched int

	err := row.Scan(
		&a.ID, &a.Source, &a.Name, &a.Type, &startDateLocal, &a.MovingTime, &a.Distance,
		&a.ElevationGain, &a.AvgHeartrate, &a.MinHeartrate, &a.MaxHeartrate,
		&a.AvgPower, &a.MinPower, &a.MaxPower, &a.TSSOverride, &a.IF, &a.StreamID,
		&a.Description, &a.Feel, &a.RPE, &rpeTouched, &comments, &hidden, &a.DisplayDate, &a.DisplayTitle,
	)
	if err != nil {
		return nil, err
	}

	a.StartDateLocal, err = time.Parse(time.RFC3339, startDateLocal)
	if err != nil {
		return nil, fmt.Errorf("parsing start_date_local %q: %w", startDateLocal, err)
	}
	a.Hidden = hidden == 1
	a.RPETouched = rpeTouched == 1
	if a.Comments, err = decodeComments(comments); err != nil {
		return nil, err
	}

	return &a, nil
}

func scanActivities(rows *sql.Rows) ([]Activity, error) {
	var activities []Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		activities = append(activities, *a)
	}
	return activities, rows.Err()
}

func encodeComments(comments []string) (string, error) {
	if len(comments) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(comments)
	if err != nil {
		return "", fmt.Errorf("encoding comments: %w", err)
	}
	return string(b), nil
}

func decodeComments(s string) ([]string, error) {
	var comments []string
	if s == "" || s == "[]" {
		return nil, nil
	}
	if err := json.Unmarshal([]byte(s), &comments); err != nil {
		return nil, fmt.Errorf("decoding comments: %w", err)
	}
	return comments, nil
}

func requireRow(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return notFound
	}
	return nil
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(hi, v))
}

func clampFloat(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}
