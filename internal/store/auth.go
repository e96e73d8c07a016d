package store

import (
	"database/sql"
	"errors"
	"time"

	"golang.org/x/oauth2"
)

// LoadToken returns the stored Strava token, or ErrNoAuth before the
// first successful login
func (db *DB) LoadToken() (*oauth2.Token, error) {
	var tok oauth2.Token
	var expiresAt int64
	err := db.QueryRow(`
		SELECT access_token, refresh_token, expires_at FROM auth WHERE id = 1
	`).Scan(&tok.AccessToken, &tok.RefreshToken, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoAuth
	}
	if err != nil {
		return nil, err
	}
	tok.TokenType = "Bearer"
	tok.Expiry = time.Unix(expiresAt, 0)
	return &tok, nil
}

// SaveToken stores tok. An athleteID of 0 keeps the athlete already on record.
func (db *DB) SaveToken(tok *oauth2.Token, athleteID int64) error {
	_, err := db.Exec(`
		INSERT INTO auth (id, athlete_id, access_token, refresh_token, expires_at, updated_at)
		VALUES (1, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			athlete_id = CASE WHEN excluded.athlete_id = 0 THEN auth.athlete_id ELSE excluded.athlete_id END,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			updated_at = CURRENT_TIMESTAMP
	`, athleteID, tok.AccessToken, tok.RefreshToken, tok.Expiry.Unix())
	return err
}

// AthleteID returns the athlete the stored token belongs to
func (db *DB) AthleteID() (int64, error) {
	var id int64
	err := db.QueryRow(`SELECT athlete_id FROM auth WHERE id = 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNoAuth
	}
	return id, err
}
