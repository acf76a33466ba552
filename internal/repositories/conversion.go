package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/desertthunder/sp2yt/internal/models"
	"github.com/desertthunder/sp2yt/internal/shared"
)

// ConversionSummary is one row of the conversions table.
type ConversionSummary struct {
	PlaylistKey string    `json:"playlist_key"`
	TrackCount  int       `json:"track_count"`
	FoundCount  int       `json:"found_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ConversionRepository stores completed conversions by playlist key.
type ConversionRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewConversionRepository creates a new ConversionRepository with the given database connection
func NewConversionRepository(db *sql.DB) *ConversionRepository {
	return &ConversionRepository{db: db, now: time.Now}
}

// Save replaces the stored conversion for key with results.
func (r *ConversionRepository) Save(ctx context.Context, key string, results []models.TrackResult) error {
	if key == "" {
		return fmt.Errorf("%w: empty playlist key", shared.ErrInvalidInput)
	}

	found := 0
	encoded := make([][]byte, len(results))
	for i, tr := range results {
		data, err := json.Marshal(tr.Result)
		if err != nil {
			return fmt.Errorf("failed to encode result %d: %w", tr.Index, err)
		}
		encoded[i] = data
		if tr.Result.IsFound() {
			found++
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := r.now().UTC()
	query := `
		INSERT INTO conversions (playlist_key, track_count, found_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(playlist_key) DO UPDATE SET
			track_count = excluded.track_count,
			found_count = excluded.found_count,
			updated_at = excluded.updated_at
	`
	if _, err := tx.ExecContext(ctx, query, key, len(results), found, now, now); err != nil {
		return fmt.Errorf("failed to upsert conversion: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM conversion_tracks WHERE playlist_key = ?`, key); err != nil {
		return fmt.Errorf("failed to clear conversion tracks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO conversion_tracks (playlist_key, position, name, artist, result)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare track insert: %w", err)
	}
	defer stmt.Close()

	for i, tr := range results {
		if _, err := stmt.ExecContext(ctx, key, tr.Index, tr.Track.Name, tr.Track.Artist, string(encoded[i])); err != nil {
			return fmt.Errorf("failed to insert track %d: %w", tr.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit conversion: %w", err)
	}
	return nil
}

// Load returns the stored results for key in position order. ok is false when nothing is stored.
func (r *ConversionRepository) Load(ctx context.Context, key string) ([]models.TrackResult, bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT track_count FROM conversions WHERE playlist_key = ?`, key).Scan(&count)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get conversion: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT position, name, artist, result
		FROM conversion_tracks
		WHERE playlist_key = ?
		ORDER BY position
	`, key)
	if err != nil {
		return nil, false, fmt.Errorf("failed to query conversion tracks: %w", err)
	}
	defer rows.Close()

	results := make([]models.TrackResult, 0, count)
	for rows.Next() {
		var (
			tr  models.TrackResult
			raw string
		)
		if err := rows.Scan(&tr.Index, &tr.Track.Name, &tr.Track.Artist, &raw); err != nil {
			return nil, false, fmt.Errorf("failed to scan conversion track: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &tr.Result); err != nil {
			return nil, false, fmt.Errorf("failed to decode result at position %d: %w", tr.Index, err)
		}
		results = append(results, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("error iterating conversion tracks: %w", err)
	}
	return results, true, nil
}

// Delete removes the conversion for key and its tracks.
func (r *ConversionRepository) Delete(ctx context.Context, key string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM conversions WHERE playlist_key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete conversion: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrConversionNotFound, key)
	}
	return nil
}

// List returns every stored conversion, most recently updated first.
func (r *ConversionRepository) List(ctx context.Context) ([]ConversionSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT playlist_key, track_count, found_count, created_at, updated_at
		FROM conversions
		ORDER BY updated_at DESC, playlist_key
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversions: %w", err)
	}
	defer rows.Close()

	var out []ConversionSummary
	for rows.Next() {
		var s ConversionSummary
		if err := rows.Scan(&s.PlaylistKey, &s.TrackCount, &s.FoundCount, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversion: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conversions: %w", err)
	}
	return out, nil
}

// Prune deletes conversions last updated before cutoff and returns how many were removed.
func (r *ConversionRepository) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM conversions WHERE updated_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune conversions: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return int(rows), nil
}
