package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/playhead/internal/models"
	"github.com/desertthunder/playhead/internal/shared"
)

var (
	_ models.PositionStore  = (*PositionRepository)(nil)
	_ models.PositionLister = (*PositionRepository)(nil)
)

const positionColumns = "id, sequence, user_id, playlist_id, track_id, created_at, updated_at"

// PositionRepository implements [models.PositionStore] over SQLite.
type PositionRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewPositionRepository creates a new [PositionRepository] with the given database connection
func NewPositionRepository(db *sql.DB) *PositionRepository {
	return &PositionRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPosition(row rowScanner) (*models.Position, int, error) {
	var (
		p        models.Position
		sequence int
	)
	if err := row.Scan(&p.ID, &sequence, &p.UserID, &p.PlaylistID, &p.TrackID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, 0, err
	}
	return &p, sequence, nil
}

// Get returns the saved position for (userID, playlistID), or nil when there is none.
func (r *PositionRepository) Get(ctx context.Context, userID string, playlistID models.PlaylistID) (*models.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM playlist_positions WHERE user_id = ? AND playlist_id = ?`

	p, _, err := scanPosition(r.db.QueryRowContext(ctx, query, userID, string(playlistID)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query position: %w", err)
	}
	return p, nil
}

// Put upserts the track for (userID, playlistID). An existing row keeps its id and created_at.
func (r *PositionRepository) Put(ctx context.Context, userID string, playlistID models.PlaylistID, trackID models.APITrackID) (*models.Position, error) {
	now := r.now()
	p := models.Position{
		ID:         shared.GenerateID(),
		UserID:     userID,
		PlaylistID: playlistID,
		TrackID:    trackID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	sequence, err := NextSequence(ctx, r.db, "playlist_positions")
	if err != nil {
		return nil, fmt.Errorf("failed to generate sequence: %w", err)
	}

	query := `
		INSERT INTO playlist_positions (` + positionColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, playlist_id) DO UPDATE SET
			track_id = excluded.track_id,
			updated_at = excluded.updated_at
	`
	_, err = r.db.ExecContext(ctx, query, p.ID, sequence, p.UserID, string(p.PlaylistID), string(p.TrackID), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert position: %w", err)
	}

	stored, err := r.Get(ctx, userID, playlistID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("%w: upserted position missing", shared.ErrPositionNotFound)
	}
	return stored, nil
}

// Delete removes the position for (userID, playlistID) and returns what was removed.
func (r *PositionRepository) Delete(ctx context.Context, userID string, playlistID models.PlaylistID) ([]models.Position, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT `+positionColumns+` FROM playlist_positions WHERE user_id = ? AND playlist_id = ?`,
		userID, string(playlistID))
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	deleted, err := collectPositions(rows)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM playlist_positions WHERE user_id = ? AND playlist_id = ?`,
		userID, string(playlistID)); err != nil {
		return nil, fmt.Errorf("failed to delete position: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit delete: %w", err)
	}
	return deleted, nil
}

// List returns every position saved for userID, most recently updated first.
func (r *PositionRepository) List(ctx context.Context, userID string) ([]models.Position, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+positionColumns+` FROM playlist_positions WHERE user_id = ? ORDER BY updated_at DESC, sequence DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}
	return collectPositions(rows)
}

func collectPositions(rows *sql.Rows) ([]models.Position, error) {
	defer rows.Close()

	positions := []models.Position{}
	for rows.Next() {
		p, _, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating positions: %w", err)
	}
	return positions, nil
}
