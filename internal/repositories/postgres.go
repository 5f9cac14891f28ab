package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/playhead/internal/models"
	"github.com/desertthunder/playhead/internal/shared"
	"github.com/uptrace/bun"
)

var (
	_ models.PositionStore  = (*PostgresPositionStore)(nil)
	_ models.PositionLister = (*PostgresPositionStore)(nil)
)

// positionRecord is the bun model for the playlist_positions table.
type positionRecord struct {
	bun.BaseModel `bun:"table:playlist_positions,alias:pp"`

	ID         string    `bun:"id,pk"`
	UserID     string    `bun:"user_id,notnull,unique:user_playlist"`
	PlaylistID string    `bun:"playlist_id,notnull,unique:user_playlist"`
	TrackID    string    `bun:"track_id,notnull"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt  time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

func (r positionRecord) toModel() models.Position {
	return models.Position{
		ID:         r.ID,
		UserID:     r.UserID,
		PlaylistID: models.PlaylistID(r.PlaylistID),
		TrackID:    models.APITrackID(r.TrackID),
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

// PostgresPositionStore implements [models.PositionStore] with bun over PostgreSQL.
type PostgresPositionStore struct {
	db *bun.DB
}

// NewPostgresPositionStore wraps an open [bun.DB]; call Init before first use on a fresh database.
func NewPostgresPositionStore(db *bun.DB) *PostgresPositionStore {
	return &PostgresPositionStore{db: db}
}

// Init creates the playlist_positions table and its listing index when missing.
func (s *PostgresPositionStore) Init(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().
		Model((*positionRecord)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to create playlist_positions: %w", err)
	}

	if _, err := s.db.NewCreateIndex().
		Model((*positionRecord)(nil)).
		Index("idx_playlist_positions_user_updated").
		IfNotExists().
		Column("user_id", "updated_at").
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to create playlist_positions index: %w", err)
	}
	return nil
}

func (s *PostgresPositionStore) Get(ctx context.Context, userID string, playlistID models.PlaylistID) (*models.Position, error) {
	var rec positionRecord
	err := s.db.NewSelect().
		Model(&rec).
		Where("user_id = ?", userID).
		Where("playlist_id = ?", string(playlistID)).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get position: %w", err)
	}

	p := rec.toModel()
	return &p, nil
}

func (s *PostgresPositionStore) Put(ctx context.Context, userID string, playlistID models.PlaylistID, trackID models.APITrackID) (*models.Position, error) {
	now := time.Now().UTC()
	rec := &positionRecord{
		ID:         shared.GenerateID(),
		UserID:     userID,
		PlaylistID: string(playlistID),
		TrackID:    string(trackID),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := rec.toModel().Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	_, err := s.db.NewInsert().
		Model(rec).
		On("CONFLICT (user_id, playlist_id) DO UPDATE").
		Set("track_id = EXCLUDED.track_id").
		Set("updated_at = EXCLUDED.updated_at").
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert position: %w", err)
	}

	p := rec.toModel()
	return &p, nil
}

func (s *PostgresPositionStore) Delete(ctx context.Context, userID string, playlistID models.PlaylistID) ([]models.Position, error) {
	var recs []positionRecord
	_, err := s.db.NewDelete().
		Model(&recs).
		Where("user_id = ?", userID).
		Where("playlist_id = ?", string(playlistID)).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to delete position: %w", err)
	}
	return toModels(recs), nil
}

func (s *PostgresPositionStore) List(ctx context.Context, userID string) ([]models.Position, error) {
	var recs []positionRecord
	err := s.db.NewSelect().
		Model(&recs).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}
	return toModels(recs), nil
}

func toModels(recs []positionRecord) []models.Position {
	out := make([]models.Position, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.toModel())
	}
	return out
}
