package models

import (
	"context"
)

// Validator is implemented by types that can check their own invariants before being stored.
type Validator interface {
	Validate() error
}

// PositionStore is a last-write-wins key/value store of [Position] keyed by (user, playlist).
type PositionStore interface {
	// Get returns the saved position or (nil, nil) when none exists.
	Get(ctx context.Context, userID string, playlistID PlaylistID) (*Position, error)
	// Put upserts the position for (userID, playlistID) and returns the stored row.
	Put(ctx context.Context, userID string, playlistID PlaylistID, trackID APITrackID) (*Position, error)
	// Delete removes the position and returns the removed rows.
	Delete(ctx context.Context, userID string, playlistID PlaylistID) ([]Position, error)
}

// PositionLister is implemented by stores that can enumerate a user's positions.
type PositionLister interface {
	List(ctx context.Context, userID string) ([]Position, error)
}
