package models

import (
	"fmt"
	"time"
)

// Position is the last played track of a playlist for a user, unique per (UserID, PlaylistID).
type Position struct {
	ID         string     `json:"id"`
	UserID     string     `json:"userId"`
	PlaylistID PlaylistID `json:"playlistId"`
	TrackID    APITrackID `json:"trackId"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

var _ Validator = Position{}

// Validate checks that every key field is present.
func (p Position) Validate() error {
	switch {
	case p.UserID == "":
		return fmt.Errorf("user id is required")
	case p.PlaylistID == "":
		return fmt.Errorf("playlist id is required")
	case p.TrackID == "":
		return fmt.Errorf("track id is required")
	}
	return nil
}

// TrackURI is the URI used to resume playback at this position.
func (p Position) TrackURI() TrackURI {
	return TrackURIFor(p.TrackID)
}
