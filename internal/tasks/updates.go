package tasks

import (
	"fmt"

	"github.com/desertthunder/playhead/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	LookupPosition Phase = iota
	StartPlayback
	FetchTracks
)

func (p Phase) String() string {
	switch p {
	case LookupPosition:
		return "lookup_position"
	case StartPlayback:
		return "start_playback"
	case FetchTracks:
		return "fetch_tracks"
	default:
		return ""
	}
}

func lookupPositionUpdate(playlistID models.PlaylistID) ProgressUpdate {
	return ProgressUpdate{
		Phase:   LookupPosition,
		Step:    1,
		Total:   3,
		Message: fmt.Sprintf("Looking up saved position for %s...", playlistID),
	}
}

func foundPositionUpdate(pos *models.Position) ProgressUpdate {
	if pos == nil {
		return ProgressUpdate{
			Phase:   LookupPosition,
			Step:    1,
			Total:   3,
			Message: "No saved position, starting from the first track",
		}
	}
	return ProgressUpdate{
		Phase:   LookupPosition,
		Step:    1,
		Total:   3,
		Message: fmt.Sprintf("Found saved track %s", pos.TrackID),
		Data:    pos,
	}
}

func startPlaybackUpdate(playlistID models.PlaylistID, offset models.TrackURI) ProgressUpdate {
	msg := fmt.Sprintf("Starting %s from the top...", playlistID)
	if offset != "" {
		msg = fmt.Sprintf("Starting %s at %s...", playlistID, offset)
	}
	return ProgressUpdate{
		Phase:   StartPlayback,
		Step:    2,
		Total:   3,
		Message: msg,
	}
}

func tracksPageUpdate(page, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchTracks,
		Step:    3,
		Total:   3,
		Message: fmt.Sprintf("[page %d] %d tracks loaded", page, count),
	}
}
