package models

import (
	"time"
)

// PlaybackSnapshot is the pull channel's view of the remote session.
//
// Track is nil when nothing is loaded. ContextURI is empty when playback has no context.
type PlaybackSnapshot struct {
	IsPlaying  bool      `json:"isPlaying"`
	PositionMs int       `json:"positionMs"`
	Track      *APITrack `json:"track"`
	ContextURI string    `json:"contextUri,omitempty"`
	DeviceID   string    `json:"deviceId,omitempty"`
	Volume     int       `json:"volume"`
	FetchedAt  time.Time `json:"fetchedAt"`
}

// PlaylistID returns the playlist of the snapshot's context, if any.
func (s PlaybackSnapshot) PlaylistID() (PlaylistID, bool) {
	return PlaylistIDFromContext(s.ContextURI)
}

// SdkPlaybackEvent is a state change delivered by the push channel.
type SdkPlaybackEvent struct {
	Paused     bool      `json:"paused"`
	PositionMs int       `json:"positionMs"`
	DurationMs int       `json:"durationMs"`
	Track      SDKTrack  `json:"track"`
	ContextURI string    `json:"contextUri,omitempty"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// PlaylistID returns the playlist of the event's context, if any.
func (e SdkPlaybackEvent) PlaylistID() (PlaylistID, bool) {
	return PlaylistIDFromContext(e.ContextURI)
}

// MergedPlaybackView is the reconciled playback state exposed to presentation code.
//
// Track is always sourced from the pull channel; SDKTrack carries the push channel's
// description so a title can be shown before the first snapshot lands.
type MergedPlaybackView struct {
	Paused     bool       `json:"paused"`
	PositionMs int        `json:"positionMs"`
	DurationMs int        `json:"durationMs"`
	Track      *APITrack  `json:"track"`
	SDKTrack   *SDKTrack  `json:"sdkTrack,omitempty"`
	PlaylistID PlaylistID `json:"playlistId,omitempty"`
	Queue      []APITrack `json:"queue,omitempty"`
	Tracks     []APITrack `json:"tracks,omitempty"`
	Volume     int        `json:"volume"`
	NeedsLogin bool       `json:"needsLogin"`
	LastError  string     `json:"lastError,omitempty"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// Title returns the best available track name and artists for display.
func (v MergedPlaybackView) Title() (name, artists string) {
	switch {
	case v.Track != nil:
		return v.Track.Name, v.Track.ArtistNames()
	case v.SDKTrack != nil:
		return v.SDKTrack.Name, v.SDKTrack.ArtistNames()
	default:
		return "", ""
	}
}

// TransitionState holds the identity seen at the end of the previous merge cycle.
//
// Zero values mean "unknown". It lives only as long as the reconciler that owns it.
type TransitionState struct {
	PreviousTrackID    APITrackID
	PreviousPlaylistID PlaylistID
	LastManualToggleAt time.Time
}
