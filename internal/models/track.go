package models

import (
	"strings"
)

const (
	trackURIPrefix    = "spotify:track:"
	playlistURIPrefix = "spotify:playlist:"
)

// SDKTrackID is a track id reported by the browser SDK.
type SDKTrackID string

// APITrackID is a track id reported by the Web API.
type APITrackID string

// TrackURI is the cross-channel track identifier, "spotify:track:<opaque-id>".
type TrackURI string

// PlaylistID is the opaque id portion of a playlist context URI.
type PlaylistID string

// TrackRef describes a track as seen by one channel. ID is namespace specific; URI is shared.
type TrackRef[ID ~string] struct {
	ID         ID       `json:"id,omitempty"`
	URI        TrackURI `json:"uri"`
	Name       string   `json:"name"`
	DurationMs int      `json:"durationMs"`
	Album      string   `json:"album,omitempty"`
	Artists    []string `json:"artists,omitempty"`
}

type (
	SDKTrack = TrackRef[SDKTrackID]
	APITrack = TrackRef[APITrackID]
)

// HasID reports whether the channel supplied an id for this track.
func (t TrackRef[ID]) HasID() bool {
	return t.ID != ""
}

// SameAs compares by URI, the only identity valid across channels.
func (t TrackRef[ID]) SameAs(uri TrackURI) bool {
	return t.URI != "" && t.URI == uri
}

func (t TrackRef[ID]) ArtistNames() string {
	return strings.Join(t.Artists, ", ")
}

// Valid reports whether u has the spotify:track: form.
func (u TrackURI) Valid() bool {
	return strings.HasPrefix(string(u), trackURIPrefix) && len(u) > len(trackURIPrefix)
}

// TrackURIFor builds the URI used to start playback at a persisted track.
func TrackURIFor(id APITrackID) TrackURI {
	return TrackURI(trackURIPrefix + string(id))
}

// ContextURI returns "spotify:playlist:<id>".
func (p PlaylistID) ContextURI() string {
	return playlistURIPrefix + string(p)
}

// PlaylistIDFromContext extracts the playlist id from a playback context URI.
//
// Both "spotify:playlist:<id>" and the legacy "spotify:user:<user>:playlist:<id>" forms are accepted.
// Any other context (album, artist, show, none) reports false.
func PlaylistIDFromContext(contextURI string) (PlaylistID, bool) {
	if id, ok := strings.CutPrefix(contextURI, playlistURIPrefix); ok {
		if id == "" || strings.Contains(id, ":") {
			return "", false
		}
		return PlaylistID(id), true
	}

	parts := strings.Split(contextURI, ":")
	if len(parts) == 5 && parts[0] == "spotify" && parts[1] == "user" && parts[3] == "playlist" && parts[4] != "" {
		return PlaylistID(parts[4]), true
	}
	return "", false
}
