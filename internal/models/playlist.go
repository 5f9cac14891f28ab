package models

// Playlist is a playlist in the user's library as listed by GET /me/playlists.
type Playlist struct {
	ID         PlaylistID `json:"id"`
	Name       string     `json:"name"`
	Owner      string     `json:"owner,omitempty"`
	TrackCount int        `json:"trackCount"`
}
