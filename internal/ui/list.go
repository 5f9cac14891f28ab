package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/playhead/internal/models"
	"github.com/desertthunder/playhead/internal/progress"
)

var (
	_ list.Item = trackItem{}
	_ list.Item = playlistItem{}
)

// trackItem wraps [models.APITrack] to implement [list.Item].
type trackItem struct {
	track   models.APITrack
	current bool
}

func (i trackItem) FilterValue() string { return i.track.Name }

func (i trackItem) Title() string {
	if i.current {
		return "▶ " + i.track.Name
	}
	return i.track.Name
}

func (i trackItem) Description() string {
	desc := i.track.ArtistNames()
	if i.track.Album != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.track.Album)
	}
	return fmt.Sprintf("%s • %s", desc, progress.Format(i.track.DurationMs))
}

// playlistItem wraps [models.Playlist] to implement [list.Item].
type playlistItem struct {
	playlist models.Playlist
	current  bool
}

func (i playlistItem) FilterValue() string { return i.playlist.Name }

func (i playlistItem) Title() string {
	if i.current {
		return "▶ " + i.playlist.Name
	}
	return i.playlist.Name
}

func (i playlistItem) Description() string {
	if i.playlist.Owner == "" {
		return fmt.Sprintf("%d tracks", i.playlist.TrackCount)
	}
	return fmt.Sprintf("%s • %d tracks", i.playlist.Owner, i.playlist.TrackCount)
}

func playlistItems(playlists []models.Playlist, current models.PlaylistID) []list.Item {
	items := make([]list.Item, len(playlists))
	for i, p := range playlists {
		items[i] = playlistItem{playlist: p, current: current != "" && p.ID == current}
	}
	return items
}

func trackItems(tracks []models.APITrack, current models.TrackURI) []list.Item {
	items := make([]list.Item, len(tracks))
	for i, t := range tracks {
		items[i] = trackItem{track: t, current: t.SameAs(current)}
	}
	return items
}
