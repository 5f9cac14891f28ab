package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlaylistIDFromContext(t *testing.T) {
	tc := []struct {
		name   string
		uri    string
		want   PlaylistID
		wantOK bool
	}{
		{"playlist", "spotify:playlist:37i9dQZF1DXcBWIGoYBM5M", "37i9dQZF1DXcBWIGoYBM5M", true},
		{"legacy user playlist", "spotify:user:someone:playlist:abc", "abc", true},
		{"album", "spotify:album:xyz", "", false},
		{"empty", "", "", false},
		{"missing id", "spotify:playlist:", "", false},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := PlaylistIDFromContext(tt.uri)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTrackRef(t *testing.T) {
	sdk := SDKTrack{ID: "sdk-1", URI: "spotify:track:abc", Artists: []string{"A", "B"}}
	api := APITrack{ID: "api-1", URI: "spotify:track:abc"}

	assert.True(t, sdk.SameAs(api.URI), "tracks with equal URIs are the same logical track")
	assert.False(t, APITrack{}.SameAs(""), "an empty URI never matches")
	assert.Equal(t, "A, B", sdk.ArtistNames())
	assert.True(t, api.HasID())
	assert.False(t, APITrack{URI: "spotify:track:abc"}.HasID())
}

func TestTrackURI(t *testing.T) {
	assert.Equal(t, TrackURI("spotify:track:api-1"), TrackURIFor("api-1"))
	assert.True(t, TrackURI("spotify:track:x").Valid())
	assert.False(t, TrackURI("spotify:track:").Valid())
	assert.False(t, TrackURI("spotify:episode:x").Valid())
	assert.Equal(t, "spotify:playlist:p1", PlaylistID("p1").ContextURI())
}

func TestPosition(t *testing.T) {
	t.Run("Validate", func(t *testing.T) {
		assert.NoError(t, Position{UserID: "u", PlaylistID: "p", TrackID: "t"}.Validate())
		assert.Error(t, Position{PlaylistID: "p", TrackID: "t"}.Validate())
		assert.Error(t, Position{UserID: "u", TrackID: "t"}.Validate())
		assert.Error(t, Position{UserID: "u", PlaylistID: "p"}.Validate())
	})

	t.Run("TrackURI", func(t *testing.T) {
		assert.Equal(t, TrackURI("spotify:track:t1"), Position{TrackID: "t1"}.TrackURI())
	})
}

func TestMergedPlaybackViewTitle(t *testing.T) {
	t.Run("prefers pull channel track", func(t *testing.T) {
		v := MergedPlaybackView{
			Track:    &APITrack{Name: "api name", Artists: []string{"X"}},
			SDKTrack: &SDKTrack{Name: "sdk name"},
		}
		name, artists := v.Title()
		assert.Equal(t, "api name", name)
		assert.Equal(t, "X", artists)
	})

	t.Run("falls back to push channel track", func(t *testing.T) {
		v := MergedPlaybackView{SDKTrack: &SDKTrack{Name: "sdk name"}}
		name, _ := v.Title()
		assert.Equal(t, "sdk name", name)
	})

	t.Run("empty", func(t *testing.T) {
		name, artists := MergedPlaybackView{}.Title()
		assert.Empty(t, name)
		assert.Empty(t, artists)
	})
}
