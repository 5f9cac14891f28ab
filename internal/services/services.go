// package services defines the remote collaborators of the player: token provider, playback source, catalog and position store client
package services

import (
	"context"

	"github.com/desertthunder/playhead/internal/models"
)

// TokenProvider supplies bearer tokens for the Web API and the browser SDK.
type TokenProvider interface {
	// Token returns the current access token, refreshing first when it is known to be expired.
	Token(ctx context.Context) (string, error)
	// Refresh forces a new access token. An error means the session is no longer authenticated.
	Refresh(ctx context.Context) (string, error)
}

// SnapshotFetcher is the pull channel into the remote playback session.
type SnapshotFetcher interface {
	// FetchSnapshot returns nil with no error when nothing is playing.
	FetchSnapshot(ctx context.Context) (*models.PlaybackSnapshot, error)
}

// Commander issues playback commands. Every method may fail with [shared.ErrCommandRejected].
type Commander interface {
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Seek(ctx context.Context, positionMs int) error
	SkipNext(ctx context.Context) error
	SkipPrevious(ctx context.Context) error
	SetVolume(ctx context.Context, percent int) error
}

// ContextPlayer starts playback of a playlist context, optionally at a given track.
type ContextPlayer interface {
	PlayContext(ctx context.Context, playlistID models.PlaylistID, offset models.TrackURI) error
}

// Catalog serves the pull-only lists that cannot be derived from playback state.
type Catalog interface {
	FetchQueue(ctx context.Context) ([]models.APITrack, error)
	FetchTracks(ctx context.Context, playlistID models.PlaylistID) ([]models.APITrack, error)
}

// PlaylistLister lists the playlists in the user's library.
type PlaylistLister interface {
	FetchPlaylists(ctx context.Context) ([]models.Playlist, error)
}

// PlaybackSource bundles everything the reconciler needs from the remote session.
type PlaybackSource interface {
	SnapshotFetcher
	Commander
	Catalog
}

// PushChannel delivers SDK state changes to registered listeners.
type PushChannel interface {
	// Subscribe registers fn and returns a func that removes it. The returned func is safe to call more than once.
	Subscribe(fn func(models.SdkPlaybackEvent)) (unsubscribe func())
}

// UserLookup resolves the id of the authenticated user.
type UserLookup interface {
	CurrentUserID(ctx context.Context) (string, error)
}
