// Spotify Web API implementation of [PlaybackSource]
package services

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playhead/internal/models"
	"github.com/desertthunder/playhead/internal/shared"
	"github.com/zmb3/spotify/v2"
)

const defaultPageSize = 100

var (
	_ PlaybackSource = (*SpotifyService)(nil)
	_ ContextPlayer  = (*SpotifyService)(nil)
	_ UserLookup     = (*SpotifyService)(nil)
	_ PlaylistLister = (*SpotifyService)(nil)
)

// SpotifyOpts configures a [SpotifyService].
type SpotifyOpts struct {
	Tokens    TokenProvider
	BaseURL   string            // overrides https://api.spotify.com/v1/ when set
	Transport http.RoundTripper // base transport under the auth layer
	RateLimit int               // requests per second, 0 disables limiting
	PageSize  int
	Logger    *log.Logger
}

// SpotifyService implements [PlaybackSource] with the zmb3 Web API client.
type SpotifyService struct {
	client   *spotify.Client
	logger   *log.Logger
	pageSize int

	mu       sync.RWMutex
	deviceID string
}

// NewSpotifyService creates a service whose requests are authorized by opts.Tokens.
func NewSpotifyService(opts SpotifyOpts) (*SpotifyService, error) {
	if opts.Tokens == nil {
		return nil, fmt.Errorf("%w: token provider is required", shared.ErrMissingCredentials)
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.PageSize <= 0 || opts.PageSize > defaultPageSize {
		opts.PageSize = defaultPageSize
	}

	httpClient := &http.Client{
		Transport: newAuthTransport(opts.Transport, opts.Tokens, opts.RateLimit, opts.Logger),
		Timeout:   15 * time.Second,
	}

	clientOpts := []spotify.ClientOption{spotify.WithRetry(true)}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, spotify.WithBaseURL(opts.BaseURL))
	}

	return &SpotifyService{
		client:   spotify.New(httpClient, clientOpts...),
		logger:   shared.WithLogger(opts.Logger, "component", "spotify"),
		pageSize: opts.PageSize,
	}, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// SetDeviceID targets commands at the SDK device announced by the bridge page.
func (s *SpotifyService) SetDeviceID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deviceID = id
}

func (s *SpotifyService) DeviceID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deviceID
}

func (s *SpotifyService) playOptions() *spotify.PlayOptions {
	opts := &spotify.PlayOptions{}
	if id := s.DeviceID(); id != "" {
		device := spotify.ID(id)
		opts.DeviceID = &device
	}
	return opts
}

// FetchSnapshot reads GET /me/player. It returns nil when no track is loaded.
func (s *SpotifyService) FetchSnapshot(ctx context.Context) (*models.PlaybackSnapshot, error) {
	state, err := s.client.PlayerState(ctx)
	if err != nil {
		return nil, readError("fetch playback state", err)
	}
	if state == nil || state.Item == nil {
		return nil, nil
	}

	track := toAPITrack(state.Item)
	return &models.PlaybackSnapshot{
		IsPlaying:  state.Playing,
		PositionMs: max(int(state.Progress), 0),
		Track:      &track,
		ContextURI: string(state.PlaybackContext.URI),
		DeviceID:   string(state.Device.ID),
		Volume:     int(state.Device.Volume),
		FetchedAt:  time.Now(),
	}, nil
}

func (s *SpotifyService) Play(ctx context.Context) error {
	return commandError("play", s.client.PlayOpt(ctx, s.playOptions()))
}

func (s *SpotifyService) Pause(ctx context.Context) error {
	return commandError("pause", s.client.PauseOpt(ctx, s.playOptions()))
}

func (s *SpotifyService) Seek(ctx context.Context, positionMs int) error {
	if positionMs < 0 {
		return fmt.Errorf("%w: seek position %d", shared.ErrInvalidArgument, positionMs)
	}
	return commandError("seek", s.client.SeekOpt(ctx, positionMs, s.playOptions()))
}

func (s *SpotifyService) SkipNext(ctx context.Context) error {
	return commandError("next", s.client.NextOpt(ctx, s.playOptions()))
}

func (s *SpotifyService) SkipPrevious(ctx context.Context) error {
	return commandError("previous", s.client.PreviousOpt(ctx, s.playOptions()))
}

func (s *SpotifyService) SetVolume(ctx context.Context, percent int) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("%w: volume %d outside 0..100", shared.ErrInvalidArgument, percent)
	}
	return commandError("volume", s.client.VolumeOpt(ctx, percent, s.playOptions()))
}

// PlayContext starts the playlist, at offset when it is a valid track URI or from the top otherwise.
func (s *SpotifyService) PlayContext(ctx context.Context, playlistID models.PlaylistID, offset models.TrackURI) error {
	if playlistID == "" {
		return fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}

	opts := s.playOptions()
	contextURI := spotify.URI(playlistID.ContextURI())
	opts.PlaybackContext = &contextURI
	if offset.Valid() {
		opts.PlaybackOffset = &spotify.PlaybackOffset{URI: spotify.URI(offset)}
	}

	s.logger.Debug("starting playlist context", "playlist", playlistID, "offset", offset)
	return commandError("play context", s.client.PlayOpt(ctx, opts))
}

// FetchQueue returns the upcoming tracks from GET /me/player/queue.
func (s *SpotifyService) FetchQueue(ctx context.Context) ([]models.APITrack, error) {
	queue, err := s.client.GetQueue(ctx)
	if err != nil {
		return nil, readError("fetch queue", err)
	}

	tracks := make([]models.APITrack, 0, len(queue.Items))
	for i := range queue.Items {
		tracks = append(tracks, toAPITrack(&queue.Items[i]))
	}
	return tracks, nil
}

// TrackPages yields playlist tracks one page at a time by offset.
//
// The sequence is finite and restartable; iteration stops at the first error or when the consumer breaks.
func (s *SpotifyService) TrackPages(ctx context.Context, playlistID models.PlaylistID) iter.Seq2[[]models.APITrack, error] {
	return func(yield func([]models.APITrack, error) bool) {
		offset := 0
		for {
			page, err := s.client.GetPlaylistItems(ctx, spotify.ID(playlistID), spotify.Limit(s.pageSize), spotify.Offset(offset))
			if err != nil {
				yield(nil, readError(fmt.Sprintf("fetch playlist items at offset %d", offset), err))
				return
			}

			tracks := make([]models.APITrack, 0, len(page.Items))
			for _, item := range page.Items {
				if item.Track.Track == nil {
					continue
				}
				tracks = append(tracks, toAPITrack(item.Track.Track))
			}

			if !yield(tracks, nil) {
				return
			}

			offset += len(page.Items)
			if len(page.Items) == 0 || offset >= int(page.Total) {
				return
			}
		}
	}
}

// FetchTracks concatenates every page of the playlist in order.
func (s *SpotifyService) FetchTracks(ctx context.Context, playlistID models.PlaylistID) ([]models.APITrack, error) {
	var all []models.APITrack
	for page, err := range s.TrackPages(ctx, playlistID) {
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
	}

	s.logger.Debug("fetched playlist tracks", "playlist", playlistID, "count", len(all))
	return all, nil
}

// PlaylistPages yields the user's playlists one page at a time by offset, like [SpotifyService.TrackPages].
func (s *SpotifyService) PlaylistPages(ctx context.Context) iter.Seq2[[]models.Playlist, error] {
	return func(yield func([]models.Playlist, error) bool) {
		offset := 0
		for {
			page, err := s.client.CurrentUsersPlaylists(ctx, spotify.Limit(s.pageSize), spotify.Offset(offset))
			if err != nil {
				yield(nil, readError(fmt.Sprintf("fetch playlists at offset %d", offset), err))
				return
			}

			playlists := make([]models.Playlist, 0, len(page.Playlists))
			for _, p := range page.Playlists {
				playlists = append(playlists, models.Playlist{
					ID:         models.PlaylistID(p.ID),
					Name:       p.Name,
					Owner:      p.Owner.DisplayName,
					TrackCount: int(p.Tracks.Total),
				})
			}

			if !yield(playlists, nil) {
				return
			}

			offset += len(page.Playlists)
			if len(page.Playlists) == 0 || offset >= int(page.Total) {
				return
			}
		}
	}
}

// FetchPlaylists returns every playlist in the user's library in API order.
func (s *SpotifyService) FetchPlaylists(ctx context.Context) ([]models.Playlist, error) {
	var all []models.Playlist
	for page, err := range s.PlaylistPages(ctx) {
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
	}

	s.logger.Debug("fetched playlists", "count", len(all))
	return all, nil
}

// CurrentUserID returns the profile id used to key saved positions.
func (s *SpotifyService) CurrentUserID(ctx context.Context) (string, error) {
	user, err := s.client.CurrentUser(ctx)
	if err != nil {
		return "", readError("fetch current user", err)
	}
	return user.ID, nil
}

func toAPITrack(t *spotify.FullTrack) models.APITrack {
	artists := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		artists = append(artists, a.Name)
	}
	return models.APITrack{
		ID:         models.APITrackID(t.ID),
		URI:        models.TrackURI(t.URI),
		Name:       t.Name,
		DurationMs: int(t.Duration),
		Album:      t.Album.Name,
		Artists:    artists,
	}
}

func apiStatus(err error) int {
	var se spotify.Error
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}

func readError(op string, err error) error {
	if errors.Is(err, shared.ErrNotAuthenticated) {
		return err
	}
	if apiStatus(err) == http.StatusUnauthorized {
		return fmt.Errorf("%w: %s: %v", shared.ErrNotAuthenticated, op, err)
	}
	return fmt.Errorf("%w: %s: %v", shared.ErrAPIRequest, op, err)
}

func commandError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, shared.ErrNotAuthenticated) {
		return err
	}

	switch apiStatus(err) {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s: %v", shared.ErrNotAuthenticated, op, err)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %w: %s: %v", shared.ErrCommandRejected, shared.ErrNoActiveDevice, op, err)
	default:
		return fmt.Errorf("%w: %s: %v", shared.ErrCommandRejected, op, err)
	}
}
