// package tasks runs the background and multi-step player operations: snapshot polling and playlist resume.
package tasks

import (
	"context"
	"fmt"
	"iter"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playhead/internal/models"
	"github.com/desertthunder/playhead/internal/services"
	"github.com/desertthunder/playhead/internal/shared"
)

// PausedSetter receives the optimistic paused flag after playback is started.
type PausedSetter interface {
	SetPausedOptimistic(paused bool)
}

// TrackPager is implemented by catalogs that can stream a playlist page by page.
type TrackPager interface {
	TrackPages(ctx context.Context, playlistID models.PlaylistID) iter.Seq2[[]models.APITrack, error]
}

// ResumeResult describes how a playlist was started.
type ResumeResult struct {
	PlaylistID models.PlaylistID
	Position   *models.Position // saved position used, nil when started from the top
	Offset     models.TrackURI  // empty when started from the top
	Tracks     []models.APITrack
}

// FromStart reports whether playback began at the first track.
func (r ResumeResult) FromStart() bool {
	return r.Offset == ""
}

// Resumer starts a playlist at the track saved for the user.
type Resumer struct {
	store   models.PositionStore
	player  services.ContextPlayer
	catalog services.Catalog
	paused  PausedSetter
	logger  *log.Logger
}

// NewResumer creates a Resumer. catalog and paused may be nil.
func NewResumer(store models.PositionStore, player services.ContextPlayer, catalog services.Catalog, paused PausedSetter, logger *log.Logger) *Resumer {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Resumer{
		store:   store,
		player:  player,
		catalog: catalog,
		paused:  paused,
		logger:  shared.WithLogger(logger, "component", "resumer"),
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Resume plays playlistID from the beginning of its saved track, or from its first track when nothing is saved.
//
// A failed position lookup is logged and treated as no saved position. Only the play command failing is returned.
func (r *Resumer) Resume(ctx context.Context, progress chan<- ProgressUpdate, userID string, playlistID models.PlaylistID) (*ResumeResult, error) {
	if r.player == nil {
		return nil, fmt.Errorf("%w: playback source not initialized", shared.ErrServiceUnavailable)
	}
	if playlistID == "" {
		return nil, fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}

	result := &ResumeResult{PlaylistID: playlistID}

	sendProgress(progress, lookupPositionUpdate(playlistID))
	if r.store != nil && userID != "" {
		pos, err := r.store.Get(ctx, userID, playlistID)
		if err != nil {
			r.logger.Error("failed to load playlist position", "playlist", playlistID, "err", err)
		} else if pos != nil {
			result.Position = pos
			result.Offset = pos.TrackURI()
		}
	}
	sendProgress(progress, foundPositionUpdate(result.Position))

	sendProgress(progress, startPlaybackUpdate(playlistID, result.Offset))
	if err := r.player.PlayContext(ctx, playlistID, result.Offset); err != nil {
		return nil, fmt.Errorf("failed to start playlist %s: %w", playlistID, err)
	}
	if r.paused != nil {
		r.paused.SetPausedOptimistic(false)
	}

	tracks, err := r.fetchTracks(ctx, progress, playlistID)
	if err != nil {
		r.logger.Error("failed to fetch playlist tracks", "playlist", playlistID, "err", err)
	}
	result.Tracks = tracks

	r.logger.Info("playlist started", "playlist", playlistID, "offset", result.Offset)
	return result, nil
}

func (r *Resumer) fetchTracks(ctx context.Context, progress chan<- ProgressUpdate, playlistID models.PlaylistID) ([]models.APITrack, error) {
	if r.catalog == nil {
		return nil, nil
	}

	pager, ok := r.catalog.(TrackPager)
	if !ok {
		tracks, err := r.catalog.FetchTracks(ctx, playlistID)
		sendProgress(progress, tracksPageUpdate(1, len(tracks)))
		return tracks, err
	}

	var all []models.APITrack
	page := 0
	for tracks, err := range pager.TrackPages(ctx, playlistID) {
		if err != nil {
			return all, err
		}
		page++
		all = append(all, tracks...)
		sendProgress(progress, tracksPageUpdate(page, len(all)))
	}
	return all, nil
}
