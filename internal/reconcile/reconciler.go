package reconcile

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playhead/internal/models"
	"github.com/desertthunder/playhead/internal/services"
	"github.com/desertthunder/playhead/internal/shared"
)

const (
	// DefaultToggleDebounce is how long a manual toggle shields the paused flag from snapshots.
	DefaultToggleDebounce = 500 * time.Millisecond

	defaultQueueSize  = 64
	sideEffectTimeout = 10 * time.Second
)

// Clock supplies the current time. Tests substitute a manual clock.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Options configures a [Reconciler]. Only Source is required.
type Options struct {
	Source services.PlaybackSource
	// Store receives positions at transition boundaries. Nil disables persistence.
	Store models.PositionStore
	// Push is subscribed to by [Reconciler.Run].
	Push           services.PushChannel
	Clock          Clock
	ToggleDebounce time.Duration
	QueueSize      int
	UserID         string
	Logger         *log.Logger
}

// Reconciler merges push events and pull snapshots into one [models.MergedPlaybackView].
type Reconciler struct {
	source   services.PlaybackSource
	store    models.PositionStore
	push     services.PushChannel
	clock    Clock
	debounce time.Duration
	logger   *log.Logger

	events    chan models.SdkPlaybackEvent
	done      chan struct{}
	closeOnce sync.Once

	// seq serializes transition handling so TransitionState is compared and updated by one event at a time.
	seq sync.Mutex
	wg  sync.WaitGroup

	mu         sync.Mutex
	view       models.MergedPlaybackView
	lastPush   *models.SdkPlaybackEvent
	snapshot   *models.PlaybackSnapshot
	transition models.TransitionState
	userID     string
	subs       map[int]chan models.MergedPlaybackView
	nextSub    int
}

// New creates a reconciler. It panics if opts.Source is nil.
func New(opts Options) *Reconciler {
	if opts.Source == nil {
		panic("reconcile: nil playback source")
	}
	if opts.Clock == nil {
		opts.Clock = systemClock{}
	}
	if opts.ToggleDebounce == 0 {
		opts.ToggleDebounce = DefaultToggleDebounce
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &Reconciler{
		source:   opts.Source,
		store:    opts.Store,
		push:     opts.Push,
		clock:    opts.Clock,
		debounce: opts.ToggleDebounce,
		logger:   shared.WithLogger(opts.Logger, "component", "reconciler"),
		events:   make(chan models.SdkPlaybackEvent, opts.QueueSize),
		done:     make(chan struct{}),
		userID:   opts.UserID,
		subs:     make(map[int]chan models.MergedPlaybackView),
		view:     models.MergedPlaybackView{Paused: true},
	}
}

// Run subscribes to the push channel and handles queued events in arrival order until ctx ends or Close is called.
// The subscription is always released before Run returns.
func (r *Reconciler) Run(ctx context.Context) error {
	if r.push != nil {
		unsubscribe := r.push.Subscribe(r.OnPushEvent)
		defer unsubscribe()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.done:
			return nil
		case ev := <-r.events:
			select {
			case <-r.done:
				return nil
			default:
			}
			if err := r.handleTransition(ctx, ev); err != nil {
				continue
			}
		}
	}
}

// OnPushEvent applies the optimistic part of a push event immediately and queues the rest for [Reconciler.Run].
//
// It blocks while the queue is full and returns without queueing once the reconciler is closed.
func (r *Reconciler) OnPushEvent(ev models.SdkPlaybackEvent) {
	r.applyPush(ev)

	select {
	case r.events <- ev:
	case <-r.done:
	}
}

// HandlePushEvent processes ev synchronously, for callers that do not use [Reconciler.Run].
//
// The returned error is the pull fetch failure that aborted transition detection, if any.
func (r *Reconciler) HandlePushEvent(ctx context.Context, ev models.SdkPlaybackEvent) error {
	r.applyPush(ev)
	return r.handleTransition(ctx, ev)
}

func (r *Reconciler) applyPush(ev models.SdkPlaybackEvent) {
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = r.clock.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastPush = &ev
	track := ev.Track
	r.view.SDKTrack = &track
	if r.view.Track != nil && !r.view.Track.SameAs(track.URI) {
		r.view.Track = nil
	}
	r.view.Paused = ev.Paused
	r.view.PositionMs = ev.PositionMs
	r.view.DurationMs = ev.DurationMs
	id, _ := ev.PlaylistID()
	r.setPlaylistLocked(id)
	r.view.UpdatedAt = ev.ReceivedAt
	r.publishLocked()
}

// handleTransition detects playlist and track changes for ev and fires the matching side effects.
func (r *Reconciler) handleTransition(ctx context.Context, ev models.SdkPlaybackEvent) error {
	r.seq.Lock()
	defer r.seq.Unlock()

	newPlaylistID, inPlaylist := ev.PlaylistID()

	var newTrackID models.APITrackID
	if inPlaylist {
		snap, err := r.source.FetchSnapshot(ctx)
		if err != nil {
			r.noteError(err)
			r.logger.Warn("snapshot fetch failed, skipping transition", "playlist", newPlaylistID, "err", err)
			return err
		}
		if snap != nil {
			r.applySnapshotTrack(snap)
			if snap.Track != nil {
				newTrackID = snap.Track.ID
			}
		}
	} else {
		r.mu.Lock()
		if r.snapshot != nil && r.snapshot.Track != nil {
			newTrackID = r.snapshot.Track.ID
		}
		r.mu.Unlock()
	}

	r.mu.Lock()
	prev := r.transition
	userID := r.userID
	r.mu.Unlock()

	playlistChanged := newPlaylistID != prev.PreviousPlaylistID
	trackChanged := newTrackID != prev.PreviousTrackID

	if playlistChanged {
		r.logger.Debug("playlist changed", "from", prev.PreviousPlaylistID, "to", newPlaylistID)
		if newPlaylistID != "" {
			r.refreshTracks(newPlaylistID)
		}
		if prev.PreviousTrackID != "" && prev.PreviousPlaylistID != "" && userID != "" {
			r.persist(userID, prev.PreviousPlaylistID, prev.PreviousTrackID)
		}
	} else if trackChanged && newPlaylistID != "" {
		switch {
		case newTrackID == "":
			r.logger.Warn("skipping position save, no Web API track id available",
				"playlist", newPlaylistID, "sdk_track", ev.Track.ID, "uri", ev.Track.URI)
		case userID == "":
			r.logger.Debug("skipping position save, user unknown", "playlist", newPlaylistID)
		default:
			r.logger.Debug("track changed", "from", prev.PreviousTrackID, "to", newTrackID)
			r.persist(userID, newPlaylistID, newTrackID)
		}
	}

	r.mu.Lock()
	r.transition.PreviousTrackID = newTrackID
	r.transition.PreviousPlaylistID = newPlaylistID
	r.mu.Unlock()

	if playlistChanged || trackChanged {
		r.refreshQueue()
	}
	return nil
}

// applySnapshotTrack adopts the pull channel's track identity without touching the paused flag.
func (r *Reconciler) applySnapshotTrack(snap *models.PlaybackSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.snapshot = snap
	r.view.Track = snap.Track
	r.view.Volume = snap.Volume
	r.view.NeedsLogin = false
	r.view.LastError = ""
	r.publishLocked()
}

// OnSnapshot applies a polled snapshot. TransitionState is left untouched; only the paused flag is reconciled.
func (r *Reconciler) OnSnapshot(snap *models.PlaybackSnapshot) {
	if snap == nil {
		r.logger.Debug("nothing playing")
		return
	}

	r.mu.Lock()
	r.snapshot = snap
	r.view.Track = snap.Track
	r.view.PositionMs = snap.PositionMs
	if snap.Track != nil {
		r.view.DurationMs = snap.Track.DurationMs
	}
	id, _ := snap.PlaylistID()
	r.setPlaylistLocked(id)
	r.view.Volume = snap.Volume
	r.view.NeedsLogin = false
	r.view.LastError = ""
	r.view.UpdatedAt = r.clock.Now()
	r.mu.Unlock()

	r.ReconcilePausedFlag(!snap.IsPlaying)
}

// setPlaylistLocked follows the playback context. Leaving a playlist clears it, and its track list goes with it.
func (r *Reconciler) setPlaylistLocked(id models.PlaylistID) {
	if r.view.PlaylistID != id {
		r.view.Tracks = nil
	}
	r.view.PlaylistID = id
}

// OnSnapshotError records a failed poll. The view keeps its last known good state.
func (r *Reconciler) OnSnapshotError(err error) {
	r.noteError(err)
}

// OnManualToggle flips the optimistic paused flag and starts the debounce window. It returns the new flag.
func (r *Reconciler) OnManualToggle() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.transition.LastManualToggleAt = r.clock.Now()
	r.view.Paused = !r.view.Paused
	r.publishLocked()
	return r.view.Paused
}

// ReconcilePausedFlag adopts snapshotPaused unless a manual toggle happened within the debounce window.
// It returns the resulting paused flag.
func (r *Reconciler) ReconcilePausedFlag(snapshotPaused bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	last := r.transition.LastManualToggleAt
	if last.IsZero() || r.clock.Now().Sub(last) > r.debounce {
		r.view.Paused = snapshotPaused
	}
	r.publishLocked()
	return r.view.Paused
}

func (r *Reconciler) persist(userID string, playlistID models.PlaylistID, trackID models.APITrackID) {
	if r.store == nil {
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()

		if _, err := r.store.Put(ctx, userID, playlistID, trackID); err != nil {
			r.logger.Error("failed to save playlist position", "playlist", playlistID, "track", trackID, "err", err)
			return
		}
		r.logger.Info("saved playlist position", "playlist", playlistID, "track", trackID)
	}()
}

func (r *Reconciler) refreshTracks(playlistID models.PlaylistID) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()

		tracks, err := r.source.FetchTracks(ctx, playlistID)
		if err != nil {
			r.logger.Error("failed to fetch playlist tracks", "playlist", playlistID, "err", err)
			r.noteError(err)
			return
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		if r.view.PlaylistID == playlistID {
			r.view.Tracks = tracks
			r.publishLocked()
		}
	}()
}

func (r *Reconciler) refreshQueue() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()

		queue, err := r.source.FetchQueue(ctx)
		if err != nil {
			r.logger.Error("failed to fetch queue", "err", err)
			r.noteError(err)
			return
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		r.view.Queue = queue
		r.publishLocked()
	}()
}

// noteError surfaces err on the view; authentication failures raise NeedsLogin.
func (r *Reconciler) noteError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.view.LastError = err.Error()
	if errors.Is(err, shared.ErrNotAuthenticated) {
		r.view.NeedsLogin = true
	}
	r.publishLocked()
}

// SetUserID sets the user whose positions are saved. An empty id disables persistence.
func (r *Reconciler) SetUserID(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.userID = id
}

func (r *Reconciler) UserID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.userID
}

// View returns a copy of the current merged view.
func (r *Reconciler) View() models.MergedPlaybackView {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.view
}

// Transition returns a copy of the transition state.
func (r *Reconciler) Transition() models.TransitionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transition
}

// LastPushEvent returns the most recent push event, or nil before the first one.
func (r *Reconciler) LastPushEvent() *models.SdkPlaybackEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastPush == nil {
		return nil
	}
	ev := *r.lastPush
	return &ev
}

// Subscribe returns a channel that always holds the latest view. Slow readers miss intermediate views.
func (r *Reconciler) Subscribe() (<-chan models.MergedPlaybackView, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch := make(chan models.MergedPlaybackView, 1)
	ch <- r.view
	select {
	case <-r.done:
		close(ch)
		return ch, func() {}
	default:
	}

	id := r.nextSub
	r.nextSub++
	r.subs[id] = ch

	return ch, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if c, ok := r.subs[id]; ok {
			delete(r.subs, id)
			close(c)
		}
	}
}

func (r *Reconciler) publishLocked() {
	for _, ch := range r.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- r.view:
		default:
		}
	}
}

// Wait blocks until every in-flight side effect has finished.
func (r *Reconciler) Wait() {
	r.wg.Wait()
}

// Close stops [Reconciler.Run], waits for side effects and closes subscriber channels.
func (r *Reconciler) Close() error {
	r.closeOnce.Do(func() {
		close(r.done)
	})
	r.seq.Lock()
	r.seq.Unlock()
	r.wg.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, ch := range r.subs {
		delete(r.subs, id)
		close(ch)
	}
	return nil
}
