package reconcile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/desertthunder/playhead/internal/models"
	"github.com/desertthunder/playhead/internal/shared"
	tu "github.com/desertthunder/playhead/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	r        *Reconciler
	playback *tu.Playback
	store    *tu.PositionStore
	clock    *tu.Clock
	push     *tu.PushChannel
	logs     *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		playback: tu.NewPlayback(),
		store:    tu.NewPositionStore(),
		clock:    tu.NewClock(time.Time{}),
		push:     tu.NewPushChannel(),
		logs:     &bytes.Buffer{},
	}
	h.r = New(Options{
		Source: h.playback,
		Store:  h.store,
		Push:   h.push,
		Clock:  h.clock,
		UserID: "user-1",
		Logger: shared.NewLogger(h.logs),
	})
	t.Cleanup(func() { h.r.Close() })
	return h
}

func apiTrack(id string) *models.APITrack {
	return &models.APITrack{
		ID:         models.APITrackID(id),
		URI:        models.TrackURI("spotify:track:" + id),
		Name:       "Track " + id,
		DurationMs: 180000,
	}
}

func snapshotFor(playlist, trackID string) *models.PlaybackSnapshot {
	return &models.PlaybackSnapshot{
		IsPlaying:  true,
		Track:      apiTrack(trackID),
		ContextURI: "spotify:playlist:" + playlist,
	}
}

func pushEvent(playlist, sdkID string) models.SdkPlaybackEvent {
	ev := models.SdkPlaybackEvent{
		PositionMs: 1000,
		DurationMs: 180000,
		Track:      models.SDKTrack{ID: models.SDKTrackID(sdkID), Name: "Track " + sdkID},
	}
	if playlist != "" {
		ev.ContextURI = "spotify:playlist:" + playlist
	}
	return ev
}

// play sets the pull snapshot and delivers a push event for the same context.
func (h *harness) play(t *testing.T, playlist, apiID, sdkID string) {
	t.Helper()
	h.playback.SetSnapshot(snapshotFor(playlist, apiID))
	require.NoError(t, h.r.HandlePushEvent(context.Background(), pushEvent(playlist, sdkID)))
	h.r.Wait()
}

func TestReconcilerTransitions(t *testing.T) {
	t.Run("first playlist entry persists nothing", func(t *testing.T) {
		h := newHarness(t)
		h.play(t, "pl1", "a1", "s1")

		assert.Empty(t, h.store.Puts())
		assert.Equal(t, models.TransitionState{PreviousTrackID: "a1", PreviousPlaylistID: "pl1"}, h.r.Transition())
		assert.Equal(t, []models.PlaylistID{"pl1"}, h.playback.TrackCalls())
		assert.Equal(t, 1, h.playback.QueueCalls())
	})

	t.Run("track change within playlist saves the new track", func(t *testing.T) {
		h := newHarness(t)
		h.play(t, "pl1", "a1", "s1")
		h.play(t, "pl1", "a2", "s2")

		puts := h.store.Puts()
		require.Len(t, puts, 1)
		assert.Equal(t, models.PlaylistID("pl1"), puts[0].PlaylistID)
		assert.Equal(t, models.APITrackID("a2"), puts[0].TrackID)
		assert.Equal(t, "user-1", puts[0].UserID)
		assert.Equal(t, 2, h.playback.QueueCalls())
	})

	t.Run("playlist change saves the playlist being left", func(t *testing.T) {
		h := newHarness(t)
		h.play(t, "pl1", "a1", "s1")
		h.play(t, "pl2", "b1", "s9")

		puts := h.store.Puts()
		require.Len(t, puts, 1)
		assert.Equal(t, models.PlaylistID("pl1"), puts[0].PlaylistID)
		assert.Equal(t, models.APITrackID("a1"), puts[0].TrackID)
		assert.Equal(t, []models.PlaylistID{"pl1", "pl2"}, h.playback.TrackCalls())
		assert.Equal(t, models.PlaylistID("pl2"), h.r.Transition().PreviousPlaylistID)
	})

	t.Run("repeated identical events persist at most once", func(t *testing.T) {
		h := newHarness(t)
		h.play(t, "pl1", "a1", "s1")
		for range 5 {
			h.play(t, "pl1", "a2", "s2")
		}

		assert.Len(t, h.store.Puts(), 1)
		assert.Equal(t, 2, h.playback.QueueCalls())
	})

	t.Run("persisted id comes from the pull channel", func(t *testing.T) {
		h := newHarness(t)
		h.play(t, "pl1", "api-0", "sdk-0")
		h.play(t, "pl1", "api-1", "sdk-1")

		puts := h.store.Puts()
		require.Len(t, puts, 1)
		assert.Equal(t, models.APITrackID("api-1"), puts[0].TrackID)
		for _, p := range puts {
			assert.NotEqual(t, "sdk-1", string(p.TrackID))
		}
	})

	t.Run("missing snapshot skips the save with a warning", func(t *testing.T) {
		h := newHarness(t)
		h.play(t, "pl1", "a1", "s1")

		h.playback.SetSnapshot(nil)
		require.NoError(t, h.r.HandlePushEvent(context.Background(), pushEvent("pl1", "s2")))
		h.r.Wait()

		assert.Empty(t, h.store.Puts())
		assert.Contains(t, h.logs.String(), "skipping position save")
	})

	t.Run("fetch failure aborts transition detection", func(t *testing.T) {
		h := newHarness(t)
		h.play(t, "pl1", "a1", "s1")

		h.playback.SetSnapshotErr(fmt.Errorf("%w: boom", shared.ErrAPIRequest))
		err := h.r.HandlePushEvent(context.Background(), pushEvent("pl2", "s2"))
		h.r.Wait()

		require.ErrorIs(t, err, shared.ErrAPIRequest)
		assert.Empty(t, h.store.Puts())
		assert.Equal(t, models.TransitionState{PreviousTrackID: "a1", PreviousPlaylistID: "pl1"}, h.r.Transition())
		assert.NotEmpty(t, h.r.View().LastError)
		assert.Contains(t, h.logs.String(), "snapshot fetch failed")
	})

	t.Run("authentication failure raises needs login", func(t *testing.T) {
		h := newHarness(t)
		h.playback.SetSnapshotErr(shared.ErrNotAuthenticated)

		err := h.r.HandlePushEvent(context.Background(), pushEvent("pl1", "s1"))
		require.ErrorIs(t, err, shared.ErrNotAuthenticated)
		assert.True(t, h.r.View().NeedsLogin)
	})

	t.Run("unknown user skips persistence", func(t *testing.T) {
		h := newHarness(t)
		h.r.SetUserID("")
		h.play(t, "pl1", "a1", "s1")
		h.play(t, "pl2", "b1", "s2")

		assert.Empty(t, h.store.Puts())
	})

	t.Run("non playlist context does not fetch", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.r.HandlePushEvent(context.Background(), pushEvent("", "s1")))
		h.r.Wait()

		assert.Zero(t, h.playback.Fetches())
		assert.Empty(t, h.playback.TrackCalls())
	})

	t.Run("leaving a playlist for an album saves the playlist", func(t *testing.T) {
		h := newHarness(t)
		h.play(t, "pl1", "a1", "s1")

		ev := pushEvent("", "s2")
		ev.ContextURI = "spotify:album:xyz"
		require.NoError(t, h.r.HandlePushEvent(context.Background(), ev))
		h.r.Wait()

		puts := h.store.Puts()
		require.Len(t, puts, 1)
		assert.Equal(t, models.PlaylistID("pl1"), puts[0].PlaylistID)
		assert.Equal(t, models.PlaylistID(""), h.r.Transition().PreviousPlaylistID)
	})

	t.Run("store failure is logged, not returned", func(t *testing.T) {
		h := newHarness(t)
		h.store.SetPutErr(errors.New("store down"))
		h.play(t, "pl1", "a1", "s1")
		h.play(t, "pl1", "a2", "s2")

		assert.Len(t, h.store.Puts(), 1)
		assert.Contains(t, h.logs.String(), "failed to save playlist position")
	})
}

func TestReconcilerPushApply(t *testing.T) {
	t.Run("push sets paused and position immediately", func(t *testing.T) {
		h := newHarness(t)
		ev := pushEvent("pl1", "s1")
		ev.Paused = true
		ev.PositionMs = 42000

		h.r.OnPushEvent(ev)
		v := h.r.View()
		assert.True(t, v.Paused)
		assert.Equal(t, 42000, v.PositionMs)
		assert.Equal(t, models.PlaylistID("pl1"), v.PlaylistID)
		require.NotNil(t, v.SDKTrack)
		assert.Equal(t, models.SDKTrackID("s1"), v.SDKTrack.ID)
		require.NotNil(t, h.r.LastPushEvent())
	})

	t.Run("snapshot supplies the track identity", func(t *testing.T) {
		h := newHarness(t)
		h.play(t, "pl1", "api-1", "sdk-1")

		v := h.r.View()
		require.NotNil(t, v.Track)
		assert.Equal(t, models.APITrackID("api-1"), v.Track.ID)
		name, _ := v.Title()
		assert.Equal(t, "Track api-1", name)
	})

	t.Run("leaving a playlist clears it from the view", func(t *testing.T) {
		h := newHarness(t)
		h.play(t, "pl1", "a1", "s1")
		require.NotNil(t, h.r.View().Track)

		ev := pushEvent("", "s2")
		ev.ContextURI = "spotify:album:xyz"
		ev.Track.URI = "spotify:track:other"
		h.r.OnPushEvent(ev)

		v := h.r.View()
		assert.Empty(t, v.PlaylistID)
		assert.Nil(t, v.Track)
		name, _ := v.Title()
		assert.Equal(t, "Track s2", name)
	})

	t.Run("same track keeps the pulled identity", func(t *testing.T) {
		h := newHarness(t)
		h.play(t, "pl1", "a1", "s1")

		ev := pushEvent("pl1", "s1")
		ev.Track.URI = "spotify:track:a1"
		ev.Paused = true
		h.r.OnPushEvent(ev)

		v := h.r.View()
		require.NotNil(t, v.Track)
		assert.Equal(t, models.APITrackID("a1"), v.Track.ID)
		assert.Equal(t, models.PlaylistID("pl1"), v.PlaylistID)
	})

	t.Run("switching playlists drops the old track list", func(t *testing.T) {
		h := newHarness(t)
		h.playback.SetTracks("pl1", []models.APITrack{*apiTrack("a1"), *apiTrack("a2")})
		h.play(t, "pl1", "a1", "s1")
		require.Len(t, h.r.View().Tracks, 2)

		h.r.OnSnapshot(snapshotFor("pl2", "b1"))
		v := h.r.View()
		assert.Equal(t, models.PlaylistID("pl2"), v.PlaylistID)
		assert.Empty(t, v.Tracks)
	})
}

func TestReconcilerRun(t *testing.T) {
	t.Run("processes push events in order and unsubscribes", func(t *testing.T) {
		h := newHarness(t)
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- h.r.Run(ctx) }()

		require.Eventually(t, func() bool { return h.push.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

		h.playback.SetSnapshot(snapshotFor("pl1", "a1"))
		h.push.Emit(pushEvent("pl1", "s1"))
		require.Eventually(t, func() bool {
			return h.r.Transition().PreviousTrackID == "a1"
		}, time.Second, 5*time.Millisecond)

		h.playback.SetSnapshot(snapshotFor("pl1", "a2"))
		h.push.Emit(pushEvent("pl1", "s2"))
		require.Eventually(t, func() bool { return len(h.store.Puts()) == 1 }, time.Second, 5*time.Millisecond)

		cancel()
		require.ErrorIs(t, <-done, context.Canceled)
		assert.Zero(t, h.push.Subscribers())
	})

	t.Run("events arriving during a fetch are serialized", func(t *testing.T) {
		h := newHarness(t)
		h.playback.Gate = make(chan struct{})
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go h.r.Run(ctx)
		require.Eventually(t, func() bool { return h.push.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

		h.playback.SetSnapshot(snapshotFor("pl1", "a1"))
		h.push.Emit(pushEvent("pl1", "s1"))
		h.push.Emit(pushEvent("pl1", "s1"))
		h.push.Emit(pushEvent("pl1", "s1"))

		for range 3 {
			h.playback.Gate <- struct{}{}
		}
		require.Eventually(t, func() bool { return h.playback.Fetches() == 3 }, time.Second, 5*time.Millisecond)
		require.Eventually(t, func() bool { return h.playback.QueueCalls() == 1 }, time.Second, 5*time.Millisecond)

		assert.Empty(t, h.store.Puts())
		assert.Equal(t, models.APITrackID("a1"), h.r.Transition().PreviousTrackID)
	})

	t.Run("a failed fetch does not stop run", func(t *testing.T) {
		h := newHarness(t)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go h.r.Run(ctx)
		require.Eventually(t, func() bool { return h.push.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

		h.playback.SetSnapshotErr(tu.ErrFake)
		h.push.Emit(pushEvent("pl1", "s1"))
		require.Eventually(t, func() bool { return h.playback.Fetches() == 1 }, time.Second, 5*time.Millisecond)

		h.playback.SetSnapshot(snapshotFor("pl1", "a1"))
		h.push.Emit(pushEvent("pl1", "s1"))
		require.Eventually(t, func() bool {
			return h.r.Transition().PreviousTrackID == "a1"
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("close stops run", func(t *testing.T) {
		h := newHarness(t)
		done := make(chan error, 1)
		go func() { done <- h.r.Run(context.Background()) }()
		require.Eventually(t, func() bool { return h.push.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

		require.NoError(t, h.r.Close())
		require.NoError(t, <-done)
		assert.Zero(t, h.push.Subscribers())
	})
}

func TestReconcilerPausedFlag(t *testing.T) {
	t.Run("snapshot within debounce window is ignored", func(t *testing.T) {
		h := newHarness(t)
		h.r.ReconcilePausedFlag(false)

		paused := h.r.OnManualToggle()
		require.True(t, paused)

		h.clock.Advance(300 * time.Millisecond)
		assert.True(t, h.r.ReconcilePausedFlag(false))
		assert.True(t, h.r.View().Paused)
	})

	t.Run("snapshot after debounce window wins", func(t *testing.T) {
		h := newHarness(t)
		h.r.ReconcilePausedFlag(false)
		h.r.OnManualToggle()

		h.clock.Advance(501 * time.Millisecond)
		assert.False(t, h.r.ReconcilePausedFlag(false))
	})

	t.Run("exactly at the window edge keeps the optimistic flag", func(t *testing.T) {
		h := newHarness(t)
		h.r.ReconcilePausedFlag(false)
		h.r.OnManualToggle()

		h.clock.Advance(DefaultToggleDebounce)
		assert.True(t, h.r.ReconcilePausedFlag(false))
	})

	t.Run("no toggle means snapshots always apply", func(t *testing.T) {
		h := newHarness(t)
		assert.False(t, h.r.ReconcilePausedFlag(false))
		assert.True(t, h.r.ReconcilePausedFlag(true))
	})

	t.Run("configurable window", func(t *testing.T) {
		clock := tu.NewClock(time.Time{})
		r := New(Options{Source: tu.NewPlayback(), Clock: clock, ToggleDebounce: 2 * time.Second})
		defer r.Close()

		r.ReconcilePausedFlag(false)
		r.OnManualToggle()
		clock.Advance(time.Second)
		assert.True(t, r.ReconcilePausedFlag(false))
		clock.Advance(1500 * time.Millisecond)
		assert.False(t, r.ReconcilePausedFlag(false))
	})

	t.Run("OnSnapshot leaves transition state alone", func(t *testing.T) {
		h := newHarness(t)
		h.r.OnSnapshot(snapshotFor("pl1", "a1"))

		assert.Equal(t, models.TransitionState{}, h.r.Transition())
		v := h.r.View()
		assert.False(t, v.Paused)
		assert.Equal(t, models.PlaylistID("pl1"), v.PlaylistID)
		assert.Equal(t, 180000, v.DurationMs)
	})

	t.Run("OnSnapshot respects the debounce window", func(t *testing.T) {
		h := newHarness(t)
		h.r.OnSnapshot(snapshotFor("pl1", "a1"))
		h.r.OnManualToggle()

		h.clock.Advance(100 * time.Millisecond)
		h.r.OnSnapshot(snapshotFor("pl1", "a1"))
		assert.True(t, h.r.View().Paused)
	})
}

func TestReconcilerSubscribe(t *testing.T) {
	h := newHarness(t)
	views, unsubscribe := h.r.Subscribe()

	initial := <-views
	assert.True(t, initial.Paused)

	h.r.OnSnapshot(snapshotFor("pl1", "a1"))
	h.r.SetPausedOptimistic(true)

	latest := <-views
	assert.True(t, latest.Paused)
	require.NotNil(t, latest.Track)

	unsubscribe()
	_, open := <-views
	assert.False(t, open)
	unsubscribe()
}

func TestReconcilerSubscribeAfterClose(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.r.Close())

	views, unsubscribe := h.r.Subscribe()
	defer unsubscribe()

	_, ok := <-views
	assert.True(t, ok)
	_, ok = <-views
	assert.False(t, ok)
}
