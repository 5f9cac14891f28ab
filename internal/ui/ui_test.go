package ui

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/playhead/internal/models"
	"github.com/desertthunder/playhead/internal/progress"
	"github.com/desertthunder/playhead/internal/reconcile"
	"github.com/desertthunder/playhead/internal/shared"
	"github.com/desertthunder/playhead/internal/tasks"
	tu "github.com/desertthunder/playhead/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	playback *tu.Playback
	store    *tu.PositionStore
	clock    *tu.Clock
	r        *reconcile.Reconciler
	m        *Model
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := shared.NewLogger(&bytes.Buffer{})
	h := &harness{playback: tu.NewPlayback(), store: tu.NewPositionStore(), clock: tu.NewClock(time.Time{})}
	h.r = reconcile.New(reconcile.Options{Source: h.playback, Clock: h.clock, Logger: logger})
	h.m = NewModel(context.Background(), Options{
		Player:    h.r,
		Starter:   h.playback,
		Playlists: h.playback,
		Resumer:   tasks.NewResumer(h.store, h.playback, nil, h.r, logger),
		Clock:     h.clock,
		Logger:    logger,
	})
	t.Cleanup(func() {
		h.m.Close()
		h.r.Close()
	})
	h.m.Update(tea.WindowSizeMsg{Width: defaultBarWidth + 2*barIndent, Height: 30})
	return h
}

// pump delivers the latest published view to the model.
func (h *harness) pump(t *testing.T) {
	t.Helper()
	msg := h.m.waitForView()()
	require.IsType(t, Msg{}, msg)
	h.m.Update(msg)
}

func (h *harness) push(t *testing.T, ev models.SdkPlaybackEvent) {
	t.Helper()
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = h.clock.Now()
	}
	h.r.OnPushEvent(ev)
	h.pump(t)
}

// run executes cmd and feeds its message back into the model.
func (h *harness) run(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	h.m.Update(cmd())
}

func playing(positionMs int) models.SdkPlaybackEvent {
	return models.SdkPlaybackEvent{
		PositionMs: positionMs,
		DurationMs: 180000,
		ContextURI: "spotify:playlist:pl1",
		Track:      models.SDKTrack{ID: "s1", URI: "spotify:track:t1", Name: "Song", Artists: []string{"Artist"}},
	}
}

func TestModel_ViewUpdates(t *testing.T) {
	t.Run("renders the pushed state", func(t *testing.T) {
		h := newHarness(t)
		h.pump(t)
		assert.Contains(t, h.m.View(), "Nothing playing")

		h.push(t, playing(90000))

		out := h.m.View()
		assert.Contains(t, out, "Song")
		assert.Contains(t, out, "Artist")
		assert.Contains(t, out, "▶ Playing")
		assert.Contains(t, out, "1:30 / 3:00")
	})

	t.Run("frames advance the bar", func(t *testing.T) {
		h := newHarness(t)
		h.push(t, playing(90000))

		h.clock.Advance(2 * time.Second)
		h.m.Update(frameMsg(h.clock.Now()))

		assert.Equal(t, 92000, h.m.Progress().Position())
		assert.Equal(t, progress.Animating, h.m.Progress().State())
	})

	t.Run("refresh-only views keep the animated position", func(t *testing.T) {
		h := newHarness(t)
		h.push(t, playing(90000))
		h.clock.Advance(2 * time.Second)
		h.m.Update(frameMsg(h.clock.Now()))

		v := h.r.View()
		v.Queue = []models.APITrack{{ID: "q1", URI: "spotify:track:q1", Name: "Next Up"}}
		h.m.Update(viewUpdatedMsg(v))

		assert.Equal(t, 92000, h.m.Progress().Position())
		assert.Contains(t, h.m.View(), "Up next: Next Up")
	})

	t.Run("volume changes keep the animated position", func(t *testing.T) {
		h := newHarness(t)
		h.push(t, playing(90000))
		h.clock.Advance(2 * time.Second)
		h.m.Update(frameMsg(h.clock.Now()))

		h.run(h.m.volume(10))
		h.pump(t)

		assert.Equal(t, 92000, h.m.Progress().Position())
		assert.Contains(t, h.m.View(), "vol 10%")
	})

	t.Run("pause without a new position freezes the bar", func(t *testing.T) {
		h := newHarness(t)
		h.push(t, playing(90000))

		v := h.r.View()
		v.Paused = true
		h.m.Update(viewUpdatedMsg(v))

		h.clock.Advance(time.Second)
		h.m.Update(frameMsg(h.clock.Now()))
		assert.Equal(t, 90000, h.m.Progress().Position())
		assert.Contains(t, h.m.View(), "Paused")
	})

	t.Run("needs login", func(t *testing.T) {
		h := newHarness(t)
		h.m.Update(viewUpdatedMsg(models.MergedPlaybackView{NeedsLogin: true}))
		assert.Contains(t, h.m.View(), "Not authenticated")
	})

	t.Run("closed subscription", func(t *testing.T) {
		h := newHarness(t)
		h.m.Update(viewClosedMsg())
		assert.Nil(t, h.m.waitForView())
	})
}

func TestModel_Keys(t *testing.T) {
	space := tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	runes := func(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

	t.Run("space toggles playback", func(t *testing.T) {
		h := newHarness(t)
		_, cmd := h.m.Update(space)
		h.run(cmd)
		assert.Equal(t, []string{"play"}, h.playback.Calls())
		assert.False(t, h.r.View().Paused)
	})

	t.Run("skips and volume", func(t *testing.T) {
		h := newHarness(t)
		for _, k := range []string{"n", "p", "+"} {
			_, cmd := h.m.Update(runes(k))
			h.run(cmd)
		}
		assert.Equal(t, []string{"next", "previous", "volume:10"}, h.playback.Calls())
	})

	t.Run("rejected command is shown", func(t *testing.T) {
		h := newHarness(t)
		h.playback.SetCommandErr(errors.New("no device"))
		_, cmd := h.m.Update(runes("n"))
		h.run(cmd)
		assert.Contains(t, h.m.View(), "next failed")
	})

	t.Run("arrow keys seek", func(t *testing.T) {
		h := newHarness(t)
		h.push(t, playing(90000))

		h.m.Update(tea.KeyMsg{Type: tea.KeyRight})
		assert.Equal(t, 95000, h.m.Progress().Position())

		h.m.Close()
		assert.Contains(t, h.playback.Calls(), "seek:95000")
	})

	t.Run("tracks screen plays the selection", func(t *testing.T) {
		h := newHarness(t)
		h.push(t, playing(0))

		v := h.r.View()
		v.Tracks = []models.APITrack{
			{ID: "t1", URI: "spotify:track:t1", Name: "Song"},
			{ID: "t2", URI: "spotify:track:t2", Name: "Other"},
		}
		h.m.Update(viewUpdatedMsg(v))

		h.m.Update(runes("t"))
		assert.Contains(t, h.m.View(), "▶ Song")

		h.m.Update(tea.KeyMsg{Type: tea.KeyDown})
		_, cmd := h.m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		h.run(cmd)
		assert.Equal(t, []string{"context:pl1:spotify:track:t2"}, h.playback.Calls())
		assert.Equal(t, NowPlayingView, h.m.view)
	})

	t.Run("playlists screen resumes the selection", func(t *testing.T) {
		h := newHarness(t)
		h.r.SetUserID("u1")
		h.playback.SetPlaylists([]models.Playlist{
			{ID: "pl1", Name: "Road Trip", TrackCount: 12},
			{ID: "pl2", Name: "Focus", TrackCount: 3},
		})
		_, err := h.store.Put(context.Background(), "u1", "pl2", "t9")
		require.NoError(t, err)

		_, cmd := h.m.Update(runes("L"))
		assert.Equal(t, PlaylistsView, h.m.view)
		h.run(cmd)
		out := h.m.View()
		assert.Contains(t, out, "Road Trip")
		assert.Contains(t, out, "Focus")

		h.m.Update(tea.KeyMsg{Type: tea.KeyDown})
		_, cmd = h.m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		assert.Equal(t, NowPlayingView, h.m.view)
		h.run(cmd)

		assert.Equal(t, []string{"context:pl2:spotify:track:t9"}, h.playback.Calls())
		assert.False(t, h.r.View().Paused)
	})

	t.Run("playlists screen without a saved position starts at the top", func(t *testing.T) {
		h := newHarness(t)
		h.playback.SetPlaylists([]models.Playlist{{ID: "pl1", Name: "Road Trip"}})

		_, cmd := h.m.Update(runes("L"))
		h.run(cmd)
		_, cmd = h.m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		h.run(cmd)

		assert.Equal(t, []string{"context:pl1:"}, h.playback.Calls())
	})

	t.Run("quit", func(t *testing.T) {
		h := newHarness(t)
		_, cmd := h.m.Update(runes("q"))
		require.NotNil(t, cmd)
		assert.IsType(t, tea.QuitMsg{}, cmd())
	})
}

func TestModel_Mouse(t *testing.T) {
	press := func(x, y int) tea.MouseMsg {
		return tea.MouseMsg{X: x, Y: y, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft}
	}
	motion := func(x, y int) tea.MouseMsg {
		return tea.MouseMsg{X: x, Y: y, Action: tea.MouseActionMotion, Button: tea.MouseButtonLeft}
	}
	release := func(x, y int) tea.MouseMsg {
		return tea.MouseMsg{X: x, Y: y, Action: tea.MouseActionRelease, Button: tea.MouseButtonNone}
	}

	t.Run("click on the bar seeks", func(t *testing.T) {
		h := newHarness(t)
		h.push(t, playing(0))
		row := h.m.barRow()

		x := barIndent + defaultBarWidth/2
		h.m.Update(press(x, row))
		h.m.Update(release(x, row))

		assert.Equal(t, 90000, h.m.Progress().Position())
		h.m.Close()
		assert.Contains(t, h.playback.Calls(), "seek:90000")
	})

	t.Run("drag follows the pointer and ignores pushes", func(t *testing.T) {
		h := newHarness(t)
		h.push(t, playing(0))
		row := h.m.barRow()

		h.m.Update(press(barIndent, row))
		assert.Equal(t, progress.Dragging, h.m.Progress().State())

		h.m.Update(motion(barIndent+defaultBarWidth/4, row+3))
		assert.Equal(t, 45000, h.m.Progress().Position())

		h.push(t, playing(10000))
		assert.Equal(t, 45000, h.m.Progress().Position())

		h.m.Update(release(barIndent+defaultBarWidth/4, row+3))
		assert.Equal(t, progress.Synced, h.m.Progress().State())
		h.m.Close()
		assert.Contains(t, h.playback.Calls(), "seek:45000")
	})

	t.Run("presses off the bar are ignored", func(t *testing.T) {
		h := newHarness(t)
		h.push(t, playing(30000))

		h.m.Update(press(barIndent+5, h.m.barRow()-1))
		h.m.Update(release(barIndent+5, h.m.barRow()-1))
		assert.Equal(t, 30000, h.m.Progress().Position())
		assert.Empty(t, h.playback.Calls())
	})
}
