package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/desertthunder/playhead/internal/formatter"
	"github.com/desertthunder/playhead/internal/models"
	"github.com/desertthunder/playhead/internal/reconcile"
	"github.com/desertthunder/playhead/internal/shared"
	"github.com/desertthunder/playhead/internal/tasks"
	"github.com/urfave/cli/v3"
)

// PlayerStatus polls the session once through a reconciler and prints the merged view.
func (r *Runner) PlayerStatus(ctx context.Context, cmd *cli.Command) error {
	playback, err := r.playbackSource()
	if err != nil {
		return err
	}

	rec := reconcile.New(reconcile.Options{
		Source:         playback,
		ToggleDebounce: r.config.Player.ToggleDebounce(),
		Logger:         r.logger,
	})
	defer rec.Close()

	poller := tasks.NewPoller(playback, rec, r.config.Player.PollInterval(), r.logger)
	if _, err := poller.PollOnce(ctx); err != nil && !errors.Is(err, shared.ErrNotAuthenticated) {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	view := rec.View()
	if cmd.Bool("json") {
		return r.writeJSON(view, true)
	}
	_, err = r.output.Write(formatter.StatusToText(view))
	return err
}

// PlayerPlay resumes playback.
func (r *Runner) PlayerPlay(ctx context.Context, cmd *cli.Command) error {
	return r.sendCommand(ctx, "play", func(p Playback) error { return p.Play(ctx) })
}

// PlayerPause pauses playback.
func (r *Runner) PlayerPause(ctx context.Context, cmd *cli.Command) error {
	return r.sendCommand(ctx, "pause", func(p Playback) error { return p.Pause(ctx) })
}

// PlayerNext skips to the next track.
func (r *Runner) PlayerNext(ctx context.Context, cmd *cli.Command) error {
	return r.sendCommand(ctx, "next", func(p Playback) error { return p.SkipNext(ctx) })
}

// PlayerPrevious skips to the previous track.
func (r *Runner) PlayerPrevious(ctx context.Context, cmd *cli.Command) error {
	return r.sendCommand(ctx, "previous", func(p Playback) error { return p.SkipPrevious(ctx) })
}

// PlayerSeek seeks to a position given as m:ss or milliseconds.
func (r *Runner) PlayerSeek(ctx context.Context, cmd *cli.Command) error {
	positionMs, err := parseSeek(cmd.StringArg("position"))
	if err != nil {
		return err
	}
	return r.sendCommand(ctx, "seek", func(p Playback) error { return p.Seek(ctx, positionMs) })
}

// PlayerVolume sets the volume percentage.
func (r *Runner) PlayerVolume(ctx context.Context, cmd *cli.Command) error {
	raw := strings.TrimSpace(cmd.StringArg("percent"))
	if raw == "" {
		return fmt.Errorf("%w: volume percent", shared.ErrMissingArgument)
	}
	percent, err := strconv.Atoi(strings.TrimSuffix(raw, "%"))
	if err != nil || percent < 0 || percent > 100 {
		return fmt.Errorf("%w: volume must be between 0 and 100, got %q", shared.ErrInvalidArgument, raw)
	}
	return r.sendCommand(ctx, "volume", func(p Playback) error { return p.SetVolume(ctx, percent) })
}

// PlayerQueue prints the playback queue.
func (r *Runner) PlayerQueue(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	playback, err := r.playbackSource()
	if err != nil {
		return err
	}

	queue, err := playback.FetchQueue(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	return formatter.WriteTracks(r.output, format, "Queue", queue, "")
}

// PlayerPlaylists prints the user's playlists, marking the one playing now.
func (r *Runner) PlayerPlaylists(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	playback, err := r.playbackSource()
	if err != nil {
		return err
	}

	playlists, err := playback.FetchPlaylists(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	var current models.PlaylistID
	if snap, err := playback.FetchSnapshot(ctx); err != nil {
		r.logger.Debug("could not read current playlist", "error", err)
	} else if snap != nil {
		current, _ = snap.PlaylistID()
	}

	return formatter.WritePlaylists(r.output, format, playlists, current)
}

// PlayerTracks prints the tracks of --playlist, marking the one playing now.
func (r *Runner) PlayerTracks(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	playback, err := r.playbackSource()
	if err != nil {
		return err
	}

	playlistID := models.PlaylistID(cmd.String("playlist"))
	tracks, err := playback.FetchTracks(ctx, playlistID)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	var current models.TrackURI
	if snap, err := playback.FetchSnapshot(ctx); err != nil {
		r.logger.Debug("could not read current track", "error", err)
	} else if snap != nil && snap.Track != nil {
		current = snap.Track.URI
	}

	return formatter.WriteTracks(r.output, format, fmt.Sprintf("Playlist %s", playlistID), tracks, current)
}

// PlayerResume starts --playlist at its saved track, or from the top when nothing is saved.
func (r *Runner) PlayerResume(ctx context.Context, cmd *cli.Command) error {
	playback, err := r.playbackSource()
	if err != nil {
		return err
	}

	store, err := r.positionStore(ctx)
	if err != nil {
		r.logger.Warn("position store unavailable, starting from the top", "error", err)
		store = nil
	}

	userID, err := r.resolveUserID(ctx, cmd.String("user"))
	if err != nil {
		r.logger.Warn("could not resolve user, starting from the top", "error", err)
	}

	resumer := tasks.NewResumer(store, playback, playback, nil, r.logger)

	updates := make(chan tasks.ProgressUpdate, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for u := range updates {
			r.writePlain("→ %s\n", u.Message)
		}
	}()

	result, err := resumer.Resume(ctx, updates, userID, models.PlaylistID(cmd.String("playlist")))
	close(updates)
	<-done
	if err != nil {
		return err
	}

	if result.FromStart() {
		return r.writePlain("✓ Playing %s from the first track (%d tracks)\n", result.PlaylistID, len(result.Tracks))
	}
	return r.writePlain("✓ Resumed %s at %s (%d tracks)\n", result.PlaylistID, result.Offset, len(result.Tracks))
}

func (r *Runner) sendCommand(ctx context.Context, op string, send func(Playback) error) error {
	playback, err := r.playbackSource()
	if err != nil {
		return err
	}

	r.logger.Debug("sending command", "op", op)
	if err := send(playback); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return r.writePlain("✓ %s\n", op)
}

// parseSeek accepts m:ss, h:mm:ss or a plain millisecond count.
func parseSeek(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: seek position", shared.ErrMissingArgument)
	}

	if !strings.Contains(s, ":") {
		ms, err := strconv.Atoi(s)
		if err != nil || ms < 0 {
			return 0, fmt.Errorf("%w: invalid seek position %q", shared.ErrInvalidArgument, s)
		}
		return ms, nil
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("%w: invalid seek position %q", shared.ErrInvalidArgument, s)
	}

	seconds := 0
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || (i > 0 && n > 59) {
			return 0, fmt.Errorf("%w: invalid seek position %q", shared.ErrInvalidArgument, s)
		}
		seconds = seconds*60 + n
	}
	return seconds * 1000, nil
}
