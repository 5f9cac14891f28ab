package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/playhead/internal/formatter"
	"github.com/desertthunder/playhead/internal/models"
	"github.com/desertthunder/playhead/internal/shared"
	"github.com/urfave/cli/v3"
)

// PositionsGet prints the saved position for --playlist.
func (r *Runner) PositionsGet(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	store, userID, err := r.positionScope(ctx, cmd)
	if err != nil {
		return err
	}
	playlistID := models.PlaylistID(cmd.String("playlist"))

	pos, err := store.Get(ctx, userID, playlistID)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	if pos == nil {
		if format == formatter.FormatJSON {
			return r.writeJSON(nil, false)
		}
		return r.writePlain("No saved position for %s\n", playlistID)
	}
	return formatter.WritePositions(r.output, format, []models.Position{*pos}, r.now())
}

// PositionsSave stores --track as the position for --playlist.
func (r *Runner) PositionsSave(ctx context.Context, cmd *cli.Command) error {
	store, userID, err := r.positionScope(ctx, cmd)
	if err != nil {
		return err
	}

	playlistID := models.PlaylistID(cmd.String("playlist"))
	trackID := models.APITrackID(cmd.String("track"))

	pos, err := store.Put(ctx, userID, playlistID, trackID)
	if err != nil {
		return fmt.Errorf("failed to save position: %w", err)
	}

	r.logger.Debug("position saved", "id", pos.ID, "playlist", playlistID, "track", trackID)
	return r.writePlain("✓ Saved %s for playlist %s\n", pos.TrackURI(), pos.PlaylistID)
}

// PositionsDelete removes the saved position for --playlist and prints what was removed.
func (r *Runner) PositionsDelete(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	store, userID, err := r.positionScope(ctx, cmd)
	if err != nil {
		return err
	}

	deleted, err := store.Delete(ctx, userID, models.PlaylistID(cmd.String("playlist")))
	if err != nil {
		return fmt.Errorf("failed to delete position: %w", err)
	}

	if format == formatter.FormatText {
		return r.writePlain("✓ Deleted %d position(s)\n", len(deleted))
	}
	return formatter.WritePositions(r.output, format, deleted, r.now())
}

// PositionsList prints every position saved for the user.
func (r *Runner) PositionsList(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	store, userID, err := r.positionScope(ctx, cmd)
	if err != nil {
		return err
	}

	lister, ok := store.(models.PositionLister)
	if !ok {
		return fmt.Errorf("%w: the configured position store cannot list positions", shared.ErrNotImplemented)
	}

	positions, err := lister.List(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list positions: %w", err)
	}
	return formatter.WritePositions(r.output, format, positions, r.now())
}

func (r *Runner) positionScope(ctx context.Context, cmd *cli.Command) (models.PositionStore, string, error) {
	store, err := r.positionStore(ctx)
	if err != nil {
		return nil, "", err
	}
	userID, err := r.resolveUserID(ctx, cmd.String("user"))
	if err != nil {
		return nil, "", err
	}
	return store, userID, nil
}
