package reconcile

import (
	"context"
	"fmt"

	"github.com/desertthunder/playhead/internal/models"
	"github.com/desertthunder/playhead/internal/shared"
)

// TogglePlay flips the paused flag optimistically and sends play or pause.
// On failure the flag is restored and the error returned.
func (r *Reconciler) TogglePlay(ctx context.Context) error {
	before := r.View().Paused
	paused := r.OnManualToggle()

	var err error
	if paused {
		err = r.source.Pause(ctx)
	} else {
		err = r.source.Play(ctx)
	}
	if err != nil {
		r.rollback("toggle", err, func(v *models.MergedPlaybackView) { v.Paused = before })
		return fmt.Errorf("toggle playback: %w", err)
	}
	return nil
}

// Seek moves the displayed position to positionMs, clamped to the track, before the command is acknowledged.
func (r *Reconciler) Seek(ctx context.Context, positionMs int) error {
	view := r.View()
	target := max(positionMs, 0)
	if view.DurationMs > 0 {
		target = min(target, view.DurationMs)
	}

	r.update(func(v *models.MergedPlaybackView) { r.reposition(v, target) })
	if err := r.source.Seek(ctx, target); err != nil {
		r.rollback("seek", err, func(v *models.MergedPlaybackView) { r.reposition(v, view.PositionMs) })
		return fmt.Errorf("seek to %d: %w", target, err)
	}
	return nil
}

// SkipNext resets the displayed position and skips forward.
func (r *Reconciler) SkipNext(ctx context.Context) error {
	return r.skip(ctx, "next", r.source.SkipNext)
}

// SkipPrevious resets the displayed position and skips back.
func (r *Reconciler) SkipPrevious(ctx context.Context) error {
	return r.skip(ctx, "previous", r.source.SkipPrevious)
}

func (r *Reconciler) skip(ctx context.Context, op string, send func(context.Context) error) error {
	before := r.View().PositionMs

	r.update(func(v *models.MergedPlaybackView) { r.reposition(v, 0) })
	if err := send(ctx); err != nil {
		r.rollback(op, err, func(v *models.MergedPlaybackView) { r.reposition(v, before) })
		return fmt.Errorf("skip %s: %w", op, err)
	}
	return nil
}

// SetVolume applies percent optimistically. Values outside 0..100 never reach the remote.
func (r *Reconciler) SetVolume(ctx context.Context, percent int) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("%w: volume %d outside 0..100", shared.ErrInvalidArgument, percent)
	}

	before := r.View().Volume
	r.update(func(v *models.MergedPlaybackView) { v.Volume = percent })
	if err := r.source.SetVolume(ctx, percent); err != nil {
		r.rollback("volume", err, func(v *models.MergedPlaybackView) { v.Volume = before })
		return fmt.Errorf("set volume: %w", err)
	}
	return nil
}

// SetPausedOptimistic sets the paused flag without a command, e.g. after a resume started playback.
func (r *Reconciler) SetPausedOptimistic(paused bool) {
	r.update(func(v *models.MergedPlaybackView) { v.Paused = paused })
}

// update applies fn and publishes. UpdatedAt marks a new position baseline, so only reposition touches it.
func (r *Reconciler) update(fn func(*models.MergedPlaybackView)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.view)
	r.publishLocked()
}

func (r *Reconciler) reposition(v *models.MergedPlaybackView, positionMs int) {
	v.PositionMs = positionMs
	v.UpdatedAt = r.clock.Now()
}

func (r *Reconciler) rollback(op string, err error, restore func(*models.MergedPlaybackView)) {
	r.logger.Error("playback command failed, rolling back", "op", op, "err", err)
	r.update(restore)
	r.noteError(err)
}
