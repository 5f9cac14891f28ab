package main

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/playhead/internal/shared"
	"github.com/desertthunder/playhead/internal/tasks"
	"github.com/desertthunder/playhead/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI serves like [Runner.Serve] and opens the now playing screen on top of the same session.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	logPath, err := r.config.LogFilePath()
	if err != nil {
		return err
	}
	fileLogger, err := shared.NewFileLogger(logPath, r.config.Log)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	s, err := r.newSession(ctx, cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sessionErr := make(chan error, 1)
	go func() {
		sessionErr <- s.run(ctx)
	}()

	model := ui.NewModel(ctx, ui.Options{
		Player:        s.reconciler,
		Starter:       s.playback,
		Playlists:     s.playback,
		Resumer:       tasks.NewResumer(s.store, s.playback, nil, s.reconciler, r.logger),
		FrameInterval: r.config.Player.TickInterval(),
		Logger:        r.logger,
	})
	defer model.Close()

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	_, runErr := p.Run()

	cancel()
	if err := <-sessionErr; err != nil {
		r.logger.Error("session stopped", "error", err)
		if runErr == nil {
			return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
		}
	}

	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return fmt.Errorf("error running TUI: %w", runErr)
	}
	return nil
}
