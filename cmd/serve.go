package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playhead/internal/models"
	"github.com/desertthunder/playhead/internal/reconcile"
	"github.com/desertthunder/playhead/internal/server"
	"github.com/desertthunder/playhead/internal/shared"
	"github.com/desertthunder/playhead/internal/tasks"
	"github.com/urfave/cli/v3"
)

// session is one running player: the reconciler fed by the SDK relay and the poller, behind the HTTP surface.
type session struct {
	playback   Playback
	store      models.PositionStore
	reconciler *reconcile.Reconciler
	poller     *tasks.Poller
	relay      *server.Relay
	server     *server.Server
	logger     *log.Logger
}

// newSession wires the collaborators for serve and tui.
//
// A missing position store or user id only disables persistence.
func (r *Runner) newSession(ctx context.Context, cmd *cli.Command) (*session, error) {
	playback, err := r.playbackSource()
	if err != nil {
		return nil, err
	}
	tokens, err := r.tokenProvider()
	if err != nil {
		return nil, err
	}

	var store models.PositionStore
	if s, err := r.positionStore(ctx); err != nil {
		r.logger.Warn("position store unavailable, positions will not be saved", "error", err)
	} else {
		store = s
	}

	origins := r.config.Server.AllowedOrigins
	relay := server.NewRelay(server.RelayOpts{
		AllowedOrigins: origins,
		OnDeviceReady: func(deviceID string) {
			if t, ok := playback.(deviceTargeter); ok {
				t.SetDeviceID(deviceID)
			}
		},
		Logger: r.logger,
	})

	rec := reconcile.New(reconcile.Options{
		Source:         playback,
		Store:          store,
		Push:           relay,
		ToggleDebounce: r.config.Player.ToggleDebounce(),
		Logger:         r.logger,
	})

	if userID, err := r.resolveUserID(ctx, cmd.String("user")); err != nil {
		r.logger.Warn("user unknown, positions will not be saved", "error", err)
	} else {
		rec.SetUserID(userID)
	}

	router := server.NewRouter(server.Deps{
		Store:          store,
		Tokens:         tokens,
		Views:          rec,
		Relay:          relay,
		AllowedOrigins: origins,
		Logger:         r.logger,
	})

	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Server.Addr()
	}

	return &session{
		playback:   playback,
		store:      store,
		reconciler: rec,
		poller:     tasks.NewPoller(playback, rec, r.config.Player.PollInterval(), r.logger),
		relay:      relay,
		server:     server.NewServer(addr, router, relay, r.logger),
		logger:     r.logger,
	}, nil
}

// run drives the reconciler, the poller and the HTTP server until ctx ends or one of them fails.
func (s *session) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errs := make(chan error, 3)
	start := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer cancel()
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errs <- fmt.Errorf("%s: %w", name, err)
			}
		}()
	}

	start("reconciler", s.reconciler.Run)
	start("poller", s.poller.Run)
	start("server", s.server.ListenAndServe)

	wg.Wait()
	close(errs)

	if err := s.reconciler.Close(); err != nil {
		s.logger.Warn("failed to close reconciler", "error", err)
	}
	return <-errs
}

// Serve runs the position API, the SDK relay and the bridge page until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	s, err := r.newSession(ctx, cmd)
	if err != nil {
		return err
	}

	r.writePlainHeader("playhead")
	r.writePlain("Bridge page:  http://%s/player\n", s.server.Addr())
	r.writePlain("Positions:    http://%s/api/playlist-positions\n", s.server.Addr())
	r.writePlain("Open the bridge page in a browser to start the playback device.\n\n")

	if err := s.run(ctx); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	return nil
}
