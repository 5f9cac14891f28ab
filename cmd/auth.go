package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/playhead/internal/server"
	"github.com/desertthunder/playhead/internal/services"
	"github.com/desertthunder/playhead/internal/shared"
	"github.com/urfave/cli/v3"
)

const defaultLoginTimeout = 2 * time.Minute

// AuthLogin runs the authorization code flow against a local callback server and saves the token pair.
//
// The redirect URI registered with Spotify must point at /callback on server.host:server.port.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	sc := r.config.Credentials.Spotify
	if sc.ClientID == "" || sc.ClientSecret == "" {
		return fmt.Errorf("%w: credentials.spotify.client_id and client_secret must be set", shared.ErrMissingCredentials)
	}

	timeout := cmd.Duration("timeout")
	if timeout <= 0 {
		timeout = defaultLoginTimeout
	}

	oauthConfig := services.NewOAuthTokenProvider(sc, "").OAuthConfig()
	login := server.NewLoginHandler(oauthConfig, shared.GenerateID())

	router := server.NewBasicRouter()
	router.Use(server.Recover(r.logger))
	router.Handler(login)

	srv := server.NewServer(r.config.Server.Addr(), router, nil, r.logger)
	srvCtx, stop := context.WithCancel(ctx)
	defer stop()

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.ListenAndServe(srvCtx)
	}()

	r.writePlain("→ Open this URL to authorize playhead:\n%s\n\n", login.AuthCodeURL())
	r.writePlain("→ Waiting for authorization (%s timeout)...\n", timeout)

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	results := make(chan server.LoginResult, 1)
	go func() {
		token, err := login.Wait(waitCtx)
		results <- server.LoginResult{Token: token, Err: err}
	}()

	var result server.LoginResult
	select {
	case result = <-results:
	case err := <-serverErrors:
		return fmt.Errorf("%w: callback server: %v", shared.ErrServiceUnavailable, err)
	}

	stop()
	if err := <-serverErrors; err != nil {
		r.logger.Warn("error shutting down callback server", "error", err)
	}

	if result.Err != nil {
		return fmt.Errorf("%w: %w", shared.ErrNotAuthenticated, result.Err)
	}

	if err := r.saveTokens(result.Token); err != nil {
		return err
	}

	r.writePlainln("✓ Authorization successful")
	if r.configPath != "" {
		r.writePlain("✓ Tokens saved to %s\n", r.configPath)
	}
	return nil
}

// AuthLogout clears the saved tokens. Client credentials stay so `auth login` works again.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if r.config == nil {
		return fmt.Errorf("%w: config is nil", shared.ErrMissingConfig)
	}

	r.config.Credentials.Spotify.ClearTokens()
	r.tokens = nil
	if r.configPath != "" {
		if err := shared.SaveConfig(r.configPath, r.config); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
	}

	r.logger.Debug("tokens cleared", "config", r.configPath)
	return r.writePlain("✓ Logged out\n")
}

// AuthStatus checks that a token can be obtained and resolves the authenticated user.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	tokens, err := r.tokenProvider()
	if err != nil {
		r.writePlain("✗ Not configured: %v\n", err)
		return nil
	}

	if _, err := tokens.Token(ctx); err != nil {
		r.logger.Debug("token check failed", "error", err)
		return r.writePlain("✗ Not authenticated\nRun 'playhead auth login'\n")
	}

	if _, err := r.playbackSource(); err != nil {
		return err
	}
	if r.users == nil {
		return r.writePlain("✓ Authenticated\n")
	}

	userID, err := r.users.CurrentUserID(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	return r.writePlain("✓ Authenticated as %s\n", userID)
}
