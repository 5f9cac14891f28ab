package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/desertthunder/playhead/internal/shared"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

// PlaybackScopes are the scopes the SDK bridge and the player commands need.
var PlaybackScopes = []string{
	spotifyauth.ScopeStreaming,
	spotifyauth.ScopeUserReadPrivate,
	spotifyauth.ScopeUserReadEmail,
	spotifyauth.ScopeUserReadPlaybackState,
	spotifyauth.ScopeUserModifyPlaybackState,
	spotifyauth.ScopeUserReadCurrentlyPlaying,
	spotifyauth.ScopePlaylistReadPrivate,
}

var _ TokenProvider = (*OAuthTokenProvider)(nil)

// OAuthTokenProvider implements [TokenProvider] on top of an [oauth2.Config] and a stored token pair.
type OAuthTokenProvider struct {
	config    *oauth2.Config
	mu        sync.Mutex
	token     *oauth2.Token
	onRefresh func(*oauth2.Token)
	now       func() time.Time
}

// NewOAuthTokenProvider builds a provider from configured credentials.
//
// tokenURL overrides the Spotify accounts endpoint when non-empty.
func NewOAuthTokenProvider(sc shared.SpotifyConfig, tokenURL string) *OAuthTokenProvider {
	if tokenURL == "" {
		tokenURL = spotifyauth.TokenURL
	}

	return &OAuthTokenProvider{
		config: &oauth2.Config{
			ClientID:     sc.ClientID,
			ClientSecret: sc.ClientSecret,
			RedirectURL:  sc.RedirectURI,
			Scopes:       PlaybackScopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   spotifyauth.AuthURL,
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		token: sc.Token(),
		now:   time.Now,
	}
}

// OAuthConfig returns the client configuration used for refreshes and the authorization code flow.
func (p *OAuthTokenProvider) OAuthConfig() *oauth2.Config {
	return p.config
}

// SetTokenRefreshCallback registers fn to receive every token obtained by a refresh.
func (p *OAuthTokenProvider) SetTokenRefreshCallback(fn func(*oauth2.Token)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onRefresh = fn
}

// Token returns the stored access token, refreshing when its expiry has passed.
func (p *OAuthTokenProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	tok := p.token
	p.mu.Unlock()

	if tok == nil || (tok.AccessToken == "" && tok.RefreshToken == "") {
		return "", fmt.Errorf("%w: no access token configured", shared.ErrNotAuthenticated)
	}

	expired := !tok.Expiry.IsZero() && !p.now().Before(tok.Expiry.Add(-10*time.Second))
	if tok.AccessToken == "" || expired {
		return p.Refresh(ctx)
	}
	return tok.AccessToken, nil
}

// Refresh exchanges the refresh token for a new access token.
func (p *OAuthTokenProvider) Refresh(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token == nil || p.token.RefreshToken == "" {
		return "", fmt.Errorf("%w: %w", shared.ErrNotAuthenticated, shared.ErrNoRefreshToken)
	}

	src := p.config.TokenSource(ctx, &oauth2.Token{RefreshToken: p.token.RefreshToken})
	fresh, err := src.Token()
	if err != nil {
		return "", fmt.Errorf("%w: %w: %v", shared.ErrNotAuthenticated, shared.ErrRefreshFailed, err)
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = p.token.RefreshToken
	}

	p.token = fresh
	if p.onRefresh != nil {
		p.onRefresh(fresh)
	}
	return fresh.AccessToken, nil
}
