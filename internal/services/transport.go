package services

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
)

// authTransport authorizes Web API requests and retries once after refreshing on a 401.
type authTransport struct {
	base    http.RoundTripper
	tokens  TokenProvider
	limiter *rate.Limiter
	logger  *log.Logger
}

func newAuthTransport(base http.RoundTripper, tokens TokenProvider, perSecond int, logger *log.Logger) *authTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &authTransport{
		base:    base,
		tokens:  tokens,
		limiter: rate.NewLimiter(limit, max(perSecond, 1)),
		logger:  logger,
	}
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	token, err := t.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := t.send(ctx, req, token)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	if req.Body != nil && req.GetBody == nil {
		return resp, nil
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	t.logger.Debug("access token rejected, refreshing", "path", req.URL.Path)
	token, err = t.tokens.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	return t.send(ctx, req, token)
}

func (t *authTransport) send(ctx context.Context, req *http.Request, token string) (*http.Response, error) {
	out := req.Clone(ctx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("failed to rewind request body: %w", err)
		}
		out.Body = body
	}
	out.Header.Set("Authorization", "Bearer "+token)
	return t.base.RoundTrip(out)
}
