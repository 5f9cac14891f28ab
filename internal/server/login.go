package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
)

// LoginResult is the outcome of one authorization code callback.
type LoginResult struct {
	Token *oauth2.Token
	Err   error
}

// LoginHandler receives the authorization code redirect used by `playhead auth login`
// and exchanges it for a token pair.
//
// It accepts exactly one callback; later requests are rejected.
type LoginHandler struct {
	config  *oauth2.Config
	state   string
	results chan LoginResult

	mu   sync.Mutex
	hit  bool
	once sync.Once
}

var _ Handler = (*LoginHandler)(nil)

// NewLoginHandler expects state to be unguessable; it is compared against the callback's state parameter.
func NewLoginHandler(config *oauth2.Config, state string) *LoginHandler {
	return &LoginHandler{
		config:  config,
		state:   state,
		results: make(chan LoginResult, 1),
	}
}

func (h *LoginHandler) Routes() []string {
	return []string{"GET /callback"}
}

// AuthCodeURL is the page the user opens to grant access.
func (h *LoginHandler) AuthCodeURL() string {
	return h.config.AuthCodeURL(h.state)
}

func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.hit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.hit = true
	h.mu.Unlock()

	q := r.URL.Query()
	if q.Get("state") != h.state {
		h.send(LoginResult{Err: fmt.Errorf("invalid state parameter")})
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	code := q.Get("code")
	if code == "" {
		h.send(LoginResult{Err: fmt.Errorf("authorization failed: %s - %s", q.Get("error"), q.Get("error_description"))})
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	token, err := h.config.Exchange(r.Context(), code)
	if err != nil {
		h.send(LoginResult{Err: fmt.Errorf("token exchange failed: %w", err)})
		http.Error(w, "Token exchange failed", http.StatusInternalServerError)
		return
	}
	h.send(LoginResult{Token: token})

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, `<!DOCTYPE html><html><head><title>playhead</title></head>
<body style="font-family:sans-serif;text-align:center;margin-top:20vh">
<h1 style="color:#1DB954">Logged in</h1><p>You can close this window and return to the terminal.</p>
</body></html>`)
}

func (h *LoginHandler) send(res LoginResult) {
	h.once.Do(func() {
		h.results <- res
		close(h.results)
	})
}

// Wait blocks until the callback completes or ctx is done.
func (h *LoginHandler) Wait(ctx context.Context) (*oauth2.Token, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-h.results:
		return res.Token, res.Err
	}
}
