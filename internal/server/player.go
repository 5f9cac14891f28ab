package server

import (
	_ "embed"
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playhead/internal/models"
	"github.com/desertthunder/playhead/internal/services"
	"github.com/desertthunder/playhead/internal/shared"
)

//go:embed bridge.html
var bridgePage []byte

// ViewSource exposes the current merged playback view.
type ViewSource interface {
	View() models.MergedPlaybackView
}

// TokenHandler hands the current access token to the bridge page so the SDK can authenticate.
type TokenHandler struct {
	tokens services.TokenProvider
	logger *log.Logger
}

func NewTokenHandler(tokens services.TokenProvider, logger *log.Logger) *TokenHandler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &TokenHandler{tokens: tokens, logger: shared.WithLogger(logger, "component", "token")}
}

func (h *TokenHandler) Routes() []string {
	return []string{"GET /api/token"}
}

func (h *TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.tokens == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	token, err := h.tokens.Token(r.Context())
	if err != nil {
		if errors.Is(err, shared.ErrNotAuthenticated) {
			h.logger.Warn("token requested without a session", "err", err)
		} else {
			h.logger.Error("failed to get access token", "err", err)
		}
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, map[string]string{"access_token": token})
}

// StateHandler serves the merged playback view as JSON.
type StateHandler struct {
	views ViewSource
}

func NewStateHandler(views ViewSource) *StateHandler {
	return &StateHandler{views: views}
}

func (h *StateHandler) Routes() []string {
	return []string{"GET /api/state"}
}

func (h *StateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.views.View())
}

// BridgeHandler serves the page that hosts the browser SDK and forwards its events to the relay.
type BridgeHandler struct{}

func (BridgeHandler) Routes() []string {
	return []string{"GET /player"}
}

func (BridgeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(bridgePage)
}

// Healthz answers "ok" for liveness probes.
func Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// Deps are the collaborators wired into [NewRouter]. Nil fields leave their routes unregistered.
type Deps struct {
	Store          models.PositionStore
	Tokens         services.TokenProvider
	Views          ViewSource
	Relay          *Relay
	AllowedOrigins []string
	Logger         *log.Logger
}

// NewRouter builds the full HTTP surface with recovery, logging and CORS middleware.
func NewRouter(d Deps) *BasicRouter {
	logger := d.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	r := NewBasicRouter()
	r.Use(Recover(logger), Logging(shared.WithLogger(logger, "component", "http")), CORS(d.AllowedOrigins))

	r.HandleFunc(http.MethodGet, "/healthz", Healthz)
	r.Handler(BridgeHandler{})
	if d.Store != nil {
		r.Handler(NewPositionHandler(d.Store, logger))
	}
	if d.Tokens != nil {
		r.Handler(NewTokenHandler(d.Tokens, logger))
	}
	if d.Views != nil {
		r.Handler(NewStateHandler(d.Views))
	}
	if d.Relay != nil {
		r.Handler(d.Relay)
	}
	return r
}
