package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playhead/internal/models"
	"github.com/desertthunder/playhead/internal/shared"
)

const (
	positionsRoute = "/api/playlist-positions"
	maxBodyBytes   = 1 << 16
)

type errorBody struct {
	Error string `json:"error"`
}

type savePositionRequest struct {
	UserID     string            `json:"userId"`
	PlaylistID models.PlaylistID `json:"playlistId"`
	TrackID    models.APITrackID `json:"trackId"`
	// Position is accepted for compatibility with older clients and ignored.
	Position *int `json:"position,omitempty"`
}

// PositionHandler serves GET, POST and DELETE on /api/playlist-positions over a [models.PositionStore].
type PositionHandler struct {
	store  models.PositionStore
	logger *log.Logger
}

var _ Handler = (*PositionHandler)(nil)

func NewPositionHandler(store models.PositionStore, logger *log.Logger) *PositionHandler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &PositionHandler{store: store, logger: shared.WithLogger(logger, "component", "positions")}
}

func (h *PositionHandler) Routes() []string {
	return []string{positionsRoute}
}

func (h *PositionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.get(w, r)
	case http.MethodPost:
		h.save(w, r)
	case http.MethodDelete:
		h.delete(w, r)
	default:
		w.Header().Set("Allow", "GET, POST, DELETE")
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *PositionHandler) keys(r *http.Request) (string, models.PlaylistID, bool) {
	q := r.URL.Query()
	userID, playlistID := q.Get("userId"), q.Get("playlistId")
	return userID, models.PlaylistID(playlistID), userID != "" && playlistID != ""
}

// get answers with the saved position, or a JSON null when nothing is saved.
func (h *PositionHandler) get(w http.ResponseWriter, r *http.Request) {
	userID, playlistID, ok := h.keys(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Missing userId or playlistId")
		return
	}

	pos, err := h.store.Get(r.Context(), userID, playlistID)
	if err != nil {
		h.logger.Error("failed to get playlist position", "user", userID, "playlist", playlistID, "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to get playlist position")
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

func (h *PositionHandler) save(w http.ResponseWriter, r *http.Request) {
	var req savePositionRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == "" || req.PlaylistID == "" || req.TrackID == "" {
		writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	pos, err := h.store.Put(r.Context(), req.UserID, req.PlaylistID, req.TrackID)
	if err != nil {
		h.logger.Error("failed to save playlist position", "user", req.UserID, "playlist", req.PlaylistID, "err", err)
		status := http.StatusInternalServerError
		if errors.Is(err, shared.ErrInvalidInput) {
			status = http.StatusBadRequest
		}
		writeError(w, status, "Failed to save playlist position")
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

func (h *PositionHandler) delete(w http.ResponseWriter, r *http.Request) {
	userID, playlistID, ok := h.keys(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Missing userId or playlistId")
		return
	}

	removed, err := h.store.Delete(r.Context(), userID, playlistID)
	if err != nil {
		h.logger.Error("failed to delete playlist position", "user", userID, "playlist", playlistID, "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to delete playlist position")
		return
	}
	if removed == nil {
		removed = []models.Position{}
	}
	writeJSON(w, http.StatusOK, removed)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}
