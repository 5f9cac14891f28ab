// HTTP client for the position store
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/desertthunder/playhead/internal/models"
	"github.com/desertthunder/playhead/internal/shared"
)

const positionsPath = "/api/playlist-positions"

var _ models.PositionStore = (*PositionClient)(nil)

// PositionClient implements [models.PositionStore] against a remote /api/playlist-positions endpoint.
type PositionClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewPositionClient creates a client for the store at baseURL.
func NewPositionClient(baseURL string, client *http.Client) *PositionClient {
	if baseURL == "" {
		baseURL = "http://localhost:3000"
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	return &PositionClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
	}
}

type positionRequest struct {
	UserID     string            `json:"userId"`
	PlaylistID models.PlaylistID `json:"playlistId"`
	TrackID    models.APITrackID `json:"trackId"`
}

func (c *PositionClient) endpoint(userID string, playlistID models.PlaylistID) string {
	if userID == "" && playlistID == "" {
		return c.baseURL + positionsPath
	}
	q := url.Values{}
	q.Set("userId", userID)
	q.Set("playlistId", string(playlistID))
	return c.baseURL + positionsPath + "?" + q.Encode()
}

// Get fetches the saved position. A JSON null body yields (nil, nil).
func (c *PositionClient) Get(ctx context.Context, userID string, playlistID models.PlaylistID) (*models.Position, error) {
	body, err := c.do(ctx, http.MethodGet, c.endpoint(userID, playlistID), nil)
	if err != nil {
		return nil, err
	}

	var pos *models.Position
	if err := json.Unmarshal(body, &pos); err != nil {
		return nil, fmt.Errorf("%w: decode position: %v", shared.ErrAPIRequest, err)
	}
	return pos, nil
}

// Put upserts the position for (userID, playlistID).
func (c *PositionClient) Put(ctx context.Context, userID string, playlistID models.PlaylistID, trackID models.APITrackID) (*models.Position, error) {
	payload, err := json.Marshal(positionRequest{UserID: userID, PlaylistID: playlistID, TrackID: trackID})
	if err != nil {
		return nil, fmt.Errorf("failed to encode position: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, c.endpoint("", ""), payload)
	if err != nil {
		return nil, err
	}

	var pos models.Position
	if err := json.Unmarshal(body, &pos); err != nil {
		return nil, fmt.Errorf("%w: decode position: %v", shared.ErrAPIRequest, err)
	}
	return &pos, nil
}

// Delete removes the position and returns what the store deleted.
func (c *PositionClient) Delete(ctx context.Context, userID string, playlistID models.PlaylistID) ([]models.Position, error) {
	body, err := c.do(ctx, http.MethodDelete, c.endpoint(userID, playlistID), nil)
	if err != nil {
		return nil, err
	}

	var deleted []models.Position
	if err := json.Unmarshal(body, &deleted); err != nil {
		return nil, fmt.Errorf("%w: decode deleted positions: %v", shared.ErrAPIRequest, err)
	}
	return deleted, nil
}

func (c *PositionClient) do(ctx context.Context, method, target string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", shared.ErrAPIRequest, method, positionsPath, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s %s returned %d: %s",
			shared.ErrAPIRequest, method, positionsPath, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
