package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/desertthunder/playhead/internal/models"
	"github.com/desertthunder/playhead/internal/shared"
	tu "github.com/desertthunder/playhead/internal/testing"
)

func TestPositionClient(t *testing.T) {
	ctx := context.Background()

	t.Run("New", func(t *testing.T) {
		t.Run("With Custom BaseURL and Client", func(t *testing.T) {
			customClient := &http.Client{}
			c := NewPositionClient("http://example.com/", customClient)

			if c.baseURL != "http://example.com" {
				t.Errorf("expected trimmed baseURL, got %s", c.baseURL)
			}
			if c.httpClient != customClient {
				t.Error("expected custom client to be used")
			}
		})

		t.Run("With Empty BaseURL", func(t *testing.T) {
			c := NewPositionClient("", nil)
			if c.baseURL != "http://localhost:3000" {
				t.Errorf("expected default baseURL, got %s", c.baseURL)
			}
			if c.httpClient == nil {
				t.Error("expected a default client")
			}
		})
	})

	t.Run("Get", func(t *testing.T) {
		t.Run("Saved Position", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet {
					t.Errorf("expected GET, got %s", r.Method)
				}
				if r.URL.Path != positionsPath {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				if r.URL.Query().Get("userId") != "u1" || r.URL.Query().Get("playlistId") != "pl1" {
					t.Errorf("unexpected query %s", r.URL.RawQuery)
				}
				json.NewEncoder(w).Encode(models.Position{ID: "p1", UserID: "u1", PlaylistID: "pl1", TrackID: "t1"})
			}))
			defer server.Close()

			pos, err := NewPositionClient(server.URL, nil).Get(ctx, "u1", "pl1")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if pos == nil || pos.TrackID != "t1" {
				t.Errorf("unexpected position %+v", pos)
			}
		})

		t.Run("Null Body Means None", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("null"))
			}))
			defer server.Close()

			pos, err := NewPositionClient(server.URL, nil).Get(ctx, "u1", "pl1")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if pos != nil {
				t.Errorf("expected nil position, got %+v", pos)
			}
		})

		t.Run("Non-2xx Status", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			}))
			defer server.Close()

			_, err := NewPositionClient(server.URL, nil).Get(ctx, "u1", "pl1")
			if !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected ErrAPIRequest, got %v", err)
			}
		})

		t.Run("Transport Failure", func(t *testing.T) {
			client := &http.Client{Transport: tu.NewMockRoundTripper(nil, errors.New("connection refused"))}

			_, err := NewPositionClient("http://example.invalid", client).Get(ctx, "u1", "pl1")
			if !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected ErrAPIRequest, got %v", err)
			}
		})

		t.Run("Body Read Failure", func(t *testing.T) {
			resp := &http.Response{StatusCode: http.StatusOK, Body: &tu.FCloser{}}
			client := &http.Client{Transport: tu.NewMockRoundTripper(resp, nil)}

			_, err := NewPositionClient("http://example.invalid", client).Get(ctx, "u1", "pl1")
			if err == nil {
				t.Error("expected error")
			}
		})
	})

	t.Run("Put", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				t.Errorf("expected POST, got %s", r.Method)
			}
			if ct := r.Header.Get("Content-Type"); ct != "application/json" {
				t.Errorf("expected JSON content type, got %s", ct)
			}

			var req positionRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatalf("decode: %v", err)
			}
			json.NewEncoder(w).Encode(models.Position{ID: "p1", UserID: req.UserID, PlaylistID: req.PlaylistID, TrackID: req.TrackID})
		}))
		defer server.Close()

		pos, err := NewPositionClient(server.URL, nil).Put(ctx, "u1", "pl1", "t9")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if pos.TrackID != "t9" || pos.UserID != "u1" || pos.PlaylistID != "pl1" {
			t.Errorf("unexpected position %+v", pos)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodDelete {
				t.Errorf("expected DELETE, got %s", r.Method)
			}
			json.NewEncoder(w).Encode([]models.Position{{ID: "p1", TrackID: "t1"}})
		}))
		defer server.Close()

		deleted, err := NewPositionClient(server.URL, nil).Delete(ctx, "u1", "pl1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(deleted) != 1 || deleted[0].ID != "p1" {
			t.Errorf("unexpected result %+v", deleted)
		}
	})
}
