package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

type routesHandler struct {
	routes []string
	hits   int
}

func (h *routesHandler) Routes() []string { return h.routes }

func (h *routesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.hits++
	w.WriteHeader(http.StatusNoContent)
}

func TestBasicRouter(t *testing.T) {
	t.Run("middleware order", func(t *testing.T) {
		r := NewBasicRouter()
		var order []string
		mark := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, req)
				})
			}
		}
		r.Use(mark("outer"), mark("inner"))
		r.HandleFunc(http.MethodGet, "/x", func(w http.ResponseWriter, req *http.Request) {
			order = append(order, "handler")
		})

		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

		want := []string{"outer", "inner", "handler"}
		if len(order) != len(want) {
			t.Fatalf("order = %v, want %v", order, want)
		}
		for i := range want {
			if order[i] != want[i] {
				t.Errorf("order = %v, want %v", order, want)
				break
			}
		}
	})

	t.Run("wrong method", func(t *testing.T) {
		r := NewBasicRouter()
		r.HandleFunc(http.MethodGet, "/x", func(w http.ResponseWriter, req *http.Request) {})

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/x", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("status = %d, want 405", rec.Code)
		}
	})

	t.Run("handler routes", func(t *testing.T) {
		r := NewBasicRouter()
		h := &routesHandler{routes: []string{"/a", "GET /b"}}
		r.Handler(h)

		for _, path := range []string{"/a", "/b"} {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
			if rec.Code != http.StatusNoContent {
				t.Errorf("%s: status = %d", path, rec.Code)
			}
		}
		if h.hits != 2 {
			t.Errorf("hits = %d, want 2", h.hits)
		}
	})

	t.Run("not found", func(t *testing.T) {
		r := NewBasicRouter()
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})
}
