package routes

import (
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/marksync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marksync/internal/logger"
)

func TestRegisterAllMountsEveryGroup(t *testing.T) {
	d := deps.Deps{Logger: logger.New("error", false)}
	names := RegisterAll(chi.NewRouter(), d)

	want := []string{"auth", "bookmarks", "healthz", "readyz", "reload"}
	if !slices.Equal(names, want) {
		t.Fatalf("RegisterAll() = %v, want %v", names, want)
	}
}

func TestRegisterAppliesMiddlewares(t *testing.T) {
	saved := registry
	defer func() { registry = saved }()
	registry = nil

	hit := false
	Register("test", func(r chi.Router, _ deps.Deps) {
		r.Get("/x", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	}, func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hit = true
			next.ServeHTTP(w, r)
		})
	})

	r := chi.NewRouter()
	RegisterAll(r, deps.Deps{})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	if rec.Code != http.StatusOK || !hit {
		t.Fatalf("code = %d, middleware hit = %v", rec.Code, hit)
	}
}
