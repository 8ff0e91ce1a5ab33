package routes

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrSnakeDoc/marksync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/mw"
)

func init() { Register("bookmarks", registerBookmarks) }

func registerBookmarks(r chi.Router, d deps.Deps) {
	timeout := d.RequestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	r.Route("/api/bookmarks", func(r chi.Router) {
		// The feed is long-lived and takes its token from the query string too
		r.With(mw.RequireAuth(d.Sessions, true, d.Logger)).Get("/feed", handlers.Feed(d))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(timeout))
			r.Use(mw.RequireAuth(d.Sessions, false, d.Logger))

			r.Get("/", handlers.ListBookmarks(d))

			limited := r.With(mw.RateLimit(mw.RateLimitConfig{
				Burst:        d.RateBurst,
				RefillPerMin: d.RatePerMin,
				MaxEntries:   10000,
				TrustProxy:   d.TrustProxy,
			}))
			limited.Post("/", handlers.CreateBookmark(d))
			limited.Delete("/{id}", handlers.DeleteBookmark(d))
		})
	})
}
