package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/MrSnakeDoc/marksync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/mw"
	"github.com/MrSnakeDoc/marksync/internal/logger"
)

const readyCheckTimeout = 2 * time.Second

type componentStatus struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type readyzResponse struct {
	Ready      bool                       `json:"ready"`
	Components map[string]componentStatus `json:"components,omitempty"`
}

// Readyz runs every readiness check and answers 503 if any fails.
func Readyz(d deps.Deps) http.HandlerFunc {
	names := make([]string, 0, len(d.Checks))
	for name := range d.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyCheckTimeout)
		defer cancel()

		resp := readyzResponse{Ready: true, Components: make(map[string]componentStatus, len(names))}
		for _, name := range names {
			status := componentStatus{OK: true}
			if err := d.Checks[name](ctx); err != nil {
				d.Logger.Warn("readiness check failed",
					logger.String("component", name),
					logger.Error(err))
				status = componentStatus{OK: false, Error: err.Error()}
				resp.Ready = false
			}
			resp.Components[name] = status
		}

		code := http.StatusOK
		if !resp.Ready {
			code = http.StatusServiceUnavailable
		}
		mw.WriteJSON(w, code, resp)
	}
}
