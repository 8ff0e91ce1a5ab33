package routes

import (
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/marksync/internal/httpserver/deps"
)

type (
	Registrar  func(r chi.Router, d deps.Deps)
	Middleware = func(http.Handler) http.Handler
)

type entry struct {
	name string
	reg  Registrar
	mws  []Middleware
}

var registry []entry

// Register a named registrar with optional per-group middlewares.
// Files call it from init(); registration order does not matter.
func Register(name string, reg Registrar, mws ...Middleware) {
	registry = append(registry, entry{name: name, reg: reg, mws: mws})
}

// RegisterAll mounts every registrar on r, in name order, and returns the
// names it mounted. Called once from httpserver.NewRouter.
func RegisterAll(r chi.Router, d deps.Deps) []string {
	entries := make([]entry, len(registry))
	copy(entries, registry)
	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if len(e.mws) == 0 {
			e.reg(r, d)
		} else {
			e.reg(r.With(e.mws...), d)
		}
		names = append(names, e.name)
	}
	return names
}
