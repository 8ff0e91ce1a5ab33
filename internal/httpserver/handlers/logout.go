package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/marksync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/mw"
	"github.com/MrSnakeDoc/marksync/internal/logger"
)

// Logout revokes the bearer token the request came with.
func Logout(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.Sessions.Revoke(r.Context(), mw.Token(r.Context())); err != nil {
			d.Logger.Error("failed to revoke token",
				logger.String("user_id", mw.UserID(r.Context())),
				logger.Error(err))
			mw.WriteError(w, http.StatusInternalServerError, "failed to sign out")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
