package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/marksync/internal/domain"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/mw"
	"github.com/MrSnakeDoc/marksync/internal/logger"
)

const maxBodyBytes = 64 << 10

type createBookmarkRequest struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// ListBookmarks returns the caller's bookmarks, newest first.
func ListBookmarks(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner := mw.UserID(r.Context())
		list, err := d.Records.ListByOwner(r.Context(), owner)
		if err != nil {
			d.Logger.Error("failed to list bookmarks",
				logger.String("user_id", owner),
				logger.Error(err))
			mw.WriteError(w, http.StatusInternalServerError, "failed to list bookmarks")
			return
		}
		mw.WriteJSON(w, http.StatusOK, list)
	}
}

// CreateBookmark inserts a bookmark owned by the caller. Any owner in the
// body is ignored.
func CreateBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createBookmarkRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			mw.WriteError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		owner := mw.UserID(r.Context())
		b, err := d.Records.Insert(r.Context(), domain.NewBookmark{
			Title:   req.Title,
			URL:     req.URL,
			OwnerID: owner,
		})
		switch {
		case errors.Is(err, domain.ErrInvalid):
			mw.WriteError(w, http.StatusBadRequest, err.Error())
			return
		case err != nil:
			d.Logger.Error("failed to insert bookmark",
				logger.String("user_id", owner),
				logger.Error(err))
			mw.WriteError(w, http.StatusInternalServerError, "failed to insert bookmark")
			return
		}
		mw.WriteJSON(w, http.StatusCreated, b)
	}
}

// DeleteBookmark removes one of the caller's bookmarks.
func DeleteBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner := mw.UserID(r.Context())
		id := chi.URLParam(r, "id")

		err := d.Records.Delete(r.Context(), owner, id)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			mw.WriteError(w, http.StatusNotFound, "bookmark not found")
			return
		case err != nil:
			d.Logger.Error("failed to delete bookmark",
				logger.String("user_id", owner),
				logger.String("id", id),
				logger.Error(err))
			mw.WriteError(w, http.StatusInternalServerError, "failed to delete bookmark")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
