package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stampbook-app/stampbook-backend/internal/httputil"
	"github.com/stampbook-app/stampbook-backend/internal/model"
	"github.com/stampbook-app/stampbook-backend/internal/service"
	"github.com/stampbook-app/stampbook-backend/internal/transport/http/middleware"
)

type CollectionHandler struct {
	collections *service.CollectionService
}

func NewCollectionHandler(collections *service.CollectionService) *CollectionHandler {
	return &CollectionHandler{collections: collections}
}

// Collect handles POST /stamps/{id}/collect
// Records that the viewer collected a stamp.
func (h *CollectionHandler) Collect(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	stampID := chi.URLParam(r, "id")

	var req model.CollectRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.WriteBadRequest(w, "Invalid request body")
			return
		}
	}

	rec, err := h.collections.Collect(r.Context(), userID, stampID, req.PhotoKeys)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrStampNotFound):
			httputil.WriteNotFound(w, "Stamp not found")
		case errors.Is(err, model.ErrAlreadyCollected):
			httputil.WriteConflict(w, "Stamp already collected")
		case errors.Is(err, model.ErrTooManyPhotos):
			httputil.WriteBadRequest(w, "Too many photos (max 4)")
		default:
			log.Printf("[ERROR] Collect handler: user=%s stamp=%s err=%v", userID, stampID, err)
			httputil.WriteInternalError(w, "Failed to collect stamp")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, rec)
}

// Remove handles DELETE /stamps/{id}/collect
// Removes the viewer's collection of a stamp.
func (h *CollectionHandler) Remove(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	stampID := chi.URLParam(r, "id")

	if err := h.collections.Remove(r.Context(), userID, stampID); err != nil {
		if errors.Is(err, model.ErrNotCollected) {
			httputil.WriteNotFound(w, "Stamp not collected")
			return
		}
		log.Printf("[ERROR] Remove collection handler: user=%s stamp=%s err=%v", userID, stampID, err)
		httputil.WriteInternalError(w, "Failed to remove collection")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Collection removed successfully",
	})
}
