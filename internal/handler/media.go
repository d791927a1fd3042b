package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/stampbook-app/stampbook-backend/internal/httputil"
	"github.com/stampbook-app/stampbook-backend/internal/media"
	"github.com/stampbook-app/stampbook-backend/internal/model"
	"github.com/stampbook-app/stampbook-backend/internal/transport/http/middleware"
)

type MediaHandler struct {
	media *media.Service
}

func NewMediaHandler(mediaService *media.Service) *MediaHandler {
	return &MediaHandler{media: mediaService}
}

// PresignPhoto handles POST /media/photos/presign
// Returns a presigned PUT URL for uploading a collection photo directly
// to R2.
func (h *MediaHandler) PresignPhoto(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req model.PresignPhotoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	resp, err := h.media.PresignPhotoUpload(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrFileTooLarge):
			httputil.WriteBadRequestWithCode(w, model.CodeFileTooLarge, "File too large (max 10MB)")
		case errors.Is(err, model.ErrInvalidImageType):
			httputil.WriteBadRequestWithCode(w, model.CodeInvalidImageType, "Unsupported image type")
		default:
			log.Printf("[ERROR] Presign photo handler: user=%s err=%v", userID, err)
			httputil.WriteInternalError(w, "Failed to presign upload")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}
