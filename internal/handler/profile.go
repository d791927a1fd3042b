package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/stampbook-app/stampbook-backend/internal/httputil"
	"github.com/stampbook-app/stampbook-backend/internal/model"
	"github.com/stampbook-app/stampbook-backend/internal/service"
	"github.com/stampbook-app/stampbook-backend/internal/transport/http/middleware"
)

type ProfileHandler struct {
	profiles *service.ProfileService
}

func NewProfileHandler(profiles *service.ProfileService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// GetProfile handles GET /users/{id}
// Returns the profile with relationship state and locally merged counters.
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	userID := chi.URLParam(r, "id")

	profile, err := h.profiles.GetProfile(r.Context(), viewerID, userID)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			httputil.WriteNotFound(w, "User not found")
			return
		}
		log.Printf("[ERROR] GetProfile handler: user=%s err=%v", userID, err)
		httputil.WriteInternalError(w, "Failed to get profile")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, profile)
}

// GetFollowers handles GET /users/{id}/followers
func (h *ProfileHandler) GetFollowers(w http.ResponseWriter, r *http.Request) {
	h.edgeList(w, r, h.profiles.GetFollowers)
}

// GetFollowing handles GET /users/{id}/following
func (h *ProfileHandler) GetFollowing(w http.ResponseWriter, r *http.Request) {
	h.edgeList(w, r, h.profiles.GetFollowing)
}

func (h *ProfileHandler) edgeList(
	w http.ResponseWriter,
	r *http.Request,
	fetch func(ctx context.Context, userID string, cursor *string, limit int) (*model.FollowListResponse, error),
) {
	if _, ok := middleware.GetUserIDFromContext(r.Context()); !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	userID := chi.URLParam(r, "id")

	var cursor *string
	if c := r.URL.Query().Get("cursor"); c != "" {
		cursor = &c
	}

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 {
			httputil.WriteBadRequest(w, "Invalid limit parameter")
			return
		}
		limit = parsed
	}

	resp, err := fetch(r.Context(), userID, cursor, limit)
	if err != nil {
		log.Printf("[ERROR] Edge list handler: user=%s err=%v", userID, err)
		httputil.WriteInternalError(w, "Failed to list users")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}
