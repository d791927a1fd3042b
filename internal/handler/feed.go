package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/stampbook-app/stampbook-backend/internal/feed"
	"github.com/stampbook-app/stampbook-backend/internal/httputil"
	"github.com/stampbook-app/stampbook-backend/internal/model"
	"github.com/stampbook-app/stampbook-backend/internal/transport/http/middleware"
)

type FeedHandler struct {
	feedService *feed.Service
}

func NewFeedHandler(feedService *feed.Service) *FeedHandler {
	return &FeedHandler{
		feedService: feedService,
	}
}

// GetFeed handles GET /feed
// Returns a paginated feed for the authenticated user.
//
// Query params:
//   - scope: "all" (default) for the home feed, "mine" for own collections
//   - cursor: optional pagination cursor
//   - limit: optional, posts per page (default 10, max 50)
func (h *FeedHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	var cursor *string
	if c := r.URL.Query().Get("cursor"); c != "" {
		cursor = &c
	}

	limit := 10
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 {
			httputil.WriteBadRequest(w, "Invalid limit parameter")
			return
		}
		limit = parsed
	}

	scope := r.URL.Query().Get("scope")
	if scope == "" {
		scope = "all"
	}

	var (
		resp *model.FeedResponse
		err  error
	)
	switch scope {
	case "all":
		resp, err = h.feedService.GetFeed(r.Context(), userID, cursor, limit)
	case "mine":
		resp, err = h.feedService.GetOwnFeed(r.Context(), userID, cursor, limit)
	default:
		httputil.WriteBadRequest(w, "Invalid scope parameter")
		return
	}
	if err != nil {
		log.Printf("[ERROR] GetFeed handler: user=%s scope=%s err=%v", userID, scope, err)
		httputil.WriteInternalError(w, "Failed to get feed")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// Refresh handles POST /feed/refresh
// Rebuilds the feed cache and returns the first page. Refreshes inside the
// debounce window serve the existing cache unless force=true.
func (h *FeedHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	force := r.URL.Query().Get("force") == "true"

	limit := 10
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 {
			httputil.WriteBadRequest(w, "Invalid limit parameter")
			return
		}
		limit = parsed
	}

	resp, err := h.feedService.Refresh(r.Context(), userID, force, limit)
	if err != nil {
		log.Printf("[ERROR] Refresh handler: user=%s err=%v", userID, err)
		httputil.WriteInternalError(w, "Failed to refresh feed")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// GetPost handles GET /posts/{id}
// Returns a single post by its "{ownerId}-{stampId}" identifier.
func (h *FeedHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	postID := chi.URLParam(r, "id")

	post, err := h.feedService.FetchSinglePost(r.Context(), userID, postID)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrInvalidPostID):
			httputil.WriteBadRequest(w, "Invalid post ID")
		case errors.Is(err, model.ErrNotCollected), errors.Is(err, model.ErrPostNotFound):
			httputil.WriteNotFound(w, "Post not found")
		default:
			log.Printf("[ERROR] GetPost handler: post=%s err=%v", postID, err)
			httputil.WriteInternalError(w, "Failed to get post")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, post)
}
