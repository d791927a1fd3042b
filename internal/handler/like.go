package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stampbook-app/stampbook-backend/internal/httputil"
	"github.com/stampbook-app/stampbook-backend/internal/model"
	"github.com/stampbook-app/stampbook-backend/internal/mutation"
	"github.com/stampbook-app/stampbook-backend/internal/transport/http/middleware"
)

type LikeHandler struct {
	likes *mutation.Likes
}

func NewLikeHandler(likes *mutation.Likes) *LikeHandler {
	return &LikeHandler{likes: likes}
}

// likeStateResponse is the optimistic state returned immediately after a
// toggle, before the remote write settles.
type likeStateResponse struct {
	PostID    string `json:"post_id"`
	IsLiked   bool   `json:"is_liked"`
	LikeCount int64  `json:"like_count"`
}

// Toggle handles POST /posts/{id}/like
// Flips the viewer's like state and responds with the optimistic result. The
// remote write settles in the background; a failure rolls the counter back
// and surfaces on the events stream.
func (h *LikeHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	postID := chi.URLParam(r, "id")

	state, _, err := h.likes.Toggle(r.Context(), userID, postID)
	if err != nil {
		if errors.Is(err, model.ErrInvalidPostID) {
			httputil.WriteBadRequest(w, "Invalid post ID")
			return
		}
		log.Printf("[ERROR] Toggle like handler: user=%s post=%s err=%v", userID, postID, err)
		httputil.WriteInternalError(w, "Failed to toggle like")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, likeStateResponse{
		PostID:    postID,
		IsLiked:   state.Flag,
		LikeCount: state.Count,
	})
}

// State handles GET /posts/{id}/like
// Returns the viewer's current local like state for a post.
func (h *LikeHandler) State(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	postID := chi.URLParam(r, "id")
	if _, _, err := model.ParsePostID(postID); err != nil {
		httputil.WriteBadRequest(w, "Invalid post ID")
		return
	}

	state := h.likes.State(userID, postID)
	httputil.WriteJSON(w, http.StatusOK, likeStateResponse{
		PostID:    postID,
		IsLiked:   state.Flag,
		LikeCount: state.Count,
	})
}
