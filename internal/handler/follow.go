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

type FollowHandler struct {
	follows *mutation.Follows
}

func NewFollowHandler(follows *mutation.Follows) *FollowHandler {
	return &FollowHandler{follows: follows}
}

// followStateResponse is the optimistic two-sided state after a follow
// change.
type followStateResponse struct {
	UserID         string `json:"user_id"`
	IsFollowing    bool   `json:"is_following"`
	FollowerCount  int64  `json:"follower_count"`  // Target's followers
	FollowingCount int64  `json:"following_count"` // Viewer's following
}

// Follow handles POST /users/{id}/follow
// Applies the two-sided counter update locally and responds before the edge
// writes settle.
func (h *FollowHandler) Follow(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, true)
}

// Unfollow handles DELETE /users/{id}/follow
func (h *FollowHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, false)
}

func (h *FollowHandler) change(w http.ResponseWriter, r *http.Request, follow bool) {
	viewerID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	targetID := chi.URLParam(r, "id")

	var err error
	if follow {
		_, err = h.follows.Follow(r.Context(), viewerID, targetID)
	} else {
		_, err = h.follows.Unfollow(r.Context(), viewerID, targetID)
	}
	if err != nil {
		switch {
		case errors.Is(err, model.ErrCannotFollowSelf):
			httputil.WriteBadRequest(w, "Cannot follow yourself")
		case errors.Is(err, model.ErrAlreadyFollowing):
			httputil.WriteConflict(w, "Already following this user")
		case errors.Is(err, model.ErrNotFollowing):
			httputil.WriteConflict(w, "Not following this user")
		default:
			log.Printf("[ERROR] Follow handler: viewer=%s target=%s follow=%v err=%v", viewerID, targetID, follow, err)
			httputil.WriteInternalError(w, "Failed to update follow")
		}
		return
	}

	followerCount, _ := h.follows.Counts(viewerID, targetID)
	_, followingCount := h.follows.Counts(viewerID, viewerID)

	httputil.WriteJSON(w, http.StatusOK, followStateResponse{
		UserID:         targetID,
		IsFollowing:    h.follows.IsFollowing(viewerID, targetID),
		FollowerCount:  followerCount,
		FollowingCount: followingCount,
	})
}
