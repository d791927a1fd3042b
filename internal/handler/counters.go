package handler

import (
	"net/http"

	"github.com/stampbook-app/stampbook-backend/internal/counter"
	"github.com/stampbook-app/stampbook-backend/internal/httputil"
	"github.com/stampbook-app/stampbook-backend/internal/transport/http/middleware"
)

// CountersHandler exposes the viewer's slice of the local counter stores for
// debugging and for clients that want to bootstrap their UI from the cached
// values before the first feed load lands.
type CountersHandler struct {
	likeStore    *counter.Store
	commentStore *counter.Store
	followStore  *counter.Store
}

func NewCountersHandler(likeStore, commentStore, followStore *counter.Store) *CountersHandler {
	return &CountersHandler{
		likeStore:    likeStore,
		commentStore: commentStore,
		followStore:  followStore,
	}
}

type countersResponse struct {
	Likes    map[string]counter.Entry `json:"likes"`
	Comments map[string]counter.Entry `json:"comments"`
	Follows  map[string]counter.Entry `json:"follows"`
}

// Snapshot handles GET /counters
// Returns the authenticated viewer's cached entries across the three stores,
// keyed without the viewer prefix.
func (h *CountersHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	prefix := userID + ":"
	httputil.WriteJSON(w, http.StatusOK, countersResponse{
		Likes:    h.likeStore.SnapshotPrefix(prefix),
		Comments: h.commentStore.SnapshotPrefix(prefix),
		Follows:  h.followStore.SnapshotPrefix(prefix),
	})
}
