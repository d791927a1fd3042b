package handler

import (
	"log"
	"net/http"

	"github.com/stampbook-app/stampbook-backend/internal/httputil"
	"github.com/stampbook-app/stampbook-backend/internal/service"
	"github.com/stampbook-app/stampbook-backend/internal/transport/http/middleware"
)

type SessionHandler struct {
	sessions *service.SessionService
}

func NewSessionHandler(sessions *service.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// SignOut handles POST /session/sign-out
// Clears every local counter store so the next account starts from
// zero-defaults.
func (h *SessionHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	if err := h.sessions.SignOut(userID); err != nil {
		log.Printf("[ERROR] SignOut handler: user=%s err=%v", userID, err)
		httputil.WriteInternalError(w, "Failed to sign out")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Signed out successfully",
	})
}
