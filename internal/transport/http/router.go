package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/stampbook-app/stampbook-backend/internal/handler"
	"github.com/stampbook-app/stampbook-backend/internal/httputil"
	authmw "github.com/stampbook-app/stampbook-backend/internal/transport/http/middleware"
)

// RouterConfig holds the dependencies needed to create routes
type RouterConfig struct {
	FeedHandler       *handler.FeedHandler
	LikeHandler       *handler.LikeHandler
	CommentHandler    *handler.CommentHandler
	FollowHandler     *handler.FollowHandler
	CollectionHandler *handler.CollectionHandler
	ProfileHandler    *handler.ProfileHandler
	MediaHandler      *handler.MediaHandler
	SessionHandler    *handler.SessionHandler
	CountersHandler   *handler.CountersHandler
	EventsHandler     *handler.EventsHandler
	JWTSecret         string
}

// NewRouter creates and configures a new Chi router with all route groups
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	// Health check endpoint (useful for deployment/monitoring)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, 200, map[string]string{"status": "ok"})
	})

	// Everything below requires authentication
	r.Group(func(r chi.Router) {
		r.Use(authmw.AuthMiddleware(cfg.JWTSecret))

		// Feed endpoints
		r.Get("/feed", cfg.FeedHandler.GetFeed)
		r.Post("/feed/refresh", cfg.FeedHandler.Refresh)

		// Post endpoints (synthetic "{ownerId}-{stampId}" identifiers)
		r.Route("/posts/{id}", func(r chi.Router) {
			r.Get("/", cfg.FeedHandler.GetPost)
			r.Post("/like", cfg.LikeHandler.Toggle)
			r.Get("/like", cfg.LikeHandler.State)
			r.Get("/comments", cfg.CommentHandler.List)
			r.Post("/comments", cfg.CommentHandler.Create)
			r.Delete("/comments/{commentID}", cfg.CommentHandler.Delete)
		})

		// Stamp collection endpoints
		r.Post("/stamps/{id}/collect", cfg.CollectionHandler.Collect)
		r.Delete("/stamps/{id}/collect", cfg.CollectionHandler.Remove)

		// Profile endpoints
		r.Get("/users/{id}", cfg.ProfileHandler.GetProfile)
		r.Get("/users/{id}/followers", cfg.ProfileHandler.GetFollowers)
		r.Get("/users/{id}/following", cfg.ProfileHandler.GetFollowing)
		r.Post("/users/{id}/follow", cfg.FollowHandler.Follow)
		r.Delete("/users/{id}/follow", cfg.FollowHandler.Unfollow)

		// Media endpoints (direct-to-R2 uploads)
		r.Post("/media/photos/presign", cfg.MediaHandler.PresignPhoto)

		// Session endpoints
		r.Post("/session/sign-out", cfg.SessionHandler.SignOut)

		// Local counter snapshot
		r.Get("/counters", cfg.CountersHandler.Snapshot)

		// Counter event stream
		r.Get("/events", cfg.EventsHandler.Stream)
	})

	return r
}
