package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stampbook-app/stampbook-backend/internal/httputil"
	"github.com/stampbook-app/stampbook-backend/internal/model"
	"github.com/stampbook-app/stampbook-backend/internal/mutation"
	"github.com/stampbook-app/stampbook-backend/internal/repository"
	"github.com/stampbook-app/stampbook-backend/internal/transport/http/middleware"
)

type CommentHandler struct {
	comments    *mutation.Comments
	commentRepo repository.CommentRepository
	userRepo    repository.UserRepository
}

func NewCommentHandler(
	comments *mutation.Comments,
	commentRepo repository.CommentRepository,
	userRepo repository.UserRepository,
) *CommentHandler {
	return &CommentHandler{
		comments:    comments,
		commentRepo: commentRepo,
		userRepo:    userRepo,
	}
}

// Create handles POST /posts/{id}/comments
// Appends a comment optimistically and returns the provisional comment.
func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	postID := chi.URLParam(r, "id")

	var req model.CreateCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	comment, _, err := h.comments.Add(r.Context(), userID, postID, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrContentRequired):
			httputil.WriteBadRequest(w, "Comment content is required")
		case errors.Is(err, model.ErrContentTooLong):
			httputil.WriteBadRequest(w, "Comment too long (max 2200 characters)")
		case errors.Is(err, model.ErrInvalidPostID):
			httputil.WriteBadRequest(w, "Invalid post ID")
		default:
			log.Printf("[ERROR] Create comment handler: user=%s post=%s err=%v", userID, postID, err)
			httputil.WriteInternalError(w, "Failed to create comment")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, comment)
}

// Delete handles DELETE /posts/{id}/comments/{commentID}
// Only the comment author or the post owner can delete.
func (h *CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	postID := chi.URLParam(r, "id")
	commentID := chi.URLParam(r, "commentID")

	_, err := h.comments.Delete(r.Context(), userID, postID, commentID)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrInvalidPostID):
			httputil.WriteBadRequest(w, "Invalid post ID")
		case errors.Is(err, model.ErrCommentNotFound):
			httputil.WriteNotFound(w, "Comment not found")
		case errors.Is(err, model.ErrNotCommentOwner):
			httputil.WriteForbidden(w, "You can only delete your own comments")
		default:
			log.Printf("[ERROR] Delete comment handler: user=%s post=%s comment=%s err=%v", userID, postID, commentID, err)
			httputil.WriteInternalError(w, "Failed to delete comment")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Comment deleted successfully",
	})
}

// List handles GET /posts/{id}/comments
// Returns comments oldest-first with cursor pagination, joined with author
// summaries.
func (h *CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.GetUserIDFromContext(r.Context()); !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	postID := chi.URLParam(r, "id")
	ownerID, stampID, err := model.ParsePostID(postID)
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid post ID")
		return
	}

	var cursor *time.Time
	if c := r.URL.Query().Get("cursor"); c != "" {
		t, err := time.Parse(time.RFC3339Nano, c)
		if err != nil {
			httputil.WriteBadRequest(w, "Invalid cursor parameter")
			return
		}
		cursor = &t
	}

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 {
			httputil.WriteBadRequest(w, "Invalid limit parameter")
			return
		}
		if parsed > 50 {
			parsed = 50
		}
		limit = parsed
	}

	comments, next, err := h.commentRepo.ListByPost(r.Context(), ownerID, stampID, cursor, limit)
	if err != nil {
		log.Printf("[ERROR] List comments handler: post=%s err=%v", postID, err)
		httputil.WriteInternalError(w, "Failed to list comments")
		return
	}

	h.joinAuthors(r, comments)

	resp := model.CommentListResponse{
		Comments: comments,
		HasMore:  next != nil,
	}
	if next != nil {
		c := next.Format(time.RFC3339Nano)
		resp.NextCursor = &c
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// joinAuthors attaches author summaries in one batch read. A failed join
// leaves the summaries empty rather than failing the list.
func (h *CommentHandler) joinAuthors(r *http.Request, comments []model.Comment) {
	if len(comments) == 0 {
		return
	}

	idSet := make(map[string]struct{})
	for _, c := range comments {
		idSet[c.UserID] = struct{}{}
	}
	ids := make([]string, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}

	users, err := h.userRepo.GetByIDs(r.Context(), ids)
	if err != nil {
		log.Printf("[ERROR] Comment author join failed: %v", err)
		return
	}

	for i := range comments {
		if u, ok := users[comments[i].UserID]; ok {
			summary := u.Summary()
			comments[i].Author = &summary
		}
	}
}
