package model

import (
	"errors"
	"time"
)

// Comment represents a comment document under a collected stamp.
type Comment struct {
	ID        string       `firestore:"-" json:"id"`
	PostID    string       `firestore:"postId" json:"post_id"`
	UserID    string       `firestore:"userId" json:"-"`
	Content   string       `firestore:"content" json:"content"`
	CreatedAt time.Time    `firestore:"createdAt" json:"created_at"`
	Author    *UserSummary `firestore:"-" json:"author,omitempty"` // Joined field
}

// CreateCommentRequest is the request body for creating a comment.
type CreateCommentRequest struct {
	Content string `json:"content"`
}

// CommentListResponse is the paginated comment list response.
type CommentListResponse struct {
	Comments   []Comment `json:"comments"`
	NextCursor *string   `json:"next_cursor,omitempty"`
	HasMore    bool      `json:"has_more"`
}

// Comment constraints
const (
	MaxCommentLength = 2200
)

// Comment errors
var (
	ErrCommentNotFound = errors.New("comment not found")
	ErrNotCommentOwner = errors.New("not allowed to delete this comment")
	ErrContentRequired = errors.New("comment content is required")
	ErrContentTooLong  = errors.New("comment content too long")
)
