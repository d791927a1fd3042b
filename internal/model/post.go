package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Post is a synthetic feed item: one user's collection of one stamp. It has
// no stored document of its own; it is recomputed on every feed load from the
// owner's collected-stamp record plus live profile/stamp data and the current
// counter values.
type Post struct {
	ID           string      `json:"id"` // "{ownerId}-{stampId}"
	OwnerID      string      `json:"owner_id"`
	StampID      string      `json:"stamp_id"`
	StampName    string      `json:"stamp_name"`
	LocationText string      `json:"location_text"`
	CollectedAt  time.Time   `json:"collected_at"`
	PhotoURLs    []string    `json:"photo_urls"`
	LikeCount    int64       `json:"like_count"`
	CommentCount int64       `json:"comment_count"`
	IsLiked      bool        `json:"is_liked"`
	IsOwn        bool        `json:"is_own"`
	Author       UserSummary `json:"author"`
}

// FeedResponse is the paginated feed response.
type FeedResponse struct {
	Posts      []Post  `json:"posts"`
	NextCursor *string `json:"next_cursor,omitempty"`
	HasMore    bool    `json:"has_more"`
}

// CollectRequest is the request body for collecting a stamp.
type CollectRequest struct {
	PhotoKeys []string `json:"photo_keys"`
}

// Post errors
var (
	ErrPostNotFound  = errors.New("post not found")
	ErrInvalidPostID = errors.New("invalid post id")
)

// PostID builds the synthetic post identifier from its two halves.
func PostID(ownerID, stampID string) string {
	return ownerID + "-" + stampID
}

// ParsePostID splits "{ownerId}-{stampId}". Owner IDs never contain "-"
// (Firestore auto IDs are alphanumeric), so the first separator wins and the
// stamp ID keeps any further dashes.
func ParsePostID(postID string) (ownerID, stampID string, err error) {
	owner, stamp, found := strings.Cut(postID, "-")
	if !found || owner == "" || stamp == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidPostID, postID)
	}
	return owner, stamp, nil
}
