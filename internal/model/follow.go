package model

import (
	"errors"
	"time"
)

// FollowEdge is one directed relationship edge. The same logical edge is
// stored twice: under the follower's `following` subcollection and under the
// followee's `followers` subcollection. FolloweeID and FollowerID are
// repeated inside the documents so collection-group queries can match them.
type FollowEdge struct {
	FollowerID string    `firestore:"followerId" json:"follower_id"`
	FolloweeID string    `firestore:"followeeId" json:"followee_id"`
	CreatedAt  time.Time `firestore:"createdAt" json:"created_at"`
}

// FollowListResponse is the paginated follower/following list response.
type FollowListResponse struct {
	Users      []UserSummary `json:"users"`
	NextCursor *string       `json:"next_cursor,omitempty"`
	HasMore    bool          `json:"has_more"`
}

var (
	ErrAlreadyFollowing = errors.New("already following this user")
	ErrNotFollowing     = errors.New("not following this user")
	ErrCannotFollowSelf = errors.New("cannot follow yourself")
)
