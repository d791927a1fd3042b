package model

import (
	"errors"
	"time"
)

// User represents a profile document in the `users` collection.
//
// FollowerCount and FollowingCount are denormalized fan-out counters. They are
// maintained by the follow writer but can drift from the edge subcollections
// when one of the counter writes fails; the reconcile job repairs them.
type User struct {
	ID             string    `firestore:"-" json:"id"`
	Username       string    `firestore:"username" json:"username"`
	DisplayName    *string   `firestore:"displayName" json:"display_name"`
	AvatarURL      *string   `firestore:"avatarUrl" json:"avatar_url"`
	Bio            *string   `firestore:"bio" json:"bio"`
	FollowerCount  int64     `firestore:"followerCount" json:"follower_count"`
	FollowingCount int64     `firestore:"followingCount" json:"following_count"`
	CollectedCount int64     `firestore:"collectedCount" json:"collected_count"`
	CreatedAt      time.Time `firestore:"createdAt" json:"created_at"`
}

// UserSummary is the trimmed profile shape embedded in feed posts and lists.
type UserSummary struct {
	ID          string  `json:"id"`
	Username    string  `json:"username"`
	DisplayName *string `json:"display_name"`
	AvatarURL   *string `json:"avatar_url"`
	IsFollowing bool    `json:"is_following"`
}

// Summary converts a full profile into its embedded form.
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
	}
}

// ProfileResponse is a full profile enriched with the viewer's relationship
// and the locally cached counter values.
type ProfileResponse struct {
	User        User `json:"user"`
	IsFollowing bool `json:"is_following"`
	IsOwn       bool `json:"is_own"`
}

var (
	// ErrUserNotFound is returned when a profile document cannot be found
	ErrUserNotFound = errors.New("user not found")
)
