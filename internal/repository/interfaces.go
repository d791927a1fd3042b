package repository

import (
	"context"
	"time"

	"github.com/stampbook-app/stampbook-backend/internal/cache"
	"github.com/stampbook-app/stampbook-backend/internal/model"
)

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]*model.User, error)
}

type StampRepository interface {
	GetByID(ctx context.Context, id string) (*model.Stamp, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]*model.Stamp, error)
}

type CollectedRepository interface {
	// Create writes the collected-stamp record and bumps the owner's
	// collectedCount.
	Create(ctx context.Context, rec *model.CollectedStamp) error
	Delete(ctx context.Context, ownerID, stampID string) error
	GetByOwnerAndStamp(ctx context.Context, ownerID, stampID string) (*model.CollectedStamp, error)
	GetByPostIDs(ctx context.Context, postIDs []string) ([]model.CollectedStamp, error)
	// GetRecentByOwner returns recent collections as (postID, timestamp)
	// pairs for feed cache warming and backfill.
	GetRecentByOwner(ctx context.Context, ownerID string, limit int) ([]cache.PostScore, error)
	// GetOwnerPage paginates one owner's collections newest-first ("mine"
	// feed and direct fallback).
	GetOwnerPage(ctx context.Context, ownerID string, before *time.Time, limit int) ([]model.CollectedStamp, error)
}

type LikeRepository interface {
	// Like creates the like document and increments the denormalized
	// likeCount. The two writes are separate; a failed counter bump is
	// papered over by the counter cache until the next refresh.
	Like(ctx context.Context, ownerID, stampID, viewerID string) error
	Unlike(ctx context.Context, ownerID, stampID, viewerID string) error
	// CheckLikes reports which of the given posts the viewer has liked.
	CheckLikes(ctx context.Context, viewerID string, postIDs []string) (map[string]bool, error)
}

type CommentRepository interface {
	Add(ctx context.Context, ownerID, stampID string, comment *model.Comment) error
	Delete(ctx context.Context, ownerID, stampID, commentID string) error
	GetByID(ctx context.Context, ownerID, stampID, commentID string) (*model.Comment, error)
	ListByPost(ctx context.Context, ownerID, stampID string, cursor *time.Time, limit int) ([]model.Comment, *time.Time, error)
}

type FollowRepository interface {
	// Follow writes both edge documents in one batch, then bumps the two
	// profile counters as independent writes. Either counter write can fail
	// after the edges land; that drift is what the reconcile job repairs.
	Follow(ctx context.Context, followerID, followeeID string) error
	Unfollow(ctx context.Context, followerID, followeeID string) error
	Exists(ctx context.Context, followerID, followeeID string) (bool, error)
	CheckFollows(ctx context.Context, followerID string, followeeIDs []string) (map[string]bool, error)
	GetFolloweeIDs(ctx context.Context, userID string) ([]string, error)
	GetFollowerIDs(ctx context.Context, userID string) ([]string, error)
	GetFollowers(ctx context.Context, userID string, cursor *time.Time, limit int) ([]model.UserSummary, *time.Time, error)
	GetFollowing(ctx context.Context, userID string, cursor *time.Time, limit int) ([]model.UserSummary, *time.Time, error)
}
