package service

import (
	"context"
	"log"

	"github.com/stampbook-app/stampbook-backend/internal/queue"
	"github.com/stampbook-app/stampbook-backend/internal/repository"
)

// FollowFanout wraps the follow repository so every successful edge write
// also publishes a feed event. It satisfies the mutation layer's remote
// writer interface, which means the event only fires after the remote write
// lands and never for a rolled-back optimistic update.
type FollowFanout struct {
	repo      repository.FollowRepository
	publisher queue.Publisher
}

func NewFollowFanout(repo repository.FollowRepository, publisher queue.Publisher) *FollowFanout {
	return &FollowFanout{repo: repo, publisher: publisher}
}

// Follow writes the edges and counters, then queues the feed backfill.
func (f *FollowFanout) Follow(ctx context.Context, followerID, followeeID string) error {
	if err := f.repo.Follow(ctx, followerID, followeeID); err != nil {
		return err
	}

	event := queue.NewUserFollowedEvent(followerID, followeeID)
	if _, err := f.publisher.Publish(ctx, queue.StreamFeed, event); err != nil {
		// Edge is durable; the follower's feed picks the posts up on the
		// next cache warm
		log.Printf("[FollowFanout] Publish failed: follower=%s followee=%s err=%v", followerID, followeeID, err)
	}
	return nil
}

// Unfollow removes the edges and counters, then queues the feed cleanup.
func (f *FollowFanout) Unfollow(ctx context.Context, followerID, followeeID string) error {
	if err := f.repo.Unfollow(ctx, followerID, followeeID); err != nil {
		return err
	}

	event := queue.NewUserUnfollowedEvent(followerID, followeeID)
	if _, err := f.publisher.Publish(ctx, queue.StreamFeed, event); err != nil {
		log.Printf("[FollowFanout] Publish failed: follower=%s followee=%s err=%v", followerID, followeeID, err)
	}
	return nil
}
