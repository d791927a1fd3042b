package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/stampbook-app/stampbook-backend/internal/cache"
	"github.com/stampbook-app/stampbook-backend/internal/queue"
)

// FollowerProvider defines the interface for fetching followers.
// This abstracts the repository layer so workers don't depend on Firestore directly.
type FollowerProvider interface {
	// GetFollowerIDs returns all follower IDs for a given user.
	GetFollowerIDs(ctx context.Context, userID string) ([]string, error)
}

// RecentPostsProvider defines the interface for fetching a user's recent
// collected stamps. Used for backfilling feeds when a user follows someone.
type RecentPostsProvider interface {
	// GetRecentByOwner returns recent posts by an owner as (postID, timestamp) pairs.
	GetRecentByOwner(ctx context.Context, ownerID string, limit int) ([]cache.PostScore, error)
}

// Handler processes feed events from the queue.
type Handler struct {
	feedCache        cache.FeedCache
	followerProvider FollowerProvider
	postsProvider    RecentPostsProvider
}

// NewHandler creates a new event handler.
func NewHandler(
	feedCache cache.FeedCache,
	followerProvider FollowerProvider,
	postsProvider RecentPostsProvider,
) *Handler {
	return &Handler{
		feedCache:        feedCache,
		followerProvider: followerProvider,
		postsProvider:    postsProvider,
	}
}

// HandleEvent routes an event to the appropriate handler based on type.
func (h *Handler) HandleEvent(ctx context.Context, event queue.FeedEvent) error {
	startTime := time.Now()
	var err error

	switch event.Type {
	case queue.EventStampCollected:
		err = h.handleStampCollected(ctx, event)
	case queue.EventCollectionRemoved:
		err = h.handleCollectionRemoved(ctx, event)
	case queue.EventUserFollowed:
		err = h.handleUserFollowed(ctx, event)
	case queue.EventUserUnfollowed:
		err = h.handleUserUnfollowed(ctx, event)
	default:
		log.Printf("[Worker] Unknown event type: %s", event.Type)
		return fmt.Errorf("unknown event type: %s", event.Type)
	}

	if err != nil {
		log.Printf("[Worker] HandleEvent FAILED: type=%s duration=%v err=%v",
			event.Type, time.Since(startTime), err)
		return err
	}

	log.Printf("[Worker] HandleEvent OK: type=%s duration=%v", event.Type, time.Since(startTime))
	return nil
}

// handleStampCollected fans out a newly collected stamp to all followers'
// feed caches.
func (h *Handler) handleStampCollected(ctx context.Context, event queue.FeedEvent) error {
	log.Printf("[Worker] StampCollected: post=%s owner=%s", event.PostID, event.OwnerID)

	// Get all followers of the owner
	followers, err := h.followerProvider.GetFollowerIDs(ctx, event.OwnerID)
	if err != nil {
		return fmt.Errorf("get followers: %w", err)
	}

	log.Printf("[Worker] StampCollected: fanning out to %d followers", len(followers))

	// Fan-out: add post to each follower's feed cache
	var failCount int
	for _, followerID := range followers {
		err := h.feedCache.AddPost(ctx, followerID, event.PostID, event.Timestamp)
		if err != nil {
			log.Printf("[Worker] StampCollected: failed to add to user=%s err=%v", followerID, err)
			failCount++
			// Continue with other followers - don't fail entire fan-out
		}
	}

	// Also add to the owner's own feed (they see their own collections)
	if err := h.feedCache.AddPost(ctx, event.OwnerID, event.PostID, event.Timestamp); err != nil {
		log.Printf("[Worker] StampCollected: failed to add to owner's own feed err=%v", err)
	}

	log.Printf("[Worker] StampCollected DONE: post=%s fanout=%d failed=%d",
		event.PostID, len(followers)+1, failCount)

	return nil
}

// handleCollectionRemoved removes a post from all followers' feed caches.
func (h *Handler) handleCollectionRemoved(ctx context.Context, event queue.FeedEvent) error {
	log.Printf("[Worker] CollectionRemoved: post=%s owner=%s", event.PostID, event.OwnerID)

	followers, err := h.followerProvider.GetFollowerIDs(ctx, event.OwnerID)
	if err != nil {
		return fmt.Errorf("get followers: %w", err)
	}

	log.Printf("[Worker] CollectionRemoved: removing from %d followers' feeds", len(followers))

	var failCount int
	for _, followerID := range followers {
		err := h.feedCache.RemovePost(ctx, followerID, event.PostID)
		if err != nil {
			log.Printf("[Worker] CollectionRemoved: failed to remove from user=%s err=%v", followerID, err)
			failCount++
		}
	}

	// Also remove from the owner's own feed
	if err := h.feedCache.RemovePost(ctx, event.OwnerID, event.PostID); err != nil {
		log.Printf("[Worker] CollectionRemoved: failed to remove from owner's own feed err=%v", err)
	}

	log.Printf("[Worker] CollectionRemoved DONE: post=%s fanout=%d failed=%d",
		event.PostID, len(followers)+1, failCount)

	return nil
}

// handleUserFollowed backfills the follower's feed with the followee's recent
// collections.
func (h *Handler) handleUserFollowed(ctx context.Context, event queue.FeedEvent) error {
	log.Printf("[Worker] UserFollowed: follower=%s followee=%s", event.FollowerID, event.FolloweeID)

	// Fetch the followee's most recent collections
	const backfillLimit = 20
	posts, err := h.postsProvider.GetRecentByOwner(ctx, event.FolloweeID, backfillLimit)
	if err != nil {
		return fmt.Errorf("get recent posts: %w", err)
	}

	if len(posts) == 0 {
		log.Printf("[Worker] UserFollowed: followee=%s has no posts to backfill", event.FolloweeID)
		return nil
	}

	log.Printf("[Worker] UserFollowed: backfilling %d posts to follower=%s", len(posts), event.FollowerID)

	var failCount int
	for _, p := range posts {
		err := h.feedCache.AddPost(ctx, event.FollowerID, p.PostID, p.Timestamp)
		if err != nil {
			log.Printf("[Worker] UserFollowed: failed to add post=%s err=%v", p.PostID, err)
			failCount++
		}
	}

	log.Printf("[Worker] UserFollowed DONE: follower=%s backfilled=%d failed=%d",
		event.FollowerID, len(posts), failCount)

	return nil
}

// handleUserUnfollowed removes the followee's posts from the follower's feed.
// Post IDs are prefixed with the owner's ID, so the cache can drop them all
// without a repository round-trip.
func (h *Handler) handleUserUnfollowed(ctx context.Context, event queue.FeedEvent) error {
	log.Printf("[Worker] UserUnfollowed: follower=%s followee=%s", event.FollowerID, event.FolloweeID)

	if err := h.feedCache.RemoveOwner(ctx, event.FollowerID, event.FolloweeID); err != nil {
		return fmt.Errorf("remove owner posts: %w", err)
	}

	log.Printf("[Worker] UserUnfollowed DONE: follower=%s followee=%s", event.FollowerID, event.FolloweeID)
	return nil
}
