package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// FeedCachePrefix is the key prefix for per-viewer feed caches
	FeedCachePrefix = "feed:user:"

	// FeedCacheCap is the maximum number of posts to cache per viewer
	FeedCacheCap = 500

	// FeedCacheTTL is the TTL for feed cache (7 days)
	FeedCacheTTL = 7 * 24 * time.Hour
)

// PostScore represents a post with its collection-time score for caching.
type PostScore struct {
	PostID    string // "{ownerId}-{stampId}"
	Timestamp int64  // Unix timestamp of collectedAt
}

// FeedCache defines the interface for feed cache operations.
// Using an interface enables testing with mocks and potential future backends.
type FeedCache interface {
	// AddPost adds a post to a viewer's feed cache.
	// Uses pipeline: ZADD + ZREMRANGEBYRANK (maintain cap) + EXPIRE (refresh TTL)
	AddPost(ctx context.Context, viewerID, postID string, timestamp int64) error

	// RemovePost removes a post from a viewer's feed cache.
	RemovePost(ctx context.Context, viewerID, postID string) error

	// RemoveOwner removes every post by one owner from a viewer's feed
	// cache (unfollow cleanup). Owner posts share the "{ownerId}-" prefix.
	RemoveOwner(ctx context.Context, viewerID, ownerID string) error

	// GetFeed retrieves post IDs from a viewer's feed cache.
	// If cursorScore is nil, returns newest posts. Otherwise returns posts
	// older than the cursor (exclusive).
	GetFeed(ctx context.Context, viewerID string, cursorScore *float64, limit int) (postIDs []string, scores []float64, err error)

	// WarmCache bulk-inserts posts into a viewer's feed cache.
	WarmCache(ctx context.Context, viewerID string, posts []PostScore) error

	// Exists checks if a viewer has a feed cache entry. False means a new
	// viewer or an expired TTL; the service layer warms the cache then.
	Exists(ctx context.Context, viewerID string) (bool, error)

	// GetScore returns a post's score in the viewer's feed, with found=false
	// when the post isn't cached.
	GetScore(ctx context.Context, viewerID, postID string) (score int64, found bool, err error)

	// Size returns the number of posts in the viewer's feed cache.
	Size(ctx context.Context, viewerID string) (int64, error)
}

// RedisFeedCache implements FeedCache using Redis Sorted Sets.
type RedisFeedCache struct {
	client *redis.Client
}

// NewFeedCache creates a new FeedCache backed by Redis.
func NewFeedCache(client *redis.Client) FeedCache {
	return &RedisFeedCache{client: client}
}

func feedKey(viewerID string) string {
	return FeedCachePrefix + viewerID
}

// AddPost adds a post to a viewer's feed cache using a pipeline:
// ZADD + ZREMRANGEBYRANK (trim to cap) + EXPIRE (refresh TTL).
func (c *RedisFeedCache) AddPost(ctx context.Context, viewerID, postID string, timestamp int64) error {
	key := feedKey(viewerID)

	pipe := c.client.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(timestamp), Member: postID})
	// Keep the newest FeedCacheCap scores, drop the rest.
	pipe.ZRemRangeByRank(ctx, key, 0, int64(-FeedCacheCap-1))
	pipe.Expire(ctx, key, FeedCacheTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[FeedCache] AddPost FAILED: viewer=%s post=%s err=%v", viewerID, postID, err)
		return fmt.Errorf("add post to feed: %w", err)
	}
	return nil
}

func (c *RedisFeedCache) RemovePost(ctx context.Context, viewerID, postID string) error {
	if err := c.client.ZRem(ctx, feedKey(viewerID), postID).Err(); err != nil {
		log.Printf("[FeedCache] RemovePost FAILED: viewer=%s post=%s err=%v", viewerID, postID, err)
		return fmt.Errorf("remove post from feed: %w", err)
	}
	return nil
}

// RemoveOwner scans the viewer's ZSET and removes members with the owner's
// prefix. Feeds are capped at FeedCacheCap, so the scan is bounded.
func (c *RedisFeedCache) RemoveOwner(ctx context.Context, viewerID, ownerID string) error {
	key := feedKey(viewerID)

	members, err := c.client.ZRange(ctx, key, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("scan feed for owner removal: %w", err)
	}

	prefix := ownerID + "-"
	var toRemove []interface{}
	for _, m := range members {
		if len(m) > len(prefix) && m[:len(prefix)] == prefix {
			toRemove = append(toRemove, m)
		}
	}
	if len(toRemove) == 0 {
		return nil
	}

	if err := c.client.ZRem(ctx, key, toRemove...).Err(); err != nil {
		return fmt.Errorf("remove owner posts from feed: %w", err)
	}

	log.Printf("[FeedCache] RemoveOwner OK: viewer=%s owner=%s removed=%d", viewerID, ownerID, len(toRemove))
	return nil
}

// GetFeed retrieves post IDs from a viewer's feed cache.
// Without a cursor: newest posts (ZREVRANGE). With one: posts strictly older
// than the cursor score (ZREVRANGEBYSCORE with an exclusive max).
func (c *RedisFeedCache) GetFeed(ctx context.Context, viewerID string, cursorScore *float64, limit int) ([]string, []float64, error) {
	key := feedKey(viewerID)
	startTime := time.Now()

	var results []redis.Z
	var err error

	if cursorScore == nil {
		results, err = c.client.ZRevRangeWithScores(ctx, key, 0, int64(limit-1)).Result()
	} else {
		results, err = c.client.ZRevRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{
			Min:    "-inf",
			Max:    fmt.Sprintf("(%f", *cursorScore), // exclusive
			Offset: 0,
			Count:  int64(limit),
		}).Result()
	}
	if err != nil {
		log.Printf("[FeedCache] GetFeed FAILED: viewer=%s err=%v", viewerID, err)
		return nil, nil, fmt.Errorf("get feed: %w", err)
	}

	// Refresh TTL on access
	c.client.Expire(ctx, key, FeedCacheTTL)

	postIDs := make([]string, len(results))
	scores := make([]float64, len(results))
	for i, z := range results {
		id, ok := z.Member.(string)
		if !ok {
			return nil, nil, fmt.Errorf("unexpected member type %T", z.Member)
		}
		postIDs[i] = id
		scores[i] = z.Score
	}

	log.Printf("[FeedCache] GetFeed OK: viewer=%s returned=%d duration=%v",
		viewerID, len(postIDs), time.Since(startTime))
	return postIDs, scores, nil
}

// WarmCache bulk-inserts posts into a viewer's feed cache using a pipeline.
func (c *RedisFeedCache) WarmCache(ctx context.Context, viewerID string, posts []PostScore) error {
	if len(posts) == 0 {
		return nil
	}

	key := feedKey(viewerID)
	startTime := time.Now()

	members := make([]redis.Z, len(posts))
	for i, p := range posts {
		members[i] = redis.Z{Score: float64(p.Timestamp), Member: p.PostID}
	}

	pipe := c.client.Pipeline()
	pipe.ZAdd(ctx, key, members...)
	pipe.ZRemRangeByRank(ctx, key, 0, int64(-FeedCacheCap-1))
	pipe.Expire(ctx, key, FeedCacheTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[FeedCache] WarmCache FAILED: viewer=%s posts=%d err=%v", viewerID, len(posts), err)
		return fmt.Errorf("warm cache: %w", err)
	}

	log.Printf("[FeedCache] WarmCache OK: viewer=%s posts=%d duration=%v",
		viewerID, len(posts), time.Since(startTime))
	return nil
}

func (c *RedisFeedCache) Exists(ctx context.Context, viewerID string) (bool, error) {
	exists, err := c.client.Exists(ctx, feedKey(viewerID)).Result()
	if err != nil {
		return false, fmt.Errorf("check cache exists: %w", err)
	}
	return exists > 0, nil
}

func (c *RedisFeedCache) GetScore(ctx context.Context, viewerID, postID string) (int64, bool, error) {
	score, err := c.client.ZScore(ctx, feedKey(viewerID), postID).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get score: %w", err)
	}
	return int64(score), true, nil
}

func (c *RedisFeedCache) Size(ctx context.Context, viewerID string) (int64, error) {
	size, err := c.client.ZCard(ctx, feedKey(viewerID)).Result()
	if err != nil {
		return 0, fmt.Errorf("get cache size: %w", err)
	}
	return size, nil
}
