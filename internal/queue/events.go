package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types for the feed stream
const (
	EventStampCollected    = "stamp_collected"
	EventCollectionRemoved = "collection_removed"
	EventUserFollowed      = "user_followed"
	EventUserUnfollowed    = "user_unfollowed"
)

// Stream names
const (
	StreamFeed = "stream:feed"
)

// Consumer group name for feed workers
const (
	ConsumerGroupFeed = "feed_workers"
)

// FeedEvent represents an event published to the feed stream.
// All feed-related events share this structure.
type FeedEvent struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"` // Unix timestamp when event occurred

	// Collection events (StampCollected, CollectionRemoved)
	PostID  string `json:"post_id,omitempty"` // "{ownerId}-{stampId}"
	OwnerID string `json:"owner_id,omitempty"`

	// Follow events (UserFollowed, UserUnfollowed)
	FollowerID string `json:"follower_id,omitempty"`
	FolloweeID string `json:"followee_id,omitempty"`
}

// NewStampCollectedEvent creates an event for when a user collects a stamp.
// Worker fans the new post out to all followers' feed caches.
func NewStampCollectedEvent(postID, ownerID string) FeedEvent {
	return FeedEvent{
		Type:      EventStampCollected,
		Timestamp: time.Now().Unix(),
		PostID:    postID,
		OwnerID:   ownerID,
	}
}

// NewCollectionRemovedEvent creates an event for when a collected stamp is
// removed. Worker removes the post from all followers' feed caches.
func NewCollectionRemovedEvent(postID, ownerID string) FeedEvent {
	return FeedEvent{
		Type:      EventCollectionRemoved,
		Timestamp: time.Now().Unix(),
		PostID:    postID,
		OwnerID:   ownerID,
	}
}

// NewUserFollowedEvent creates an event for when a user follows another.
// Worker backfills the followee's recent posts into the follower's feed.
func NewUserFollowedEvent(followerID, followeeID string) FeedEvent {
	return FeedEvent{
		Type:       EventUserFollowed,
		Timestamp:  time.Now().Unix(),
		FollowerID: followerID,
		FolloweeID: followeeID,
	}
}

// NewUserUnfollowedEvent creates an event for when a user unfollows another.
// Worker removes the followee's posts from the follower's feed cache.
func NewUserUnfollowedEvent(followerID, followeeID string) FeedEvent {
	return FeedEvent{
		Type:       EventUserUnfollowed,
		Timestamp:  time.Now().Unix(),
		FollowerID: followerID,
		FolloweeID: followeeID,
	}
}

// ToMap converts the event to a map for Redis XADD.
// Redis Streams store field-value pairs, so we serialize to JSON in a "data" field.
func (e FeedEvent) ToMap() (map[string]interface{}, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return map[string]interface{}{
		"type": e.Type,
		"data": string(data),
	}, nil
}

// ParseFeedEvent parses a FeedEvent from Redis stream message values.
func ParseFeedEvent(values map[string]interface{}) (FeedEvent, error) {
	data, ok := values["data"].(string)
	if !ok {
		return FeedEvent{}, fmt.Errorf("missing or invalid 'data' field")
	}

	var event FeedEvent
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return FeedEvent{}, fmt.Errorf("unmarshal event: %w", err)
	}
	return event, nil
}
