package worker_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stampbook-app/stampbook-backend/internal/cache"
	"github.com/stampbook-app/stampbook-backend/internal/queue"
	"github.com/stampbook-app/stampbook-backend/internal/worker"
)

// =============================================================================
// Mock Implementations
// =============================================================================

// MockFollowerProvider simulates the follower repository.
type MockFollowerProvider struct {
	// followers maps userID -> list of follower IDs
	followers map[string][]string
}

func NewMockFollowerProvider() *MockFollowerProvider {
	return &MockFollowerProvider{
		followers: make(map[string][]string),
	}
}

func (m *MockFollowerProvider) AddFollower(userID, followerID string) {
	m.followers[userID] = append(m.followers[userID], followerID)
}

func (m *MockFollowerProvider) RemoveFollower(userID, followerID string) {
	followers := m.followers[userID]
	for i, id := range followers {
		if id == followerID {
			m.followers[userID] = append(followers[:i], followers[i+1:]...)
			return
		}
	}
}

func (m *MockFollowerProvider) GetFollowerIDs(ctx context.Context, userID string) ([]string, error) {
	return m.followers[userID], nil
}

// MockPostsProvider simulates the collected-stamps repository.
type MockPostsProvider struct {
	// posts maps ownerID -> list of (postID, timestamp)
	posts map[string][]cache.PostScore
}

func NewMockPostsProvider() *MockPostsProvider {
	return &MockPostsProvider{
		posts: make(map[string][]cache.PostScore),
	}
}

func (m *MockPostsProvider) AddPost(ownerID, stampID string, timestamp int64) {
	m.posts[ownerID] = append(m.posts[ownerID], cache.PostScore{
		PostID:    ownerID + "-" + stampID,
		Timestamp: timestamp,
	})
}

func (m *MockPostsProvider) GetRecentByOwner(ctx context.Context, ownerID string, limit int) ([]cache.PostScore, error) {
	posts := m.posts[ownerID]
	if len(posts) > limit {
		return posts[:limit], nil
	}
	return posts, nil
}

// =============================================================================
// Test Helpers
// =============================================================================

func setupTestRedis(t *testing.T) *redis.Client {
	redisURL := os.Getenv("TEST_REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		t.Fatalf("Failed to parse Redis URL: %v", err)
	}

	// Use DB 1 for testing to avoid conflicts with dev data
	opts.DB = 1

	client := redis.NewClient(opts)

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available, skipping test: %v", err)
	}

	client.FlushDB(ctx)

	return client
}

func cleanupTestRedis(client *redis.Client) {
	ctx := context.Background()
	client.FlushDB(ctx)
	client.Close()
}

// =============================================================================
// Integration Tests
// =============================================================================

// TestStampCollectedFanout tests that when a user collects a stamp,
// the post lands in all followers' feeds plus the owner's own.
func TestStampCollectedFanout(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(client)

	ctx := context.Background()
	feedCache := cache.NewFeedCache(client)
	mockFollowers := NewMockFollowerProvider()
	mockPosts := NewMockPostsProvider()
	handler := worker.NewHandler(feedCache, mockFollowers, mockPosts)

	// Scenario: alice has 3 followers
	ownerID := "alice"
	mockFollowers.AddFollower(ownerID, "bob")
	mockFollowers.AddFollower(ownerID, "carol")
	mockFollowers.AddFollower(ownerID, "dave")

	postID := "alice-tower-bridge"
	timestamp := time.Now().Unix()
	event := queue.FeedEvent{
		Type:      queue.EventStampCollected,
		PostID:    postID,
		OwnerID:   ownerID,
		Timestamp: timestamp,
	}

	if err := handler.HandleEvent(ctx, event); err != nil {
		t.Fatalf("HandleEvent failed: %v", err)
	}

	// Post should be in all followers' feeds AND the owner's own feed
	for _, userID := range []string{ownerID, "bob", "carol", "dave"} {
		score, found, err := feedCache.GetScore(ctx, userID, postID)
		if err != nil {
			t.Fatalf("GetScore failed for user %s: %v", userID, err)
		}
		if !found {
			t.Errorf("Post %s not found in user %s's feed", postID, userID)
		}
		if score != timestamp {
			t.Errorf("Wrong timestamp for post %s in user %s's feed: got %d, want %d",
				postID, userID, score, timestamp)
		}
	}

	for _, userID := range []string{ownerID, "bob", "carol", "dave"} {
		size, _ := feedCache.Size(ctx, userID)
		if size != 1 {
			t.Errorf("User %s's feed size: got %d, want 1", userID, size)
		}
	}
}

// TestCollectionRemovedRemoval tests that removing a collected stamp
// pulls the post out of all followers' feeds.
func TestCollectionRemovedRemoval(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(client)

	ctx := context.Background()
	feedCache := cache.NewFeedCache(client)
	mockFollowers := NewMockFollowerProvider()
	mockPosts := NewMockPostsProvider()
	handler := worker.NewHandler(feedCache, mockFollowers, mockPosts)

	ownerID := "alice"
	mockFollowers.AddFollower(ownerID, "bob")
	mockFollowers.AddFollower(ownerID, "carol")

	// Pre-populate: the post is in everyone's feed
	postID := "alice-golden-gate"
	timestamp := time.Now().Unix()
	for _, userID := range []string{ownerID, "bob", "carol"} {
		feedCache.AddPost(ctx, userID, postID, timestamp)
	}

	for _, userID := range []string{ownerID, "bob", "carol"} {
		_, found, _ := feedCache.GetScore(ctx, userID, postID)
		if !found {
			t.Fatalf("Setup failed: post not in user %s's feed", userID)
		}
	}

	event := queue.FeedEvent{
		Type:      queue.EventCollectionRemoved,
		PostID:    postID,
		OwnerID:   ownerID,
		Timestamp: time.Now().Unix(),
	}

	if err := handler.HandleEvent(ctx, event); err != nil {
		t.Fatalf("HandleEvent failed: %v", err)
	}

	for _, userID := range []string{ownerID, "bob", "carol"} {
		_, found, err := feedCache.GetScore(ctx, userID, postID)
		if err != nil {
			t.Fatalf("GetScore failed for user %s: %v", userID, err)
		}
		if found {
			t.Errorf("Post %s should have been removed from user %s's feed", postID, userID)
		}
	}
}

// TestUserFollowedBackfill tests that following someone backfills their
// recent collections into the follower's feed.
func TestUserFollowedBackfill(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(client)

	ctx := context.Background()
	feedCache := cache.NewFeedCache(client)
	mockFollowers := NewMockFollowerProvider()
	mockPosts := NewMockPostsProvider()
	handler := worker.NewHandler(feedCache, mockFollowers, mockPosts)

	// Scenario: bob follows alice, who has 3 existing collections
	followerID := "bob"
	followeeID := "alice"

	now := time.Now().Unix()
	mockPosts.AddPost(followeeID, "eiffel", now-3600)
	mockPosts.AddPost(followeeID, "big-ben", now-1800)
	mockPosts.AddPost(followeeID, "colosseum", now-600)

	exists, _ := feedCache.Exists(ctx, followerID)
	if exists {
		t.Fatal("Setup failed: follower's feed should be empty initially")
	}

	event := queue.FeedEvent{
		Type:       queue.EventUserFollowed,
		FollowerID: followerID,
		FolloweeID: followeeID,
		Timestamp:  now,
	}

	if err := handler.HandleEvent(ctx, event); err != nil {
		t.Fatalf("HandleEvent failed: %v", err)
	}

	size, _ := feedCache.Size(ctx, followerID)
	if size != 3 {
		t.Errorf("Follower's feed size: got %d, want 3", size)
	}

	for _, postID := range []string{"alice-eiffel", "alice-big-ben", "alice-colosseum"} {
		_, found, err := feedCache.GetScore(ctx, followerID, postID)
		if err != nil {
			t.Fatalf("GetScore failed: %v", err)
		}
		if !found {
			t.Errorf("Post %s not found in follower's feed after follow", postID)
		}
	}
}

// TestUserUnfollowedRemoval tests that unfollowing removes only the
// followee's posts from the follower's feed, leaving everyone else's.
func TestUserUnfollowedRemoval(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(client)

	ctx := context.Background()
	feedCache := cache.NewFeedCache(client)
	mockFollowers := NewMockFollowerProvider()
	mockPosts := NewMockPostsProvider()
	handler := worker.NewHandler(feedCache, mockFollowers, mockPosts)

	// Scenario: bob's feed contains posts from alice and carol;
	// bob unfollows alice
	followerID := "bob"
	unfollowedID := "alice"

	now := time.Now().Unix()

	// alice's posts (to be removed) and carol's posts (should remain)
	feedCache.AddPost(ctx, followerID, "alice-eiffel", now-3600)
	feedCache.AddPost(ctx, followerID, "alice-big-ben", now-1800)
	feedCache.AddPost(ctx, followerID, "carol-sagrada", now-2400)
	feedCache.AddPost(ctx, followerID, "carol-louvre", now-1200)

	size, _ := feedCache.Size(ctx, followerID)
	if size != 4 {
		t.Fatalf("Setup failed: feed should have 4 posts, got %d", size)
	}

	event := queue.FeedEvent{
		Type:       queue.EventUserUnfollowed,
		FollowerID: followerID,
		FolloweeID: unfollowedID,
		Timestamp:  now,
	}

	if err := handler.HandleEvent(ctx, event); err != nil {
		t.Fatalf("HandleEvent failed: %v", err)
	}

	for _, postID := range []string{"alice-eiffel", "alice-big-ben"} {
		_, found, _ := feedCache.GetScore(ctx, followerID, postID)
		if found {
			t.Errorf("Post %s should have been removed from feed", postID)
		}
	}

	for _, postID := range []string{"carol-sagrada", "carol-louvre"} {
		_, found, _ := feedCache.GetScore(ctx, followerID, postID)
		if !found {
			t.Errorf("Post %s should still be in feed", postID)
		}
	}

	size, _ = feedCache.Size(ctx, followerID)
	if size != 2 {
		t.Errorf("Feed size after unfollow: got %d, want 2", size)
	}
}

// TestFullWorkflow tests a complete user journey through the feed system.
func TestFullWorkflow(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(client)

	ctx := context.Background()
	feedCache := cache.NewFeedCache(client)
	mockFollowers := NewMockFollowerProvider()
	mockPosts := NewMockPostsProvider()
	handler := worker.NewHandler(feedCache, mockFollowers, mockPosts)

	// ==========================================================================
	// Scenario: stamp collector journey
	// ==========================================================================
	// Users: alice, bob, charlie
	// 1. Bob follows Alice
	// 2. Alice collects 2 stamps
	// 3. Charlie follows Alice
	// 4. Alice collects 1 more stamp
	// 5. Bob unfollows Alice
	// 6. Alice removes her first collection
	// ==========================================================================

	alice := "alice"
	bob := "bob"
	charlie := "charlie"
	now := time.Now().Unix()

	fmt.Println("\n========== FULL WORKFLOW TEST ==========")

	// Step 1: Bob follows Alice
	fmt.Println("\n--- Step 1: Bob follows Alice ---")
	mockFollowers.AddFollower(alice, bob)
	// Alice has no collections yet, so nothing to backfill
	handler.HandleEvent(ctx, queue.FeedEvent{
		Type:       queue.EventUserFollowed,
		FollowerID: bob,
		FolloweeID: alice,
		Timestamp:  now,
	})
	bobSize, _ := feedCache.Size(ctx, bob)
	fmt.Printf("Bob's feed size: %d (expected: 0)\n", bobSize)

	// Step 2: Alice collects 2 stamps
	fmt.Println("\n--- Step 2: Alice collects 2 stamps ---")
	post1 := "alice-eiffel"
	post2 := "alice-big-ben"
	ts1 := now + 100
	ts2 := now + 200

	mockPosts.AddPost(alice, "eiffel", ts1)
	handler.HandleEvent(ctx, queue.FeedEvent{
		Type:      queue.EventStampCollected,
		PostID:    post1,
		OwnerID:   alice,
		Timestamp: ts1,
	})

	mockPosts.AddPost(alice, "big-ben", ts2)
	handler.HandleEvent(ctx, queue.FeedEvent{
		Type:      queue.EventStampCollected,
		PostID:    post2,
		OwnerID:   alice,
		Timestamp: ts2,
	})

	aliceSize, _ := feedCache.Size(ctx, alice)
	bobSize, _ = feedCache.Size(ctx, bob)
	fmt.Printf("Alice's feed size: %d (expected: 2 - sees own posts)\n", aliceSize)
	fmt.Printf("Bob's feed size: %d (expected: 2)\n", bobSize)

	// Step 3: Charlie follows Alice
	fmt.Println("\n--- Step 3: Charlie follows Alice ---")
	mockFollowers.AddFollower(alice, charlie)
	handler.HandleEvent(ctx, queue.FeedEvent{
		Type:       queue.EventUserFollowed,
		FollowerID: charlie,
		FolloweeID: alice,
		Timestamp:  now + 300,
	})

	charlieSize, _ := feedCache.Size(ctx, charlie)
	fmt.Printf("Charlie's feed size: %d (expected: 2 - backfilled)\n", charlieSize)

	// Step 4: Alice collects one more stamp
	fmt.Println("\n--- Step 4: Alice collects another stamp ---")
	post3 := "alice-colosseum"
	ts3 := now + 400

	mockPosts.AddPost(alice, "colosseum", ts3)
	handler.HandleEvent(ctx, queue.FeedEvent{
		Type:      queue.EventStampCollected,
		PostID:    post3,
		OwnerID:   alice,
		Timestamp: ts3,
	})

	aliceSize, _ = feedCache.Size(ctx, alice)
	bobSize, _ = feedCache.Size(ctx, bob)
	charlieSize, _ = feedCache.Size(ctx, charlie)
	fmt.Printf("Alice's feed: %d, Bob's feed: %d, Charlie's feed: %d (all expected: 3)\n",
		aliceSize, bobSize, charlieSize)

	// Step 5: Bob unfollows Alice
	fmt.Println("\n--- Step 5: Bob unfollows Alice ---")
	mockFollowers.RemoveFollower(alice, bob)
	handler.HandleEvent(ctx, queue.FeedEvent{
		Type:       queue.EventUserUnfollowed,
		FollowerID: bob,
		FolloweeID: alice,
		Timestamp:  now + 500,
	})

	bobSize, _ = feedCache.Size(ctx, bob)
	fmt.Printf("Bob's feed size: %d (expected: 0 - all Alice's posts removed)\n", bobSize)

	// Step 6: Alice removes her first collection
	fmt.Println("\n--- Step 6: Alice removes first collection ---")
	handler.HandleEvent(ctx, queue.FeedEvent{
		Type:      queue.EventCollectionRemoved,
		PostID:    post1,
		OwnerID:   alice,
		Timestamp: now + 600,
	})

	aliceSize, _ = feedCache.Size(ctx, alice)
	charlieSize, _ = feedCache.Size(ctx, charlie)
	fmt.Printf("Alice's feed: %d, Charlie's feed: %d (both expected: 2)\n", aliceSize, charlieSize)

	// Final verification
	fmt.Println("\n--- Final State ---")
	_, post1InAlice, _ := feedCache.GetScore(ctx, alice, post1)
	_, post1InCharlie, _ := feedCache.GetScore(ctx, charlie, post1)
	bobExists, _ := feedCache.Exists(ctx, bob)
	fmt.Printf("post1 in Alice's feed: %v, in Charlie's feed: %v, Bob's feed exists: %v\n",
		post1InAlice, post1InCharlie, bobExists)

	fmt.Println("\n========== END WORKFLOW TEST ==========")

	if aliceSize != 2 {
		t.Errorf("Alice's final feed size: got %d, want 2", aliceSize)
	}
	if charlieSize != 2 {
		t.Errorf("Charlie's final feed size: got %d, want 2", charlieSize)
	}
	if bobExists {
		t.Error("Bob's feed should not exist after unfollowing")
	}
	if post1InAlice || post1InCharlie {
		t.Error("Removed post1 should not be in any feed")
	}
}

// =============================================================================
// Stream + Worker Integration Test
// =============================================================================

// TestStreamToWorkerIntegration tests the complete flow:
// Publisher -> Stream -> Consumer -> Handler -> Cache
func TestStreamToWorkerIntegration(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(client)

	ctx := context.Background()

	feedCache := cache.NewFeedCache(client)
	publisher := queue.NewPublisher(client)
	consumer := queue.NewConsumer(client)
	mockFollowers := NewMockFollowerProvider()
	mockPosts := NewMockPostsProvider()
	handler := worker.NewHandler(feedCache, mockFollowers, mockPosts)

	// Scenario: alice has followers bob and carol
	ownerID := "alice"
	mockFollowers.AddFollower(ownerID, "bob")
	mockFollowers.AddFollower(ownerID, "carol")

	if err := consumer.EnsureGroup(ctx, queue.StreamFeed, queue.ConsumerGroupFeed); err != nil {
		t.Fatalf("EnsureGroup failed: %v", err)
	}

	postID := "alice-tower-bridge"
	event := queue.NewStampCollectedEvent(postID, ownerID)
	msgID, err := publisher.Publish(ctx, queue.StreamFeed, event)
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	log.Printf("Published message: %s", msgID)

	messages, err := consumer.Read(ctx, queue.StreamFeed, queue.ConsumerGroupFeed, "test-worker", 10, time.Second)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	if len(messages) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(messages))
	}

	msg := messages[0]
	if err := handler.HandleEvent(ctx, msg.Event); err != nil {
		t.Fatalf("HandleEvent failed: %v", err)
	}

	if err := consumer.Ack(ctx, queue.StreamFeed, queue.ConsumerGroupFeed, msg.ID); err != nil {
		t.Fatalf("Ack failed: %v", err)
	}

	// Post should be in all feeds
	for _, userID := range []string{"alice", "bob", "carol"} {
		_, found, _ := feedCache.GetScore(ctx, userID, postID)
		if !found {
			t.Errorf("Post not found in user %s's feed", userID)
		}
	}

	// After the ack there should be nothing left in the pending list
	pending, err := consumer.ReadPending(ctx, queue.StreamFeed, queue.ConsumerGroupFeed, "test-worker", 10)
	if err != nil {
		t.Fatalf("ReadPending failed: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("Expected 0 pending messages, got %d", len(pending))
	}
}
