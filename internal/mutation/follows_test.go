package mutation_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stampbook-app/stampbook-backend/internal/counter"
	"github.com/stampbook-app/stampbook-backend/internal/events"
	"github.com/stampbook-app/stampbook-backend/internal/model"
	"github.com/stampbook-app/stampbook-backend/internal/mutation"
)

// MockFollowWriter simulates the remote follow repository.
type MockFollowWriter struct {
	mu          sync.Mutex
	followErr   error
	unfollowErr error
	follows     int
	unfollows   int
}

func (m *MockFollowWriter) Follow(ctx context.Context, followerID, followeeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.follows++
	return m.followErr
}

func (m *MockFollowWriter) Unfollow(ctx context.Context, followerID, followeeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unfollows++
	return m.unfollowErr
}

func newFollows(t *testing.T, writer *MockFollowWriter) (*mutation.Follows, *counter.Store, *mutation.Engine) {
	t.Helper()
	store := newTestStore(t, counter.KindFollows)
	engine := mutation.NewEngine(events.NewBus(), time.Second)
	return mutation.NewFollows(store, writer, engine, events.NewBus()), store, engine
}

// TestFollowMovesBothSides verifies one follow moves the actor's following
// count and the target's follower count together.
func TestFollowMovesBothSides(t *testing.T) {
	writer := &MockFollowWriter{}
	follows, store, engine := newFollows(t, writer)

	store.SetMany(map[string]counter.Entry{
		mutation.FollowingCountKey("bob", "bob"):  {Count: 10},
		mutation.FollowerCountKey("bob", "alice"): {Count: 200},
	})

	done, err := follows.Follow(context.Background(), "bob", "alice")
	if err != nil {
		t.Fatalf("Follow failed: %v", err)
	}

	if !follows.IsFollowing("bob", "alice") {
		t.Error("IsFollowing false after follow")
	}
	if e := store.Get(mutation.FollowingCountKey("bob", "bob")); e.Count != 11 {
		t.Errorf("Bob's following count: got %d, want 11", e.Count)
	}
	if e := store.Get(mutation.FollowerCountKey("bob", "alice")); e.Count != 201 {
		t.Errorf("Alice's follower count: got %d, want 201", e.Count)
	}

	if derr := <-done; derr != nil {
		t.Fatalf("Remote write failed: %v", derr)
	}
	engine.Wait()
}

func TestUnfollowMovesBothSides(t *testing.T) {
	writer := &MockFollowWriter{}
	follows, store, engine := newFollows(t, writer)

	store.SetMany(map[string]counter.Entry{
		mutation.FollowStateKey("bob", "alice"):   {Flag: true},
		mutation.FollowingCountKey("bob", "bob"):  {Count: 11},
		mutation.FollowerCountKey("bob", "alice"): {Count: 201},
	})

	done, err := follows.Unfollow(context.Background(), "bob", "alice")
	if err != nil {
		t.Fatalf("Unfollow failed: %v", err)
	}

	if follows.IsFollowing("bob", "alice") {
		t.Error("IsFollowing true after unfollow")
	}
	followers, _ := follows.Counts("bob", "alice")
	if followers != 200 {
		t.Errorf("Alice's follower count: got %d, want 200", followers)
	}
	if e := store.Get(mutation.FollowingCountKey("bob", "bob")); e.Count != 10 {
		t.Errorf("Bob's following count: got %d, want 10", e.Count)
	}

	<-done
	engine.Wait()
}

func TestFollowGuards(t *testing.T) {
	follows, store, _ := newFollows(t, &MockFollowWriter{})

	if _, err := follows.Follow(context.Background(), "bob", "bob"); !errors.Is(err, model.ErrCannotFollowSelf) {
		t.Errorf("Self follow: got %v, want %v", err, model.ErrCannotFollowSelf)
	}

	if _, err := follows.Unfollow(context.Background(), "bob", "alice"); !errors.Is(err, model.ErrNotFollowing) {
		t.Errorf("Unfollow without follow: got %v, want %v", err, model.ErrNotFollowing)
	}

	store.Set(mutation.FollowStateKey("bob", "alice"), counter.Entry{Flag: true})
	if _, err := follows.Follow(context.Background(), "bob", "alice"); !errors.Is(err, model.ErrAlreadyFollowing) {
		t.Errorf("Double follow: got %v, want %v", err, model.ErrAlreadyFollowing)
	}
}

// TestFollowRollbackRestoresBothSides verifies a failed remote write reverts
// the state flag and both counters atomically.
func TestFollowRollbackRestoresBothSides(t *testing.T) {
	writer := &MockFollowWriter{followErr: errors.New("firestore unavailable")}
	follows, store, engine := newFollows(t, writer)

	store.SetMany(map[string]counter.Entry{
		mutation.FollowingCountKey("bob", "bob"):  {Count: 10},
		mutation.FollowerCountKey("bob", "alice"): {Count: 200},
	})

	done, err := follows.Follow(context.Background(), "bob", "alice")
	if err != nil {
		t.Fatalf("Follow failed: %v", err)
	}

	if derr := <-done; derr == nil {
		t.Fatal("Expected remote error, got nil")
	}
	engine.Wait()

	if follows.IsFollowing("bob", "alice") {
		t.Error("Follow state survived the rollback")
	}
	if e := store.Get(mutation.FollowingCountKey("bob", "bob")); e.Count != 10 {
		t.Errorf("Bob's following count after rollback: got %d, want 10", e.Count)
	}
	if e := store.Get(mutation.FollowerCountKey("bob", "alice")); e.Count != 200 {
		t.Errorf("Alice's follower count after rollback: got %d, want 200", e.Count)
	}
}

func TestUnfollowFloorsAtZero(t *testing.T) {
	follows, store, engine := newFollows(t, &MockFollowWriter{})

	// Counts can lag behind the edge documents; an unfollow from a zero count
	// must not go negative
	store.Set(mutation.FollowStateKey("bob", "alice"), counter.Entry{Flag: true})

	done, err := follows.Unfollow(context.Background(), "bob", "alice")
	if err != nil {
		t.Fatalf("Unfollow failed: %v", err)
	}

	if e := store.Get(mutation.FollowingCountKey("bob", "bob")); e.Count != 0 {
		t.Errorf("Following count went negative: got %d", e.Count)
	}
	if e := store.Get(mutation.FollowerCountKey("bob", "alice")); e.Count != 0 {
		t.Errorf("Follower count went negative: got %d", e.Count)
	}

	<-done
	engine.Wait()
}

// TestSeedCountsSkipsPendingKeys verifies a bulk seed never overwrites a
// counter with an in-flight optimistic mutation.
func TestSeedCountsSkipsPendingKeys(t *testing.T) {
	store := newTestStore(t, counter.KindFollows)
	engine := mutation.NewEngine(events.NewBus(), time.Second)

	release := make(chan struct{})
	inRemote := make(chan struct{})
	writer := &blockingFollowWriter{release: release, entered: inRemote}
	follows := mutation.NewFollows(store, writer, engine, events.NewBus())

	done, err := follows.Follow(context.Background(), "bob", "alice")
	if err != nil {
		t.Fatalf("Follow failed: %v", err)
	}
	<-inRemote

	// alice's follower count is pending (1 locally); a seed from stale
	// fetched data must leave it alone but may set the following total
	if err := follows.SeedCounts("bob", "alice", 200, 50); err != nil {
		t.Fatalf("SeedCounts failed: %v", err)
	}

	followers, following := follows.Counts("bob", "alice")
	if followers != 1 {
		t.Errorf("Pending follower count was clobbered: got %d, want 1", followers)
	}
	if following != 50 {
		t.Errorf("Non-pending following count: got %d, want 50", following)
	}

	close(release)
	<-done
	engine.Wait()
}

// TestFollowStateIsViewerScoped verifies two viewers following the same
// account keep independent state and counter entries.
func TestFollowStateIsViewerScoped(t *testing.T) {
	writer := &MockFollowWriter{}
	follows, store, engine := newFollows(t, writer)

	store.SetMany(map[string]counter.Entry{
		mutation.FollowerCountKey("bob", "celeb"):   {Count: 200},
		mutation.FollowerCountKey("carol", "celeb"): {Count: 200},
	})

	done, err := follows.Follow(context.Background(), "bob", "celeb")
	if err != nil {
		t.Fatalf("Follow failed: %v", err)
	}
	<-done
	engine.Wait()

	if !follows.IsFollowing("bob", "celeb") {
		t.Error("bob's follow state not set")
	}
	if follows.IsFollowing("carol", "celeb") {
		t.Error("carol inherited bob's follow state")
	}
	if followers, _ := follows.Counts("carol", "celeb"); followers != 200 {
		t.Errorf("carol's cached follower count moved: got %d, want 200", followers)
	}

	// carol can follow the same account without tripping the duplicate guard
	done, err = follows.Follow(context.Background(), "carol", "celeb")
	if err != nil {
		t.Fatalf("carol's Follow failed: %v", err)
	}
	<-done
	engine.Wait()
}

type blockingFollowWriter struct {
	release chan struct{}
	entered chan struct{}
}

func (w *blockingFollowWriter) Follow(ctx context.Context, followerID, followeeID string) error {
	close(w.entered)
	<-w.release
	return nil
}

func (w *blockingFollowWriter) Unfollow(ctx context.Context, followerID, followeeID string) error {
	return nil
}
