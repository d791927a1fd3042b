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

// MockLikeWriter simulates the remote like repository.
type MockLikeWriter struct {
	mu        sync.Mutex
	likeErr   error
	unlikeErr error
	likes     int
	unlikes   int
	block     chan struct{} // when set, Remote blocks until closed
}

func (m *MockLikeWriter) Like(ctx context.Context, ownerID, stampID, viewerID string) error {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.likes++
	return m.likeErr
}

func (m *MockLikeWriter) Unlike(ctx context.Context, ownerID, stampID, viewerID string) error {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unlikes++
	return m.unlikeErr
}

func (m *MockLikeWriter) Calls() (likes, unlikes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.likes, m.unlikes
}

func newLikes(t *testing.T, writer *MockLikeWriter) (*mutation.Likes, *counter.Store, *mutation.Engine) {
	t.Helper()
	store := newTestStore(t, counter.KindLikes)
	engine := mutation.NewEngine(events.NewBus(), time.Second)
	return mutation.NewLikes(store, writer, engine, events.NewBus()), store, engine
}

func TestToggleLikeOn(t *testing.T) {
	writer := &MockLikeWriter{}
	likes, store, engine := newLikes(t, writer)

	store.Set(mutation.PostKey("bob", "alice-eiffel"), counter.Entry{Count: 5})

	next, done, err := likes.Toggle(context.Background(), "bob", "alice-eiffel")
	if err != nil {
		t.Fatalf("Toggle failed: %v", err)
	}
	if !next.Flag || next.Count != 6 {
		t.Errorf("Toggle on: got %+v, want {Count:6 Flag:true}", next)
	}

	// The local state is visible before the remote write settles
	if e := store.Get(mutation.PostKey("bob", "alice-eiffel")); !e.Flag || e.Count != 6 {
		t.Errorf("Local state after Toggle: got %+v", e)
	}

	if derr := <-done; derr != nil {
		t.Fatalf("Remote write failed: %v", derr)
	}
	engine.Wait()

	likeCalls, unlikeCalls := writer.Calls()
	if likeCalls != 1 || unlikeCalls != 0 {
		t.Errorf("Remote calls: likes=%d unlikes=%d, want 1/0", likeCalls, unlikeCalls)
	}
}

func TestToggleLikeOff(t *testing.T) {
	writer := &MockLikeWriter{}
	likes, store, engine := newLikes(t, writer)

	store.Set(mutation.PostKey("bob", "alice-eiffel"), counter.Entry{Count: 6, Flag: true})

	next, done, err := likes.Toggle(context.Background(), "bob", "alice-eiffel")
	if err != nil {
		t.Fatalf("Toggle failed: %v", err)
	}
	if next.Flag || next.Count != 5 {
		t.Errorf("Toggle off: got %+v, want {Count:5 Flag:false}", next)
	}

	<-done
	engine.Wait()

	likeCalls, unlikeCalls := writer.Calls()
	if likeCalls != 0 || unlikeCalls != 1 {
		t.Errorf("Remote calls: likes=%d unlikes=%d, want 0/1", likeCalls, unlikeCalls)
	}
}

func TestToggleLikeFloorsAtZero(t *testing.T) {
	writer := &MockLikeWriter{}
	likes, store, _ := newLikes(t, writer)

	// Flag set but count already 0: a reconciliation or stale sync can leave
	// the cache here, and un-liking must not drive the count negative
	store.Set(mutation.PostKey("bob", "alice-eiffel"), counter.Entry{Count: 0, Flag: true})

	next, done, err := likes.Toggle(context.Background(), "bob", "alice-eiffel")
	if err != nil {
		t.Fatalf("Toggle failed: %v", err)
	}
	if next.Count != 0 {
		t.Errorf("Count went negative: got %d, want 0", next.Count)
	}
	<-done
}

// TestToggleLikeRollback verifies a failed remote write restores the
// pre-toggle entry exactly.
func TestToggleLikeRollback(t *testing.T) {
	writer := &MockLikeWriter{likeErr: errors.New("firestore unavailable")}
	likes, store, engine := newLikes(t, writer)

	store.Set(mutation.PostKey("bob", "alice-eiffel"), counter.Entry{Count: 5})

	next, done, err := likes.Toggle(context.Background(), "bob", "alice-eiffel")
	if err != nil {
		t.Fatalf("Toggle failed: %v", err)
	}
	if !next.Flag || next.Count != 6 {
		t.Errorf("Optimistic state: got %+v, want {Count:6 Flag:true}", next)
	}

	if derr := <-done; derr == nil {
		t.Fatal("Expected remote error, got nil")
	}
	engine.Wait()

	if e := store.Get(mutation.PostKey("bob", "alice-eiffel")); e.Flag || e.Count != 5 {
		t.Errorf("State after rollback: got %+v, want {Count:5 Flag:false}", e)
	}
}

// TestRapidToggleParity verifies N rapid toggles land on initial XOR (N mod 2)
// with the count within one of its starting value, even with a slow backend.
func TestRapidToggleParity(t *testing.T) {
	for _, n := range []int{2, 3, 7, 10} {
		writer := &MockLikeWriter{block: make(chan struct{})}
		likes, store, engine := newLikes(t, writer)

		store.Set(mutation.PostKey("bob", "alice-eiffel"), counter.Entry{Count: 5})

		var dones []<-chan error
		for i := 0; i < n; i++ {
			_, done, err := likes.Toggle(context.Background(), "bob", "alice-eiffel")
			if err != nil {
				t.Fatalf("n=%d toggle %d failed: %v", n, i, err)
			}
			dones = append(dones, done)
		}

		// All remote writes are still in flight; local state is already final
		e := store.Get(mutation.PostKey("bob", "alice-eiffel"))
		wantFlag := n%2 == 1
		if e.Flag != wantFlag {
			t.Errorf("n=%d: flag got %v, want %v", n, e.Flag, wantFlag)
		}
		if e.Count < 4 || e.Count > 6 {
			t.Errorf("n=%d: count drifted to %d, want within [4,6]", n, e.Count)
		}

		close(writer.block)
		for _, done := range dones {
			<-done
		}
		engine.Wait()
	}
}

// TestLikeStateIsViewerScoped verifies one viewer's toggle never shows up in
// another viewer's like state: the entries live under per-viewer keys.
func TestLikeStateIsViewerScoped(t *testing.T) {
	writer := &MockLikeWriter{}
	likes, store, engine := newLikes(t, writer)

	store.Set(mutation.PostKey("alice", "carol-eiffel"), counter.Entry{Count: 5})
	store.Set(mutation.PostKey("bob", "carol-eiffel"), counter.Entry{Count: 5})

	_, done, err := likes.Toggle(context.Background(), "alice", "carol-eiffel")
	if err != nil {
		t.Fatalf("Toggle failed: %v", err)
	}
	<-done
	engine.Wait()

	if e := likes.State("alice", "carol-eiffel"); !e.Flag || e.Count != 6 {
		t.Errorf("alice's state: got %+v, want {Count:6 Flag:true}", e)
	}
	if e := likes.State("bob", "carol-eiffel"); e.Flag || e.Count != 5 {
		t.Errorf("bob's state after alice's toggle: got %+v, want {Count:5 Flag:false}", e)
	}
}

func TestToggleLikeBadPostID(t *testing.T) {
	likes, _, _ := newLikes(t, &MockLikeWriter{})

	for _, postID := range []string{"nodash", "-stamp", "owner-", ""} {
		_, _, err := likes.Toggle(context.Background(), "bob", postID)
		if !errors.Is(err, model.ErrInvalidPostID) {
			t.Errorf("Toggle(%q): got %v, want %v", postID, err, model.ErrInvalidPostID)
		}
	}
}
