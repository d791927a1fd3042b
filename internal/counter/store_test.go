package counter_test

import (
	"testing"

	"github.com/stampbook-app/stampbook-backend/internal/counter"
)

func openTestStore(t *testing.T, dir, kind string) *counter.Store {
	t.Helper()

	db, err := counter.Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store, err := counter.NewStore(db, kind)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return store
}

func TestGetUnseenKeyReturnsZero(t *testing.T) {
	store := openTestStore(t, t.TempDir(), counter.KindLikes)

	e := store.Get("alice-eiffel")
	if e.Count != 0 || e.Flag {
		t.Errorf("Unseen key: got %+v, want zero entry", e)
	}
}

func TestSetAndGet(t *testing.T) {
	store := openTestStore(t, t.TempDir(), counter.KindLikes)

	if err := store.Set("alice-eiffel", counter.Entry{Count: 42, Flag: true}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	e := store.Get("alice-eiffel")
	if e.Count != 42 || !e.Flag {
		t.Errorf("Get after Set: got %+v, want {Count:42 Flag:true}", e)
	}
}

// TestDurabilityAcrossReopen verifies that a freshly opened store against the
// same database sees exactly what a previous instance wrote.
func TestDurabilityAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	db, err := counter.Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	store, err := counter.NewStore(db, counter.KindLikes)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	err = store.SetMany(map[string]counter.Entry{
		"alice-eiffel":  {Count: 3, Flag: true},
		"bob-big-ben":   {Count: 17},
		"carol-sagrada": {Count: 0, Flag: true},
	})
	if err != nil {
		t.Fatalf("SetMany failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened := openTestStore(t, dir, counter.KindLikes)

	if got := reopened.Len(); got != 3 {
		t.Fatalf("Len after reopen: got %d, want 3", got)
	}
	if e := reopened.Get("alice-eiffel"); e.Count != 3 || !e.Flag {
		t.Errorf("alice-eiffel after reopen: got %+v", e)
	}
	if e := reopened.Get("bob-big-ben"); e.Count != 17 || e.Flag {
		t.Errorf("bob-big-ben after reopen: got %+v", e)
	}
	if e := reopened.Get("carol-sagrada"); e.Count != 0 || !e.Flag {
		t.Errorf("carol-sagrada after reopen: got %+v", e)
	}
}

// TestExplicitZeroPersists verifies a count written as 0 survives a reopen as
// a real record, distinguishable from a never-set key only by Snapshot.
func TestExplicitZeroPersists(t *testing.T) {
	dir := t.TempDir()

	db, err := counter.Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	store, err := counter.NewStore(db, counter.KindComments)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	if err := store.Set("alice-eiffel", counter.Entry{Count: 0}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened := openTestStore(t, dir, counter.KindComments)

	snapshot := reopened.Snapshot()
	if _, ok := snapshot["alice-eiffel"]; !ok {
		t.Error("Zero entry was not persisted")
	}
	if got := reopened.Len(); got != 1 {
		t.Errorf("Len after reopen: got %d, want 1", got)
	}
}

// TestKindsAreIsolated verifies stores of different kinds over the same
// database do not see each other's entries.
func TestKindsAreIsolated(t *testing.T) {
	db, err := counter.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	likes, err := counter.NewStore(db, counter.KindLikes)
	if err != nil {
		t.Fatalf("NewStore likes failed: %v", err)
	}
	comments, err := counter.NewStore(db, counter.KindComments)
	if err != nil {
		t.Fatalf("NewStore comments failed: %v", err)
	}

	if err := likes.Set("alice-eiffel", counter.Entry{Count: 5, Flag: true}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if e := comments.Get("alice-eiffel"); e.Count != 0 || e.Flag {
		t.Errorf("Comments store sees likes entry: %+v", e)
	}
	if got := comments.Len(); got != 0 {
		t.Errorf("Comments store Len: got %d, want 0", got)
	}
}

func TestClearWipesOnlyOwnKind(t *testing.T) {
	dir := t.TempDir()

	db, err := counter.Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	likes, err := counter.NewStore(db, counter.KindLikes)
	if err != nil {
		t.Fatalf("NewStore likes failed: %v", err)
	}
	follows, err := counter.NewStore(db, counter.KindFollows)
	if err != nil {
		t.Fatalf("NewStore follows failed: %v", err)
	}

	likes.Set("alice-eiffel", counter.Entry{Count: 5, Flag: true})
	likes.Set("bob-big-ben", counter.Entry{Count: 2})
	follows.Set("state:bob", counter.Entry{Flag: true})

	if err := likes.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	if got := likes.Len(); got != 0 {
		t.Errorf("Likes Len after Clear: got %d, want 0", got)
	}
	if e := follows.Get("state:bob"); !e.Flag {
		t.Error("Clear on likes store wiped follows entry")
	}

	// Clear must also remove the persisted records
	if err := db.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	reopened := openTestStore(t, dir, counter.KindLikes)
	if got := reopened.Len(); got != 0 {
		t.Errorf("Likes Len after Clear and reopen: got %d, want 0", got)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	store := openTestStore(t, t.TempDir(), counter.KindLikes)

	store.Set("alice-eiffel", counter.Entry{Count: 1})
	snapshot := store.Snapshot()
	snapshot["alice-eiffel"] = counter.Entry{Count: 99}

	if e := store.Get("alice-eiffel"); e.Count != 1 {
		t.Errorf("Mutating snapshot changed store: got %+v", e)
	}
}

// TestClearPrefixWipesOnlyThatViewer verifies sign-out removes one viewer's
// keys, in memory and durably, while other viewers' entries survive.
func TestClearPrefixWipesOnlyThatViewer(t *testing.T) {
	dir := t.TempDir()

	db, err := counter.Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	store, err := counter.NewStore(db, counter.KindLikes)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	store.SetMany(map[string]counter.Entry{
		"alice:p1": {Count: 6, Flag: true},
		"alice:p2": {Count: 2},
		"bob:p1":   {Count: 5},
	})

	if err := store.ClearPrefix("alice:"); err != nil {
		t.Fatalf("ClearPrefix failed: %v", err)
	}

	if e := store.Get("alice:p1"); e.Count != 0 || e.Flag {
		t.Errorf("alice:p1 survived the clear: %+v", e)
	}
	if e := store.Get("bob:p1"); e.Count != 5 {
		t.Errorf("bob:p1 was clobbered: %+v", e)
	}

	if err := db.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// The deletion is durable: a reopen sees only bob's entry
	reopened := openTestStore(t, dir, counter.KindLikes)
	if reopened.Len() != 1 {
		t.Errorf("Entries after reopen: got %d, want 1", reopened.Len())
	}
	if e := reopened.Get("bob:p1"); e.Count != 5 {
		t.Errorf("bob:p1 after reopen: %+v", e)
	}
}

func TestSnapshotPrefixTrimsAndFilters(t *testing.T) {
	store := openTestStore(t, t.TempDir(), counter.KindFollows)

	store.SetMany(map[string]counter.Entry{
		"alice:state:bob":  {Flag: true},
		"alice:follower:x": {Count: 9},
		"carol:state:bob":  {Flag: false},
	})

	snap := store.SnapshotPrefix("alice:")
	if len(snap) != 2 {
		t.Fatalf("Snapshot size: got %d, want 2", len(snap))
	}
	if e, ok := snap["state:bob"]; !ok || !e.Flag {
		t.Errorf("state:bob: got %+v ok=%v", e, ok)
	}
	if _, ok := snap["carol:state:bob"]; ok {
		t.Error("Another viewer's key leaked into the snapshot")
	}
}
