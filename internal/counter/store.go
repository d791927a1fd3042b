package counter

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/dgraph-io/badger"
)

// Counter kinds. Each kind gets its own Store over a shared Badger database,
// with keys namespaced by a kind prefix.
const (
	KindLikes    = "likes"
	KindComments = "comments"
	KindFollows  = "follows"
)

// Entry is one cached counter value. Count carries the believed-global count
// (likes, comments, follower/following totals); Flag carries the
// viewer-relative boolean (is-liked, is-following). Kinds that don't need one
// of the two leave it at its zero value.
type Entry struct {
	Count int64 `json:"count"`
	Flag  bool  `json:"flag"`
}

// Store is a durable, synchronous-read key-value store for one counter kind.
//
// Reads are served from memory and never block on IO; writes go through to
// Badger before returning, so a freshly opened Store against the same
// database observes exactly the values a previous instance set. That holds
// for explicit zeros too: a count set to 0 persists as a record, it is not
// the same as "never set".
type Store struct {
	db   *badger.DB
	kind string

	mu      sync.RWMutex
	entries map[string]Entry
}

// Open opens the Badger database backing all counter stores.
func Open(dir string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil // badger's own logging is too chatty for a cache
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open counter db: %w", err)
	}
	return db, nil
}

// NewStore creates a Store for the given kind and loads all persisted entries
// into memory. Corrupt records are skipped, not fatal: a cache that loses an
// entry just re-learns the value from the next feed sync.
func NewStore(db *badger.DB, kind string) (*Store, error) {
	s := &Store{
		db:      db,
		kind:    kind,
		entries: make(map[string]Entry),
	}

	prefix := s.prefix()
	err := db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := string(item.Key()[len(prefix):])
			err := item.Value(func(val []byte) error {
				var e Entry
				if err := json.Unmarshal(val, &e); err != nil {
					log.Printf("[CounterStore] Skipping corrupt entry: kind=%s key=%s err=%v", kind, key, err)
					return nil
				}
				s.entries[key] = e
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load counter store %q: %w", kind, err)
	}

	log.Printf("[CounterStore] Loaded: kind=%s entries=%d", kind, len(s.entries))
	return s, nil
}

// Get returns the entry for key. Absent keys return the zero Entry; absence
// is a valid state (a post nobody has interacted with yet), not an error.
func (s *Store) Get(key string) Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[key]
}

// Set updates the entry in memory and writes it through to Badger before
// returning.
func (s *Store) Set(key string, e Entry) error {
	return s.SetMany(map[string]Entry{key: e})
}

// SetMany updates a batch of entries in one Badger transaction. Bulk feed
// syncs go through here so a page of counters costs one durable write, not
// one per post.
func (s *Store) SetMany(entries map[string]Entry) error {
	if len(entries) == 0 {
		return nil
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		for key, e := range entries {
			val, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("marshal entry %q: %w", key, err)
			}
			if err := txn.Set(s.storageKey(key), val); err != nil {
				return fmt.Errorf("set entry %q: %w", key, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("persist counters: %w", err)
	}

	// Memory updates only after the durable write succeeded, so a failed
	// persist never leaves memory ahead of disk.
	s.mu.Lock()
	for key, e := range entries {
		s.entries[key] = e
	}
	s.mu.Unlock()

	return nil
}

// Clear wipes the in-memory state and deletes every persisted entry of this
// kind. Used on sign-out.
func (s *Store) Clear() error {
	prefix := s.prefix()

	err := s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)

		var keys [][]byte
		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()

		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("clear counter store %q: %w", s.kind, err)
	}

	s.mu.Lock()
	s.entries = make(map[string]Entry)
	s.mu.Unlock()

	log.Printf("[CounterStore] Cleared: kind=%s", s.kind)
	return nil
}

// ClearPrefix deletes every entry whose key starts with prefix, in memory
// and on disk. Sign-out uses it to drop one viewer's slice of a kind without
// touching other sessions.
func (s *Store) ClearPrefix(prefix string) error {
	storagePrefix := s.storageKey(prefix)

	err := s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = storagePrefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)

		var keys [][]byte
		for it.Rewind(); it.ValidForPrefix(storagePrefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()

		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("clear counter prefix %q: %w", prefix, err)
	}

	s.mu.Lock()
	for k := range s.entries {
		if strings.HasPrefix(k, prefix) {
			delete(s.entries, k)
		}
	}
	s.mu.Unlock()

	log.Printf("[CounterStore] Cleared: kind=%s prefix=%s", s.kind, prefix)
	return nil
}

// SnapshotPrefix returns a copy of the entries under prefix, with the prefix
// stripped from the keys. The counters endpoint uses it to hand a viewer only
// their own slice of the store.
func (s *Store) SnapshotPrefix(prefix string) map[string]Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Entry)
	for k, v := range s.entries {
		if strings.HasPrefix(k, prefix) {
			out[strings.TrimPrefix(k, prefix)] = v
		}
	}
	return out
}

// Snapshot returns a copy of all current entries.
func (s *Store) Snapshot() map[string]Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Entry, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out
}

// Len returns the number of cached entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) prefix() []byte {
	return []byte(s.kind + "/")
}

func (s *Store) storageKey(key string) []byte {
	return append(s.prefix(), key...)
}
