package cache

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/stampbook-app/stampbook-backend/internal/model"
)

const (
	// StampCacheTTL bounds how long a cached stamp detail stays fresh.
	StampCacheTTL = 180 * time.Second

	// StampPrefetchTimeout caps speculative fetches. A prefetch that misses
	// the window fails silently; the caller falls back to fetch-on-demand.
	StampPrefetchTimeout = 2 * time.Second
)

// StampFetcher is the upstream a StampCache fills itself from.
type StampFetcher interface {
	GetByID(ctx context.Context, id string) (*model.Stamp, error)
}

// StampCache is an in-memory TTL cache over the stamp catalog. Hits resolve
// synchronously from memory; stamps barely ever change, so a short TTL is
// enough. Feed assembly and detail prefetch both read through it.
type StampCache struct {
	fetcher StampFetcher

	mu      sync.RWMutex
	entries map[string]stampEntry
}

type stampEntry struct {
	stamp     *model.Stamp
	fetchedAt time.Time
}

func NewStampCache(fetcher StampFetcher) *StampCache {
	return &StampCache{
		fetcher: fetcher,
		entries: make(map[string]stampEntry),
	}
}

// Peek returns a cached stamp without touching the network, or nil on miss.
func (c *StampCache) Peek(id string) *model.Stamp {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[id]
	if !ok || time.Since(e.fetchedAt) > StampCacheTTL {
		return nil
	}
	return e.stamp
}

// Get returns the stamp, from memory when fresh, otherwise fetching and
// caching it.
func (c *StampCache) Get(ctx context.Context, id string) (*model.Stamp, error) {
	if s := c.Peek(id); s != nil {
		return s, nil
	}

	stamp, err := c.fetcher.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.put(stamp)
	return stamp, nil
}

// Prefetch speculatively loads a stamp ahead of navigation, bounded by
// StampPrefetchTimeout. Failures are swallowed: a miss just means the detail
// screen fetches on demand.
func (c *StampCache) Prefetch(ctx context.Context, id string) {
	if c.Peek(id) != nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, StampPrefetchTimeout)
	defer cancel()

	stamp, err := c.fetcher.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, context.DeadlineExceeded) {
			log.Printf("[StampCache] Prefetch miss: stamp=%s err=%v", id, err)
		}
		return
	}
	c.put(stamp)
}

func (c *StampCache) put(stamp *model.Stamp) {
	c.mu.Lock()
	c.entries[stamp.ID] = stampEntry{stamp: stamp, fetchedAt: time.Now()}
	c.mu.Unlock()
}
