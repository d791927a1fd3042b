package mutation

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/stampbook-app/stampbook-backend/internal/counter"
	"github.com/stampbook-app/stampbook-backend/internal/events"
)

// DefaultRemoteTimeout bounds the confirmation write behind an optimistic
// mutation. The local state is already applied, so a slow backend only delays
// the rollback decision, never the UI.
const DefaultRemoteTimeout = 10 * time.Second

// Mutation is one optimistic state change: apply locally, confirm remotely,
// compensate on failure. Every mutation kind (like, comment, follow) goes
// through the same engine so all of them get identical guarantees.
type Mutation struct {
	Name string   // for logs
	Keys []string // counter keys touched; marked pending while in flight

	// Apply performs the synchronous local cache write.
	Apply func() error

	// Remote performs the confirmation write against the document store.
	Remote func(ctx context.Context) error

	// Compensate restores the pre-mutation local state. Runs only when
	// Remote fails, before the error is surfaced.
	Compensate func() error

	// FailureMessage is the user-visible transient error text.
	FailureMessage string
}

// Engine runs optimistic mutations. Between Apply and remote confirmation the
// touched keys are held in a pending set; the feed sync consults it so a bulk
// counter overwrite never clobbers an in-flight optimistic value.
type Engine struct {
	bus     *events.Bus
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]int // refcount per key

	wg sync.WaitGroup
}

func NewEngine(bus *events.Bus, timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = DefaultRemoteTimeout
	}
	return &Engine{
		bus:     bus,
		timeout: timeout,
		pending: make(map[string]int),
	}
}

// Pending reports whether key has an optimistic mutation awaiting remote
// confirmation.
func (e *Engine) Pending(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending[key] > 0
}

// SetManySettled writes entries for keys with no in-flight mutation. The
// pending set stays locked across the filter and the store write, so a
// mutation marking its keys either blocks until the write lands and then
// applies on top of it, or is already pending and gets skipped. A stale
// fetched value can never overwrite a fresh optimistic one in between.
func (e *Engine) SetManySettled(store *counter.Store, entries map[string]counter.Entry) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	settled := make(map[string]counter.Entry, len(entries))
	for k, v := range entries {
		if e.pending[k] > 0 {
			continue
		}
		settled[k] = v
	}
	return store.SetMany(settled)
}

// Do applies the mutation locally, then fires the remote write on its own
// goroutine. The returned channel delivers the final outcome (nil, or the
// remote error after compensation) and is closed afterwards; callers that
// only care about the optimistic state may ignore it.
//
// A failed remote write never leaves the local cache in the post-mutation
// state: Compensate runs before the error is published or delivered.
func (e *Engine) Do(ctx context.Context, m Mutation) (<-chan error, error) {
	e.mark(m.Keys)

	if err := m.Apply(); err != nil {
		e.unmark(m.Keys)
		return nil, err
	}

	done := make(chan error, 1)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer e.unmark(m.Keys)
		defer close(done)

		// The remote write must outlive the originating request, so it
		// runs on a detached context with its own deadline.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
		defer cancel()

		start := time.Now()
		err := m.Remote(rctx)
		if err == nil {
			log.Printf("[Mutation] %s OK: keys=%v duration=%v", m.Name, m.Keys, time.Since(start))
			done <- nil
			return
		}

		log.Printf("[Mutation] %s FAILED, rolling back: keys=%v err=%v", m.Name, m.Keys, err)
		if cerr := m.Compensate(); cerr != nil {
			// The durable cache write failed during rollback. The entry
			// self-corrects on the next feed sync; nothing else to do here.
			log.Printf("[Mutation] %s compensate FAILED: keys=%v err=%v", m.Name, m.Keys, cerr)
		}
		if e.bus != nil {
			for _, key := range m.Keys {
				e.bus.TransientError(key, m.FailureMessage)
			}
		}
		done <- err
	}()

	return done, nil
}

// Wait blocks until every in-flight remote write has settled. Used on
// shutdown and in tests.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func (e *Engine) mark(keys []string) {
	e.mu.Lock()
	for _, k := range keys {
		e.pending[k]++
	}
	e.mu.Unlock()
}

func (e *Engine) unmark(keys []string) {
	e.mu.Lock()
	for _, k := range keys {
		if e.pending[k] <= 1 {
			delete(e.pending, k)
		} else {
			e.pending[k]--
		}
	}
	e.mu.Unlock()
}
