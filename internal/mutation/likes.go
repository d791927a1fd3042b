package mutation

import (
	"context"
	"sync"

	"github.com/stampbook-app/stampbook-backend/internal/counter"
	"github.com/stampbook-app/stampbook-backend/internal/events"
	"github.com/stampbook-app/stampbook-backend/internal/model"
)

// LikeWriter performs the remote side of a like toggle: create/delete the
// like document and bump the denormalized count on the collected-stamp
// record.
type LikeWriter interface {
	Like(ctx context.Context, ownerID, stampID, viewerID string) error
	Unlike(ctx context.Context, ownerID, stampID, viewerID string) error
}

// PostKey scopes a post counter to one authenticated session. Like and
// comment entries carry viewer-relative state (is-liked, the viewer's
// believed count including their own optimistic deltas), so two signed-in
// users must never share an entry.
func PostKey(viewerID, postID string) string { return viewerID + ":" + postID }

// Likes is the optimistic like-toggle mutator. The likes store maps
// viewerID:postID -> {Flag: viewer has liked, Count: believed-global like
// count as last seen by that viewer}.
type Likes struct {
	store  *counter.Store
	remote LikeWriter
	engine *Engine
	bus    *events.Bus

	// Serializes read-modify-write per mutator so rapid toggles always read
	// the current local state, never a stale snapshot.
	mu sync.Mutex
}

func NewLikes(store *counter.Store, remote LikeWriter, engine *Engine, bus *events.Bus) *Likes {
	return &Likes{store: store, remote: remote, engine: engine, bus: bus}
}

// Toggle flips the viewer's like state on a post. The flipped state and
// adjusted count are written to the local cache before the remote write
// fires; on remote failure the pre-toggle entry is restored.
//
// N rapid toggles leave the flag at initial XOR (N mod 2) and the count
// within ±1 of its initial value, regardless of remote latency.
func (l *Likes) Toggle(ctx context.Context, viewerID, postID string) (counter.Entry, <-chan error, error) {
	ownerID, stampID, err := model.ParsePostID(postID)
	if err != nil {
		return counter.Entry{}, nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := PostKey(viewerID, postID)
	prev := l.store.Get(key)

	next := counter.Entry{Flag: !prev.Flag}
	if next.Flag {
		next.Count = prev.Count + 1
	} else {
		next.Count = prev.Count - 1
		if next.Count < 0 {
			next.Count = 0
		}
	}

	m := Mutation{
		Name: "ToggleLike",
		Keys: []string{key},
		Apply: func() error {
			if err := l.store.Set(key, next); err != nil {
				return err
			}
			l.bus.CounterChanged(counter.KindLikes, key)
			return nil
		},
		Remote: func(rctx context.Context) error {
			if next.Flag {
				return l.remote.Like(rctx, ownerID, stampID, viewerID)
			}
			return l.remote.Unlike(rctx, ownerID, stampID, viewerID)
		},
		Compensate: func() error {
			if err := l.store.Set(key, prev); err != nil {
				return err
			}
			l.bus.CounterChanged(counter.KindLikes, key)
			return nil
		},
		FailureMessage: "Couldn't update like. Please try again.",
	}

	done, err := l.engine.Do(ctx, m)
	if err != nil {
		return counter.Entry{}, nil, err
	}
	return next, done, nil
}

// State returns the viewer's current local like state for a post.
func (l *Likes) State(viewerID, postID string) counter.Entry {
	return l.store.Get(PostKey(viewerID, postID))
}
