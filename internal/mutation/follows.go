package mutation

import (
	"context"
	"sync"

	"github.com/stampbook-app/stampbook-backend/internal/counter"
	"github.com/stampbook-app/stampbook-backend/internal/events"
	"github.com/stampbook-app/stampbook-backend/internal/model"
)

// FollowWriter performs the remote side of a follow change: both edge
// documents plus both denormalized profile counters.
type FollowWriter interface {
	Follow(ctx context.Context, followerID, followeeID string) error
	Unfollow(ctx context.Context, followerID, followeeID string) error
}

// Follow-store key layout. One follows store holds three kinds of entries,
// all scoped to the authenticated viewer so sessions never share follow
// state or each other's optimistic count deltas:
//
//	{viewer}:state:{userID}     -> Flag: viewer follows userID
//	{viewer}:following:{userID} -> Count: userID's following total
//	{viewer}:follower:{userID}  -> Count: userID's follower total
func FollowStateKey(viewerID, userID string) string { return viewerID + ":state:" + userID }

func FollowingCountKey(viewerID, userID string) string { return viewerID + ":following:" + userID }

func FollowerCountKey(viewerID, userID string) string { return viewerID + ":follower:" + userID }

// Follows is the optimistic follow/unfollow mutator. A follow is a two-sided
// local update: the acting user's following count and the target's follower
// count move together, and rollback restores both sides (there is no
// cross-document transaction, so the compensator reapplies every reversion
// itself).
type Follows struct {
	store  *counter.Store
	remote FollowWriter
	engine *Engine
	bus    *events.Bus

	mu sync.Mutex
}

func NewFollows(store *counter.Store, remote FollowWriter, engine *Engine, bus *events.Bus) *Follows {
	return &Follows{store: store, remote: remote, engine: engine, bus: bus}
}

// Follow makes followerID follow followeeID.
func (f *Follows) Follow(ctx context.Context, followerID, followeeID string) (<-chan error, error) {
	return f.change(ctx, followerID, followeeID, true)
}

// Unfollow reverses a follow. Decrements floor at 0 to defend against races
// that would otherwise drive a counter negative.
func (f *Follows) Unfollow(ctx context.Context, followerID, followeeID string) (<-chan error, error) {
	return f.change(ctx, followerID, followeeID, false)
}

func (f *Follows) change(ctx context.Context, followerID, followeeID string, follow bool) (<-chan error, error) {
	if followerID == followeeID {
		return nil, model.ErrCannotFollowSelf
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	stateKey := FollowStateKey(followerID, followeeID)
	followingKey := FollowingCountKey(followerID, followerID)
	followerKey := FollowerCountKey(followerID, followeeID)

	prevState := f.store.Get(stateKey)
	prevFollowing := f.store.Get(followingKey)
	prevFollower := f.store.Get(followerKey)

	if follow && prevState.Flag {
		return nil, model.ErrAlreadyFollowing
	}
	if !follow && !prevState.Flag {
		return nil, model.ErrNotFollowing
	}

	delta := int64(1)
	if !follow {
		delta = -1
	}
	next := map[string]counter.Entry{
		stateKey:     {Flag: follow},
		followingKey: {Count: floor0(prevFollowing.Count + delta)},
		followerKey:  {Count: floor0(prevFollower.Count + delta)},
	}
	prev := map[string]counter.Entry{
		stateKey:     prevState,
		followingKey: prevFollowing,
		followerKey:  prevFollower,
	}

	name := "Follow"
	if !follow {
		name = "Unfollow"
	}

	m := Mutation{
		Name: name,
		Keys: []string{stateKey, followingKey, followerKey},
		Apply: func() error {
			if err := f.store.SetMany(next); err != nil {
				return err
			}
			f.notify(stateKey, followingKey, followerKey)
			return nil
		},
		Remote: func(rctx context.Context) error {
			if follow {
				return f.remote.Follow(rctx, followerID, followeeID)
			}
			return f.remote.Unfollow(rctx, followerID, followeeID)
		},
		Compensate: func() error {
			// Both sides must come back, or neither: SetMany restores
			// all three entries in one durable write.
			if err := f.store.SetMany(prev); err != nil {
				return err
			}
			f.notify(stateKey, followingKey, followerKey)
			return nil
		},
		FailureMessage: "Couldn't update follow. Please try again.",
	}

	return f.engine.Do(ctx, m)
}

// IsFollowing returns the viewer's current local follow state for a user.
func (f *Follows) IsFollowing(viewerID, userID string) bool {
	return f.store.Get(FollowStateKey(viewerID, userID)).Flag
}

// Counts returns the viewer's locally cached (follower, following) totals
// for a user.
func (f *Follows) Counts(viewerID, userID string) (followers, following int64) {
	return f.store.Get(FollowerCountKey(viewerID, userID)).Count,
		f.store.Get(FollowingCountKey(viewerID, userID)).Count
}

// SeedCounts primes the viewer's cached totals for a user from freshly
// fetched profile data. Keys with a pending mutation keep their optimistic
// value; the engine holds the pending set locked across the write.
func (f *Follows) SeedCounts(viewerID, userID string, followers, following int64) error {
	return f.engine.SetManySettled(f.store, map[string]counter.Entry{
		FollowerCountKey(viewerID, userID):  {Count: followers},
		FollowingCountKey(viewerID, userID): {Count: following},
	})
}

func (f *Follows) notify(keys ...string) {
	for _, k := range keys {
		f.bus.CounterChanged(counter.KindFollows, k)
	}
}

func floor0(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
