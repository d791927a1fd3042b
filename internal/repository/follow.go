package repository

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/stampbook-app/stampbook-backend/internal/model"
)

type followRepository struct {
	fs *firestore.Client
}

func NewFollowRepository(fs *firestore.Client) FollowRepository {
	return &followRepository{fs: fs}
}

func followingDoc(fs *firestore.Client, followerID, followeeID string) *firestore.DocumentRef {
	return userDoc(fs, followerID).Collection(ColFollowing).Doc(followeeID)
}

func followersDoc(fs *firestore.Client, followeeID, followerID string) *firestore.DocumentRef {
	return userDoc(fs, followeeID).Collection(ColFollowers).Doc(followerID)
}

// Follow writes the edge twice (follower's `following` list, followee's
// `followers` list) in one atomic batch, then bumps both profile counters.
// The counter bumps fail independently of the edges and each other; an edge
// without its counter bump is exactly the drift the reconcile job exists to
// repair.
func (r *followRepository) Follow(ctx context.Context, followerID, followeeID string) error {
	edge := model.FollowEdge{
		FollowerID: followerID,
		FolloweeID: followeeID,
		CreatedAt:  time.Now(),
	}

	// Create on the primary edge turns a duplicate follow into an atomic
	// abort; Set on the mirror converges over any stray leftover doc.
	batch := r.fs.Batch()
	batch.Create(followingDoc(r.fs, followerID, followeeID), edge)
	batch.Set(followersDoc(r.fs, followeeID, followerID), edge)

	_, err := batch.Commit(ctx)
	if status.Code(err) == codes.AlreadyExists {
		return model.ErrAlreadyFollowing
	}
	if err != nil {
		return fmt.Errorf("write follow edges: %w", err)
	}

	if _, err := userDoc(r.fs, followerID).Update(ctx, []firestore.Update{
		{Path: FieldFollowingCount, Value: firestore.Increment(1)},
	}); err != nil {
		return fmt.Errorf("increment following count: %w", err)
	}
	if _, err := userDoc(r.fs, followeeID).Update(ctx, []firestore.Update{
		{Path: FieldFollowerCount, Value: firestore.Increment(1)},
	}); err != nil {
		return fmt.Errorf("increment follower count: %w", err)
	}
	return nil
}

func (r *followRepository) Unfollow(ctx context.Context, followerID, followeeID string) error {
	batch := r.fs.Batch()
	batch.Delete(followingDoc(r.fs, followerID, followeeID), firestore.Exists)
	batch.Delete(followersDoc(r.fs, followeeID, followerID))

	_, err := batch.Commit(ctx)
	if status.Code(err) == codes.NotFound || status.Code(err) == codes.FailedPrecondition {
		return model.ErrNotFollowing
	}
	if err != nil {
		return fmt.Errorf("delete follow edges: %w", err)
	}

	if _, err := userDoc(r.fs, followerID).Update(ctx, []firestore.Update{
		{Path: FieldFollowingCount, Value: firestore.Increment(-1)},
	}); err != nil {
		return fmt.Errorf("decrement following count: %w", err)
	}
	if _, err := userDoc(r.fs, followeeID).Update(ctx, []firestore.Update{
		{Path: FieldFollowerCount, Value: firestore.Increment(-1)},
	}); err != nil {
		return fmt.Errorf("decrement follower count: %w", err)
	}
	return nil
}

func (r *followRepository) Exists(ctx context.Context, followerID, followeeID string) (bool, error) {
	snap, err := followingDoc(r.fs, followerID, followeeID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check follow edge: %w", err)
	}
	return snap.Exists(), nil
}

// CheckFollows batch-fetches the viewer's following edges for a set of users
// in one round trip (the N+1 avoidance the list endpoints rely on).
func (r *followRepository) CheckFollows(ctx context.Context, followerID string, followeeIDs []string) (map[string]bool, error) {
	if len(followeeIDs) == 0 {
		return map[string]bool{}, nil
	}

	refs := make([]*firestore.DocumentRef, len(followeeIDs))
	for i, id := range followeeIDs {
		refs[i] = followingDoc(r.fs, followerID, id)
	}

	snaps, err := r.fs.GetAll(ctx, refs)
	if err != nil {
		return nil, fmt.Errorf("check follows: %w", err)
	}

	follows := make(map[string]bool, len(followeeIDs))
	for i, snap := range snaps {
		follows[followeeIDs[i]] = snap.Exists()
	}
	return follows, nil
}

func (r *followRepository) GetFolloweeIDs(ctx context.Context, userID string) ([]string, error) {
	return r.edgeIDs(ctx, userDoc(r.fs, userID).Collection(ColFollowing))
}

func (r *followRepository) GetFollowerIDs(ctx context.Context, userID string) ([]string, error) {
	return r.edgeIDs(ctx, userDoc(r.fs, userID).Collection(ColFollowers))
}

func (r *followRepository) edgeIDs(ctx context.Context, col *firestore.CollectionRef) ([]string, error) {
	iter := col.Select().Documents(ctx) // IDs only, skip document payloads
	defer iter.Stop()

	var ids []string
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterate edges: %w", err)
		}
		ids = append(ids, snap.Ref.ID)
	}
	return ids, nil
}

func (r *followRepository) GetFollowers(ctx context.Context, userID string, cursor *time.Time, limit int) ([]model.UserSummary, *time.Time, error) {
	return r.edgePage(ctx, userDoc(r.fs, userID).Collection(ColFollowers), cursor, limit)
}

func (r *followRepository) GetFollowing(ctx context.Context, userID string, cursor *time.Time, limit int) ([]model.UserSummary, *time.Time, error) {
	return r.edgePage(ctx, userDoc(r.fs, userID).Collection(ColFollowing), cursor, limit)
}

// edgePage paginates an edge subcollection newest-first and joins profile
// summaries. Fetches limit+1 edges; when more exist, the last returned edge's
// timestamp becomes the next cursor.
func (r *followRepository) edgePage(ctx context.Context, col *firestore.CollectionRef, cursor *time.Time, limit int) ([]model.UserSummary, *time.Time, error) {
	q := col.OrderBy(FieldCreatedAt, firestore.Desc)
	if cursor != nil {
		q = q.Where(FieldCreatedAt, "<", *cursor)
	}
	iter := q.Limit(limit + 1).Documents(ctx)
	defer iter.Stop()

	type edgeRow struct {
		id        string
		createdAt time.Time
	}
	var rows []edgeRow
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("iterate edges: %w", err)
		}

		var edge model.FollowEdge
		if err := snap.DataTo(&edge); err != nil {
			return nil, nil, fmt.Errorf("unmarshal edge %q: %w", snap.Ref.ID, err)
		}
		rows = append(rows, edgeRow{id: snap.Ref.ID, createdAt: edge.CreatedAt})
	}

	var nextCursor *time.Time
	if len(rows) > limit {
		rows = rows[:limit]
		nextCursor = &rows[len(rows)-1].createdAt
	}
	if len(rows) == 0 {
		return nil, nil, nil
	}

	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.id
	}

	refs := make([]*firestore.DocumentRef, len(ids))
	for i, id := range ids {
		refs[i] = userDoc(r.fs, id)
	}
	snaps, err := r.fs.GetAll(ctx, refs)
	if err != nil {
		return nil, nil, fmt.Errorf("get edge profiles: %w", err)
	}

	var users []model.UserSummary
	for _, snap := range snaps {
		if !snap.Exists() {
			continue
		}
		user := &model.User{}
		if err := snap.DataTo(user); err != nil {
			return nil, nil, fmt.Errorf("unmarshal user %q: %w", snap.Ref.ID, err)
		}
		user.ID = snap.Ref.ID
		users = append(users, user.Summary())
	}
	return users, nextCursor, nil
}
