package reconcile

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/stampbook-app/stampbook-backend/internal/repository"
)

// FirestoreDirectory implements Directory against the production schema:
// `users` documents with `followerCount`/`followingCount` fields and
// `following`/`followers` edge subcollections.
type FirestoreDirectory struct {
	fs *firestore.Client
}

func NewFirestoreDirectory(fs *firestore.Client) *FirestoreDirectory {
	return &FirestoreDirectory{fs: fs}
}

func (d *FirestoreDirectory) IterateUsers(ctx context.Context, fn func(userID string, stored Counts) error) error {
	iter := d.fs.Collection(repository.ColUsers).Documents(ctx)
	defer iter.Stop()

	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			return nil
		}
		if err != nil {
			return fmt.Errorf("iterate users: %w", err)
		}

		stored := Counts{
			Followers: readInt(snap, repository.FieldFollowerCount),
			Following: readInt(snap, repository.FieldFollowingCount),
		}
		if err := fn(snap.Ref.ID, stored); err != nil {
			return err
		}
	}
}

func (d *FirestoreDirectory) CountFollowing(ctx context.Context, userID string) (int64, error) {
	col := d.fs.Collection(repository.ColUsers).Doc(userID).Collection(repository.ColFollowing)
	return countDocs(col.Select().Documents(ctx))
}

// CountFollowers runs a collection-group query over every user's `following`
// subcollection, matching edges whose followeeId points at this user. One
// indexed query replaces the O(users) scan the original batch script did.
func (d *FirestoreDirectory) CountFollowers(ctx context.Context, userID string) (int64, error) {
	q := d.fs.CollectionGroup(repository.ColFollowing).
		Where(repository.FieldFolloweeID, "==", userID)
	return countDocs(q.Select().Documents(ctx))
}

func (d *FirestoreDirectory) UpdateCounts(ctx context.Context, userID string, counts Counts) error {
	_, err := d.fs.Collection(repository.ColUsers).Doc(userID).Update(ctx, []firestore.Update{
		{Path: repository.FieldFollowerCount, Value: counts.Followers},
		{Path: repository.FieldFollowingCount, Value: counts.Following},
	})
	if err != nil {
		return fmt.Errorf("update counts for %s: %w", userID, err)
	}
	return nil
}

func countDocs(iter *firestore.DocumentIterator) (int64, error) {
	defer iter.Stop()

	var n int64
	for {
		_, err := iter.Next()
		if err == iterator.Done {
			return n, nil
		}
		if err != nil {
			return 0, fmt.Errorf("count documents: %w", err)
		}
		n++
	}
}

func readInt(snap *firestore.DocumentSnapshot, field string) int64 {
	v, err := snap.DataAt(field)
	if err != nil {
		return 0 // field missing on legacy documents
	}
	if n, ok := v.(int64); ok {
		return n
	}
	return 0
}
