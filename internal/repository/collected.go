package repository

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/stampbook-app/stampbook-backend/internal/cache"
	"github.com/stampbook-app/stampbook-backend/internal/model"
)

type collectedRepository struct {
	fs *firestore.Client
}

func NewCollectedRepository(fs *firestore.Client) CollectedRepository {
	return &collectedRepository{fs: fs}
}

func (r *collectedRepository) Create(ctx context.Context, rec *model.CollectedStamp) error {
	doc := collectedDoc(r.fs, rec.OwnerID, rec.StampID)

	// Create (not Set) so collecting the same stamp twice fails cleanly.
	_, err := doc.Create(ctx, rec)
	if status.Code(err) == codes.AlreadyExists {
		return model.ErrAlreadyCollected
	}
	if err != nil {
		return fmt.Errorf("create collected stamp: %w", err)
	}

	if _, err := userDoc(r.fs, rec.OwnerID).Update(ctx, []firestore.Update{
		{Path: FieldCollectedCount, Value: firestore.Increment(1)},
	}); err != nil {
		// Record landed, counter bump failed. Feed still works; the profile
		// count self-corrects on the owner's next collection.
		return fmt.Errorf("increment collected count: %w", err)
	}
	return nil
}

func (r *collectedRepository) Delete(ctx context.Context, ownerID, stampID string) error {
	doc := collectedDoc(r.fs, ownerID, stampID)

	_, err := doc.Delete(ctx, firestore.Exists)
	if status.Code(err) == codes.NotFound || status.Code(err) == codes.FailedPrecondition {
		return model.ErrNotCollected
	}
	if err != nil {
		return fmt.Errorf("delete collected stamp: %w", err)
	}

	if _, err := userDoc(r.fs, ownerID).Update(ctx, []firestore.Update{
		{Path: FieldCollectedCount, Value: firestore.Increment(-1)},
	}); err != nil {
		return fmt.Errorf("decrement collected count: %w", err)
	}
	return nil
}

func (r *collectedRepository) GetByOwnerAndStamp(ctx context.Context, ownerID, stampID string) (*model.CollectedStamp, error) {
	snap, err := collectedDoc(r.fs, ownerID, stampID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, model.ErrNotCollected
	}
	if err != nil {
		return nil, fmt.Errorf("get collected stamp: %w", err)
	}

	rec := &model.CollectedStamp{}
	if err := snap.DataTo(rec); err != nil {
		return nil, fmt.Errorf("unmarshal collected stamp: %w", err)
	}
	return rec, nil
}

func (r *collectedRepository) GetByPostIDs(ctx context.Context, postIDs []string) ([]model.CollectedStamp, error) {
	if len(postIDs) == 0 {
		return nil, nil
	}

	refs := make([]*firestore.DocumentRef, 0, len(postIDs))
	for _, postID := range postIDs {
		ownerID, stampID, err := model.ParsePostID(postID)
		if err != nil {
			return nil, err
		}
		refs = append(refs, collectedDoc(r.fs, ownerID, stampID))
	}

	snaps, err := r.fs.GetAll(ctx, refs)
	if err != nil {
		return nil, fmt.Errorf("get collected stamps: %w", err)
	}

	recs := make([]model.CollectedStamp, 0, len(snaps))
	for _, snap := range snaps {
		if !snap.Exists() {
			continue // deleted since it entered the feed cache
		}
		var rec model.CollectedStamp
		if err := snap.DataTo(&rec); err != nil {
			return nil, fmt.Errorf("unmarshal collected stamp %q: %w", snap.Ref.ID, err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func (r *collectedRepository) GetRecentByOwner(ctx context.Context, ownerID string, limit int) ([]cache.PostScore, error) {
	iter := userDoc(r.fs, ownerID).Collection(ColCollected).
		OrderBy(FieldCollectedAt, firestore.Desc).
		Limit(limit).
		Documents(ctx)
	defer iter.Stop()

	var scores []cache.PostScore
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterate collected stamps: %w", err)
		}

		var rec model.CollectedStamp
		if err := snap.DataTo(&rec); err != nil {
			return nil, fmt.Errorf("unmarshal collected stamp %q: %w", snap.Ref.ID, err)
		}
		scores = append(scores, cache.PostScore{
			PostID:    model.PostID(ownerID, snap.Ref.ID),
			Timestamp: rec.CollectedAt.Unix(),
		})
	}
	return scores, nil
}

func (r *collectedRepository) GetOwnerPage(ctx context.Context, ownerID string, before *time.Time, limit int) ([]model.CollectedStamp, error) {
	q := userDoc(r.fs, ownerID).Collection(ColCollected).
		OrderBy(FieldCollectedAt, firestore.Desc)
	if before != nil {
		q = q.Where(FieldCollectedAt, "<", *before)
	}
	iter := q.Limit(limit).Documents(ctx)
	defer iter.Stop()

	var recs []model.CollectedStamp
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterate collected stamps: %w", err)
		}

		var rec model.CollectedStamp
		if err := snap.DataTo(&rec); err != nil {
			return nil, fmt.Errorf("unmarshal collected stamp %q: %w", snap.Ref.ID, err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
