package repository

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/stampbook-app/stampbook-backend/internal/model"
)

type likeRepository struct {
	fs *firestore.Client
}

func NewLikeRepository(fs *firestore.Client) LikeRepository {
	return &likeRepository{fs: fs}
}

func likeDoc(fs *firestore.Client, ownerID, stampID, viewerID string) *firestore.DocumentRef {
	return collectedDoc(fs, ownerID, stampID).Collection(ColLikes).Doc(viewerID)
}

func (r *likeRepository) Like(ctx context.Context, ownerID, stampID, viewerID string) error {
	_, err := likeDoc(r.fs, ownerID, stampID, viewerID).Create(ctx, map[string]interface{}{
		"userId":    viewerID,
		"createdAt": time.Now(),
	})
	if status.Code(err) == codes.AlreadyExists {
		// Double-delivered toggle; the count was already bumped once.
		return nil
	}
	if status.Code(err) == codes.NotFound {
		return model.ErrPostNotFound
	}
	if err != nil {
		return fmt.Errorf("create like: %w", err)
	}

	if _, err := collectedDoc(r.fs, ownerID, stampID).Update(ctx, []firestore.Update{
		{Path: FieldLikeCount, Value: firestore.Increment(1)},
	}); err != nil {
		return fmt.Errorf("increment like count: %w", err)
	}
	return nil
}

func (r *likeRepository) Unlike(ctx context.Context, ownerID, stampID, viewerID string) error {
	_, err := likeDoc(r.fs, ownerID, stampID, viewerID).Delete(ctx, firestore.Exists)
	if status.Code(err) == codes.NotFound || status.Code(err) == codes.FailedPrecondition {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete like: %w", err)
	}

	if _, err := collectedDoc(r.fs, ownerID, stampID).Update(ctx, []firestore.Update{
		{Path: FieldLikeCount, Value: firestore.Increment(-1)},
	}); err != nil {
		return fmt.Errorf("decrement like count: %w", err)
	}
	return nil
}

// CheckLikes batch-fetches the viewer's like documents for a page of posts in
// one round trip.
func (r *likeRepository) CheckLikes(ctx context.Context, viewerID string, postIDs []string) (map[string]bool, error) {
	if len(postIDs) == 0 {
		return map[string]bool{}, nil
	}

	refs := make([]*firestore.DocumentRef, 0, len(postIDs))
	for _, postID := range postIDs {
		ownerID, stampID, err := model.ParsePostID(postID)
		if err != nil {
			return nil, err
		}
		refs = append(refs, likeDoc(r.fs, ownerID, stampID, viewerID))
	}

	snaps, err := r.fs.GetAll(ctx, refs)
	if err != nil {
		return nil, fmt.Errorf("check likes: %w", err)
	}

	liked := make(map[string]bool, len(postIDs))
	for i, snap := range snaps {
		liked[postIDs[i]] = snap.Exists()
	}
	return liked, nil
}
