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

type commentRepository struct {
	fs *firestore.Client
}

func NewCommentRepository(fs *firestore.Client) CommentRepository {
	return &commentRepository{fs: fs}
}

func commentDoc(fs *firestore.Client, ownerID, stampID, commentID string) *firestore.DocumentRef {
	return collectedDoc(fs, ownerID, stampID).Collection(ColComments).Doc(commentID)
}

func (r *commentRepository) Add(ctx context.Context, ownerID, stampID string, comment *model.Comment) error {
	_, err := commentDoc(r.fs, ownerID, stampID, comment.ID).Create(ctx, comment)
	if status.Code(err) == codes.AlreadyExists {
		// Retried write of the same client-minted ID; already applied.
		return nil
	}
	if err != nil {
		return fmt.Errorf("create comment: %w", err)
	}

	if _, err := collectedDoc(r.fs, ownerID, stampID).Update(ctx, []firestore.Update{
		{Path: FieldCommentCount, Value: firestore.Increment(1)},
	}); err != nil {
		return fmt.Errorf("increment comment count: %w", err)
	}
	return nil
}

func (r *commentRepository) Delete(ctx context.Context, ownerID, stampID, commentID string) error {
	_, err := commentDoc(r.fs, ownerID, stampID, commentID).Delete(ctx, firestore.Exists)
	if status.Code(err) == codes.NotFound || status.Code(err) == codes.FailedPrecondition {
		return model.ErrCommentNotFound
	}
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}

	if _, err := collectedDoc(r.fs, ownerID, stampID).Update(ctx, []firestore.Update{
		{Path: FieldCommentCount, Value: firestore.Increment(-1)},
	}); err != nil {
		return fmt.Errorf("decrement comment count: %w", err)
	}
	return nil
}

func (r *commentRepository) GetByID(ctx context.Context, ownerID, stampID, commentID string) (*model.Comment, error) {
	snap, err := commentDoc(r.fs, ownerID, stampID, commentID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, model.ErrCommentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get comment %q: %w", commentID, err)
	}

	comment := &model.Comment{}
	if err := snap.DataTo(comment); err != nil {
		return nil, fmt.Errorf("unmarshal comment %q: %w", commentID, err)
	}
	comment.ID = snap.Ref.ID
	return comment, nil
}

// ListByPost paginates comments oldest-first, the display order under a post.
// Fetches limit+1 to decide whether a next cursor exists.
func (r *commentRepository) ListByPost(ctx context.Context, ownerID, stampID string, cursor *time.Time, limit int) ([]model.Comment, *time.Time, error) {
	q := collectedDoc(r.fs, ownerID, stampID).Collection(ColComments).
		OrderBy(FieldCreatedAt, firestore.Asc)
	if cursor != nil {
		q = q.Where(FieldCreatedAt, ">", *cursor)
	}
	iter := q.Limit(limit + 1).Documents(ctx)
	defer iter.Stop()

	var comments []model.Comment
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("iterate comments: %w", err)
		}

		var comment model.Comment
		if err := snap.DataTo(&comment); err != nil {
			return nil, nil, fmt.Errorf("unmarshal comment %q: %w", snap.Ref.ID, err)
		}
		comment.ID = snap.Ref.ID
		comments = append(comments, comment)
	}

	var nextCursor *time.Time
	if len(comments) > limit {
		comments = comments[:limit]
		nextCursor = &comments[len(comments)-1].CreatedAt
	}
	return comments, nextCursor, nil
}
