package mutation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stampbook-app/stampbook-backend/internal/counter"
	"github.com/stampbook-app/stampbook-backend/internal/events"
	"github.com/stampbook-app/stampbook-backend/internal/model"
)

// CommentWriter performs the remote side of comment mutations. Add writes the
// comment document under the caller-chosen ID and bumps the denormalized
// count; Delete removes the document and decrements it.
type CommentWriter interface {
	Add(ctx context.Context, ownerID, stampID string, comment *model.Comment) error
	Delete(ctx context.Context, ownerID, stampID, commentID string) error
}

// CommentReader fetches a single comment, used for the delete ownership
// check.
type CommentReader interface {
	GetByID(ctx context.Context, ownerID, stampID, commentID string) (*model.Comment, error)
}

// Comments is the optimistic comment mutator. The comments store maps
// viewerID:postID -> {Count: believed-global comment count as last seen by
// that viewer}.
//
// Unlike the original client, deletions and additions both roll the cached
// count back on remote failure; the shared engine makes the symmetric
// guarantee free.
type Comments struct {
	store  *counter.Store
	writer CommentWriter
	reader CommentReader
	engine *Engine
	bus    *events.Bus

	mu sync.Mutex
}

func NewComments(store *counter.Store, writer CommentWriter, reader CommentReader, engine *Engine, bus *events.Bus) *Comments {
	return &Comments{store: store, writer: writer, reader: reader, engine: engine, bus: bus}
}

// Add optimistically appends a comment: the cached count moves up
// synchronously, the document write follows. The comment ID is minted here so
// the provisional comment returned to the caller and the stored document
// agree.
func (c *Comments) Add(ctx context.Context, viewerID, postID, content string) (*model.Comment, <-chan error, error) {
	if len(content) == 0 {
		return nil, nil, model.ErrContentRequired
	}
	if len(content) > model.MaxCommentLength {
		return nil, nil, model.ErrContentTooLong
	}

	ownerID, stampID, err := model.ParsePostID(postID)
	if err != nil {
		return nil, nil, err
	}

	comment := &model.Comment{
		ID:        uuid.NewString(),
		PostID:    postID,
		UserID:    viewerID,
		Content:   content,
		CreatedAt: time.Now(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := PostKey(viewerID, postID)
	prev := c.store.Get(key)
	next := counter.Entry{Count: prev.Count + 1}

	done, err := c.engine.Do(ctx, Mutation{
		Name: "AddComment",
		Keys: []string{key},
		Apply: func() error {
			if err := c.store.Set(key, next); err != nil {
				return err
			}
			c.bus.CounterChanged(counter.KindComments, key)
			return nil
		},
		Remote: func(rctx context.Context) error {
			return c.writer.Add(rctx, ownerID, stampID, comment)
		},
		Compensate: func() error {
			if err := c.store.Set(key, prev); err != nil {
				return err
			}
			c.bus.CounterChanged(counter.KindComments, key)
			return nil
		},
		FailureMessage: "Couldn't post comment. Please try again.",
	})
	if err != nil {
		return nil, nil, err
	}
	return comment, done, nil
}

// Delete removes a comment after an ownership check: the viewer must own
// either the comment or the post it sits on. The check reads the live
// document before any state changes, so a rejected delete touches nothing.
func (c *Comments) Delete(ctx context.Context, viewerID, postID, commentID string) (<-chan error, error) {
	ownerID, stampID, err := model.ParsePostID(postID)
	if err != nil {
		return nil, err
	}

	comment, err := c.reader.GetByID(ctx, ownerID, stampID, commentID)
	if err != nil {
		return nil, err
	}
	if comment.UserID != viewerID && ownerID != viewerID {
		return nil, model.ErrNotCommentOwner
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := PostKey(viewerID, postID)
	prev := c.store.Get(key)
	next := counter.Entry{Count: floor0(prev.Count - 1)}

	return c.engine.Do(ctx, Mutation{
		Name: "DeleteComment",
		Keys: []string{key},
		Apply: func() error {
			if err := c.store.Set(key, next); err != nil {
				return err
			}
			c.bus.CounterChanged(counter.KindComments, key)
			return nil
		},
		Remote: func(rctx context.Context) error {
			return c.writer.Delete(rctx, ownerID, stampID, commentID)
		},
		Compensate: func() error {
			if err := c.store.Set(key, prev); err != nil {
				return err
			}
			c.bus.CounterChanged(counter.KindComments, key)
			return nil
		},
		FailureMessage: "Couldn't delete comment. Please try again.",
	})
}

// Count returns the viewer's current local comment count for a post.
func (c *Comments) Count(viewerID, postID string) int64 {
	return c.store.Get(PostKey(viewerID, postID)).Count
}
