package repository

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/stampbook-app/stampbook-backend/internal/model"
)

type stampRepository struct {
	fs *firestore.Client
}

func NewStampRepository(fs *firestore.Client) StampRepository {
	return &stampRepository{fs: fs}
}

func (r *stampRepository) GetByID(ctx context.Context, id string) (*model.Stamp, error) {
	snap, err := r.fs.Collection(ColStamps).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, model.ErrStampNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get stamp %q: %w", id, err)
	}

	stamp := &model.Stamp{}
	if err := snap.DataTo(stamp); err != nil {
		return nil, fmt.Errorf("unmarshal stamp %q: %w", id, err)
	}
	stamp.ID = snap.Ref.ID
	return stamp, nil
}

func (r *stampRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*model.Stamp, error) {
	if len(ids) == 0 {
		return map[string]*model.Stamp{}, nil
	}

	refs := make([]*firestore.DocumentRef, len(ids))
	for i, id := range ids {
		refs[i] = r.fs.Collection(ColStamps).Doc(id)
	}

	snaps, err := r.fs.GetAll(ctx, refs)
	if err != nil {
		return nil, fmt.Errorf("get stamps: %w", err)
	}

	stamps := make(map[string]*model.Stamp, len(snaps))
	for _, snap := range snaps {
		if !snap.Exists() {
			continue
		}
		stamp := &model.Stamp{}
		if err := snap.DataTo(stamp); err != nil {
			return nil, fmt.Errorf("unmarshal stamp %q: %w", snap.Ref.ID, err)
		}
		stamp.ID = snap.Ref.ID
		stamps[stamp.ID] = stamp
	}
	return stamps, nil
}
