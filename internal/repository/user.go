package repository

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/stampbook-app/stampbook-backend/internal/model"
)

type userRepository struct {
	fs *firestore.Client
}

func NewUserRepository(fs *firestore.Client) UserRepository {
	return &userRepository{fs: fs}
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	snap, err := userDoc(r.fs, id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, model.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %q: %w", id, err)
	}

	user := &model.User{}
	if err := snap.DataTo(user); err != nil {
		return nil, fmt.Errorf("unmarshal user %q: %w", id, err)
	}
	user.ID = snap.Ref.ID
	return user, nil
}

// GetByIDs fetches a batch of profiles in one round trip. Missing documents
// are skipped; feed assembly treats a vanished author as a droppable post.
func (r *userRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*model.User, error) {
	if len(ids) == 0 {
		return map[string]*model.User{}, nil
	}

	refs := make([]*firestore.DocumentRef, len(ids))
	for i, id := range ids {
		refs[i] = userDoc(r.fs, id)
	}

	snaps, err := r.fs.GetAll(ctx, refs)
	if err != nil {
		return nil, fmt.Errorf("get users: %w", err)
	}

	users := make(map[string]*model.User, len(snaps))
	for _, snap := range snaps {
		if !snap.Exists() {
			continue
		}
		user := &model.User{}
		if err := snap.DataTo(user); err != nil {
			return nil, fmt.Errorf("unmarshal user %q: %w", snap.Ref.ID, err)
		}
		user.ID = snap.Ref.ID
		users[user.ID] = user
	}
	return users, nil
}
