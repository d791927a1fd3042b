package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/stampbook-app/stampbook-backend/internal/model"
	"github.com/stampbook-app/stampbook-backend/internal/mutation"
	"github.com/stampbook-app/stampbook-backend/internal/repository"
)

// ProfileService assembles user profiles with relationship state and the
// locally cached follow counters.
type ProfileService struct {
	userRepo   repository.UserRepository
	followRepo repository.FollowRepository
	follows    *mutation.Follows
}

func NewProfileService(
	userRepo repository.UserRepository,
	followRepo repository.FollowRepository,
	follows *mutation.Follows,
) *ProfileService {
	return &ProfileService{
		userRepo:   userRepo,
		followRepo: followRepo,
		follows:    follows,
	}
}

// GetProfile fetches a profile and overlays local counter state.
//
// The stored counters seed the local follow store (skipping keys with an
// in-flight optimistic write), then the response reads the counters back out
// of the store so a pending follow shows its optimistic value instead of the
// server's stale one.
func (s *ProfileService) GetProfile(ctx context.Context, viewerID, userID string) (*model.ProfileResponse, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.follows.SeedCounts(viewerID, userID, user.FollowerCount, user.FollowingCount); err != nil {
		log.Printf("[ProfileService] Seed counts failed for user=%s: %v", userID, err)
	}
	user.FollowerCount, user.FollowingCount = s.follows.Counts(viewerID, userID)

	resp := &model.ProfileResponse{
		User:  *user,
		IsOwn: viewerID == userID,
	}

	if !resp.IsOwn {
		// Local state first; fall back to the edge document on a cold cache
		resp.IsFollowing = s.follows.IsFollowing(viewerID, userID)
		if !resp.IsFollowing {
			exists, err := s.followRepo.Exists(ctx, viewerID, userID)
			if err != nil {
				log.Printf("[ProfileService] Follow check failed: viewer=%s user=%s err=%v", viewerID, userID, err)
			} else {
				resp.IsFollowing = exists
			}
		}
	}

	return resp, nil
}

// GetFollowers pages through a user's followers newest-first.
func (s *ProfileService) GetFollowers(ctx context.Context, userID string, cursor *string, limit int) (*model.FollowListResponse, error) {
	return s.edgePage(ctx, userID, cursor, limit, s.followRepo.GetFollowers)
}

// GetFollowing pages through the users someone follows newest-first.
func (s *ProfileService) GetFollowing(ctx context.Context, userID string, cursor *string, limit int) (*model.FollowListResponse, error) {
	return s.edgePage(ctx, userID, cursor, limit, s.followRepo.GetFollowing)
}

func (s *ProfileService) edgePage(
	ctx context.Context,
	userID string,
	cursor *string,
	limit int,
	fetch func(context.Context, string, *time.Time, int) ([]model.UserSummary, *time.Time, error),
) (*model.FollowListResponse, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}

	var before *time.Time
	if cursor != nil {
		t, err := time.Parse(time.RFC3339Nano, *cursor)
		if err != nil {
			return nil, fmt.Errorf("invalid cursor: %w", err)
		}
		before = &t
	}

	users, next, err := fetch(ctx, userID, before, limit)
	if err != nil {
		return nil, err
	}

	resp := &model.FollowListResponse{
		Users:   users,
		HasMore: next != nil,
	}
	if next != nil {
		c := next.Format(time.RFC3339Nano)
		resp.NextCursor = &c
	}
	return resp, nil
}
