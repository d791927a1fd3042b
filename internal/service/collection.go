package service

import (
	"context"
	"log"
	"time"

	"github.com/stampbook-app/stampbook-backend/internal/model"
	"github.com/stampbook-app/stampbook-backend/internal/queue"
	"github.com/stampbook-app/stampbook-backend/internal/repository"
)

// PhotoDeleter removes stored photo objects. Satisfied by the media service.
type PhotoDeleter interface {
	DeleteObject(ctx context.Context, key string) error
}

// CollectionService handles collecting and un-collecting stamps. Each
// successful write publishes a feed event so workers fan the change out to
// follower feed caches.
type CollectionService struct {
	collectedRepo repository.CollectedRepository
	stampRepo     repository.StampRepository
	publisher     queue.Publisher
	photos        PhotoDeleter // Can be nil if media not wired
}

func NewCollectionService(
	collectedRepo repository.CollectedRepository,
	stampRepo repository.StampRepository,
	publisher queue.Publisher,
	photos PhotoDeleter,
) *CollectionService {
	return &CollectionService{
		collectedRepo: collectedRepo,
		stampRepo:     stampRepo,
		publisher:     publisher,
		photos:        photos,
	}
}

// Collect records that the viewer collected a stamp. The stamp must exist in
// the catalog, and a user collects any given stamp at most once.
func (s *CollectionService) Collect(ctx context.Context, viewerID, stampID string, photoKeys []string) (*model.CollectedStamp, error) {
	if len(photoKeys) > model.MaxCollectPhotos {
		return nil, model.ErrTooManyPhotos
	}

	// Fail fast if the stamp isn't in the catalog
	if _, err := s.stampRepo.GetByID(ctx, stampID); err != nil {
		return nil, err
	}

	rec := &model.CollectedStamp{
		StampID:     stampID,
		OwnerID:     viewerID,
		CollectedAt: time.Now(),
		PhotoKeys:   photoKeys,
	}

	if err := s.collectedRepo.Create(ctx, rec); err != nil {
		return nil, err
	}

	event := queue.NewStampCollectedEvent(model.PostID(viewerID, stampID), viewerID)
	if _, err := s.publisher.Publish(ctx, queue.StreamFeed, event); err != nil {
		// The record landed; fan-out lags until the next cache warm
		log.Printf("[CollectionService] Publish failed for post=%s: %v", model.PostID(viewerID, stampID), err)
	}

	log.Printf("[CollectionService] Collect OK: owner=%s stamp=%s photos=%d", viewerID, stampID, len(photoKeys))
	return rec, nil
}

// Remove deletes the viewer's collection of a stamp and cleans up its photos.
func (s *CollectionService) Remove(ctx context.Context, viewerID, stampID string) error {
	rec, err := s.collectedRepo.GetByOwnerAndStamp(ctx, viewerID, stampID)
	if err != nil {
		return err
	}

	if err := s.collectedRepo.Delete(ctx, viewerID, stampID); err != nil {
		return err
	}

	event := queue.NewCollectionRemovedEvent(model.PostID(viewerID, stampID), viewerID)
	if _, err := s.publisher.Publish(ctx, queue.StreamFeed, event); err != nil {
		log.Printf("[CollectionService] Publish failed for post=%s: %v", model.PostID(viewerID, stampID), err)
	}

	// Photo cleanup is best effort; orphaned objects just cost storage
	if s.photos != nil {
		for _, key := range rec.PhotoKeys {
			if err := s.photos.DeleteObject(ctx, key); err != nil {
				log.Printf("[CollectionService] Photo delete failed: key=%s err=%v", key, err)
			}
		}
	}

	log.Printf("[CollectionService] Remove OK: owner=%s stamp=%s", viewerID, stampID)
	return nil
}
