package service

import (
	"fmt"
	"log"

	"github.com/stampbook-app/stampbook-backend/internal/counter"
	"github.com/stampbook-app/stampbook-backend/internal/feed"
	"github.com/stampbook-app/stampbook-backend/internal/mutation"
)

// SessionService handles sign-out: every counter key is scoped to the
// authenticated viewer, so only that viewer's slice of each store is wiped,
// along with their feed session state. Other signed-in sessions keep theirs.
type SessionService struct {
	stores []*counter.Store
	engine *mutation.Engine
	feed   *feed.Service
}

func NewSessionService(stores []*counter.Store, engine *mutation.Engine, feedSvc *feed.Service) *SessionService {
	return &SessionService{stores: stores, engine: engine, feed: feedSvc}
}

// SignOut drains in-flight mutations, then clears the viewer's counter keys
// so signing back in starts from zero-defaults instead of stale state.
func (s *SessionService) SignOut(viewerID string) error {
	// Let pending remote writes finish (or roll back) before wiping the
	// state they would compensate into
	s.engine.Wait()

	for _, store := range s.stores {
		if err := store.ClearPrefix(viewerID + ":"); err != nil {
			return fmt.Errorf("clear counter store: %w", err)
		}
	}

	s.feed.ForgetViewer(viewerID)

	log.Printf("[SessionService] SignOut OK: viewer=%s stores=%d", viewerID, len(s.stores))
	return nil
}
