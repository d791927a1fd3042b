package feed

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/stampbook-app/stampbook-backend/internal/cache"
	"github.com/stampbook-app/stampbook-backend/internal/counter"
	"github.com/stampbook-app/stampbook-backend/internal/model"
	"github.com/stampbook-app/stampbook-backend/internal/mutation"
	"github.com/stampbook-app/stampbook-backend/internal/repository"
)

const (
	// DefaultLimit is the default number of posts per page
	DefaultLimit = 10

	// MaxLimit is the maximum number of posts per page
	MaxLimit = 50

	// CacheWarmLimit is max posts per followee to fetch when warming cache
	CacheWarmLimit = 100

	// RefreshDebounce is the minimum interval between full refreshes for one
	// viewer. A refresh inside the window serves the current cache instead of
	// re-warming.
	RefreshDebounce = 10 * time.Second

	// PrefetchLookahead is how many posts past the served page get their stamp
	// details prefetched.
	PrefetchLookahead = 10
)

// PhotoResolver turns stored photo keys into serveable URLs.
type PhotoResolver interface {
	PhotoURL(key string) string
}

// Service assembles feed pages: post IDs from the Redis feed cache, records
// and profiles from Firestore, stamp metadata from the TTL cache, and counter
// values merged through the local counter stores so optimistic values survive
// a refresh.
type Service struct {
	feedCache  cache.FeedCache
	stampCache *cache.StampCache

	collectedRepo repository.CollectedRepository
	userRepo      repository.UserRepository
	followRepo    repository.FollowRepository
	likeRepo      repository.LikeRepository

	likeStore    *counter.Store
	commentStore *counter.Store
	engine       *mutation.Engine
	follows      *mutation.Follows

	photos PhotoResolver

	mu          sync.Mutex
	lastRefresh map[string]time.Time
	lastGood    map[string]feedSnapshot
	refreshing  map[string]bool
}

// feedSnapshot is a viewer's last successfully served first page, kept for
// degraded-mode responses. It remembers whether that page had more results
// so the fallback reports the snapshot's real extent.
type feedSnapshot struct {
	posts   []model.Post
	hasMore bool
}

func NewService(
	feedCache cache.FeedCache,
	stampCache *cache.StampCache,
	collectedRepo repository.CollectedRepository,
	userRepo repository.UserRepository,
	followRepo repository.FollowRepository,
	likeRepo repository.LikeRepository,
	likeStore *counter.Store,
	commentStore *counter.Store,
	engine *mutation.Engine,
	follows *mutation.Follows,
	photos PhotoResolver,
) *Service {
	return &Service{
		feedCache:     feedCache,
		stampCache:    stampCache,
		collectedRepo: collectedRepo,
		userRepo:      userRepo,
		followRepo:    followRepo,
		likeRepo:      likeRepo,
		likeStore:     likeStore,
		commentStore:  commentStore,
		engine:        engine,
		follows:       follows,
		photos:        photos,
		lastRefresh:   make(map[string]time.Time),
		lastGood:      make(map[string]feedSnapshot),
		refreshing:    make(map[string]bool),
	}
}

// GetFeed retrieves the viewer's home feed with cursor-based pagination.
//
// Flow:
// 1. Check if cache exists for viewer
// 2. If no cache -> warm it (recent collections from every followee)
// 3. Get post IDs from cache (using cursor if provided)
// 4. Hydrate: records, profiles, stamps, likes, counters
// 5. Build next cursor from last post's score
func (s *Service) GetFeed(ctx context.Context, viewerID string, cursor *string, limit int) (*model.FeedResponse, error) {
	startTime := time.Now()
	limit = clampLimit(limit)

	exists, err := s.feedCache.Exists(ctx, viewerID)
	if err != nil {
		log.Printf("[FeedService] Cache check failed for viewer=%s: %v", viewerID, err)
		// Continue - GetFeed below will just return an empty page
	}

	if !exists {
		log.Printf("[FeedService] Cache miss for viewer=%s, warming...", viewerID)
		if err := s.warmCache(ctx, viewerID); err != nil {
			log.Printf("[FeedService] Cache warm failed for viewer=%s: %v", viewerID, err)
		}
	}

	var cursorScore *float64
	if cursor != nil {
		_, score, err := parseFeedCursor(*cursor)
		if err != nil {
			return nil, fmt.Errorf("invalid cursor: %w", err)
		}
		cursorScore = &score
	}

	postIDs, scores, err := s.feedCache.GetFeed(ctx, viewerID, cursorScore, limit)
	if err != nil {
		log.Printf("[FeedService] GetFeed cache error: %v", err)
		return s.lastKnownGood(viewerID, fmt.Errorf("get feed from cache: %w", err))
	}

	if len(postIDs) == 0 {
		log.Printf("[FeedService] Empty feed for viewer=%s", viewerID)
		return &model.FeedResponse{Posts: []model.Post{}}, nil
	}

	posts, err := s.hydratePosts(ctx, viewerID, postIDs)
	if err != nil {
		return s.lastKnownGood(viewerID, fmt.Errorf("hydrate posts: %w", err))
	}

	var nextCursor *string
	hasMore := len(postIDs) == limit
	if hasMore && len(scores) > 0 {
		c := formatFeedCursor(postIDs[len(postIDs)-1], scores[len(scores)-1])
		nextCursor = &c
		go s.prefetchNextPage(viewerID, scores[len(scores)-1])
	}

	// First page doubles as the fallback snapshot
	if cursor == nil {
		s.mu.Lock()
		s.lastGood[viewerID] = feedSnapshot{posts: posts, hasMore: hasMore}
		s.mu.Unlock()
	}

	log.Printf("[FeedService] GetFeed OK: viewer=%s posts=%d hasMore=%v duration=%v",
		viewerID, len(posts), hasMore, time.Since(startTime))

	return &model.FeedResponse{
		Posts:      posts,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// GetOwnFeed paginates the viewer's own collections newest-first, straight
// from Firestore. The "mine" scope skips the Redis cache entirely.
func (s *Service) GetOwnFeed(ctx context.Context, viewerID string, cursor *string, limit int) (*model.FeedResponse, error) {
	startTime := time.Now()
	limit = clampLimit(limit)

	var before *time.Time
	if cursor != nil {
		t, err := time.Parse(time.RFC3339Nano, *cursor)
		if err != nil {
			return nil, fmt.Errorf("invalid cursor: %w", err)
		}
		before = &t
	}

	records, err := s.collectedRepo.GetOwnerPage(ctx, viewerID, before, limit+1)
	if err != nil {
		return nil, fmt.Errorf("get owner page: %w", err)
	}

	hasMore := len(records) > limit
	if hasMore {
		records = records[:limit]
	}

	posts, err := s.hydrateRecords(ctx, viewerID, records)
	if err != nil {
		return nil, fmt.Errorf("hydrate posts: %w", err)
	}

	var nextCursor *string
	if hasMore && len(records) > 0 {
		c := records[len(records)-1].CollectedAt.Format(time.RFC3339Nano)
		nextCursor = &c
	}

	log.Printf("[FeedService] GetOwnFeed OK: viewer=%s posts=%d hasMore=%v duration=%v",
		viewerID, len(posts), hasMore, time.Since(startTime))

	return &model.FeedResponse{
		Posts:      posts,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// Refresh rebuilds the viewer's feed cache and returns the first page.
//
// Refreshes inside the debounce window are served from the existing cache
// unless force is set. A refresh already in flight for the viewer is never
// duplicated; the second caller reads whatever the cache holds.
func (s *Service) Refresh(ctx context.Context, viewerID string, force bool, limit int) (*model.FeedResponse, error) {
	s.mu.Lock()
	last, seen := s.lastRefresh[viewerID]
	inFlight := s.refreshing[viewerID]
	debounced := seen && time.Since(last) < RefreshDebounce
	shouldWarm := !inFlight && (force || !debounced)
	if shouldWarm {
		s.refreshing[viewerID] = true
		s.lastRefresh[viewerID] = time.Now()
	}
	s.mu.Unlock()

	if !shouldWarm {
		log.Printf("[FeedService] Refresh debounced: viewer=%s force=%v inFlight=%v", viewerID, force, inFlight)
		return s.GetFeed(ctx, viewerID, nil, limit)
	}

	defer func() {
		s.mu.Lock()
		delete(s.refreshing, viewerID)
		s.mu.Unlock()
	}()

	if err := s.warmCache(ctx, viewerID); err != nil {
		log.Printf("[FeedService] Refresh warm failed for viewer=%s: %v", viewerID, err)
		// Serve whatever the cache already holds
	}

	return s.GetFeed(ctx, viewerID, nil, limit)
}

// FetchSinglePost loads one post by its "{ownerId}-{stampId}" identifier.
func (s *Service) FetchSinglePost(ctx context.Context, viewerID, postID string) (*model.Post, error) {
	ownerID, stampID, err := model.ParsePostID(postID)
	if err != nil {
		return nil, err
	}

	rec, err := s.collectedRepo.GetByOwnerAndStamp(ctx, ownerID, stampID)
	if err != nil {
		return nil, err
	}

	posts, err := s.hydrateRecords(ctx, viewerID, []model.CollectedStamp{*rec})
	if err != nil {
		return nil, fmt.Errorf("hydrate post: %w", err)
	}
	if len(posts) == 0 {
		return nil, model.ErrPostNotFound
	}
	return &posts[0], nil
}

// ForgetViewer drops the per-viewer session state. Called on sign-out
// alongside clearing the viewer's slice of the counter stores.
func (s *Service) ForgetViewer(viewerID string) {
	s.mu.Lock()
	delete(s.lastRefresh, viewerID)
	delete(s.lastGood, viewerID)
	delete(s.refreshing, viewerID)
	s.mu.Unlock()
}

// warmCache populates the viewer's feed cache from Firestore.
func (s *Service) warmCache(ctx context.Context, viewerID string) error {
	startTime := time.Now()

	followeeIDs, err := s.followRepo.GetFolloweeIDs(ctx, viewerID)
	if err != nil {
		return fmt.Errorf("get followee ids: %w", err)
	}

	// The viewer's own collections show up in their feed too
	followeeIDs = append(followeeIDs, viewerID)

	var posts []cache.PostScore
	for _, id := range followeeIDs {
		recent, err := s.collectedRepo.GetRecentByOwner(ctx, id, CacheWarmLimit)
		if err != nil {
			log.Printf("[FeedService] Warm: failed to load owner=%s: %v", id, err)
			continue
		}
		posts = append(posts, recent...)
	}

	if len(posts) == 0 {
		log.Printf("[FeedService] No posts to warm for viewer=%s", viewerID)
		return nil
	}

	if err := s.feedCache.WarmCache(ctx, viewerID, posts); err != nil {
		return fmt.Errorf("warm cache: %w", err)
	}

	log.Printf("[FeedService] Cache warmed: viewer=%s posts=%d duration=%v",
		viewerID, len(posts), time.Since(startTime))

	return nil
}

// prefetchNextPage warms stamp details for the page the viewer is most likely
// to request next, so the follow-up hydration hits memory. Best effort; the
// stamp cache swallows prefetch failures.
func (s *Service) prefetchNextPage(viewerID string, afterScore float64) {
	ctx := context.Background()

	postIDs, _, err := s.feedCache.GetFeed(ctx, viewerID, &afterScore, PrefetchLookahead)
	if err != nil {
		return
	}

	seen := make(map[string]struct{}, len(postIDs))
	for _, id := range postIDs {
		_, stampID, err := model.ParsePostID(id)
		if err != nil {
			continue
		}
		if _, ok := seen[stampID]; ok {
			continue
		}
		seen[stampID] = struct{}{}
		s.stampCache.Prefetch(ctx, stampID)
	}
}

// hydratePosts resolves post IDs to full feed posts.
func (s *Service) hydratePosts(ctx context.Context, viewerID string, postIDs []string) ([]model.Post, error) {
	records, err := s.collectedRepo.GetByPostIDs(ctx, postIDs)
	if err != nil {
		return nil, fmt.Errorf("get records by ids: %w", err)
	}
	return s.hydrateRecords(ctx, viewerID, records)
}

// hydrateRecords builds feed posts from collected-stamp records: author
// profiles in one batch read, stamp metadata through the TTL cache, the
// viewer's like state in one batch check, and counters merged through the
// local counter stores.
func (s *Service) hydrateRecords(ctx context.Context, viewerID string, records []model.CollectedStamp) ([]model.Post, error) {
	if len(records) == 0 {
		return []model.Post{}, nil
	}

	ownerIDSet := make(map[string]struct{})
	stampIDSet := make(map[string]struct{})
	postIDs := make([]string, len(records))
	for i, rec := range records {
		ownerIDSet[rec.OwnerID] = struct{}{}
		stampIDSet[rec.StampID] = struct{}{}
		postIDs[i] = model.PostID(rec.OwnerID, rec.StampID)
	}

	ownerIDs := make([]string, 0, len(ownerIDSet))
	for id := range ownerIDSet {
		ownerIDs = append(ownerIDs, id)
	}

	owners, err := s.userRepo.GetByIDs(ctx, ownerIDs)
	if err != nil {
		return nil, fmt.Errorf("get owners: %w", err)
	}

	// Authoritative profile counters feed the local follow store, except for
	// keys with an optimistic write still in flight
	if s.follows != nil {
		for id, u := range owners {
			if err := s.follows.SeedCounts(viewerID, id, u.FollowerCount, u.FollowingCount); err != nil {
				log.Printf("[FeedService] Seed follow counts failed for user=%s: %v", id, err)
			}
		}
	}

	stamps := make(map[string]*model.Stamp, len(stampIDSet))
	for id := range stampIDSet {
		stamp, err := s.stampCache.Get(ctx, id)
		if err != nil {
			log.Printf("[FeedService] Failed to get stamp %s: %v", id, err)
			continue
		}
		stamps[id] = stamp
	}

	likeStatus, err := s.likeRepo.CheckLikes(ctx, viewerID, postIDs)
	if err != nil {
		log.Printf("[FeedService] Failed to check likes: %v", err)
	}

	s.syncCounters(viewerID, records, postIDs, likeStatus)

	posts := make([]model.Post, 0, len(records))
	for i, rec := range records {
		postID := postIDs[i]
		post := model.Post{
			ID:          postID,
			OwnerID:     rec.OwnerID,
			StampID:     rec.StampID,
			CollectedAt: rec.CollectedAt,
			IsOwn:       rec.OwnerID == viewerID,
		}

		if owner, ok := owners[rec.OwnerID]; ok {
			post.Author = owner.Summary()
		}
		if stamp, ok := stamps[rec.StampID]; ok {
			post.StampName = stamp.Name
			post.LocationText = stamp.LocationText
		}
		if s.photos != nil {
			post.PhotoURLs = make([]string, 0, len(rec.PhotoKeys))
			for _, key := range rec.PhotoKeys {
				post.PhotoURLs = append(post.PhotoURLs, s.photos.PhotoURL(key))
			}
		}

		// Counters come back out of the stores so in-flight optimistic
		// values override what Firestore just returned
		key := mutation.PostKey(viewerID, postID)
		like := s.likeStore.Get(key)
		post.LikeCount = like.Count
		post.IsLiked = like.Flag
		post.CommentCount = s.commentStore.Get(key).Count

		posts = append(posts, post)
	}

	return posts, nil
}

// syncCounters bulk-writes fetched counter values into the viewer's slice of
// the local stores. The engine filters out keys with an optimistic mutation
// in flight while holding the pending set locked across the write, so a slow
// remote write can't be clobbered by the server's stale pre-write value.
func (s *Service) syncCounters(viewerID string, records []model.CollectedStamp, postIDs []string, likeStatus map[string]bool) {
	likeEntries := make(map[string]counter.Entry)
	commentEntries := make(map[string]counter.Entry)

	for i, rec := range records {
		postID := postIDs[i]
		key := mutation.PostKey(viewerID, postID)
		likeEntries[key] = counter.Entry{
			Count: rec.LikeCount,
			Flag:  likeStatus[postID],
		}
		commentEntries[key] = counter.Entry{Count: rec.CommentCount}
	}

	if err := s.engine.SetManySettled(s.likeStore, likeEntries); err != nil {
		log.Printf("[FeedService] Like counter sync failed: %v", err)
	}
	if err := s.engine.SetManySettled(s.commentStore, commentEntries); err != nil {
		log.Printf("[FeedService] Comment counter sync failed: %v", err)
	}
}

// lastKnownGood serves the viewer's previous first page when a fresh load
// fails, so a flaky network shows stale posts instead of an error screen.
func (s *Service) lastKnownGood(viewerID string, cause error) (*model.FeedResponse, error) {
	s.mu.Lock()
	snap, ok := s.lastGood[viewerID]
	s.mu.Unlock()

	if !ok {
		return nil, cause
	}

	log.Printf("[FeedService] Serving last-known-good for viewer=%s after error: %v", viewerID, cause)
	return &model.FeedResponse{Posts: snap.posts, HasMore: snap.hasMore}, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// parseFeedCursor parses "postID:score" format cursors. Post IDs never
// contain a colon, so the last separator splits unambiguously.
func parseFeedCursor(cursor string) (string, float64, error) {
	idx := strings.LastIndex(cursor, ":")
	if idx <= 0 || idx == len(cursor)-1 {
		return "", 0, fmt.Errorf("invalid cursor format, expected postID:score")
	}

	postID := cursor[:idx]
	score, err := strconv.ParseFloat(cursor[idx+1:], 64)
	if err != nil {
		return "", 0, fmt.Errorf("invalid score in cursor: %w", err)
	}

	return postID, score, nil
}

// formatFeedCursor creates a "postID:score" cursor.
func formatFeedCursor(postID string, score float64) string {
	return fmt.Sprintf("%s:%.0f", postID, score)
}
