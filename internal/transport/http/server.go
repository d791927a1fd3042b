package http

import (
	"context"
	"fmt"
	"log"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/stampbook-app/stampbook-backend/internal/cache"
	"github.com/stampbook-app/stampbook-backend/internal/config"
	"github.com/stampbook-app/stampbook-backend/internal/counter"
	"github.com/stampbook-app/stampbook-backend/internal/events"
	"github.com/stampbook-app/stampbook-backend/internal/feed"
	"github.com/stampbook-app/stampbook-backend/internal/handler"
	"github.com/stampbook-app/stampbook-backend/internal/media"
	"github.com/stampbook-app/stampbook-backend/internal/mutation"
	"github.com/stampbook-app/stampbook-backend/internal/queue"
	appredis "github.com/stampbook-app/stampbook-backend/internal/redis"
	"github.com/stampbook-app/stampbook-backend/internal/repository"
	"github.com/stampbook-app/stampbook-backend/internal/service"
	"github.com/stampbook-app/stampbook-backend/internal/worker"
)

func Run() error {
	ctx := context.Background()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// 2. Connect to Firestore
	fs, err := firestore.NewClient(ctx, cfg.FirestoreProject)
	if err != nil {
		return fmt.Errorf("failed to connect to firestore: %w", err)
	}
	defer fs.Close()

	// 3. Connect to Redis
	redisClient, err := appredis.Connect(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer redisClient.Close()

	// 4. Open the local counter stores
	badgerDB, err := counter.Open(cfg.BadgerDir)
	if err != nil {
		return fmt.Errorf("failed to open counter database: %w", err)
	}
	defer badgerDB.Close()

	likeStore, err := counter.NewStore(badgerDB, counter.KindLikes)
	if err != nil {
		return fmt.Errorf("failed to load like store: %w", err)
	}
	commentStore, err := counter.NewStore(badgerDB, counter.KindComments)
	if err != nil {
		return fmt.Errorf("failed to load comment store: %w", err)
	}
	followStore, err := counter.NewStore(badgerDB, counter.KindFollows)
	if err != nil {
		return fmt.Errorf("failed to load follow store: %w", err)
	}

	// 5. Repositories
	userRepo := repository.NewUserRepository(fs)
	stampRepo := repository.NewStampRepository(fs)
	collectedRepo := repository.NewCollectedRepository(fs)
	likeRepo := repository.NewLikeRepository(fs)
	commentRepo := repository.NewCommentRepository(fs)
	followRepo := repository.NewFollowRepository(fs)

	// 6. Queue and workers
	publisher := queue.NewPublisher(redisClient)
	consumer := queue.NewConsumer(redisClient)

	feedCache := cache.NewFeedCache(redisClient)
	workerHandler := worker.NewHandler(feedCache, followRepo, collectedRepo)
	manager := worker.NewManager(consumer, workerHandler, worker.DefaultManagerConfig())
	if err := manager.Start(ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}
	defer manager.Stop()

	// 7. Mutation engine
	bus := events.NewBus()
	engine := mutation.NewEngine(bus, mutation.DefaultRemoteTimeout)

	followFanout := service.NewFollowFanout(followRepo, publisher)

	likes := mutation.NewLikes(likeStore, likeRepo, engine, bus)
	comments := mutation.NewComments(commentStore, commentRepo, commentRepo, engine, bus)
	follows := mutation.NewFollows(followStore, followFanout, engine, bus)

	// 8. Media
	mediaService, err := media.NewService(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create media service: %w", err)
	}

	// 9. Services
	stampCache := cache.NewStampCache(stampRepo)
	feedService := feed.NewService(
		feedCache, stampCache,
		collectedRepo, userRepo, followRepo, likeRepo,
		likeStore, commentStore, engine, follows,
		mediaService,
	)

	collectionService := service.NewCollectionService(collectedRepo, stampRepo, publisher, mediaService)
	profileService := service.NewProfileService(userRepo, followRepo, follows)
	sessionService := service.NewSessionService(
		[]*counter.Store{likeStore, commentStore, followStore}, engine, feedService)

	// 10. Handlers and router
	routerCfg := RouterConfig{
		FeedHandler:       handler.NewFeedHandler(feedService),
		LikeHandler:       handler.NewLikeHandler(likes),
		CommentHandler:    handler.NewCommentHandler(comments, commentRepo, userRepo),
		FollowHandler:     handler.NewFollowHandler(follows),
		CollectionHandler: handler.NewCollectionHandler(collectionService),
		ProfileHandler:    handler.NewProfileHandler(profileService),
		MediaHandler:      handler.NewMediaHandler(mediaService),
		SessionHandler:    handler.NewSessionHandler(sessionService),
		CountersHandler:   handler.NewCountersHandler(likeStore, commentStore, followStore),
		EventsHandler:     handler.NewEventsHandler(bus),
		JWTSecret:         cfg.JWTSecret,
	}
	router := NewRouter(routerCfg)

	// 11. Serve with graceful shutdown
	server := &stdhttp.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting server on :%s", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Printf("Received %v, shutting down", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	// Let in-flight optimistic mutations settle before the stores close
	engine.Wait()

	return nil
}
