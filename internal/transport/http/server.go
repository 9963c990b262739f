package http

import (
	"context"
	"errors"
	"fmt"
	"log"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"templora_comments/internal/cache"
	"templora_comments/internal/config"
	"templora_comments/internal/database"
	"templora_comments/internal/handler"
	"templora_comments/internal/queue"
	appredis "templora_comments/internal/redis"
	"templora_comments/internal/repository"
	"templora_comments/internal/safety"
	"templora_comments/internal/service"
	"templora_comments/internal/worker"
)

// Run wires the whole application together and serves until SIGINT/SIGTERM.
func Run() error {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// 2. Connect to Database
	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	// 3. Connect to Redis (queue + thread cache)
	redisClient, err := appredis.NewClient(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to create redis client: %w", err)
	}
	defer redisClient.Close()

	ctx := context.Background()
	if err := redisClient.Ping(ctx); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	// 4. Repositories
	userRepo := repository.NewUserRepository(db)
	refreshTokenRepo := repository.NewRefreshTokenRepository(db)
	articleRepo := repository.NewArticleRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	voteRepo := repository.NewVoteRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	// 5. Safety classifier: real endpoint when configured, otherwise an
	// explicit permissive fallback so development setups still work
	var classifier safety.Classifier
	if cfg.SafetyAPIURL != "" {
		classifier = safety.NewHTTPClassifier(cfg.SafetyAPIURL, cfg.SafetyAPIKey)
	} else {
		log.Println("[Server] SAFETY_API_URL not set, content moderation disabled")
		classifier = safety.Permissive{}
	}

	// 6. Queue + cache
	publisher := queue.NewPublisher(redisClient.Client)
	consumer := queue.NewConsumer(redisClient.Client)
	threadCache := cache.NewThreadCache(redisClient.Client)

	// 7. Services
	userService := service.NewUserService(userRepo)
	authService := service.NewAuthService(refreshTokenRepo, cfg)
	commentService := service.NewCommentService(commentRepo, articleRepo, classifier, publisher, threadCache)
	voteService := service.NewVoteService(voteRepo, commentRepo, db, publisher, threadCache)
	notificationService := service.NewNotificationService(notificationRepo)

	mediaService, err := service.NewMediaService(ctx, cfg, userRepo)
	if err != nil {
		// Avatar uploads are optional; the rest of the API still works
		log.Printf("[Server] media service disabled: %v", err)
		mediaService = nil
	}

	// 8. Notification workers
	workerHandler := worker.NewHandler(commentRepo, articleRepo, notificationRepo)
	manager := worker.NewManager(consumer, workerHandler, worker.DefaultManagerConfig())
	if err := manager.Start(ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}
	defer manager.Stop()

	// 9. HTTP handlers + router
	router := NewRouter(RouterConfig{
		AuthHandler:         handler.NewAuthHandler(userService, authService),
		CommentHandler:      handler.NewCommentHandler(commentService, voteService),
		MediaHandler:        handler.NewMediaHandler(mediaService),
		NotificationHandler: handler.NewNotificationHandler(notificationService),
		JWTSecret:           cfg.JWTSecret,
		Users:               userRepo,
	})

	srv := &stdhttp.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	// 10. Serve until interrupted, then drain in-flight requests
	errCh := make(chan error, 1)
	go func() {
		log.Printf("[Server] Listening on :%s", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-stop:
		log.Printf("[Server] Received %s, shutting down", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	log.Println("[Server] Stopped")
	return nil
}
