package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"messenger-backend/internal/cache"
	"messenger-backend/internal/config"
	"messenger-backend/internal/handlers"
	"messenger-backend/internal/middleware"
	"messenger-backend/internal/repository"
	"messenger-backend/internal/services"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Run() {
	// Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level)

	// Connect to database
	db, err := pgxpool.New(context.Background(), cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Database connection established")

	// Connect to the presence cache
	presenceCache, err := cache.NewPresenceCache(
		cfg.Valkey.Address,
		cfg.Valkey.Password,
		2*cfg.Engine.HeartbeatInterval,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to valkey")
	}
	defer presenceCache.Close()
	log.Info().Msg("Presence cache connection established")

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	convRepo := repository.NewConversationRepository(db)
	msgRepo := repository.NewMessageRepository(db)
	storyRepo := repository.NewStoryRepository(db)
	callRepo := repository.NewCallRepository(db)

	// External collaborators
	uploader, err := services.NewS3Uploader(
		cfg.AWS.Region,
		cfg.AWS.S3Bucket,
		cfg.AWS.AccessKey,
		cfg.AWS.SecretKey,
		cfg.AWS.Endpoint,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create uploader")
	}

	var notifier services.Notifier = services.NoopNotifier{}
	if cfg.APNs.Enabled {
		apns, err := services.NewAPNsNotifier(
			cfg.APNs.KeyFile,
			cfg.APNs.KeyID,
			cfg.APNs.TeamID,
			cfg.APNs.Topic,
			cfg.APNs.Sandbox,
		)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create APNs notifier")
		}
		notifier = apns
	}

	// Initialize the engine
	userService := services.NewUserService(userRepo, cfg.JWT.Secret)
	presence := services.NewPresenceTracker(userRepo, presenceCache, cfg.Engine.HeartbeatInterval)
	directory := services.NewDirectory(convRepo, msgRepo, userRepo, presence)
	pipelines := services.NewPipelines(convRepo, msgRepo, userRepo, notifier)
	stories := services.NewStories(storyRepo, userRepo, uploader, cfg.Engine.StoryTTL)
	playback := services.NewPlaybackSessions(
		stories,
		services.TickerScheduler{},
		cfg.Engine.StoryDuration,
		cfg.Engine.StoryTick,
	)
	callLog := services.NewCallLog(callRepo, userRepo, cfg.Engine.CallLogPageSize)

	// Initialize handlers
	userHandler := handlers.NewUserHandler(userService)
	convHandler := handlers.NewConversationHandler(directory)
	msgHandler := handlers.NewMessageHandler(pipelines, uploader)
	storyHandler := handlers.NewStoryHandler(stories, playback)
	callHandler := handlers.NewCallHandler(callLog)
	wsHandler := handlers.NewWebSocketHandler(presence, userService)

	// Run the heartbeat loop
	heartbeatCtx, stopHeartbeats := context.WithCancel(context.Background())
	defer stopHeartbeats()
	go presence.Run(heartbeatCtx)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsMiddleware)

	// Routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/users", userHandler.CreateUser)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(userService))

			r.Put("/users/push-token", userHandler.UpdatePushToken)

			r.Post("/conversations/individual", convHandler.CreateIndividual)
			r.Post("/conversations/group", convHandler.CreateGroup)
			r.Get("/conversations", convHandler.List)

			r.Get("/conversations/{conversation_id}/messages", msgHandler.List)
			r.Post("/conversations/{conversation_id}/messages", msgHandler.Send)
			r.Post("/conversations/{conversation_id}/attachments", msgHandler.Attach)
			r.Post("/conversations/{conversation_id}/voice-notes", msgHandler.RecordVoiceNote)
			r.Post("/conversations/{conversation_id}/messages/{message_id}/actions", msgHandler.Action)
			r.Post("/conversations/{conversation_id}/messages/{message_id}/forward", msgHandler.Forward)

			r.Post("/stories", storyHandler.Publish)
			r.Get("/stories", storyHandler.List)
			r.Post("/stories/{story_id}/view", storyHandler.View)
			r.Post("/stories/playback", storyHandler.OpenPlayback)
			r.Get("/stories/playback", storyHandler.PlaybackState)
			r.Post("/stories/playback/next", storyHandler.NextStory)
			r.Post("/stories/playback/previous", storyHandler.PreviousStory)
			r.Delete("/stories/playback", storyHandler.ClosePlayback)

			r.Get("/calls", callHandler.List)
		})
	})

	// WebSocket route (presence)
	r.Get("/ws", wsHandler.HandleWebSocket)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	stopHeartbeats()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
