package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/catechize/playback/internal/api"
	"github.com/catechize/playback/internal/auth"
	"github.com/catechize/playback/internal/config"
	"github.com/catechize/playback/internal/embed"
	"github.com/catechize/playback/internal/events"
	"github.com/catechize/playback/internal/player"
	"github.com/catechize/playback/internal/progress"
	"github.com/catechize/playback/internal/repository/dynamodb"
	"github.com/catechize/playback/internal/repository/rediskv"
	"github.com/catechize/playback/internal/repository/s3"
	"github.com/catechize/playback/internal/service/session"
	"github.com/catechize/playback/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	log.Info("starting playback api", "version", cfg.App.Version)

	ctx := context.Background()

	// Initialize AWS clients
	s3Client, err := s3.NewClient(ctx, cfg.AWS)
	if err != nil {
		log.Error("failed to initialize S3 client", "error", err)
		os.Exit(1)
	}

	dynamoClient, err := dynamodb.NewClient(ctx, cfg.AWS)
	if err != nil {
		log.Error("failed to initialize DynamoDB client", "error", err)
		os.Exit(1)
	}

	// Initialize progress storage
	storage, err := newProgressStorage(cfg)
	if err != nil {
		log.Error("failed to initialize progress storage", "error", err)
		os.Exit(1)
	}
	store := progress.New(ctx, storage, log)

	// Initialize event sink; analytics is best-effort and must not block
	// playback when Redis is down
	var sink events.Sink
	redisSink, err := events.NewRedisSink(cfg.Redis)
	if err != nil {
		log.Warn("event sink unavailable, playback events will be discarded", "error", err)
		sink = events.NopSink{}
	} else {
		sink = redisSink
		defer redisSink.Close()
	}

	// Initialize session manager
	playerCfg := player.Config{
		PollInterval: cfg.Playback.PollInterval,
		SkipForward:  cfg.Playback.SkipForwardSeconds,
		SkipBackward: cfg.Playback.SkipBackwardSeconds,
		MinSpeed:     cfg.Playback.MinSpeed,
		MaxSpeed:     cfg.Playback.MaxSpeed,
	}
	sessions := session.NewManager(dynamoClient, s3Client, store, embed.Default, sink, playerCfg, cfg.AWS.PresignTTL, log)

	// Initialize HTTP router
	router := api.NewRouter(api.RouterConfig{
		Sessions: sessions,
		Progress: store,
		Catalog:  dynamoClient,
		Auth:     auth.NewStaticResolver(cfg.Auth.Subjects, cfg.Auth.Permissions),
		Logger:   log,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sessions.CloseAll(shutdownCtx)

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}

// newProgressStorage picks the configured progress backend
func newProgressStorage(cfg *config.Config) (progress.Storage, error) {
	switch cfg.Progress.Backend {
	case "redis":
		return rediskv.NewClient(cfg.Redis, cfg.Progress.KeyPrefix)
	case "file", "":
		return progress.NewFileStorage(nil, cfg.Progress.DataDir)
	default:
		return nil, fmt.Errorf("unknown progress backend %q", cfg.Progress.Backend)
	}
}
