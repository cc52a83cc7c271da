package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/catechize/playback/internal/config"
	"github.com/catechize/playback/internal/events"
	"github.com/catechize/playback/internal/repository/dynamodb"
	"github.com/catechize/playback/internal/service/analytics"
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
	log.Info("starting analytics worker", "version", cfg.App.Version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize DynamoDB client
	dynamoClient, err := dynamodb.NewClient(ctx, cfg.AWS)
	if err != nil {
		log.Error("failed to initialize DynamoDB client", "error", err)
		os.Exit(1)
	}

	// Initialize event consumer
	sink, err := events.NewRedisSink(cfg.Redis)
	if err != nil {
		log.Error("failed to initialize event consumer", "error", err)
		os.Exit(1)
	}
	defer sink.Close()

	// Create worker pool
	worker := analytics.NewWorker(
		sink,
		dynamoClient,
		cfg.Worker.Concurrency,
		cfg.Worker.PollTimeout,
		log,
	)

	// Start worker
	go func() {
		log.Info("worker pool started", "concurrency", cfg.Worker.Concurrency)
		if err := worker.Start(ctx); err != nil {
			log.Error("worker error", "error", err)
			cancel()
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	// Wait for worker to finish current events
	worker.Wait()
	log.Info("worker stopped")
}
