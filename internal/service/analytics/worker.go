// Package analytics drains playback lifecycle events and folds them into the
// catalog's play and completion counters.
package analytics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/catechize/playback/internal/events"
	"github.com/catechize/playback/pkg/logger"
)

// CounterStore is the counter side of the catalog. Implemented by the
// DynamoDB client.
type CounterStore interface {
	IncrementEpisodeCounters(ctx context.Context, id string, plays, completions int64) error
}

// Worker processes playback events from the sink
type Worker struct {
	consumer    events.Consumer
	counters    CounterStore
	concurrency int
	pollTimeout time.Duration
	log         *logger.Logger
	wg          sync.WaitGroup
}

// NewWorker creates a new analytics worker
func NewWorker(consumer events.Consumer, counters CounterStore, concurrency int, pollTimeout time.Duration, log *logger.Logger) *Worker {
	if concurrency < 1 {
		concurrency = 1
	}
	if pollTimeout <= 0 {
		pollTimeout = 5 * time.Second
	}
	return &Worker{
		consumer:    consumer,
		counters:    counters,
		concurrency: concurrency,
		pollTimeout: pollTimeout,
		log:         log,
	}
}

// Start begins processing events
func (w *Worker) Start(ctx context.Context) error {
	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.processLoop(ctx, i)
	}
	return nil
}

// Wait waits for all workers to finish
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) processLoop(ctx context.Context, workerID int) {
	defer w.wg.Done()

	w.log.Info("worker started", "worker_id", workerID)

	for {
		select {
		case <-ctx.Done():
			w.log.Info("worker stopping", "worker_id", workerID)
			return
		default:
		}

		event, err := w.consumer.Next(ctx, w.pollTimeout)
		if err != nil {
			if errors.Is(err, events.ErrNoEventAvailable) || errors.Is(err, context.Canceled) {
				continue
			}
			w.log.Error("failed to fetch event", "error", err)
			continue
		}

		if err := w.process(ctx, event); err != nil {
			w.log.Error("event processing failed", "error", err, "event_id", event.ID)
			continue
		}

		if err := w.consumer.Ack(ctx, event); err != nil {
			w.log.Error("failed to ack event", "error", err, "event_id", event.ID)
		}
	}
}

// process folds one event into the episode counters. Events that carry no
// counter delta are acknowledged untouched.
func (w *Worker) process(ctx context.Context, event *events.Event) error {
	var plays, completions int64
	switch event.Type {
	case events.EventStarted:
		plays = 1
	case events.EventCompleted:
		completions = 1
	default:
		return nil
	}

	if err := w.counters.IncrementEpisodeCounters(ctx, event.EpisodeID, plays, completions); err != nil {
		return err
	}

	w.log.Info("event processed",
		"event_id", event.ID,
		"type", event.Type,
		"episode_id", event.EpisodeID,
	)
	return nil
}
