// Package events is the pass-through playback analytics boundary: components
// publish lifecycle events into a sink, a worker drains them.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/catechize/playback/internal/domain"
)

// EventType labels a playback lifecycle event.
type EventType string

const (
	EventStarted   EventType = "started"
	EventPaused    EventType = "paused"
	EventSeeked    EventType = "seeked"
	EventCompleted EventType = "completed"
	EventClosed    EventType = "closed"
)

// ErrNoEventAvailable is returned when the sink has nothing to deliver.
var ErrNoEventAvailable = errors.New("no event available")

// Event records one playback lifecycle transition.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	SessionID string      `json:"session_id"`
	EpisodeID string      `json:"episode_id"`
	Kind      domain.Kind `json:"kind"`
	Position  float64     `json:"position"`
	Duration  float64     `json:"duration"`
	At        time.Time   `json:"at"`
}

// Sink accepts playback events. Publish must never block the playback path
// for long and failures are the publisher's to log, not to propagate.
type Sink interface {
	Publish(ctx context.Context, event *Event) error
}

// Consumer drains events for the analytics worker.
type Consumer interface {
	Next(ctx context.Context, timeout time.Duration) (*Event, error)
	Ack(ctx context.Context, event *Event) error
}

// NopSink discards everything. Used in tests and when analytics is disabled.
type NopSink struct{}

func (NopSink) Publish(context.Context, *Event) error { return nil }
