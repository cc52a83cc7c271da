package analytics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catechize/playback/internal/events"
	"github.com/catechize/playback/pkg/logger"
)

type fakeConsumer struct {
	queue chan *events.Event

	mu    sync.Mutex
	acked []*events.Event
}

func newFakeConsumer(queued ...*events.Event) *fakeConsumer {
	c := &fakeConsumer{queue: make(chan *events.Event, len(queued))}
	for _, e := range queued {
		c.queue <- e
	}
	return c
}

func (c *fakeConsumer) Next(ctx context.Context, timeout time.Duration) (*events.Event, error) {
	select {
	case e := <-c.queue:
		return e, nil
	case <-time.After(timeout):
		return nil, events.ErrNoEventAvailable
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeConsumer) Ack(_ context.Context, event *events.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.acked = append(c.acked, event)
	return nil
}

func (c *fakeConsumer) ackedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.acked)
}

type counterCall struct {
	episodeID          string
	plays, completions int64
}

type fakeCounters struct {
	mu    sync.Mutex
	calls []counterCall
}

func (f *fakeCounters) IncrementEpisodeCounters(_ context.Context, id string, plays, completions int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, counterCall{id, plays, completions})
	return nil
}

func (f *fakeCounters) snapshot() []counterCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]counterCall{}, f.calls...)
}

func TestWorkerFoldsEventsIntoCounters(t *testing.T) {
	consumer := newFakeConsumer(
		&events.Event{ID: "e1", Type: events.EventStarted, EpisodeID: "ep1"},
		&events.Event{ID: "e2", Type: events.EventCompleted, EpisodeID: "ep1"},
		&events.Event{ID: "e3", Type: events.EventPaused, EpisodeID: "ep1"},
	)
	counters := &fakeCounters{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	worker := NewWorker(consumer, counters, 1, 10*time.Millisecond, logger.Nop())
	require.NoError(t, worker.Start(ctx))

	require.Eventually(t, func() bool {
		return consumer.ackedCount() == 3
	}, time.Second, 10*time.Millisecond)

	cancel()
	worker.Wait()

	calls := counters.snapshot()
	require.Len(t, calls, 2, "pause events carry no counter delta")
	assert.Equal(t, counterCall{"ep1", 1, 0}, calls[0])
	assert.Equal(t, counterCall{"ep1", 0, 1}, calls[1])
}

func TestWorkerStopsOnCancel(t *testing.T) {
	consumer := newFakeConsumer()
	ctx, cancel := context.WithCancel(context.Background())

	worker := NewWorker(consumer, &fakeCounters{}, 2, 10*time.Millisecond, logger.Nop())
	require.NoError(t, worker.Start(ctx))

	cancel()

	done := make(chan struct{})
	go func() {
		worker.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}
