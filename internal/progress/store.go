// Package progress is the single source of truth for "where did I leave off"
// per media item, partitioned by kind so an audio item and a video item may
// share an ID without collision.
package progress

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/catechize/playback/internal/domain"
	"github.com/catechize/playback/pkg/logger"
)

// CompletionThreshold is the fraction of duration at which an item counts as
// finished.
const CompletionThreshold = 0.9

// Storage is the durable key-value backing: one key per kind, the value being
// the JSON-serialized partition map.
type Storage interface {
	// Read returns the stored partition bytes, or (nil, nil) when absent.
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, data []byte) error
}

var kinds = []domain.Kind{domain.KindAudio, domain.KindVideo, domain.KindEmbed}

// Store keeps all three partitions in memory and re-serializes the whole
// affected partition to the backing storage on every write. Safe for
// concurrent use within one process; two processes sharing a backend can
// still overwrite each other's writes, which matches the original
// browser-storage behavior and is an accepted limitation.
type Store struct {
	storage Storage
	log     *logger.Logger

	mu         sync.Mutex
	partitions map[domain.Kind]map[string]domain.ProgressRecord

	now func() time.Time
}

// New constructs a store and loads all partitions from storage. Missing or
// corrupt partitions are treated as empty, never fatal.
func New(ctx context.Context, storage Storage, log *logger.Logger) *Store {
	s := &Store{
		storage:    storage,
		log:        log,
		partitions: make(map[domain.Kind]map[string]domain.ProgressRecord, len(kinds)),
		now:        time.Now,
	}

	for _, kind := range kinds {
		s.partitions[kind] = make(map[string]domain.ProgressRecord)

		data, err := storage.Read(ctx, partitionKey(kind))
		if err != nil {
			log.Warn("loading progress partition failed, starting empty", "kind", kind, "error", err)
			continue
		}
		if len(data) == 0 {
			continue
		}
		var part map[string]domain.ProgressRecord
		if err := json.Unmarshal(data, &part); err != nil {
			log.Warn("progress partition corrupt, starting empty", "kind", kind, "error", err)
			continue
		}
		s.partitions[kind] = part
	}

	return s
}

func partitionKey(kind domain.Kind) string {
	return "media_progress_" + string(kind)
}

// Update overwrites the record for (id, kind) and persists the partition.
// Writes with an empty id, negative time or non-positive duration are
// silently ignored.
func (s *Store) Update(ctx context.Context, id string, kind domain.Kind, currentTime, duration float64) {
	if id == "" || currentTime < 0 || duration <= 0 || !kind.Valid() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.partitions[kind][id] = domain.ProgressRecord{
		ID:          id,
		Kind:        kind,
		CurrentTime: currentTime,
		Duration:    duration,
		LastUpdated: s.now(),
		Completed:   currentTime/duration >= CompletionThreshold,
	}
	s.persistLocked(ctx, kind)
}

// Get returns the record for (id, kind). It never fails; absence is reported
// through the second return value.
func (s *Store) Get(id string, kind domain.Kind) (domain.ProgressRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	part, ok := s.partitions[kind]
	if !ok {
		return domain.ProgressRecord{}, false
	}
	rec, ok := part[id]
	return rec, ok
}

// Clear removes one record and persists the partition.
func (s *Store) Clear(ctx context.Context, id string, kind domain.Kind) {
	if !kind.Valid() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.partitions[kind], id)
	s.persistLocked(ctx, kind)
}

// ClearKind removes every record of one kind and persists the partition.
func (s *Store) ClearKind(ctx context.Context, kind domain.Kind) {
	if !kind.Valid() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.partitions[kind] = make(map[string]domain.ProgressRecord)
	s.persistLocked(ctx, kind)
}

// ClearAll removes everything across all kinds.
func (s *Store) ClearAll(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, kind := range kinds {
		s.partitions[kind] = make(map[string]domain.ProgressRecord)
		s.persistLocked(ctx, kind)
	}
}

// ListCompleted returns the records of a kind that crossed the completion
// threshold.
func (s *Store) ListCompleted(kind domain.Kind) []domain.ProgressRecord {
	return s.list(kind, true)
}

// ListInProgress returns the records of a kind that have not completed yet.
func (s *Store) ListInProgress(kind domain.Kind) []domain.ProgressRecord {
	return s.list(kind, false)
}

func (s *Store) list(kind domain.Kind, completed bool) []domain.ProgressRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.ProgressRecord, 0)
	for _, rec := range s.partitions[kind] {
		if rec.Completed == completed {
			out = append(out, rec)
		}
	}
	return out
}

// persistLocked serializes the whole partition and writes it through. Persist
// failures are logged, not surfaced: the in-memory state stays authoritative
// for the rest of the process lifetime.
func (s *Store) persistLocked(ctx context.Context, kind domain.Kind) {
	data, err := json.Marshal(s.partitions[kind])
	if err != nil {
		s.log.Error("marshaling progress partition failed", "kind", kind, "error", err)
		return
	}
	if err := s.storage.Write(ctx, partitionKey(kind), data); err != nil {
		s.log.Error("persisting progress partition failed", "kind", kind, "error", err)
	}
}
