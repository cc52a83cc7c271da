package progress

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catechize/playback/internal/domain"
	"github.com/catechize/playback/pkg/logger"
)

func newMemStorage(t *testing.T) *FileStorage {
	t.Helper()
	storage, err := NewFileStorage(afero.NewMemMapFs(), "/data/progress")
	require.NoError(t, err)
	return storage
}

func newTestStore(t *testing.T) (*Store, *FileStorage) {
	t.Helper()
	storage := newMemStorage(t)
	return New(context.Background(), storage, logger.Nop()), storage
}

func TestUpdateAndGet(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	store.Update(ctx, "ep1", domain.KindAudio, 30, 120)

	rec, ok := store.Get("ep1", domain.KindAudio)
	require.True(t, ok)
	assert.Equal(t, "ep1", rec.ID)
	assert.Equal(t, domain.KindAudio, rec.Kind)
	assert.Equal(t, 30.0, rec.CurrentTime)
	assert.Equal(t, 120.0, rec.Duration)
	assert.False(t, rec.Completed)
	assert.False(t, rec.LastUpdated.IsZero())
}

func TestUpdateIgnoresInvalidWrites(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	store.Update(ctx, "", domain.KindAudio, 30, 120)
	store.Update(ctx, "ep1", domain.KindAudio, -1, 120)
	store.Update(ctx, "ep1", domain.KindAudio, 30, 0)
	store.Update(ctx, "ep1", domain.Kind("bogus"), 30, 120)

	_, ok := store.Get("ep1", domain.KindAudio)
	assert.False(t, ok)
}

func TestCompletionThreshold(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	store.Update(ctx, "almost", domain.KindVideo, 107, 120)
	rec, _ := store.Get("almost", domain.KindVideo)
	assert.False(t, rec.Completed)

	// 108/120 is exactly the 0.9 threshold.
	store.Update(ctx, "done", domain.KindVideo, 108, 120)
	rec, _ = store.Get("done", domain.KindVideo)
	assert.True(t, rec.Completed)
}

func TestKindsPartitionIndependently(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	store.Update(ctx, "ep1", domain.KindAudio, 10, 100)
	store.Update(ctx, "ep1", domain.KindVideo, 50, 100)

	audio, ok := store.Get("ep1", domain.KindAudio)
	require.True(t, ok)
	video, ok := store.Get("ep1", domain.KindVideo)
	require.True(t, ok)
	assert.Equal(t, 10.0, audio.CurrentTime)
	assert.Equal(t, 50.0, video.CurrentTime)

	store.Clear(ctx, "ep1", domain.KindAudio)
	_, ok = store.Get("ep1", domain.KindAudio)
	assert.False(t, ok)
	_, ok = store.Get("ep1", domain.KindVideo)
	assert.True(t, ok, "clearing one kind must not touch the others")
}

func TestPersistenceSurvivesRestart(t *testing.T) {
	storage := newMemStorage(t)
	ctx := context.Background()

	store := New(ctx, storage, logger.Nop())
	store.Update(ctx, "ep1", domain.KindAudio, 30, 120)
	store.Update(ctx, "ep2", domain.KindEmbed, 115, 120)

	reloaded := New(ctx, storage, logger.Nop())
	rec, ok := reloaded.Get("ep1", domain.KindAudio)
	require.True(t, ok)
	assert.Equal(t, 30.0, rec.CurrentTime)

	rec, ok = reloaded.Get("ep2", domain.KindEmbed)
	require.True(t, ok)
	assert.True(t, rec.Completed)
}

func TestCorruptPartitionStartsEmpty(t *testing.T) {
	storage := newMemStorage(t)
	ctx := context.Background()
	require.NoError(t, storage.Write(ctx, "media_progress_audio", []byte("{not json")))

	store := New(ctx, storage, logger.Nop())
	_, ok := store.Get("ep1", domain.KindAudio)
	assert.False(t, ok)

	// The store must stay writable after discarding the corrupt partition.
	store.Update(ctx, "ep1", domain.KindAudio, 5, 100)
	_, ok = store.Get("ep1", domain.KindAudio)
	assert.True(t, ok)
}

func TestClearKindAndClearAll(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	store.Update(ctx, "a", domain.KindAudio, 10, 100)
	store.Update(ctx, "b", domain.KindAudio, 20, 100)
	store.Update(ctx, "c", domain.KindVideo, 30, 100)

	store.ClearKind(ctx, domain.KindAudio)
	_, ok := store.Get("a", domain.KindAudio)
	assert.False(t, ok)
	_, ok = store.Get("c", domain.KindVideo)
	assert.True(t, ok)

	store.ClearAll(ctx)
	_, ok = store.Get("c", domain.KindVideo)
	assert.False(t, ok)
}

func TestListCompletedAndInProgress(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	store.Update(ctx, "watching", domain.KindVideo, 10, 100)
	store.Update(ctx, "finished", domain.KindVideo, 95, 100)

	completed := store.ListCompleted(domain.KindVideo)
	require.Len(t, completed, 1)
	assert.Equal(t, "finished", completed[0].ID)

	inProgress := store.ListInProgress(domain.KindVideo)
	require.Len(t, inProgress, 1)
	assert.Equal(t, "watching", inProgress[0].ID)
}
