package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catechize/playback/internal/auth"
	"github.com/catechize/playback/internal/domain"
	"github.com/catechize/playback/internal/player"
	"github.com/catechize/playback/internal/progress"
	"github.com/catechize/playback/internal/service/session"
	"github.com/catechize/playback/pkg/logger"
)

type memCatalog struct {
	podcasts map[string]*domain.Podcast
	episodes map[string]*domain.Episode
}

func newMemCatalog() *memCatalog {
	return &memCatalog{
		podcasts: make(map[string]*domain.Podcast),
		episodes: make(map[string]*domain.Episode),
	}
}

func (c *memCatalog) CreatePodcast(_ context.Context, p *domain.Podcast) error {
	if _, ok := c.podcasts[p.ID]; ok {
		return domain.ErrAlreadyExists
	}
	c.podcasts[p.ID] = p
	return nil
}

func (c *memCatalog) GetPodcast(_ context.Context, id string) (*domain.Podcast, error) {
	p, ok := c.podcasts[id]
	if !ok {
		return nil, domain.ErrPodcastNotFound
	}
	return p, nil
}

func (c *memCatalog) UpdatePodcast(_ context.Context, p *domain.Podcast) error {
	c.podcasts[p.ID] = p
	return nil
}

func (c *memCatalog) DeletePodcast(_ context.Context, id string) error {
	delete(c.podcasts, id)
	return nil
}

func (c *memCatalog) ListPodcasts(_ context.Context, _ int32) ([]*domain.Podcast, error) {
	out := make([]*domain.Podcast, 0, len(c.podcasts))
	for _, p := range c.podcasts {
		out = append(out, p)
	}
	return out, nil
}

func (c *memCatalog) CreateEpisode(_ context.Context, e *domain.Episode) error {
	if _, ok := c.episodes[e.ID]; ok {
		return domain.ErrAlreadyExists
	}
	c.episodes[e.ID] = e
	return nil
}

func (c *memCatalog) GetEpisode(_ context.Context, id string) (*domain.Episode, error) {
	e, ok := c.episodes[id]
	if !ok {
		return nil, domain.ErrEpisodeNotFound
	}
	return e, nil
}

func (c *memCatalog) UpdateEpisode(_ context.Context, e *domain.Episode) error {
	c.episodes[e.ID] = e
	return nil
}

func (c *memCatalog) DeleteEpisode(_ context.Context, id string) error {
	delete(c.episodes, id)
	return nil
}

func (c *memCatalog) ListEpisodesByPodcast(_ context.Context, podcastID string, _ int32) ([]*domain.Episode, error) {
	out := make([]*domain.Episode, 0)
	for _, e := range c.episodes {
		if e.PodcastID == podcastID {
			out = append(out, e)
		}
	}
	return out, nil
}

type stubLoader struct{}

func (stubLoader) Load(context.Context) error { return nil }

type testServer struct {
	router  http.Handler
	catalog *memCatalog
	store   *progress.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	catalog := newMemCatalog()
	catalog.podcasts["pod1"] = domain.NewPodcast("pod1", "Catechesis")
	catalog.episodes["ep1"] = &domain.Episode{
		ID:        "ep1",
		PodcastID: "pod1",
		Title:     "First",
		AudioURL:  "https://cdn.example.com/ep1.mp3",
	}

	storage, err := progress.NewFileStorage(afero.NewMemMapFs(), "/data")
	require.NoError(t, err)
	store := progress.New(context.Background(), storage, logger.Nop())

	sessions := session.NewManager(
		catalog, nil, store, stubLoader{}, nil,
		player.DefaultConfig(), time.Hour, logger.Nop(),
	)

	resolver := auth.NewStaticResolver(
		map[string][]string{"admin-token": {"admin"}, "user-token": {"listener"}},
		map[string][]string{"admin": {"catalog.write", "progress.clear"}},
	)

	router := NewRouter(RouterConfig{
		Sessions: sessions,
		Progress: store,
		Catalog:  catalog,
		Auth:     resolver,
		Logger:   logger.Nop(),
	})

	return &testServer{router: router, catalog: catalog, store: store}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health", "", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/ready", "", nil).Code)
}

func TestCatalogWriteRequiresPermission(t *testing.T) {
	s := newTestServer(t)
	body := map[string]string{"title": "New Show"}

	rec := s.do(t, http.MethodPost, "/api/v1/podcasts", "", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/podcasts", "user-token", body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/podcasts", "admin-token", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created domain.Podcast
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "New Show", created.Title)
	assert.NotEmpty(t, created.ID)
}

func TestGetPodcast(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/podcasts/pod1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/podcasts/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateEpisodeValidatesPodcast(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/episodes", "admin-token", map[string]string{
		"title": "Orphan", "podcast_id": "missing",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/episodes", "admin-token", map[string]string{
		"title": "Second", "podcast_id": "pod1", "audio_url": "https://cdn.example.com/ep2.mp3",
	})
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestPlaybackResolution(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/episodes/ep1/playback?kind=audio", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var source domain.MediaSource
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &source))
	assert.Equal(t, "https://cdn.example.com/ep1.mp3", source.URL)

	rec = s.do(t, http.MethodGet, "/api/v1/episodes/ep1/playback?kind=video", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/episodes/ep1/playback?kind=tape", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/sessions", "", map[string]string{
		"episode_id": "ep1", "kind": "audio",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)

	// The client reports what its element observed.
	rec = s.do(t, http.MethodPost, "/api/v1/sessions/"+created.ID+"/events", "", map[string]interface{}{
		"event": "loadedmetadata", "duration": 300,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// Seek through the command endpoint, then drain what the client must apply.
	rec = s.do(t, http.MethodPost, "/api/v1/sessions/"+created.ID+"/commands", "", map[string]interface{}{
		"name": "seek", "value": 0.5,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var afterSeek sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &afterSeek))
	assert.Equal(t, 150.0, afterSeek.State.CurrentTime)

	rec = s.do(t, http.MethodGet, "/api/v1/sessions/"+created.ID+"/commands", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var drained struct {
		Commands []session.Command `json:"commands"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &drained))
	var names []string
	for _, c := range drained.Commands {
		names = append(names, c.Name)
	}
	assert.Contains(t, names, "seek")

	rec = s.do(t, http.MethodDelete, "/api/v1/sessions/"+created.ID, "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/sessions/"+created.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionCommandValidation(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/sessions", "", map[string]string{
		"episode_id": "ep1", "kind": "audio",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = s.do(t, http.MethodPost, "/api/v1/sessions/"+created.ID+"/commands", "", map[string]interface{}{
		"name": "eject",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/sessions/missing/commands", "", map[string]interface{}{
		"name": "play",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProgressEndpoints(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	s.store.Update(ctx, "ep1", domain.KindAudio, 30, 120)
	s.store.Update(ctx, "ep2", domain.KindAudio, 115, 120)

	rec := s.do(t, http.MethodGet, "/api/v1/progress/audio/ep1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var record domain.ProgressRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	assert.Equal(t, 30.0, record.CurrentTime)

	rec = s.do(t, http.MethodGet, "/api/v1/progress/audio/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/progress/tape/ep1", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/progress/audio?filter=completed", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listing struct {
		Records []domain.ProgressRecord `json:"records"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	require.Len(t, listing.Records, 1)
	assert.Equal(t, "ep2", listing.Records[0].ID)

	// Anyone may clear their own single record.
	rec = s.do(t, http.MethodDelete, "/api/v1/progress/audio/ep1", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	_, ok := s.store.Get("ep1", domain.KindAudio)
	assert.False(t, ok)

	// Bulk clears are privileged.
	rec = s.do(t, http.MethodDelete, "/api/v1/progress/audio", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/v1/progress/audio", "admin-token", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	_, ok = s.store.Get("ep2", domain.KindAudio)
	assert.False(t, ok)
}
