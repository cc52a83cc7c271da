// Package session owns playback sessions: it resolves an episode to a
// playable source, stands up a controller over an HTTP bridge, and publishes
// lifecycle events.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/catechize/playback/internal/domain"
	"github.com/catechize/playback/internal/events"
	"github.com/catechize/playback/internal/player"
	"github.com/catechize/playback/pkg/logger"
)

// Catalog resolves episodes. Implemented by the DynamoDB client.
type Catalog interface {
	GetEpisode(ctx context.Context, id string) (*domain.Episode, error)
}

// MediaStore signs playback URLs for stored media objects. Implemented by the
// S3 client.
type MediaStore interface {
	PresignPlayback(ctx context.Context, key string, expiresIn time.Duration) (string, error)
}

// Session is one live playback controller and its client-facing bridge.
type Session struct {
	ID         string             `json:"id"`
	EpisodeID  string             `json:"episode_id"`
	Source     domain.MediaSource `json:"source"`
	CreatedAt  time.Time          `json:"created_at"`
	Controller *player.Controller `json:"-"`
	Bridge     *Bridge            `json:"-"`
}

// Manager creates and tracks playback sessions.
type Manager struct {
	catalog    Catalog
	media      MediaStore
	store      player.ProgressStore
	loader     player.EmbedLoader
	sink       events.Sink
	playerCfg  player.Config
	presignTTL time.Duration
	log        *logger.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a session manager. media may be nil when no object store
// is configured; sessions then require episodes with direct URLs.
func NewManager(catalog Catalog, media MediaStore, store player.ProgressStore, loader player.EmbedLoader, sink events.Sink, playerCfg player.Config, presignTTL time.Duration, log *logger.Logger) *Manager {
	if sink == nil {
		sink = events.NopSink{}
	}
	return &Manager{
		catalog:    catalog,
		media:      media,
		store:      store,
		loader:     loader,
		sink:       sink,
		playerCfg:  playerCfg,
		presignTTL: presignTTL,
		log:        log,
		sessions:   make(map[string]*Session),
	}
}

// Create resolves the episode, builds its media source for the requested kind
// and activates a controller for it.
func (m *Manager) Create(ctx context.Context, episodeID string, kind domain.Kind) (*Session, error) {
	if !kind.Valid() {
		return nil, domain.ErrInvalidKind
	}

	episode, err := m.catalog.GetEpisode(ctx, episodeID)
	if err != nil {
		return nil, err
	}

	source, err := m.resolveSource(ctx, episode, kind)
	if err != nil {
		return nil, err
	}

	bridge := NewBridge()
	ctrl := player.New(source, m.store, m.loader, bridge, m.playerCfg, m.log)
	if err := ctrl.Activate(ctx); err != nil {
		return nil, fmt.Errorf("failed to activate playback: %w", err)
	}
	if kind != domain.KindEmbed {
		ctrl.AttachElement(bridge)
	}

	sess := &Session{
		ID:         uuid.New().String(),
		EpisodeID:  episode.ID,
		Source:     source,
		CreatedAt:  time.Now(),
		Controller: ctrl,
		Bridge:     bridge,
	}

	m.mu.Lock()
	m.sessions[sess.ID] = sess
	m.mu.Unlock()

	m.publish(ctx, sess, events.EventStarted)
	m.log.WithFields(
		"session_id", sess.ID,
		"episode_id", episode.ID,
		"kind", kind,
	).Info("playback session created")

	return sess, nil
}

// resolveSource picks the playable URL for an episode and kind. Stored media
// objects win over direct URLs for the native kinds; the embed kind always
// uses the episode's external video URL.
func (m *Manager) resolveSource(ctx context.Context, episode *domain.Episode, kind domain.Kind) (domain.MediaSource, error) {
	url := episode.SourceFor(kind)

	if kind != domain.KindEmbed && episode.MediaKey != "" && m.media != nil {
		signed, err := m.media.PresignPlayback(ctx, episode.MediaKey, m.presignTTL)
		if err != nil {
			return domain.MediaSource{}, fmt.Errorf("failed to presign media: %w", err)
		}
		url = signed
	}

	if url == "" {
		return domain.MediaSource{}, domain.ErrNoSource
	}
	return domain.MediaSource{Kind: kind, URL: url, ID: episode.ID}, nil
}

// ResolvePlayback resolves an episode's playable source without opening a
// session, for clients that drive their own player.
func (m *Manager) ResolvePlayback(ctx context.Context, episodeID string, kind domain.Kind) (domain.MediaSource, error) {
	if !kind.Valid() {
		return domain.MediaSource{}, domain.ErrInvalidKind
	}
	episode, err := m.catalog.GetEpisode(ctx, episodeID)
	if err != nil {
		return domain.MediaSource{}, err
	}
	return m.resolveSource(ctx, episode, kind)
}

// Get returns a live session by ID.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return sess, nil
}

// Command dispatches a named control command to the session's controller.
func (m *Manager) Command(ctx context.Context, id, name string, value float64) error {
	sess, err := m.Get(id)
	if err != nil {
		return err
	}

	ctrl := sess.Controller
	switch name {
	case "play":
		ctrl.Play(ctx)
		m.publish(ctx, sess, events.EventStarted)
	case "pause":
		ctrl.Pause()
		m.publish(ctx, sess, events.EventPaused)
	case "toggle":
		ctrl.TogglePlay(ctx)
	case "seek":
		ctrl.Seek(value)
		m.publish(ctx, sess, events.EventSeeked)
	case "volume":
		ctrl.SetVolume(value)
	case "speed":
		ctrl.SetSpeed(value)
	case "skip-forward":
		ctrl.SkipForward(value)
	case "skip-backward":
		ctrl.SkipBackward(value)
	default:
		return fmt.Errorf("%w: unknown command %q", domain.ErrInvalidInput, name)
	}
	return nil
}

// ReportEvent feeds a client-observed media event into the session's bridge.
func (m *Manager) ReportEvent(_ context.Context, id string, report EventReport) error {
	sess, err := m.Get(id)
	if err != nil {
		return err
	}
	sess.Bridge.Apply(report)
	return nil
}

// Commands drains the session's pending client commands.
func (m *Manager) Commands(id string) ([]Command, error) {
	sess, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	return sess.Bridge.Drain(), nil
}

// Close tears the session down. A completed event precedes the closed event
// when the watcher got far enough through the episode.
func (m *Manager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return domain.ErrSessionNotFound
	}

	if record, found := m.store.Get(sess.EpisodeID, sess.Source.Kind); found && record.Completed {
		m.publish(ctx, sess, events.EventCompleted)
	}
	sess.Controller.Close()
	m.publish(ctx, sess, events.EventClosed)

	m.log.WithFields("session_id", sess.ID).Info("playback session closed")
	return nil
}

// CloseAll tears down every live session, typically on shutdown.
func (m *Manager) CloseAll(ctx context.Context) {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		if err := m.Close(ctx, id); err != nil {
			m.log.WithError(err).Warn("failed to close session")
		}
	}
}

func (m *Manager) publish(ctx context.Context, sess *Session, eventType events.EventType) {
	state := sess.Controller.State()
	event := &events.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		SessionID: sess.ID,
		EpisodeID: sess.EpisodeID,
		Kind:      sess.Source.Kind,
		Position:  state.CurrentTime,
		Duration:  state.Duration,
		At:        time.Now(),
	}
	if err := m.sink.Publish(ctx, event); err != nil {
		m.log.WithError(err).Warn("failed to publish playback event")
	}
}
