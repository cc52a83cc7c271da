package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/catechize/playback/internal/domain"
	"github.com/catechize/playback/internal/progress"
	"github.com/catechize/playback/internal/service/session"
	"github.com/catechize/playback/pkg/logger"
)

// Catalog is the podcast/episode store the catalog handlers need.
// Implemented by the DynamoDB client.
type Catalog interface {
	CreatePodcast(ctx context.Context, podcast *domain.Podcast) error
	GetPodcast(ctx context.Context, id string) (*domain.Podcast, error)
	UpdatePodcast(ctx context.Context, podcast *domain.Podcast) error
	DeletePodcast(ctx context.Context, id string) error
	ListPodcasts(ctx context.Context, limit int32) ([]*domain.Podcast, error)
	CreateEpisode(ctx context.Context, episode *domain.Episode) error
	GetEpisode(ctx context.Context, id string) (*domain.Episode, error)
	UpdateEpisode(ctx context.Context, episode *domain.Episode) error
	DeleteEpisode(ctx context.Context, id string) error
	ListEpisodesByPodcast(ctx context.Context, podcastID string, limit int32) ([]*domain.Episode, error)
}

const defaultListLimit = 50

// Podcast request body
type podcastRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Author      string `json:"author"`
	ImageURL    string `json:"image_url"`
}

// Episode request body
type episodeRequest struct {
	PodcastID   string  `json:"podcast_id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	AudioURL    string  `json:"audio_url"`
	VideoURL    string  `json:"video_url"`
	YouTubeURL  string  `json:"youtube_url"`
	MediaKey    string  `json:"media_key"`
	Duration    float64 `json:"duration"`
}

func listLimit(r *http.Request) int32 {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return int32(n)
		}
	}
	return defaultListLimit
}

// createPodcastHandler creates a catalog podcast
func createPodcastHandler(catalog Catalog, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body podcastRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if body.Title == "" {
			respondError(w, http.StatusBadRequest, "title is required")
			return
		}

		podcast := domain.NewPodcast(uuid.New().String(), body.Title)
		podcast.Description = body.Description
		podcast.Author = body.Author
		podcast.ImageURL = body.ImageURL

		if err := catalog.CreatePodcast(r.Context(), podcast); err != nil {
			log.Error("failed to create podcast", "error", err)
			respondError(w, http.StatusInternalServerError, "failed to create podcast")
			return
		}

		respondJSON(w, http.StatusCreated, podcast)
	}
}

// getPodcastHandler retrieves one podcast
func getPodcastHandler(catalog Catalog, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		podcast, err := catalog.GetPodcast(r.Context(), chi.URLParam(r, "podcastID"))
		if err != nil {
			if errors.Is(err, domain.ErrPodcastNotFound) {
				respondError(w, http.StatusNotFound, "podcast not found")
				return
			}
			log.Error("failed to get podcast", "error", err)
			respondError(w, http.StatusInternalServerError, "failed to get podcast")
			return
		}
		respondJSON(w, http.StatusOK, podcast)
	}
}

// updatePodcastHandler overwrites a podcast's mutable fields
func updatePodcastHandler(catalog Catalog, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		podcast, err := catalog.GetPodcast(r.Context(), chi.URLParam(r, "podcastID"))
		if err != nil {
			if errors.Is(err, domain.ErrPodcastNotFound) {
				respondError(w, http.StatusNotFound, "podcast not found")
				return
			}
			log.Error("failed to get podcast", "error", err)
			respondError(w, http.StatusInternalServerError, "failed to update podcast")
			return
		}

		var body podcastRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if body.Title != "" {
			podcast.Title = body.Title
		}
		podcast.Description = body.Description
		podcast.Author = body.Author
		podcast.ImageURL = body.ImageURL

		if err := catalog.UpdatePodcast(r.Context(), podcast); err != nil {
			log.Error("failed to update podcast", "error", err)
			respondError(w, http.StatusInternalServerError, "failed to update podcast")
			return
		}
		respondJSON(w, http.StatusOK, podcast)
	}
}

// deletePodcastHandler removes a podcast
func deletePodcastHandler(catalog Catalog, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := catalog.DeletePodcast(r.Context(), chi.URLParam(r, "podcastID")); err != nil {
			log.Error("failed to delete podcast", "error", err)
			respondError(w, http.StatusInternalServerError, "failed to delete podcast")
			return
		}
		respondJSON(w, http.StatusNoContent, nil)
	}
}

// listPodcastsHandler lists catalog podcasts
func listPodcastsHandler(catalog Catalog, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		podcasts, err := catalog.ListPodcasts(r.Context(), listLimit(r))
		if err != nil {
			log.Error("failed to list podcasts", "error", err)
			respondError(w, http.StatusInternalServerError, "failed to list podcasts")
			return
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{"podcasts": podcasts})
	}
}

// createEpisodeHandler creates a catalog episode
func createEpisodeHandler(catalog Catalog, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body episodeRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if body.Title == "" || body.PodcastID == "" {
			respondError(w, http.StatusBadRequest, "title and podcast_id are required")
			return
		}

		if _, err := catalog.GetPodcast(r.Context(), body.PodcastID); err != nil {
			if errors.Is(err, domain.ErrPodcastNotFound) {
				respondError(w, http.StatusNotFound, "podcast not found")
				return
			}
			log.Error("failed to get podcast", "error", err)
			respondError(w, http.StatusInternalServerError, "failed to create episode")
			return
		}

		episode := domain.NewEpisode(uuid.New().String(), body.PodcastID, body.Title)
		episode.Description = body.Description
		episode.AudioURL = body.AudioURL
		episode.VideoURL = body.VideoURL
		episode.YouTubeURL = body.YouTubeURL
		episode.MediaKey = body.MediaKey
		episode.Duration = body.Duration

		if err := catalog.CreateEpisode(r.Context(), episode); err != nil {
			log.Error("failed to create episode", "error", err)
			respondError(w, http.StatusInternalServerError, "failed to create episode")
			return
		}
		respondJSON(w, http.StatusCreated, episode)
	}
}

// getEpisodeHandler retrieves one episode
func getEpisodeHandler(catalog Catalog, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		episode, err := catalog.GetEpisode(r.Context(), chi.URLParam(r, "episodeID"))
		if err != nil {
			if errors.Is(err, domain.ErrEpisodeNotFound) {
				respondError(w, http.StatusNotFound, "episode not found")
				return
			}
			log.Error("failed to get episode", "error", err)
			respondError(w, http.StatusInternalServerError, "failed to get episode")
			return
		}
		respondJSON(w, http.StatusOK, episode)
	}
}

// updateEpisodeHandler overwrites an episode's mutable fields
func updateEpisodeHandler(catalog Catalog, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		episode, err := catalog.GetEpisode(r.Context(), chi.URLParam(r, "episodeID"))
		if err != nil {
			if errors.Is(err, domain.ErrEpisodeNotFound) {
				respondError(w, http.StatusNotFound, "episode not found")
				return
			}
			log.Error("failed to get episode", "error", err)
			respondError(w, http.StatusInternalServerError, "failed to update episode")
			return
		}

		var body episodeRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if body.Title != "" {
			episode.Title = body.Title
		}
		episode.Description = body.Description
		episode.AudioURL = body.AudioURL
		episode.VideoURL = body.VideoURL
		episode.YouTubeURL = body.YouTubeURL
		episode.MediaKey = body.MediaKey
		episode.Duration = body.Duration

		if err := catalog.UpdateEpisode(r.Context(), episode); err != nil {
			log.Error("failed to update episode", "error", err)
			respondError(w, http.StatusInternalServerError, "failed to update episode")
			return
		}
		respondJSON(w, http.StatusOK, episode)
	}
}

// deleteEpisodeHandler removes an episode
func deleteEpisodeHandler(catalog Catalog, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := catalog.DeleteEpisode(r.Context(), chi.URLParam(r, "episodeID")); err != nil {
			log.Error("failed to delete episode", "error", err)
			respondError(w, http.StatusInternalServerError, "failed to delete episode")
			return
		}
		respondJSON(w, http.StatusNoContent, nil)
	}
}

// listEpisodesHandler lists episodes of one podcast
func listEpisodesHandler(catalog Catalog, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		episodes, err := catalog.ListEpisodesByPodcast(r.Context(), chi.URLParam(r, "podcastID"), listLimit(r))
		if err != nil {
			log.Error("failed to list episodes", "error", err)
			respondError(w, http.StatusInternalServerError, "failed to list episodes")
			return
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{"episodes": episodes})
	}
}

// playbackHandler resolves an episode's playable source for a kind
func playbackHandler(sessions *session.Manager, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind := domain.Kind(r.URL.Query().Get("kind"))
		if kind == "" {
			kind = domain.KindAudio
		}

		source, err := sessions.ResolvePlayback(r.Context(), chi.URLParam(r, "episodeID"), kind)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrEpisodeNotFound):
				respondError(w, http.StatusNotFound, "episode not found")
			case errors.Is(err, domain.ErrInvalidKind):
				respondError(w, http.StatusBadRequest, "invalid media kind")
			case errors.Is(err, domain.ErrNoSource):
				respondError(w, http.StatusNotFound, "episode has no source for this kind")
			default:
				log.Error("failed to resolve playback", "error", err)
				respondError(w, http.StatusInternalServerError, "failed to resolve playback")
			}
			return
		}
		respondJSON(w, http.StatusOK, source)
	}
}

// Session create request body
type createSessionRequest struct {
	EpisodeID string      `json:"episode_id"`
	Kind      domain.Kind `json:"kind"`
}

// Session command request body
type commandRequest struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

type sessionResponse struct {
	ID        string               `json:"id"`
	EpisodeID string               `json:"episode_id"`
	Source    domain.MediaSource   `json:"source"`
	State     domain.PlaybackState `json:"state"`
}

func toSessionResponse(sess *session.Session) sessionResponse {
	return sessionResponse{
		ID:        sess.ID,
		EpisodeID: sess.EpisodeID,
		Source:    sess.Source,
		State:     sess.Controller.State(),
	}
}

// createSessionHandler opens a playback session for an episode
func createSessionHandler(sessions *session.Manager, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body createSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if body.EpisodeID == "" {
			respondError(w, http.StatusBadRequest, "episode_id is required")
			return
		}

		sess, err := sessions.Create(r.Context(), body.EpisodeID, body.Kind)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrEpisodeNotFound):
				respondError(w, http.StatusNotFound, "episode not found")
			case errors.Is(err, domain.ErrInvalidKind):
				respondError(w, http.StatusBadRequest, "invalid media kind")
			case errors.Is(err, domain.ErrNoSource):
				respondError(w, http.StatusBadRequest, "episode has no source for this kind")
			default:
				log.Error("failed to create session", "error", err)
				respondError(w, http.StatusInternalServerError, "failed to create session")
			}
			return
		}
		respondJSON(w, http.StatusCreated, toSessionResponse(sess))
	}
}

// getSessionHandler returns a session's playback state snapshot
func getSessionHandler(sessions *session.Manager, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := sessions.Get(chi.URLParam(r, "sessionID"))
		if err != nil {
			respondError(w, http.StatusNotFound, "session not found")
			return
		}
		respondJSON(w, http.StatusOK, toSessionResponse(sess))
	}
}

// closeSessionHandler tears a session down
func closeSessionHandler(sessions *session.Manager, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := sessions.Close(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
			respondError(w, http.StatusNotFound, "session not found")
			return
		}
		respondJSON(w, http.StatusNoContent, nil)
	}
}

// commandHandler dispatches a playback control command
func commandHandler(sessions *session.Manager, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body commandRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		sessionID := chi.URLParam(r, "sessionID")
		if err := sessions.Command(r.Context(), sessionID, body.Name, body.Value); err != nil {
			switch {
			case errors.Is(err, domain.ErrSessionNotFound):
				respondError(w, http.StatusNotFound, "session not found")
			case errors.Is(err, domain.ErrInvalidInput):
				respondError(w, http.StatusBadRequest, err.Error())
			default:
				log.Error("command failed", "error", err)
				respondError(w, http.StatusInternalServerError, "command failed")
			}
			return
		}

		sess, err := sessions.Get(sessionID)
		if err != nil {
			respondError(w, http.StatusNotFound, "session not found")
			return
		}
		respondJSON(w, http.StatusOK, toSessionResponse(sess))
	}
}

// drainCommandsHandler hands the client its pending player commands
func drainCommandsHandler(sessions *session.Manager, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		commands, err := sessions.Commands(chi.URLParam(r, "sessionID"))
		if err != nil {
			respondError(w, http.StatusNotFound, "session not found")
			return
		}
		if commands == nil {
			commands = []session.Command{}
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{"commands": commands})
	}
}

// reportEventHandler ingests a client-observed media event
func reportEventHandler(sessions *session.Manager, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var report session.EventReport
		if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if report.Event == "" {
			respondError(w, http.StatusBadRequest, "event is required")
			return
		}

		sessionID := chi.URLParam(r, "sessionID")
		if err := sessions.ReportEvent(r.Context(), sessionID, report); err != nil {
			respondError(w, http.StatusNotFound, "session not found")
			return
		}

		sess, err := sessions.Get(sessionID)
		if err != nil {
			respondError(w, http.StatusNotFound, "session not found")
			return
		}
		respondJSON(w, http.StatusOK, toSessionResponse(sess))
	}
}

func parseKind(r *http.Request) (domain.Kind, bool) {
	kind := domain.Kind(chi.URLParam(r, "kind"))
	return kind, kind.Valid()
}

// getProgressHandler returns the stored position for one item
func getProgressHandler(store *progress.Store, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, ok := parseKind(r)
		if !ok {
			respondError(w, http.StatusBadRequest, "invalid media kind")
			return
		}

		record, found := store.Get(chi.URLParam(r, "mediaID"), kind)
		if !found {
			respondError(w, http.StatusNotFound, "no progress recorded")
			return
		}
		respondJSON(w, http.StatusOK, record)
	}
}

// listProgressHandler lists stored positions for one kind, optionally
// filtered to completed or in-progress items
func listProgressHandler(store *progress.Store, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, ok := parseKind(r)
		if !ok {
			respondError(w, http.StatusBadRequest, "invalid media kind")
			return
		}

		var records []domain.ProgressRecord
		switch filter := r.URL.Query().Get("filter"); filter {
		case "completed":
			records = store.ListCompleted(kind)
		case "in-progress", "":
			records = store.ListInProgress(kind)
		default:
			respondError(w, http.StatusBadRequest, "invalid filter")
			return
		}
		if records == nil {
			records = []domain.ProgressRecord{}
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{"records": records})
	}
}

// clearProgressHandler forgets one item's position
func clearProgressHandler(store *progress.Store, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, ok := parseKind(r)
		if !ok {
			respondError(w, http.StatusBadRequest, "invalid media kind")
			return
		}
		store.Clear(r.Context(), chi.URLParam(r, "mediaID"), kind)
		respondJSON(w, http.StatusNoContent, nil)
	}
}

// clearKindHandler forgets every position in one kind partition
func clearKindHandler(store *progress.Store, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, ok := parseKind(r)
		if !ok {
			respondError(w, http.StatusBadRequest, "invalid media kind")
			return
		}
		store.ClearKind(r.Context(), kind)
		respondJSON(w, http.StatusNoContent, nil)
	}
}

// clearAllHandler forgets everything
func clearAllHandler(store *progress.Store, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store.ClearAll(r.Context())
		respondJSON(w, http.StatusNoContent, nil)
	}
}
