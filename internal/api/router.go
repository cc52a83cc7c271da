package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/catechize/playback/internal/auth"
	"github.com/catechize/playback/internal/progress"
	"github.com/catechize/playback/internal/service/session"
	"github.com/catechize/playback/pkg/logger"
)

// RouterConfig contains router dependencies
type RouterConfig struct {
	Sessions *session.Manager
	Progress *progress.Store
	Catalog  Catalog
	Auth     auth.Resolver
	Logger   *logger.Logger
}

// NewRouter creates a new HTTP router
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(requestLogger(cfg.Logger))
	r.Use(corsMiddleware)

	// Health check
	r.Get("/health", healthHandler)
	r.Get("/ready", readyHandler)

	writeCatalog := requirePermission(cfg.Auth, "catalog.write", cfg.Logger)
	clearProgress := requirePermission(cfg.Auth, "progress.clear", cfg.Logger)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Catalog routes
		r.Route("/podcasts", func(r chi.Router) {
			r.Get("/", listPodcastsHandler(cfg.Catalog, cfg.Logger))
			r.With(writeCatalog).Post("/", createPodcastHandler(cfg.Catalog, cfg.Logger))
			r.Get("/{podcastID}", getPodcastHandler(cfg.Catalog, cfg.Logger))
			r.With(writeCatalog).Put("/{podcastID}", updatePodcastHandler(cfg.Catalog, cfg.Logger))
			r.With(writeCatalog).Delete("/{podcastID}", deletePodcastHandler(cfg.Catalog, cfg.Logger))
			r.Get("/{podcastID}/episodes", listEpisodesHandler(cfg.Catalog, cfg.Logger))
		})
		r.Route("/episodes", func(r chi.Router) {
			r.With(writeCatalog).Post("/", createEpisodeHandler(cfg.Catalog, cfg.Logger))
			r.Get("/{episodeID}", getEpisodeHandler(cfg.Catalog, cfg.Logger))
			r.With(writeCatalog).Put("/{episodeID}", updateEpisodeHandler(cfg.Catalog, cfg.Logger))
			r.With(writeCatalog).Delete("/{episodeID}", deleteEpisodeHandler(cfg.Catalog, cfg.Logger))
			r.Get("/{episodeID}/playback", playbackHandler(cfg.Sessions, cfg.Logger))
		})

		// Playback session routes
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", createSessionHandler(cfg.Sessions, cfg.Logger))
			r.Get("/{sessionID}", getSessionHandler(cfg.Sessions, cfg.Logger))
			r.Delete("/{sessionID}", closeSessionHandler(cfg.Sessions, cfg.Logger))
			r.Post("/{sessionID}/commands", commandHandler(cfg.Sessions, cfg.Logger))
			r.Get("/{sessionID}/commands", drainCommandsHandler(cfg.Sessions, cfg.Logger))
			r.Post("/{sessionID}/events", reportEventHandler(cfg.Sessions, cfg.Logger))
		})

		// Progress routes
		r.Route("/progress", func(r chi.Router) {
			r.Get("/{kind}", listProgressHandler(cfg.Progress, cfg.Logger))
			r.Get("/{kind}/{mediaID}", getProgressHandler(cfg.Progress, cfg.Logger))
			r.Delete("/{kind}/{mediaID}", clearProgressHandler(cfg.Progress, cfg.Logger))
			r.With(clearProgress).Delete("/{kind}", clearKindHandler(cfg.Progress, cfg.Logger))
			r.With(clearProgress).Delete("/", clearAllHandler(cfg.Progress, cfg.Logger))
		})
	})

	return r
}

// JSON response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// Health check handlers
func healthHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func readyHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

// CORS middleware
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Request logger middleware
func requestLogger(log *logger.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			log.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start).String(),
				"bytes", ww.BytesWritten(),
			)
		})
	}
}

// subject extracts the request subject from the Authorization header. The
// bearer value is treated as an opaque subject identifier; token validation
// belongs to the deployment's edge.
func subject(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return after
	}
	return ""
}

// requirePermission guards a route behind an authorization check.
func requirePermission(resolver auth.Resolver, permission string, log *logger.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sub := subject(r)
			if sub == "" {
				respondError(w, http.StatusUnauthorized, "authorization required")
				return
			}

			authorizer, err := resolver.Resolve(r.Context(), sub)
			if err != nil {
				log.Error("failed to resolve subject", "error", err)
				respondError(w, http.StatusInternalServerError, "authorization failed")
				return
			}

			ok, err := authorizer.HasPermission(r.Context(), permission)
			if err != nil {
				log.Error("permission check failed", "error", err)
				respondError(w, http.StatusInternalServerError, "authorization failed")
				return
			}
			if !ok {
				respondError(w, http.StatusForbidden, "permission denied")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
