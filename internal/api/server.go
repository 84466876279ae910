// Package api exposes the HTTP interface for the catalog service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/openvideo/channelsearch/internal/catalog"
	"github.com/openvideo/channelsearch/internal/config"
	"github.com/openvideo/channelsearch/internal/metrics"
)

// Store is the persistence surface the API needs: the catalog queries
// plus schema provisioning.
type Store interface {
	catalog.Store
	InitSchema(ctx context.Context) error
}

// IndexRunner triggers one bounded ingestion run.
type IndexRunner interface {
	Run(ctx context.Context, maxItems int, delay time.Duration) (catalog.RunReport, error)
}

// Exporter dumps the catalog to its configured destination.
type Exporter interface {
	Export(ctx context.Context) (int, error)
	Path() string
}

// Server wires HTTP handlers to the store, pipeline and exporter.
type Server struct {
	router   chi.Router
	store    Store
	runner   IndexRunner
	exporter Exporter
	cfg      config.Config
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes. The
// retrieval endpoints are unauthenticated; ingestion, schema init and
// export require the bearer token when auth is enabled.
func NewServer(store Store, runner IndexRunner, exporter Exporter, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		store:    store,
		runner:   runner,
		exporter: exporter,
		cfg:      cfg,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metricsMiddleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/search", s.search)
		r.Get("/autocomplete", s.autocomplete)
		r.Get("/stats", s.stats)

		r.Group(func(r chi.Router) {
			if cfg.Auth.Enabled {
				r.Use(bearerAuthMiddleware(cfg.Auth.Token))
			}
			r.Post("/index", s.runIndex)
			r.Post("/schema/init", s.initSchema)
			r.Post("/export", s.runExport)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(s.logger, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.Stats(r.Context()); err != nil {
		writeError(s.logger, w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeJSON(s.logger, w, http.StatusOK, map[string]string{"status": "ready"})
}

type searchResponse struct {
	Results []catalog.Channel `json:"results"`
	Count   int               `json:"count"`
	Query   string            `json:"query"`
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	limit, err := queryInt(r, "limit", 20)
	if err != nil || limit <= 0 {
		writeError(s.logger, w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}

	// Empty queries never reach the store.
	if strings.TrimSpace(query) == "" {
		writeJSON(s.logger, w, http.StatusOK, searchResponse{
			Results: []catalog.Channel{},
			Query:   query,
		})
		return
	}

	metrics.ObserveQuery("search")
	results, err := s.store.Search(r.Context(), query, limit)
	if err != nil {
		s.logger.Error("search failed", zap.String("query", query), zap.Error(err))
		writeError(s.logger, w, http.StatusInternalServerError, "search failed")
		return
	}
	if results == nil {
		results = []catalog.Channel{}
	}
	writeJSON(s.logger, w, http.StatusOK, searchResponse{
		Results: results,
		Count:   len(results),
		Query:   query,
	})
}

func (s *Server) autocomplete(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	limit, err := queryInt(r, "limit", 10)
	if err != nil || limit <= 0 {
		writeError(s.logger, w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}

	metrics.ObserveQuery("autocomplete")
	suggestions, err := s.store.Suggest(r.Context(), query, limit)
	if err != nil {
		s.logger.Error("autocomplete failed", zap.String("query", query), zap.Error(err))
		writeError(s.logger, w, http.StatusInternalServerError, "autocomplete failed")
		return
	}
	if suggestions == nil {
		suggestions = []catalog.Suggestion{}
	}
	writeJSON(s.logger, w, http.StatusOK, map[string]any{"suggestions": suggestions})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.logger.Error("stats failed", zap.Error(err))
		writeError(s.logger, w, http.StatusInternalServerError, "stats failed")
		return
	}
	writeJSON(s.logger, w, http.StatusOK, stats)
}

type indexResponse struct {
	Success bool `json:"success"`
	catalog.RunReport
}

func (s *Server) runIndex(w http.ResponseWriter, r *http.Request) {
	maxItems, err := queryInt(r, "max", s.cfg.Indexer.DefaultMax)
	if err != nil || maxItems <= 0 {
		writeError(s.logger, w, http.StatusBadRequest, "max must be a positive integer")
		return
	}
	delayMs, err := queryInt(r, "rate", s.cfg.Indexer.DefaultDelayMs)
	if err != nil || delayMs < 0 {
		writeError(s.logger, w, http.StatusBadRequest, "rate must be a non-negative integer")
		return
	}

	// The run always goes to completion: a client disconnect or
	// caller-side timeout must not cancel it mid-flight and inflate the
	// error counters.
	runCtx := context.WithoutCancel(r.Context())
	report, err := s.runner.Run(runCtx, maxItems, time.Duration(delayMs)*time.Millisecond)
	if err != nil {
		s.logger.Error("ingestion run failed", zap.Error(err))
		status := http.StatusInternalServerError
		if errors.Is(err, catalog.ErrFetch) {
			status = http.StatusBadGateway
		}
		writeJSON(s.logger, w, status, map[string]any{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	writeJSON(s.logger, w, http.StatusOK, indexResponse{Success: true, RunReport: report})
}

func (s *Server) initSchema(w http.ResponseWriter, r *http.Request) {
	if err := s.store.InitSchema(r.Context()); err != nil {
		s.logger.Error("schema init failed", zap.Error(err))
		writeError(s.logger, w, http.StatusInternalServerError, "schema init failed")
		return
	}
	writeJSON(s.logger, w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) runExport(w http.ResponseWriter, r *http.Request) {
	count, err := s.exporter.Export(r.Context())
	if err != nil {
		s.logger.Error("export failed", zap.Error(err))
		writeError(s.logger, w, http.StatusInternalServerError, "export failed")
		return
	}
	writeJSON(s.logger, w, http.StatusOK, map[string]any{
		"success":  true,
		"channels": count,
		"path":     s.exporter.Path(),
	})
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func writeJSON(logger *zap.Logger, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("write JSON failed", zap.Error(err))
	}
}

func writeError(logger *zap.Logger, w http.ResponseWriter, status int, msg string) {
	writeJSON(logger, w, status, map[string]string{"error": msg})
}
