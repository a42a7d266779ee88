// Package http exposes the dust-risk query API plus health, readiness, and
// metrics endpoints.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/dustcast-service/internal/cache"
	"github.com/couchcryptid/dustcast-service/internal/domain"
	"github.com/couchcryptid/dustcast-service/internal/history"
)

const (
	defaultHistoryLimit = 24
	maxHistoryLimit     = 200
)

// Assessor serves risk assessments from the cache-backed pipeline.
type Assessor interface {
	Current(ctx context.Context) (domain.RiskAssessment, error)
	Forecast(ctx context.Context) (domain.RiskAssessment, error)
	Health() map[string]cache.KindHealth
	CheckReadiness(ctx context.Context) error
}

// HistoryReader serves archived assessments. Optional; nil disables /api/history.
type HistoryReader interface {
	Recent(ctx context.Context, kind string, limit int) ([]history.Sample, error)
}

// Server exposes the query API over HTTP.
type Server struct {
	httpServer *http.Server
	assessor   Assessor
	hist       HistoryReader
	location   string
	logger     *slog.Logger
}

// NewServer builds the router and wraps it in an http.Server with sane
// timeouts. hist may be nil when history persistence is disabled.
func NewServer(addr string, assessor Assessor, hist HistoryReader, location string, logger *slog.Logger) *Server {
	s := &Server{
		assessor: assessor,
		hist:     hist,
		location: location,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/current", s.handleCurrent)
		r.Get("/forecast", s.handleForecast)
		r.Get("/status", s.handleStatus)
		r.Get("/history", s.handleHistory)
	})
	r.Get("/healthz", s.handleHealth)
	r.Get("/health", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	a, err := s.assessor.Current(r.Context())
	if err != nil {
		s.writeAssessmentError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	a, err := s.assessor.Forecast(r.Context())
	if err != nil {
		s.writeAssessmentError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type statusResponse struct {
	Location string                      `json:"location"`
	Time     time.Time                   `json:"time"`
	Caches   map[string]cache.KindHealth `json:"caches"`
	History  bool                        `json:"history_enabled"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Location: s.location,
		Time:     time.Now().UTC(),
		Caches:   s.assessor.Health(),
		History:  s.hist != nil,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.hist == nil {
		writeError(w, http.StatusNotFound, "history persistence is disabled")
		return
	}

	kind := r.URL.Query().Get("kind")
	if kind == "" {
		kind = string(cache.KindCurrent)
	}
	if kind != string(cache.KindCurrent) && kind != string(cache.KindForecast) {
		writeError(w, http.StatusBadRequest, "kind must be current or forecast")
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	samples, err := s.hist.Recent(r.Context(), kind, limit)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "history query failed", "kind", kind, "error", err)
		writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	if samples == nil {
		samples = []history.Sample{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"kind": kind, "samples": samples})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"caches": s.assessor.Health(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.assessor.CheckReadiness(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// writeAssessmentError maps fetch failures to transport status codes: missing
// imagery is a 503 the client can retry later, provider faults are a 502.
func (s *Server) writeAssessmentError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrDataUnavailable):
		writeError(w, http.StatusServiceUnavailable, "no recent satellite imagery for the monitored region")
	case errors.Is(err, domain.ErrProvider):
		writeError(w, http.StatusBadGateway, "imagery provider unavailable")
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to write.
	default:
		s.logger.ErrorContext(r.Context(), "assessment request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response write
}
