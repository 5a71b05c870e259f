// Package server exposes the analysis service over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/spigell/gh-profiler/internal/analysis"
	"github.com/spigell/gh-profiler/internal/profile"
)

const shutdownTimeout = 15 * time.Second

// Analyzer is the subset of analysis.Service the HTTP layer needs.
type Analyzer interface {
	Analyze(ctx context.Context, input string, deadline time.Duration) (*profile.AnalysisRecord, error)
	Refresh(ctx context.Context, input string, deadline time.Duration) (*profile.AnalysisRecord, error)
	GetCached(ctx context.Context, input string) (*profile.AnalysisRecord, bool, error)
	Leaderboard(ctx context.Context, limit int) ([]analysis.LeaderboardEntry, error)
	HealthCheck(ctx context.Context) analysis.Health
}

type Server struct {
	svc      Analyzer
	deadline time.Duration
	logger   *zap.Logger
}

// New builds the HTTP layer. A non-positive deadline defers to the service default.
func New(svc Analyzer, deadline time.Duration, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{svc: svc, deadline: deadline, logger: logger}
}

// Routes returns the router with all API endpoints.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/analyze", s.handleAnalyze)
		r.Get("/analysis/{username}", s.handleGetAnalysis)
		r.Post("/analysis/{username}/refresh", s.handleRefresh)
		r.Get("/leaderboard", s.handleLeaderboard)
	})

	return r
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		s.logger.Info("shutting down http server")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.svc.HealthCheck(r.Context())
	status := "ok"
	if !health.UpstreamReachable {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":             status,
		"upstream_reachable": health.UpstreamReachable,
		"model_reachable":    health.ModelReachable,
	})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		writeError(w, http.StatusBadRequest, string(profile.KindInvalidIdentifier), "username query parameter is required")
		return
	}

	rec, err := s.svc.Analyze(r.Context(), username, s.deadline)
	s.writeRecord(w, rec, err)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	rec, err := s.svc.Refresh(r.Context(), chi.URLParam(r, "username"), s.deadline)
	s.writeRecord(w, rec, err)
}

func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	rec, found, err := s.svc.GetCached(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "NotAnalyzed", "no stored analysis for this user")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "InvalidLimit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := s.svc.Leaderboard(r.Context(), limit)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"leaderboard": entries, "count": len(entries)})
}

// writeRecord answers with the record even when only persisting it failed.
func (s *Server) writeRecord(w http.ResponseWriter, rec *profile.AnalysisRecord, err error) {
	if err != nil && rec == nil {
		s.writeFailure(w, err)
		return
	}
	if err != nil {
		w.Header().Set("X-Persistence-Error", string(profile.KindOf(err)))
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) writeFailure(w http.ResponseWriter, err error) {
	kind := profile.KindOf(err)
	status := StatusFor(kind)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("kind", string(kind)), zap.Error(err))
	}
	if kind == "" {
		kind = "InternalError"
	}
	writeError(w, status, string(kind), err.Error())
}

// StatusFor maps an error kind to an HTTP status code.
func StatusFor(kind profile.Kind) int {
	switch kind {
	case profile.KindInvalidIdentifier:
		return http.StatusBadRequest
	case profile.KindProfileNotFound:
		return http.StatusNotFound
	case profile.KindUpstreamRateLimited:
		return http.StatusTooManyRequests
	case profile.KindUpstreamAuthError, profile.KindUpstreamUnavailable:
		return http.StatusBadGateway
	case profile.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, map[string]string{"error": kind, "message": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
