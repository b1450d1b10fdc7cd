package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/cortex-connector/internal/config"
	"github.com/JakeFAU/cortex-connector/internal/connector"
	"github.com/JakeFAU/cortex-connector/internal/metrics"
)

// StatusSource produces the composite status document.
type StatusSource interface {
	CompositeStatus(ctx context.Context) connector.CompositeStatus
}

// HealthSource produces the composite health value.
type HealthSource interface {
	CompositeHealth(ctx context.Context) connector.Health
}

// JobRouter serves routed job and analyzer operations.
type JobRouter interface {
	SubmitJob(ctx context.Context, req connector.JobRequest) (connector.Job, error)
	GetJob(ctx context.Context, jobID string) (connector.Job, error)
	GetReport(ctx context.Context, jobID string) (connector.Report, error)
	ListAnalyzers(ctx context.Context) ([]connector.Analyzer, error)
	AnalyzersFor(ctx context.Context, dataType string) ([]connector.Analyzer, error)
	GetAnalyzer(ctx context.Context, analyzerID string) ([]connector.Analyzer, error)
}

// Server wires HTTP handlers to the aggregators and the router.
type Server struct {
	router chi.Router
	status StatusSource
	health HealthSource
	jobs   JobRouter
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(status StatusSource, health HealthSource, jobs JobRouter, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		status: status,
		health: health,
		jobs:   jobs,
		logger: logger,
	}
	timeout := cfg.RequestTimeout()
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(timeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/connector/cortex", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Get("/status", s.getStatus)
		r.Get("/health", s.getHealth)
		r.Route("/job", func(r chi.Router) {
			r.Post("/", s.submitJob)
			r.Get("/{jobId}", s.getJob)
			r.Get("/{jobId}/report", s.getReport)
		})
		r.Route("/analyzer", func(r chi.Router) {
			r.Get("/", s.listAnalyzers)
			r.Get("/type/{dataType}", s.analyzersFor)
			r.Get("/{analyzerId}", s.getAnalyzer)
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
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readyz reports not ready while the pool as a whole is in Error health.
func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	health := s.health.CompositeHealth(r.Context())
	code := http.StatusOK
	if health == connector.HealthError {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, map[string]string{"status": "ready", "health": string(health)})
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.status.CompositeStatus(r.Context()))
}

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"health": string(s.health.CompositeHealth(r.Context()))})
}

func (s *Server) submitJob(w http.ResponseWriter, r *http.Request) {
	var req connector.JobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	job, err := s.jobs.SubmitJob(r.Context(), req)
	if err != nil {
		s.writeRouteError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, job)
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.GetJob(r.Context(), chi.URLParam(r, "jobId"))
	if err != nil {
		s.writeRouteError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.jobs.GetReport(r.Context(), chi.URLParam(r, "jobId"))
	if err != nil {
		s.writeRouteError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) listAnalyzers(w http.ResponseWriter, r *http.Request) {
	analyzers, err := s.jobs.ListAnalyzers(r.Context())
	if err != nil {
		s.writeRouteError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, analyzers)
}

func (s *Server) analyzersFor(w http.ResponseWriter, r *http.Request) {
	analyzers, err := s.jobs.AnalyzersFor(r.Context(), chi.URLParam(r, "dataType"))
	if err != nil {
		s.writeRouteError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, analyzers)
}

func (s *Server) getAnalyzer(w http.ResponseWriter, r *http.Request) {
	analyzers, err := s.jobs.GetAnalyzer(r.Context(), chi.URLParam(r, "analyzerId"))
	if err != nil {
		s.writeRouteError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, analyzers)
}

// writeRouteError maps core errors onto status codes: missing fields are the
// caller's fault, unknown ids are 404 and anything else is a gateway failure.
func (s *Server) writeRouteError(w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusBadGateway
	switch {
	case errors.Is(err, connector.ErrMissingField):
		code = http.StatusBadRequest
	case errors.Is(err, connector.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		code = http.StatusGatewayTimeout
	}
	if code >= http.StatusInternalServerError {
		s.logger.Warn("routed request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", RequestID(r.Context())),
			zap.Error(err),
		)
	}
	s.writeError(w, code, err.Error())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
