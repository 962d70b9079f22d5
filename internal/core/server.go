// Package core provides the HTTP chassis for the intake service. It builds a
// chi router usable both by net/http (long-running server) and by the Lambda
// adapter, and applies the cross-cutting concerns (panic recovery, request
// ids, CORS, logging, metrics) before requests reach the form handlers.
package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"mentorship/internal/config"
)

// MetricsCollector records API telemetry.
type MetricsCollector interface {
	// RecordRequest records one completed request. route is the chi route
	// pattern, not the raw path, to keep label cardinality bounded.
	RecordRequest(method, route, status string, duration time.Duration)
}

// RouteRegistrar mounts a group of handlers on the router. Registrars are
// populated by cmd/api so core never imports handler packages.
type RouteRegistrar func(r chi.Router)

// Server bundles the router with the dependencies shared by middleware.
type Server struct {
	Config       *config.Config
	Logger       *slog.Logger
	Validator    *Validator
	Metrics      MetricsCollector
	HealthProbes []HealthProbe

	// RouteRegistrars are invoked by MountRoutes after the middleware chain.
	RouteRegistrars []RouteRegistrar

	// MetricsHandler, when set, is exposed at GET /metrics.
	MetricsHandler http.Handler

	// Closers are released in order by Shutdown (SMTP pool, metric flushers).
	Closers []io.Closer

	router *chi.Mux
}

// NewServer validates its inputs and prepares an empty router. Call
// MountRoutes after setting the optional fields.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown releases every registered closer, reporting all failures.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.InfoContext(ctx, "server shutdown initiated")

	var errs []error
	for _, c := range s.Closers {
		if err := c.Close(); err != nil {
			s.Logger.ErrorContext(ctx, "error releasing server resource", "error", err)
			errs = append(errs, err)
		}
	}

	s.Logger.InfoContext(ctx, "server shutdown complete")
	return errors.Join(errs...)
}
