package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mentorship/internal/config"
	"mentorship/internal/core"
	"mentorship/internal/external"
	"mentorship/internal/metrics"
	"mentorship/internal/notifications/email"
	"mentorship/internal/recorder"
	"mentorship/internal/submission"
	"mentorship/internal/types"
)

// flusher is implemented by metric backends that buffer datums.
type flusher interface {
	Flush(ctx context.Context)
}

// application is the fully wired server plus the hooks the runtime needs.
type application struct {
	server  *core.Server
	flusher flusher
}

// buildApp constructs every component from cfg and mounts the routes.
func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	loc, err := time.LoadLocation(cfg.Sheets.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", cfg.Sheets.Timezone, err)
	}

	clients, err := external.NewClientRegistry(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating external clients: %w", err)
	}

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}
	app := &application{server: srv}

	collector, err := newMetrics(ctx, cfg, srv, app, logger)
	if err != nil {
		return nil, err
	}
	srv.Metrics = collector

	renderer, err := email.NewRenderer(email.RendererConfig{
		Brand:    cfg.Forms.Brand,
		Location: loc,
	})
	if err != nil {
		return nil, fmt.Errorf("creating email renderer: %w", err)
	}

	dispatcher := email.NewDispatcher(email.DispatcherConfig{
		Provider: clients.Email,
		Sender: types.SenderIdentity{
			Name:    cfg.Mail.SenderName,
			Address: cfg.Mail.SenderAddress,
		},
		Logger: logger.With("component", "email"),
	})

	rec := recorder.New(recorder.Config{
		Factory: clients.Sheets,
		Ranges: map[types.FormVariant]string{
			types.FormExtended: cfg.Sheets.Range,
			types.FormSimple:   cfg.Sheets.SimpleRange,
		},
		Location: loc,
		Timeout:  cfg.Sheets.AppendTimeout,
		Metrics:  collector,
		Logger:   logger,
	})

	variants, err := submission.LookupVariants(cfg.Forms.Variants)
	if err != nil {
		return nil, err
	}

	handler := submission.NewHandler(submission.Config{
		Mailer:       dispatcher,
		Renderer:     renderer,
		Recorder:     rec,
		Validator:    srv.Validator,
		Metrics:      collector,
		AdminAddress: cfg.Mail.AdminAddress,
		Timeout:      cfg.Forms.SubmitTimeout,
		Logger:       logger.With("component", "submission"),
	})
	srv.RouteRegistrars = append(srv.RouteRegistrars, handler.Routes(variants))

	for _, probe := range clients.Probes {
		srv.HealthProbes = append(srv.HealthProbes, probe)
	}
	srv.Closers = append(srv.Closers, clients.Closers...)

	srv.MountRoutes()
	return app, nil
}

// newMetrics selects the metrics backend named by METRICS_BACKEND.
func newMetrics(ctx context.Context, cfg *config.Config, srv *core.Server, app *application, logger *slog.Logger) (metrics.Collector, error) {
	switch cfg.Observability.MetricsBackend {
	case config.MetricsPrometheus:
		p := metrics.NewPrometheus()
		srv.MetricsHandler = p.Handler()
		return p, nil

	case config.MetricsCloudWatch:
		awsCfg, err := external.LoadAWSConfig(ctx, cfg.AWS)
		if err != nil {
			return nil, err
		}
		cw := metrics.NewCloudWatchFromConfig(awsCfg, cfg.AWS.EndpointURL, cfg.Observability.MetricNamespace, logger.With("component", "metrics"))
		srv.Closers = append(srv.Closers, cw)
		app.flusher = cw
		return cw, nil

	default:
		return metrics.Nop{}, nil
	}
}
