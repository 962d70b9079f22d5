// Package main is the entry point for the mentorship intake API.
//
// It loads configuration, wires the mail provider, the spreadsheet recorder
// and the metrics backend into the core chassis, and then serves requests.
//
// Inside AWS Lambda the router is driven by API Gateway HTTP API events;
// everywhere else it runs as a standard HTTP server on the configured port.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"

	"mentorship/internal/config"
	"mentorship/internal/core"
)

// shutdownTimeout bounds in-flight request draining on SIGTERM.
const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	provider := config.NewSecretProvider(os.Getenv("APP_ENV"), os.Getenv("AWS_REGION"), os.Getenv("AWS_ENDPOINT_URL"))
	cfg, err := config.LoadConfig(provider)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("mentorship intake starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"mail_provider", cfg.Mail.Provider,
		"variants", cfg.Forms.Variants,
	)

	app, err := buildApp(context.Background(), cfg, logger)
	if err != nil {
		return err
	}

	if isLambdaEnvironment() {
		return runLambda(app, logger)
	}
	return runHTTPServer(app.server, cfg.Server.Port, logger)
}

// isLambdaEnvironment detects whether we are running inside AWS Lambda.
func isLambdaEnvironment() bool {
	return os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" || os.Getenv("_LAMBDA_SERVER_PORT") != ""
}

// runLambda hands the router to the Lambda runtime. Buffered metrics are
// flushed after every invocation since the sandbox may be frozen at any time
// afterwards.
func runLambda(app *application, logger *slog.Logger) error {
	logger.Info("starting in Lambda mode")
	lambda.Start(lambdaHandler(app))
	return nil
}

type lambdaHandlerFunc func(ctx context.Context, event events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error)

// lambdaHandler serves API Gateway HTTP API (payload v2) events through the
// router. The gateway request id is reused as X-Request-Id unless the caller
// sent one.
func lambdaHandler(app *application) lambdaHandlerFunc {
	adapter := httpadapter.NewV2(app.server.Handler())

	return func(ctx context.Context, event events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
		if id := event.RequestContext.RequestID; id != "" && !hasHeader(event.Headers, "X-Request-Id") {
			headers := make(map[string]string, len(event.Headers)+1)
			for k, v := range event.Headers {
				headers[k] = v
			}
			headers["x-request-id"] = id
			event.Headers = headers
		}

		resp, err := adapter.ProxyWithContext(ctx, event)
		if app.flusher != nil {
			app.flusher.Flush(ctx)
		}
		return resp, err
	}
}

func hasHeader(headers map[string]string, name string) bool {
	for k := range headers {
		if http.CanonicalHeaderKey(k) == name {
			return true
		}
	}
	return false
}

// runHTTPServer starts a standard HTTP server with graceful shutdown.
func runHTTPServer(srv *core.Server, port string, logger *slog.Logger) error {
	addr := ":" + port
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource cleanup error", "error", err)
	}

	logger.Info("server stopped")
	return nil
}

// newLogger creates a structured JSON logger at the given level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
