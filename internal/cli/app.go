// Package cli wires configuration, persistence, observability and the
// modelling Document into the runners behind cmd/docket.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aretw0/docket/internal/config"
	"github.com/aretw0/docket/internal/logging"
	"github.com/aretw0/docket/internal/modelling"
	"github.com/aretw0/docket/internal/telemetry"
	httpAdapter "github.com/aretw0/docket/pkg/adapters/http"
	"github.com/aretw0/docket/pkg/document"
	"github.com/aretw0/docket/pkg/observability"
	"github.com/aretw0/docket/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// App holds everything a command needs to serve one Document.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Doc      *document.Document
	Sessions *session.Manager
	Streams  *httpAdapter.Broadcaster
	Tracer   *observability.Tracer
	Registry *prometheus.Registry

	persistence *config.Persistence
	shutdown    telemetry.ShutdownFunc
}

// NewLogger builds the logger described by cfg.Log.
func NewLogger(cfg *config.Config) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	return logging.New(level, format), nil
}

// NewApp opens persistence, installs tracing and builds the Document with
// logging, metrics and broadcast hooks. Callers must Close the App.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		var err error
		if logger, err = NewLogger(cfg); err != nil {
			return nil, err
		}
	}

	app := &App{
		Config:   cfg,
		Logger:   logger,
		Streams:  httpAdapter.NewBroadcaster(logger),
		Registry: prometheus.NewRegistry(),
	}

	shutdown, err := telemetry.Setup(ctx, telemetry.Config{
		Endpoint:    cfg.Telemetry.Endpoint,
		ServiceName: cfg.Telemetry.ServiceName,
	})
	if err != nil {
		return nil, err
	}
	app.shutdown = shutdown
	app.Tracer = observability.NewTracer(nil)

	metrics, err := observability.NewMetrics(app.Registry)
	if err != nil {
		_ = app.Close(ctx)
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	app.persistence, err = cfg.OpenPersistence(ctx, logger)
	if err != nil {
		_ = app.Close(ctx)
		return nil, err
	}
	app.Sessions, err = cfg.SessionManager(app.persistence, logger)
	if err != nil {
		_ = app.Close(ctx)
		return nil, err
	}

	app.Doc, err = modelling.NewDocument(document.WithLifecycleHooks(observability.MultiHooks(
		observability.LoggingHooks(logger),
		metrics.Hooks(),
		app.Streams.Hooks(),
	)))
	if err != nil {
		_ = app.Close(ctx)
		return nil, err
	}
	return app, nil
}

// MetricsHandler serves the App's registry, or nil when metrics are off.
func (a *App) MetricsHandler() http.Handler {
	if !a.Config.Metrics.Enabled {
		return nil
	}
	return promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{})
}

// RequireSessions returns the session manager or an error when no
// persistence backend is configured.
func (a *App) RequireSessions() (*session.Manager, error) {
	if a.Sessions == nil {
		return nil, errors.New("no persistence backend configured (set persistence.backend)")
	}
	return a.Sessions, nil
}

// Close flushes spans and releases the persistence backend.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.shutdown != nil {
		errs = append(errs, a.shutdown(ctx))
	}
	errs = append(errs, a.persistence.Close())
	return errors.Join(errs...)
}
