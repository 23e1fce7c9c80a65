package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	httpAdapter "github.com/aretw0/docket/pkg/adapters/http"
	"github.com/aretw0/docket/pkg/adapters/mcp"
)

// ShutdownTimeout bounds graceful HTTP shutdown.
const ShutdownTimeout = 5 * time.Second

// ServeOptions configures Serve.
type ServeOptions struct {
	Addr      string
	SessionID string
}

// NewHTTPServer builds the HTTP adapter for app.
func NewHTTPServer(ctx context.Context, app *App, sessionID string) (*httpAdapter.Server, error) {
	cfg := app.Config.HTTP
	opts := []httpAdapter.Option{
		httpAdapter.WithLogger(app.Logger),
		httpAdapter.WithBroadcaster(app.Streams),
		httpAdapter.WithDispatcher(app.Tracer.Dispatch),
		httpAdapter.WithAuthSecret(cfg.AuthSecret),
		httpAdapter.WithCORSOrigins(cfg.CORSOrigins),
		httpAdapter.WithMaxBodyBytes(cfg.MaxBodyBytes),
	}
	if h := app.MetricsHandler(); h != nil {
		opts = append(opts, httpAdapter.WithMetrics(app.Config.Metrics.Path, h))
	}
	if sessionID == "" {
		sessionID = app.Config.Service.Session
	}
	if sessionID != "" {
		mgr, err := app.RequireSessions()
		if err != nil {
			return nil, err
		}
		if _, err := mgr.Resume(ctx, app.Doc, sessionID); err != nil {
			return nil, err
		}
		opts = append(opts, httpAdapter.WithSession(mgr, sessionID))
	}
	return httpAdapter.NewServer(app.Doc, opts...), nil
}

// Serve runs the HTTP adapter until ctx is cancelled, then shuts down
// gracefully.
func Serve(ctx context.Context, app *App, opts ServeOptions) error {
	srv, err := NewHTTPServer(ctx, app, opts.SessionID)
	if err != nil {
		return err
	}

	addr := opts.Addr
	if addr == "" {
		addr = app.Config.HTTP.Addr
	}
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		app.Logger.Info("Starting Docket Server", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		app.Logger.Info("Start shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			_ = httpServer.Close()
			return fmt.Errorf("graceful shutdown did not complete in %v: %w", ShutdownTimeout, err)
		}
		app.Logger.Info("Docket Server stopped gracefully")
		return nil
	}
}

// MCP transports.
const (
	TransportStdio = "stdio"
	TransportSSE   = "sse"
)

// MCPOptions configures ServeMCP.
type MCPOptions struct {
	Transport string
	Addr      string
	SessionID string
}

// ServeMCP exposes the Document as MCP tools over stdio or SSE.
func ServeMCP(ctx context.Context, app *App, opts MCPOptions) error {
	mcpOpts := []mcp.Option{
		mcp.WithLogger(app.Logger),
		mcp.WithDispatcher(app.Tracer.Dispatch),
		mcp.WithMaxInputSize(app.Config.Service.MaxInputSize),
	}
	sessionID := opts.SessionID
	if sessionID == "" {
		sessionID = app.Config.Service.Session
	}
	if sessionID != "" {
		mgr, err := app.RequireSessions()
		if err != nil {
			return err
		}
		if _, err := mgr.Resume(ctx, app.Doc, sessionID); err != nil {
			return err
		}
		mcpOpts = append(mcpOpts, mcp.WithSession(mgr, sessionID))
	}
	srv := mcp.NewServer(app.Doc, mcpOpts...)

	switch opts.Transport {
	case "", TransportStdio:
		return srv.ServeStdio()
	case TransportSSE:
		addr := opts.Addr
		if addr == "" {
			addr = app.Config.HTTP.Addr
		}
		return srv.ServeSSE(ctx, addr, baseURL(addr))
	default:
		return fmt.Errorf("unknown transport %q (want %s or %s)", opts.Transport, TransportStdio, TransportSSE)
	}
}

func baseURL(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "http://localhost" + addr
	}
	return "http://" + addr
}
