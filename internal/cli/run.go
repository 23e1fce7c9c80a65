package cli

import (
	"context"
	"errors"
	"io"

	"github.com/aretw0/docket/pkg/service"
)

// RunOptions configures RunService.
type RunOptions struct {
	SessionID string
	In        io.Reader
	Out       io.Writer
}

// RunService runs the JSON-lines loop over the App's Document. A session ID
// requires a persistence backend.
func RunService(ctx context.Context, app *App, opts RunOptions) error {
	svcOpts := []service.Option{
		service.WithLogger(app.Logger),
		service.WithMaxInputSize(app.Config.Service.MaxInputSize),
		service.WithDispatcher(app.Tracer.Dispatch),
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
		svcOpts = append(svcOpts, service.WithSession(mgr, sessionID))
		app.Logger.Info("Session active", "session_id", sessionID)
	}

	err := service.New(app.Doc, svcOpts...).Run(ctx, opts.In, opts.Out)
	if errors.Is(err, service.ErrExit) {
		return nil
	}
	return err
}
