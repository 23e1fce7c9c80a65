package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aretw0/docket/internal/presentation/graph"
	"github.com/aretw0/docket/internal/presentation/tui"
	"github.com/aretw0/docket/pkg/domain"
	"github.com/aretw0/docket/pkg/service"
	"github.com/aretw0/docket/pkg/snapshot"
)

// Inspect output formats.
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
	FormatMermaid  = "mermaid"
)

// InspectOptions configures Inspect.
type InspectOptions struct {
	Format    string
	SessionID string
	Out       io.Writer
}

// Inspection is the JSON form of Inspect.
type Inspection struct {
	Summary string            `json:"summary"`
	Stores  map[string]string `json:"stores"`
	Actions []string          `json:"actions"`
	Changed []string          `json:"changed,omitempty"`
}

// Inspect prints the Document, optionally after resuming a session. Changed
// lists the stores the session moved away from their initial state.
func Inspect(ctx context.Context, app *App, opts InspectOptions) error {
	var changed []string
	if opts.SessionID != "" {
		mgr, err := app.RequireSessions()
		if err != nil {
			return err
		}
		before, err := snapshot.Capture(app.Doc, opts.SessionID)
		if err != nil {
			return err
		}
		resumed, err := mgr.Resume(ctx, app.Doc, opts.SessionID)
		if err != nil {
			return err
		}
		if !resumed {
			return fmt.Errorf("session %q: %w", opts.SessionID, domain.ErrSnapshotNotFound)
		}
		after, err := snapshot.Capture(app.Doc, opts.SessionID)
		if err != nil {
			return err
		}
		changed = domain.Diff(before, after).Keys()
	}

	view := Inspection{
		Summary: app.Doc.String(),
		Stores:  service.Summaries(app.Doc),
		Actions: app.Doc.ActionTypes(),
		Changed: changed,
	}

	format := opts.Format
	if format == "" {
		format = FormatText
		if tui.IsTerminal(opts.Out) {
			format = FormatMarkdown
		}
	}

	switch format {
	case FormatJSON:
		enc := json.NewEncoder(opts.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	case FormatMermaid:
		_, err := io.WriteString(opts.Out, graph.GenerateMermaid(app.Doc, &graph.Overlay{ChangedStores: changed}))
		return err
	case FormatMarkdown:
		md := tui.DocumentMarkdown(view.Summary, view.Stores, view.Actions)
		render, err := tui.NewRenderer(tui.Width(opts.Out))
		if err != nil {
			return err
		}
		out, err := render(md)
		if err != nil {
			return err
		}
		_, err = io.WriteString(opts.Out, out)
		return err
	case FormatText:
		_, err := fmt.Fprintf(opts.Out, "%s\n\n%s\nActions:\n%s", view.Summary,
			tui.Table("STORE", "MODEL", view.Stores),
			tui.List(view.Actions))
		return err
	default:
		return fmt.Errorf("unknown format %q (want text, markdown, json or mermaid)", format)
	}
}
