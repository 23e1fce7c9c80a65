package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ListSessions prints every stored session ID.
func ListSessions(ctx context.Context, app *App, w io.Writer) error {
	mgr, err := app.RequireSessions()
	if err != nil {
		return err
	}
	sessions, err := mgr.List(ctx)
	if err != nil {
		return fmt.Errorf("error listing sessions: %w", err)
	}
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No active sessions found.")
		return nil
	}
	fmt.Fprintln(w, "Active Sessions:")
	for _, s := range sessions {
		fmt.Fprintln(w, "- "+s)
	}
	return nil
}

// ShowSession prints the stored snapshot of sessionID as indented JSON.
func ShowSession(ctx context.Context, app *App, sessionID string, w io.Writer) error {
	mgr, err := app.RequireSessions()
	if err != nil {
		return err
	}
	snap, err := mgr.Load(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("error loading session '%s': %w", sessionID, err)
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// DeleteSessions removes each session, reporting every failure.
func DeleteSessions(ctx context.Context, app *App, sessionIDs []string, w io.Writer) error {
	mgr, err := app.RequireSessions()
	if err != nil {
		return err
	}
	var errs []error
	for _, id := range sessionIDs {
		if err := mgr.Delete(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("error removing '%s': %w", id, err))
			continue
		}
		fmt.Fprintf(w, "Removed session '%s'\n", id)
	}
	return errors.Join(errs...)
}
