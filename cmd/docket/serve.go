package main

import (
	"context"

	"github.com/aretw0/docket/internal/cli"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Exposes the document over HTTP: POST /actions, GET /stores, GET /events (SSE) and more.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		sessionID, _ := cmd.Flags().GetString("session")
		return withApp(cmd, func(ctx context.Context, app *cli.App) error {
			return cli.Serve(ctx, app, cli.ServeOptions{Addr: addr, SessionID: sessionID})
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Address to listen on (default from config, :8080)")
	serveCmd.Flags().StringP("session", "s", "", "Session ID to resume and persist")
}
