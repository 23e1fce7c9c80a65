package main

import (
	"context"
	"os"

	"github.com/aretw0/docket/internal/cli"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Dispatch JSON-lines actions from stdin",
	Long: `Reads one action per line from stdin, e.g. {"type":"addEmptyBody","payload":{"name":"Shaft"}},
and writes one JSON response per line to stdout. "exit" or "quit" stops the loop.

With --session the document is resumed from and saved to the configured
persistence backend.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, _ := cmd.Flags().GetString("session")
		return withApp(cmd, func(ctx context.Context, app *cli.App) error {
			return cli.RunService(ctx, app, cli.RunOptions{
				SessionID: sessionID,
				In:        os.Stdin,
				Out:       os.Stdout,
			})
		})
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringP("session", "s", "", "Session ID to resume and persist")
}
