package main

import (
	"context"

	"github.com/aretw0/docket/internal/cli"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print the document's stores and actions",
	Long: `Prints a summary of the document. The default format is markdown on a
terminal and text otherwise; json and mermaid are also available.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		sessionID, _ := cmd.Flags().GetString("session")
		return withApp(cmd, func(ctx context.Context, app *cli.App) error {
			return cli.Inspect(ctx, app, cli.InspectOptions{
				Format:    format,
				SessionID: sessionID,
				Out:       cmd.OutOrStdout(),
			})
		})
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().StringP("format", "f", "", "Output format: text, markdown, json, mermaid")
	inspectCmd.Flags().StringP("session", "s", "", "Inspect the document as stored in this session")
}
