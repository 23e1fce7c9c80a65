package main

import (
	"context"

	"github.com/aretw0/docket/internal/cli"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Exposes the document as MCP tools (dispatch_action, describe_document, read_store).

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		transport, _ := cmd.Flags().GetString("transport")
		addr, _ := cmd.Flags().GetString("addr")
		sessionID, _ := cmd.Flags().GetString("session")
		return withApp(cmd, func(ctx context.Context, app *cli.App) error {
			return cli.ServeMCP(ctx, app, cli.MCPOptions{
				Transport: transport,
				Addr:      addr,
				SessionID: sessionID,
			})
		})
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().StringP("transport", "t", cli.TransportStdio, "Transport: stdio or sse")
	mcpCmd.Flags().String("addr", "", "Address for the sse transport (default from config)")
	mcpCmd.Flags().StringP("session", "s", "", "Session ID to resume and persist")
}
