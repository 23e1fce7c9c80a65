package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/docket"
	"github.com/aretw0/docket/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of docket",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		if tui.IsTerminal(out) {
			tui.PrintBanner(out)
		}
		fmt.Fprintf(out, "docket version %s\n", strings.TrimSpace(docket.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
