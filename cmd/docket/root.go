package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aretw0/docket/internal/cli"
	"github.com/aretw0/docket/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "docket",
	Short: "Docket is a controlled-mutation container for application models",
	Long: `Docket keeps application models in stores owned by a document and lets
them change only through registered actions.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Config file (default: docket.yaml, docket.yml or docket.json if present)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: text or json")
}

// loadConfig layers the command-line flags over config.Load.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	level, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")
	return config.Load(path, func(cfg *config.Config) {
		if level != "" {
			cfg.Log.Level = level
		}
		if format != "" {
			cfg.Log.Format = format
		}
	})
}

// withApp builds the App for cmd, runs fn under a signal-aware context and
// closes the App afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, app *cli.App) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx := cli.NewSignalContext(cmd.Context())
	defer ctx.Cancel()

	app, err := cli.NewApp(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(context.Background()); err != nil {
			app.Logger.Warn("Shutdown incomplete", "err", err)
		}
	}()

	err = fn(ctx, app)
	if sig := ctx.Signal(); sig != nil {
		app.Logger.Info("Interrupted", "signal", sig.String())
	}
	return cli.HandleExecutionError(err)
}
