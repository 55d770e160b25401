// ABOUTME: Entry point for the adui tool host
// ABOUTME: Builds the cobra command tree and shared config/app loading helpers

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aduitools/adui/internal/app"
	"github.com/aduitools/adui/internal/config"
	"github.com/aduitools/adui/internal/logging"
)

// Set via ldflags at build time.
var version = "dev"

const banner = `
             _       _
   __ _   __| |_   _(_)
  / _' | / _' | | | | |
 | (_| || (_| | |_| | |
  \__,_| \__,_|\__,_|_|
`

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "adui",
		Short: "Local developer tool host",
		// SilenceUsage prevents printing usage on every error
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor, _ := cmd.Flags().GetBool("no-color"); noColor {
				color.NoColor = true
			}
		},
	}
	root.PersistentFlags().String("config", "", "Path to config file (default: $ADUI_CONFIG or ~/.config/adui/config.yaml)")
	root.PersistentFlags().Bool("verbose", false, "Enable debug logging")
	root.PersistentFlags().Bool("no-color", false, "Disable colored output")

	root.Version = version
	root.SetVersionTemplate(fmt.Sprintf("adui version %s\n", version))

	root.AddCommand(newServeCmd())
	root.AddCommand(newToolsCmd())
	root.AddCommand(newSettingsCmd())
	root.AddCommand(newConversationsCmd())
	return root
}

// loadConfig resolves the config path from --config or the environment and
// loads it, falling back to defaults when the file does not exist.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = config.Path()
	}
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, path, fmt.Errorf("loading config: %w", err)
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, path, nil
}

// openApp wires an App for one-shot commands. Logs go to stderr and only
// warnings show unless --verbose is set.
func openApp(cmd *cobra.Command) (*app.App, error) {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logCfg := cfg.Logging
	if logCfg.Level != "debug" {
		logCfg.Level = "warn"
	}
	return newApp(cfg, logCfg, cmd.ErrOrStderr())
}

func newApp(cfg *config.Config, logCfg config.LoggingConfig, w io.Writer) (*app.App, error) {
	return app.New(cfg, logging.New(logCfg, w))
}
