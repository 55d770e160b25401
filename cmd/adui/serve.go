// ABOUTME: serve command: prints the startup banner and runs the HTTP tool host
// ABOUTME: Blocks until SIGINT/SIGTERM, then shuts down gracefully

package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the tool host HTTP server",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cyan := color.New(color.FgCyan)
	cyan.Fprint(out, banner)

	gray := color.New(color.FgHiBlack)
	gray.Fprintf(out, "    version: %s\n\n", version)

	cfg, configPath, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	line := func(label, value string) {
		green.Fprint(out, "    ▶ ")
		fmt.Fprintf(out, "%-10s %s\n", label+":", value)
	}
	line("Config", configPath)
	line("HTTP", "http://"+cfg.Server.HTTPAddr+"/tools/")
	line("Data", cfg.DataDir)
	line("Database", cfg.Database.Path)
	if cfg.Network.Proxy.Mode == "manual" {
		green.Fprint(out, "    ▶ ")
		fmt.Fprintf(out, "%-10s ", "Proxy:")
		yellow.Fprintln(out, cfg.Network.Proxy.URL)
	}
	if len(cfg.Tools.Disabled) > 0 {
		green.Fprint(out, "    ▶ ")
		fmt.Fprintf(out, "%-10s ", "Disabled:")
		gray.Fprintln(out, cfg.Tools.Disabled)
	}
	fmt.Fprintln(out)

	a, err := newApp(cfg, cfg.Logging, out)
	if err != nil {
		return fmt.Errorf("creating app: %w", err)
	}
	return a.Run(cmd.Context())
}
