// ABOUTME: settings commands: list keys, read and write JSON setting values
// ABOUTME: Sensitive keys are sealed and opened transparently by the settings service

package main

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read and write settings",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Print the JSON value of a setting",
		Args:  cobra.ExactArgs(1),
		RunE:  runSettingsGet,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <json>",
		Short: "Store a JSON value under a key",
		Args:  cobra.ExactArgs(2),
		RunE:  runSettingsSet,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored setting keys",
		Args:  cobra.NoArgs,
		RunE:  runSettingsList,
	})
	return cmd
}

func runSettingsGet(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	value, err := a.Settings().Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if value == nil {
		return fmt.Errorf("setting %q is not set", args[0])
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, value, "", "  "); err != nil {
		return fmt.Errorf("formatting setting %q: %w", args[0], err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), buf.String())
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.Settings().Set(cmd.Context(), args[0], json.RawMessage(args[1]))
}

func runSettingsList(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	keys, err := a.Settings().Keys(cmd.Context())
	if err != nil {
		return err
	}
	for _, k := range keys {
		fmt.Fprintln(cmd.OutOrStdout(), k)
	}
	return nil
}
