// ABOUTME: tools command: activates every registered tool and prints its lifecycle state
// ABOUTME: Listing order matches the registry order used for routes

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aduitools/adui/internal/toolkit"
)

func newToolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List registered tools and their state",
		Args:  cobra.NoArgs,
		RunE:  runTools,
	}
}

func runTools(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Start(cmd.Context()); err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tORDER\tSTATE\tERROR")
	for _, st := range a.Host().States() {
		errText := ""
		if st.Err != nil {
			errText = st.Err.Error()
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", st.Meta.ID, st.Meta.Name, st.Meta.Order, stateLabel(st.State), errText)
	}
	return w.Flush()
}

func stateLabel(s toolkit.State) string {
	switch s {
	case toolkit.StateActive:
		return color.GreenString(s.String())
	case toolkit.StateDisabled:
		return color.YellowString(s.String())
	default:
		return s.String()
	}
}
