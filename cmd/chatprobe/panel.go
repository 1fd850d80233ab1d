package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var panelSources string

var panelCmd = &cobra.Command{
	Use:   "panel [conversation-id]",
	Short: "Check that the dashboard sources panel exists and can be toggled",
	Args:  cobra.ExactArgs(1),
	RunE:  runPanel,
}

func init() {
	panelCmd.Flags().StringVar(&panelSources, "sources", "", "initial panel state: collapsed or expanded")
}

func runPanel(cmd *cobra.Command, args []string) error {
	report, err := newClient().Panel(cmd.Context(), args[0], panelSources)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "panel found:      %t\n", report.Found)
	fmt.Fprintf(out, "state:            %s\n", report.State)
	fmt.Fprintf(out, "collapsed class:  %t\n", report.Collapsed)
	fmt.Fprintf(out, "conditional hide: %t\n", report.ConditionalHide)
	fmt.Fprintf(out, "forced hide:      %t\n", report.ForcedHide)

	if !report.Toggleable() {
		return errors.New("sources panel cannot be toggled")
	}
	return nil
}
