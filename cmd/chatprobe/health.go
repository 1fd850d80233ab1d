package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Show dependency status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		report, err := newClient().Health(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		names := make([]string, 0, len(report.Dependencies))
		for name := range report.Dependencies {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(out, "%-10s %s\n", name, report.Dependencies[name])
		}
		if !report.OK {
			return fmt.Errorf("server unhealthy (HTTP %d)", report.StatusCode)
		}
		fmt.Fprintln(out, "ok")
		return nil
	},
}
