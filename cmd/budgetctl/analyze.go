package main

import (
	"github.com/spf13/cobra"

	"github.com/spanexx/personal-finance-dashboard-sub009/internal/budget"
)

func newAnalyzeCmd(opts *rootOptions) *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Print per-category status and the period rollup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			now, err := parseAt(at)
			if err != nil {
				return err
			}
			bf, err := opts.load(cmd.InOrStdin())
			if err != nil {
				return err
			}
			report, err := budget.Analyze(bf.Period, bf.Allocations, now)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "Evaluation time, RFC3339 or YYYY-MM-DD (default now)")
	return cmd
}
