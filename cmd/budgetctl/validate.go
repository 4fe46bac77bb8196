package main

import (
	"github.com/spf13/cobra"

	"github.com/spanexx/personal-finance-dashboard-sub009/internal/budget"
)

func newValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check that the allocations add up to the budget total",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bf, err := opts.load(cmd.InOrStdin())
			if err != nil {
				return err
			}
			check, err := budget.ValidateAllocations(bf.Period.TotalAmount, bf.Allocations)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), check)
		},
	}
}
