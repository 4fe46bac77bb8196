package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/spanexx/personal-finance-dashboard-sub009/internal/budget"
)

// budgetFile is the on-disk input format. end_date may be omitted and is
// then derived from the period kind.
type budgetFile struct {
	Period      budget.Period               `json:"budget"`
	Allocations []budget.CategoryAllocation `json:"allocations"`
}

type rootOptions struct {
	file  string
	total string
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:          "budgetctl",
		Short:        "Offline budget analysis",
		Long:         "Check allocations and analyze spending for a budget described in a JSON file.",
		SilenceUsage: true,
	}
	root.SetOut(out)

	root.PersistentFlags().StringVarP(&opts.file, "file", "f", "", "Budget JSON file, - for stdin")
	root.PersistentFlags().StringVar(&opts.total, "total", "", "Override the budget total")
	_ = root.MarkPersistentFlagRequired("file")

	root.AddCommand(newAnalyzeCmd(opts), newValidateCmd(opts))
	return root
}

// load reads and normalizes the budget file named by opts.
func (o *rootOptions) load(in io.Reader) (*budgetFile, error) {
	var r io.Reader = in
	if o.file != "-" {
		f, err := os.Open(o.file)
		if err != nil {
			return nil, fmt.Errorf("open budget file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var bf budgetFile
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&bf); err != nil {
		return nil, fmt.Errorf("decode budget file: %w", err)
	}

	if o.total != "" {
		total, err := budget.ParseAmount("total", o.total)
		if err != nil {
			return nil, err
		}
		bf.Period.TotalAmount = total
	}

	bf.Period.StartDate = bf.Period.StartDate.UTC()
	if bf.Period.EndDate.IsZero() {
		end, err := budget.PeriodEnd(bf.Period.Kind, bf.Period.StartDate)
		if err != nil {
			return nil, err
		}
		bf.Period.EndDate = end
	}
	bf.Period.EndDate = bf.Period.EndDate.UTC()

	return &bf, bf.Period.Validate()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseAt(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --at %q: use RFC3339 or YYYY-MM-DD", s)
	}
	return t, nil
}
