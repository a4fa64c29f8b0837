package main

import (
	"github.com/spf13/cobra"

	"github.com/cognicore/calldriver/pkg/calldriver/ingest"
	"github.com/cognicore/calldriver/pkg/calldriver/rules"
)

type classifyOutput struct {
	Tickets       int                 `json:"tickets"`
	OtherFraction float64             `json:"other_fraction"`
	Summary       []rules.DriverCount `json:"summary"`
	Assignments   []assignment        `json:"assignments,omitempty"`
}

func newClassifyCmd(root *rootOptions) *cobra.Command {
	var (
		format      string
		assignments bool
	)
	cmd := &cobra.Command{
		Use:   "classify TICKETS",
		Short: "Apply rules (and the taxonomy pass, if enabled) without clustering",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.load(cmd, true)
			if err != nil {
				return err
			}
			tickets, err := readTickets(args[0], format)
			if err != nil {
				return err
			}
			eng := a.engine(nil)
			cls, err := eng.Classify(cmd.Context(), ingest.Texts(tickets))
			if err != nil {
				return err
			}

			summary := rules.Counts(cls.Drivers)
			if !a.comp.Prefs.IncludeOther {
				kept := summary[:0]
				for _, c := range summary {
					if c.Driver != rules.Other {
						kept = append(kept, c)
					}
				}
				summary = kept
			}
			out := classifyOutput{
				Tickets:       len(tickets),
				OtherFraction: rules.OtherFraction(cls.Drivers),
				Summary:       summary,
			}
			if assignments {
				out.Assignments = make([]assignment, len(tickets))
				for i := range tickets {
					out.Assignments[i] = assignment{
						Index:  i,
						Ref:    tickets[i].Ref,
						Driver: cls.Drivers[i],
						Source: string(cls.Sources[i]),
					}
				}
			}
			if err := writeJSON(cmd.OutOrStdout(), out); err != nil {
				return err
			}
			return root.flushMetrics(a)
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "input format: csv or jsonl (default from extension)")
	cmd.Flags().BoolVar(&assignments, "assignments", false, "include per-ticket drivers in the output")
	return cmd
}
