package main

import (
	"github.com/spf13/cobra"

	"github.com/cognicore/calldriver/pkg/calldriver/cluster"
	"github.com/cognicore/calldriver/pkg/calldriver/ingest"
	"github.com/cognicore/calldriver/pkg/calldriver/label"
	"github.com/cognicore/calldriver/pkg/calldriver/rules"
)

type assignment struct {
	Index   int    `json:"index"`
	Ref     string `json:"ref,omitempty"`
	Driver  string `json:"driver"`
	Source  string `json:"source"`
	Cluster string `json:"cluster,omitempty"`
}

type runOutput struct {
	RunID       string                        `json:"run_id"`
	Tickets     int                           `json:"tickets"`
	OtherBefore float64                       `json:"other_before"`
	OtherAfter  float64                       `json:"other_after"`
	Stop        cluster.StopReason            `json:"stop"`
	Rounds      []cluster.RoundStats          `json:"rounds"`
	Clusters    map[string]label.ClusterLabel `json:"clusters"`
	Summary     []rules.DriverCount           `json:"summary"`
	Assignments []assignment                  `json:"assignments,omitempty"`
}

func newRunCmd(root *rootOptions) *cobra.Command {
	var (
		format      string
		assignments bool
	)
	cmd := &cobra.Command{
		Use:   "run TICKETS",
		Short: "Classify, cluster the Other remainder and name the clusters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := root.load(cmd, true)
			if err != nil {
				return err
			}
			tickets, err := readTickets(args[0], format)
			if err != nil {
				return err
			}
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			eng := a.engine(st)
			defer eng.Close()

			rep, err := eng.Run(ctx, tickets)
			if err != nil {
				return err
			}
			out := runOutput{
				RunID:       rep.RunID,
				Tickets:     len(tickets),
				OtherBefore: rep.OtherBefore,
				OtherAfter:  rep.OtherAfter,
				Stop:        rep.Stop,
				Rounds:      rep.Rounds,
				Clusters:    rep.Clusters,
				Summary:     rep.Summary(a.comp.Prefs.IncludeOther),
			}
			if assignments {
				out.Assignments = make([]assignment, len(tickets))
				for i := range tickets {
					out.Assignments[i] = assignment{
						Index:   i,
						Ref:     tickets[i].Ref,
						Driver:  rep.Drivers[i],
						Source:  string(rep.Sources[i]),
						Cluster: rep.ClusterDrivers[i],
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

func readTickets(path, format string) ([]ingest.Ticket, error) {
	if format == "" {
		if path != "-" {
			return ingest.LoadFile(path)
		}
		format = string(ingest.FormatCSV)
	}
	f, err := openInput(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ingest.Read(f, ingest.Format(format))
}
