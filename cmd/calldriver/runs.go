package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cognicore/calldriver/pkg/calldriver/rules"
	"github.com/cognicore/calldriver/pkg/calldriver/store"
)

func newRunsCmd(root *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List persisted runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.load(cmd, false)
			if err != nil {
				return err
			}
			if a.comp.Prefs.DBPath == "" {
				return fmt.Errorf("runs: --db or db_path is required")
			}
			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			runs, err := st.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if runs == nil {
				runs = []store.Run{}
			}
			return writeJSON(cmd.OutOrStdout(), runs)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to list (0 for all)")
	cmd.AddCommand(newRunsShowCmd(root))
	return cmd
}

type runDetail struct {
	Run      store.Run            `json:"run"`
	Clusters []store.ClusterLabel `json:"clusters"`
	Summary  []rules.DriverCount  `json:"summary"`
}

func newRunsShowCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show RUN_ID",
		Short: "Show one run's cluster labels and driver counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := root.load(cmd, false)
			if err != nil {
				return err
			}
			if a.comp.Prefs.DBPath == "" {
				return fmt.Errorf("runs show: --db or db_path is required")
			}
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			run, err := st.GetRun(ctx, args[0])
			if err != nil {
				return err
			}
			labels, err := st.ClusterLabels(ctx, run.ID)
			if err != nil {
				return err
			}
			tickets, err := st.Tickets(ctx, run.ID)
			if err != nil {
				return err
			}
			drivers := make([]string, len(tickets))
			for i, t := range tickets {
				drivers[i] = t.Driver
			}
			return writeJSON(cmd.OutOrStdout(), runDetail{Run: run, Clusters: labels, Summary: rules.Counts(drivers)})
		},
	}
}
