package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cognicore/calldriver/pkg/calldriver/label"
	"github.com/cognicore/calldriver/pkg/calldriver/textnorm"
)

func newLabelCmd(root *rootOptions) *cobra.Command {
	var localOnly bool
	cmd := &cobra.Command{
		Use:   "label [FILE]",
		Short: "Name one cluster given its member texts, one per line (stdin by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.load(cmd, false)
			if err != nil {
				return err
			}
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			members, err := readLines(cmd, path)
			if err != nil {
				return err
			}
			if len(members) == 0 {
				return fmt.Errorf("no member texts given")
			}

			p := a.comp.Prefs
			var providers []label.Provider
			if !localOnly {
				providers = p.Providers(label.DefaultGuardConfig(), a.log)
			}
			r := label.NewResolver(p.LabelConfig(), providers, nil, a.log, a.metrics)
			if err := writeJSON(cmd.OutOrStdout(), r.Resolve(cmd.Context(), members)); err != nil {
				return err
			}
			return root.flushMetrics(a)
		},
	}
	cmd.Flags().BoolVar(&localOnly, "local", false, "skip remote providers")
	return cmd
}

func readLines(cmd *cobra.Command, path string) ([]string, error) {
	var sc *bufio.Scanner
	if path == "-" {
		sc = bufio.NewScanner(cmd.InOrStdin())
	} else {
		f, err := openInput(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		sc = bufio.NewScanner(f)
	}
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var out []string
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			out = append(out, textnorm.Normalize(line))
		}
	}
	return out, sc.Err()
}
