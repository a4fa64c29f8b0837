package main

import (
	"context"
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cognicore/calldriver/internal/logging"
	"github.com/cognicore/calldriver/pkg/calldriver"
	"github.com/cognicore/calldriver/pkg/calldriver/config"
	"github.com/cognicore/calldriver/pkg/calldriver/label"
	"github.com/cognicore/calldriver/pkg/calldriver/metrics"
	"github.com/cognicore/calldriver/pkg/calldriver/store"
	"github.com/cognicore/calldriver/pkg/calldriver/store/memstore"
	"github.com/cognicore/calldriver/pkg/calldriver/store/sqlite"
)

type rootOptions struct {
	rulesPath    string
	taxonomyPath string
	prefsPath    string
	envFiles     []string
	dbPath       string
	logLevel     string
	logJSON      bool
	metricsOut   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:          "calldriver",
		Short:        "Classify support tickets into call drivers",
		SilenceUsage: true,
	}
	f := cmd.PersistentFlags()
	f.StringVar(&opts.rulesPath, "rules", "rules.yaml", "rules YAML file")
	f.StringVar(&opts.taxonomyPath, "taxonomy", "", "taxonomy YAML file (optional)")
	f.StringVar(&opts.prefsPath, "prefs", "", "preferences YAML file (optional)")
	f.StringSliceVar(&opts.envFiles, "env", nil, ".env files to load (default .env if present)")
	f.StringVar(&opts.dbPath, "db", "", "SQLite database for run history (overrides prefs db_path)")
	f.StringVar(&opts.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	f.BoolVar(&opts.logJSON, "log-json", false, "emit JSON logs")
	f.StringVar(&opts.metricsOut, "metrics-out", "", "write Prometheus metrics to this file on exit")

	cmd.AddCommand(
		newRunCmd(opts),
		newClassifyCmd(opts),
		newLabelCmd(opts),
		newRunsCmd(opts),
	)
	return cmd
}

// app bundles what a subcommand needs.
type app struct {
	comp    *config.Components
	log     zerolog.Logger
	reg     *prometheus.Registry
	metrics *metrics.Metrics
}

func (o *rootOptions) load(cmd *cobra.Command, needRules bool) (*app, error) {
	var comp *config.Components
	if needRules {
		l := &config.Loader{
			RulesPath:    o.rulesPath,
			TaxonomyPath: o.taxonomyPath,
			PrefsPath:    o.prefsPath,
			EnvFiles:     o.envFiles,
		}
		c, err := l.Load()
		if err != nil {
			return nil, err
		}
		comp = c
	} else {
		prefs, err := config.LoadPrefs(o.prefsPath)
		if err != nil {
			return nil, err
		}
		if err := config.LoadEnv(o.envFiles...); err != nil {
			return nil, err
		}
		prefs.ApplyEnv()
		if err := prefs.Validate(); err != nil {
			return nil, err
		}
		comp = &config.Components{Prefs: prefs}
	}
	if o.dbPath != "" {
		comp.Prefs.DBPath = o.dbPath
	}
	level := comp.Prefs.LogLevel
	if o.logLevel != "" {
		level = o.logLevel
	}
	reg := prometheus.NewRegistry()
	return &app{
		comp:    comp,
		log:     logging.New(cmd.ErrOrStderr(), level, o.logJSON),
		reg:     reg,
		metrics: metrics.New(reg),
	}, nil
}

func (a *app) openStore(ctx context.Context) (store.Store, error) {
	if a.comp.Prefs.DBPath == "" {
		return memstore.New(), nil
	}
	st, err := sqlite.OpenSQLite(ctx, a.comp.Prefs.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", a.comp.Prefs.DBPath, err)
	}
	return st, nil
}

func (a *app) engine(st store.Store) *calldriver.Engine {
	p := a.comp.Prefs
	return calldriver.New(calldriver.Options{
		Rules:            a.comp.Rules,
		Taxonomy:         a.comp.Taxonomy,
		TaxonomyMinScore: p.TaxonomyMinScore,
		Reduce:           p.ReduceConfig(),
		Label:            p.LabelConfig(),
		Providers:        p.Providers(label.DefaultGuardConfig(), a.log),
		Store:            st,
		Logger:           &a.log,
		Metrics:          a.metrics,
		Workers:          p.Workers,
		Seed:             p.Seed,
	})
}

func (o *rootOptions) flushMetrics(a *app) error {
	if o.metricsOut == "" || a == nil {
		return nil
	}
	return prometheus.WriteToTextfile(o.metricsOut, a.reg)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
