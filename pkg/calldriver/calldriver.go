// Package calldriver assigns every support ticket a call driver: keyword
// rules first, an optional taxonomy pass, clustering of what is left as
// Other, and finally a name for every discovered cluster.
package calldriver

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/cognicore/calldriver/pkg/calldriver/cluster"
	"github.com/cognicore/calldriver/pkg/calldriver/featurize"
	"github.com/cognicore/calldriver/pkg/calldriver/ingest"
	"github.com/cognicore/calldriver/pkg/calldriver/label"
	"github.com/cognicore/calldriver/pkg/calldriver/metrics"
	"github.com/cognicore/calldriver/pkg/calldriver/rules"
	"github.com/cognicore/calldriver/pkg/calldriver/store"
	"github.com/cognicore/calldriver/pkg/calldriver/taxonomy"
)

// Source says which stage gave a ticket its driver.
type Source string

const (
	SourceRule     Source = "rule"
	SourceTaxonomy Source = "taxonomy"
	SourceCluster  Source = "cluster"
	SourceOther    Source = "other"
)

// Options configures an Engine. Zero values pick the defaults.
type Options struct {
	Rules []rules.Rule
	// Taxonomy, when set together with TaxonomyMinScore > 0, reassigns rule
	// Other tickets whose best taxonomy score reaches the threshold.
	Taxonomy         *taxonomy.Matcher
	TaxonomyMinScore float64

	Reduce    cluster.ReduceConfig
	Featurize featurize.Config
	Label     label.Config
	Providers []label.Provider
	// Density overrides the density clusterer; DisableDensity skips it and
	// always uses k-means.
	Density        cluster.Clusterer
	DisableDensity bool

	// Store persists every run when set.
	Store   store.Store
	Logger  *zerolog.Logger
	Metrics *metrics.Metrics
	Workers int
	Seed    uint64
	Now     func() time.Time
}

// Engine is the call-driver pipeline facade.
type Engine struct {
	rules    []rules.Rule
	tax      *taxonomy.Matcher
	taxMin   float64
	reducer  *cluster.Reducer
	resolver *label.Resolver
	store    store.Store
	ids      *store.IDs
	log      zerolog.Logger
	metrics  *metrics.Metrics
	workers  int
	now      func() time.Time
}

// New creates an Engine with the given dependencies.
func New(opts Options) *Engine {
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	fcfg := opts.Featurize
	if fcfg == (featurize.Config{}) {
		fcfg = featurize.DefaultConfig()
	}
	fcfg.Seed = opts.Seed

	density := opts.Density
	if density == nil && !opts.DisableDensity {
		density = cluster.NewHDBSCAN()
	}
	engine := cluster.NewEngine(density, cluster.NewKMeans(opts.Seed), log)

	rcfg := opts.Reduce
	if rcfg == (cluster.ReduceConfig{}) {
		rcfg = cluster.DefaultReduceConfig()
	}
	lcfg := opts.Label
	if lcfg == (label.Config{}) {
		lcfg = label.DefaultConfig()
	}
	lcfg.Seed = opts.Seed

	return &Engine{
		rules:    opts.Rules,
		tax:      opts.Taxonomy,
		taxMin:   opts.TaxonomyMinScore,
		reducer:  cluster.NewReducer(rcfg, featurize.New(fcfg, nil), engine, log, opts.Metrics),
		resolver: label.NewResolver(lcfg, opts.Providers, nil, log, opts.Metrics),
		store:    opts.Store,
		ids:      store.NewIDs(),
		log:      log.With().Str("component", "calldriver").Logger(),
		metrics:  opts.Metrics,
		workers:  opts.Workers,
		now:      now,
	}
}

// Close cleanly shuts down the Engine.
func (e *Engine) Close() error {
	if e.store == nil {
		return nil
	}
	return e.store.Close()
}

// Classification is the deterministic first pass over a batch.
type Classification struct {
	Drivers []string `json:"drivers"`
	Sources []Source `json:"sources"`
}

// Classify runs the rules and, when enabled, the taxonomy pass. It never
// clusters or calls a provider.
func (e *Engine) Classify(ctx context.Context, texts []string) (Classification, error) {
	drivers, err := rules.ClassifyAll(ctx, texts, e.rules, e.workers)
	if err != nil {
		return Classification{}, fmt.Errorf("classify: %w", err)
	}
	sources := make([]Source, len(drivers))
	for i, d := range drivers {
		if d == rules.Other {
			sources[i] = SourceOther
		} else {
			sources[i] = SourceRule
		}
	}

	if e.tax != nil && e.tax.Len() > 0 && e.taxMin > 0 {
		for i, d := range drivers {
			if d != rules.Other {
				continue
			}
			if i%256 == 0 {
				if err := ctx.Err(); err != nil {
					return Classification{}, fmt.Errorf("classify: %w", err)
				}
			}
			if name := e.tax.Assign(texts[i], e.taxMin); name != rules.Other {
				drivers[i] = name
				sources[i] = SourceTaxonomy
			}
		}
	}

	counts := map[Source]int{}
	for _, s := range sources {
		counts[s]++
	}
	for s, n := range counts {
		e.metrics.TicketsClassified(string(s), n)
	}
	return Classification{Drivers: drivers, Sources: sources}, nil
}

// Report is the outcome of a full run. Per-ticket slices are index-aligned
// with the input.
type Report struct {
	RunID string `json:"run_id"`
	// Drivers are final: discovered clusters carry their resolved title.
	Drivers []string `json:"drivers"`
	Sources []Source `json:"sources"`
	// ClusterDrivers holds cluster_<id> for clustered tickets, else "".
	ClusterDrivers []string                      `json:"cluster_drivers"`
	Clusters       map[string]label.ClusterLabel `json:"clusters"`
	Rounds         []cluster.RoundStats          `json:"rounds"`
	Stop           cluster.StopReason            `json:"stop"`
	OtherBefore    float64                       `json:"other_before"`
	OtherAfter     float64                       `json:"other_after"`
}

// Summary counts tickets per final driver, most frequent first. Other is
// left out unless includeOther is set.
func (r *Report) Summary(includeOther bool) []rules.DriverCount {
	counts := rules.Counts(r.Drivers)
	if includeOther {
		return counts
	}
	out := counts[:0:0]
	for _, c := range counts {
		if c.Driver != rules.Other {
			out = append(out, c)
		}
	}
	return out
}

// RunTexts runs the pipeline over bare ticket texts.
func (e *Engine) RunTexts(ctx context.Context, texts []string) (*Report, error) {
	tickets := make([]ingest.Ticket, len(texts))
	for i, t := range texts {
		tickets[i] = ingest.Ticket{ShortDescription: t}
	}
	return e.Run(ctx, tickets)
}

// Run classifies tickets, clusters the Other remainder, names every
// discovered cluster and, if a store is configured, persists the run.
func (e *Engine) Run(ctx context.Context, tickets []ingest.Ticket) (*Report, error) {
	started := e.now()
	texts := ingest.Texts(tickets)

	cls, err := e.Classify(ctx, texts)
	if err != nil {
		return nil, err
	}
	otherBefore := rules.OtherFraction(cls.Drivers)

	res, err := e.reducer.Reduce(ctx, texts, cls.Drivers)
	if err != nil {
		return nil, err
	}

	members := res.Members()
	groups := make(map[string][]string, len(members))
	for d, idx := range members {
		g := make([]string, len(idx))
		for i, j := range idx {
			g[i] = texts[j]
		}
		groups[d] = g
	}
	labels := e.resolver.ResolveAll(ctx, groups)

	rep := &Report{
		RunID:          e.ids.New(started),
		Drivers:        make([]string, len(texts)),
		Sources:        cls.Sources,
		ClusterDrivers: make([]string, len(texts)),
		Clusters:       labels,
		Rounds:         res.Rounds,
		Stop:           res.Stop,
		OtherBefore:    otherBefore,
		OtherAfter:     rules.OtherFraction(res.Drivers),
	}
	clustered := 0
	for i, d := range res.Drivers {
		rep.Drivers[i] = d
		if res.IsClustered(i) {
			rep.ClusterDrivers[i] = d
			rep.Drivers[i] = labels[d].Title
			rep.Sources[i] = SourceCluster
			clustered++
		}
	}
	e.metrics.TicketsClassified(string(SourceCluster), clustered)

	e.log.Info().
		Str("run_id", rep.RunID).
		Int("tickets", len(texts)).
		Int("clusters", len(labels)).
		Float64("other_before", rep.OtherBefore).
		Float64("other_after", rep.OtherAfter).
		Str("stop", string(rep.Stop)).
		Dur("elapsed", e.now().Sub(started)).
		Msg("run complete")

	if e.store != nil {
		if err := e.persist(ctx, started, tickets, texts, rep, members); err != nil {
			return rep, fmt.Errorf("persist run %s: %w", rep.RunID, err)
		}
	}
	return rep, nil
}

func (e *Engine) persist(ctx context.Context, started time.Time, tickets []ingest.Ticket, texts []string, rep *Report, members map[string][]int) error {
	run := store.Run{
		ID:          rep.RunID,
		CreatedAt:   started,
		Tickets:     len(texts),
		OtherBefore: rep.OtherBefore,
		OtherAfter:  rep.OtherAfter,
		Rounds:      len(rep.Rounds),
		Stop:        string(rep.Stop),
	}
	rows := make([]store.Ticket, len(texts))
	for i := range texts {
		rows[i] = store.Ticket{
			Index:  i,
			Ref:    tickets[i].Ref,
			Text:   texts[i],
			Driver: rep.Drivers[i],
			Source: string(rep.Sources[i]),
		}
	}
	var cls []store.ClusterLabel
	for _, d := range cluster.SortedClusterDrivers(members) {
		l := rep.Clusters[d]
		cls = append(cls, store.ClusterLabel{
			Driver:    d,
			Title:     l.Title,
			Rationale: l.Rationale,
			Source:    string(l.Source),
			Size:      len(members[d]),
		})
	}
	return e.store.SaveRun(ctx, run, rows, cls)
}
