// Package label names discovered clusters. Remote providers are tried in
// order; any failure falls through to the next one, and a local
// keyword-based labeler always produces a title last.
package label

import (
	"context"
	"errors"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/cognicore/calldriver/pkg/calldriver/internalerr"
	"github.com/cognicore/calldriver/pkg/calldriver/metrics"
)

// Source identifies who produced a label.
type Source string

const (
	SourceGemini    Source = "gemini"
	SourceOpenAI    Source = "openai"
	SourceAnthropic Source = "anthropic"
	SourceLocal     Source = "local"
)

// ClusterLabel is the name given to one cluster.
type ClusterLabel struct {
	Title     string `json:"title"`
	Rationale string `json:"rationale"`
	Source    Source `json:"source"`
}

// Provider is a remote model that answers a system+user prompt with text.
// Implementations must respect ctx cancellation.
type Provider interface {
	Source() Source
	Complete(ctx context.Context, system, user string) (string, error)
}

// Config tunes sampling and remote attempts.
type Config struct {
	SampleSize  int           // representative texts sent to providers
	MaxChars    int           // per-text truncation, in runes
	Timeout     time.Duration // per provider attempt
	Seed        uint64
	Concurrency int // clusters labeled in parallel by ResolveAll
}

// DefaultConfig samples 12 texts of at most 280 characters and gives each
// provider 60 seconds.
func DefaultConfig() Config {
	return Config{SampleSize: 12, MaxChars: 280, Timeout: 60 * time.Second, Seed: 42, Concurrency: 4}
}

// Resolver turns cluster members into a ClusterLabel. It is safe for
// concurrent use as long as its providers are.
type Resolver struct {
	cfg       Config
	providers []Provider
	local     *Local
	log       zerolog.Logger
	metrics   *metrics.Metrics
}

// NewResolver builds a resolver trying providers in the given order. A nil
// local uses NewLocal(). m may be nil.
func NewResolver(cfg Config, providers []Provider, local *Local, log zerolog.Logger, m *metrics.Metrics) *Resolver {
	def := DefaultConfig()
	if cfg.SampleSize <= 0 {
		cfg.SampleSize = def.SampleSize
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = def.MaxChars
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if local == nil {
		local = NewLocal()
	}
	return &Resolver{
		cfg:       cfg,
		providers: providers,
		local:     local,
		log:       log.With().Str("component", "label").Logger(),
		metrics:   m,
	}
}

// Resolve names one cluster. It never fails: when every provider fails the
// local labeler answers, and its title is never empty.
func (r *Resolver) Resolve(ctx context.Context, members []string) ClusterLabel {
	sample := Sample(members, r.cfg.SampleSize, r.cfg.MaxChars, r.cfg.Seed)
	if len(sample) > 0 {
		user := userPrompt(sample)
		for _, p := range r.providers {
			if ctx.Err() != nil {
				break
			}
			if lbl, ok := r.attempt(ctx, p, user); ok {
				return lbl
			}
		}
	}

	start := time.Now()
	lbl := r.local.Label(members)
	r.metrics.LabelAttempt(string(SourceLocal), "ok", time.Since(start).Seconds())
	return lbl
}

func (r *Resolver) attempt(ctx context.Context, p Provider, user string) (ClusterLabel, bool) {
	attemptCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	src := p.Source()
	start := time.Now()
	raw, err := p.Complete(attemptCtx, systemPrompt, user)
	elapsed := time.Since(start).Seconds()
	if errors.Is(err, internalerr.ErrProviderUnavailable) {
		r.log.Debug().Err(err).Str("provider", string(src)).Msg("label provider skipped")
		r.metrics.LabelAttempt(string(src), "skipped", elapsed)
		return ClusterLabel{}, false
	}
	if err != nil {
		r.log.Warn().Err(err).Str("provider", string(src)).Msg("label provider failed")
		r.metrics.LabelAttempt(string(src), "error", elapsed)
		return ClusterLabel{}, false
	}

	title, rationale, err := ParseResponse(raw)
	if err != nil {
		r.log.Warn().Err(err).Str("provider", string(src)).Msg("label response rejected")
		r.metrics.LabelAttempt(string(src), "parse_error", elapsed)
		return ClusterLabel{}, false
	}
	r.metrics.LabelAttempt(string(src), "ok", elapsed)
	return ClusterLabel{Title: title, Rationale: rationale, Source: src}, true
}

// ResolveAll names every cluster concurrently, keyed like clusters.
func (r *Resolver) ResolveAll(ctx context.Context, clusters map[string][]string) map[string]ClusterLabel {
	keys := make([]string, 0, len(clusters))
	for k := range clusters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var (
		mu  sync.Mutex
		out = make(map[string]ClusterLabel, len(keys))
	)
	var g errgroup.Group
	g.SetLimit(r.cfg.Concurrency)
	for _, k := range keys {
		g.Go(func() error {
			lbl := r.Resolve(ctx, clusters[k])
			mu.Lock()
			out[k] = lbl
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Sample drops blank texts, shuffles the rest with a generator seeded by
// seed, and keeps up to k of them truncated to maxChars runes.
func Sample(texts []string, k, maxChars int, seed uint64) []string {
	pool := make([]string, 0, len(texts))
	for _, t := range texts {
		if strings.TrimSpace(t) != "" {
			pool = append(pool, t)
		}
	}
	rng := rand.New(rand.NewPCG(seed, seed))
	rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	if len(pool) > k {
		pool = pool[:k]
	}
	for i, t := range pool {
		if r := []rune(t); len(r) > maxChars {
			pool[i] = string(r[:maxChars])
		}
	}
	return pool
}
