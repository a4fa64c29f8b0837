package cluster

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/cognicore/calldriver/pkg/calldriver/featurize"
	"github.com/cognicore/calldriver/pkg/calldriver/internalerr"
	"github.com/cognicore/calldriver/pkg/calldriver/metrics"
	"github.com/cognicore/calldriver/pkg/calldriver/rules"
)

// ClusterPrefix starts every synthesized driver awaiting a name.
const ClusterPrefix = "cluster_"

// Featurizer produces the embedding the engine clusters.
type Featurizer interface {
	Featurize(texts []string) (*featurize.TermMatrix, *mat.Dense, error)
}

// ReduceConfig bounds the Other-reduction loop.
type ReduceConfig struct {
	TargetOther    float64 // stop once the Other share is at or below this
	MaxRounds      int
	MinClusterSize int
	FallbackK      int
}

// DefaultReduceConfig returns target 12%, 3 rounds, min cluster size 25, k 12.
func DefaultReduceConfig() ReduceConfig {
	return ReduceConfig{TargetOther: 0.12, MaxRounds: 3, MinClusterSize: 25, FallbackK: 12}
}

// StopReason says why the loop ended.
type StopReason string

const (
	StopNoOther    StopReason = "no_other"
	StopTarget     StopReason = "target_reached"
	StopMaxRounds  StopReason = "max_rounds"
	StopTooFew     StopReason = "too_few_points"
	StopFeaturize  StopReason = "featurize_failed"
	StopCluster    StopReason = "cluster_failed"
	StopNoProgress StopReason = "no_progress"
)

// RoundStats describes one Scanning → Clustering → Relabeling pass.
type RoundStats struct {
	Round       int       `json:"round"`
	Subset      int       `json:"subset"`
	Algorithm   Algorithm `json:"algorithm"`
	Clusters    int       `json:"clusters"`
	Noise       int       `json:"noise"`
	OtherBefore float64   `json:"other_before"`
	OtherAfter  float64   `json:"other_after"`
}

// Result is the outcome of Reduce. Drivers and Clustered are index-aligned
// with the input.
type Result struct {
	Drivers   []string     `json:"drivers"`
	Clustered []bool       `json:"-"` // relabeled by this Reduce call
	Rounds    []RoundStats `json:"rounds"`
	Stop      StopReason   `json:"stop"`
}

// IsClustered reports whether ticket i was moved out of Other by a round.
func (r Result) IsClustered(i int) bool {
	return i < len(r.Clustered) && r.Clustered[i]
}

// Members groups the tickets relabeled by Reduce by their cluster driver.
// Drivers that merely look like cluster_<id> on input are not members.
func (r Result) Members() map[string][]int {
	out := make(map[string][]int)
	for i, d := range r.Drivers {
		if r.IsClustered(i) {
			out[d] = append(out[d], i)
		}
	}
	return out
}

// IsClusterDriver reports whether d is a synthesized cluster_<id> driver.
func IsClusterDriver(d string) bool {
	_, ok := clusterID(d)
	return ok
}

func clusterID(d string) (int, bool) {
	rest, ok := strings.CutPrefix(d, ClusterPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.Atoi(rest)
	if err != nil || id < 0 {
		return 0, false
	}
	return id, true
}

// Reducer shrinks the Other bucket by clustering it round after round.
type Reducer struct {
	cfg     ReduceConfig
	feat    Featurizer
	engine  *Engine
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// NewReducer wires a reducer. m may be nil.
func NewReducer(cfg ReduceConfig, feat Featurizer, engine *Engine, log zerolog.Logger, m *metrics.Metrics) *Reducer {
	def := DefaultReduceConfig()
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = def.MaxRounds
	}
	if cfg.MinClusterSize <= 0 {
		cfg.MinClusterSize = def.MinClusterSize
	}
	if cfg.FallbackK <= 0 {
		cfg.FallbackK = def.FallbackK
	}
	return &Reducer{
		cfg:     cfg,
		feat:    feat,
		engine:  engine,
		log:     log.With().Str("component", "reduce").Logger(),
		metrics: m,
	}
}

// Reduce runs the loop over texts whose current drivers are given. Only the
// Other subset is ever clustered, and only Other tickets are relabeled, so
// the Other share never grows. Neither input slice is modified. Cluster ids
// continue after the highest cluster_<id> already present, so ids from
// different rounds never collide.
func (r *Reducer) Reduce(ctx context.Context, texts, drivers []string) (Result, error) {
	if len(texts) != len(drivers) {
		return Result{}, fmt.Errorf("reduce: %d texts but %d drivers", len(texts), len(drivers))
	}
	res := Result{
		Drivers:   append([]string(nil), drivers...),
		Clustered: make([]bool, len(drivers)),
	}
	total := len(drivers)
	nextID := 0
	for _, d := range drivers {
		if id, ok := clusterID(d); ok && id >= nextID {
			nextID = id + 1
		}
	}

	for round := 1; ; round++ {
		// Scanning
		idx := otherIndices(res.Drivers)
		if len(idx) == 0 {
			res.Stop = StopNoOther
			return res, nil
		}
		before := float64(len(idx)) / float64(total)
		if before <= r.cfg.TargetOther {
			res.Stop = StopTarget
			return res, nil
		}
		if round > r.cfg.MaxRounds {
			res.Stop = StopMaxRounds
			return res, nil
		}
		if len(idx) < 2 {
			res.Stop = StopTooFew
			return res, nil
		}

		// Clustering
		subset := make([]string, len(idx))
		for i, j := range idx {
			subset[i] = texts[j]
		}
		_, emb, err := r.feat.Featurize(subset)
		if err != nil {
			r.log.Info().Err(err).Int("round", round).Int("subset", len(idx)).Msg("stopping: cannot featurize Other subset")
			res.Stop = StopFeaturize
			return res, nil
		}
		asg, err := r.engine.Cluster(ctx, emb, r.cfg.MinClusterSize, r.cfg.FallbackK)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil || errors.Is(err, context.Canceled) {
				return res, fmt.Errorf("reduce round %d: %w", round, err)
			}
			if errors.Is(err, internalerr.ErrNoClusters) {
				r.log.Info().Int("round", round).Int("subset", len(idx)).Msg("stopping: round found no clusters")
				res.Stop = StopNoProgress
				return res, nil
			}
			r.log.Warn().Err(err).Int("round", round).Msg("stopping: clustering failed")
			res.Stop = StopCluster
			return res, nil
		}

		// Relabeling
		maxLabel, noise := -1, 0
		for i, l := range asg.Labels {
			if l == Noise {
				noise++
				continue
			}
			res.Drivers[idx[i]] = ClusterPrefix + strconv.Itoa(nextID+l)
			res.Clustered[idx[i]] = true
			maxLabel = max(maxLabel, l)
		}
		nextID += maxLabel + 1

		after := float64(noise) / float64(total)
		stats := RoundStats{
			Round:       round,
			Subset:      len(idx),
			Algorithm:   asg.Algorithm,
			Clusters:    asg.Clusters(),
			Noise:       noise,
			OtherBefore: before,
			OtherAfter:  after,
		}
		res.Rounds = append(res.Rounds, stats)
		r.metrics.Round(string(asg.Algorithm), stats.Clusters, after)
		r.log.Info().
			Int("round", round).
			Int("subset", stats.Subset).
			Str("algorithm", string(stats.Algorithm)).
			Int("clusters", stats.Clusters).
			Float64("other_before", before).
			Float64("other_after", after).
			Msg("reduction round complete")
	}
}

func otherIndices(drivers []string) []int {
	var idx []int
	for i, d := range drivers {
		if d == rules.Other {
			idx = append(idx, i)
		}
	}
	return idx
}

// SortedClusterDrivers returns the cluster drivers in members by numeric id.
func SortedClusterDrivers(members map[string][]int) []string {
	out := make([]string, 0, len(members))
	for d := range members {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		a, _ := clusterID(out[i])
		b, _ := clusterID(out[j])
		return a < b
	})
	return out
}
