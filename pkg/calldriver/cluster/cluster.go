// Package cluster partitions ticket embeddings. Density clustering (HDBSCAN)
// is preferred; a seeded k-means partition takes over when density
// clustering is not configured, fails, or labels every point as noise.
package cluster

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/cognicore/calldriver/pkg/calldriver/internalerr"
)

// Noise is the label of points outside every cluster.
const Noise = -1

// Algorithm names the method that produced an assignment.
type Algorithm string

const (
	AlgorithmDensity   Algorithm = "density"
	AlgorithmPartition Algorithm = "partition"
)

// Params carries the knobs both methods read.
type Params struct {
	MinClusterSize int
	K              int
}

// Clusterer assigns every row of x a cluster label (or Noise).
type Clusterer interface {
	Algorithm() Algorithm
	Cluster(ctx context.Context, x mat.Matrix, p Params) ([]int, error)
}

// Assignment is the outcome of one clustering call. It is only meaningful
// for the subset it was computed on.
type Assignment struct {
	Labels    []int
	Algorithm Algorithm
}

// Clusters returns the number of distinct non-noise labels.
func (a Assignment) Clusters() int {
	seen := make(map[int]struct{})
	for _, l := range a.Labels {
		if l != Noise {
			seen[l] = struct{}{}
		}
	}
	return len(seen)
}

// Engine runs the density method with the partition fallback.
type Engine struct {
	density   Clusterer
	partition Clusterer
	log       zerolog.Logger
}

// NewEngine wires the two strategies. density may be nil, in which case the
// partition method is used directly. A nil partition uses NewKMeans(42).
func NewEngine(density, partition Clusterer, log zerolog.Logger) *Engine {
	if partition == nil {
		partition = NewKMeans(42)
	}
	return &Engine{
		density:   density,
		partition: partition,
		log:       log.With().Str("component", "cluster").Logger(),
	}
}

// FallbackK is min(fallbackK, max(2, n/minClusterSize)), never above n.
func FallbackK(n, minClusterSize, fallbackK int) int {
	if minClusterSize <= 0 {
		minClusterSize = 1
	}
	k := max(2, n/minClusterSize)
	if fallbackK > 0 {
		k = min(k, fallbackK)
	}
	return max(1, min(k, n))
}

// Cluster labels the rows of x.
func (e *Engine) Cluster(ctx context.Context, x mat.Matrix, minClusterSize, fallbackK int) (Assignment, error) {
	n, _ := x.Dims()
	if n < 2 {
		return Assignment{}, fmt.Errorf("cluster %d points: %w", n, internalerr.ErrTooFewPoints)
	}

	if e.density != nil {
		labels, err := e.density.Cluster(ctx, x, Params{MinClusterSize: minClusterSize})
		switch {
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Assignment{}, ctxErr
			}
			e.log.Warn().Err(err).Int("points", n).Msg("density clustering failed, falling back to partition")
		case allNoise(labels):
			e.log.Debug().Int("points", n).Msg("density clustering found only noise, falling back to partition")
		default:
			return Assignment{Labels: labels, Algorithm: e.density.Algorithm()}, nil
		}
	}

	k := FallbackK(n, minClusterSize, fallbackK)
	labels, err := e.partition.Cluster(ctx, x, Params{MinClusterSize: minClusterSize, K: k})
	if err != nil {
		return Assignment{}, fmt.Errorf("partition clustering k=%d: %w", k, err)
	}
	if allNoise(labels) {
		return Assignment{}, fmt.Errorf("partition clustering k=%d: %w", k, internalerr.ErrNoClusters)
	}
	return Assignment{Labels: labels, Algorithm: e.partition.Algorithm()}, nil
}

func allNoise(labels []int) bool {
	for _, l := range labels {
		if l != Noise {
			return false
		}
	}
	return true
}

func sqDist(x mat.Matrix, i, j int) float64 {
	_, d := x.Dims()
	var s float64
	for c := 0; c < d; c++ {
		v := x.At(i, c) - x.At(j, c)
		s += v * v
	}
	return s
}
