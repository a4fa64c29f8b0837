package cluster

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/cognicore/calldriver/pkg/calldriver/internalerr"
)

// KMeans is Lloyd's algorithm with k-means++ seeding. Every point gets a
// label in [0, k).
type KMeans struct {
	Seed      uint64
	MaxIter   int
	Tolerance float64
}

// NewKMeans returns a KMeans with production defaults.
func NewKMeans(seed uint64) *KMeans {
	return &KMeans{Seed: seed, MaxIter: 300, Tolerance: 1e-4}
}

// Algorithm implements Clusterer.
func (k *KMeans) Algorithm() Algorithm { return AlgorithmPartition }

// Cluster implements Clusterer. p.K is clamped to [1, rows].
func (k *KMeans) Cluster(ctx context.Context, x mat.Matrix, p Params) ([]int, error) {
	n, d := x.Dims()
	if n == 0 {
		return nil, fmt.Errorf("kmeans: %w", internalerr.ErrTooFewPoints)
	}
	nk := max(1, min(p.K, n))
	maxIter := k.MaxIter
	if maxIter <= 0 {
		maxIter = 300
	}

	rng := rand.New(rand.NewPCG(k.Seed, k.Seed^0xda3e39cb94b95bdb))
	centers := seedPlusPlus(x, nk, rng)
	labels := make([]int, n)
	tol := k.Tolerance * meanVariance(x)

	for iter := 0; iter < maxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			labels[i] = nearest(x, i, centers)
		}

		next := mat.NewDense(nk, d, nil)
		counts := make([]int, nk)
		for i := 0; i < n; i++ {
			c := labels[i]
			counts[c]++
			for j := 0; j < d; j++ {
				next.Set(c, j, next.At(c, j)+x.At(i, j))
			}
		}
		for c := 0; c < nk; c++ {
			if counts[c] == 0 {
				// Re-seed an empty cluster with the point farthest from its center.
				far := farthestPoint(x, labels, centers)
				labels[far] = c
				for j := 0; j < d; j++ {
					next.Set(c, j, x.At(far, j))
				}
				continue
			}
			for j := 0; j < d; j++ {
				next.Set(c, j, next.At(c, j)/float64(counts[c]))
			}
		}

		var shift float64
		for c := 0; c < nk; c++ {
			for j := 0; j < d; j++ {
				v := next.At(c, j) - centers.At(c, j)
				shift += v * v
			}
		}
		centers = next
		if shift <= tol {
			break
		}
	}
	for i := 0; i < n; i++ {
		labels[i] = nearest(x, i, centers)
	}
	return labels, nil
}

func seedPlusPlus(x mat.Matrix, k int, rng *rand.Rand) *mat.Dense {
	n, d := x.Dims()
	centers := mat.NewDense(k, d, nil)
	first := rng.IntN(n)
	for j := 0; j < d; j++ {
		centers.Set(0, j, x.At(first, j))
	}

	dist := make([]float64, n)
	for i := range dist {
		dist[i] = rowCenterSq(x, i, centers, 0)
	}
	for c := 1; c < k; c++ {
		var total float64
		for _, v := range dist {
			total += v
		}
		pick := 0
		if total > 0 {
			r := rng.Float64() * total
			for i, v := range dist {
				r -= v
				if r <= 0 {
					pick = i
					break
				}
				pick = i
			}
		} else {
			pick = rng.IntN(n)
		}
		for j := 0; j < d; j++ {
			centers.Set(c, j, x.At(pick, j))
		}
		for i := range dist {
			dist[i] = math.Min(dist[i], rowCenterSq(x, i, centers, c))
		}
	}
	return centers
}

func rowCenterSq(x mat.Matrix, i int, centers *mat.Dense, c int) float64 {
	_, d := x.Dims()
	var s float64
	for j := 0; j < d; j++ {
		v := x.At(i, j) - centers.At(c, j)
		s += v * v
	}
	return s
}

func nearest(x mat.Matrix, i int, centers *mat.Dense) int {
	k, _ := centers.Dims()
	best, bestD := 0, math.Inf(1)
	for c := 0; c < k; c++ {
		if dd := rowCenterSq(x, i, centers, c); dd < bestD {
			best, bestD = c, dd
		}
	}
	return best
}

func farthestPoint(x mat.Matrix, labels []int, centers *mat.Dense) int {
	far, farD := 0, -1.0
	for i, c := range labels {
		if dd := rowCenterSq(x, i, centers, c); dd > farD {
			far, farD = i, dd
		}
	}
	return far
}

func meanVariance(x mat.Matrix) float64 {
	n, d := x.Dims()
	if n == 0 || d == 0 {
		return 0
	}
	var total float64
	for j := 0; j < d; j++ {
		var mean float64
		for i := 0; i < n; i++ {
			mean += x.At(i, j)
		}
		mean /= float64(n)
		for i := 0; i < n; i++ {
			v := x.At(i, j) - mean
			total += v * v
		}
	}
	return total / float64(n*d)
}
