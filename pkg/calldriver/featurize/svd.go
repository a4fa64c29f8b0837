package featurize

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/cognicore/calldriver/pkg/calldriver/internalerr"
)

// Reduce projects the term matrix onto its top k singular directions using
// a randomized range finder (Halko et al.) followed by an exact SVD of the
// small projected matrix. The result is U·Σ, one row per document. k is
// capped at min(documents, terms). Signs are fixed so the largest-magnitude
// entry of each component is positive, which keeps output stable.
func Reduce(tm *TermMatrix, k, oversample, powerIters int, seed uint64) (*mat.Dense, error) {
	n, v := tm.Dims()
	limit := min(n, v)
	if limit == 0 {
		return nil, fmt.Errorf("featurize: reduce %dx%d: %w", n, v, internalerr.ErrEmptyVocabulary)
	}
	k = max(1, min(k, limit))
	l := min(k+max(oversample, 0), limit)

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	omega := mat.NewDense(v, l, nil)
	for i := 0; i < v; i++ {
		for j := 0; j < l; j++ {
			omega.Set(i, j, rng.NormFloat64())
		}
	}

	q := orthonormalize(mulSparse(tm, omega))
	for it := 0; it < powerIters; it++ {
		z := orthonormalize(mulSparseT(tm, q))
		q = orthonormalize(mulSparse(tm, z))
	}

	// B = Qᵀ X, computed as (Xᵀ Q)ᵀ.
	b := mat.DenseCopyOf(mulSparseT(tm, q).T())

	var svd mat.SVD
	if ok := svd.Factorize(b, mat.SVDThin); !ok {
		return nil, fmt.Errorf("featurize: svd did not converge")
	}
	var ub mat.Dense
	svd.UTo(&ub)
	sigma := svd.Values(nil)

	var u mat.Dense
	u.Mul(q, ub.Slice(0, l, 0, k))

	out := mat.NewDense(n, k, nil)
	for j := 0; j < k; j++ {
		sign := 1.0
		var best float64
		for i := 0; i < n; i++ {
			if a := math.Abs(u.At(i, j)); a > best {
				best = a
				if u.At(i, j) < 0 {
					sign = -1
				} else {
					sign = 1
				}
			}
		}
		for i := 0; i < n; i++ {
			out.Set(i, j, sign*u.At(i, j)*sigma[j])
		}
	}
	return out, nil
}

// mulSparse returns X·M for sparse X (n×v) and dense M (v×c).
func mulSparse(tm *TermMatrix, m *mat.Dense) *mat.Dense {
	_, c := m.Dims()
	out := mat.NewDense(len(tm.Rows), c, nil)
	for i, row := range tm.Rows {
		for _, cell := range row {
			for j := 0; j < c; j++ {
				out.Set(i, j, out.At(i, j)+cell.Val*m.At(cell.Col, j))
			}
		}
	}
	return out
}

// mulSparseT returns Xᵀ·M for sparse X (n×v) and dense M (n×c).
func mulSparseT(tm *TermMatrix, m *mat.Dense) *mat.Dense {
	_, c := m.Dims()
	out := mat.NewDense(len(tm.Vocab), c, nil)
	for i, row := range tm.Rows {
		for _, cell := range row {
			for j := 0; j < c; j++ {
				out.Set(cell.Col, j, out.At(cell.Col, j)+cell.Val*m.At(i, j))
			}
		}
	}
	return out
}

// orthonormalize runs modified Gram-Schmidt twice over the columns of a.
// Columns that vanish (rank deficiency) are left as zero.
func orthonormalize(a *mat.Dense) *mat.Dense {
	r, c := a.Dims()
	q := mat.DenseCopyOf(a)
	for pass := 0; pass < 2; pass++ {
		for j := 0; j < c; j++ {
			col := q.ColView(j).(*mat.VecDense)
			for p := 0; p < j; p++ {
				prev := q.ColView(p)
				d := mat.Dot(col, prev)
				col.AddScaledVec(col, -d, prev)
			}
			norm := mat.Norm(col, 2)
			if norm < 1e-12 {
				for i := 0; i < r; i++ {
					q.Set(i, j, 0)
				}
				continue
			}
			col.ScaleVec(1/norm, col)
		}
	}
	return q
}
