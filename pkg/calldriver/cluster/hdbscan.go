package cluster

import (
	"context"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/cognicore/calldriver/pkg/calldriver/internalerr"
)

// HDBSCAN is hierarchical density clustering with excess-of-mass cluster
// selection. Points outside every selected cluster are labeled Noise. The
// root cluster is never selected, so data without density structure comes
// back as all noise.
type HDBSCAN struct {
	// MinSamples sets the core-distance neighbour count (counting the point
	// itself). Zero means MinClusterSize.
	MinSamples int
}

// NewHDBSCAN returns an HDBSCAN with MinSamples tied to the cluster size.
func NewHDBSCAN() *HDBSCAN { return &HDBSCAN{} }

// Algorithm implements Clusterer.
func (h *HDBSCAN) Algorithm() Algorithm { return AlgorithmDensity }

type sltNode struct {
	left, right int
	dist        float64
	size        int
}

type condensed struct {
	parent    int
	birth     float64
	size      int
	children  []int
	stability float64
}

const minDist = 1e-10

// Cluster implements Clusterer.
func (h *HDBSCAN) Cluster(ctx context.Context, x mat.Matrix, p Params) ([]int, error) {
	n, _ := x.Dims()
	if n < 2 {
		return nil, fmt.Errorf("hdbscan: %w", internalerr.ErrTooFewPoints)
	}
	mcs := p.MinClusterSize
	if mcs < 2 {
		mcs = 2
	}
	labels := make([]int, n)
	for i := range labels {
		labels[i] = Noise
	}
	if n < mcs {
		return labels, nil
	}
	minSamples := h.MinSamples
	if minSamples <= 0 {
		minSamples = mcs
	}
	minSamples = min(minSamples, n)

	core, err := coreDistances(ctx, x, minSamples)
	if err != nil {
		return nil, err
	}
	edges, err := mutualReachabilityMST(ctx, x, core)
	if err != nil {
		return nil, err
	}
	slt := singleLinkage(n, edges)
	clusters, pointCluster := condense(n, slt, mcs)
	selected := selectEOM(clusters)

	ids := make([]int, 0, len(selected))
	for c := range selected {
		ids = append(ids, c)
	}
	sort.Ints(ids)
	labelOf := make(map[int]int, len(ids))
	for i, c := range ids {
		labelOf[c] = i
	}
	for pt, c := range pointCluster {
		for ; c >= 0; c = clusters[c].parent {
			if l, ok := labelOf[c]; ok {
				labels[pt] = l
				break
			}
		}
	}
	return labels, nil
}

// coreDistances returns, for every point, the distance to its k-th nearest
// neighbour where the point itself is the first.
func coreDistances(ctx context.Context, x mat.Matrix, k int) ([]float64, error) {
	n, _ := x.Dims()
	core := make([]float64, n)
	row := make([]float64, n)
	for i := 0; i < n; i++ {
		if i%64 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		for j := 0; j < n; j++ {
			row[j] = sqDist(x, i, j)
		}
		sorted := append([]float64(nil), row...)
		sort.Float64s(sorted)
		core[i] = math.Sqrt(sorted[k-1])
	}
	return core, nil
}

type edge struct {
	a, b int
	w    float64
}

// mutualReachabilityMST runs Prim's algorithm over the dense mutual
// reachability graph.
func mutualReachabilityMST(ctx context.Context, x mat.Matrix, core []float64) ([]edge, error) {
	n := len(core)
	inTree := make([]bool, n)
	best := make([]float64, n)
	from := make([]int, n)
	for i := range best {
		best[i] = math.Inf(1)
		from[i] = -1
	}
	edges := make([]edge, 0, n-1)
	cur := 0
	inTree[0] = true
	for len(edges) < n-1 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, nextW := -1, math.Inf(1)
		for j := 0; j < n; j++ {
			if inTree[j] {
				continue
			}
			d := math.Max(math.Sqrt(sqDist(x, cur, j)), math.Max(core[cur], core[j]))
			if d < best[j] {
				best[j], from[j] = d, cur
			}
			if best[j] < nextW {
				next, nextW = j, best[j]
			}
		}
		edges = append(edges, edge{a: from[next], b: next, w: nextW})
		inTree[next] = true
		cur = next
	}
	return edges, nil
}

// singleLinkage merges MST edges in weight order. Nodes 0..n-1 are points;
// merge i creates node n+i.
func singleLinkage(n int, edges []edge) []sltNode {
	sort.SliceStable(edges, func(i, j int) bool { return edges[i].w < edges[j].w })
	parent := make([]int, 2*n-1)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	nodes := make([]sltNode, 2*n-1)
	for i := 0; i < n; i++ {
		nodes[i] = sltNode{left: -1, right: -1, size: 1}
	}
	for i, e := range edges {
		ra, rb := find(e.a), find(e.b)
		id := n + i
		nodes[id] = sltNode{left: ra, right: rb, dist: e.w, size: nodes[ra].size + nodes[rb].size}
		parent[ra], parent[rb] = id, id
	}
	return nodes
}

func leaves(nodes []sltNode, root int) []int {
	var out []int
	stack := []int{root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if nodes[id].left < 0 {
			out = append(out, id)
			continue
		}
		stack = append(stack, nodes[id].right, nodes[id].left)
	}
	return out
}

// condense walks the single-linkage tree top down, keeping only splits where
// both sides have at least mcs points. It returns the condensed clusters
// (index 0 is the root) and, per point, the cluster it fell out of.
func condense(n int, nodes []sltNode, mcs int) ([]condensed, []int) {
	root := len(nodes) - 1
	clusters := []condensed{{parent: -1, birth: 0, size: n}}
	pointCluster := make([]int, n)

	fallOut := func(node, c int, lambda float64) {
		for _, pt := range leaves(nodes, node) {
			pointCluster[pt] = c
			clusters[c].stability += lambda - clusters[c].birth
		}
	}

	type item struct{ node, cluster int }
	stack := []item{{root, 0}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		nd := nodes[it.node]
		if nd.left < 0 {
			// A lone point still inside a cluster leaves at the cluster's
			// deepest density.
			pointCluster[it.node] = it.cluster
			continue
		}
		lambda := 1 / math.Max(nd.dist, minDist)
		l, r := nodes[nd.left], nodes[nd.right]
		lBig, rBig := l.size >= mcs, r.size >= mcs
		switch {
		case lBig && rBig:
			clusters[it.cluster].stability += (lambda - clusters[it.cluster].birth) * float64(nd.size)
			for _, child := range []int{nd.left, nd.right} {
				id := len(clusters)
				clusters = append(clusters, condensed{parent: it.cluster, birth: lambda, size: nodes[child].size})
				clusters[it.cluster].children = append(clusters[it.cluster].children, id)
				stack = append(stack, item{child, id})
			}
		case lBig:
			fallOut(nd.right, it.cluster, lambda)
			stack = append(stack, item{nd.left, it.cluster})
		case rBig:
			fallOut(nd.left, it.cluster, lambda)
			stack = append(stack, item{nd.right, it.cluster})
		default:
			fallOut(it.node, it.cluster, lambda)
		}
	}
	return clusters, pointCluster
}

// selectEOM picks the clusters maximizing total stability, never the root.
func selectEOM(clusters []condensed) map[int]struct{} {
	selected := make(map[int]struct{})
	score := make([]float64, len(clusters))
	for c := len(clusters) - 1; c >= 1; c-- {
		cl := clusters[c]
		if len(cl.children) == 0 {
			selected[c] = struct{}{}
			score[c] = cl.stability
			continue
		}
		var childSum float64
		for _, ch := range cl.children {
			childSum += score[ch]
		}
		if cl.stability > childSum {
			score[c] = cl.stability
			selected[c] = struct{}{}
			unselectBelow(clusters, c, selected)
		} else {
			score[c] = childSum
		}
	}
	return selected
}

func unselectBelow(clusters []condensed, c int, selected map[int]struct{}) {
	stack := append([]int(nil), clusters[c].children...)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		delete(selected, id)
		stack = append(stack, clusters[id].children...)
	}
}
