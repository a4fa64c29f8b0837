package cluster

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/cognicore/calldriver/pkg/calldriver/featurize"
	"github.com/cognicore/calldriver/pkg/calldriver/internalerr"
	"github.com/cognicore/calldriver/pkg/calldriver/rules"
)

type zeroFeaturizer struct{ calls []int }

func (z *zeroFeaturizer) Featurize(texts []string) (*featurize.TermMatrix, *mat.Dense, error) {
	z.calls = append(z.calls, len(texts))
	if len(texts) == 0 {
		return nil, nil, internalerr.ErrEmptyVocabulary
	}
	return &featurize.TermMatrix{}, mat.NewDense(len(texts), 2, nil), nil
}

// firstOnly clusters the first point of every subset and leaves the rest as noise.
func firstOnly(n int) []int {
	out := constLabels(Noise)(n)
	out[0] = 0
	return out
}

func allOther(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = rules.Other
	}
	return out
}

func TestReduceNoopBelowTarget(t *testing.T) {
	feat := &zeroFeaturizer{}
	r := NewReducer(ReduceConfig{TargetOther: 0.25, MaxRounds: 3}, feat, NewEngine(nil, nil, zerolog.Nop()), zerolog.Nop(), nil)

	drivers := []string{"VPN", "Printer", "Other", "VPN"}
	texts := []string{"a", "b", "c", "d"}
	res, err := r.Reduce(context.Background(), texts, drivers)
	require.NoError(t, err)
	assert.Equal(t, drivers, res.Drivers)
	assert.Empty(t, res.Rounds)
	assert.Equal(t, StopTarget, res.Stop)
	assert.Empty(t, feat.calls, "nothing is featurized when already under target")

	res, err = r.Reduce(context.Background(), []string{"a"}, []string{"VPN"})
	require.NoError(t, err)
	assert.Equal(t, StopNoOther, res.Stop)
}

func TestReduceRoundBudgetAndMonotonicity(t *testing.T) {
	feat := &zeroFeaturizer{}
	part := &stubClusterer{algo: AlgorithmPartition, labels: firstOnly}
	r := NewReducer(ReduceConfig{TargetOther: 0, MaxRounds: 3}, feat, NewEngine(nil, part, zerolog.Nop()), zerolog.Nop(), nil)

	drivers := allOther(10)
	res, err := r.Reduce(context.Background(), make([]string, 10), drivers)
	require.NoError(t, err)

	assert.Equal(t, StopMaxRounds, res.Stop)
	require.Len(t, res.Rounds, 3)
	assert.Equal(t, []int{10, 9, 8}, feat.calls, "only the Other subset is featurized")
	prev := 1.0
	for _, rs := range res.Rounds {
		assert.LessOrEqual(t, rs.OtherAfter, rs.OtherBefore)
		assert.LessOrEqual(t, rs.OtherBefore, prev)
		prev = rs.OtherAfter
	}
	assert.Equal(t, []string{"cluster_0", "cluster_1", "cluster_2"}, res.Drivers[:3])
	assert.Equal(t, allOther(10), drivers, "input drivers must not be modified")
	assert.InDelta(t, 0.7, rules.OtherFraction(res.Drivers), 1e-9)
}

func TestReduceContinuesExistingClusterIDs(t *testing.T) {
	part := &stubClusterer{algo: AlgorithmPartition, labels: constLabels(0)}
	r := NewReducer(ReduceConfig{TargetOther: 0, MaxRounds: 1}, &zeroFeaturizer{}, NewEngine(nil, part, zerolog.Nop()), zerolog.Nop(), nil)

	res, err := r.Reduce(context.Background(), make([]string, 3), []string{"cluster_4", "Other", "Other"})
	require.NoError(t, err)
	assert.Equal(t, []string{"cluster_4", "cluster_5", "cluster_5"}, res.Drivers)
	assert.Equal(t, map[string][]int{"cluster_5": {1, 2}}, res.Members(), "only relabeled tickets are members")
	assert.False(t, res.IsClustered(0))
	assert.True(t, res.IsClustered(1))
}

func TestReduceStopsWhenRoundFindsNothing(t *testing.T) {
	part := &stubClusterer{algo: AlgorithmPartition, labels: constLabels(Noise)}
	r := NewReducer(ReduceConfig{TargetOther: 0, MaxRounds: 3}, &zeroFeaturizer{}, NewEngine(nil, part, zerolog.Nop()), zerolog.Nop(), nil)

	res, err := r.Reduce(context.Background(), make([]string, 6), allOther(6))
	require.NoError(t, err)
	assert.Equal(t, StopNoProgress, res.Stop)
	assert.Equal(t, allOther(6), res.Drivers)
	assert.Empty(t, res.Members())
	assert.Equal(t, 1, part.calls)
}

func TestSortedClusterDriversNumericOrder(t *testing.T) {
	members := map[string][]int{"cluster_10": {0}, "cluster_2": {1}, "cluster_4": {2}}
	assert.Equal(t, []string{"cluster_2", "cluster_4", "cluster_10"}, SortedClusterDrivers(members))
}

func TestReduceStopsOnFeaturizeFailure(t *testing.T) {
	r := NewReducer(ReduceConfig{TargetOther: 0, MaxRounds: 3}, featurize.New(featurize.DefaultConfig(), nil), NewEngine(NewHDBSCAN(), nil, zerolog.Nop()), zerolog.Nop(), nil)
	drivers := allOther(3)
	res, err := r.Reduce(context.Background(), []string{"alpha", "beta", "gamma"}, drivers)
	require.NoError(t, err)
	assert.Equal(t, StopFeaturize, res.Stop)
	assert.Equal(t, drivers, res.Drivers)
}

func TestReduceTooFewPoints(t *testing.T) {
	r := NewReducer(ReduceConfig{TargetOther: 0}, &zeroFeaturizer{}, NewEngine(nil, nil, zerolog.Nop()), zerolog.Nop(), nil)
	res, err := r.Reduce(context.Background(), []string{"x", "y"}, []string{"Other", "VPN"})
	require.NoError(t, err)
	assert.Equal(t, StopTooFew, res.Stop)
}

func TestReduceLengthMismatch(t *testing.T) {
	r := NewReducer(DefaultReduceConfig(), &zeroFeaturizer{}, NewEngine(nil, nil, zerolog.Nop()), zerolog.Nop(), nil)
	_, err := r.Reduce(context.Background(), []string{"a"}, nil)
	assert.Error(t, err)
}

func otherTopics(n int) []string {
	topics := []string{
		"onedrive sync stuck on folder %s",
		"teams meeting audio drops for %s",
		"sap gui crashes in transaction %s",
		"badge reader rejects card at %s",
	}
	places := []string{"finance", "berlin", "warehouse", "payroll", "london", "lab"}
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf(topics[i%len(topics)], places[(i/len(topics))%len(places)])
	}
	return out
}

func TestReduceEndToEnd(t *testing.T) {
	const total, others = 1000, 200
	texts := make([]string, total)
	drivers := make([]string, total)
	ot := otherTopics(others)
	for i := 0; i < total; i++ {
		if i < others {
			texts[i], drivers[i] = ot[i], rules.Other
			continue
		}
		texts[i], drivers[i] = fmt.Sprintf("vpn tunnel down %d", i), "VPN"
	}

	feat := featurize.New(featurize.DefaultConfig(), nil)
	engine := NewEngine(NewHDBSCAN(), NewKMeans(42), zerolog.Nop())
	r := NewReducer(ReduceConfig{TargetOther: 0.12, MaxRounds: 3, MinClusterSize: 25, FallbackK: 12}, feat, engine, zerolog.Nop(), nil)

	res, err := r.Reduce(context.Background(), texts, drivers)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(res.Rounds), 3)
	assert.LessOrEqual(t, rules.OtherFraction(res.Drivers), 0.20)
	assert.NotEmpty(t, res.Members())
	for i := others; i < total; i++ {
		assert.Equal(t, "VPN", res.Drivers[i])
	}

	again, err := r.Reduce(context.Background(), texts, drivers)
	require.NoError(t, err)
	assert.Equal(t, res.Drivers, again.Drivers, "identical input gives identical assignments")
}
