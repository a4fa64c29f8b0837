package featurize

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/cognicore/calldriver/pkg/calldriver/internalerr"
)

func corpus() []string {
	var texts []string
	for i := 0; i < 10; i++ {
		texts = append(texts,
			fmt.Sprintf("VPN tunnel drops every %d minutes on globalprotect", i),
			fmt.Sprintf("Printer jam on floor %d, toner empty", i),
			fmt.Sprintf("Outlook mailbox full, cannot send email %d", i),
		)
	}
	return texts
}

func TestAnalyzeDropsStopwordsAndBuildsBigrams(t *testing.T) {
	f := New(DefaultConfig(), nil)
	got := f.Analyze("Please reset the VPN token, ticket attached")
	assert.Equal(t, []string{"reset", "vpn", "token", "attached", "reset vpn", "vpn token", "token attached"}, got)
}

func TestTermMatrixPruning(t *testing.T) {
	f := New(DefaultConfig(), nil)
	tm, err := f.TermMatrix([]string{
		"vpn tunnel down",
		"vpn tunnel flapping",
		"printer offline",
		"printer toner low",
		"vpn printer unique",
	})
	require.NoError(t, err)

	assert.Contains(t, tm.Vocab, "vpn")
	assert.Contains(t, tm.Vocab, "printer")
	assert.Contains(t, tm.Vocab, "vpn tunnel")
	assert.NotContains(t, tm.Vocab, "unique", "df=1 terms are pruned")
	assert.NotContains(t, tm.Vocab, "down")

	n, v := tm.Dims()
	assert.Equal(t, 5, n)
	assert.Equal(t, len(tm.Vocab), v)

	for i, row := range tm.Rows {
		var norm float64
		for _, c := range row {
			norm += c.Val * c.Val
		}
		if len(row) > 0 {
			assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-9, "row %d", i)
		}
	}
}

func TestTermMatrixMaxDF(t *testing.T) {
	f := New(DefaultConfig(), nil)
	tm, err := f.TermMatrix([]string{"laptop vpn", "laptop vpn", "laptop printer", "laptop printer"})
	require.NoError(t, err)
	assert.NotContains(t, tm.Vocab, "laptop", "term in every document exceeds max df")
	assert.Equal(t, []string{"laptop printer", "laptop vpn", "printer", "vpn"}, tm.Vocab)
}

func TestTermMatrixMaxFeatures(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxFeatures = 2
	f := New(cfg, nil)
	tm, err := f.TermMatrix([]string{"vpn vpn printer", "vpn printer printer", "mail other", "mail thing"})
	require.NoError(t, err)
	assert.Equal(t, []string{"printer", "vpn"}, tm.Vocab)
}

func TestEmptyVocabulary(t *testing.T) {
	f := New(DefaultConfig(), nil)
	_, _, err := f.Featurize([]string{"alpha", "beta", "gamma"})
	assert.True(t, errors.Is(err, internalerr.ErrEmptyVocabulary))

	_, _, err = f.Featurize(nil)
	assert.ErrorIs(t, err, internalerr.ErrEmptyVocabulary)
}

func TestEmbeddingDims(t *testing.T) {
	assert.Equal(t, 2, EmbeddingDims(3, 100, 0.2))
	assert.Equal(t, 2, EmbeddingDims(9, 100, 0.2))
	assert.Equal(t, 4, EmbeddingDims(20, 100, 0.2))
	assert.Equal(t, 100, EmbeddingDims(30000, 100, 0.2))
}

func TestFeaturizeShapeAndDeterminism(t *testing.T) {
	f := New(DefaultConfig(), nil)
	texts := corpus()

	tm1, emb1, err := f.Featurize(texts)
	require.NoError(t, err)
	tm2, emb2, err := f.Featurize(texts)
	require.NoError(t, err)

	assert.Equal(t, tm1.Vocab, tm2.Vocab)
	r, c := emb1.Dims()
	assert.Equal(t, len(texts), r)
	assert.Equal(t, min(EmbeddingDims(len(tm1.Vocab), 100, 0.2), len(texts)), c)
	assert.True(t, mat.Equal(emb1, emb2), "same input and seed must give the same embedding")
}

func TestReduceSeparatesTopics(t *testing.T) {
	f := New(DefaultConfig(), nil)
	texts := corpus()
	_, emb, err := f.Featurize(texts)
	require.NoError(t, err)

	dist := func(a, b int) float64 {
		var s float64
		_, c := emb.Dims()
		for j := 0; j < c; j++ {
			d := emb.At(a, j) - emb.At(b, j)
			s += d * d
		}
		return math.Sqrt(s)
	}
	// Rows 0 and 3 are both VPN tickets, row 1 is a printer ticket.
	assert.Less(t, dist(0, 3), dist(0, 1))
}

func TestReduceRecoversExactLowRank(t *testing.T) {
	tm := &TermMatrix{
		Vocab: []string{"a", "b", "c"},
		Rows: [][]Cell{
			{{Col: 0, Val: 1}},
			{{Col: 0, Val: 2}},
			{{Col: 1, Val: 3}},
		},
	}
	emb, err := Reduce(tm, 2, 10, 2, 7)
	require.NoError(t, err)
	r, c := emb.Dims()
	require.Equal(t, 3, r)
	require.Equal(t, 2, c)

	// Row norms are preserved when the rank fits in k.
	for i, want := range []float64{1, 2, 3} {
		norm := math.Hypot(emb.At(i, 0), emb.At(i, 1))
		assert.InDelta(t, want, norm, 1e-6, "row %d", i)
	}
}

func TestFeaturizeBitIdenticalAcrossCalls(t *testing.T) {
	var texts []string
	for i := 0; i < 30; i++ {
		texts = append(texts,
			"badge reader at front door rejects access card after firmware update on controller",
			"badge reader at front door rejects access card after firmware update on controller",
			fmt.Sprintf("conference room display shows no signal from hdmi dongle in room %d", i%3),
		)
	}
	f := New(DefaultConfig(), nil)
	tm0, emb0, err := f.Featurize(texts)
	require.NoError(t, err)

	for run := 0; run < 20; run++ {
		tm, emb, err := f.Featurize(texts)
		require.NoError(t, err)
		require.Equal(t, tm0.Vocab, tm.Vocab)
		for i := range tm0.Rows {
			require.Equal(t, tm0.Rows[i], tm.Rows[i], "run %d row %d", run, i)
		}
		require.True(t, mat.Equal(emb0, emb), "run %d embedding differs", run)
	}
}
