// Package featurize turns ticket texts into a TF-IDF term matrix over
// unigrams and bigrams, then reduces it to a small dense embedding with a
// seeded randomized truncated SVD.
package featurize

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/cognicore/calldriver/pkg/calldriver/internalerr"
	"github.com/cognicore/calldriver/pkg/calldriver/stoplist"
	"github.com/cognicore/calldriver/pkg/calldriver/textnorm"
)

// Config controls vocabulary pruning and the embedding size.
type Config struct {
	MinDF       int     // minimum documents a term must occur in
	MaxDFRatio  float64 // maximum share of documents a term may occur in
	MaxFeatures int     // vocabulary cap, most frequent terms kept
	MaxNGram    int     // 1 = unigrams, 2 = unigrams and bigrams
	MaxDims     int     // embedding dimensionality cap
	DimRatio    float64 // embedding dims as a share of the vocabulary
	Oversample  int     // extra random projections for the SVD range finder
	PowerIters  int
	Seed        uint64
}

// DefaultConfig mirrors the production vectorizer settings.
func DefaultConfig() Config {
	return Config{
		MinDF:       2,
		MaxDFRatio:  0.85,
		MaxFeatures: 30000,
		MaxNGram:    2,
		MaxDims:     100,
		DimRatio:    0.2,
		Oversample:  10,
		PowerIters:  5,
		Seed:        42,
	}
}

// Cell is a non-zero entry of a sparse row.
type Cell struct {
	Col int
	Val float64
}

// TermMatrix is a row-sparse document × term matrix.
type TermMatrix struct {
	Vocab []string
	Rows  [][]Cell
}

// Dims returns (documents, terms).
func (m *TermMatrix) Dims() (int, int) { return len(m.Rows), len(m.Vocab) }

// ColumnSums adds each term's weight over all documents.
func (m *TermMatrix) ColumnSums() []float64 {
	sums := make([]float64, len(m.Vocab))
	for _, row := range m.Rows {
		for _, c := range row {
			sums[c.Col] += c.Val
		}
	}
	return sums
}

// Featurizer builds term matrices and embeddings. It holds no state between
// calls and is safe for concurrent use.
type Featurizer struct {
	cfg   Config
	stops *stoplist.Set
}

// New returns a Featurizer. A nil stop set means stoplist.Domain().
func New(cfg Config, stops *stoplist.Set) *Featurizer {
	def := DefaultConfig()
	if cfg.MinDF <= 0 {
		cfg.MinDF = def.MinDF
	}
	if cfg.MaxDFRatio <= 0 || cfg.MaxDFRatio > 1 {
		cfg.MaxDFRatio = def.MaxDFRatio
	}
	if cfg.MaxFeatures <= 0 {
		cfg.MaxFeatures = def.MaxFeatures
	}
	if cfg.MaxNGram <= 0 {
		cfg.MaxNGram = def.MaxNGram
	}
	if cfg.MaxDims <= 0 {
		cfg.MaxDims = def.MaxDims
	}
	if cfg.DimRatio <= 0 {
		cfg.DimRatio = def.DimRatio
	}
	if cfg.Oversample <= 0 {
		cfg.Oversample = def.Oversample
	}
	if cfg.PowerIters < 0 {
		cfg.PowerIters = def.PowerIters
	}
	if stops == nil {
		stops = stoplist.Domain()
	}
	return &Featurizer{cfg: cfg, stops: stops}
}

// Config returns the effective configuration.
func (f *Featurizer) Config() Config { return f.cfg }

// Featurize builds the TF-IDF matrix for texts and its reduced embedding.
func (f *Featurizer) Featurize(texts []string) (*TermMatrix, *mat.Dense, error) {
	tm, err := f.TermMatrix(texts)
	if err != nil {
		return nil, nil, err
	}
	emb, err := Reduce(tm, EmbeddingDims(len(tm.Vocab), f.cfg.MaxDims, f.cfg.DimRatio), f.cfg.Oversample, f.cfg.PowerIters, f.cfg.Seed)
	if err != nil {
		return nil, nil, err
	}
	return tm, emb, nil
}

// Analyze returns the n-gram terms of one text after normalization and
// stopword removal.
func (f *Featurizer) Analyze(text string) []string {
	return analyze(text, f.stops, f.cfg.MaxNGram)
}

func analyze(text string, stops *stoplist.Set, maxN int) []string {
	words := textnorm.Tokens(text, 2, stops)
	terms := make([]string, 0, len(words)*maxN)
	terms = append(terms, words...)
	for n := 2; n <= maxN; n++ {
		for i := 0; i+n <= len(words); i++ {
			terms = append(terms, strings.Join(words[i:i+n], " "))
		}
	}
	return terms
}

// TermMatrix builds the pruned, L2-normalized TF-IDF matrix.
func (f *Featurizer) TermMatrix(texts []string) (*TermMatrix, error) {
	return buildTFIDF(texts, f.stops, f.cfg.MaxNGram, f.cfg.MinDF, f.cfg.MaxDFRatio, f.cfg.MaxFeatures)
}

func buildTFIDF(texts []string, stops *stoplist.Set, maxN, minDF int, maxDFRatio float64, maxFeatures int) (*TermMatrix, error) {
	n := len(texts)
	if n == 0 {
		return nil, fmt.Errorf("featurize: no documents: %w", internalerr.ErrEmptyVocabulary)
	}

	docs := make([]map[string]int, n)
	df := make(map[string]int)
	tf := make(map[string]int)
	for i, t := range texts {
		counts := make(map[string]int)
		for _, term := range analyze(t, stops, maxN) {
			counts[term]++
		}
		for term, c := range counts {
			df[term]++
			tf[term] += c
		}
		docs[i] = counts
	}

	maxDocs := maxDFRatio * float64(n)
	kept := make([]string, 0, len(df))
	for term, d := range df {
		if d < minDF || float64(d) > maxDocs {
			continue
		}
		kept = append(kept, term)
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("featurize: %d documents: %w", n, internalerr.ErrEmptyVocabulary)
	}
	if len(kept) > maxFeatures {
		sort.Slice(kept, func(i, j int) bool {
			if tf[kept[i]] != tf[kept[j]] {
				return tf[kept[i]] > tf[kept[j]]
			}
			return kept[i] < kept[j]
		})
		kept = kept[:maxFeatures]
	}
	sort.Strings(kept)

	index := make(map[string]int, len(kept))
	idf := make([]float64, len(kept))
	for i, term := range kept {
		index[term] = i
		idf[i] = math.Log(float64(1+n)/float64(1+df[term])) + 1
	}

	tm := &TermMatrix{Vocab: kept, Rows: make([][]Cell, n)}
	for i, counts := range docs {
		row := make([]Cell, 0, len(counts))
		for term, c := range counts {
			if col, ok := index[term]; ok {
				row = append(row, Cell{Col: col, Val: float64(c) * idf[col]})
			}
		}
		// Sum in column order so the norm is bit-identical across calls.
		sort.Slice(row, func(a, b int) bool { return row[a].Col < row[b].Col })
		var norm float64
		for _, c := range row {
			norm += c.Val * c.Val
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for j := range row {
				row[j].Val /= norm
			}
		}
		tm.Rows[i] = row
	}
	return tm, nil
}

// EmbeddingDims is min(maxDims, max(2, round(ratio·vocab))).
func EmbeddingDims(vocab, maxDims int, ratio float64) int {
	k := int(math.Round(ratio * float64(vocab)))
	if k < 2 {
		k = 2
	}
	if k > maxDims {
		k = maxDims
	}
	return k
}
