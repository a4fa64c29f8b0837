// Package rules is the first classification pass: an ordered list of keyword
// rules matched as literal substrings of the normalized ticket text.
package rules

import (
	"context"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/cognicore/calldriver/pkg/calldriver/textnorm"
)

// Other is the driver assigned to tickets no rule or cluster claims.
const Other = "Other"

// Rule names a driver and the keywords that select it.
type Rule struct {
	Name     string   `yaml:"name" json:"name"`
	Keywords []string `yaml:"keywords" json:"keywords"`
}

// Matches reports whether any keyword occurs in text. Matching is a plain
// substring test, so "ap" also matches "map".
func (r Rule) Matches(text string) bool {
	for _, k := range r.Keywords {
		if k == "" {
			continue
		}
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// Classify returns the name of the first rule matching text, or Other.
// text is normalized before matching, which is a no-op for text that already
// went through textnorm.
func Classify(text string, rs []Rule) string {
	t := textnorm.Normalize(text)
	if t == "" {
		return Other
	}
	for _, r := range rs {
		if r.Matches(t) {
			return r.Name
		}
	}
	return Other
}

// ClassifyAll classifies every text, sharding the work over workers
// goroutines. The result is index-aligned with texts.
func ClassifyAll(ctx context.Context, texts []string, rs []Rule, workers int) ([]string, error) {
	out := make([]string, len(texts))
	if len(texts) == 0 {
		return out, nil
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(texts) {
		workers = len(texts)
	}
	chunk := (len(texts) + workers - 1) / workers

	g, ctx := errgroup.WithContext(ctx)
	for start := 0; start < len(texts); start += chunk {
		start, end := start, min(start+chunk, len(texts))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if i%256 == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				out[i] = Classify(texts[i], rs)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// DriverCount is the number of tickets carrying one driver.
type DriverCount struct {
	Driver  string `json:"driver"`
	Tickets int    `json:"tickets"`
}

// Counts groups labels by driver, most frequent first. Equal counts are
// ordered by driver name.
func Counts(labels []string) []DriverCount {
	byDriver := make(map[string]int)
	for _, l := range labels {
		byDriver[l]++
	}
	out := make([]DriverCount, 0, len(byDriver))
	for d, n := range byDriver {
		out = append(out, DriverCount{Driver: d, Tickets: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Tickets != out[j].Tickets {
			return out[i].Tickets > out[j].Tickets
		}
		return out[i].Driver < out[j].Driver
	})
	return out
}

// OtherFraction is the share of labels equal to Other; 0 for no labels.
func OtherFraction(labels []string) float64 {
	if len(labels) == 0 {
		return 0
	}
	n := 0
	for _, l := range labels {
		if l == Other {
			n++
		}
	}
	return float64(n) / float64(len(labels))
}
