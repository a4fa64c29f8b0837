// Package taxonomy scores ticket text against a synonym taxonomy. Phrases
// weigh more than single tokens, generic tokens weigh less, and a small set of
// bias rules settles the network-hardware vs access-provisioning conflict.
package taxonomy

import (
	"regexp"
	"strings"
)

// Other is returned when no entry scores above zero.
const Other = "Other"

const (
	phraseWeight = 3.0
	tokenWeight  = 1.0
	weakWeight   = 0.25

	networkBoost      = 5.0
	networkProvDemote = 2.0
	provisioningBoost = 4.0
)

// Entry is a named category with its synonyms (tokens or phrases).
type Entry struct {
	Name     string   `yaml:"name" json:"name"`
	Synonyms []string `yaml:"synonyms" json:"synonyms"`
}

// Score is one entry's final score for a text.
type Score struct {
	Name  string
	Score float64
}

var (
	networkAPPatterns = compileAll(
		`access point`, `\bap\b`, `wlc`, `wireless controller`,
		`ssid`, `wlan`, `thin ap`, `gigabitethernet`,
	)
	accessProvPatterns = compileAll(
		`add to group`, `request access`, `enablement`,
		`entitlement`, `grant access`, `provision`,
	)
	defaultWeak = []string{"access"}
)

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

type synonym struct {
	phrase string
	token  *regexp.Regexp
	weight float64
}

type compiledEntry struct {
	name         string
	synonyms     []synonym
	network      bool
	provisioning bool
}

// Matcher scores texts against a fixed, ordered set of entries. It is
// read-only after construction and safe for concurrent use.
type Matcher struct {
	entries []compiledEntry
}

// Option customizes a Matcher.
type Option func(*options)

type options struct {
	weak map[string]struct{}
}

// WithWeakTokens replaces the generic tokens that only earn a quarter point.
func WithWeakTokens(tokens ...string) Option {
	return func(o *options) {
		o.weak = make(map[string]struct{}, len(tokens))
		for _, t := range tokens {
			o.weak[strings.ToLower(t)] = struct{}{}
		}
	}
}

// NewMatcher compiles entries. Their order is the tie-break order: on equal
// scores the earlier entry wins.
func NewMatcher(entries []Entry, opts ...Option) *Matcher {
	o := options{}
	WithWeakTokens(defaultWeak...)(&o)
	for _, opt := range opts {
		opt(&o)
	}

	m := &Matcher{entries: make([]compiledEntry, 0, len(entries))}
	for _, e := range entries {
		lname := strings.ToLower(e.Name)
		ce := compiledEntry{
			name:         e.Name,
			network:      strings.Contains(lname, "network hardware") || strings.Contains(lname, "interface"),
			provisioning: strings.Contains(lname, "access provisioning"),
		}
		for _, raw := range e.Synonyms {
			syn := strings.ToLower(strings.TrimSpace(raw))
			if syn == "" {
				continue
			}
			if strings.Contains(syn, " ") {
				ce.synonyms = append(ce.synonyms, synonym{phrase: syn, weight: phraseWeight})
				continue
			}
			w := tokenWeight
			if _, ok := o.weak[syn]; ok {
				w = weakWeight
			}
			ce.synonyms = append(ce.synonyms, synonym{
				token:  regexp.MustCompile(`\b` + regexp.QuoteMeta(syn) + `\b`),
				weight: w,
			})
		}
		m.entries = append(m.entries, ce)
	}
	return m
}

// Len returns the number of entries.
func (m *Matcher) Len() int { return len(m.entries) }

// ScoreAll returns every entry's final score, in entry order.
func (m *Matcher) ScoreAll(text string) []Score {
	t := strings.ToLower(text)
	out := make([]Score, len(m.entries))
	for i, e := range m.entries {
		var s float64
		for _, syn := range e.synonyms {
			if syn.token == nil {
				if strings.Contains(t, syn.phrase) {
					s += syn.weight
				}
				continue
			}
			if syn.token.MatchString(t) {
				s += syn.weight
			}
		}
		out[i] = Score{Name: e.name, Score: s}
	}

	if matchAny(networkAPPatterns, t) {
		for i, e := range m.entries {
			if e.network {
				out[i].Score += networkBoost
			}
			if e.provisioning {
				out[i].Score -= networkProvDemote
			}
		}
	}
	if matchAny(accessProvPatterns, t) {
		for i, e := range m.entries {
			if e.provisioning {
				out[i].Score += provisioningBoost
			}
		}
	}
	return out
}

// Score returns the best entry for text and its score. Ties go to the
// earliest entry; when nothing scores above zero the result is (Other, 0).
func (m *Matcher) Score(text string) (string, float64) {
	best := -1
	var bestScore float64
	for i, s := range m.ScoreAll(text) {
		if best == -1 || s.Score > bestScore {
			best, bestScore = i, s.Score
		}
	}
	if best == -1 || bestScore <= 0 {
		return Other, 0
	}
	return m.entries[best].name, bestScore
}

// Assign returns the best entry name when its score reaches minScore, and
// Other otherwise.
func (m *Matcher) Assign(text string, minScore float64) string {
	name, score := m.Score(text)
	if name == Other || score < minScore {
		return Other
	}
	return name
}

func matchAny(patterns []*regexp.Regexp, text string) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
