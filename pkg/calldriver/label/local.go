package label

import (
	"sort"
	"strings"
	"unicode"

	"github.com/cognicore/calldriver/pkg/calldriver/featurize"
	"github.com/cognicore/calldriver/pkg/calldriver/stoplist"
	"github.com/cognicore/calldriver/pkg/calldriver/textnorm"
)

const (
	lexiconRationale  = "Matched IT lexicon by keyword frequency."
	salienceRationale = "Auto-labeled by keyword salience."
	minBucketScore    = 2
	maxTitleTerms     = 4
)

// Bucket is a canonical IT-support category and the words that point to it.
type Bucket struct {
	Name     string
	Synonyms []string
}

// DefaultBuckets is the built-in IT lexicon, in tie-break order.
var DefaultBuckets = []Bucket{
	{"Password Reset / Unlock", []string{"password", "unlock", "locked", "reset", "sspr", "account lock", "forgot"}},
	{"MFA / SSO / Identity", []string{"mfa", "otp", "verify", "authenticator", "2fa", "okta", "duo", "azure ad", "sso", "adfs"}},
	{"Email / Outlook", []string{"outlook", "email", "o365", "office 365", "mailbox", "send", "receive", "calendar", "pst"}},
	{"Conferencing / Teams / Zoom", []string{"teams", "zoom", "webex", "meeting", "audio", "video", "microphone", "camera"}},
	{"VPN / Network Access", []string{"vpn", "globalprotect", "anyconnect", "zscaler", "proxy", "ssl", "connect", "tunnel"}},
	{"Network Hardware / Interface", []string{"switch", "router", "firewall", "cisco", "interface", "gigabitethernet", "uplink", "latency", "packet loss"}},
	{"Device / Laptop / Desktop", []string{"laptop", "desktop", "pc", "boot", "battery", "keyboard", "touchpad", "screen", "monitor"}},
	{"Printing / Scanning", []string{"printer", "print", "zebra", "scan", "driver", "toner"}},
	{"Access Provisioning", []string{"access", "add to group", "entitlement", "license", "provision", "enable", "request access"}},
	{"Software Install / Update", []string{"install", "installation", "update", "patch", "deployment", "intune", "sccm", "software center"}},
	{"Storage / OneDrive / SharePoint", []string{"onedrive", "sharepoint", "sync", "drive", "share", "permission", "library"}},
	{"Enterprise App / SAP", []string{"sap", "gui", "sso sap", "saplogon"}},
	{"Enterprise App / Veeva Vault", []string{"veeva", "vault"}},
	{"Security / Endpoint", []string{"defender", "antivirus", "threat", "malware", "bitlocker", "encryption", "policy", "compliance"}},
	{"Telephony / Mobile", []string{"iphone", "ipad", "android", "mobile", "sim", "telephony", "softphone", "ring", "call"}},
	{"Status / Request Updates", []string{"status", "update", "where is", "eta", "progress", "check status"}},
}

// Local labels clusters without any network access.
type Local struct {
	buckets []Bucket
	noise   *stoplist.Set
	tfidf   *featurize.Featurizer
}

// NewLocal returns a labeler over DefaultBuckets.
func NewLocal() *Local { return NewLocalWithBuckets(DefaultBuckets) }

// NewLocalWithBuckets returns a labeler over custom buckets.
func NewLocalWithBuckets(buckets []Bucket) *Local {
	return &Local{
		buckets: buckets,
		noise:   stoplist.New(stoplist.LabelNoise),
		tfidf: featurize.New(featurize.Config{
			MinDF:       1,
			MaxDFRatio:  1,
			MaxFeatures: 1000,
			MaxNGram:    2,
		}, stoplist.New(stoplist.English)),
	}
}

// Label names a cluster. The title is never empty: "Other" is used when no
// term survives.
func (l *Local) Label(members []string) ClusterLabel {
	var tokens []string
	for _, m := range members {
		tokens = append(tokens, textnorm.Tokens(m, 3, l.noise)...)
	}
	if name, score := l.scoreBuckets(tokens); score >= minBucketScore {
		return ClusterLabel{Title: name, Rationale: lexiconRationale, Source: SourceLocal}
	}

	terms := l.topTerms(members)
	if len(terms) == 0 {
		terms = l.keywords(members)
	}
	title := "Other"
	if len(terms) > 0 {
		title = TitleCase(strings.Join(terms, " / "))
	}
	return ClusterLabel{Title: title, Rationale: salienceRationale, Source: SourceLocal}
}

// scoreBuckets counts exact synonym hits plus prefix credit for every
// token starting with a synonym. The first bucket with the highest score wins.
func (l *Local) scoreBuckets(tokens []string) (string, int) {
	counts := make(map[string]int)
	for _, t := range tokens {
		counts[t]++
	}
	uniq := make([]string, 0, len(counts))
	for t := range counts {
		uniq = append(uniq, t)
	}
	sort.Strings(uniq)

	best, bestScore := "", 0
	for _, b := range l.buckets {
		score := 0
		for _, syn := range b.Synonyms {
			score += counts[syn]
		}
		for _, t := range uniq {
			for _, syn := range b.Synonyms {
				if strings.HasPrefix(t, syn) {
					score += counts[t]
					break
				}
			}
		}
		if score > bestScore {
			best, bestScore = b.Name, score
		}
	}
	return best, bestScore
}

// topTerms ranks 1-2 gram TF-IDF weight summed over the cluster.
func (l *Local) topTerms(members []string) []string {
	tm, err := l.tfidf.TermMatrix(members)
	if err != nil {
		return nil
	}
	sums := tm.ColumnSums()
	order := make([]int, len(sums))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		if sums[order[a]] != sums[order[b]] {
			return sums[order[a]] > sums[order[b]]
		}
		return tm.Vocab[order[a]] < tm.Vocab[order[b]]
	})
	var out []string
	for _, i := range order[:min(maxTitleTerms, len(order))] {
		if !l.noise.IsStop(tm.Vocab[i]) {
			out = append(out, tm.Vocab[i])
		}
	}
	return out
}

// keywords is the single-word fallback: words scored by frequency times the
// number of members they appear in, earliest first occurrence breaking ties.
func (l *Local) keywords(members []string) []string {
	type stat struct {
		count, docs, first int
	}
	stats := make(map[string]*stat)
	pos := 0
	for _, m := range members {
		seen := make(map[string]bool)
		for _, w := range textnorm.Tokens(m, 3, l.noise) {
			s, ok := stats[w]
			if !ok {
				s = &stat{first: pos}
				stats[w] = s
			}
			s.count++
			if !seen[w] {
				s.docs++
				seen[w] = true
			}
			pos++
		}
	}
	words := make([]string, 0, len(stats))
	for w := range stats {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		a, b := stats[words[i]], stats[words[j]]
		if sa, sb := a.count*a.docs, b.count*b.docs; sa != sb {
			return sa > sb
		}
		return a.first < b.first
	})
	return words[:min(maxTitleTerms, len(words))]
}

// TitleCase upper-cases the first letter of every letter run and lowers the
// rest.
func TitleCase(s string) string {
	var b strings.Builder
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		prevLetter = false
		b.WriteRune(r)
	}
	return b.String()
}
