// Package stoplist holds the stopword sets shared by the featurizer and the
// local label fallback.
package stoplist

import "sort"

// Set is a read-only stopword set.
type Set struct {
	stops map[string]struct{}
}

// New builds a set from the given word lists.
func New(lists ...[]string) *Set {
	s := &Set{stops: make(map[string]struct{})}
	for _, l := range lists {
		for _, w := range l {
			s.stops[w] = struct{}{}
		}
	}
	return s
}

// IsStop reports whether token is a stopword. A nil set stops nothing.
func (s *Set) IsStop(token string) bool {
	if s == nil {
		return false
	}
	_, ok := s.stops[token]
	return ok
}

// With returns a new set extended with words.
func (s *Set) With(words ...string) *Set {
	out := New(words)
	if s != nil {
		for w := range s.stops {
			out.stops[w] = struct{}{}
		}
	}
	return out
}

// Len returns the number of stopwords.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.stops)
}

// All returns the stopwords sorted.
func (s *Set) All() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.stops))
	for w := range s.stops {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

// English is a general English stopword list.
var English = []string{
	"a", "about", "above", "across", "after", "afterwards", "again", "against", "all", "almost",
	"alone", "along", "already", "also", "although", "always", "am", "among", "amongst", "an",
	"and", "another", "any", "anyhow", "anyone", "anything", "anyway", "anywhere", "are", "around",
	"as", "at", "back", "be", "became", "because", "become", "becomes", "becoming", "been",
	"before", "beforehand", "behind", "being", "below", "beside", "besides", "between", "beyond", "both",
	"but", "by", "can", "cannot", "could", "did", "do", "does", "doing", "done",
	"down", "due", "during", "each", "eg", "either", "else", "elsewhere", "enough", "even",
	"ever", "every", "everyone", "everything", "everywhere", "except", "few", "for", "former", "formerly",
	"from", "further", "get", "give", "go", "had", "has", "have", "he", "hence",
	"her", "here", "hereafter", "hereby", "herein", "hers", "herself", "him", "himself", "his",
	"how", "however", "i", "ie", "if", "in", "indeed", "into", "is", "it",
	"its", "itself", "just", "keep", "last", "latter", "least", "less", "ltd", "made",
	"many", "may", "me", "meanwhile", "might", "mine", "more", "moreover", "most", "mostly",
	"much", "must", "my", "myself", "namely", "neither", "never", "nevertheless", "next", "no",
	"nobody", "none", "noone", "nor", "not", "nothing", "now", "nowhere", "of", "off",
	"often", "on", "once", "one", "only", "onto", "or", "other", "others", "otherwise",
	"our", "ours", "ourselves", "out", "over", "own", "per", "perhaps", "please", "put",
	"rather", "re", "same", "see", "seem", "seemed", "seeming", "seems", "several", "she",
	"should", "since", "so", "some", "somehow", "someone", "something", "sometime", "sometimes", "somewhere",
	"still", "such", "than", "that", "the", "their", "them", "themselves", "then", "thence",
	"there", "thereafter", "thereby", "therefore", "therein", "thereupon", "these", "they", "this", "those",
	"though", "through", "throughout", "thru", "thus", "to", "together", "too", "toward", "towards",
	"under", "until", "up", "upon", "us", "very", "via", "was", "we", "well",
	"were", "what", "whatever", "when", "whence", "whenever", "where", "whereafter", "whereas", "whereby",
	"wherein", "whereupon", "wherever", "whether", "which", "while", "who", "whoever", "whole", "whom",
	"whose", "why", "will", "with", "within", "without", "would", "yet", "you", "your",
	"yours", "yourself", "yourselves",
}

// SupportBoilerplate are IT-support words that carry no topic.
var SupportBoilerplate = []string{
	"please", "issue", "help", "error", "need", "user", "problem", "thanks", "thank",
	"unable", "required", "received", "message", "login", "logon", "link", "click",
	"etc", "still", "using", "tried", "request", "report", "ticket", "service", "desk",
	"x000d", "http", "https", "attachment", "attachments", "screenshot", "screenshots",
}

// LabelNoise is the short list the local labeler drops from cluster tokens.
var LabelNoise = []string{
	"the", "to", "for", "and", "of", "in", "on", "a", "an", "with", "is", "are", "was", "were",
	"be", "been", "being", "from", "into", "via", "by",
	"please", "need", "issue", "help", "error", "problem", "user", "request", "ticket", "desk",
	"service", "still", "using", "tried", "http", "https", "x000d", "attach", "attachment",
	"screenshot", "etc", "link", "click",
}

// Domain is the featurizer stoplist: English plus support boilerplate.
func Domain() *Set { return New(English, SupportBoilerplate) }
