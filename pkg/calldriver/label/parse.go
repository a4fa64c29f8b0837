package label

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/goccy/go-json"

	"github.com/cognicore/calldriver/pkg/calldriver/internalerr"
)

const maxTitleRunes = 80

var (
	codeFence   = regexp.MustCompile("(?s)^\\s*```[a-zA-Z]*\\s*(.*?)\\s*```\\s*$")
	firstObject = regexp.MustCompile(`(?s)\{.*?\}`)
	fillerWords = regexp.MustCompile(`(?i)\b(the|a|an|for|to|and|of|in|on)\b`)
	spaceRun    = regexp.MustCompile(`\s+`)
)

type labelPayload struct {
	Title     *string `json:"title"`
	Rationale *string `json:"rationale"`
}

// ParseResponse extracts a cleaned title and rationale from a provider
// reply. The reply must be a JSON object with exactly the string fields
// title and rationale; rationale may be empty but not absent. If the raw
// reply does not parse, one cleanup pass (strip a markdown code fence, else
// take the first {...} block) is tried before giving up.
func ParseResponse(raw string) (string, string, error) {
	p, err := parseStrict(raw)
	if err != nil {
		cleaned, ok := cleanup(raw)
		if !ok {
			return "", "", err
		}
		if p, err = parseStrict(cleaned); err != nil {
			return "", "", err
		}
	}

	title := CleanTitle(*p.Title)
	if title == "" {
		return "", "", fmt.Errorf("empty title: %w", internalerr.ErrMalformedLabel)
	}
	if utf8.RuneCountInString(title) > maxTitleRunes || strings.IndexFunc(title, unicode.IsControl) >= 0 {
		return "", "", fmt.Errorf("title %q: %w", title, internalerr.ErrMalformedLabel)
	}
	return title, strings.TrimSpace(*p.Rationale), nil
}

func parseStrict(raw string) (labelPayload, error) {
	var p labelPayload
	dec := json.NewDecoder(bytes.NewReader([]byte(strings.TrimSpace(raw))))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return p, fmt.Errorf("decode label: %v: %w", err, internalerr.ErrMalformedLabel)
	}
	if dec.More() {
		return p, fmt.Errorf("trailing data after label object: %w", internalerr.ErrMalformedLabel)
	}
	if p.Title == nil {
		return p, fmt.Errorf("missing title: %w", internalerr.ErrMalformedLabel)
	}
	if p.Rationale == nil {
		return p, fmt.Errorf("missing rationale: %w", internalerr.ErrMalformedLabel)
	}
	return p, nil
}

func cleanup(raw string) (string, bool) {
	if m := codeFence.FindStringSubmatch(raw); m != nil {
		return m[1], true
	}
	if m := firstObject.FindString(raw); m != "" && m != strings.TrimSpace(raw) {
		return m, true
	}
	return "", false
}

// CleanTitle drops filler words, collapses whitespace and trims stray
// punctuation from the ends.
func CleanTitle(title string) string {
	t := fillerWords.ReplaceAllString(title, "")
	t = spaceRun.ReplaceAllString(t, " ")
	return strings.TrimFunc(t, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
}
