// Package ingest reads ticket exports (CSV or JSON Lines) into Tickets,
// reconciling column names and stripping HTML from descriptions.
package ingest

import (
	"strings"

	"github.com/cognicore/calldriver/pkg/calldriver/textnorm"
)

// Ticket is one support ticket as read from an export.
type Ticket struct {
	Ref              string            `json:"ref,omitempty"`
	ShortDescription string            `json:"short_description"`
	Description      string            `json:"description"`
	Extra            map[string]string `json:"extra,omitempty"` // unmapped columns, passed through
}

// Text is the normalized text the classifiers see.
func (t Ticket) Text() string {
	return textnorm.Combine(t.ShortDescription, t.Description)
}

// Texts returns Text for every ticket, in order.
func Texts(tickets []Ticket) []string {
	out := make([]string, len(tickets))
	for i, t := range tickets {
		out[i] = t.Text()
	}
	return out
}

// Field is a canonical ticket column.
type Field string

const (
	FieldShortDescription Field = "short_description"
	FieldDescription      Field = "description"
	FieldRef              Field = "ref"
)

// aliases per field, most specific first.
var aliases = map[Field][]string{
	FieldShortDescription: {"short_description", "short description", "short desc", "title", "summary", "subject"},
	FieldDescription:      {"description", "desc", "details", "work notes", "additional comments", "problem description"},
	FieldRef:              {"number", "ticket", "ticket number", "incident", "id", "sys_id"},
}

var fieldOrder = []Field{FieldShortDescription, FieldDescription, FieldRef}

// Mapping maps canonical fields to column names. A missing field is absent.
type Mapping map[Field]string

// MapColumns proposes a mapping for the given column names: exact canonical
// name first, then exact alias, then an alias contained in the column name.
// A column is used for at most one field.
func MapColumns(columns []string) Mapping {
	low := make(map[string]string, len(columns))
	for _, c := range columns {
		if _, dup := low[normalizeColumn(c)]; !dup {
			low[normalizeColumn(c)] = c
		}
	}
	m := Mapping{}
	used := map[string]bool{}
	take := func(f Field, col string) {
		m[f] = col
		used[col] = true
	}

	for _, f := range fieldOrder {
		if col, ok := low[string(f)]; ok && !used[col] {
			take(f, col)
		}
	}
	for _, f := range fieldOrder {
		if _, ok := m[f]; ok {
			continue
		}
		for _, a := range aliases[f] {
			if col, ok := low[normalizeColumn(a)]; ok && !used[col] {
				take(f, col)
				break
			}
		}
	}
	for _, f := range fieldOrder {
		if _, ok := m[f]; ok {
			continue
		}
	scan:
		for _, c := range columns {
			if used[c] {
				continue
			}
			n := normalizeColumn(c)
			for _, a := range aliases[f] {
				if strings.Contains(n, normalizeColumn(a)) {
					take(f, c)
					break scan
				}
			}
		}
	}
	return m
}

// HasText reports whether at least one text field is mapped.
func (m Mapping) HasText() bool {
	_, sd := m[FieldShortDescription]
	_, d := m[FieldDescription]
	return sd || d
}

func normalizeColumn(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimPrefix(s, "\ufeff"))), " ")
}

// build fills a Ticket from a row keyed by column name.
func (m Mapping) build(row map[string]string) Ticket {
	t := Ticket{
		Ref:              strings.TrimSpace(row[m[FieldRef]]),
		ShortDescription: StripHTML(row[m[FieldShortDescription]]),
		Description:      StripHTML(row[m[FieldDescription]]),
	}
	mapped := map[string]bool{}
	for _, col := range m {
		mapped[col] = true
	}
	for k, v := range row {
		if mapped[k] || v == "" {
			continue
		}
		if t.Extra == nil {
			t.Extra = make(map[string]string)
		}
		t.Extra[k] = v
	}
	return t
}
