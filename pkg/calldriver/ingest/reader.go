package ingest

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"github.com/cognicore/calldriver/pkg/calldriver/internalerr"
)

// Format is a supported export format.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatJSONL Format = "jsonl"
)

// FormatFromPath picks a format by file extension; anything that is not
// .jsonl/.ndjson is read as CSV.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson":
		return FormatJSONL
	default:
		return FormatCSV
	}
}

// LoadFile reads tickets from path in the format implied by its extension.
func LoadFile(path string) ([]Ticket, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f, FormatFromPath(path))
}

// Read reads tickets from r.
func Read(r io.Reader, format Format) ([]Ticket, error) {
	switch format {
	case FormatCSV:
		return ReadCSV(r)
	case FormatJSONL:
		return ReadJSONL(r)
	default:
		return nil, fmt.Errorf("format %q: %w", format, internalerr.ErrInvalidInput)
	}
}

// ReadCSV reads a CSV export with a header row.
func ReadCSV(r io.Reader) ([]Ticket, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}
	m := MapColumns(header)
	if !m.HasText() {
		return nil, fmt.Errorf("no short_description or description column in %v: %w", header, internalerr.ErrInvalidInput)
	}

	var out []Ticket
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = rec[i]
			}
		}
		out = append(out, m.build(row))
	}
	return out, nil
}

// ReadJSONL reads one JSON object per line. Blank lines are skipped; non
// string values are rendered with their JSON text.
func ReadJSONL(r io.Reader) ([]Ticket, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	var (
		out     []Ticket
		m       Mapping
		lastKey string
	)
	for line := 1; sc.Scan(); line++ {
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}
		var obj map[string]json.RawMessage
		if err := json.Unmarshal([]byte(raw), &obj); err != nil {
			return nil, fmt.Errorf("jsonl line %d: %v: %w", line, err, internalerr.ErrInvalidInput)
		}
		keys := make([]string, 0, len(obj))
		row := make(map[string]string, len(obj))
		for k, v := range obj {
			keys = append(keys, k)
			row[k] = jsonText(v)
		}
		sort.Strings(keys)
		if sig := strings.Join(keys, "\x00"); sig != lastKey {
			m, lastKey = MapColumns(keys), sig
		}
		if !m.HasText() {
			return nil, fmt.Errorf("jsonl line %d: no short_description or description field: %w", line, internalerr.ErrInvalidInput)
		}
		out = append(out, m.build(row))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read jsonl: %w", err)
	}
	return out, nil
}

func jsonText(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	if t := strings.TrimSpace(string(v)); t != "null" {
		return t
	}
	return ""
}
