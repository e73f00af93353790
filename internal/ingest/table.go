// Package ingest reads catalog, recipe, stock level and sales exports from CSV
// or XLSX files into domain records.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

var columnNameSanitizer = strings.NewReplacer(" ", "", "_", "", ".", "", "-", "", "/", "")

func normalizeColumnName(name string) string {
	name = strings.TrimSpace(strings.ToLower(strings.TrimPrefix(name, "\ufeff")))
	return columnNameSanitizer.Replace(name)
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

func parseDate(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", v)
}

// ParseDate accepts the same layouts as the file readers.
func ParseDate(v string) (time.Time, error) {
	return parseDate(v)
}

// table wraps a CSV reader whose columns are looked up by normalised name.
type table struct {
	name   string
	reader *csv.Reader
	header map[string]int
	line   int
}

func newTable(name string, r io.Reader) (*table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: missing header row", name)
		}
		return nil, fmt.Errorf("%s: failed to read header: %w", name, err)
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		key := normalizeColumnName(h)
		if _, dup := idx[key]; !dup {
			idx[key] = i
		}
	}
	return &table{name: name, reader: reader, header: idx, line: 1}, nil
}

// colIndex returns the first matching column among the aliases, or -1.
func (t *table) colIndex(names ...string) int {
	for _, n := range names {
		if i, ok := t.header[normalizeColumnName(n)]; ok {
			return i
		}
	}
	return -1
}

// require resolves mandatory columns; a missing one is a hard error.
func (t *table) require(names ...string) ([]int, error) {
	out := make([]int, len(names))
	var missing []string
	for i, n := range names {
		out[i] = t.colIndex(n)
		if out[i] < 0 {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%s: missing required column(s) %s", t.name, strings.Join(missing, ", "))
	}
	return out, nil
}

// next returns the following record, or io.EOF.
func (t *table) next() (record, error) {
	rec, err := t.reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return record{}, io.EOF
		}
		return record{}, fmt.Errorf("%s: line %d: %w", t.name, t.line+1, err)
	}
	t.line++
	return record{fields: rec, line: t.line}, nil
}

type record struct {
	fields []string
	line   int
}

func (r record) get(idx int) string {
	if idx < 0 || idx >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[idx])
}

func (r record) blank() bool {
	for _, f := range r.fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// float parses a numeric field. Thousands separators are stripped and an
// empty optional field reads as zero.
func (r record) float(idx int) (float64, error) {
	v := strings.ReplaceAll(r.get(idx), ",", "")
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not a number: %q", r.get(idx))
	}
	return f, nil
}

// int parses a whole-number field. "3" and "3.0" are accepted, "2.7" is not.
func (r record) int(idx int) (int, error) {
	f, err := r.float(idx)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("not a whole number: %q", r.get(idx))
	}
	return int(f), nil
}
