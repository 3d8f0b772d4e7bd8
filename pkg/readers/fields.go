package readers

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/TFMV/mongoload/pkg/core"
)

var nonWord = regexp.MustCompile(`\W+`)

// NormalizeFieldName trims, lower-cases and collapses every run of
// non-word characters into a single underscore.
func NormalizeFieldName(name string) string {
	return nonWord.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "_")
}

// normalizeHeader normalizes every header column. Names that collide after
// normalization are rejected since they would silently drop a column.
func normalizeHeader(columns []string) ([]string, error) {
	header := make([]string, len(columns))
	seen := make(map[string]int, len(columns))
	for i, col := range columns {
		name := NormalizeFieldName(col)
		if prev, ok := seen[name]; ok {
			return nil, fmt.Errorf("%w: header columns %d and %d both normalize to %q", core.ErrMalformedRow, prev+1, i+1, name)
		}
		seen[name] = i
		header[i] = name
	}
	return header, nil
}

// splitLine splits a line on commas. Quoting and escaping are not supported.
func splitLine(line string) []string {
	return strings.Split(line, ",")
}

// buildRecord maps values onto the header. line is 1-based and only used in errors.
func buildRecord(header, values []string, policy core.RowPolicy, line int) (core.Record, error) {
	if policy == core.Strict && len(values) != len(header) {
		return core.Record{}, fmt.Errorf("%w: line %d has %d values, header has %d", core.ErrMalformedRow, line, len(values), len(header))
	}

	n := min(len(values), len(header))
	fields := make(map[string]string, n)
	for i := 0; i < n; i++ {
		fields[header[i]] = strings.TrimSpace(values[i])
	}

	var id string
	if len(values) > 0 {
		id = strings.TrimSpace(values[0])
	}
	return core.Record{ID: id, Fields: fields}, nil
}
