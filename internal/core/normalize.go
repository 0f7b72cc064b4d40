package core

// normalize.go converts raw feed cells into typed values.
//
// Every exported function here is total: it never panics and always
// returns a usable value. Edge-case policy per function:
//
//   - ParseSentinelString: "" and "NAN" (after trimming) become nil
//   - ParseListLiteral: anything that is not a well-formed list becomes []
//   - ParseOptionalNumber: empty or unparsable input becomes the default
//   - ParseOptionalDate: empty input is nil, unparsable input is an error
//
// The feed encodes lists as Python-style literals, e.g. ['AUTO','ANDROID'].

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Sentinel is the literal the feed uses for "no value". Matching is case-sensitive.
const Sentinel = "NAN"

// singleQuoted matches a single-quoted run such as 'AUTO'.
var singleQuoted = regexp.MustCompile(`'([^']+)'`)

// Date layouts accepted for feed timestamps. Full timestamps are tried first,
// then the date-only layouts also accepted by the CSV importer.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006",
	"01/02/2006",
	"Jan 2, 2006",
	"2 Jan 2006",
	"20060102",
}

// ParseSentinelString trims s and returns nil if it is empty or the sentinel.
func ParseSentinelString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" || s == Sentinel {
		return nil
	}
	return &s
}

// ParseListLiteral decodes a pseudo-list such as ['A','B'] or ["A","B"].
// It never fails: malformed input is logged and yields an empty list.
func ParseListLiteral(s string) []any {
	items, err := parseListLiteral(s)
	if err != nil {
		slog.Warn("failed to parse list literal", "input", s, "error", err)
		return []any{}
	}
	return items
}

// parseListLiteral is ParseListLiteral with the failure reported to the caller.
// Empty and sentinel input are not failures.
func parseListLiteral(s string) ([]any, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" || trimmed == Sentinel {
		return []any{}, nil
	}

	normalized := normalizeQuotes(trimmed)

	var decoded any
	if err := json.Unmarshal([]byte(normalized), &decoded); err != nil {
		return nil, fmt.Errorf("invalid list literal: %w", err)
	}

	items, ok := decoded.([]any)
	if !ok {
		return nil, fmt.Errorf("invalid list literal: not a list")
	}
	return items, nil
}

// normalizeQuotes rewrites every single-quoted run as a double-quoted JSON
// string, escaping any double quotes inside it.
func normalizeQuotes(s string) string {
	return singleQuoted.ReplaceAllStringFunc(s, func(match string) string {
		inner := match[1 : len(match)-1]
		return `"` + strings.ReplaceAll(inner, `"`, `\"`) + `"`
	})
}

// parseStringList decodes a list literal whose elements must all be strings.
func parseStringList(s string) ([]string, error) {
	items, err := parseListLiteral(s)
	if err != nil {
		return []string{}, err
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		str, ok := item.(string)
		if !ok {
			return []string{}, fmt.Errorf("invalid list literal: element %d is %T, want string", i, item)
		}
		out = append(out, str)
	}
	return out, nil
}

// parseNumberList decodes a list literal whose elements must all be numbers.
func parseNumberList(s string) ([]float64, error) {
	items, err := parseListLiteral(s)
	if err != nil {
		return []float64{}, err
	}
	out := make([]float64, 0, len(items))
	for i, item := range items {
		n, ok := item.(float64)
		if !ok {
			return []float64{}, fmt.Errorf("invalid list literal: element %d is %T, want number", i, item)
		}
		out = append(out, n)
	}
	return out, nil
}

// ParseOptionalNumber parses a float, returning def for empty or unparsable input.
func ParseOptionalNumber(s string, def float64) float64 {
	n, ok := parseNumber(s)
	if !ok {
		return def
	}
	return n
}

// parseNumber reports whether s held a finite number.
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

// ParseOptionalDate returns nil for empty input and an ErrNormalization
// error for input that matches none of the accepted layouts.
func ParseOptionalDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			t = t.UTC()
			return &t, nil
		}
	}

	return nil, NewError(ErrNormalization, fmt.Sprintf("invalid date %q", s), nil)
}
