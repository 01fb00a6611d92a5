// Package timestamp parses the time-range bounds accepted by filters.
package timestamp

import (
	"fmt"
	"strings"
	"time"
)

// layouts are tried in order; the first match wins.
var layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseBound parses an absolute timestamp or a relative offset such as
// "-15m" or "-2h30m" (relative to now). Timestamps without a zone are UTC.
// An empty string yields the zero time.
func ParseBound(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if s == "now" {
		return now.UTC(), nil
	}
	if s[0] == '-' || s[0] == '+' {
		d, err := time.ParseDuration(s)
		if err != nil {
			return time.Time{}, fmt.Errorf("timestamp: bad relative offset %q: %w", s, err)
		}
		return now.Add(d).UTC(), nil
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("timestamp: unrecognised time %q", s)
}
