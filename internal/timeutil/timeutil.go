// Package timeutil handles the forum service's ISO-8601 timestamps:
// parsing, Hong Kong local formatting, and the recency-window predicate
// used to filter candidate posts.
package timeutil

import (
	"strings"
	"time"
)

// HongKong is the fixed UTC+8 zone used for operator-facing formatting.
var HongKong = time.FixedZone("HKT", 8*60*60)

// isoLayouts are tried in order. The service emits millisecond-precision
// UTC stamps but older posts arrive without the fraction, and date-only
// strings are accepted as midnight UTC.
var isoLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseISO parses an ISO-8601 UTC timestamp such as
// "2026-01-07T15:04:51.870Z" or "2026-01-07T15:04:51Z". The trailing Z is
// optional. Empty or unparsable input reports ok=false rather than an
// error; callers decide how a missing value behaves.
func ParseISO(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	s = strings.TrimSuffix(s, "Z")
	for _, layout := range isoLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatHK renders a service timestamp in Hong Kong local time, e.g.
// "2026-01-07 23:04:51 HKT". Unparsable input renders as "Unknown".
func FormatHK(s string) string {
	t, ok := ParseISO(s)
	if !ok {
		return "Unknown"
	}
	return t.In(HongKong).Format("2006-01-02 15:04:05 MST")
}

// WithinHours reports whether the timestamp falls inside the last `hours`
// hours relative to now.
//
// hours <= 0 disables the filter entirely: every timestamp passes,
// parsable or not. With an active filter an empty or unparsable timestamp
// fails closed (treated as too old), keeping the window a reliable guard
// against replying to stale posts.
func WithinHours(now time.Time, s string, hours int) bool {
	if hours <= 0 {
		return true
	}
	t, ok := ParseISO(s)
	if !ok {
		return false
	}
	cutoff := now.Add(-time.Duration(hours) * time.Hour)
	return !t.Before(cutoff)
}
