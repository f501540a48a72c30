// Package timewin parses time-window specifiers used by message queries.
package timewin

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultWindow is used when a specifier cannot be parsed.
const DefaultWindow = 24 * time.Hour

var relativeRe = regexp.MustCompile(`^(\d+)([hdwmHDWM])$`)

// unit durations for relative specifiers. "m" is a 30-day month
// approximation, matching the query tools this feeds.
var unitMillis = map[string]int64{
	"h": time.Hour.Milliseconds(),
	"d": 24 * time.Hour.Milliseconds(),
	"w": 7 * 24 * time.Hour.Milliseconds(),
	"m": 30 * 24 * time.Hour.Milliseconds(),
}

// ParseSince converts a window specifier into an epoch-millisecond cutoff
// relative to now. Accepted forms:
//
//   - relative: "24h", "7d", "2w", "1m"
//   - absolute: RFC 3339 or ISO date ("2024-03-01", "2024-03-01T12:00:00Z")
//
// Anything else yields the cutoff for "24h". ParseSince never fails.
func ParseSince(input string, now time.Time) int64 {
	nowMs := now.UnixMilli()

	if strings.ContainsAny(input, "-T") {
		if ts, ok := parseAbsolute(input); ok {
			return ts
		}
	}

	if m := relativeRe.FindStringSubmatch(input); m != nil {
		value, err := strconv.ParseInt(m[1], 10, 64)
		if err == nil {
			return nowMs - value*unitMillis[strings.ToLower(m[2])]
		}
	}

	return nowMs - DefaultWindow.Milliseconds()
}

func parseAbsolute(input string) (int64, bool) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, input); err == nil {
			return t.UnixMilli(), true
		}
	}
	return 0, false
}
