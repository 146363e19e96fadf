package report

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// zoneSuffix matches a trailing "Z" or numeric UTC offset.
var zoneSuffix = regexp.MustCompile(`(?i)(z|[+-]\d{2}:?\d{2})$`)

// NormalizeTimestamp turns store-local text ("2024-01-02 03:04:05.678") into RFC 3339:
// a missing date/time separator becomes "T" and a missing zone is taken as UTC.
func NormalizeTimestamp(ts string) string {
	ts = strings.TrimSpace(ts)
	if !strings.Contains(ts, "T") {
		ts = strings.Replace(ts, " ", "T", 1)
	}
	switch {
	case strings.HasSuffix(ts, "z") && hasZone(ts):
		ts = ts[:len(ts)-1] + "Z"
	case !hasZone(ts):
		ts += "Z"
	}
	return ts
}

func hasZone(ts string) bool {
	// only look past the date so "2024-01-02" is not read as an offset
	i := strings.IndexByte(ts, 'T')
	if i < 0 {
		return false
	}
	return zoneSuffix.MatchString(ts[i+1:])
}

// ParseTimestamp converts a stored timestamp into an instant. Every conversion in the
// report goes through here.
func ParseTimestamp(ts string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, NormalizeTimestamp(ts))
	if err != nil {
		return time.Time{}, fmt.Errorf("report: parse timestamp %q: %w", ts, err)
	}
	return t.UTC(), nil
}

// FormatISO renders an instant the way the report prints it.
func FormatISO(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
