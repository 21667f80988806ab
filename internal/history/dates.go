package history

import (
	"strings"
	"time"
)

// zoned layouts carry their own offset; naive layouts are read in the
// caller's location, matching how the backend writes datetime.isoformat().
var (
	zonedLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999999Z0700",
	}
	naiveLayouts = []string{
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02T15:04",
		time.DateOnly,
	}
)

// ParseAnalysisDate parses an analysis_date value into loc. The boolean is
// false for empty or unrecognised values; such articles still count toward
// totals but never toward date-based aggregates.
func ParseAnalysisDate(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.In(loc), true
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// InRange reports whether the article's local analysis date falls within
// [from, to] (YYYY-MM-DD, inclusive). An empty bound is open.
func InRange(analysisDate, from, to string, loc *time.Location) bool {
	t, ok := ParseAnalysisDate(analysisDate, loc)
	if !ok {
		return from == "" && to == ""
	}
	d := t.Format(time.DateOnly)
	if from != "" && d < from {
		return false
	}
	if to != "" && d > to {
		return false
	}
	return true
}
