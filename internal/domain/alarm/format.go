package alarm

import (
	"strconv"
	"strings"
	"time"
)

// TimeLayout is how trigger timestamps are rendered in messages.
const TimeLayout = "2006-01-02 15:04:05"

// FormatTime renders t in the local zone using TimeLayout.
func FormatTime(t time.Time) string {
	return t.Local().Format(TimeLayout)
}

// FormatDuration renders d as "H hours M minutes S seconds".
// Zero hours and minutes are left out; seconds are kept when they are the only unit.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	total := int64(d.Round(time.Second) / time.Second)
	hours := total / 3600
	minutes := total % 3600 / 60
	seconds := total % 60

	parts := make([]string, 0, 3)
	if hours > 0 {
		parts = append(parts, strconv.FormatInt(hours, 10)+" hours")
	}

	if minutes > 0 {
		parts = append(parts, strconv.FormatInt(minutes, 10)+" minutes")
	}

	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, strconv.FormatInt(seconds, 10)+" seconds")
	}

	return strings.Join(parts, " ")
}

// KeywordMatcher returns a predicate reporting whether a text contains any
// of the keywords, ignoring case. Empty keywords are skipped.
func KeywordMatcher(keywords ...string) func(text string) bool {
	lowered := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			lowered = append(lowered, k)
		}
	}

	return func(text string) bool {
		text = strings.ToLower(text)
		for _, k := range lowered {
			if strings.Contains(text, k) {
				return true
			}
		}

		return false
	}
}
