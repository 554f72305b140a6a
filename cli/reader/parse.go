package reader

import (
	"fmt"
	"strings"
	"time"

	"github.com/pithecene-io/triage/types"
)

// dayLayout is the dated sub-location format.
const dayLayout = "2006-01-02"

// ParseDay validates a --day value. Empty means the UTC day of now;
// "today" and "yesterday" are accepted as shorthands.
func ParseDay(s string, now time.Time) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "today":
		return types.DeriveDay(now), nil
	case "yesterday":
		return types.DeriveDay(now.AddDate(0, 0, -1)), nil
	}
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		return "", fmt.Errorf("invalid day %q (want YYYY-MM-DD)", s)
	}
	return t.Format(dayLayout), nil
}

// maxReasonLen bounds error messages used as grouping keys.
const maxReasonLen = 120

// normalizeReason trims a failure message for grouping.
func normalizeReason(msg string) string {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return "(no message)"
	}
	if len(msg) > maxReasonLen {
		return msg[:maxReasonLen] + "..."
	}
	return msg
}
