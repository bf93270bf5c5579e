package timex

import (
	"fmt"
	"time"
)

// HumanAge renders a coarse, human-readable age for a last-run timestamp.
// A zero timestamp means the event never happened.
func HumanAge(ts time.Time, now time.Time) string {
	if ts.IsZero() {
		return "never"
	}

	age := now.Sub(ts)
	hours := int(age.Hours())

	switch {
	case hours < 1:
		return "just now"
	case hours == 1:
		return "1 hour ago"
	case hours < 24:
		return fmt.Sprintf("%d hours ago", hours)
	default:
		return fmt.Sprintf("%d days ago", hours/24)
	}
}
