package timeutil

import (
	"fmt"
	"time"
)

// FormatAgo renders how long ago t was, for session and run listings.
func FormatAgo(t time.Time, now time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := now.Sub(t)
	if d < 0 {
		d = 0
	}

	seconds := int(d.Seconds())
	minutes := int(d.Minutes())
	hours := int(d.Hours())
	days := int(d.Hours() / 24)

	switch {
	case seconds < 30:
		return "just now"
	case seconds < 90:
		return "a minute ago"
	case minutes < 45:
		return fmt.Sprintf("%d minutes ago", minutes)
	case minutes < 90:
		return "an hour ago"
	case hours < 24:
		return fmt.Sprintf("%d hours ago", hours)
	case days == 1:
		return "yesterday"
	case days < 7:
		return fmt.Sprintf("%d days ago", days)
	default:
		return fmt.Sprintf("on %s", t.Format("Jan 2"))
	}
}

// FormatDuration formats a duration in a compact way
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	} else if d < 24*time.Hour {
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	days := int(d.Hours() / 24)
	return fmt.Sprintf("%dd", days)
}

// Elapsed reports how long a step or task has been running. A zero end
// means it is still in flight, so now stands in for the end time.
func Elapsed(start, end, now time.Time) time.Duration {
	if start.IsZero() {
		return 0
	}
	if end.IsZero() {
		end = now
	}
	d := end.Sub(start)
	if d < 0 {
		return 0
	}
	return d
}
