package timeutil

import (
	"testing"
	"time"
)

func TestFormatAgo(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{"zero time", time.Time{}, ""},
		{"seconds ago", now.Add(-10 * time.Second), "just now"},
		{"about a minute", now.Add(-70 * time.Second), "a minute ago"},
		{"minutes", now.Add(-20 * time.Minute), "20 minutes ago"},
		{"about an hour", now.Add(-60 * time.Minute), "an hour ago"},
		{"hours", now.Add(-5 * time.Hour), "5 hours ago"},
		{"yesterday", now.Add(-30 * time.Hour), "yesterday"},
		{"days", now.Add(-3 * 24 * time.Hour), "3 days ago"},
		{"old", now.Add(-30 * 24 * time.Hour), "on Feb 8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatAgo(tt.t, now); got != tt.want {
				t.Errorf("FormatAgo() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{30 * time.Second, "30s"},
		{5 * time.Minute, "5m"},
		{3 * time.Hour, "3h"},
		{50 * time.Hour, "2d"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestElapsed(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	start := now.Add(-90 * time.Second)

	if got := Elapsed(start, time.Time{}, now); got != 90*time.Second {
		t.Errorf("in-flight elapsed = %v, want 90s", got)
	}
	if got := Elapsed(start, start.Add(time.Minute), now); got != time.Minute {
		t.Errorf("finished elapsed = %v, want 1m", got)
	}
	if got := Elapsed(time.Time{}, time.Time{}, now); got != 0 {
		t.Errorf("zero start elapsed = %v, want 0", got)
	}
}
