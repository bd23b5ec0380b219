package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"marketpulse/internal/store"
	"marketpulse/internal/timeutil"
)

// ListSessions prints all known sessions, most recent first.
func ListSessions(out io.Writer, s *store.Store) error {
	sessions, err := s.ListSessions(context.Background())
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No sessions yet. Start one with 'mpulse watch'.")
		return nil
	}

	now := time.Now()
	for _, sess := range sessions {
		title := sess.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Fprintf(out, "%-36s  %-40s  %s\n", sess.ID, title, timeutil.FormatAgo(sess.UpdatedAt, now))
	}
	return nil
}

// ShowSession prints a session's transcript and run journal.
func ShowSession(out io.Writer, s *store.Store, sessionID string) error {
	ctx := context.Background()

	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}

	title := sess.Title
	if title == "" {
		title = sess.ID
	}
	fmt.Fprintln(out, title)
	fmt.Fprintln(out, strings.Repeat("-", len(title)))

	msgs, err := s.Messages(ctx, sessionID)
	if err != nil {
		return err
	}
	for _, m := range msgs {
		switch m.Role {
		case "user":
			fmt.Fprintf(out, "\nYou: %s\n", m.Content)
		default:
			fmt.Fprintf(out, "\n%s\n", m.Content)
			for _, src := range m.Sources {
				fmt.Fprintf(out, "  [%s] %s\n", src.Title, src.URL)
			}
		}
	}

	runs, err := s.Runs(ctx, sessionID)
	if err != nil {
		return err
	}
	if len(runs) > 0 {
		fmt.Fprintln(out, "\nRuns:")
		for _, r := range runs {
			elapsed := timeutil.Elapsed(r.StartedAt, r.FinishedAt, time.Now())
			fmt.Fprintf(out, "  %-40s %-10s %3d%%  %s\n", r.Title, r.Status, r.Progress, timeutil.FormatDuration(elapsed))
		}
	}
	return nil
}
