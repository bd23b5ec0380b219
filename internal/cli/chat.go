package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"marketpulse/internal/chat"
	"marketpulse/internal/store"
)

// ChatOnce sends a single question and streams the answer to out.
// Ctrl-C aborts the stream; an aborted exchange is not persisted.
func ChatOnce(out io.Writer, client *chat.Client, s *store.Store, sessionID, message string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sessionID, err := ensureSession(ctx, s, sessionID)
	if err != nil {
		return err
	}

	res, err := client.Stream(ctx, chat.Request{SessionID: sessionID, Message: message}, chat.Handlers{
		OnDelta: func(delta string) {
			fmt.Fprint(out, delta)
		},
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(out)

	if res == nil {
		// Aborted mid-stream: no outcome to record.
		return nil
	}

	if len(res.Sources) > 0 {
		fmt.Fprintln(out, "\nSources:")
		for _, src := range res.Sources {
			fmt.Fprintf(out, "  [%s] %s\n", src.Title, src.URL)
		}
	}

	persistExchange(s, sessionID, message, res.Content, res.Sources)
	return nil
}
