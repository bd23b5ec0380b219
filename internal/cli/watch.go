package cli

import (
	"context"
	"fmt"
	"log"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"marketpulse/config"
	"marketpulse/internal/chat"
	"marketpulse/internal/protocol"
	"marketpulse/internal/pubsub"
	"marketpulse/internal/store"
	"marketpulse/internal/stream"
	"marketpulse/internal/task"
	"marketpulse/internal/tui"
)

// WatchOptions configures a live watch session.
type WatchOptions struct {
	Config    *config.Config
	Token     string
	SessionID string
	Store     *store.Store
}

// Watch connects to the backend's event stream for one session and runs
// the interactive watch UI until the user quits.
func Watch(opts WatchOptions) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Stream settings are bound at connect time, so edits to config.yaml
	// take effect on the next session. Surface that in the log.
	if configFile, err := config.GetConfigFile(); err == nil {
		watcher := config.NewWatcher(configFile, func(cfg *config.Config) {
			log.Printf("config changed (api_url=%s); restart mpulse to apply", cfg.APIURL)
		})
		watcher.Start()
		defer watcher.Stop()
	}

	sessionID, err := ensureSession(ctx, opts.Store, opts.SessionID)
	if err != nil {
		return err
	}

	conn := stream.NewConn(stream.Config{
		BaseURL:           opts.Config.APIURL,
		SessionID:         sessionID,
		Token:             opts.Token,
		KeepaliveInterval: opts.Config.KeepaliveInterval(),
		ReconnectDelay:    opts.Config.ReconnectDelay(),
		MaxReconnects:     opts.Config.MaxReconnects,
	})
	defer conn.Close()

	pipelineEvents := conn.Events(ctx)
	uiNotifs := conn.Events(ctx)

	snapBroker := pubsub.NewBroker[task.Snapshot]()
	defer snapBroker.Shutdown()
	snapshots := snapBroker.Subscribe(ctx)

	reducer := task.NewReducer()
	go runPipeline(ctx, pipelineEvents, reducer, snapBroker, opts.Store, sessionID)

	chatClient := chat.NewClient(opts.Config.APIURL, chat.WithToken(opts.Token))

	model := tui.New(tui.Deps{
		SessionID:     sessionID,
		Snapshots:     snapshots,
		Notifications: uiNotifs,
		Chat:          chatClient,
		OnExchange: func(question, answer string, sources []chat.Source) {
			persistExchange(opts.Store, sessionID, question, answer, sources)
		},
	})

	if err := conn.Connect(); err != nil {
		// The connection keeps retrying in the background; the UI shows
		// the reconnect progress.
		log.Printf("initial connect failed: %v", err)
	}

	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err = p.Run()
	return err
}

func ensureSession(ctx context.Context, s *store.Store, sessionID string) (string, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if _, err := s.GetSession(ctx, sessionID); err == store.ErrNotFound {
		if _, err := s.CreateSession(ctx, sessionID, ""); err != nil {
			return "", fmt.Errorf("create session: %w", err)
		}
	} else if err != nil {
		return "", err
	}
	return sessionID, nil
}

// runPipeline drains the connection's event feed, folds classified events
// into the reducer, and fans snapshots out to UI subscribers. Finished
// runs are journaled to the store.
func runPipeline(ctx context.Context, events <-chan stream.Notification, reducer *task.Reducer, out *pubsub.Broker[task.Snapshot], s *store.Store, sessionID string) {
	for n := range events {
		if n.Kind != stream.KindMessage || n.Message == nil {
			continue
		}
		ev, ok := protocol.Classify(n.Message)
		if !ok {
			continue
		}
		snap := reducer.Apply(ev)
		out.Publish(snap)

		switch ev.(type) {
		case protocol.AgentComplete, protocol.AgentError:
			if snap.Task != nil {
				if _, err := s.SaveRun(ctx, sessionID, snap.Task); err != nil {
					log.Printf("save run: %v", err)
				}
			}
		}
	}
}

func persistExchange(s *store.Store, sessionID, question, answer string, sources []chat.Source) {
	ctx := context.Background()
	if _, err := s.AppendMessage(ctx, sessionID, "user", question, nil); err != nil {
		log.Printf("persist question: %v", err)
		return
	}
	if _, err := s.AppendMessage(ctx, sessionID, "assistant", answer, sources); err != nil {
		log.Printf("persist answer: %v", err)
		return
	}
	if err := s.TouchSession(ctx, sessionID); err != nil {
		log.Printf("touch session: %v", err)
	}
}
