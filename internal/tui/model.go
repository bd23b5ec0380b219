package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"marketpulse/internal/chat"
	"marketpulse/internal/stream"
	"marketpulse/internal/task"
)

// Deps wires the watch UI to the rest of the client. Snapshots and
// Notifications are fed by the stream pipeline; Chat may be nil when
// the session is watch-only.
type Deps struct {
	SessionID     string
	Snapshots     <-chan task.Snapshot
	Notifications <-chan stream.Notification
	Chat          *chat.Client

	// OnExchange is called after each completed chat exchange so the
	// caller can persist it. Optional.
	OnExchange func(question, answer string, sources []chat.Source)

	// Clock overrides the wall clock for elapsed-time rendering. Nil
	// means time.Now.
	Clock func() time.Time
}

type transcriptEntry struct {
	role    string // "user" or "agent"
	content string
	sources []chat.Source
}

type chatEvent struct {
	delta string
	done  bool
	res   *chat.Result
	err   error
}

type (
	snapshotMsg  task.Snapshot
	notifMsg     stream.Notification
	chatEventMsg chatEvent
	feedClosed   struct{}
)

// Model is the bubbletea model for the live watch view.
type Model struct {
	deps   Deps
	styles Styles
	keys   keyMap

	textinput textinput.Model
	viewport  viewport.Model
	spinner   spinner.Model
	progress  progress.Model
	help      help.Model

	snap       task.Snapshot
	status     stream.Status
	statusNote string

	transcript []transcriptEntry
	pending    string
	chatting   bool
	chatCh     chan chatEvent
	chatCancel context.CancelFunc

	clock func() time.Time

	width  int
	height int
	ready  bool
	err    error
}

func New(deps Deps) Model {
	styles := DefaultStyles()

	ti := textinput.New()
	ti.Placeholder = "Ask about the market... (enter to send)"
	ti.Prompt = "> "
	ti.PromptStyle = styles.Prompt
	ti.CharLimit = 2048
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.StepActive

	pb := progress.New(progress.WithDefaultGradient())

	vp := viewport.New(80, 12)

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	return Model{
		deps:      deps,
		styles:    styles,
		keys:      defaultKeyMap(),
		textinput: ti,
		viewport:  vp,
		spinner:   sp,
		progress:  pb,
		help:      help.New(),
		status:    stream.StatusConnecting,
		clock:     clock,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		waitSnapshot(m.deps.Snapshots),
		waitNotification(m.deps.Notifications),
	)
}

func waitSnapshot(ch <-chan task.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-ch
		if !ok {
			return feedClosed{}
		}
		return snapshotMsg(snap)
	}
}

func waitNotification(ch <-chan stream.Notification) tea.Cmd {
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return feedClosed{}
		}
		return notifMsg(n)
	}
}

func waitChatEvent(ch chan chatEvent) tea.Cmd {
	return func() tea.Msg {
		return chatEventMsg(<-ch)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			if m.chatCancel != nil {
				m.chatCancel()
			}
			return m, tea.Quit
		case key.Matches(msg, m.keys.Cancel):
			if m.chatting && m.chatCancel != nil {
				m.chatCancel()
			}
			return m, nil
		case key.Matches(msg, m.keys.Send):
			if !m.chatting {
				return m.submitChat()
			}
			return m, nil
		}

		var tiCmd, vpCmd tea.Cmd
		m.textinput, tiCmd = m.textinput.Update(msg)
		m.viewport, vpCmd = m.viewport.Update(msg)
		return m, tea.Batch(tiCmd, vpCmd)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = min(msg.Width-10, 50)
		m.viewport.Width = msg.Width - 2
		m.viewport.Height = max(msg.Height-m.chromeHeight(), 3)
		m.ready = true
		m.refreshViewport()
		return m, nil

	case snapshotMsg:
		m.snap = task.Snapshot(msg)
		m.viewport.Height = max(m.height-m.chromeHeight(), 3)
		m.refreshViewport()
		return m, waitSnapshot(m.deps.Snapshots)

	case notifMsg:
		n := stream.Notification(msg)
		switch n.Kind {
		case stream.KindStatus:
			m.status = n.Status
			if n.Status == stream.StatusConnected {
				m.statusNote = ""
			}
		case stream.KindError:
			if n.Err != nil {
				m.statusNote = n.Err.Error()
			}
		}
		return m, waitNotification(m.deps.Notifications)

	case chatEventMsg:
		return m.handleChatEvent(chatEvent(msg))

	case feedClosed:
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	var tiCmd tea.Cmd
	m.textinput, tiCmd = m.textinput.Update(msg)
	cmds = append(cmds, tiCmd)
	return m, tea.Batch(cmds...)
}

func (m Model) submitChat() (tea.Model, tea.Cmd) {
	question := strings.TrimSpace(m.textinput.Value())
	if question == "" || m.deps.Chat == nil {
		return m, nil
	}

	m.textinput.Reset()
	m.transcript = append(m.transcript, transcriptEntry{role: "user", content: question})
	m.pending = ""
	m.chatting = true

	ctx, cancel := context.WithCancel(context.Background())
	m.chatCancel = cancel
	ch := make(chan chatEvent, 16)
	m.chatCh = ch

	client := m.deps.Chat
	sessionID := m.deps.SessionID
	go func() {
		res, err := client.Stream(ctx, chat.Request{SessionID: sessionID, Message: question}, chat.Handlers{
			OnDelta: func(delta string) {
				select {
				case ch <- chatEvent{delta: delta}:
				case <-ctx.Done():
				}
			},
		})
		ch <- chatEvent{done: true, res: res, err: err}
	}()

	m.refreshViewport()
	return m, waitChatEvent(ch)
}

func (m Model) handleChatEvent(ev chatEvent) (tea.Model, tea.Cmd) {
	if ev.delta != "" && !ev.done {
		m.pending += ev.delta
		m.refreshViewport()
		return m, waitChatEvent(m.chatCh)
	}

	m.chatting = false
	if m.chatCancel != nil {
		m.chatCancel()
		m.chatCancel = nil
	}

	switch {
	case ev.err != nil:
		m.err = ev.err
		m.transcript = append(m.transcript, transcriptEntry{role: "agent", content: "Error: " + ev.err.Error()})
	case ev.res != nil:
		entry := transcriptEntry{role: "agent", content: ev.res.Content, sources: ev.res.Sources}
		m.transcript = append(m.transcript, entry)
		if m.deps.OnExchange != nil && len(m.transcript) >= 2 {
			question := m.transcript[len(m.transcript)-2].content
			m.deps.OnExchange(question, ev.res.Content, ev.res.Sources)
		}
	default:
		// Cancelled: the partial answer is discarded.
		m.transcript = append(m.transcript, transcriptEntry{role: "agent", content: "(cancelled)"})
	}
	m.pending = ""
	m.refreshViewport()
	return m, nil
}

func (m *Model) refreshViewport() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

