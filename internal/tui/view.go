package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"marketpulse/internal/protocol"
	"marketpulse/internal/stream"
	"marketpulse/internal/task"
	"marketpulse/internal/timeutil"
)

func (m Model) View() string {
	if !m.ready {
		return "Starting..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderTask())
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.textinput.View())
	b.WriteString("\n")
	b.WriteString(m.styles.Help.Render(m.help.View(m.keys)))
	return b.String()
}

// chromeHeight is everything on screen except the transcript viewport.
func (m Model) chromeHeight() int {
	// header + status line + progress + steps + goals + input + help
	h := 5
	if m.snap.Task != nil {
		h += 2 + len(m.snap.Task.Steps)
	}
	h += len(m.snap.Goals)
	return h
}

func (m Model) renderHeader() string {
	title := m.styles.Header.Render("MarketPulse")
	session := m.styles.Help.Render("session " + m.deps.SessionID)

	var status string
	switch m.status {
	case stream.StatusConnected:
		status = m.styles.StatusOK.Render("● connected")
	case stream.StatusConnecting:
		status = m.styles.StatusWarn.Render("◌ connecting")
	case stream.StatusDisconnected:
		status = m.styles.StatusWarn.Render("○ disconnected")
	default:
		status = m.styles.StatusError.Render("✗ " + string(m.status))
	}
	if m.statusNote != "" && m.status != stream.StatusConnected {
		status += m.styles.Help.Render(" " + m.statusNote)
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, title, "  ", session, "  ", status)
}

func (m Model) renderTask() string {
	t := m.snap.Task
	if t == nil {
		return m.styles.Help.Render("No active run.") + "\n"
	}

	var b strings.Builder

	title := t.Title
	if title == "" {
		title = t.ID
	}
	b.WriteString(m.styles.Title.Render(title))
	b.WriteString("  ")
	b.WriteString(m.progress.ViewAs(float64(t.TotalProgress) / 100))
	b.WriteString(fmt.Sprintf(" %d%%", t.TotalProgress))
	b.WriteString("\n")

	for _, step := range t.Steps {
		b.WriteString(m.renderStep(step))
	}

	for _, g := range m.snap.Goals {
		style := m.styles.Goal
		if g.Status == protocol.StatusCompleted {
			style = m.styles.GoalDone
		}
		b.WriteString("  " + style.Render("◆ "+g.Title) + "\n")
	}

	b.WriteString("\n")
	return b.String()
}

func (m Model) renderStep(step task.Step) string {
	var icon, line string
	switch step.Status {
	case protocol.StatusCompleted:
		icon = m.styles.StepDone.Render("✓")
		line = m.styles.StepDone.Render(step.Title)
	case protocol.StatusError:
		icon = m.styles.StepError.Render("✗")
		line = m.styles.StepError.Render(step.Title)
	case protocol.StatusThinking, protocol.StatusExecuting:
		icon = m.spinner.View()
		line = m.styles.StepActive.Render(step.Title)
	default:
		icon = m.styles.StepPending.Render("○")
		line = m.styles.StepPending.Render(step.Title)
	}

	elapsed := timeutil.Elapsed(step.StartedAt, step.FinishedAt, m.clock())
	suffix := ""
	if elapsed > 0 {
		suffix = m.styles.Help.Render(" " + timeutil.FormatDuration(elapsed))
	}

	out := fmt.Sprintf("  %s %s%s\n", icon, line, suffix)

	if step.Status.Active() && len(step.Details) > 0 {
		out += m.styles.StepDetail.Render(step.Details[len(step.Details)-1]) + "\n"
	}
	return out
}

func (m Model) renderTranscript() string {
	var b strings.Builder

	for i, entry := range m.transcript {
		if i > 0 {
			b.WriteString("\n")
		}
		switch entry.role {
		case "user":
			b.WriteString(m.styles.UserMessage.Render("You: ") + entry.content + "\n")
		default:
			b.WriteString(m.styles.AgentMessage.Render(entry.content) + "\n")
			for _, src := range entry.sources {
				b.WriteString("  " + m.styles.SourceTitle.Render(src.Title))
				if src.URL != "" {
					b.WriteString(" " + m.styles.SourceURL.Render(src.URL))
				}
				b.WriteString("\n")
			}
		}
	}

	if m.chatting {
		b.WriteString("\n" + m.pending)
	}

	// Live token output from the agent run itself.
	if m.snap.Streaming && m.snap.Content != "" {
		b.WriteString("\n" + m.styles.Content.Render(m.snap.Content))
	}

	return b.String()
}
