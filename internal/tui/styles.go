package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary = lipgloss.Color("#7aa2f7")
	colorSuccess = lipgloss.Color("#9ece6a")
	colorWarning = lipgloss.Color("#e0af68")
	colorError   = lipgloss.Color("#f7768e")
	colorMuted   = lipgloss.Color("240")
	colorBorder  = lipgloss.Color("238")
)

// Styles holds the lipgloss styles shared across the watch view.
type Styles struct {
	Header       lipgloss.Style
	Title        lipgloss.Style
	StatusOK     lipgloss.Style
	StatusWarn   lipgloss.Style
	StatusError  lipgloss.Style
	StepDone     lipgloss.Style
	StepActive   lipgloss.Style
	StepPending  lipgloss.Style
	StepError    lipgloss.Style
	StepDetail   lipgloss.Style
	Goal         lipgloss.Style
	GoalDone     lipgloss.Style
	Content      lipgloss.Style
	Prompt       lipgloss.Style
	Help         lipgloss.Style
	Border       lipgloss.Style
	SourceTitle  lipgloss.Style
	SourceURL    lipgloss.Style
	UserMessage  lipgloss.Style
	AgentMessage lipgloss.Style
}

func DefaultStyles() Styles {
	return Styles{
		Header:       lipgloss.NewStyle().Bold(true).Foreground(colorPrimary),
		Title:        lipgloss.NewStyle().Bold(true),
		StatusOK:     lipgloss.NewStyle().Foreground(colorSuccess),
		StatusWarn:   lipgloss.NewStyle().Foreground(colorWarning),
		StatusError:  lipgloss.NewStyle().Foreground(colorError),
		StepDone:     lipgloss.NewStyle().Foreground(colorSuccess),
		StepActive:   lipgloss.NewStyle().Foreground(colorPrimary).Bold(true),
		StepPending:  lipgloss.NewStyle().Foreground(colorMuted),
		StepError:    lipgloss.NewStyle().Foreground(colorError),
		StepDetail:   lipgloss.NewStyle().Foreground(colorMuted).PaddingLeft(4),
		Goal:         lipgloss.NewStyle().Foreground(colorWarning),
		GoalDone:     lipgloss.NewStyle().Foreground(colorSuccess).Strikethrough(true),
		Content:      lipgloss.NewStyle().PaddingLeft(1),
		Prompt:       lipgloss.NewStyle().Foreground(colorPrimary),
		Help:         lipgloss.NewStyle().Foreground(colorMuted),
		Border:       lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderForeground(colorBorder),
		SourceTitle:  lipgloss.NewStyle().Foreground(colorPrimary),
		SourceURL:    lipgloss.NewStyle().Foreground(colorMuted).Underline(true),
		UserMessage:  lipgloss.NewStyle().Bold(true).Foreground(colorWarning),
		AgentMessage: lipgloss.NewStyle(),
	}
}
