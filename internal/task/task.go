// Package task folds classified stream events into the single live task
// aggregate the progress UI renders.
package task

import (
	"time"

	"marketpulse/internal/protocol"
)

// Step is one unit of work within a Task.
type Step struct {
	ID          string
	Category    protocol.StepCategory
	Title       string
	Description string
	Status      protocol.Status
	Progress    float64
	StartedAt   time.Time
	FinishedAt  time.Time
	Details     []string
	Output      string
}

// Task is the active unit of work tracked by the reducer. Exactly one task
// is live at a time; a finished or superseded task moves to history.
type Task struct {
	ID            string
	Title         string
	Status        protocol.Status
	Steps         []Step
	TotalProgress int
	CurrentStep   int
	StartedAt     time.Time
	FinishedAt    time.Time
	Output        string
}

// Goal is a session-level objective reported alongside task progress.
type Goal struct {
	ID       string
	Title    string
	Status   protocol.Status
	Progress float64
}

// Snapshot is an immutable view of reducer state. Steps and goals are
// deep-copied so consumers can hold snapshots across further applications.
type Snapshot struct {
	Task      *Task
	History   []Task
	Goals     []Goal
	Content   string
	Streaming bool
	SessionID string
}

func copyStep(s Step) Step {
	out := s
	if len(s.Details) > 0 {
		out.Details = append([]string(nil), s.Details...)
	}
	return out
}

func copyTask(t *Task) *Task {
	if t == nil {
		return nil
	}
	out := *t
	out.Steps = make([]Step, len(t.Steps))
	for i, s := range t.Steps {
		out.Steps[i] = copyStep(s)
	}
	return &out
}

// ActiveStep returns the index of the first step still in flight, or -1.
func (t *Task) ActiveStep() int {
	if t == nil {
		return -1
	}
	for i := range t.Steps {
		if t.Steps[i].Status.Active() {
			return i
		}
	}
	return -1
}
