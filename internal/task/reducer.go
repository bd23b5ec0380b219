package task

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"marketpulse/internal/protocol"
)

// maxHistory bounds how many retired tasks a reducer retains.
const maxHistory = 8

// Reducer applies classified events as pure state transitions over one live
// task. It never returns an error: events that cannot be matched to current
// state are silent no-ops. Each Apply yields a fresh snapshot.
type Reducer struct {
	mu    sync.Mutex
	clock func() time.Time

	task      *Task
	history   []Task
	goals     []Goal
	content   strings.Builder
	streaming bool
	sessionID string
}

type Option func(*Reducer)

// WithClock injects a time source so transitions can be tested with fixed
// timestamps.
func WithClock(clock func() time.Time) Option {
	return func(r *Reducer) { r.clock = clock }
}

func NewReducer(opts ...Option) *Reducer {
	r := &Reducer{clock: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Apply folds one event into the reducer state and returns the resulting
// snapshot.
func (r *Reducer) Apply(ev protocol.Event) Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch e := ev.(type) {
	case protocol.AgentStart:
		r.applyAgentStart(e)
	case protocol.PlanCreated:
		r.applyPlanCreated(e)
	case protocol.StepStart:
		r.applyStepUpdate(e.StepID, e.Status, "executing", "")
	case protocol.StepComplete:
		r.applyStepUpdate(e.StepID, e.Status, "completed", e.Result)
	case protocol.ToolCall:
		r.applyToolCall(e)
	case protocol.ToolResult:
		r.applyToolResult(e)
	case protocol.AgentComplete:
		r.applyAgentDone(e.Success, e.Output)
	case protocol.AgentError:
		r.applyAgentDone(false, e.Error)
	case protocol.GoalCreated:
		r.applyGoalCreated(e)
	case protocol.GoalUpdated:
		r.applyGoalUpdated(e)
	case protocol.GoalCompleted:
		r.applyGoalCompleted(e)
	case protocol.TokenStream:
		r.content.WriteString(e.Token)
		r.streaming = true
	case protocol.ContentChunk:
		r.content.WriteString(e.Chunk)
		r.streaming = !e.IsFinal
	case protocol.SessionUpdate:
		r.sessionID = e.SessionID
	}

	return r.snapshotLocked()
}

// Snapshot returns the current state without applying an event.
func (r *Reducer) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Clear drops the live task, history, goals, and accumulated content.
func (r *Reducer) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.task = nil
	r.history = nil
	r.goals = nil
	r.content.Reset()
	r.streaming = false
}

func (r *Reducer) snapshotLocked() Snapshot {
	snap := Snapshot{
		Task:      copyTask(r.task),
		Content:   r.content.String(),
		Streaming: r.streaming,
		SessionID: r.sessionID,
	}
	if len(r.history) > 0 {
		snap.History = make([]Task, len(r.history))
		for i := range r.history {
			snap.History[i] = *copyTask(&r.history[i])
		}
	}
	if len(r.goals) > 0 {
		snap.Goals = append([]Goal(nil), r.goals...)
	}
	return snap
}

// applyAgentStart begins a new run. Tasks are strictly sequential: a start
// arriving while a task is still live explicitly retires the old task into
// history rather than overwriting it in place.
func (r *Reducer) applyAgentStart(e protocol.AgentStart) {
	r.retireCurrent()

	id := e.TaskID
	if id == "" {
		id = uuid.NewString()
	}
	title := e.Title
	if title == "" {
		title = e.Query
	}
	if title == "" {
		title = "Agent run"
	}
	r.task = &Task{
		ID:          id,
		Title:       title,
		Status:      protocol.StatusThinking,
		StartedAt:   r.clock(),
		CurrentStep: 0,
	}
	r.goals = nil
	r.content.Reset()
	r.streaming = false
}

func (r *Reducer) retireCurrent() {
	if r.task == nil {
		return
	}
	if !r.task.Status.Terminal() {
		now := r.clock()
		for i := range r.task.Steps {
			if r.task.Steps[i].Status.Active() {
				r.task.Steps[i].Status = protocol.StatusCompleted
				r.task.Steps[i].FinishedAt = now
			}
		}
		r.task.Status = protocol.StatusCompleted
		r.task.FinishedAt = now
		r.recompute()
	}
	r.history = append(r.history, *r.task)
	if len(r.history) > maxHistory {
		r.history = r.history[len(r.history)-maxHistory:]
	}
	r.task = nil
}

func (r *Reducer) applyPlanCreated(e protocol.PlanCreated) {
	if r.task == nil || r.task.Status.Terminal() {
		return
	}
	now := r.clock()
	steps := make([]Step, 0, len(e.Steps))
	for i, planned := range e.Steps {
		id := planned.ID
		if id == "" {
			id = fmt.Sprintf("step-%d", i+1)
		}
		category := protocol.CategoryPlan
		if planned.Category != "" {
			category = protocol.ParseCategory(planned.Category)
		}
		step := Step{
			ID:          id,
			Category:    category,
			Title:       planned.Title,
			Description: planned.Description,
			Status:      protocol.StatusPending,
		}
		if i == 0 {
			step.Status = protocol.StatusThinking
			step.StartedAt = now
		}
		steps = append(steps, step)
	}
	r.task.Steps = steps
	r.task.Status = protocol.StatusExecuting
	r.recompute()
}

// applyStepUpdate handles step_start and step_complete. Matching is by id
// first, falling back to the in-flight step so payloads without a known id
// still land on the active work item.
func (r *Reducer) applyStepUpdate(stepID, rawStatus, defaultStatus, result string) {
	if r.task == nil || r.task.Status.Terminal() {
		return
	}
	idx := r.findStep(stepID)
	if idx < 0 {
		idx = r.task.ActiveStep()
	}
	if idx < 0 {
		return
	}

	if rawStatus == "" {
		rawStatus = defaultStatus
	}
	status := protocol.MapStatus(rawStatus)
	now := r.clock()
	step := &r.task.Steps[idx]

	if status.Active() {
		// Single-active invariant: activating one step retires any other
		// step still in flight.
		for i := range r.task.Steps {
			if i != idx && r.task.Steps[i].Status.Active() {
				r.task.Steps[i].Status = protocol.StatusCompleted
				r.task.Steps[i].FinishedAt = now
			}
		}
	}

	step.Status = status
	if step.StartedAt.IsZero() && status != protocol.StatusPending {
		step.StartedAt = now
	}
	if status.Terminal() {
		step.FinishedAt = now
		if result != "" {
			step.Output = result
		}
		r.advanceSuccessor(idx, now)
	} else if result != "" {
		step.Output = result
	}
	r.recompute()
}

// findStep returns the index of the step with the given id, or -1 when the
// id is empty or unknown.
func (r *Reducer) findStep(stepID string) int {
	if stepID == "" {
		return -1
	}
	for i := range r.task.Steps {
		if r.task.Steps[i].ID == stepID {
			return i
		}
	}
	return -1
}

// advanceSuccessor moves the next pending step to thinking, which is what
// gives the UI the appearance of sequential execution.
func (r *Reducer) advanceSuccessor(idx int, now time.Time) {
	if idx+1 >= len(r.task.Steps) {
		return
	}
	next := &r.task.Steps[idx+1]
	if next.Status == protocol.StatusPending {
		next.Status = protocol.StatusThinking
		next.StartedAt = now
	}
}

func (r *Reducer) applyToolCall(e protocol.ToolCall) {
	if r.task == nil || r.task.Status.Terminal() {
		return
	}
	now := r.clock()
	if idx := r.task.ActiveStep(); idx >= 0 {
		// Tool calls against an in-flight step are sub-actions, not new steps.
		step := &r.task.Steps[idx]
		step.Details = append(step.Details, fmt.Sprintf("Calling %s...", e.Tool))
		if step.Status == protocol.StatusThinking {
			step.Status = protocol.StatusExecuting
		}
		r.recompute()
		return
	}
	r.task.Steps = append(r.task.Steps, Step{
		ID:        fmt.Sprintf("tool-%d", len(r.task.Steps)+1),
		Category:  e.Category(),
		Title:     e.Tool,
		Status:    protocol.StatusExecuting,
		StartedAt: now,
	})
	r.task.Status = protocol.StatusExecuting
	r.recompute()
}

func (r *Reducer) applyToolResult(e protocol.ToolResult) {
	if r.task == nil || r.task.Status.Terminal() {
		return
	}
	idx := r.matchToolStep(e.Tool)
	if idx < 0 {
		return
	}
	step := &r.task.Steps[idx]
	if e.Success {
		step.Status = protocol.StatusCompleted
	} else {
		step.Status = protocol.StatusError
	}
	step.FinishedAt = r.clock()
	if e.Output != "" {
		step.Output = e.Output
	}
	r.recompute()
}

// matchToolStep resolves a tool_result to the in-flight step whose title
// contains the tool name. The backend does not correlate results to calls
// by id, so this substring match is a compatibility shim; replace it with
// an id join if the wire contract ever grows one. Keep the rest of the
// reducer free of this assumption.
func (r *Reducer) matchToolStep(tool string) int {
	needle := strings.ToLower(tool)
	for i := range r.task.Steps {
		step := &r.task.Steps[i]
		if step.Status != protocol.StatusExecuting {
			continue
		}
		if strings.Contains(strings.ToLower(step.Title), needle) {
			return i
		}
	}
	return -1
}

func (r *Reducer) applyAgentDone(success bool, output string) {
	if r.task == nil || r.task.Status.Terminal() {
		return
	}
	now := r.clock()
	terminal := protocol.StatusCompleted
	if !success {
		terminal = protocol.StatusError
	}
	for i := range r.task.Steps {
		step := &r.task.Steps[i]
		if step.Status.Active() {
			step.Status = terminal
			step.FinishedAt = now
			if output != "" {
				step.Output = output
			}
		}
	}
	r.task.Status = terminal
	r.task.FinishedAt = now
	r.task.Output = output
	r.streaming = false
	r.recompute()
}

func (r *Reducer) applyGoalCreated(e protocol.GoalCreated) {
	for i := range r.goals {
		if r.goals[i].ID == e.GoalID {
			r.goals[i].Title = e.Title
			return
		}
	}
	r.goals = append(r.goals, Goal{ID: e.GoalID, Title: e.Title, Status: protocol.StatusPending})
}

func (r *Reducer) applyGoalUpdated(e protocol.GoalUpdated) {
	for i := range r.goals {
		if r.goals[i].ID != e.GoalID {
			continue
		}
		if e.Status != "" {
			r.goals[i].Status = protocol.MapStatus(e.Status)
		}
		if e.Progress > 0 {
			r.goals[i].Progress = e.Progress
		}
		return
	}
}

func (r *Reducer) applyGoalCompleted(e protocol.GoalCompleted) {
	for i := range r.goals {
		if r.goals[i].ID == e.GoalID {
			r.goals[i].Status = protocol.StatusCompleted
			r.goals[i].Progress = 100
			return
		}
	}
}

// recompute rederives total progress and the current step index. Progress
// is never stored independently of the steps.
func (r *Reducer) recompute() {
	t := r.task
	if t == nil {
		return
	}
	if len(t.Steps) == 0 {
		t.TotalProgress = 0
		if t.Status == protocol.StatusCompleted {
			t.TotalProgress = 100
		}
		return
	}
	completed := 0
	for i := range t.Steps {
		if t.Steps[i].Status == protocol.StatusCompleted {
			completed++
		}
	}
	t.TotalProgress = int(math.Round(100 * float64(completed) / float64(len(t.Steps))))
	if idx := t.ActiveStep(); idx >= 0 {
		t.CurrentStep = idx
	}
}
