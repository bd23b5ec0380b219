package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketpulse/internal/protocol"
)

func testClock() func() time.Time {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func newTestReducer() *Reducer {
	return NewReducer(WithClock(testClock()))
}

func start(r *Reducer, title string) Snapshot {
	return r.Apply(protocol.AgentStart{AgentStartData: protocol.AgentStartData{TaskID: "t1", Title: title}})
}

func plan(r *Reducer, titles ...string) Snapshot {
	steps := make([]protocol.PlannedStep, len(titles))
	for i, title := range titles {
		steps[i] = protocol.PlannedStep{Title: title}
	}
	return r.Apply(protocol.PlanCreated{PlanCreatedData: protocol.PlanCreatedData{Steps: steps}})
}

func completeStep(r *Reducer, id string) Snapshot {
	return r.Apply(protocol.StepComplete{StepCompleteData: protocol.StepCompleteData{StepID: id, Status: "completed"}})
}

func countActive(t *Task) int {
	n := 0
	for _, s := range t.Steps {
		if s.Status.Active() {
			n++
		}
	}
	return n
}

func TestAgentStartCreatesThinkingTask(t *testing.T) {
	r := newTestReducer()
	snap := start(r, "Market scan")

	require.NotNil(t, snap.Task)
	assert.Equal(t, "t1", snap.Task.ID)
	assert.Equal(t, "Market scan", snap.Task.Title)
	assert.Equal(t, protocol.StatusThinking, snap.Task.Status)
	assert.Empty(t, snap.Task.Steps)
	assert.Equal(t, 0, snap.Task.TotalProgress)
}

func TestPlanCreatedReplacesSteps(t *testing.T) {
	r := newTestReducer()
	start(r, "run")
	snap := plan(r, "Gather demographics", "Segment analysis", "Write summary")

	require.Len(t, snap.Task.Steps, 3)
	assert.Equal(t, protocol.StatusExecuting, snap.Task.Status)
	assert.Equal(t, protocol.StatusThinking, snap.Task.Steps[0].Status)
	assert.False(t, snap.Task.Steps[0].StartedAt.IsZero())
	assert.Equal(t, protocol.StatusPending, snap.Task.Steps[1].Status)
	assert.Equal(t, protocol.StatusPending, snap.Task.Steps[2].Status)
}

func TestFullRunScenario(t *testing.T) {
	// agent_start -> plan(3) -> step_complete(1) -> step_complete(2) ->
	// agent_complete(success) must leave a completed task at 100% with the
	// auto-advanced third step force-completed.
	r := newTestReducer()
	start(r, "run")
	plan(r, "one", "two", "three")
	completeStep(r, "step-1")
	snap := completeStep(r, "step-2")

	// Auto-advance: step 3 should now be thinking.
	assert.Equal(t, protocol.StatusThinking, snap.Task.Steps[2].Status)
	assert.Equal(t, 67, snap.Task.TotalProgress)
	assert.Equal(t, 2, snap.Task.CurrentStep)

	snap = r.Apply(protocol.AgentComplete{AgentCompleteData: protocol.AgentCompleteData{Success: true, Output: "done"}})
	assert.Equal(t, protocol.StatusCompleted, snap.Task.Status)
	assert.Equal(t, 100, snap.Task.TotalProgress)
	assert.Equal(t, protocol.StatusCompleted, snap.Task.Steps[2].Status)
	assert.Equal(t, "done", snap.Task.Steps[2].Output)
	assert.False(t, snap.Task.Steps[2].FinishedAt.IsZero())
}

func TestToolCallScenario(t *testing.T) {
	// tool_call with no active step appends a new executing step with an
	// inferred category; a matching tool_result completes it and attaches
	// its output.
	r := newTestReducer()
	start(r, "run")

	snap := r.Apply(protocol.ToolCall{ToolCallData: protocol.ToolCallData{
		Tool:   "web_search",
		Params: map[string]any{"query": "X"},
	}})
	require.Len(t, snap.Task.Steps, 1)
	assert.Equal(t, protocol.CategorySearch, snap.Task.Steps[0].Category)
	assert.Equal(t, protocol.StatusExecuting, snap.Task.Steps[0].Status)

	snap = r.Apply(protocol.ToolResult{ToolResultData: protocol.ToolResultData{
		Tool: "web_search", Success: true, Output: "10 results",
	}})
	assert.Equal(t, protocol.StatusCompleted, snap.Task.Steps[0].Status)
	assert.Equal(t, "10 results", snap.Task.Steps[0].Output)
}

func TestToolCallAgainstActiveStepAppendsDetail(t *testing.T) {
	r := newTestReducer()
	start(r, "run")
	plan(r, "research", "summarize")

	snap := r.Apply(protocol.ToolCall{ToolCallData: protocol.ToolCallData{Tool: "tapestry_lookup"}})
	require.Len(t, snap.Task.Steps, 2, "tool call must not create a new step while one is active")
	require.Len(t, snap.Task.Steps[0].Details, 1)
	assert.Equal(t, "Calling tapestry_lookup...", snap.Task.Steps[0].Details[0])
	assert.Equal(t, protocol.StatusExecuting, snap.Task.Steps[0].Status)
}

func TestFailedToolResultMarksStepError(t *testing.T) {
	r := newTestReducer()
	start(r, "run")
	r.Apply(protocol.ToolCall{ToolCallData: protocol.ToolCallData{Tool: "fetch_report"}})

	snap := r.Apply(protocol.ToolResult{ToolResultData: protocol.ToolResultData{
		Tool: "fetch_report", Success: false, Output: "upstream 500",
	}})
	assert.Equal(t, protocol.StatusError, snap.Task.Steps[0].Status)
	assert.Equal(t, "upstream 500", snap.Task.Steps[0].Output)
}

func TestStepUpdateMatchesByIDThenFallsBack(t *testing.T) {
	r := newTestReducer()
	start(r, "run")
	plan(r, "a", "b", "c")

	// An explicit id lands on that step even though step 1 is the active one.
	snap := completeStep(r, "step-2")
	assert.Equal(t, protocol.StatusCompleted, snap.Task.Steps[1].Status)

	// An empty or unknown id falls back to the in-flight step.
	snap = completeStep(r, "")
	assert.Equal(t, protocol.StatusCompleted, snap.Task.Steps[0].Status)
	snap = completeStep(r, "no-such-step")
	assert.Equal(t, protocol.StatusCompleted, snap.Task.Steps[2].Status)
}

func TestSingleActiveStepInvariant(t *testing.T) {
	r := newTestReducer()
	start(r, "run")
	plan(r, "a", "b", "c")

	// Repeated step_start for the same step must not create a second
	// active step; starting a later step retires the earlier one.
	events := []protocol.Event{
		protocol.StepStart{StepStartData: protocol.StepStartData{StepID: "step-1"}},
		protocol.StepStart{StepStartData: protocol.StepStartData{StepID: "step-1"}},
		protocol.StepStart{StepStartData: protocol.StepStartData{StepID: "step-2"}},
		protocol.StepComplete{StepCompleteData: protocol.StepCompleteData{StepID: "step-2"}},
	}
	for _, ev := range events {
		snap := r.Apply(ev)
		assert.LessOrEqual(t, countActive(snap.Task), 1, "event %T", ev)
	}
}

func TestProgressFormulaHoldsAfterEveryApplication(t *testing.T) {
	r := newTestReducer()
	events := []protocol.Event{
		protocol.AgentStart{AgentStartData: protocol.AgentStartData{TaskID: "t"}},
		protocol.PlanCreated{PlanCreatedData: protocol.PlanCreatedData{Steps: []protocol.PlannedStep{
			{Title: "a"}, {Title: "b"}, {Title: "c"}, {Title: "d"},
		}}},
		protocol.StepComplete{StepCompleteData: protocol.StepCompleteData{StepID: "step-1"}},
		protocol.ToolCall{ToolCallData: protocol.ToolCallData{Tool: "analyze_geo"}},
		protocol.StepComplete{StepCompleteData: protocol.StepCompleteData{StepID: "step-2"}},
		protocol.StepStart{StepStartData: protocol.StepStartData{StepID: "step-4"}},
		protocol.AgentComplete{AgentCompleteData: protocol.AgentCompleteData{Success: true}},
	}
	for _, ev := range events {
		snap := r.Apply(ev)
		tk := snap.Task
		require.NotNil(t, tk)
		assert.GreaterOrEqual(t, tk.TotalProgress, 0)
		assert.LessOrEqual(t, tk.TotalProgress, 100)
		if len(tk.Steps) > 0 {
			completed := 0
			for _, s := range tk.Steps {
				if s.Status == protocol.StatusCompleted {
					completed++
				}
			}
			want := int(float64(100*completed)/float64(len(tk.Steps)) + 0.5)
			assert.Equal(t, want, tk.TotalProgress, "event %T", ev)
		}
	}
}

func TestUnknownEventsLeaveStateUnchanged(t *testing.T) {
	r := newTestReducer()
	start(r, "run")
	before := plan(r, "a", "b")

	// Events that cannot match current state are silent no-ops.
	after := r.Apply(protocol.ToolResult{ToolResultData: protocol.ToolResultData{Tool: "never_called", Success: true}})
	assert.Equal(t, before.Task, after.Task)

	after = r.Apply(protocol.GoalUpdated{GoalUpdatedData: protocol.GoalUpdatedData{GoalID: "missing"}})
	assert.Equal(t, before.Task, after.Task)
}

func TestAgentErrorMarksActiveStepsError(t *testing.T) {
	r := newTestReducer()
	start(r, "run")
	plan(r, "a", "b")

	snap := r.Apply(protocol.AgentError{AgentErrorData: protocol.AgentErrorData{Error: "backend gone"}})
	assert.Equal(t, protocol.StatusError, snap.Task.Status)
	assert.Equal(t, protocol.StatusError, snap.Task.Steps[0].Status)
	assert.Equal(t, "backend gone", snap.Task.Steps[0].Output)
	// The untouched pending step stays pending.
	assert.Equal(t, protocol.StatusPending, snap.Task.Steps[1].Status)
}

func TestNewStartRetiresLiveTaskExplicitly(t *testing.T) {
	r := newTestReducer()
	start(r, "first")
	plan(r, "a")

	snap := r.Apply(protocol.AgentStart{AgentStartData: protocol.AgentStartData{TaskID: "t2", Title: "second"}})
	require.NotNil(t, snap.Task)
	assert.Equal(t, "t2", snap.Task.ID)
	require.Len(t, snap.History, 1)
	assert.Equal(t, "t1", snap.History[0].ID)
	assert.True(t, snap.History[0].Status.Terminal())
}

func TestContentChunkAccumulation(t *testing.T) {
	r := newTestReducer()
	start(r, "run")

	snap := r.Apply(protocol.ContentChunk{ContentChunkData: protocol.ContentChunkData{Chunk: "Hello", IsFinal: false}})
	assert.Equal(t, "Hello", snap.Content)
	assert.True(t, snap.Streaming)

	snap = r.Apply(protocol.ContentChunk{ContentChunkData: protocol.ContentChunkData{Chunk: " world", IsFinal: true}})
	assert.Equal(t, "Hello world", snap.Content)
	assert.False(t, snap.Streaming)
}

func TestGoalLifecycle(t *testing.T) {
	r := newTestReducer()
	start(r, "run")

	r.Apply(protocol.GoalCreated{GoalCreatedData: protocol.GoalCreatedData{GoalID: "g1", Title: "Find top segments"}})
	snap := r.Apply(protocol.GoalUpdated{GoalUpdatedData: protocol.GoalUpdatedData{GoalID: "g1", Status: "in_progress", Progress: 40}})
	require.Len(t, snap.Goals, 1)
	assert.Equal(t, protocol.StatusExecuting, snap.Goals[0].Status)
	assert.Equal(t, 40.0, snap.Goals[0].Progress)

	snap = r.Apply(protocol.GoalCompleted{GoalCompletedData: protocol.GoalCompletedData{GoalID: "g1"}})
	assert.Equal(t, protocol.StatusCompleted, snap.Goals[0].Status)
	assert.Equal(t, 100.0, snap.Goals[0].Progress)
}

func TestSnapshotIsolation(t *testing.T) {
	r := newTestReducer()
	start(r, "run")
	snapA := plan(r, "a", "b")

	completeStep(r, "step-1")
	assert.Equal(t, protocol.StatusThinking, snapA.Task.Steps[0].Status,
		"earlier snapshot must not observe later mutations")

	snapA.Task.Steps[0].Title = "mutated"
	snapB := r.Snapshot()
	assert.Equal(t, "a", snapB.Task.Steps[0].Title,
		"mutating a snapshot must not leak into reducer state")
}

func TestClear(t *testing.T) {
	r := newTestReducer()
	start(r, "run")
	plan(r, "a")
	r.Clear()

	snap := r.Snapshot()
	assert.Nil(t, snap.Task)
	assert.Empty(t, snap.History)
	assert.Empty(t, snap.Content)

	// Events after clear that need a task are no-ops, not panics.
	snap = completeStep(r, "step-1")
	assert.Nil(t, snap.Task)
}
