package protocol

// Event is one member of the closed set of semantic events the reducer
// consumes. Classification is a pure mapping; no state is kept here.
type Event interface {
	Kind() MessageType
}

type AgentStart struct{ AgentStartData }

func (AgentStart) Kind() MessageType { return MsgAgentStart }

type AgentComplete struct{ AgentCompleteData }

func (AgentComplete) Kind() MessageType { return MsgAgentComplete }

type AgentError struct{ AgentErrorData }

func (AgentError) Kind() MessageType { return MsgAgentError }

type PlanCreated struct{ PlanCreatedData }

func (PlanCreated) Kind() MessageType { return MsgPlanCreated }

type StepStart struct{ StepStartData }

func (StepStart) Kind() MessageType { return MsgStepStart }

type StepComplete struct{ StepCompleteData }

func (StepComplete) Kind() MessageType { return MsgStepComplete }

type ToolCall struct{ ToolCallData }

func (ToolCall) Kind() MessageType { return MsgToolCall }

// Category returns the display category for a step derived from this call.
func (t ToolCall) Category() StepCategory { return InferCategory(t.Tool) }

type ToolResult struct{ ToolResultData }

func (ToolResult) Kind() MessageType { return MsgToolResult }

type GoalCreated struct{ GoalCreatedData }

func (GoalCreated) Kind() MessageType { return MsgGoalCreated }

type GoalUpdated struct{ GoalUpdatedData }

func (GoalUpdated) Kind() MessageType { return MsgGoalUpdated }

type GoalCompleted struct{ GoalCompletedData }

func (GoalCompleted) Kind() MessageType { return MsgGoalCompleted }

type TokenStream struct{ TokenStreamData }

func (TokenStream) Kind() MessageType { return MsgTokenStream }

type ContentChunk struct{ ContentChunkData }

func (ContentChunk) Kind() MessageType { return MsgContentChunk }

type SessionUpdate struct{ SessionUpdateData }

func (SessionUpdate) Kind() MessageType { return MsgSessionUpdate }

// Classify maps a wire message onto its typed event. Unknown message types
// and connection-control frames (connected/pong/keepalive) return ok=false:
// no handler fires and no error is raised. A payload that fails to decode is
// likewise dropped.
func Classify(msg *Message) (Event, bool) {
	if msg == nil {
		return nil, false
	}
	switch msg.Type {
	case MsgAgentStart:
		var d AgentStartData
		if msg.ExtractData(&d) != nil {
			return nil, false
		}
		return AgentStart{d}, true
	case MsgAgentComplete:
		var d AgentCompleteData
		if msg.ExtractData(&d) != nil {
			return nil, false
		}
		return AgentComplete{d}, true
	case MsgAgentError:
		var d AgentErrorData
		if msg.ExtractData(&d) != nil {
			return nil, false
		}
		return AgentError{d}, true
	case MsgPlanCreated:
		var d PlanCreatedData
		if msg.ExtractData(&d) != nil {
			return nil, false
		}
		return PlanCreated{d}, true
	case MsgStepStart:
		var d StepStartData
		if msg.ExtractData(&d) != nil {
			return nil, false
		}
		return StepStart{d}, true
	case MsgStepComplete:
		var d StepCompleteData
		if msg.ExtractData(&d) != nil {
			return nil, false
		}
		return StepComplete{d}, true
	case MsgToolCall:
		var d ToolCallData
		if msg.ExtractData(&d) != nil {
			return nil, false
		}
		return ToolCall{d}, true
	case MsgToolResult:
		var d ToolResultData
		if msg.ExtractData(&d) != nil {
			return nil, false
		}
		return ToolResult{d}, true
	case MsgGoalCreated:
		var d GoalCreatedData
		if msg.ExtractData(&d) != nil {
			return nil, false
		}
		return GoalCreated{d}, true
	case MsgGoalUpdated:
		var d GoalUpdatedData
		if msg.ExtractData(&d) != nil {
			return nil, false
		}
		return GoalUpdated{d}, true
	case MsgGoalCompleted:
		var d GoalCompletedData
		if msg.ExtractData(&d) != nil {
			return nil, false
		}
		return GoalCompleted{d}, true
	case MsgTokenStream:
		var d TokenStreamData
		if msg.ExtractData(&d) != nil {
			return nil, false
		}
		return TokenStream{d}, true
	case MsgContentChunk:
		var d ContentChunkData
		if msg.ExtractData(&d) != nil {
			return nil, false
		}
		return ContentChunk{d}, true
	case MsgSessionUpdate:
		var d SessionUpdateData
		if msg.ExtractData(&d) != nil {
			return nil, false
		}
		return SessionUpdate{d}, true
	default:
		return nil, false
	}
}
