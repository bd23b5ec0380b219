package protocol

import (
	"encoding/json"
	"time"
)

type MessageType string

const (
	// Agent lifecycle messages
	MsgAgentStart    MessageType = "agent_start"
	MsgAgentComplete MessageType = "agent_complete"
	MsgAgentError    MessageType = "agent_error"

	// Execution messages
	MsgPlanCreated  MessageType = "plan_created"
	MsgStepStart    MessageType = "step_start"
	MsgStepComplete MessageType = "step_complete"
	MsgToolCall     MessageType = "tool_call"
	MsgToolResult   MessageType = "tool_result"

	// Goal tracking messages
	MsgGoalCreated   MessageType = "goal_created"
	MsgGoalUpdated   MessageType = "goal_updated"
	MsgGoalCompleted MessageType = "goal_completed"

	// Content messages
	MsgTokenStream  MessageType = "token_stream"
	MsgContentChunk MessageType = "content_chunk"

	// Session and connection control messages
	MsgSessionUpdate MessageType = "session_update"
	MsgConnected     MessageType = "connected"
	MsgPong          MessageType = "pong"
	MsgKeepalive     MessageType = "keepalive"

	// Outbound keepalive
	MsgPing MessageType = "ping"
)

// Message is the envelope for every frame on the event stream.
type Message struct {
	Type         MessageType     `json:"type"`
	Timestamp    time.Time       `json:"timestamp,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
	ConnectionID string          `json:"connection_id,omitempty"`
	SessionID    string          `json:"session_id,omitempty"`
}

// AgentStartData announces a new agent run.
type AgentStartData struct {
	TaskID string `json:"task_id,omitempty"`
	Title  string `json:"title,omitempty"`
	Query  string `json:"query,omitempty"`
}

// AgentCompleteData terminates a run, successfully or not.
type AgentCompleteData struct {
	Success bool   `json:"success"`
	Output  string `json:"output,omitempty"`
}

type AgentErrorData struct {
	Error string `json:"error"`
}

// PlannedStep is one entry of a plan_created payload.
type PlannedStep struct {
	ID          string `json:"id,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
}

type PlanCreatedData struct {
	Steps []PlannedStep `json:"steps"`
}

type StepStartData struct {
	StepID string `json:"step_id"`
	Title  string `json:"title,omitempty"`
	Status string `json:"status,omitempty"`
}

type StepCompleteData struct {
	StepID string `json:"step_id"`
	Status string `json:"status,omitempty"`
	Result string `json:"result,omitempty"`
}

type ToolCallData struct {
	Tool   string         `json:"tool"`
	Params map[string]any `json:"params,omitempty"`
}

type ToolResultData struct {
	Tool    string `json:"tool"`
	Success bool   `json:"success"`
	Output  string `json:"output,omitempty"`
}

type GoalCreatedData struct {
	GoalID string `json:"goal_id"`
	Title  string `json:"title"`
}

type GoalUpdatedData struct {
	GoalID   string  `json:"goal_id"`
	Status   string  `json:"status,omitempty"`
	Progress float64 `json:"progress,omitempty"`
}

type GoalCompletedData struct {
	GoalID string `json:"goal_id"`
}

type TokenStreamData struct {
	Token string `json:"token"`
}

type ContentChunkData struct {
	Chunk   string `json:"chunk"`
	IsFinal bool   `json:"is_final"`
}

type SessionUpdateData struct {
	SessionID string `json:"session_id"`
	Title     string `json:"title,omitempty"`
}

// ConnectedData carries the server-assigned connection id. This is the only
// payload the connection manager itself interprets.
type ConnectedData struct {
	ConnectionID string `json:"connection_id"`
}

func NewMessage(msgType MessageType, data any) (*Message, error) {
	msg := &Message{Type: msgType, Timestamp: time.Now()}
	if data != nil {
		dataBytes, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		msg.Data = dataBytes
	}
	return msg, nil
}

// ParseMessage parses a JSON frame into a Message envelope.
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ExtractData extracts the data field into the provided value.
func (m *Message) ExtractData(v any) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

func (m *Message) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}
