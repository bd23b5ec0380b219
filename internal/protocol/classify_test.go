package protocol

import (
	"encoding/json"
	"testing"
)

func mustMessage(t *testing.T, msgType MessageType, data any) *Message {
	t.Helper()
	msg, err := NewMessage(msgType, data)
	if err != nil {
		t.Fatalf("build %s message: %v", msgType, err)
	}
	return msg
}

func TestClassifyToolCall(t *testing.T) {
	msg := mustMessage(t, MsgToolCall, ToolCallData{
		Tool:   "web_search",
		Params: map[string]any{"query": "coffee shops austin"},
	})

	ev, ok := Classify(msg)
	if !ok {
		t.Fatal("expected tool_call to classify")
	}
	call, ok := ev.(ToolCall)
	if !ok {
		t.Fatalf("expected ToolCall, got %T", ev)
	}
	if call.Tool != "web_search" {
		t.Errorf("tool = %q, want web_search", call.Tool)
	}
	if call.Category() != CategorySearch {
		t.Errorf("category = %q, want search", call.Category())
	}
	if call.Params["query"] != "coffee shops austin" {
		t.Errorf("params not preserved: %v", call.Params)
	}
}

func TestClassifyUnknownType(t *testing.T) {
	for _, raw := range []MessageType{"mystery_event", MsgConnected, MsgPong, MsgKeepalive} {
		if ev, ok := Classify(&Message{Type: raw}); ok {
			t.Errorf("type %q classified to %T, want no handler", raw, ev)
		}
	}
}

func TestClassifyNilMessage(t *testing.T) {
	if _, ok := Classify(nil); ok {
		t.Error("nil message should not classify")
	}
}

func TestClassifyMalformedPayload(t *testing.T) {
	msg := &Message{Type: MsgPlanCreated, Data: json.RawMessage(`"not an object"`)}
	if _, ok := Classify(msg); ok {
		t.Error("malformed payload should be dropped")
	}
}

func TestClassifyContentChunk(t *testing.T) {
	msg := mustMessage(t, MsgContentChunk, ContentChunkData{Chunk: "Hello", IsFinal: false})
	ev, ok := Classify(msg)
	if !ok {
		t.Fatal("expected content_chunk to classify")
	}
	chunk := ev.(ContentChunk)
	if chunk.Chunk != "Hello" || chunk.IsFinal {
		t.Errorf("chunk = %+v", chunk)
	}
}

func TestInferCategory(t *testing.T) {
	cases := map[string]StepCategory{
		"web_search":       CategorySearch,
		"WebFetch":         CategorySearch,
		"analyze_market":   CategoryAnalyze,
		"tapestry_ANALYSIS": CategoryAnalyze,
		"generate_report":  CategoryGenerate,
		"create_slides":    CategoryGenerate,
		"verify_sources":   CategoryVerify,
		"fact_check":       CategoryVerify,
		"run_query":        CategoryExecute,
		"":                 CategoryExecute,
	}
	for tool, want := range cases {
		if got := InferCategory(tool); got != want {
			t.Errorf("InferCategory(%q) = %q, want %q", tool, got, want)
		}
	}
}

func TestMapStatus(t *testing.T) {
	cases := map[string]Status{
		"pending":     StatusPending,
		"thinking":    StatusThinking,
		"running":     StatusExecuting,
		"in_progress": StatusExecuting,
		"completed":   StatusCompleted,
		"DONE":        StatusCompleted,
		"failed":      StatusError,
		"error":       StatusError,
		"wat":         StatusExecuting,
	}
	for raw, want := range cases {
		if got := MapStatus(raw); got != want {
			t.Errorf("MapStatus(%q) = %q, want %q", raw, got, want)
		}
	}
}
