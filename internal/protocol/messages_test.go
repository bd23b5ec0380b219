package protocol

import (
	"testing"
)

func TestParseMessageEnvelope(t *testing.T) {
	raw := []byte(`{"type":"connected","connection_id":"conn-42","session_id":"sess-1","data":{"connection_id":"conn-42"}}`)

	msg, err := ParseMessage(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if msg.Type != MsgConnected {
		t.Errorf("type = %q", msg.Type)
	}
	if msg.ConnectionID != "conn-42" {
		t.Errorf("connection_id = %q", msg.ConnectionID)
	}

	var d ConnectedData
	if err := msg.ExtractData(&d); err != nil {
		t.Fatalf("extract: %v", err)
	}
	if d.ConnectionID != "conn-42" {
		t.Errorf("data.connection_id = %q", d.ConnectionID)
	}
}

func TestParseMessageMalformed(t *testing.T) {
	if _, err := ParseMessage([]byte("not json")); err == nil {
		t.Fatal("expected error for malformed frame")
	}
}

func TestExtractDataNilPayload(t *testing.T) {
	msg := &Message{Type: MsgPong}
	var d ConnectedData
	if err := msg.ExtractData(&d); err != nil {
		t.Fatalf("nil payload should be a no-op, got %v", err)
	}
}

func TestPingRoundTrip(t *testing.T) {
	msg, err := NewMessage(MsgPing, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	b, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	back, err := ParseMessage(b)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if back.Type != MsgPing {
		t.Errorf("type = %q, want ping", back.Type)
	}
}
