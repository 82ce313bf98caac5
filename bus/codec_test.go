package bus

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestValidateTopic(t *testing.T) {
	tests := []struct {
		topic   string
		wantErr bool
	}{
		{"system.file.search", false},
		{"conversation.abc-123", false},
		{"agent.music.generate", false},
		{"_INBOX.xyz", false},
		{"", true},
		{"has space", true},
		{"has\ttab", true},
		{"has\nnewline", true},
	}

	for _, tt := range tests {
		err := ValidateTopic(tt.topic)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateTopic(%q) = %v, wantErr %v", tt.topic, err, tt.wantErr)
		}
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	payloads := []Payload{
		{},
		{"text": "hi"},
		{"n": float64(42), "f": 3.5, "neg": float64(-7)},
		{"big": float64(1<<53 - 1)}, // largest exact integer in a double
		{"ok": true, "missing": nil},
		{"nested": map[string]any{"deep": map[string]any{"list": []any{"a", float64(1), false}}}},
		{"list": []any{nil, "x", map[string]any{"k": "v"}}},
		{"unicode": "héllo wörld 日本語"},
	}

	for _, p := range payloads {
		data, err := EncodePayload(p)
		if err != nil {
			t.Fatalf("EncodePayload(%v) error: %v", p, err)
		}
		got, err := DecodePayload(data)
		if err != nil {
			t.Fatalf("DecodePayload error: %v", err)
		}
		if !reflect.DeepEqual(got, p) {
			t.Errorf("round trip = %#v, want %#v", got, p)
		}
	}
}

func TestEncodePayloadDeterministic(t *testing.T) {
	p := Payload{"b": float64(2), "a": float64(1), "c": float64(3)}

	first, err := EncodePayload(p)
	if err != nil {
		t.Fatalf("EncodePayload error: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := EncodePayload(p)
		if err != nil {
			t.Fatalf("EncodePayload error: %v", err)
		}
		if string(again) != string(first) {
			t.Fatalf("encoding not deterministic: %s vs %s", again, first)
		}
	}
}

func TestDecodePayloadMalformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"truncated", []byte(`{"a":`)},
		{"not json", []byte("not json at all")},
		{"array top level", []byte(`[1,2,3]`)},
		{"string top level", []byte(`"hello"`)},
		{"null", []byte(`null`)},
	}

	for _, tt := range tests {
		_, err := DecodePayload(tt.data)
		if err == nil {
			t.Errorf("%s: expected error", tt.name)
			continue
		}
		var decodeErr *DecodeError
		if !errors.As(err, &decodeErr) {
			t.Errorf("%s: error %v is not *DecodeError", tt.name, err)
		}
		// A decode failure must not look like a timeout.
		if errors.Is(err, ErrTimeout) {
			t.Errorf("%s: decode error matches ErrTimeout", tt.name)
		}
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	env := &Envelope{
		Topic:         "system.file.search",
		Payload:       Payload{"query": "invoice"},
		CorrelationID: "corr-1",
		ReplyTo:       "_INBOX.abc",
	}

	data, err := encodeEnvelope(env)
	if err != nil {
		t.Fatalf("encodeEnvelope error: %v", err)
	}

	got, err := decodeEnvelope("system.file.search", data)
	if err != nil {
		t.Fatalf("decodeEnvelope error: %v", err)
	}
	if got.Topic != "system.file.search" {
		t.Errorf("topic = %q", got.Topic)
	}
	if got.CorrelationID != "corr-1" || got.ReplyTo != "_INBOX.abc" {
		t.Errorf("routing fields = %q, %q", got.CorrelationID, got.ReplyTo)
	}
	if got.Payload["query"] != "invoice" {
		t.Errorf("payload = %v", got.Payload)
	}
}

func TestEnvelopeReplyToRequiresCorrelationID(t *testing.T) {
	env := &Envelope{
		Topic:   "system.file.search",
		Payload: Payload{},
		ReplyTo: "_INBOX.abc",
	}

	if _, err := encodeEnvelope(env); err == nil {
		t.Error("expected error for reply_to without correlation_id")
	}
}

func TestEnvelopeEventOmitsRoutingFields(t *testing.T) {
	env := &Envelope{
		Topic:   "agent.music.generate",
		Payload: Payload{"prompt": "lofi"},
	}

	data, err := encodeEnvelope(env)
	if err != nil {
		t.Fatalf("encodeEnvelope error: %v", err)
	}

	wire := string(data)
	for _, field := range []string{"correlation_id", "reply_to"} {
		if strings.Contains(wire, field) {
			t.Errorf("event envelope carries %q: %s", field, wire)
		}
	}
}
