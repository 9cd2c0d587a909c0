package transport

import (
	"encoding/json"
	"testing"

	"github.com/terverakaaga-gif/frontend-support24-sub002/internal/presence"
	"github.com/terverakaaga-gif/frontend-support24-sub002/internal/store"
)

func TestParseEnvelope(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{"type":"message:new","payload":{"id":"m1"}}`))
	if err != nil {
		t.Fatalf("ParseEnvelope: %v", err)
	}
	if env.Type != EventMessageNew {
		t.Errorf("type = %q, want %q", env.Type, EventMessageNew)
	}

	if _, err := ParseEnvelope([]byte(`{"payload":{}}`)); err == nil {
		t.Error("envelope without type should be rejected")
	}
	if _, err := ParseEnvelope([]byte(`not json`)); err == nil {
		t.Error("invalid json should be rejected")
	}
}

func TestDecodePayloadValidation(t *testing.T) {
	cases := []struct {
		name    string
		envType string
		payload string
		out     func() any
		wantErr bool
	}{
		{"valid message", EventMessageNew, `{"id":"m1","conversationId":"c1","content":"hi"}`, func() any { return &store.Message{} }, false},
		{"message missing conversation", EventMessageNew, `{"id":"m1"}`, func() any { return &store.Message{} }, true},
		{"valid ack", EventMessageAck, `{"correlationId":"x","message":{"id":"m1","conversationId":"c1"}}`, func() any { return &AckPayload{} }, false},
		{"ack missing correlation", EventMessageAck, `{"message":{"id":"m1"}}`, func() any { return &AckPayload{} }, true},
		{"valid receipt", EventMessageReceipt, `{"conversationId":"c1","userId":"u1","status":"read"}`, func() any { return &ReceiptPayload{} }, false},
		{"receipt missing user", EventMessageReceipt, `{"conversationId":"c1"}`, func() any { return &ReceiptPayload{} }, true},
		{"presence snapshot", EventPresenceUpdate, `{"online":["u1"]}`, func() any { return &presence.Update{} }, false},
		{"presence delta", EventPresenceUpdate, `{"add":["u1"]}`, func() any { return &presence.Update{} }, false},
		{"presence empty", EventPresenceUpdate, `{}`, func() any { return &presence.Update{} }, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := Envelope{Type: tc.envType, Payload: json.RawMessage(tc.payload)}
			err := DecodePayload(env, tc.out())
			if tc.wantErr && err == nil {
				t.Error("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestEncodeCommandRoundtrip(t *testing.T) {
	data, err := EncodeCommand(CommandMessageSend, SendPayload{
		ConversationID: "c1",
		Content:        "hello",
		Type:           "text",
		CorrelationID:  "corr-1",
	})
	if err != nil {
		t.Fatalf("EncodeCommand: %v", err)
	}

	env, err := ParseEnvelope(data)
	if err != nil {
		t.Fatalf("ParseEnvelope: %v", err)
	}
	if env.Type != CommandMessageSend {
		t.Errorf("type = %q, want %q", env.Type, CommandMessageSend)
	}
	var send SendPayload
	if err := json.Unmarshal(env.Payload, &send); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if send.CorrelationID != "corr-1" || send.ConversationID != "c1" {
		t.Errorf("payload roundtrip mismatch: %+v", send)
	}
}
