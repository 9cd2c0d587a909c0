package transport

import (
	"encoding/json"
	"fmt"

	"github.com/terverakaaga-gif/frontend-support24-sub002/internal/presence"
	"github.com/terverakaaga-gif/frontend-support24-sub002/internal/store"
)

// Server → client event types.
const (
	EventConnected      = "connected"
	EventMessageNew     = "message:new"
	EventMessageAck     = "message:ack"
	EventMessageReceipt = "message:receipt"
	EventPresenceUpdate = "presence:update"
	EventTypingUpdate   = "typing:update"
	EventError          = "error"
)

// Client → server command types.
const (
	CommandMessageSend      = "message:send"
	CommandConversationJoin = "conversation:join"
)

// Envelope is the wire format in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ConnectedPayload is the handshake acknowledgment.
type ConnectedPayload struct {
	UserID string `json:"userId"`
}

// AckPayload confirms a previously emitted message:send, echoing the
// client's correlation id alongside the server-assigned record.
type AckPayload struct {
	CorrelationID string        `json:"correlationId"`
	Message       store.Message `json:"message"`
}

// ReceiptPayload reports a delivery or read receipt. MessageID is
// empty for conversation-wide read receipts.
type ReceiptPayload struct {
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId,omitempty"`
	UserID         string `json:"userId"`
	Status         string `json:"status"`
}

// TypingPayload reports a peer typing state change.
type TypingPayload struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	IsTyping       bool   `json:"isTyping"`
}

// ErrorPayload is a server-side error notification.
type ErrorPayload struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// SendPayload is the outgoing message command body.
type SendPayload struct {
	ConversationID string `json:"conversationId"`
	Content        string `json:"content"`
	Type           string `json:"type"`
	CorrelationID  string `json:"correlationId"`
}

// JoinPayload subscribes the connection to a conversation's room.
type JoinPayload struct {
	ConversationID string `json:"conversationId"`
}

// ParseEnvelope decodes a raw frame into an envelope. A frame without
// a type is malformed.
func ParseEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("envelope missing type")
	}
	return env, nil
}

// DecodePayload unmarshals an envelope payload into out, validating the
// minimum fields the sync engine depends on. Malformed payloads return
// an error so the caller can drop them without crashing consumers.
func DecodePayload(env Envelope, out any) error {
	if err := json.Unmarshal(env.Payload, out); err != nil {
		return fmt.Errorf("decode %s payload: %w", env.Type, err)
	}
	switch v := out.(type) {
	case *store.Message:
		if v.ID == "" || v.ConversationID == "" {
			return fmt.Errorf("%s payload missing id or conversationId", env.Type)
		}
	case *AckPayload:
		if v.CorrelationID == "" {
			return fmt.Errorf("%s payload missing correlationId", env.Type)
		}
	case *ReceiptPayload:
		if v.ConversationID == "" || v.UserID == "" {
			return fmt.Errorf("%s payload missing conversationId or userId", env.Type)
		}
	case *presence.Update:
		if v.Online == nil && v.Add == nil && v.Remove == nil {
			return fmt.Errorf("%s payload is neither snapshot nor delta", env.Type)
		}
	}
	return nil
}

// EncodeCommand builds the wire bytes for a client → server command.
func EncodeCommand(cmdType string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", cmdType, err)
	}
	return json.Marshal(Envelope{Type: cmdType, Payload: data})
}
