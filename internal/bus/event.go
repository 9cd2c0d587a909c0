package bus

import "time"

// Event kinds published across the client. Subscribers filter by
// namespace prefix, e.g. "conn." for transport lifecycle only.
const (
	// Transport lifecycle (internal/transport).
	KindConnConnected    = "conn.connected"
	KindConnDisconnected = "conn.disconnected"
	KindConnReconnecting = "conn.reconnecting"
	KindConnFailed       = "conn.failed"
	KindConnStatus       = "conn.status_changed"

	// Raw server push events (internal/transport → internal/sync).
	KindRTMessage  = "rt.message"
	KindRTAck      = "rt.ack"
	KindRTReceipt  = "rt.receipt"
	KindRTPresence = "rt.presence"
	KindRTTyping   = "rt.typing"

	// Store-level changes (internal/sync → UI consumers).
	KindChatConversations = "chat.conversations"
	KindChatUpdated       = "chat.updated"
	KindChatMessages      = "chat.messages"
	KindChatPresence      = "chat.presence"
	KindChatSendAck       = "chat.send_ack"
	KindChatSendFailed    = "chat.send_failed"
	KindChatTyping        = "chat.typing"
)

// Event is a single notification delivered through the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
