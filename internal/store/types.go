package store

import "time"

// ConversationType distinguishes one-to-one chats from group rooms.
type ConversationType string

const (
	ConversationDirect ConversationType = "direct"
	ConversationGroup  ConversationType = "group"
)

// Member is a conversation participant.
type Member struct {
	UserID       string `json:"userId"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Role         string `json:"role"`
	ProfileImage string `json:"profileImage"`
}

// LastMessage is the summary line shown in the conversation list.
type LastMessage struct {
	Content   string    `json:"content"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is a chat thread between two or more members.
type Conversation struct {
	ID             string           `json:"id"`
	Type           ConversationType `json:"type"`
	Name           string           `json:"name,omitempty"`
	Description    string           `json:"description,omitempty"`
	OrganizationID string           `json:"organizationId,omitempty"`
	Members        []Member         `json:"members"`
	LastMessage    *LastMessage     `json:"lastMessage,omitempty"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}

// sortTime is the key for conversation list ordering: the newer of
// updatedAt and the last message timestamp.
func (c *Conversation) sortTime() time.Time {
	t := c.UpdatedAt
	if c.LastMessage != nil && c.LastMessage.Timestamp.After(t) {
		t = c.LastMessage.Timestamp
	}
	return t
}

// MessageStatus is the delivery state of a message.
type MessageStatus string

const (
	StatusPending   MessageStatus = "pending"
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
	StatusFailed    MessageStatus = "failed"
)

// statusRank orders delivery states so receipts can never move a
// message backwards (a read message does not regress to delivered).
var statusRank = map[MessageStatus]int{
	StatusPending:   0,
	StatusFailed:    0,
	StatusSent:      1,
	StatusDelivered: 2,
	StatusRead:      3,
}

// Sender identifies the author of a message.
type Sender struct {
	UserID       string `json:"userId"`
	FirstName    string `json:"firstName"`
	ProfileImage string `json:"profileImage"`
}

// Message is a single chat message. CorrelationID is set on messages
// that originated locally; the server echoes it back in the ack so the
// pending placeholder can be replaced by the confirmed record.
type Message struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversationId"`
	Sender         Sender        `json:"sender"`
	Content        string        `json:"content"`
	Type           string        `json:"type"`
	Status         MessageStatus `json:"status"`
	CorrelationID  string        `json:"correlationId,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
}
