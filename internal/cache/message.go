package cache

import (
	"time"

	"github.com/terverakaaga-gif/frontend-support24-sub002/internal/store"
)

// UpsertMessage inserts or updates a server-confirmed message.
// Optimistic placeholders never reach the cache: a pending or failed
// message would resurrect as history on the next warm start.
func (db *DB) UpsertMessage(m *store.Message) error {
	if m.Status == store.StatusPending || m.Status == store.StatusFailed {
		return nil
	}
	_, err := db.Exec(`
		INSERT INTO messages (id, conversation_id, sender_id, sender_first_name, sender_profile_image, content, message_type, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			status = excluded.status`,
		m.ID, m.ConversationID, m.Sender.UserID, m.Sender.FirstName, m.Sender.ProfileImage,
		m.Content, m.Type, string(m.Status), m.CreatedAt.UnixMilli())
	return err
}

// ListMessages returns cached messages for a conversation in
// chronological order.
func (db *DB) ListMessages(conversationID string, limit int) ([]store.Message, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := db.Query(`
		SELECT id, conversation_id, sender_id, sender_first_name, sender_profile_image, content, message_type, status, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC
		LIMIT ?`, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []store.Message
	for rows.Next() {
		var (
			m         store.Message
			status    string
			createdAt int64
		)
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Sender.UserID, &m.Sender.FirstName, &m.Sender.ProfileImage, &m.Content, &m.Type, &status, &createdAt); err != nil {
			return nil, err
		}
		m.Status = store.MessageStatus(status)
		m.CreatedAt = time.UnixMilli(createdAt)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
