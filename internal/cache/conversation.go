package cache

import (
	"encoding/json"
	"time"

	"github.com/terverakaaga-gif/frontend-support24-sub002/internal/store"
)

// UpsertConversation inserts or updates one conversation record.
func (db *DB) UpsertConversation(c *store.Conversation) error {
	members, err := json.Marshal(c.Members)
	if err != nil {
		return err
	}
	var lastContent, lastSender string
	var lastAt int64
	if c.LastMessage != nil {
		lastContent = c.LastMessage.Content
		lastSender = c.LastMessage.Sender
		lastAt = c.LastMessage.Timestamp.UnixMilli()
	}
	_, err = db.Exec(`
		INSERT INTO conversations (id, type, name, description, organization_id, members_json, last_message_content, last_message_sender, last_message_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			name = excluded.name,
			description = excluded.description,
			organization_id = excluded.organization_id,
			members_json = excluded.members_json,
			last_message_content = excluded.last_message_content,
			last_message_sender = excluded.last_message_sender,
			last_message_at = excluded.last_message_at,
			updated_at = excluded.updated_at`,
		c.ID, string(c.Type), c.Name, c.Description, c.OrganizationID, string(members),
		lastContent, lastSender, lastAt, c.UpdatedAt.UnixMilli())
	return err
}

// ListConversations returns cached conversations, most recently updated
// first.
func (db *DB) ListConversations() ([]store.Conversation, error) {
	rows, err := db.Query(`
		SELECT id, type, name, description, organization_id, members_json, last_message_content, last_message_sender, last_message_at, updated_at
		FROM conversations
		ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var convs []store.Conversation
	for rows.Next() {
		var (
			c           store.Conversation
			typ         string
			members     string
			lastContent string
			lastSender  string
			lastAt      int64
			updatedAt   int64
		)
		if err := rows.Scan(&c.ID, &typ, &c.Name, &c.Description, &c.OrganizationID, &members, &lastContent, &lastSender, &lastAt, &updatedAt); err != nil {
			return nil, err
		}
		c.Type = store.ConversationType(typ)
		if err := json.Unmarshal([]byte(members), &c.Members); err != nil {
			return nil, err
		}
		c.UpdatedAt = time.UnixMilli(updatedAt)
		if lastAt > 0 || lastContent != "" {
			c.LastMessage = &store.LastMessage{
				Content:   lastContent,
				Sender:    lastSender,
				Timestamp: time.UnixMilli(lastAt),
			}
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}
