package store

import (
	"slices"
	"sort"
	"strings"
	"sync"
)

// Store is the canonical in-memory chat state: conversation list,
// the open conversation with its message buffer, and the presence set.
// It is constructed per session and mutated only by the sync engine;
// UI code reads snapshots.
//
// All mutations hold the lock for their full duration, so readers never
// observe a half-applied change (e.g. a pending placeholder and its
// confirmed replacement at the same time).
type Store struct {
	mu            sync.RWMutex
	conversations []Conversation
	current       *Conversation
	messages      []Message
	online        map[string]struct{}

	loadingConversations bool
	loadingMessages      bool
	conversationsErr     error
	messagesErr          error
}

// New creates an empty store.
func New() *Store {
	return &Store{online: make(map[string]struct{})}
}

// Snapshot is a read-only copy of the store state.
type Snapshot struct {
	Conversations        []Conversation
	CurrentConversation  *Conversation
	Messages             []Message
	OnlineUsers          []string
	LoadingConversations bool
	LoadingMessages      bool
	ConversationsErr     error
	MessagesErr          error
}

// Snapshot returns a copy of the current state. The slices are fresh;
// callers may keep them across further mutations.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Conversations:        slices.Clone(s.conversations),
		Messages:             slices.Clone(s.messages),
		OnlineUsers:          s.onlineLocked(),
		LoadingConversations: s.loadingConversations,
		LoadingMessages:      s.loadingMessages,
		ConversationsErr:     s.conversationsErr,
		MessagesErr:          s.messagesErr,
	}
	if s.current != nil {
		cur := *s.current
		snap.CurrentConversation = &cur
	}
	return snap
}

// SetConversations replaces the conversation list. Duplicate ids keep
// the entry with the newest sort time; the list is ordered newest
// first, ties broken by id for determinism.
func (s *Store) SetConversations(list []Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID := make(map[string]Conversation, len(list))
	for _, c := range list {
		if prev, ok := byID[c.ID]; ok && prev.sortTime().After(c.sortTime()) {
			continue
		}
		byID[c.ID] = c
	}
	deduped := make([]Conversation, 0, len(byID))
	for _, c := range byID {
		deduped = append(deduped, c)
	}
	sortConversations(deduped)
	s.conversations = deduped
	s.conversationsErr = nil

	// Keep the current pointer in sync with the fresh list.
	if s.current != nil {
		if c, ok := byID[s.current.ID]; ok {
			cur := c
			s.current = &cur
		}
	}
}

// UpsertConversation inserts or updates a single conversation and
// moves it to its ordered position.
func (s *Store) UpsertConversation(conv Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertLocked(conv)
}

func (s *Store) upsertLocked(conv Conversation) {
	s.conversations = slices.DeleteFunc(s.conversations, func(c Conversation) bool {
		return c.ID == conv.ID
	})
	// Entries are sorted newest first; find the insertion point.
	idx := sort.Search(len(s.conversations), func(i int) bool {
		ci := &s.conversations[i]
		if !ci.sortTime().Equal(conv.sortTime()) {
			return ci.sortTime().Before(conv.sortTime())
		}
		return ci.ID >= conv.ID
	})
	s.conversations = slices.Insert(s.conversations, idx, conv)

	if s.current != nil && s.current.ID == conv.ID {
		cur := conv
		s.current = &cur
	}
}

// TouchConversation updates a conversation's summary (last message and
// updatedAt) and re-positions it. Used for push events targeting
// conversations that are not currently open; returns false when the
// conversation is unknown.
func (s *Store) TouchConversation(conversationID string, last LastMessage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.conversations, func(c Conversation) bool {
		return c.ID == conversationID
	})
	if idx < 0 {
		return false
	}
	conv := s.conversations[idx]
	conv.LastMessage = &last
	if last.Timestamp.After(conv.UpdatedAt) {
		conv.UpdatedAt = last.Timestamp
	}
	s.upsertLocked(conv)
	return true
}

// SetCurrentConversation switches the open conversation and clears the
// scoped message buffer. Passing nil closes the current conversation.
func (s *Store) SetCurrentConversation(conv *Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conv == nil {
		s.current = nil
	} else {
		cur := *conv
		s.current = &cur
	}
	s.messages = nil
	s.messagesErr = nil
}

// CurrentConversation returns a copy of the open conversation, or nil.
func (s *Store) CurrentConversation() *Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	cur := *s.current
	return &cur
}

// Conversation returns a copy of the conversation with the given id.
func (s *Store) Conversation(id string) (Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.conversations {
		if c.ID == id {
			return c, true
		}
	}
	return Conversation{}, false
}

// Conversations returns a copy of the ordered conversation list.
func (s *Store) Conversations() []Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.conversations)
}

// SetMessages replaces the message buffer for the open conversation.
// Messages are ordered by createdAt ascending and de-duplicated by id
// (first occurrence wins).
func (s *Store) SetMessages(list []Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(list))
	msgs := make([]Message, 0, len(list))
	for _, m := range list {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		msgs = append(msgs, m)
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	s.messages = msgs
	s.messagesErr = nil
}

// AppendMessage inserts a message into the buffer. If a placeholder
// with the same correlation id exists it is replaced at its current
// position; if the id is already present the call is a no-op. New
// messages are inserted at the position that keeps createdAt
// non-decreasing. Reports whether the buffer changed.
func (s *Store) AppendMessage(m Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.CorrelationID != "" {
		for i := range s.messages {
			if s.messages[i].CorrelationID == m.CorrelationID {
				s.messages[i] = m
				return true
			}
		}
	}
	for i := range s.messages {
		if s.messages[i].ID == m.ID {
			return false
		}
	}

	// Most messages arrive in order; scan from the tail.
	idx := len(s.messages)
	for idx > 0 && s.messages[idx-1].CreatedAt.After(m.CreatedAt) {
		idx--
	}
	s.messages = slices.Insert(s.messages, idx, m)
	return true
}

// ReplacePending swaps the placeholder with the given correlation id
// for the server-confirmed message, preserving its list position.
// Returns false when no placeholder matches (e.g. the conversation was
// switched away and back, dropping the buffer).
func (s *Store) ReplacePending(correlationID string, confirmed Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.messages {
		if s.messages[i].CorrelationID == correlationID && s.messages[i].Status == StatusPending {
			s.messages[i] = confirmed
			return true
		}
	}
	return false
}

// MarkFailed transitions the placeholder with the given correlation id
// from pending to failed. Returns false when the placeholder is absent
// or already left the pending state, so the transition happens at most
// once.
func (s *Store) MarkFailed(correlationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.messages {
		if s.messages[i].CorrelationID == correlationID && s.messages[i].Status == StatusPending {
			s.messages[i].Status = StatusFailed
			return true
		}
	}
	return false
}

// SetMessageStatus applies a delivery receipt to a single message.
// Transitions only move forward: a read message never regresses to
// delivered. Reports whether anything changed.
func (s *Store) SetMessageStatus(messageID string, status MessageStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.messages {
		if s.messages[i].ID == messageID {
			if statusRank[status] <= statusRank[s.messages[i].Status] {
				return false
			}
			s.messages[i].Status = status
			return true
		}
	}
	return false
}

// MarkRead marks messages in the conversation authored by users other
// than readerID as read. Only the open conversation holds a buffer, so
// other conversation ids are a no-op.
func (s *Store) MarkRead(conversationID, readerID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || s.current.ID != conversationID {
		return 0
	}
	changed := 0
	for i := range s.messages {
		m := &s.messages[i]
		if m.Sender.UserID == readerID {
			continue
		}
		if statusRank[StatusRead] > statusRank[m.Status] && m.Status != StatusPending && m.Status != StatusFailed {
			m.Status = StatusRead
			changed++
		}
	}
	return changed
}

// Messages returns a copy of the open conversation's message buffer.
func (s *Store) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.messages)
}

// SetOnlineUsers replaces the presence set.
func (s *Store) SetOnlineUsers(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.online = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		s.online[id] = struct{}{}
	}
}

// ApplyPresenceDelta merges add/remove sets into the presence set.
func (s *Store) ApplyPresenceDelta(add, remove []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range remove {
		delete(s.online, id)
	}
	for _, id := range add {
		s.online[id] = struct{}{}
	}
}

// IsOnline reports presence-set membership.
func (s *Store) IsOnline(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.online[userID]
	return ok
}

// OnlineUsers returns the presence set as a sorted slice.
func (s *Store) OnlineUsers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.onlineLocked()
}

func (s *Store) onlineLocked() []string {
	ids := make([]string, 0, len(s.online))
	for id := range s.online {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SetConversationsLoading records the in-flight state of the list load.
func (s *Store) SetConversationsLoading(loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadingConversations = loading
}

// SetMessagesLoading records the in-flight state of the history load.
func (s *Store) SetMessagesLoading(loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadingMessages = loading
}

// SetConversationsError records a recoverable list-load failure. The
// existing list is left untouched.
func (s *Store) SetConversationsError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversationsErr = err
}

// SetMessagesError records a recoverable history-load failure.
func (s *Store) SetMessagesError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messagesErr = err
}

// Reset drops all state. Called at session teardown.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations = nil
	s.current = nil
	s.messages = nil
	s.online = make(map[string]struct{})
	s.loadingConversations = false
	s.loadingMessages = false
	s.conversationsErr = nil
	s.messagesErr = nil
}

// sortConversations orders newest first, ids ascending on ties.
func sortConversations(list []Conversation) {
	sort.SliceStable(list, func(i, j int) bool {
		ti, tj := list[i].sortTime(), list[j].sortTime()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return strings.Compare(list[i].ID, list[j].ID) < 0
	})
}
