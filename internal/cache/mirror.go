package cache

import (
	"github.com/terverakaaga-gif/frontend-support24-sub002/internal/bus"
	"github.com/terverakaaga-gif/frontend-support24-sub002/internal/store"
	"go.uber.org/zap"
)

// Mirror keeps the on-disk cache in sync with the in-memory store by
// following store-change events. Writes are best effort: a cache write
// failure is logged and the session carries on against live data.
type Mirror struct {
	db     *DB
	store  *store.Store
	bus    *bus.Bus
	logger *zap.Logger

	unsub func()
	done  chan struct{}
}

func NewMirror(db *DB, st *store.Store, b *bus.Bus, logger *zap.Logger) *Mirror {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mirror{db: db, store: st, bus: b, logger: logger}
}

// WarmStart seeds the in-memory store with cached conversations so the
// UI has something to show before the first server round-trip.
func (m *Mirror) WarmStart() error {
	convs, err := m.db.ListConversations()
	if err != nil {
		return err
	}
	if len(convs) == 0 {
		return nil
	}
	m.store.SetConversations(convs)
	m.logger.Info("warm start from cache", zap.Int("conversations", len(convs)))
	return nil
}

// Start begins following store-change events.
func (m *Mirror) Start() {
	if m.unsub != nil {
		return
	}
	events, unsub := m.bus.Subscribe("chat.", 64)
	m.unsub = unsub
	m.done = make(chan struct{})
	go m.follow(events)
}

// Stop detaches from the bus and waits for the follower to drain.
func (m *Mirror) Stop() {
	if m.unsub == nil {
		return
	}
	m.unsub()
	<-m.done
	m.unsub = nil
}

func (m *Mirror) follow(events <-chan bus.Event) {
	defer close(m.done)
	for evt := range events {
		switch evt.Kind {
		case bus.KindChatConversations:
			for _, c := range m.store.Conversations() {
				if err := m.db.UpsertConversation(&c); err != nil {
					m.logger.Warn("cache conversation write failed", zap.Error(err))
				}
			}
		case bus.KindChatUpdated:
			id, ok := evt.Payload.(string)
			if !ok {
				continue
			}
			if conv, ok := m.store.Conversation(id); ok {
				if err := m.db.UpsertConversation(&conv); err != nil {
					m.logger.Warn("cache conversation write failed", zap.Error(err))
				}
			}
		case bus.KindChatMessages:
			// Persist the open buffer; placeholders are skipped by the
			// upsert itself.
			for _, msg := range m.store.Messages() {
				if err := m.db.UpsertMessage(&msg); err != nil {
					m.logger.Warn("cache message write failed", zap.Error(err))
				}
			}
		case bus.KindChatSendAck:
			msg, ok := evt.Payload.(store.Message)
			if !ok {
				continue
			}
			if err := m.db.UpsertMessage(&msg); err != nil {
				m.logger.Warn("cache message write failed", zap.Error(err))
			}
		}
	}
}
