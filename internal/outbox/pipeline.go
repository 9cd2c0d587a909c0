package outbox

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/terverakaaga-gif/frontend-support24-sub002/internal/bus"
	"github.com/terverakaaga-gif/frontend-support24-sub002/internal/store"
	"go.uber.org/zap"
)

// ErrNotConnected is returned when a send is attempted while the
// transport has no live connection. The placeholder is marked failed
// immediately instead of waiting out the ack timeout.
var ErrNotConnected = errors.New("outbox: transport not connected")

// MessageSender is the transport-side interface for emitting an
// outgoing message. The correlation id must be round-tripped by the
// server in its acknowledgment.
type MessageSender interface {
	Connected() bool
	SendMessage(ctx context.Context, conversationID, content, msgType, correlationID string) error
}

// Pipeline implements optimistic sends: a pending placeholder is
// appended to the store immediately, then either reconciled with the
// server-confirmed message (ack) or marked failed (timeout / transport
// error). Exactly one placeholder exists per correlation id, and it
// fails at most once.
type Pipeline struct {
	store      *store.Store
	sender     MessageSender
	bus        *bus.Bus
	ackTimeout time.Duration
	logger     *zap.Logger

	mu      sync.Mutex
	pending map[string]*pendingSend
}

type pendingSend struct {
	conversationID string
	timer          *time.Timer
}

// NewPipeline creates a pipeline. ackTimeout bounds how long a send may
// stay pending before failing.
func NewPipeline(st *store.Store, sender MessageSender, b *bus.Bus, ackTimeout time.Duration, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		store:      st,
		sender:     sender,
		bus:        b,
		ackTimeout: ackTimeout,
		logger:     logger,
		pending:    make(map[string]*pendingSend),
	}
}

// Send performs one optimistic send attempt for the given conversation.
// It returns the pending placeholder that was appended to the store.
// A retry of a failed message is a fresh Send call and mints a new
// correlation id.
func (p *Pipeline) Send(ctx context.Context, self store.Sender, conversationID, content, msgType string) (store.Message, error) {
	corrID := uuid.New().String()
	placeholder := store.Message{
		ID:             corrID,
		ConversationID: conversationID,
		Sender:         self,
		Content:        content,
		Type:           msgType,
		Status:         store.StatusPending,
		CorrelationID:  corrID,
		CreatedAt:      time.Now(),
	}
	// The message buffer is scoped to the open conversation; a send
	// targeting any other conversation must not leak into it.
	if cur := p.store.CurrentConversation(); cur != nil && cur.ID == conversationID {
		p.store.AppendMessage(placeholder)
	}

	if !p.sender.Connected() {
		p.fail(corrID, "not connected")
		return placeholder, ErrNotConnected
	}

	if err := p.sender.SendMessage(ctx, conversationID, content, msgType, corrID); err != nil {
		p.logger.Warn("send emit failed",
			zap.String("correlation_id", corrID), zap.Error(err))
		p.fail(corrID, err.Error())
		return placeholder, err
	}

	p.mu.Lock()
	p.pending[corrID] = &pendingSend{
		conversationID: conversationID,
		timer: time.AfterFunc(p.ackTimeout, func() {
			p.timeout(corrID)
		}),
	}
	p.mu.Unlock()

	p.logger.Info("message send emitted",
		zap.String("conversation_id", conversationID),
		zap.String("correlation_id", corrID))
	return placeholder, nil
}

// Ack reconciles a server acknowledgment with its placeholder. The
// confirmed message replaces the placeholder at the same list position.
// Returns false for unknown or already-settled correlation ids (e.g. an
// ack arriving after the timeout already failed the send).
func (p *Pipeline) Ack(correlationID string, confirmed store.Message) bool {
	p.mu.Lock()
	ps, ok := p.pending[correlationID]
	if ok {
		ps.timer.Stop()
		delete(p.pending, correlationID)
	}
	p.mu.Unlock()
	if !ok {
		return false
	}

	confirmed.CorrelationID = correlationID
	if confirmed.Status == "" || confirmed.Status == store.StatusPending {
		confirmed.Status = store.StatusSent
	}
	if !p.store.ReplacePending(correlationID, confirmed) {
		// The buffer was cleared by a conversation switch. Re-append
		// only if that conversation is open again; the buffer is scoped
		// to the current conversation.
		if cur := p.store.CurrentConversation(); cur != nil && cur.ID == confirmed.ConversationID {
			p.store.AppendMessage(confirmed)
		}
	}

	if p.bus != nil {
		p.bus.Emit(bus.KindChatSendAck, confirmed)
	}
	p.logger.Info("message send acknowledged",
		zap.String("correlation_id", correlationID),
		zap.String("server_id", confirmed.ID))
	return true
}

// InFlight reports how many sends are awaiting acknowledgment.
func (p *Pipeline) InFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// Close cancels all pending timers. In-flight placeholders are left
// pending; session teardown resets the store anyway.
func (p *Pipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, ps := range p.pending {
		ps.timer.Stop()
		delete(p.pending, id)
	}
}

// timeout fires when no ack arrived within the bound.
func (p *Pipeline) timeout(correlationID string) {
	p.mu.Lock()
	_, ok := p.pending[correlationID]
	if ok {
		delete(p.pending, correlationID)
	}
	p.mu.Unlock()
	if !ok {
		// Ack won the race.
		return
	}
	p.fail(correlationID, "ack timeout")
}

func (p *Pipeline) fail(correlationID, reason string) {
	if p.store.MarkFailed(correlationID) {
		p.logger.Warn("message send failed",
			zap.String("correlation_id", correlationID),
			zap.String("reason", reason))
		if p.bus != nil {
			p.bus.Emit(bus.KindChatSendFailed, correlationID)
		}
	}
}
