package sync

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/terverakaaga-gif/frontend-support24-sub002/internal/bus"
	"github.com/terverakaaga-gif/frontend-support24-sub002/internal/outbox"
	"github.com/terverakaaga-gif/frontend-support24-sub002/internal/presence"
	"github.com/terverakaaga-gif/frontend-support24-sub002/internal/rest"
	"github.com/terverakaaga-gif/frontend-support24-sub002/internal/session"
	"github.com/terverakaaga-gif/frontend-support24-sub002/internal/store"
	"github.com/terverakaaga-gif/frontend-support24-sub002/internal/transport"
	"go.uber.org/zap"
)

// API is the REST surface the engine fetches state from.
type API interface {
	Conversations(ctx context.Context, token string) ([]store.Conversation, error)
	Messages(ctx context.Context, token, conversationID string) ([]store.Message, error)
	OnlineUsers(ctx context.Context, token string) ([]string, error)
	CreateConversation(ctx context.Context, token string, req rest.CreateConversationRequest) (store.Conversation, error)
}

// Realtime is the transport surface the engine drives.
type Realtime interface {
	Connect(ctx context.Context, token string) error
	Disconnect()
	Connected() bool
	UserID() string
	JoinConversation(ctx context.Context, conversationID string) error
}

// Engine coordinates the realtime transport, the REST API, and the
// in-memory store. It owns the push-event subscription: every inbound
// server event flows through exactly one dispatch loop, so store
// mutations never race each other.
type Engine struct {
	store    *store.Store
	bus      *bus.Bus
	api      API
	rt       Realtime
	pipeline *outbox.Pipeline
	tracker  *presence.Tracker
	tokens   session.TokenSource
	logger   *zap.Logger

	mu      sync.Mutex
	unsub   func()
	done    chan struct{}
	loadGen uint64 // bumped on every conversation switch; stale fetches discard
}

// Params collects the engine's collaborators.
type Params struct {
	Store    *store.Store
	Bus      *bus.Bus
	API      API
	Realtime Realtime
	Pipeline *outbox.Pipeline
	Tracker  *presence.Tracker
	Tokens   session.TokenSource
	Logger   *zap.Logger
}

func NewEngine(p Params) *Engine {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:    p.Store,
		bus:      p.Bus,
		api:      p.API,
		rt:       p.Realtime,
		pipeline: p.Pipeline,
		tracker:  p.Tracker,
		tokens:   p.Tokens,
		logger:   logger,
	}
}

// Connect authenticates the realtime transport and runs the initial
// sync: conversation list and presence snapshot are fetched
// concurrently. Idempotent; a second call with an unchanged token is a
// no-op at the transport level.
func (e *Engine) Connect(ctx context.Context) error {
	token, err := e.tokens.Token()
	if err != nil {
		return fmt.Errorf("resolve token: %w", err)
	}

	if err := e.rt.Connect(ctx, token); err != nil {
		return fmt.Errorf("connect realtime: %w", err)
	}
	e.startDispatch()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return e.LoadConversations(gctx)
	})
	g.Go(func() error {
		online, err := e.api.OnlineUsers(gctx, token)
		if err != nil {
			return fmt.Errorf("fetch presence: %w", err)
		}
		e.tracker.Apply(presence.Update{Online: online})
		return nil
	})
	return g.Wait()
}

// startDispatch subscribes to raw push events. At most one dispatch
// loop runs per engine.
func (e *Engine) startDispatch() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.unsub != nil {
		return
	}
	events, unsub := e.bus.Subscribe("rt.", 64)
	done := make(chan struct{})
	e.unsub = unsub
	e.done = done
	go e.dispatch(events, done)
}

// CleanupSocketListeners detaches the engine from push events without
// closing the transport. Safe to call repeatedly; a later Connect
// re-attaches.
func (e *Engine) CleanupSocketListeners() {
	e.mu.Lock()
	unsub, done := e.unsub, e.done
	e.unsub, e.done = nil, nil
	e.mu.Unlock()
	if unsub == nil {
		return
	}
	unsub()
	<-done
}

// Close detaches listeners, drops in-flight sends, and closes the
// transport.
func (e *Engine) Close() {
	e.CleanupSocketListeners()
	e.pipeline.Close()
	e.rt.Disconnect()
}

func (e *Engine) dispatch(events <-chan bus.Event, done chan struct{}) {
	defer close(done)
	for evt := range events {
		switch evt.Kind {
		case bus.KindRTMessage:
			msg, ok := evt.Payload.(store.Message)
			if !ok {
				continue
			}
			e.handleIncomingMessage(msg)
		case bus.KindRTAck:
			ack, ok := evt.Payload.(transport.AckPayload)
			if !ok {
				continue
			}
			e.handleAck(ack)
		case bus.KindRTReceipt:
			rcpt, ok := evt.Payload.(transport.ReceiptPayload)
			if !ok {
				continue
			}
			e.handleReceipt(rcpt)
		case bus.KindRTPresence:
			upd, ok := evt.Payload.(presence.Update)
			if !ok {
				continue
			}
			e.tracker.Apply(upd)
		case bus.KindRTTyping:
			e.bus.Emit(bus.KindChatTyping, evt.Payload)
		}
	}
}

// handleIncomingMessage applies a pushed message. Only the open
// conversation keeps a message buffer; everything else just gets its
// summary bumped so the list reorders.
func (e *Engine) handleIncomingMessage(msg store.Message) {
	if msg.Status == "" || msg.Status == store.StatusPending {
		msg.Status = store.StatusSent
	}

	last := store.LastMessage{
		Content:   msg.Content,
		Sender:    msg.Sender.UserID,
		Timestamp: msg.CreatedAt,
	}

	cur := e.store.CurrentConversation()
	if cur != nil && cur.ID == msg.ConversationID {
		if e.store.AppendMessage(msg) {
			e.bus.Emit(bus.KindChatMessages, msg.ConversationID)
		}
	}
	if e.store.TouchConversation(msg.ConversationID, last) {
		e.bus.Emit(bus.KindChatUpdated, msg.ConversationID)
	}
}

func (e *Engine) handleAck(ack transport.AckPayload) {
	if !e.pipeline.Ack(ack.CorrelationID, ack.Message) {
		e.logger.Debug("ack for unknown correlation id",
			zap.String("correlation_id", ack.CorrelationID))
		return
	}
	last := store.LastMessage{
		Content:   ack.Message.Content,
		Sender:    ack.Message.Sender.UserID,
		Timestamp: ack.Message.CreatedAt,
	}
	if e.store.TouchConversation(ack.Message.ConversationID, last) {
		e.bus.Emit(bus.KindChatUpdated, ack.Message.ConversationID)
	}
}

// handleReceipt applies a delivery or read receipt. A receipt without a
// message id is conversation-wide: the peer read everything, so all our
// confirmed messages there move to read.
func (e *Engine) handleReceipt(rcpt transport.ReceiptPayload) {
	if rcpt.MessageID != "" {
		st := store.MessageStatus(rcpt.Status)
		if st != store.StatusDelivered && st != store.StatusRead {
			return
		}
		if e.store.SetMessageStatus(rcpt.MessageID, st) {
			e.bus.Emit(bus.KindChatMessages, rcpt.ConversationID)
		}
		return
	}
	if n := e.store.MarkRead(rcpt.ConversationID, rcpt.UserID); n > 0 {
		e.bus.Emit(bus.KindChatMessages, rcpt.ConversationID)
	}
}

// LoadConversations fetches the conversation list and replaces the
// store's copy.
func (e *Engine) LoadConversations(ctx context.Context) error {
	token, err := e.tokens.Token()
	if err != nil {
		return fmt.Errorf("resolve token: %w", err)
	}

	e.store.SetConversationsLoading(true)
	defer e.store.SetConversationsLoading(false)

	list, err := e.api.Conversations(ctx, token)
	if err != nil {
		e.store.SetConversationsError(err)
		return fmt.Errorf("load conversations: %w", err)
	}
	e.store.SetConversations(list)
	e.bus.Emit(bus.KindChatConversations, len(list))
	return nil
}

// LoadMessages opens a conversation: switches the store's current
// pointer (clearing the old buffer), joins the room, and fetches
// history. If the user switches again before the fetch resolves, the
// stale result is discarded instead of overwriting the new
// conversation's buffer.
func (e *Engine) LoadMessages(ctx context.Context, conversationID string) error {
	conv, ok := e.store.Conversation(conversationID)
	if !ok {
		return fmt.Errorf("unknown conversation %q", conversationID)
	}

	token, err := e.tokens.Token()
	if err != nil {
		return fmt.Errorf("resolve token: %w", err)
	}

	// The bump and the switch form one critical section: a racing load
	// must never observe the new generation with the old conversation
	// still current, or vice versa.
	e.mu.Lock()
	e.loadGen++
	gen := e.loadGen
	e.store.SetCurrentConversation(&conv)
	e.store.SetMessagesLoading(true)
	e.mu.Unlock()

	if e.rt.Connected() {
		if err := e.rt.JoinConversation(ctx, conversationID); err != nil {
			e.logger.Warn("room join failed",
				zap.String("conversation_id", conversationID), zap.Error(err))
		}
	}

	list, err := e.api.Messages(ctx, token, conversationID)

	// Re-check and apply under the same lock so a switch racing this
	// fetch cannot land between the check and the buffer write.
	e.mu.Lock()
	stale := gen != e.loadGen
	if !stale {
		e.store.SetMessagesLoading(false)
		if err != nil {
			e.store.SetMessagesError(err)
		} else {
			e.store.SetMessages(list)
		}
	}
	e.mu.Unlock()

	if stale {
		// The user moved on; this response belongs to a closed view.
		e.logger.Debug("discarding stale history fetch",
			zap.String("conversation_id", conversationID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("load messages: %w", err)
	}
	e.bus.Emit(bus.KindChatMessages, conversationID)
	return nil
}

// SendMessage runs the optimistic send pipeline for the current user.
func (e *Engine) SendMessage(ctx context.Context, conversationID, content, msgType string) (store.Message, error) {
	if msgType == "" {
		msgType = "text"
	}
	return e.pipeline.Send(ctx, e.self(conversationID), conversationID, content, msgType)
}

// self builds the sender identity for optimistic placeholders, pulling
// profile details from the conversation membership when available.
func (e *Engine) self(conversationID string) store.Sender {
	sender := store.Sender{UserID: e.rt.UserID()}
	if sender.UserID == "" {
		if token, err := e.tokens.Token(); err == nil {
			if id, err := session.UserIDFromToken(token); err == nil {
				sender.UserID = id
			}
		}
	}
	if conv, ok := e.store.Conversation(conversationID); ok {
		for _, m := range conv.Members {
			if m.UserID == sender.UserID {
				sender.FirstName = m.FirstName
				sender.ProfileImage = m.ProfileImage
				break
			}
		}
	}
	return sender
}

// CreateNewConversation validates and creates a conversation, then
// opens it. A direct conversation names exactly one peer; a group
// carries a name and at least one member.
func (e *Engine) CreateNewConversation(ctx context.Context, req rest.CreateConversationRequest) (store.Conversation, error) {
	switch req.Type {
	case store.ConversationDirect:
		if len(req.MemberIDs) != 1 {
			return store.Conversation{}, fmt.Errorf("direct conversation requires exactly one member, got %d", len(req.MemberIDs))
		}
	case store.ConversationGroup:
		if len(req.MemberIDs) == 0 {
			return store.Conversation{}, fmt.Errorf("group conversation requires at least one member")
		}
	default:
		return store.Conversation{}, fmt.Errorf("unknown conversation type %q", req.Type)
	}

	token, err := e.tokens.Token()
	if err != nil {
		return store.Conversation{}, fmt.Errorf("resolve token: %w", err)
	}

	conv, err := e.api.CreateConversation(ctx, token, req)
	if err != nil {
		return store.Conversation{}, fmt.Errorf("create conversation: %w", err)
	}

	e.store.UpsertConversation(conv)
	e.mu.Lock()
	e.loadGen++
	e.store.SetCurrentConversation(&conv)
	e.mu.Unlock()

	if e.rt.Connected() {
		if err := e.rt.JoinConversation(ctx, conv.ID); err != nil {
			e.logger.Warn("room join failed",
				zap.String("conversation_id", conv.ID), zap.Error(err))
		}
	}
	e.bus.Emit(bus.KindChatConversations, conv.ID)
	return conv, nil
}
