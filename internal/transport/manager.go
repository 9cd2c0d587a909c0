package transport

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/terverakaaga-gif/frontend-support24-sub002/internal/bus"
	"github.com/terverakaaga-gif/frontend-support24-sub002/internal/presence"
	"github.com/terverakaaga-gif/frontend-support24-sub002/internal/status"
	"github.com/terverakaaga-gif/frontend-support24-sub002/internal/store"
	"go.uber.org/zap"
)

// Conn is the minimal connection surface the manager uses. The
// production implementation wraps a websocket connection; tests
// substitute an in-memory fake.
type Conn interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close(reason string) error
}

// DialFunc establishes a Conn to the given URL.
type DialFunc func(ctx context.Context, wsURL string) (Conn, error)

// HandshakeError means the socket opened but the server rejected or
// garbled the authentication exchange. Not retried by the reconnect
// loop: a bad token will not get better on its own.
type HandshakeError struct {
	Reason string
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("handshake failed: %s", e.Reason)
}

// Manager owns the single live realtime connection for a session:
// connect/teardown, the authenticated handshake, room subscriptions,
// and reconnect with bounded exponential backoff. Inbound frames are
// decoded and published on the bus under the "rt." namespace; the
// manager itself never touches the store.
type Manager struct {
	baseURL string
	dial    DialFunc
	bus     *bus.Bus
	machine *status.Machine
	backoff Backoff
	logger  *zap.Logger

	mu     sync.Mutex
	conn   Conn
	token  string
	userID string
	rooms  map[string]struct{}
	cancel context.CancelFunc
	gen    int // connection generation; stale read loops exit quietly
}

// NewManager creates a manager using the real websocket dialer. The
// realtime endpoint is derived from baseURL (http(s) → ws(s), /ws path).
func NewManager(baseURL string, b *bus.Bus, machine *status.Machine, backoff Backoff, logger *zap.Logger) *Manager {
	return newManager(baseURL, DialWebsocket, b, machine, backoff, logger)
}

func newManager(baseURL string, dial DialFunc, b *bus.Bus, machine *status.Machine, backoff Backoff, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		baseURL: strings.TrimRight(baseURL, "/"),
		dial:    dial,
		bus:     b,
		machine: machine,
		backoff: backoff,
		logger:  logger,
		rooms:   make(map[string]struct{}),
	}
}

// Connect establishes the authenticated connection. Idempotent: a live
// connection for the same token is left alone; a connection for a
// different token is torn down first so exactly one transport exists.
func (m *Manager) Connect(ctx context.Context, token string) error {
	m.mu.Lock()
	if m.conn != nil {
		if m.token == token {
			m.mu.Unlock()
			return nil
		}
		// Token changed (re-login); drop the stale connection.
		m.teardownLocked("token changed")
	}
	m.token = token
	m.mu.Unlock()

	_ = m.machine.Transition(status.Connecting)
	if err := m.establish(ctx); err != nil {
		_ = m.machine.Transition(status.Failed)
		return err
	}
	return nil
}

// establish dials, handshakes, rejoins rooms, and starts the read loop.
func (m *Manager) establish(ctx context.Context) error {
	m.mu.Lock()
	token := m.token
	m.mu.Unlock()

	wsURL, err := m.endpoint(token)
	if err != nil {
		return err
	}

	conn, err := m.dial(ctx, wsURL)
	if err != nil {
		return fmt.Errorf("dial realtime endpoint: %w", err)
	}

	// The first frame must be the handshake acknowledgment.
	hsCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	data, err := conn.Read(hsCtx)
	cancel()
	if err != nil {
		_ = conn.Close("handshake read failed")
		return &HandshakeError{Reason: err.Error()}
	}
	env, err := ParseEnvelope(data)
	if err != nil || env.Type != EventConnected {
		_ = conn.Close("bad handshake")
		return &HandshakeError{Reason: fmt.Sprintf("expected %q frame, got %q", EventConnected, env.Type)}
	}
	var hello ConnectedPayload
	_ = DecodePayload(env, &hello)

	loopCtx, loopCancel := context.WithCancel(context.Background())
	m.mu.Lock()
	m.conn = conn
	m.userID = hello.UserID
	m.cancel = loopCancel
	m.gen++
	gen := m.gen
	rooms := make([]string, 0, len(m.rooms))
	for r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.Unlock()

	_ = m.machine.Transition(status.Connected)
	m.bus.Emit(bus.KindConnConnected, hello)
	m.logger.Info("realtime connected", zap.String("user_id", hello.UserID))

	// Rooms joined before a drop are re-subscribed on every handshake.
	for _, room := range rooms {
		if err := m.emit(loopCtx, CommandConversationJoin, JoinPayload{ConversationID: room}); err != nil {
			m.logger.Warn("room rejoin failed", zap.String("conversation_id", room), zap.Error(err))
		}
	}

	go m.readLoop(loopCtx, conn, gen)
	return nil
}

// Disconnect closes the connection and clears room subscriptions.
// Safe to call when already disconnected.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.teardownLocked("client disconnect")
	m.rooms = make(map[string]struct{})
	m.token = ""
	m.mu.Unlock()
	_ = m.machine.Transition(status.Closed)
	m.bus.Emit(bus.KindConnDisconnected, "client disconnect")
}

// teardownLocked closes the live conn and stops its read loop. Callers
// hold m.mu.
func (m *Manager) teardownLocked(reason string) {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.conn != nil {
		_ = m.conn.Close(reason)
		m.conn = nil
	}
	m.gen++
}

// Connected reports whether a live connection exists.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn != nil
}

// UserID returns the identity confirmed by the last handshake.
func (m *Manager) UserID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.userID
}

// JoinConversation subscribes to a conversation's room. Rooms are
// joined lazily (when a conversation is opened or created) and
// re-joined automatically after a reconnect.
func (m *Manager) JoinConversation(ctx context.Context, conversationID string) error {
	m.mu.Lock()
	_, already := m.rooms[conversationID]
	m.rooms[conversationID] = struct{}{}
	m.mu.Unlock()
	if already {
		return nil
	}
	return m.emit(ctx, CommandConversationJoin, JoinPayload{ConversationID: conversationID})
}

// SendMessage emits an outgoing message tagged with the correlation id.
// Implements the outbox pipeline's sender interface.
func (m *Manager) SendMessage(ctx context.Context, conversationID, content, msgType, correlationID string) error {
	return m.emit(ctx, CommandMessageSend, SendPayload{
		ConversationID: conversationID,
		Content:        content,
		Type:           msgType,
		CorrelationID:  correlationID,
	})
}

func (m *Manager) emit(ctx context.Context, cmdType string, payload any) error {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("emit %s: not connected", cmdType)
	}
	data, err := EncodeCommand(cmdType, payload)
	if err != nil {
		return err
	}
	if err := conn.Write(ctx, data); err != nil {
		return fmt.Errorf("emit %s: %w", cmdType, err)
	}
	return nil
}

// readLoop consumes frames until the connection drops or is torn down.
func (m *Manager) readLoop(ctx context.Context, conn Conn, gen int) {
	for {
		data, err := conn.Read(ctx)
		if err != nil {
			m.mu.Lock()
			stale := gen != m.gen
			if !stale {
				m.conn = nil
			}
			m.mu.Unlock()
			if stale || ctx.Err() != nil {
				// Torn down on purpose; the teardown path reports state.
				return
			}
			m.logger.Warn("realtime connection dropped", zap.Error(err))
			_ = m.machine.Transition(status.Reconnecting)
			m.bus.Emit(bus.KindConnDisconnected, err.Error())
			go m.reconnectLoop()
			return
		}
		m.dispatch(data)
	}
}

// dispatch decodes one inbound frame and publishes it on the bus.
// Malformed frames are dropped; nothing downstream may crash on bad
// server data.
func (m *Manager) dispatch(data []byte) {
	env, err := ParseEnvelope(data)
	if err != nil {
		m.logger.Warn("dropping malformed frame", zap.Error(err))
		return
	}

	switch env.Type {
	case EventMessageNew:
		var msg store.Message
		if err := DecodePayload(env, &msg); err != nil {
			m.logger.Warn("dropping message:new", zap.Error(err))
			return
		}
		m.bus.Emit(bus.KindRTMessage, msg)
	case EventMessageAck:
		var ack AckPayload
		if err := DecodePayload(env, &ack); err != nil {
			m.logger.Warn("dropping message:ack", zap.Error(err))
			return
		}
		m.bus.Emit(bus.KindRTAck, ack)
	case EventMessageReceipt:
		var rcpt ReceiptPayload
		if err := DecodePayload(env, &rcpt); err != nil {
			m.logger.Warn("dropping message:receipt", zap.Error(err))
			return
		}
		m.bus.Emit(bus.KindRTReceipt, rcpt)
	case EventPresenceUpdate:
		var upd presence.Update
		if err := DecodePayload(env, &upd); err != nil {
			m.logger.Warn("dropping presence:update", zap.Error(err))
			return
		}
		m.bus.Emit(bus.KindRTPresence, upd)
	case EventTypingUpdate:
		var typ TypingPayload
		if err := DecodePayload(env, &typ); err != nil {
			return
		}
		m.bus.Emit(bus.KindRTTyping, typ)
	case EventError:
		var srvErr ErrorPayload
		if err := DecodePayload(env, &srvErr); err != nil {
			return
		}
		m.logger.Warn("server error event",
			zap.String("code", srvErr.Code), zap.String("message", srvErr.Message))
	default:
		m.logger.Debug("ignoring unknown event type", zap.String("type", env.Type))
	}
}

// reconnectLoop retries establish with exponential backoff until it
// succeeds, the budget is exhausted, or the session is torn down.
func (m *Manager) reconnectLoop() {
	for attempt := 1; ; attempt++ {
		if m.backoff.Exhausted(attempt) {
			m.logger.Error("reconnect budget exhausted", zap.Int("attempts", attempt-1))
			_ = m.machine.Transition(status.Failed)
			m.bus.Emit(bus.KindConnFailed, attempt-1)
			return
		}

		delay := m.backoff.Delay(attempt)
		m.bus.Emit(bus.KindConnReconnecting, attempt)
		m.logger.Info("reconnecting",
			zap.Int("attempt", attempt), zap.Duration("delay", delay))
		time.Sleep(delay)

		m.mu.Lock()
		abandoned := m.token == ""
		m.mu.Unlock()
		if abandoned {
			// Disconnect() ran while we were sleeping.
			return
		}

		_ = m.machine.Transition(status.Connecting)
		err := m.establish(context.Background())
		if err == nil {
			return
		}
		var hsErr *HandshakeError
		if errors.As(err, &hsErr) {
			// The server rejected us; retrying the same token is useless.
			m.logger.Error("reconnect handshake rejected", zap.Error(err))
			_ = m.machine.Transition(status.Failed)
			m.bus.Emit(bus.KindConnFailed, attempt)
			return
		}
		m.logger.Warn("reconnect attempt failed", zap.Int("attempt", attempt), zap.Error(err))
		_ = m.machine.Transition(status.Reconnecting)
	}
}

// endpoint builds the websocket URL with the token on the handshake.
func (m *Manager) endpoint(token string) (string, error) {
	u, err := url.Parse(m.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
