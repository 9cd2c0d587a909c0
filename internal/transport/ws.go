package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/coder/websocket"
)

// wsConn adapts a coder/websocket connection to the Conn interface.
type wsConn struct {
	conn *websocket.Conn
}

// DialWebsocket opens a websocket connection to wsURL. The handshake
// itself is bounded; reads on the returned Conn block until the caller's
// context expires or the connection drops.
func DialWebsocket(ctx context.Context, wsURL string) (Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	c, _, err := websocket.Dial(dialCtx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	// Frames carry whole JSON envelopes; ack payloads embed full
	// messages so the default 32KB read limit is too tight.
	c.SetReadLimit(1 << 20)
	return &wsConn{conn: c}, nil
}

func (w *wsConn) Read(ctx context.Context) ([]byte, error) {
	typ, data, err := w.conn.Read(ctx)
	if err != nil {
		return nil, err
	}
	if typ != websocket.MessageText {
		return nil, fmt.Errorf("unexpected frame type %v", typ)
	}
	return data, nil
}

func (w *wsConn) Write(ctx context.Context, data []byte) error {
	return w.conn.Write(ctx, websocket.MessageText, data)
}

func (w *wsConn) Close(reason string) error {
	return w.conn.Close(websocket.StatusNormalClosure, reason)
}
