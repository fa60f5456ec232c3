// Package transport implements component A: a full-duplex text channel
// carrying JSON frames, established by upgrading an HTTP GET.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrClosed is returned by Recv/Send once the transport has been closed.
var ErrClosed = errors.New("transport closed")

// Transport is the server-side surface of one duplex WebSocket connection.
// Recv yields inbound text frames or an error once the connection has
// ended; Send enqueues/transmits atomically relative to other sends
// from the same caller; Close is idempotent.
type Transport interface {
	Recv(ctx context.Context) (string, error)
	Send(ctx context.Context, v any) error
	Close() error
}

// wsConn is the subset of *websocket.Conn this package depends on; an
// interface seam so tests can substitute a fake connection, matching the
// teacher's wsConnection test seam.
type wsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
	SetWriteDeadline(t time.Time) error
}

// WebSocketTransport adapts a gorilla/websocket connection to Transport.
// Writes are serialized with a mutex: gorilla/websocket connections permit
// at most one concurrent writer, and the spec requires sends from the same
// caller to be atomic relative to each other.
type WebSocketTransport struct {
	conn wsConn

	writeMu    sync.Mutex
	closeOnce  sync.Once
	closed     chan struct{}
	writeDeadline time.Duration
}

// NewWebSocketTransport wraps an established *websocket.Conn.
func NewWebSocketTransport(conn *websocket.Conn) *WebSocketTransport {
	return newWebSocketTransport(conn)
}

func newWebSocketTransport(conn wsConn) *WebSocketTransport {
	return &WebSocketTransport{
		conn:          conn,
		closed:        make(chan struct{}),
		writeDeadline: 10 * time.Second,
	}
}

// Recv blocks for the next text frame. A close frame from the peer is
// returned as its *websocket.CloseError and a non-text frame as an
// invalid-frame error; after a local Close or any other read error Recv
// returns ErrClosed.
func (t *WebSocketTransport) Recv(ctx context.Context) (string, error) {
	select {
	case <-t.closed:
		return "", ErrClosed
	default:
	}

	type result struct {
		msg string
		err error
	}
	done := make(chan result, 1)
	go func() {
		msgType, data, err := t.conn.ReadMessage()
		if err != nil {
			done <- result{"", err}
			return
		}
		if msgType != websocket.TextMessage {
			done <- result{"", errInvalidFrame}
			return
		}
		done <- result{string(data), nil}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			if websocket.IsUnexpectedCloseError(r.err) || errors.Is(r.err, errInvalidFrame) {
				return "", r.err
			}
			return "", ErrClosed
		}
		return r.msg, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

var errInvalidFrame = errors.New("non-text frame received")

// Send marshals v to JSON and writes it as a single text frame. Writes are
// serialized so concurrent SendSync callers never interleave partial frames.
func (t *WebSocketTransport) Send(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	select {
	case <-t.closed:
		return ErrClosed
	default:
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = t.conn.SetWriteDeadline(deadline)
	} else {
		_ = t.conn.SetWriteDeadline(time.Now().Add(t.writeDeadline))
	}
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

// Close is idempotent under repeated invocation.
func (t *WebSocketTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closed)
		err = t.conn.Close()
	})
	return err
}
