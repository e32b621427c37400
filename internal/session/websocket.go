//-------------------------------------------------------------------------
//
// pgEdge RAG Chat
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/coder/websocket"
)

// WebSocketChannel adapts a websocket connection to Channel.
type WebSocketChannel struct {
	conn *websocket.Conn
}

// NewWebSocketChannel wraps conn. maxMessageBytes bounds inbound frames;
// zero keeps the library default.
func NewWebSocketChannel(conn *websocket.Conn, maxMessageBytes int64) *WebSocketChannel {
	if maxMessageBytes > 0 {
		conn.SetReadLimit(maxMessageBytes)
	}
	return &WebSocketChannel{conn: conn}
}

// Receive reads the next text frame.
func (c *WebSocketChannel) Receive(ctx context.Context) (string, error) {
	ioCtx, stop := c.closeOnCancel(ctx)
	defer stop()

	typ, data, err := c.conn.Read(ioCtx)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: %w", ErrChannelClosed, err)
	}
	if typ != websocket.MessageText {
		return "", ErrBinaryFrame
	}
	return string(data), nil
}

// Send writes one text frame.
func (c *WebSocketChannel) Send(ctx context.Context, text string) error {
	ioCtx, stop := c.closeOnCancel(ctx)
	defer stop()

	if err := c.conn.Write(ioCtx, websocket.MessageText, []byte(text)); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", ErrChannelClosed, err)
	}
	return nil
}

// Close sends a close frame matching reason. A nil reason is a normal
// closure.
func (c *WebSocketChannel) Close(reason error) error {
	code, text := closeStatus(reason)
	return c.conn.Close(code, text)
}

// closeOnCancel sends a going-away close when ctx ends. The returned
// context is never cancelled, so the library does not abort the
// connection with its own policy-violation close first.
func (c *WebSocketChannel) closeOnCancel(ctx context.Context) (context.Context, func() bool) {
	stop := context.AfterFunc(ctx, func() {
		code, text := closeStatus(ctx.Err())
		_ = c.conn.Close(code, text)
	})
	return context.WithoutCancel(ctx), stop
}

func closeStatus(reason error) (websocket.StatusCode, string) {
	switch {
	case reason == nil:
		return websocket.StatusNormalClosure, ""
	case errors.Is(reason, ErrBinaryFrame):
		return websocket.StatusUnsupportedData, "unsupported data"
	case errors.Is(reason, context.Canceled), errors.Is(reason, context.DeadlineExceeded):
		return websocket.StatusGoingAway, "server shutting down"
	default:
		return websocket.StatusInternalError, "internal error"
	}
}

var _ Channel = (*WebSocketChannel)(nil)
