//-------------------------------------------------------------------------
//
// pgEdge RAG Chat
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package events publishes turn lifecycle events to NATS JetStream.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/pgEdge/pgedge-rag-chat/internal/config"
)

// streamMaxAge bounds how long turn events are retained.
const streamMaxAge = 7 * 24 * time.Hour

// Client wraps a NATS connection with JetStream support.
type Client struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	logger *slog.Logger
}

// Connect connects to NATS and ensures the event stream exists.
func Connect(ctx context.Context, cfg config.NATSConfig, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	nc, err := nats.Connect(cfg.URL,
		nats.Name("pgedge-rag-chat"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	c := &Client{conn: nc, js: js, logger: logger}
	if err := c.ensureStream(ctx, cfg); err != nil {
		nc.Close()
		return nil, err
	}

	logger.Info("connected to NATS", "url", cfg.URL, "stream", cfg.Stream)
	return c, nil
}

func (c *Client) ensureStream(ctx context.Context, cfg config.NATSConfig) error {
	_, err := c.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      cfg.Stream,
		Subjects:  []string{cfg.Subject},
		Retention: jetstream.LimitsPolicy,
		MaxAge:    streamMaxAge,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream %s: %w", cfg.Stream, err)
	}
	return nil
}

// JetStream returns the JetStream context.
func (c *Client) JetStream() jetstream.JetStream {
	return c.js
}

// Healthy reports whether the connection is up.
func (c *Client) Healthy() bool {
	return c.conn.IsConnected()
}

// Close drains and closes the connection.
func (c *Client) Close() {
	if err := c.conn.Drain(); err != nil {
		c.logger.Warn("failed to drain NATS connection", "error", err)
	}
}
