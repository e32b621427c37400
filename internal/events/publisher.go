//-------------------------------------------------------------------------
//
// pgEdge RAG Chat
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/pgEdge/pgedge-rag-chat/internal/pipeline"
)

const (
	publishTimeout = 5 * time.Second

	// DefaultQueueSize bounds events waiting to be published.
	DefaultQueueSize = 256
)

// JetStreamPublisher is the part of jetstream.JetStream used here.
type JetStreamPublisher interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// Publisher sends turn events to one subject. TurnCompleted only queues
// the event; a single worker publishes them in order.
type Publisher struct {
	js      JetStreamPublisher
	subject string
	logger  *slog.Logger
	now     func() time.Time

	mu     sync.Mutex
	closed bool
	queue  chan TurnCompleted
	done   chan struct{}
}

// NewPublisher creates a publisher for subject and starts its worker.
// queueSize <= 0 uses DefaultQueueSize.
func NewPublisher(js JetStreamPublisher, subject string, queueSize int, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	p := &Publisher{
		js:      js,
		subject: subject,
		logger:  logger,
		now:     time.Now,
		queue:   make(chan TurnCompleted, queueSize),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

// Publish sends ev and waits for the acknowledgement.
func (p *Publisher) Publish(ctx context.Context, ev TurnCompleted) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event for %s: %w", p.subject, err)
	}
	if _, err := p.js.Publish(ctx, p.subject, payload); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", p.subject, err)
	}
	return nil
}

// TurnCompleted queues an event for r without blocking. The event is
// dropped when the queue is full or the publisher is closed.
func (p *Publisher) TurnCompleted(_ context.Context, r *pipeline.TurnReport) {
	ev := NewTurnCompleted(r, p.now())

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.queue <- ev:
	default:
		p.logger.Warn("turn event queue full, dropping event",
			"event_id", ev.ID,
			"session_id", r.SessionID,
		)
	}
}

// Close stops accepting events and waits until queued events are
// published or ctx expires.
func (p *Publisher) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("turn events still queued: %w", ctx.Err())
	}
}

func (p *Publisher) run() {
	defer close(p.done)

	for ev := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		err := p.Publish(ctx, ev)
		cancel()

		if err != nil {
			p.logger.Warn("failed to publish turn event",
				"event_id", ev.ID,
				"session_id", ev.SessionID,
				"error", err,
			)
			continue
		}
		p.logger.Debug("published turn event", "event_id", ev.ID, "session_id", ev.SessionID)
	}
}

var _ pipeline.TurnObserver = (*Publisher)(nil)
