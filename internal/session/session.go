//-------------------------------------------------------------------------
//
// pgEdge RAG Chat
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package session drives one chat connection: it reads a question, runs
// the turn pipeline and waits for the next question.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/google/uuid"

	"github.com/pgEdge/pgedge-rag-chat/internal/pipeline"
)

var (
	// ErrChannelClosed is returned when the peer has gone away.
	ErrChannelClosed = errors.New("channel closed")

	// ErrBinaryFrame is returned when the peer sends a non-text frame.
	ErrBinaryFrame = errors.New("binary frames are not supported")

	// ErrTurnPanic wraps a panic recovered while processing a turn.
	ErrTurnPanic = errors.New("panic while processing turn")
)

// Channel is a duplex text channel. Receive and Send return errors
// wrapping ErrChannelClosed once the peer is gone. Receive is called
// concurrently with Send and Close.
type Channel interface {
	Receive(ctx context.Context) (string, error)
	Send(ctx context.Context, text string) error
	Close(reason error) error
}

// TurnProcessor runs one turn. pipeline.Orchestrator implements it.
type TurnProcessor interface {
	ProcessTurn(ctx context.Context, history *pipeline.History, text string, sink pipeline.Sink) (*pipeline.TurnReport, error)
}

// Session owns one channel and its conversation history.
type Session struct {
	id        string
	channel   Channel
	processor TurnProcessor
	history   *pipeline.History
	logger    *slog.Logger
}

// Config contains the configuration for creating a Session. An empty ID
// is replaced by a random UUID.
type Config struct {
	ID        string
	Channel   Channel
	Processor TurnProcessor
	Logger    *slog.Logger
}

// New creates a session with an empty history.
func New(cfg Config) *Session {
	id := cfg.ID
	if id == "" {
		id = uuid.NewString()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Session{
		id:        id,
		channel:   cfg.Channel,
		processor: cfg.Processor,
		history:   pipeline.NewHistory(),
		logger:    logger.With("session", id),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Turns returns a copy of the conversation so far.
func (s *Session) Turns() []pipeline.Turn {
	return s.history.Turns()
}

// inboxSize bounds frames read ahead while a turn runs.
const inboxSize = 8

type inbound struct {
	text string
	err  error
}

// Run processes messages one at a time until the channel closes or ctx
// is cancelled. A closed channel is a normal end and returns nil.
//
// Frames are read by a separate goroutine so that a peer leaving during
// a turn cancels the turn's provider calls instead of waiting for them.
func (s *Session) Run(ctx context.Context) error {
	ctx = pipeline.WithSessionID(ctx, s.id)
	ctx, cancel := context.WithCancelCause(ctx)
	s.logger.Info("session started")

	inbox := make(chan inbound, inboxSize)
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		s.receive(ctx, cancel, inbox)
	}()
	defer func() {
		cancel(nil)
		<-readerDone
	}()

	for {
		var msg inbound
		select {
		case msg = <-inbox:
		case <-ctx.Done():
			return s.end(ctx, context.Cause(ctx))
		}
		if msg.err != nil {
			return s.end(ctx, msg.err)
		}

		s.logger.Debug("message received", "length", len(msg.text))

		if err := s.HandleInboundMessage(ctx, msg.text); err != nil {
			// Report the hang-up rather than the cancellation it caused.
			if cause := context.Cause(ctx); errors.Is(cause, ErrChannelClosed) {
				err = cause
			}
			return s.end(ctx, err)
		}
	}
}

// receive feeds inbox until the channel fails. A closed channel cancels
// ctx at once, abandoning any turn in progress.
func (s *Session) receive(ctx context.Context, cancel context.CancelCauseFunc, inbox chan<- inbound) {
	for {
		text, err := s.channel.Receive(ctx)
		if errors.Is(err, ErrChannelClosed) {
			cancel(err)
			return
		}

		select {
		case inbox <- inbound{text: text, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

// HandleInboundMessage runs one turn for text, writing its frames to the
// channel and appending to the history. A panic is recovered and
// returned as ErrTurnPanic.
func (s *Session) HandleInboundMessage(ctx context.Context, text string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic while processing turn",
				"panic", r,
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("%w: %v", ErrTurnPanic, r)
		}
	}()

	_, err = s.processor.ProcessTurn(pipeline.WithSessionID(ctx, s.id), s.history, text, s.channel)
	return err
}

// end closes the channel for the reason the loop stopped.
func (s *Session) end(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, ErrChannelClosed):
		s.logger.Info("session ended", "turns", s.history.Len())
		return nil

	case ctx.Err() != nil:
		s.logger.Info("session cancelled", "turns", s.history.Len())
		_ = s.channel.Close(ctx.Err())
		return nil

	case errors.Is(err, ErrBinaryFrame):
		s.logger.Warn("rejecting binary frame")
		_ = s.channel.Close(ErrBinaryFrame)
		return err

	default:
		s.logger.Error("session failed", "error", err)
		// Best effort; the channel may already be unusable.
		if sendErr := s.channel.Send(ctx, pipeline.TurnErrorText); sendErr != nil {
			s.logger.Debug("failed to send error notice", "error", sendErr)
		}
		_ = s.channel.Close(err)
		return err
	}
}
