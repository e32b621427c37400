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
	"time"

	"github.com/google/uuid"

	"github.com/pgEdge/pgedge-rag-chat/internal/pipeline"
)

// TurnCompleted describes a finished turn. It carries timings and
// outcomes only; conversation text is not published.
type TurnCompleted struct {
	ID          uuid.UUID    `json:"id"`
	SessionID   string       `json:"session_id"`
	Refined     bool         `json:"refined"`
	Retrieved   int          `json:"retrieved"`
	Ranked      int          `json:"ranked"`
	ResponseLen int          `json:"response_chars"`
	ElapsedMS   int64        `json:"elapsed_ms"`
	Stages      []StageEvent `json:"stages"`
	CompletedAt time.Time    `json:"completed_at"`
}

// StageEvent is the result of one pipeline stage.
type StageEvent struct {
	Stage     string `json:"stage"`
	Outcome   string `json:"outcome"`
	ElapsedMS int64  `json:"elapsed_ms"`
	Error     string `json:"error,omitempty"`
}

// NewTurnCompleted builds an event from a turn report.
func NewTurnCompleted(r *pipeline.TurnReport, now time.Time) TurnCompleted {
	ev := TurnCompleted{
		ID:          uuid.New(),
		SessionID:   r.SessionID,
		Refined:     r.RefinedQuery != "" && r.RefinedQuery != r.Question,
		Retrieved:   r.Retrieved,
		Ranked:      r.Ranked,
		ResponseLen: len([]rune(r.Response)),
		ElapsedMS:   r.Elapsed.Milliseconds(),
		Stages:      make([]StageEvent, 0, len(r.Stages)),
		CompletedAt: now.UTC(),
	}
	for _, s := range r.Stages {
		se := StageEvent{
			Stage:     string(s.Stage),
			Outcome:   string(s.Outcome),
			ElapsedMS: s.Elapsed.Milliseconds(),
		}
		if s.Err != nil {
			se.Error = s.Err.Error()
		}
		ev.Stages = append(ev.Stages, se)
	}
	return ev
}
