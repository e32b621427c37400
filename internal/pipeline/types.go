//-------------------------------------------------------------------------
//
// pgEdge RAG Chat
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package pipeline implements the conversation turn pipeline: query
// refinement, similarity search, reranking and streamed generation.
package pipeline

import (
	"context"
	"strings"
	"time"
)

// Role identifies the author of a turn.
type Role string

// Conversation roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// EndSentinel is sent after the last fragment of every completed turn.
const EndSentinel = "[END]"

// Fixed texts sent in place of an answer.
const (
	GenerationErrorText = "An error occurred while generating the response. Please try again."
	TurnErrorText       = "An error occurred. Please try again."
)

// ContextDelimiter separates passages in the generation context.
var ContextDelimiter = "\n" + strings.Repeat("-", 50) + "\n"

// Turn is one message of a conversation. Turns are never modified once
// appended to a History.
type Turn struct {
	Role Role
	Text string
}

// History is the ordered conversation of one session. It is not safe for
// concurrent use; a session owns exactly one.
type History struct {
	turns []Turn
}

// NewHistory returns an empty history.
func NewHistory() *History {
	return &History{}
}

// Append adds a turn at the end.
func (h *History) Append(role Role, text string) {
	h.turns = append(h.turns, Turn{Role: role, Text: text})
}

// Len returns the number of turns.
func (h *History) Len() int {
	return len(h.turns)
}

// Turns returns a copy of the turns in order.
func (h *History) Turns() []Turn {
	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Transcript renders the history one "role: text" line per turn.
func (h *History) Transcript() string {
	return Transcript(h.turns)
}

// Transcript renders turns one "role: text" line per turn.
func Transcript(turns []Turn) string {
	var b strings.Builder
	for _, t := range turns {
		b.WriteString(string(t.Role))
		b.WriteString(": ")
		b.WriteString(t.Text)
		b.WriteString("\n")
	}
	return b.String()
}

// Passage is one retrieved text, produced fresh for each turn.
type Passage struct {
	ID              string
	Text            string
	OriginalRank    int // position in the similarity result
	SimilarityScore float64
	RelevanceScore  *float64 // set by the reranker
}

// RankedContext is the ordered passage list handed to generation.
type RankedContext []Passage

// String joins the passage texts with ContextDelimiter.
func (rc RankedContext) String() string {
	texts := make([]string, len(rc))
	for i, p := range rc {
		texts[i] = p.Text
	}
	return strings.Join(texts, ContextDelimiter)
}

// Stage names a pipeline step.
type Stage string

// Pipeline stages.
const (
	StageRefine   Stage = "refine"
	StageSearch   Stage = "search"
	StageRerank   Stage = "rerank"
	StageGenerate Stage = "generate"
)

// Outcome is how a stage finished.
type Outcome string

// Stage outcomes. Degraded means the stage failed and its documented
// fallback value was used.
const (
	OutcomeOK       Outcome = "ok"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeDegraded Outcome = "degraded"
	OutcomeFailed   Outcome = "failed"
)

// StageResult is returned by every stage instead of an error.
type StageResult struct {
	Stage   Stage
	Outcome Outcome
	Err     error
	Elapsed time.Duration
}

// State is the position of a turn in the pipeline.
type State int

// Turn states, in order.
const (
	StateIdle State = iota
	StateRefining
	StateRetrieving
	StateReranking
	StateGenerating
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRefining:
		return "refining"
	case StateRetrieving:
		return "retrieving"
	case StateReranking:
		return "reranking"
	case StateGenerating:
		return "generating"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// TurnReport describes one processed turn.
type TurnReport struct {
	SessionID    string
	Question     string
	RefinedQuery string
	Response     string
	States       []State
	Stages       []StageResult
	Retrieved    int
	Ranked       int
	Elapsed      time.Duration
}

// Result returns the result recorded for stage.
func (r *TurnReport) Result(stage Stage) (StageResult, bool) {
	for _, res := range r.Stages {
		if res.Stage == stage {
			return res, true
		}
	}
	return StageResult{}, false
}

// Completed reports whether the turn reached StateCompleted.
func (r *TurnReport) Completed() bool {
	return len(r.States) > 0 && r.States[len(r.States)-1] == StateCompleted
}

// Sink receives the text frames of a turn.
type Sink interface {
	Send(ctx context.Context, text string) error
}

// TurnObserver is notified after every completed turn.
type TurnObserver interface {
	TurnCompleted(ctx context.Context, report *TurnReport)
}

type sessionIDKey struct{}

// WithSessionID attaches a session identifier to ctx.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey{}, id)
}

// SessionIDFromContext returns the session identifier, if any.
func SessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey{}).(string)
	return id
}

// preview shortens s for log lines.
func preview(s string) string {
	const max = 100
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
