//-------------------------------------------------------------------------
//
// pgEdge RAG Chat
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/pgEdge/pgedge-rag-chat/internal/llm"
)

// Default refiner settings.
const (
	DefaultRefinerMaxTokens = 200
	DefaultRefineTimeout    = 30 * time.Second
)

var errEmptyRefinement = errors.New("refinement returned no text")

// Refiner rewrites a follow-up question into a standalone query.
type Refiner struct {
	provider    llm.CompletionProvider
	template    Template
	maxTokens   int
	temperature float64
	timeout     time.Duration
	logger      *slog.Logger
}

// RefinerConfig contains the configuration for creating a Refiner.
type RefinerConfig struct {
	Provider    llm.CompletionProvider
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	Logger      *slog.Logger
}

// NewRefiner creates a query refiner.
func NewRefiner(cfg RefinerConfig) *Refiner {
	r := &Refiner{
		provider:    cfg.Provider,
		template:    RefinerPromptV1,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		logger:      cfg.Logger,
	}
	if r.maxTokens <= 0 {
		r.maxTokens = DefaultRefinerMaxTokens
	}
	if r.timeout <= 0 {
		r.timeout = DefaultRefineTimeout
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Refine returns a standalone version of question given the prior turns.
// With no prior turns the question is returned unchanged and the provider
// is not called. Any failure returns the question unchanged.
func (r *Refiner) Refine(ctx context.Context, prior []Turn, question string) (string, StageResult) {
	start := time.Now()
	res := StageResult{Stage: StageRefine}

	if len(prior) == 0 {
		res.Outcome = OutcomeSkipped
		return question, res
	}

	prompt := r.template.Render(map[string]string{
		"conversation": Transcript(prior),
		"question":     question,
	})

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resp, err := r.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: prompt,
		MaxTokens:    r.maxTokens,
		Temperature:  r.temperature,
	})
	res.Elapsed = time.Since(start)

	if err == nil && strings.TrimSpace(resp.Content) == "" {
		err = errEmptyRefinement
	}
	if err != nil {
		res.Outcome = OutcomeDegraded
		res.Err = err
		r.logger.Warn("query refinement failed, using original question",
			"query", preview(question),
			"elapsed", res.Elapsed,
			"error", err,
		)
		return question, res
	}

	refined := strings.TrimSpace(resp.Content)
	res.Outcome = OutcomeOK
	r.logger.Debug("query refined",
		"query", preview(question),
		"refined", preview(refined),
		"elapsed", res.Elapsed,
	)
	return refined, res
}
