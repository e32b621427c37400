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
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pgEdge/pgedge-rag-chat/internal/llm"
)

// Default generation settings.
const (
	DefaultTemperature     = 0.1
	DefaultMaxTokens       = 2000
	DefaultGenerateTimeout = 120 * time.Second
)

// Generator streams the answer for the latest user turn.
type Generator struct {
	provider    llm.CompletionProvider
	template    Template
	maxTokens   int
	temperature float64
	timeout     time.Duration
	logger      *slog.Logger
}

// GeneratorConfig contains the configuration for creating a Generator.
type GeneratorConfig struct {
	Provider    llm.CompletionProvider
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	Logger      *slog.Logger
}

// NewGenerator creates a streaming generator.
func NewGenerator(cfg GeneratorConfig) *Generator {
	g := &Generator{
		provider:    cfg.Provider,
		template:    QAPromptV1,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		logger:      cfg.Logger,
	}
	if g.maxTokens <= 0 {
		g.maxTokens = DefaultMaxTokens
	}
	if g.timeout <= 0 {
		g.timeout = DefaultGenerateTimeout
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	return g
}

// Generate streams the answer to sink and returns the complete response.
// A provider failure sends GenerationErrorText; the response is then the
// fragments already sent followed by that text. The error is non-nil only when the sink fails or ctx is
// cancelled; the response is then incomplete and must be discarded.
func (g *Generator) Generate(
	ctx context.Context,
	history []Turn,
	rc RankedContext,
	sink Sink,
) (string, StageResult, error) {
	start := time.Now()
	res := StageResult{Stage: StageGenerate}

	req := llm.CompletionRequest{
		SystemPrompt: g.template.Render(map[string]string{
			"context":  rc.String(),
			"question": latestQuestion(history),
		}),
		Messages:    toMessages(history),
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	}

	genCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	chunkChan, errChan := g.provider.CompleteStream(genCtx, req)

	var response strings.Builder
	fragments := 0
	for chunk := range chunkChan {
		if chunk.Content == "" {
			continue
		}
		if err := sink.Send(ctx, chunk.Content); err != nil {
			cancel()
			res.Outcome = OutcomeFailed
			res.Err = err
			res.Elapsed = time.Since(start)
			return response.String(), res, fmt.Errorf("failed to send fragment: %w", err)
		}
		response.WriteString(chunk.Content)
		fragments++
	}

	streamErr := <-errChan
	res.Elapsed = time.Since(start)

	if streamErr == nil {
		res.Outcome = OutcomeOK
		g.logger.Debug("generation completed",
			"fragments", fragments,
			"elapsed", res.Elapsed,
		)
		return response.String(), res, nil
	}

	res.Outcome = OutcomeFailed
	res.Err = streamErr

	// The session is gone; nothing can be delivered.
	if err := ctx.Err(); err != nil {
		return response.String(), res, err
	}

	g.logger.Error("generation failed",
		"query", preview(latestQuestion(history)),
		"fragments", fragments,
		"elapsed", res.Elapsed,
		"retryable", llm.IsRetryable(streamErr),
		"error", streamErr,
	)

	// The recorded answer is what the client saw: any partial text
	// followed by the error text.
	response.WriteString(GenerationErrorText)
	if err := sink.Send(ctx, GenerationErrorText); err != nil {
		return response.String(), res, fmt.Errorf("failed to send error text: %w", errors.Join(err, streamErr))
	}
	return response.String(), res, nil
}

// latestQuestion returns the text of the last user turn.
func latestQuestion(history []Turn) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == RoleUser {
			return history[i].Text
		}
	}
	return ""
}

func toMessages(history []Turn) []llm.Message {
	messages := make([]llm.Message, len(history))
	for i, t := range history {
		messages[i] = llm.Message{Role: string(t.Role), Content: t.Text}
	}
	return messages
}
