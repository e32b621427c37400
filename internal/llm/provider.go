//-------------------------------------------------------------------------
//
// pgEdge RAG Chat
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package llm provides interfaces and shared types for the embedding,
// completion and rerank providers used by the chat pipeline.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// EmbeddingProvider generates vector embeddings from text.
type EmbeddingProvider interface {
	// Embed generates an embedding vector for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the dimensionality of embeddings produced.
	Dimensions() int

	// ModelName returns the name of the model being used.
	ModelName() string
}

// CompletionProvider generates text completions using an LLM.
type CompletionProvider interface {
	// Complete generates a completion for the given prompt.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// CompleteStream generates a streaming completion.
	// The returned channel will receive response chunks until completion,
	// then be closed. Errors are returned via the error channel.
	CompleteStream(
		ctx context.Context,
		req CompletionRequest,
	) (<-chan StreamChunk, <-chan error)

	// ModelName returns the name of the model being used.
	ModelName() string
}

// RerankProvider reorders candidate documents by relevance to a query.
type RerankProvider interface {
	// Rerank returns at most req.TopN results ordered by descending
	// relevance. Each result refers back to req.Documents by index.
	Rerank(ctx context.Context, req RerankRequest) ([]RerankResult, error)

	// ModelName returns the name of the model being used.
	ModelName() string
}

// CompletionRequest represents a request to an LLM for completion.
type CompletionRequest struct {
	// SystemPrompt is the system-level instruction for the model.
	SystemPrompt string

	// Messages is the conversation history. It may be empty when the
	// whole request is carried by SystemPrompt.
	Messages []Message

	// MaxTokens is the maximum number of tokens to generate.
	// If 0, uses the provider's default.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0+ = creative).
	// If negative, uses the provider's default.
	Temperature float64
}

// Message represents a message in the conversation.
type Message struct {
	Role    string // "user", "assistant", or "system"
	Content string
}

// CompletionResponse represents a non-streaming completion response.
type CompletionResponse struct {
	Content      string
	FinishReason string
	Usage        TokenUsage
}

// StreamChunk represents a chunk of a streaming response.
type StreamChunk struct {
	Content      string
	FinishReason string // Empty until the final chunk
	Usage        *TokenUsage
}

// TokenUsage represents token consumption for a request.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// RerankRequest asks a rerank provider to order Documents against Query.
type RerankRequest struct {
	Query     string
	Documents []string
	TopN      int
}

// RerankResult is one reranked document.
type RerankResult struct {
	Index          int     // Position in RerankRequest.Documents
	RelevanceScore float64 // Higher is more relevant
}

// Error types for LLM operations.
type Error struct {
	Code       string
	Message    string
	StatusCode int
	Retryable  bool
}

func (e *Error) Error() string {
	return e.Message
}

// Common error codes
const (
	ErrCodeRateLimit    = "rate_limit"
	ErrCodeInvalidKey   = "invalid_api_key"
	ErrCodeQuotaExceed  = "quota_exceeded"
	ErrCodeModelError   = "model_error"
	ErrCodeTimeout      = "timeout"
	ErrCodeNetworkError = "network_error"
)

// NewAPIError builds an *Error from an HTTP status and provider message.
func NewAPIError(statusCode int, message string) *Error {
	e := &Error{
		Message:    fmt.Sprintf("API error (status %d): %s", statusCode, message),
		StatusCode: statusCode,
		Code:       ErrCodeModelError,
	}

	switch {
	case statusCode == http.StatusTooManyRequests:
		e.Code = ErrCodeRateLimit
		e.Retryable = true
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		e.Code = ErrCodeInvalidKey
	case statusCode == http.StatusPaymentRequired:
		e.Code = ErrCodeQuotaExceed
	case statusCode == http.StatusGatewayTimeout || statusCode == http.StatusRequestTimeout:
		e.Code = ErrCodeTimeout
		e.Retryable = true
	case statusCode >= 500:
		e.Retryable = true
	}

	return e
}

// IsRetryable returns true if the error can be retried.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}
