//-------------------------------------------------------------------------
//
// pgEdge RAG Chat
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package ollama

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pgEdge/pgedge-rag-chat/internal/llm"
)

// CompletionProvider implements the llm.CompletionProvider interface.
type CompletionProvider struct {
	client      *Client
	model       string
	temperature float64
}

// NewCompletionProvider creates a new Ollama completion provider.
func NewCompletionProvider(opts ...CompletionOption) *CompletionProvider {
	p := &CompletionProvider{
		client:      NewClient(),
		model:       defaultChatModel,
		temperature: 0.7,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CompletionOption configures the completion provider.
type CompletionOption func(*CompletionProvider)

// WithCompletionModel sets the chat model.
func WithCompletionModel(model string) CompletionOption {
	return func(p *CompletionProvider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithTemperature sets the default temperature.
func WithTemperature(temp float64) CompletionOption {
	return func(p *CompletionProvider) {
		p.temperature = temp
	}
}

// WithCompletionClient sets a custom client.
func WithCompletionClient(client *Client) CompletionOption {
	return func(p *CompletionProvider) {
		p.client = client
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  chatOptions   `json:"options"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

// chatResponse is both the non-streaming response and one NDJSON line
// of a stream.
type chatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done            bool   `json:"done"`
	DoneReason      string `json:"done_reason"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	Error           string `json:"error"`
}

func (r *chatResponse) usage() llm.TokenUsage {
	return llm.TokenUsage{
		PromptTokens:     r.PromptEvalCount,
		CompletionTokens: r.EvalCount,
		TotalTokens:      r.PromptEvalCount + r.EvalCount,
	}
}

func (r *chatResponse) finishReason() string {
	if r.DoneReason != "" {
		return r.DoneReason
	}
	return "stop"
}

func (p *CompletionProvider) newChatRequest(req llm.CompletionRequest, stream bool) chatRequest {
	temperature := p.temperature
	if req.Temperature >= 0 {
		temperature = req.Temperature
	}

	messages := make([]chatMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	for _, msg := range req.Messages {
		messages = append(messages, chatMessage{Role: msg.Role, Content: msg.Content})
	}

	return chatRequest{
		Model:    p.model,
		Messages: messages,
		Stream:   stream,
		Options: chatOptions{
			Temperature: temperature,
			NumPredict:  req.MaxTokens,
		},
	}
}

// Complete generates a non-streaming completion.
func (p *CompletionProvider) Complete(
	ctx context.Context,
	req llm.CompletionRequest,
) (*llm.CompletionResponse, error) {
	resp, err := p.client.request(ctx, http.MethodPost, "/api/chat", p.newChatRequest(req, false))
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, parseError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if chatResp.Error != "" {
		return nil, fmt.Errorf("ollama error: %s", chatResp.Error)
	}

	return &llm.CompletionResponse{
		Content:      chatResp.Message.Content,
		FinishReason: chatResp.finishReason(),
		Usage:        chatResp.usage(),
	}, nil
}

// CompleteStream generates a streaming completion from Ollama's NDJSON
// stream.
func (p *CompletionProvider) CompleteStream(
	ctx context.Context,
	req llm.CompletionRequest,
) (<-chan llm.StreamChunk, <-chan error) {
	chunkChan := make(chan llm.StreamChunk)
	errChan := make(chan error, 1)

	go func() {
		defer close(chunkChan)
		defer close(errChan)

		resp, err := p.client.request(ctx, http.MethodPost, "/api/chat", p.newChatRequest(req, true))
		if err != nil {
			errChan <- err
			return
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			errChan <- parseError(resp)
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}

			var chunk chatResponse
			if err := json.Unmarshal(line, &chunk); err != nil {
				continue
			}
			if chunk.Error != "" {
				errChan <- fmt.Errorf("stream error: %s", chunk.Error)
				return
			}

			streamChunk := llm.StreamChunk{Content: chunk.Message.Content}
			if chunk.Done {
				usage := chunk.usage()
				streamChunk.FinishReason = chunk.finishReason()
				streamChunk.Usage = &usage
			}

			select {
			case chunkChan <- streamChunk:
			case <-ctx.Done():
				errChan <- ctx.Err()
				return
			}

			if chunk.Done {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			errChan <- fmt.Errorf("stream read error: %w", err)
		}
	}()

	return chunkChan, errChan
}

// ModelName returns the model name.
func (p *CompletionProvider) ModelName() string {
	return p.model
}

var _ llm.CompletionProvider = (*CompletionProvider)(nil)
