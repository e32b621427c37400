//-------------------------------------------------------------------------
//
// pgEdge RAG Chat
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package anthropic

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pgEdge/pgedge-rag-chat/internal/llm"
)

// CompletionProvider implements the llm.CompletionProvider interface.
type CompletionProvider struct {
	client      *Client
	model       string
	maxTokens   int
	temperature float64
}

// NewCompletionProvider creates a new Anthropic completion provider.
func NewCompletionProvider(apiKey string, opts ...CompletionOption) *CompletionProvider {
	p := &CompletionProvider{
		client:      NewClient(apiKey),
		model:       defaultModel,
		maxTokens:   4096,
		temperature: 0.7,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CompletionOption configures the completion provider.
type CompletionOption func(*CompletionProvider)

// WithCompletionModel sets the model.
func WithCompletionModel(model string) CompletionOption {
	return func(p *CompletionProvider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithMaxTokens sets the default max tokens.
func WithMaxTokens(tokens int) CompletionOption {
	return func(p *CompletionProvider) {
		p.maxTokens = tokens
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

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
	Stream      bool      `json:"stream,omitempty"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// streamEvent is one server-sent event of the messages stream.
type streamEvent struct {
	Type  string `json:"type"`
	Delta *struct {
		Type       string `json:"type"`
		Text       string `json:"text"`
		StopReason string `json:"stop_reason"`
	} `json:"delta,omitempty"`
	Message *struct {
		Usage struct {
			InputTokens int `json:"input_tokens"`
		} `json:"usage"`
	} `json:"message,omitempty"`
	Usage *struct {
		OutputTokens int `json:"output_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *CompletionProvider) newMessagesRequest(req llm.CompletionRequest, stream bool) messagesRequest {
	messages, system := p.buildMessages(req)

	maxTokens := p.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	temperature := p.temperature
	if req.Temperature >= 0 {
		temperature = req.Temperature
	}

	return messagesRequest{
		Model:       p.model,
		MaxTokens:   maxTokens,
		System:      system,
		Messages:    messages,
		Temperature: temperature,
		Stream:      stream,
	}
}

// Complete generates a non-streaming completion.
func (p *CompletionProvider) Complete(
	ctx context.Context,
	req llm.CompletionRequest,
) (*llm.CompletionResponse, error) {
	resp, err := p.client.request(ctx, http.MethodPost, "/messages", p.newMessagesRequest(req, false))
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

	var msgResp messagesResponse
	if err := json.Unmarshal(body, &msgResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	var content strings.Builder
	for _, c := range msgResp.Content {
		if c.Type == "text" {
			content.WriteString(c.Text)
		}
	}

	return &llm.CompletionResponse{
		Content:      content.String(),
		FinishReason: msgResp.StopReason,
		Usage: llm.TokenUsage{
			PromptTokens:     msgResp.Usage.InputTokens,
			CompletionTokens: msgResp.Usage.OutputTokens,
			TotalTokens:      msgResp.Usage.InputTokens + msgResp.Usage.OutputTokens,
		},
	}, nil
}

// CompleteStream generates a streaming completion.
func (p *CompletionProvider) CompleteStream(
	ctx context.Context,
	req llm.CompletionRequest,
) (<-chan llm.StreamChunk, <-chan error) {
	chunkChan := make(chan llm.StreamChunk)
	errChan := make(chan error, 1)

	go func() {
		defer close(chunkChan)
		defer close(errChan)

		resp, err := p.client.request(ctx, http.MethodPost, "/messages", p.newMessagesRequest(req, true))
		if err != nil {
			errChan <- err
			return
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			errChan <- parseError(resp)
			return
		}

		send := func(chunk llm.StreamChunk) bool {
			select {
			case chunkChan <- chunk:
				return true
			case <-ctx.Done():
				errChan <- ctx.Err()
				return false
			}
		}

		scanner := bufio.NewScanner(resp.Body)
		var inputTokens int

		for scanner.Scan() {
			data, ok := strings.CutPrefix(scanner.Text(), "data: ")
			if !ok || data == "" {
				continue
			}

			var event streamEvent
			if err := json.Unmarshal([]byte(data), &event); err != nil {
				continue
			}

			switch event.Type {
			case "message_start":
				if event.Message != nil {
					inputTokens = event.Message.Usage.InputTokens
				}
			case "content_block_delta":
				if event.Delta != nil && event.Delta.Type == "text_delta" {
					if !send(llm.StreamChunk{Content: event.Delta.Text}) {
						return
					}
				}
			case "message_delta":
				if event.Delta == nil || event.Delta.StopReason == "" {
					continue
				}
				chunk := llm.StreamChunk{FinishReason: event.Delta.StopReason}
				if event.Usage != nil {
					chunk.Usage = &llm.TokenUsage{
						PromptTokens:     inputTokens,
						CompletionTokens: event.Usage.OutputTokens,
						TotalTokens:      inputTokens + event.Usage.OutputTokens,
					}
				}
				if !send(chunk) {
					return
				}
			case "error":
				msg := "unknown stream error"
				if event.Error != nil {
					msg = event.Error.Type + ": " + event.Error.Message
				}
				errChan <- fmt.Errorf("stream error: %s", msg)
				return
			case "message_stop":
				return
			}
		}

		if err := scanner.Err(); err != nil {
			errChan <- fmt.Errorf("stream read error: %w", err)
		}
	}()

	return chunkChan, errChan
}

// buildMessages splits the request into Anthropic's top-level system
// prompt and user/assistant messages. The API rejects an empty message
// list, so a system-only request is sent as a single user message.
func (p *CompletionProvider) buildMessages(req llm.CompletionRequest) ([]message, string) {
	messages := make([]message, 0, len(req.Messages))
	system := req.SystemPrompt

	for _, msg := range req.Messages {
		if msg.Role == "system" {
			if system == "" {
				system = msg.Content
			} else {
				system = msg.Content + "\n\n" + system
			}
			continue
		}
		messages = append(messages, message{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	if len(messages) == 0 && system != "" {
		return []message{{Role: "user", Content: system}}, ""
	}

	return messages, system
}

// ModelName returns the model name.
func (p *CompletionProvider) ModelName() string {
	return p.model
}

var _ llm.CompletionProvider = (*CompletionProvider)(nil)
