package completion

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/yanqian/pollenpilot/internal/domain/chat"
	"github.com/yanqian/pollenpilot/internal/infra/llm/anthropic"
	"github.com/yanqian/pollenpilot/pkg/metrics"
)

type messagesClient interface {
	CreateMessage(ctx context.Context, req anthropic.MessagesRequest) (anthropic.MessagesResponse, error)
}

// AnthropicCompleter adapts the Messages API to chat.Completer.
type AnthropicCompleter struct {
	client      messagesClient
	temperature *float32
}

// NewAnthropicCompleter wraps client. A zero temperature leaves the API default.
func NewAnthropicCompleter(client *anthropic.Client, temperature float32) *AnthropicCompleter {
	c := &AnthropicCompleter{client: client}
	if temperature > 0 {
		t := temperature
		c.temperature = &t
	}
	return c
}

// Complete implements chat.Completer. Non-text replies yield empty text.
func (c *AnthropicCompleter) Complete(ctx context.Context, req chat.CompletionRequest) (chat.CompletionResponse, error) {
	resp, err := c.client.CreateMessage(ctx, anthropic.MessagesRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxOutputTokens,
		System:      req.SystemInstruction,
		Messages:    []anthropic.Message{{Role: "user", Content: req.UserText}},
		Temperature: c.temperature,
	})
	if err != nil {
		var statusErr *anthropic.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusUnauthorized {
			return chat.CompletionResponse{}, fmt.Errorf("%w: %w", chat.ErrCompletionUnauthorized, err)
		}
		return chat.CompletionResponse{}, err
	}
	text, _ := resp.FirstText()
	return chat.CompletionResponse{
		Text: text,
		Usage: metrics.TokenUsage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}, nil
}

var _ chat.Completer = (*AnthropicCompleter)(nil)
