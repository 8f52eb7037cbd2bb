package completion

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/yanqian/pollenpilot/internal/domain/chat"
	"github.com/yanqian/pollenpilot/internal/infra/llm/chatgpt"
	"github.com/yanqian/pollenpilot/pkg/metrics"
)

type chatClient interface {
	CreateChatCompletion(ctx context.Context, req chatgpt.ChatCompletionRequest) (chatgpt.ChatCompletionResponse, error)
}

// ChatGPTCompleter adapts the OpenAI chat completions API to chat.Completer.
type ChatGPTCompleter struct {
	client      chatClient
	temperature float32
}

// NewChatGPTCompleter wraps client.
func NewChatGPTCompleter(client *chatgpt.Client, temperature float32) *ChatGPTCompleter {
	return &ChatGPTCompleter{client: client, temperature: temperature}
}

// Complete implements chat.Completer.
func (c *ChatGPTCompleter) Complete(ctx context.Context, req chat.CompletionRequest) (chat.CompletionResponse, error) {
	resp, err := c.client.CreateChatCompletion(ctx, chatgpt.ChatCompletionRequest{
		Model: req.Model,
		Messages: []chatgpt.Message{
			{Role: "system", Content: req.SystemInstruction},
			{Role: "user", Content: req.UserText},
		},
		Temperature: c.temperature,
		MaxTokens:   req.MaxOutputTokens,
	})
	if err != nil {
		var statusErr *chatgpt.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusUnauthorized {
			return chat.CompletionResponse{}, fmt.Errorf("%w: %w", chat.ErrCompletionUnauthorized, err)
		}
		return chat.CompletionResponse{}, err
	}
	var text string
	if len(resp.Choices) > 0 {
		text = resp.Choices[0].Message.Content
	}
	return chat.CompletionResponse{
		Text: text,
		Usage: metrics.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

var _ chat.Completer = (*ChatGPTCompleter)(nil)
