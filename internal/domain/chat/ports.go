package chat

import (
	"context"
	"errors"

	"github.com/yanqian/pollenpilot/pkg/metrics"
)

// ErrSessionNotFound is returned by stores for unknown session ids.
var ErrSessionNotFound = errors.New("chat session not found")

// ErrCompletionUnauthorized marks a credential rejection by the completion
// service. Completers wrap it so the service can switch to fallback replies.
var ErrCompletionUnauthorized = errors.New("completion service rejected credentials")

// SessionStore persists sessions and ratings.
type SessionStore interface {
	CreateSession(ctx context.Context, scenario, flow string, messages []Message) (Session, error)
	GetSession(ctx context.Context, id string) (Session, bool, error)
	UpdateSession(ctx context.Context, id string, messages []Message) (Session, error)
	RecordRating(ctx context.Context, sessionID string, messageIndex int, rating string) (Rating, error)
}

// CompletionRequest is the payload sent to a completion service.
type CompletionRequest struct {
	SystemInstruction string
	UserText          string
	Model             string
	MaxOutputTokens   int
}

// CompletionResponse carries the generated text.
type CompletionResponse struct {
	Text  string
	Usage metrics.TokenUsage
}

// Completer talks to the external large language model.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}

// TokenCounter estimates token counts for replies that never reached a model.
type TokenCounter interface {
	Count(text string) int
}

// Archiver stores export snapshots outside the session store.
type Archiver interface {
	Archive(ctx context.Context, key string, payload []byte) error
}
