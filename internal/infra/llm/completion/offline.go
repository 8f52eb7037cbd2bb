package completion

import (
	"context"
	"fmt"

	"github.com/yanqian/pollenpilot/internal/domain/chat"
)

// OfflineCompleter stands in when no credential is configured. Every call
// reports an authorization failure so the chat service serves fallback
// replies.
type OfflineCompleter struct{}

// Complete implements chat.Completer.
func (OfflineCompleter) Complete(context.Context, chat.CompletionRequest) (chat.CompletionResponse, error) {
	return chat.CompletionResponse{}, fmt.Errorf("%w: no api key configured", chat.ErrCompletionUnauthorized)
}

var _ chat.Completer = OfflineCompleter{}
