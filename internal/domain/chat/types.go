package chat

import (
	"time"

	"github.com/yanqian/pollenpilot/internal/domain/pollen"
	"github.com/yanqian/pollenpilot/pkg/metrics"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Rating values.
const (
	RatingPositive = "positive"
	RatingNegative = "negative"
)

// Message is a single conversational turn. Messages are never edited once
// appended to a session.
type Message struct {
	Role       string              `json:"role"`
	Content    string              `json:"content"`
	Timestamp  string              `json:"timestamp"`
	Confidence string              `json:"confidence,omitempty"`
	Scenario   string              `json:"scenario,omitempty"`
	TokenUsage *metrics.TokenUsage `json:"tokenUsage,omitempty"`
}

// Session is the persisted conversation record.
type Session struct {
	ID        string    `json:"id"`
	Scenario  string    `json:"scenario"`
	Flow      string    `json:"flow"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
}

// Rating is feedback on an assistant message, stored for analytics only.
type Rating struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"sessionId"`
	MessageIndex int       `json:"messageIndex"`
	Rating       string    `json:"rating"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Export is the downloadable snapshot of a session.
type Export struct {
	SessionID  string    `json:"sessionId"`
	Scenario   string    `json:"scenario"`
	Flow       string    `json:"flow"`
	CreatedAt  time.Time `json:"createdAt"`
	Messages   []Message `json:"messages"`
	ExportedAt string    `json:"exportedAt"`
}

// CreateSessionRequest starts a conversation.
type CreateSessionRequest struct {
	Scenario string    `json:"scenario" validate:"required"`
	Flow     string    `json:"flow" validate:"required"`
	Messages []Message `json:"messages,omitempty"`
}

// SendMessageRequest carries one user turn.
type SendMessageRequest struct {
	Message  string          `json:"message"`
	Scenario pollen.Scenario `json:"scenario"`
	Flow     pollen.Flow     `json:"flow"`
}

// SendMessageResponse returns the new assistant message and the updated
// session.
type SendMessageResponse struct {
	Message Message `json:"message"`
	Session Session `json:"session"`
}

// RatingRequest records feedback for a message.
type RatingRequest struct {
	SessionID    string `json:"sessionId" validate:"required"`
	MessageIndex int    `json:"messageIndex" validate:"min=0"`
	Rating       string `json:"rating" validate:"required,oneof=positive negative"`
}

// FlowInfo describes a flow for clients.
type FlowInfo struct {
	Name        pollen.Flow `json:"name"`
	Description string      `json:"description"`
}

// Config wires runtime settings for the chat domain.
type Config struct {
	Model             string
	MaxOutputTokens   int
	CompletionTimeout time.Duration
	ConfidenceLabel   string
	ArchivePrefix     string
}
