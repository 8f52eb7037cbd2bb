package sessionstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yanqian/pollenpilot/internal/domain/chat"
)

// MemoryStore keeps sessions and ratings in process memory. Data is lost on
// restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]chat.Session
	ratings  []chat.Rating
	now      func() time.Time
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]chat.Session),
		now:      time.Now,
	}
}

// CreateSession implements chat.SessionStore.
func (s *MemoryStore) CreateSession(_ context.Context, scenario, flow string, messages []chat.Message) (chat.Session, error) {
	session := chat.Session{
		ID:        uuid.NewString(),
		Scenario:  scenario,
		Flow:      flow,
		Messages:  cloneMessages(messages),
		CreatedAt: s.now().UTC(),
	}
	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()
	return cloneSession(session), nil
}

// GetSession implements chat.SessionStore.
func (s *MemoryStore) GetSession(_ context.Context, id string) (chat.Session, bool, error) {
	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return chat.Session{}, false, nil
	}
	return cloneSession(session), true, nil
}

// UpdateSession replaces the message list of an existing session.
func (s *MemoryStore) UpdateSession(_ context.Context, id string, messages []chat.Message) (chat.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return chat.Session{}, chat.ErrSessionNotFound
	}
	session.Messages = cloneMessages(messages)
	s.sessions[id] = session
	return cloneSession(session), nil
}

// RecordRating appends a rating. The session id is not checked.
func (s *MemoryStore) RecordRating(_ context.Context, sessionID string, messageIndex int, rating string) (chat.Rating, error) {
	r := chat.Rating{
		ID:           uuid.NewString(),
		SessionID:    sessionID,
		MessageIndex: messageIndex,
		Rating:       rating,
		CreatedAt:    s.now().UTC(),
	}
	s.mu.Lock()
	s.ratings = append(s.ratings, r)
	s.mu.Unlock()
	return r, nil
}

// Ratings returns the ratings recorded for a session in insertion order.
func (s *MemoryStore) Ratings(sessionID string) []chat.Rating {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []chat.Rating
	for _, r := range s.ratings {
		if r.SessionID == sessionID {
			out = append(out, r)
		}
	}
	return out
}

func cloneSession(session chat.Session) chat.Session {
	session.Messages = cloneMessages(session.Messages)
	return session
}

func cloneMessages(messages []chat.Message) []chat.Message {
	out := make([]chat.Message, len(messages))
	for i, m := range messages {
		if m.TokenUsage != nil {
			usage := *m.TokenUsage
			m.TokenUsage = &usage
		}
		out[i] = m
	}
	return out
}

var _ chat.SessionStore = (*MemoryStore)(nil)
