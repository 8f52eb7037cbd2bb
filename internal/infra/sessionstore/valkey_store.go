package sessionstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/pollenpilot/internal/domain/chat"
)

// ValkeyStore persists sessions as JSON documents in a Valkey-compatible
// database. Every write refreshes the session TTL.
type ValkeyStore struct {
	client valkey.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewValkeyStore constructs a new store backed by Valkey.
func NewValkeyStore(client valkey.Client, prefix string, ttl time.Duration) *ValkeyStore {
	if prefix == "" {
		prefix = "pollenpilot"
	}
	return &ValkeyStore{client: client, prefix: prefix, ttl: ttl, now: time.Now}
}

func (s *ValkeyStore) CreateSession(ctx context.Context, scenario, flow string, messages []chat.Message) (chat.Session, error) {
	if messages == nil {
		messages = []chat.Message{}
	}
	session := chat.Session{
		ID:        uuid.NewString(),
		Scenario:  scenario,
		Flow:      flow,
		Messages:  messages,
		CreatedAt: s.now().UTC(),
	}
	if err := s.saveSession(ctx, session); err != nil {
		return chat.Session{}, err
	}
	return session, nil
}

func (s *ValkeyStore) GetSession(ctx context.Context, id string) (chat.Session, bool, error) {
	cmd := s.client.B().Get().Key(s.sessionKey(id)).Build()
	payload, err := s.client.Do(ctx, cmd).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return chat.Session{}, false, nil
		}
		return chat.Session{}, false, err
	}
	var session chat.Session
	if err := json.Unmarshal([]byte(payload), &session); err != nil {
		return chat.Session{}, false, fmt.Errorf("decode session %s: %w", id, err)
	}
	if session.Messages == nil {
		session.Messages = []chat.Message{}
	}
	return session, true, nil
}

func (s *ValkeyStore) UpdateSession(ctx context.Context, id string, messages []chat.Message) (chat.Session, error) {
	session, found, err := s.GetSession(ctx, id)
	if err != nil {
		return chat.Session{}, err
	}
	if !found {
		return chat.Session{}, chat.ErrSessionNotFound
	}
	session.Messages = messages
	if err := s.saveSession(ctx, session); err != nil {
		return chat.Session{}, err
	}
	return session, nil
}

func (s *ValkeyStore) RecordRating(ctx context.Context, sessionID string, messageIndex int, rating string) (chat.Rating, error) {
	r := chat.Rating{
		ID:           uuid.NewString(),
		SessionID:    sessionID,
		MessageIndex: messageIndex,
		Rating:       rating,
		CreatedAt:    s.now().UTC(),
	}
	payload, err := json.Marshal(r)
	if err != nil {
		return chat.Rating{}, err
	}
	cmd := s.client.B().Rpush().Key(s.ratingsKey(sessionID)).Element(string(payload)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return chat.Rating{}, err
	}
	return r, nil
}

func (s *ValkeyStore) saveSession(ctx context.Context, session chat.Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return err
	}
	builder := s.client.B().Set().Key(s.sessionKey(session.ID)).Value(string(payload))
	var cmd valkey.Completed
	if s.ttl > 0 {
		ttl := s.ttl
		if ttl < time.Second {
			ttl = time.Second
		}
		cmd = builder.Ex(ttl).Build()
	} else {
		cmd = builder.Build()
	}
	return s.client.Do(ctx, cmd).Error()
}

func (s *ValkeyStore) sessionKey(id string) string {
	return fmt.Sprintf("%s:session:%s", s.prefix, id)
}

func (s *ValkeyStore) ratingsKey(sessionID string) string {
	return fmt.Sprintf("%s:ratings:%s", s.prefix, sessionID)
}

var _ chat.SessionStore = (*ValkeyStore)(nil)
