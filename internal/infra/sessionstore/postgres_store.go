package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yanqian/pollenpilot/internal/domain/chat"
)

const schema = `
CREATE TABLE IF NOT EXISTS chat_sessions (
	id          TEXT PRIMARY KEY,
	scenario    TEXT NOT NULL,
	flow        TEXT NOT NULL,
	messages    JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS response_ratings (
	id             TEXT PRIMARY KEY,
	session_id     TEXT NOT NULL,
	message_index  INTEGER NOT NULL,
	rating         TEXT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS response_ratings_session_idx ON response_ratings (session_id);
`

// querier is the subset of *pgxpool.Pool the store uses.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements chat.SessionStore using pgx.
type PostgresStore struct {
	pool querier
}

// NewPostgresStore constructs the store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the session and rating tables when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure session schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateSession(ctx context.Context, scenario, flow string, messages []chat.Message) (chat.Session, error) {
	payload, err := encodeMessages(messages)
	if err != nil {
		return chat.Session{}, err
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO chat_sessions (id, scenario, flow, messages)
		VALUES ($1, $2, $3, $4::jsonb)
		RETURNING id, scenario, flow, messages, created_at
	`, uuid.NewString(), scenario, flow, payload)
	return scanSession(row)
}

func (s *PostgresStore) GetSession(ctx context.Context, id string) (chat.Session, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, scenario, flow, messages, created_at
		FROM chat_sessions
		WHERE id = $1
	`, id)
	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return chat.Session{}, false, nil
		}
		return chat.Session{}, false, err
	}
	return session, true, nil
}

func (s *PostgresStore) UpdateSession(ctx context.Context, id string, messages []chat.Message) (chat.Session, error) {
	payload, err := encodeMessages(messages)
	if err != nil {
		return chat.Session{}, err
	}
	row := s.pool.QueryRow(ctx, `
		UPDATE chat_sessions
		SET messages = $2::jsonb
		WHERE id = $1
		RETURNING id, scenario, flow, messages, created_at
	`, id, payload)
	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return chat.Session{}, chat.ErrSessionNotFound
		}
		return chat.Session{}, err
	}
	return session, nil
}

func (s *PostgresStore) RecordRating(ctx context.Context, sessionID string, messageIndex int, rating string) (chat.Rating, error) {
	var r chat.Rating
	err := s.pool.QueryRow(ctx, `
		INSERT INTO response_ratings (id, session_id, message_index, rating)
		VALUES ($1, $2, $3, $4)
		RETURNING id, session_id, message_index, rating, created_at
	`, uuid.NewString(), sessionID, messageIndex, rating).Scan(&r.ID, &r.SessionID, &r.MessageIndex, &r.Rating, &r.CreatedAt)
	if err != nil {
		return chat.Rating{}, err
	}
	return r, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (chat.Session, error) {
	var (
		session chat.Session
		raw     []byte
	)
	if err := row.Scan(&session.ID, &session.Scenario, &session.Flow, &raw, &session.CreatedAt); err != nil {
		return chat.Session{}, err
	}
	messages, err := decodeMessages(raw)
	if err != nil {
		return chat.Session{}, fmt.Errorf("decode session %s: %w", session.ID, err)
	}
	session.Messages = messages
	return session, nil
}

func encodeMessages(messages []chat.Message) (string, error) {
	if messages == nil {
		messages = []chat.Message{}
	}
	payload, err := json.Marshal(messages)
	if err != nil {
		return "", fmt.Errorf("encode messages: %w", err)
	}
	return string(payload), nil
}

func decodeMessages(raw []byte) ([]chat.Message, error) {
	messages := []chat.Message{}
	if len(raw) == 0 {
		return messages, nil
	}
	if err := json.Unmarshal(raw, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

var _ chat.SessionStore = (*PostgresStore)(nil)
