package sessionstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/pollenpilot/internal/domain/chat"
	"github.com/yanqian/pollenpilot/pkg/metrics"
)

func TestMemoryStoreSessionLifecycle(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	session, err := store.CreateSession(ctx, "Deceptive Calm", "General", nil)
	require.NoError(t, err)
	require.NotEmpty(t, session.ID)
	require.NotNil(t, session.Messages)
	require.False(t, session.CreatedAt.IsZero())

	got, found, err := store.GetSession(ctx, session.ID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, session, got)

	messages := []chat.Message{
		{Role: chat.RoleUser, Content: "hi"},
		{Role: chat.RoleAssistant, Content: "hello", TokenUsage: &metrics.TokenUsage{TotalTokens: 3}},
	}
	updated, err := store.UpdateSession(ctx, session.ID, messages)
	require.NoError(t, err)
	require.Len(t, updated.Messages, 2)
	require.Equal(t, session.CreatedAt, updated.CreatedAt)

	messages[0].Content = "mutated"
	messages[1].TokenUsage.TotalTokens = 99
	got, _, err = store.GetSession(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, "hi", got.Messages[0].Content)
	require.Equal(t, 3, got.Messages[1].TokenUsage.TotalTokens)
}

func TestMemoryStoreUnknownSession(t *testing.T) {
	store := NewMemoryStore()

	_, found, err := store.GetSession(context.Background(), "missing")
	require.NoError(t, err)
	require.False(t, found)

	_, err = store.UpdateSession(context.Background(), "missing", nil)
	require.ErrorIs(t, err, chat.ErrSessionNotFound)
}

func TestMemoryStoreRatingsWithoutSession(t *testing.T) {
	store := NewMemoryStore()

	first, err := store.RecordRating(context.Background(), "never-created", 1, chat.RatingPositive)
	require.NoError(t, err)
	second, err := store.RecordRating(context.Background(), "never-created", 3, chat.RatingNegative)
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	ratings := store.Ratings("never-created")
	require.Len(t, ratings, 2)
	require.Equal(t, 1, ratings[0].MessageIndex)
	require.Equal(t, chat.RatingNegative, ratings[1].Rating)
	require.Empty(t, store.Ratings("other"))
}
