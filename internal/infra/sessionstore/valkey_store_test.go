package sessionstore

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/pollenpilot/internal/domain/chat"
)

func newValkeyTestStore(t *testing.T, ttl time.Duration) (*ValkeyStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress:       []string{mr.Addr()},
		DisableCache:      true,
		ForceSingleClient: true,
		ClientSetInfo:     valkey.DisableClientSetInfo,
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return NewValkeyStore(client, "test", ttl), mr
}

func TestValkeyStoreUpdateSessionNotFound(t *testing.T) {
	store, mr := newValkeyTestStore(t, time.Hour)

	_, err := store.UpdateSession(context.Background(), "missing", []chat.Message{{Role: chat.RoleUser, Content: "hi"}})
	require.ErrorIs(t, err, chat.ErrSessionNotFound)
	require.False(t, mr.Exists("test:session:missing"))
}

func TestValkeyStoreSessionLifecycle(t *testing.T) {
	store, mr := newValkeyTestStore(t, time.Hour)
	ctx := context.Background()

	session, err := store.CreateSession(ctx, "Deceptive Calm", "General", nil)
	require.NoError(t, err)
	require.NotNil(t, session.Messages)
	key := "test:session:" + session.ID
	require.True(t, mr.Exists(key))
	require.Equal(t, time.Hour, mr.TTL(key))

	updated, err := store.UpdateSession(ctx, session.ID, []chat.Message{
		{Role: chat.RoleUser, Content: "hi"},
		{Role: chat.RoleAssistant, Content: "hello", Confidence: "High"},
	})
	require.NoError(t, err)
	require.Len(t, updated.Messages, 2)

	loaded, found, err := store.GetSession(ctx, session.ID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, updated.Messages, loaded.Messages)
	require.Equal(t, "Deceptive Calm", loaded.Scenario)

	_, found, err = store.GetSession(ctx, "unknown")
	require.NoError(t, err)
	require.False(t, found)
}

func TestValkeyStoreRecordRatingAppendsToList(t *testing.T) {
	store, mr := newValkeyTestStore(t, 0)

	rating, err := store.RecordRating(context.Background(), "s-1", 1, chat.RatingPositive)
	require.NoError(t, err)
	require.NotEmpty(t, rating.ID)

	entries, err := mr.List("test:ratings:s-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	var stored chat.Rating
	require.NoError(t, json.Unmarshal([]byte(entries[0]), &stored))
	require.Equal(t, rating.ID, stored.ID)
	require.Equal(t, 1, stored.MessageIndex)
}

func TestValkeyStoreCorruptDocument(t *testing.T) {
	store, mr := newValkeyTestStore(t, 0)
	require.NoError(t, mr.Set("test:session:bad", "{not json"))

	_, _, err := store.GetSession(context.Background(), "bad")
	require.ErrorContains(t, err, "decode session bad")
}
