package assistant

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHistoryStore(t *testing.T) *HistoryStore {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewHistoryStore(client)
}

func TestHistoryStoreRoundTrip(t *testing.T) {
	store := newTestHistoryStore(t)
	patientID := uuid.New()

	turns := []ChatMessage{
		{Role: ChatRoleUser, Content: "hi"},
		{Role: ChatRoleAssistant, Content: "hello, how can I help?"},
	}
	require.NoError(t, store.Save(context.Background(), patientID, turns))

	got, err := store.Load(context.Background(), patientID)
	require.NoError(t, err)
	assert.Equal(t, turns, got)
}

func TestHistoryStoreLoadMissing(t *testing.T) {
	store := newTestHistoryStore(t)

	got, err := store.Load(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestHistoryStoreTrimsOldTurns(t *testing.T) {
	store := newTestHistoryStore(t)
	patientID := uuid.New()

	long := make([]ChatMessage, historyMaxTurns+10)
	for i := range long {
		long[i] = ChatMessage{Role: ChatRoleUser, Content: fmt.Sprintf("turn %d", i)}
	}
	require.NoError(t, store.Save(context.Background(), patientID, long))

	got, err := store.Load(context.Background(), patientID)
	require.NoError(t, err)
	require.Len(t, got, historyMaxTurns)
	assert.Equal(t, "turn 10", got[0].Content)
}

func TestHistoryStoreNilSafe(t *testing.T) {
	var store *HistoryStore

	assert.NoError(t, store.Save(context.Background(), uuid.New(), nil))
	got, err := store.Load(context.Background(), uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, got)
}
