package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/HARSHARORA2812/Vichola/internal/store"
)

func newService() (*ChatService, *store.MemoryStore) {
	st := store.NewMemoryStore()
	return NewChatService(st, nil, zap.NewNop().Sugar()), st
}

func TestAppendMessageRejectsEmptyContent(t *testing.T) {
	svc, st := newService()
	ctx := context.Background()

	for _, content := range []string{"", "   ", "\t\n  "} {
		_, err := svc.AppendMessage(ctx, "u1", "u2", content, "")
		require.ErrorIs(t, err, ErrEmptyContent)
	}

	// rejection must not have created or touched a thread
	out, err := st.ListThreadsForUser(ctx, "u1")
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestAppendMessageAssignsServerFields(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	before := time.Now().UTC()

	thread, err := svc.AppendMessage(ctx, "u1", "u2", "  Hi!  ", "corr-1")
	require.NoError(t, err)
	require.Len(t, thread.Messages, 1)

	m := thread.Messages[0]
	require.NotEmpty(t, m.ID)
	require.Equal(t, "u1", m.Sender)
	require.Equal(t, "Hi!", m.Content, "content is trimmed")
	require.Equal(t, "corr-1", m.CorrelationID, "correlation id survives the round trip")
	require.False(t, m.CreatedAt.Before(before))
}

func TestAppendMessageIDsAreUnique(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	thread, err := svc.AppendMessage(ctx, "u1", "u2", "one", "")
	require.NoError(t, err)
	thread, err = svc.AppendMessage(ctx, "u1", "u2", "two", "")
	require.NoError(t, err)

	require.Len(t, thread.Messages, 2)
	require.NotEqual(t, thread.Messages[0].ID, thread.Messages[1].ID)
}

func TestPreview(t *testing.T) {
	require.Equal(t, "short", Preview("short"))

	long := strings.Repeat("x", 80)
	require.Equal(t, strings.Repeat("x", 30), Preview(long))

	// rune-safe truncation
	require.Equal(t, strings.Repeat("日", 30), Preview(strings.Repeat("日", 40)))
}
