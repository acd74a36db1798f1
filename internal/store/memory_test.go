package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/HARSHARORA2812/Vichola/internal/domain"
)

func TestGetOrCreateThreadIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	first, err := s.GetOrCreateThread(ctx, "u1", "u2")
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)
	require.Empty(t, first.Messages)

	// repeated calls, in either participant order, return the same thread
	second, err := s.GetOrCreateThread(ctx, "u1", "u2")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	swapped, err := s.GetOrCreateThread(ctx, "u2", "u1")
	require.NoError(t, err)
	require.Equal(t, first.ID, swapped.ID)
}

func TestAppendMessageOrderAndRecency(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	before := time.Now().UTC()

	msg := func(sender, content string) domain.Message {
		return domain.Message{
			ID:        sender + "-" + content,
			Sender:    sender,
			Content:   content,
			CreatedAt: time.Now().UTC(),
		}
	}

	thread, err := s.AppendMessage(ctx, "u1", "u2", msg("u1", "hello"))
	require.NoError(t, err)
	require.Len(t, thread.Messages, 1)

	thread, err = s.AppendMessage(ctx, "u2", "u1", msg("u2", "hi back"))
	require.NoError(t, err)
	require.Len(t, thread.Messages, 2)

	last := thread.LastMessage()
	require.NotNil(t, last)
	require.Equal(t, "hi back", last.Content)
	require.Equal(t, "u2", last.Sender)
	require.False(t, last.CreatedAt.Before(before))
	require.Equal(t, last.CreatedAt, thread.UpdatedAt)
}

func TestAppendCreatesThreadForNewPair(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	thread, err := s.AppendMessage(ctx, "a", "b", domain.Message{
		ID: "m1", Sender: "a", Content: "first contact", CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	require.Equal(t, domain.PairKey("a", "b"), thread.ID)

	same, err := s.GetOrCreateThread(ctx, "b", "a")
	require.NoError(t, err)
	require.Equal(t, thread.ID, same.ID)
	require.Len(t, same.Messages, 1)
}

func TestListThreadsForUserOrdering(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Now().UTC()

	_, err := s.AppendMessage(ctx, "me", "older", domain.Message{
		ID: "m1", Sender: "me", Content: "old", CreatedAt: base.Add(-time.Hour),
	})
	require.NoError(t, err)
	_, err = s.AppendMessage(ctx, "me", "newer", domain.Message{
		ID: "m2", Sender: "newer", Content: "new", CreatedAt: base,
	})
	require.NoError(t, err)
	_, err = s.GetOrCreateThread(ctx, "stranger1", "stranger2")
	require.NoError(t, err)

	out, err := s.ListThreadsForUser(ctx, "me")
	require.NoError(t, err)
	require.Len(t, out, 2)

	require.Equal(t, "newer", out[0].Peer)
	require.Equal(t, "older", out[1].Peer)
	require.Equal(t, "new", out[0].LastMessage.Content)
	require.Equal(t, 1, out[0].MessageCount)
}

func TestSnapshotsDoNotAliasStore(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	thread, err := s.AppendMessage(ctx, "u1", "u2", domain.Message{
		ID: "m1", Sender: "u1", Content: "original", CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	thread.Messages[0].Content = "mutated"

	fresh, err := s.GetOrCreateThread(ctx, "u1", "u2")
	require.NoError(t, err)
	require.Equal(t, "original", fresh.Messages[0].Content)
}

func TestSummaryLastMessageDoesNotAliasStore(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.AppendMessage(ctx, "u1", "u2", domain.Message{
		ID: "m1", Sender: "u1", Content: "original", CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	out, err := s.ListThreadsForUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, out, 1)
	out[0].LastMessage.Content = "mutated"

	fresh, err := s.GetOrCreateThread(ctx, "u1", "u2")
	require.NoError(t, err)
	require.Equal(t, "original", fresh.Messages[0].Content)
}
