// Package store persists conversation threads. The Mongo implementation is
// the production store; the memory implementation backs tests and local
// development.
package store

import (
	"context"
	"errors"

	"github.com/HARSHARORA2812/Vichola/internal/domain"
)

var ErrNotFound = errors.New("not found")

// ThreadStore is the persistence contract for conversation threads.
// GetOrCreateThread must be idempotent: repeated calls for the same
// unordered pair return the thread with the same id. AppendMessage is a
// single atomic add to the thread's message list, so concurrent appends
// from both participants interleave without lost updates.
type ThreadStore interface {
	GetOrCreateThread(ctx context.Context, userA, userB string) (*domain.Thread, error)
	AppendMessage(ctx context.Context, userA, userB string, msg domain.Message) (*domain.Thread, error)
	ListThreadsForUser(ctx context.Context, userID string) ([]domain.ThreadSummary, error)
}
