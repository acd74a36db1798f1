package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/HARSHARORA2812/Vichola/internal/domain"
)

// MemoryStore is an in-process ThreadStore with the same semantics as the
// Mongo implementation. It backs unit tests and the `storage: memory`
// development mode.
type MemoryStore struct {
	mu      sync.RWMutex
	threads map[string]*domain.Thread // pair key -> thread
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{threads: make(map[string]*domain.Thread)}
}

func (s *MemoryStore) GetOrCreateThread(ctx context.Context, userA, userB string) (*domain.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyThread(s.getOrCreateLocked(userA, userB)), nil
}

func (s *MemoryStore) getOrCreateLocked(userA, userB string) *domain.Thread {
	key := domain.PairKey(userA, userB)
	if t, ok := s.threads[key]; ok {
		return t
	}
	now := time.Now().UTC()
	participants := []string{userA, userB}
	sort.Strings(participants)
	t := &domain.Thread{
		ID:           key,
		Participants: participants,
		Messages:     []domain.Message{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.threads[key] = t
	return t
}

func (s *MemoryStore) AppendMessage(ctx context.Context, userA, userB string, msg domain.Message) (*domain.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.getOrCreateLocked(userA, userB)
	t.Messages = append(t.Messages, msg)
	t.UpdatedAt = msg.CreatedAt
	return copyThread(t), nil
}

func (s *MemoryStore) ListThreadsForUser(ctx context.Context, userID string) ([]domain.ThreadSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.ThreadSummary{}
	for _, t := range s.threads {
		member := false
		for _, p := range t.Participants {
			if p == userID {
				member = true
				break
			}
		}
		if !member {
			continue
		}
		var last *domain.Message
		if lm := t.LastMessage(); lm != nil {
			cp := *lm
			last = &cp
		}
		out = append(out, domain.ThreadSummary{
			ThreadID:     t.ID,
			Peer:         t.Peer(userID),
			LastMessage:  last,
			MessageCount: len(t.Messages),
			UpdatedAt:    t.UpdatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

// copyThread returns a snapshot so callers never alias the stored slice.
func copyThread(t *domain.Thread) *domain.Thread {
	cp := *t
	cp.Messages = make([]domain.Message, len(t.Messages))
	copy(cp.Messages, t.Messages)
	cp.Participants = append([]string(nil), t.Participants...)
	return &cp
}
