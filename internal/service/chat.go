// Package service implements the chat operations behind the REST surface:
// thread get-or-create, message append and conversation listing.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/HARSHARORA2812/Vichola/internal/domain"
	"github.com/HARSHARORA2812/Vichola/internal/store"
)

// ErrEmptyContent is returned for content that is empty after trimming.
// The store is never touched in that case.
var ErrEmptyContent = errors.New("message content cannot be empty")

// previewLen is the number of characters included in new-message
// notifications.
const previewLen = 30

// EventPublisher receives a copy of every persisted append. A nil
// publisher disables event emission.
type EventPublisher interface {
	PublishMessageAppended(ctx context.Context, threadID string, msg domain.Message) error
}

type ChatService struct {
	store  store.ThreadStore
	events EventPublisher
	log    *zap.SugaredLogger
}

func NewChatService(st store.ThreadStore, events EventPublisher, log *zap.SugaredLogger) *ChatService {
	return &ChatService{store: st, events: events, log: log}
}

func (s *ChatService) GetOrCreateThread(ctx context.Context, userID, peerID string) (*domain.Thread, error) {
	return s.store.GetOrCreateThread(ctx, userID, peerID)
}

// AppendMessage validates content, persists the message with a
// server-assigned id and timestamp and returns the updated thread. The
// client's correlation id, when present, is carried through unchanged.
func (s *ChatService) AppendMessage(ctx context.Context, senderID, peerID, content, correlationID string) (*domain.Thread, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}

	msg := domain.Message{
		ID:            uuid.NewString(),
		Sender:        senderID,
		Content:       content,
		CorrelationID: correlationID,
		CreatedAt:     time.Now().UTC(),
	}

	t, err := s.store.AppendMessage(ctx, senderID, peerID, msg)
	if err != nil {
		return nil, err
	}

	if s.events != nil {
		if err := s.events.PublishMessageAppended(ctx, t.ID, msg); err != nil {
			s.log.Warnw("publish message appended", "thread", t.ID, "err", err)
		}
	}
	return t, nil
}

func (s *ChatService) ListThreads(ctx context.Context, userID string) ([]domain.ThreadSummary, error) {
	return s.store.ListThreadsForUser(ctx, userID)
}

// Preview truncates content for notification payloads.
func Preview(content string) string {
	r := []rune(content)
	if len(r) <= previewLen {
		return content
	}
	return string(r[:previewLen])
}
