// Package domain holds the persisted chat types shared by the store,
// service and transport layers.
package domain

import (
	"sort"
	"strings"
	"time"
)

// Message is one entry in a thread's message list. The ID is assigned by
// the server at append time; CorrelationID is the client-generated id that
// survives the round trip so the sender can match its optimistic copy.
type Message struct {
	ID            string    `bson:"_id" json:"_id"`
	Sender        string    `bson:"sender" json:"sender"`
	Content       string    `bson:"content" json:"content"`
	CorrelationID string    `bson:"correlation_id,omitempty" json:"correlationId,omitempty"`
	CreatedAt     time.Time `bson:"created_at" json:"timestamp"`
}

// Thread is the persisted conversation between exactly two participants.
// There is at most one thread per unordered participant pair; its _id is
// the canonical pair key, so creation is idempotent by construction.
type Thread struct {
	ID           string    `bson:"_id" json:"_id"`
	Participants []string  `bson:"participants" json:"participants"`
	Messages     []Message `bson:"messages" json:"messages"`
	CreatedAt    time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updatedAt"`
}

// LastMessage returns the newest message or nil for an empty thread.
func (t *Thread) LastMessage() *Message {
	if len(t.Messages) == 0 {
		return nil
	}
	return &t.Messages[len(t.Messages)-1]
}

// Peer returns the participant that is not userID.
func (t *Thread) Peer(userID string) string {
	for _, p := range t.Participants {
		if p != userID {
			return p
		}
	}
	return ""
}

// ThreadSummary is the conversation-list projection: the other participant,
// the latest message and the thread's recency.
type ThreadSummary struct {
	ThreadID     string    `json:"threadId"`
	Peer         string    `json:"peer"`
	LastMessage  *Message  `json:"latestMessage,omitempty"`
	MessageCount int       `json:"messageCount"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// PairKey derives the canonical thread id for an unordered participant
// pair. Both orderings of the same pair map to the same key.
func PairKey(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, ":")
}
