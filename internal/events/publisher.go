// Package events publishes persisted-message events to Kafka for
// downstream consumers (notification fan-out, unread counters).
package events

import (
	"context"
	"encoding/json"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/HARSHARORA2812/Vichola/internal/domain"
)

type Publisher struct {
	writer *kafkago.Writer
}

func NewPublisher(brokers []string, topic string) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
		Async:        false,
	}
	return &Publisher{writer: w}
}

type messageAppended struct {
	ThreadID string         `json:"threadId"`
	Message  domain.Message `json:"message"`
}

// PublishMessageAppended emits one event per persisted append, keyed by
// thread id so events for one conversation stay in partition order.
func (p *Publisher) PublishMessageAppended(ctx context.Context, threadID string, msg domain.Message) error {
	b, err := json.Marshal(messageAppended{ThreadID: threadID, Message: msg})
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(threadID),
		Value: b,
		Time:  time.Now(),
	})
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
