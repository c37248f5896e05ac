// Package bus defines the interfaces for the Kafka message bus carrying
// crawl commands in and progress/model updates out. The abstraction keeps
// the control loop testable without brokers.
package bus

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// Reader abstracts kafka.Reader. Offsets are committed explicitly with
// CommitMessages so the control loop can defer commits until a full
// iteration has completed.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Writer abstracts kafka.Writer.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Topic returns the bus topic for a job kind and channel, e.g.
// dd-trainer-input or dd-crawler-progress.
func Topic(kind, channel string) string {
	return fmt.Sprintf("dd-%s-%s", kind, channel)
}

// NewReader builds a group consumer for the kind's input topic.
func NewReader(brokers []string, groupID, topic string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: groupID,
	})
}

// NewWriter builds a producer for one outbound topic.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
}
