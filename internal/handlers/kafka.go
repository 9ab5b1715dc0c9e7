// Package handlers contains the downstream consumers of the outbox stream:
// the Kafka publisher, the Redis idempotency guard and the in-process
// projections for inventory and notifications.
package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaClient holds broker addresses and builds writers for event topics.
type KafkaClient struct {
	Brokers []string
}

func NewKafkaClient(brokersCSV string) *KafkaClient {
	brokers := []string{}
	for _, b := range strings.Split(brokersCSV, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return &KafkaClient{Brokers: brokers}
}

// Enabled reports whether any broker is configured; with none, the publisher
// is left out of the registry entirely.
func (c *KafkaClient) Enabled() bool {
	return len(c.Brokers) > 0
}

func (c *KafkaClient) NewWriter(topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(c.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: 10 * time.Second,
	}
}

// messageWriter is the slice of *kafka.Writer the publisher needs; tests
// substitute an in-memory implementation.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}
