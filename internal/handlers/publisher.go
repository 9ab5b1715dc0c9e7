package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/segmentio/kafka-go"

	types "github.com/yungbote/commerce-backend/internal/domain"
	"github.com/yungbote/commerce-backend/internal/outbox"
	"github.com/yungbote/commerce-backend/internal/platform/logger"
)

// publishedEvent is the wire envelope pushed to Kafka. The aggregate id keys
// the message so one aggregate's events stay ordered within a partition.
type publishedEvent struct {
	EventID       string          `json:"event_id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	OccurredAt    string          `json:"occurred_at"`
	SchemaVersion int             `json:"schema_version"`
	Payload       json.RawMessage `json:"payload"`
}

type kafkaPublisher struct {
	writer messageWriter
	log    *logger.Logger
}

// NewKafkaPublisher returns a fallback outbox handler that forwards every
// record to the configured Kafka topic.
func NewKafkaPublisher(writer messageWriter, baseLog *logger.Logger) outbox.Handler {
	return &kafkaPublisher{
		writer: writer,
		log:    baseLog.With("handler", "KafkaPublisher"),
	}
}

func (p *kafkaPublisher) Handle(ctx context.Context, rec *types.OutboxRecord) error {
	if p.writer == nil {
		return fmt.Errorf("kafka writer not configured")
	}
	env := publishedEvent{
		EventID:       rec.ID.String(),
		AggregateType: rec.AggregateType,
		AggregateID:   rec.AggregateID.String(),
		EventType:     rec.EventType,
		OccurredAt:    rec.OccurredAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		SchemaVersion: rec.SchemaVersion,
		Payload:       json.RawMessage(rec.Payload),
	}
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(rec.AggregateID.String()),
		Value: value,
		Time:  rec.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(rec.EventType)},
			{Key: "schema_version", Value: []byte(strconv.Itoa(rec.SchemaVersion))},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", rec.EventType, err)
	}
	p.log.Debug("event published", "event_id", rec.ID, "event_type", rec.EventType)
	return nil
}
