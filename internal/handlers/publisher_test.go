package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"gorm.io/datatypes"

	types "github.com/yungbote/commerce-backend/internal/domain"
	domainagg "github.com/yungbote/commerce-backend/internal/domain/aggregates"
	"github.com/yungbote/commerce-backend/internal/platform/logger"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("failed to init logger: %v", err)
	}
	return log
}

func testRecord(t *testing.T, eventType string, payload map[string]any) *types.OutboxRecord {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return &types.OutboxRecord{
		ID:            uuid.New(),
		AggregateType: "order",
		AggregateID:   uuid.New(),
		EventType:     eventType,
		Payload:       datatypes.JSON(raw),
		SchemaVersion: 1,
		OccurredAt:    time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC),
	}
}

func TestKafkaPublisherEnvelope(t *testing.T) {
	writer := &fakeWriter{}
	pub := NewKafkaPublisher(writer, testLogger(t))

	rec := testRecord(t, domainagg.EventPaymentCaptured, map[string]any{"order_id": "abc", "amount": "168"})
	if err := pub.Handle(context.Background(), rec); err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	if len(writer.msgs) != 1 {
		t.Fatalf("messages written: want=1 got=%d", len(writer.msgs))
	}

	msg := writer.msgs[0]
	if string(msg.Key) != rec.AggregateID.String() {
		t.Fatalf("message key: want=%s got=%s", rec.AggregateID, msg.Key)
	}
	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	if headers["event_type"] != domainagg.EventPaymentCaptured {
		t.Fatalf("event_type header: want=%s got=%s", domainagg.EventPaymentCaptured, headers["event_type"])
	}
	if headers["schema_version"] != "1" {
		t.Fatalf("schema_version header: want=1 got=%s", headers["schema_version"])
	}

	var env publishedEvent
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if env.EventID != rec.ID.String() {
		t.Fatalf("envelope event_id: want=%s got=%s", rec.ID, env.EventID)
	}
	if env.EventType != domainagg.EventPaymentCaptured {
		t.Fatalf("envelope event_type: want=%s got=%s", domainagg.EventPaymentCaptured, env.EventType)
	}
	if env.OccurredAt != "2026-03-15T09:30:00.000Z" {
		t.Fatalf("envelope occurred_at: want=2026-03-15T09:30:00.000Z got=%s", env.OccurredAt)
	}
	var inner map[string]any
	if err := json.Unmarshal(env.Payload, &inner); err != nil {
		t.Fatalf("unmarshal inner payload: %v", err)
	}
	if inner["order_id"] != "abc" {
		t.Fatalf("inner order_id: want=abc got=%v", inner["order_id"])
	}
}

func TestKafkaPublisherPropagatesWriteError(t *testing.T) {
	writer := &fakeWriter{err: errors.New("broker unreachable")}
	pub := NewKafkaPublisher(writer, testLogger(t))

	rec := testRecord(t, domainagg.EventOrderCreated, map[string]any{"order_id": "abc"})
	err := pub.Handle(context.Background(), rec)
	if err == nil {
		t.Fatalf("expected write error")
	}
	if !errors.Is(err, writer.err) {
		t.Fatalf("expected wrapped writer error, got %v", err)
	}
}
