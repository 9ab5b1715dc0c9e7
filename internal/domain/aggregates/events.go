package aggregates

import (
	"time"

	"github.com/google/uuid"
)

// EventSchemaVersion is the current outbox payload schema version.
const EventSchemaVersion = 1

// Aggregate type labels carried on outbox records.
const (
	AggregateTypeOrder   = "order"
	AggregateTypePayment = "payment"
	AggregateTypeInvoice = "invoice"
	AggregateTypeSplit   = "order_split"
)

// Cross-context event types. Delivery is at-least-once; consumers key
// idempotency off the event id and can use the "version" payload field to
// reject stale events, since arrival order is not guaranteed.
const (
	EventOrderCreated   = "order.created"
	EventOrderCancelled = "order.cancelled"

	EventPaymentCreated  = "payment.created"
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
	EventPaymentRefunded = "payment.refunded"

	EventInvoiceIssued = "invoice.issued"
	EventInvoiceSent   = "invoice.sent"

	EventOrderSplitCreated   = "order_split.created"
	EventOrderSplitCancelled = "order_split.cancelled"
	EventOrderSplitCompleted = "order_split.completed"
)

// Event is the envelope an aggregate mutation emits. The transactional unit
// is the only component that turns events into persisted outbox rows, always
// inside the same commit as the mutation itself.
type Event struct {
	EventID       uuid.UUID      `json:"event_id"`
	AggregateType string         `json:"aggregate_type"`
	AggregateID   uuid.UUID      `json:"aggregate_id"`
	EventType     string         `json:"event_type"`
	OccurredAt    time.Time      `json:"occurred_at"`
	Payload       map[string]any `json:"payload"`
	SchemaVersion int            `json:"schema_version"`
}

// NewEvent stamps a fresh envelope for an aggregate mutation.
func NewEvent(aggregateType string, aggregateID uuid.UUID, eventType string, occurredAt time.Time, payload map[string]any) Event {
	if payload == nil {
		payload = map[string]any{}
	}
	return Event{
		EventID:       uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		OccurredAt:    occurredAt.UTC(),
		Payload:       payload,
		SchemaVersion: EventSchemaVersion,
	}
}
