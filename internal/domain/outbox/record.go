package outbox

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Record is one transactional-outbox row. It is appended in the same database
// transaction that commits the aggregate mutation it describes, and is only
// marked delivered after a confirmed handler success. The row id doubles as
// the event id downstream handlers key idempotency off.
type Record struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	AggregateType string    `gorm:"column:aggregate_type;not null;index" json:"aggregate_type"`
	AggregateID   uuid.UUID `gorm:"type:uuid;column:aggregate_id;not null;index" json:"aggregate_id"`

	EventType     string         `gorm:"column:event_type;not null;index" json:"event_type"`
	Payload       datatypes.JSON `gorm:"column:payload;type:jsonb" json:"payload"`
	SchemaVersion int            `gorm:"column:schema_version;not null" json:"schema_version"`

	OccurredAt time.Time `gorm:"column:occurred_at;not null" json:"occurred_at"`
	CreatedAt  time.Time `gorm:"not null;index" json:"created_at"`

	DeliveredAt   *time.Time `gorm:"column:delivered_at;index" json:"delivered_at,omitempty"`
	AttemptCount  int        `gorm:"column:attempt_count;not null" json:"attempt_count"`
	NextAttemptAt *time.Time `gorm:"column:next_attempt_at;index" json:"next_attempt_at,omitempty"`
	LastError     string     `gorm:"column:last_error" json:"last_error,omitempty"`

	// Lease fields implement the atomic claim that keeps concurrent relay
	// instances from dispatching the same record simultaneously.
	LeasedBy    string     `gorm:"column:leased_by" json:"leased_by,omitempty"`
	LeasedUntil *time.Time `gorm:"column:leased_until;index" json:"leased_until,omitempty"`

	DeadLetteredAt *time.Time `gorm:"column:dead_lettered_at;index" json:"dead_lettered_at,omitempty"`
}

func (Record) TableName() string { return "outbox_record" }

func (r *Record) Delivered() bool    { return r.DeliveredAt != nil }
func (r *Record) DeadLettered() bool { return r.DeadLetteredAt != nil }
