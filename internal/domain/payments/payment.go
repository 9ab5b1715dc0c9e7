package payments

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending           PaymentStatus = "pending"
	PaymentStatusProcessing        PaymentStatus = "processing"
	PaymentStatusCompleted         PaymentStatus = "completed"
	PaymentStatusFailed            PaymentStatus = "failed"
	PaymentStatusRefunded          PaymentStatus = "refunded"
	PaymentStatusPartiallyRefunded PaymentStatus = "partially_refunded"
)

type PaymentMethod string

const (
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodWallet       PaymentMethod = "wallet"
)

// Payment is the payment bounded context's aggregate root. It references the
// order by id only; a partial unique index on order_id over non-failed rows is
// the authoritative one-active-payment-per-order guard.
type Payment struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID uuid.UUID `gorm:"type:uuid;not null;index" json:"order_id"`

	Currency       string          `gorm:"column:currency;not null" json:"currency"`
	Amount         decimal.Decimal `gorm:"column:amount;type:numeric;not null" json:"amount"`
	RefundedAmount decimal.Decimal `gorm:"column:refunded_amount;type:numeric;not null" json:"refunded_amount"`

	Method PaymentMethod `gorm:"column:method;not null" json:"method"`
	// pending|processing|completed|failed|refunded|partially_refunded
	Status         PaymentStatus `gorm:"column:status;not null;index" json:"status"`
	TransactionRef string        `gorm:"column:transaction_ref" json:"transaction_ref,omitempty"`
	FailureReason  string        `gorm:"column:failure_reason" json:"failure_reason,omitempty"`

	Version int `gorm:"column:version;not null" json:"version"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Payment) TableName() string { return "payment" }
