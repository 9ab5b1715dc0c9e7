package aggregates

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/commerce-backend/internal/domain/money"
	"github.com/yungbote/commerce-backend/internal/domain/payments"
)

var PaymentAggregateContract = Contract{
	Name:             "Payments.PaymentAggregate",
	WriteTxOwnership: WriteTxOwnedByAggregate,
	ReadPolicy:       ReadPolicyInvariantScoped,
	Notes:            "Owns capture/refund state; capture and refund also advance the order payment status inside the same commit.",
}

// PaymentAggregate owns payment capture/refund invariants. At most one
// non-failed payment exists per order; the storage-level partial unique index
// is authoritative and the in-memory existence check is only a fast path.
type PaymentAggregate interface {
	Aggregate

	Create(ctx context.Context, in CreatePaymentInput) (CreatePaymentResult, error)

	// Process moves a pending payment to processing.
	Process(ctx context.Context, in ProcessPaymentInput) (PaymentTransitionResult, error)

	// Complete captures a processing payment, records the gateway transaction
	// ref, and sets the order payment status to completed in the same commit.
	Complete(ctx context.Context, in CompletePaymentInput) (PaymentTransitionResult, error)

	// Fail terminates a pending or processing payment.
	Fail(ctx context.Context, in FailPaymentInput) (PaymentTransitionResult, error)

	// Refund applies a full (nil Amount) or partial refund to a completed
	// payment and mirrors the result onto the order payment status.
	Refund(ctx context.Context, in RefundPaymentInput) (RefundPaymentResult, error)
}

type CreatePaymentInput struct {
	PaymentID uuid.UUID // optional; stamped when zero
	OrderID   uuid.UUID
	Amount    money.Money
	Method    payments.PaymentMethod
	CreatedAt time.Time
}

type CreatePaymentResult struct {
	PaymentID uuid.UUID
	Status    payments.PaymentStatus
	Version   int
}

type ProcessPaymentInput struct {
	PaymentID uuid.UUID
	At        time.Time
}

type CompletePaymentInput struct {
	PaymentID      uuid.UUID
	TransactionRef string
	At             time.Time
}

type FailPaymentInput struct {
	PaymentID uuid.UUID
	Reason    string
	At        time.Time
}

type PaymentTransitionResult struct {
	PaymentID uuid.UUID
	OrderID   uuid.UUID
	Status    payments.PaymentStatus
	Amount    money.Money
	Method    payments.PaymentMethod
	Version   int
}

type RefundPaymentInput struct {
	PaymentID uuid.UUID
	// Amount nil means refund the full remaining refundable amount.
	Amount *money.Money
	At     time.Time
}

type RefundPaymentResult struct {
	PaymentID      uuid.UUID
	OrderID        uuid.UUID
	Status         payments.PaymentStatus
	RefundedAmount money.Money
	// Remaining is the refundable amount left after this operation.
	Remaining money.Money
	Version   int
}
