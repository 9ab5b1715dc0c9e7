package aggregates

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/commerce-backend/internal/domain/billing"
	"github.com/yungbote/commerce-backend/internal/domain/money"
)

var InvoiceAggregateContract = Contract{
	Name:             "Billing.InvoiceAggregate",
	WriteTxOwnership: WriteTxOwnedByAggregate,
	ReadPolicy:       ReadPolicyInvariantScoped,
	Notes:            "At most one invoice per order; money fields are an issuance-time snapshot, immutable after send.",
}

// InvoiceAggregate owns invoice issuance and send-state invariants.
type InvoiceAggregate interface {
	Aggregate

	// Generate issues the invoice for a fully paid order. A second call for
	// the same order returns the existing invoice (idempotent read). Invoice
	// number collisions are retried with fresh numbers, bounded.
	Generate(ctx context.Context, in GenerateInvoiceInput) (GenerateInvoiceResult, error)

	// Send marks the invoice sent; financial content is frozen afterwards.
	Send(ctx context.Context, in SendInvoiceInput) (InvoiceTransitionResult, error)

	// SetPdfURL attaches the rendered artifact; the only post-send mutation.
	SetPdfURL(ctx context.Context, in SetInvoicePdfURLInput) (InvoiceTransitionResult, error)
}

type GenerateInvoiceInput struct {
	OrderID uuid.UUID
	// DueInDays sets due_at = issued_at + DueInDays (net terms).
	DueInDays int
	IssuedAt  time.Time
}

type GenerateInvoiceResult struct {
	InvoiceID     uuid.UUID
	InvoiceNumber string
	Status        billing.InvoiceStatus
	TotalAmount   money.Money
	// AlreadyExisted reports an idempotent replay of a previous issuance.
	AlreadyExisted bool
}

type SendInvoiceInput struct {
	InvoiceID uuid.UUID
	At        time.Time
}

type SetInvoicePdfURLInput struct {
	InvoiceID uuid.UUID
	PdfURL    string
	At        time.Time
}

type InvoiceTransitionResult struct {
	InvoiceID uuid.UUID
	Status    billing.InvoiceStatus
	Version   int
}
