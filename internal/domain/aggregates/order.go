package aggregates

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/yungbote/commerce-backend/internal/domain/money"
	"github.com/yungbote/commerce-backend/internal/domain/orders"
)

var OrderAggregateContract = Contract{
	Name:             "Orders.OrderAggregate",
	WriteTxOwnership: WriteTxOwnedByAggregate,
	ReadPolicy:       ReadPolicyInvariantScoped,
	Notes:            "Owns order header + line items; totals invariant re-derived on every mutation.",
}

// OrderAggregate owns order lifecycle invariants.
//
// Write method failures return *aggregates.Error with codes:
// CodeValidation, CodeNotFound, CodeConflict, CodeInvariantViolation,
// CodeRetryable, CodeInternal.
type OrderAggregate interface {
	Aggregate

	// Create validates line items, derives totals and persists a created
	// order together with its order.created outbox record.
	Create(ctx context.Context, in CreateOrderInput) (CreateOrderResult, error)

	// SetPaymentStatus applies a forward-only payment status transition;
	// backward transitions are invariant violations, never silent no-ops.
	SetPaymentStatus(ctx context.Context, in SetOrderPaymentStatusInput) (SetOrderPaymentStatusResult, error)

	// Cancel transitions the order to cancelled; allowed only before shipment.
	Cancel(ctx context.Context, in CancelOrderInput) (CancelOrderResult, error)

	// Reorder synthesizes a new created order from a delivered or cancelled
	// one at caller-supplied current prices.
	Reorder(ctx context.Context, in ReorderInput) (CreateOrderResult, error)
}

type OrderLineInput struct {
	ProductRef string
	Quantity   int
	UnitPrice  money.Money
}

type CreateOrderInput struct {
	OrderID    uuid.UUID // optional; stamped when zero
	UserID     uuid.UUID
	Currency   money.Currency
	Items      []OrderLineInput
	AddressRef string
	CouponCode string

	// TaxRate is applied to the sub-total (e.g. 0.18); shipping and discount
	// are absolute amounts in the order currency.
	TaxRate      decimal.Decimal
	ShippingCost money.Money
	Discount     money.Money

	CreatedAt time.Time
}

type CreateOrderResult struct {
	OrderID     uuid.UUID
	Status      orders.OrderStatus
	TotalAmount money.Money
	Version     int
}

type SetOrderPaymentStatusInput struct {
	OrderID uuid.UUID
	To      orders.OrderPaymentStatus
	At      time.Time
}

type SetOrderPaymentStatusResult struct {
	OrderID       uuid.UUID
	Status        orders.OrderStatus
	PaymentStatus orders.OrderPaymentStatus
	Version       int
}

type CancelOrderInput struct {
	OrderID     uuid.UUID
	Reason      string
	CancelledAt time.Time
}

type CancelOrderResult struct {
	OrderID uuid.UUID
	Status  orders.OrderStatus
	Version int
}

type ReorderInput struct {
	SourceOrderID uuid.UUID
	UserID        uuid.UUID
	AddressRef    string

	// CurrentPrices maps product refs to their present unit prices; price
	// re-validation is the caller's responsibility. A source line whose
	// product ref is absent here fails validation.
	CurrentPrices map[string]money.Money

	TaxRate      decimal.Decimal
	ShippingCost money.Money
	Discount     money.Money

	CreatedAt time.Time
}
