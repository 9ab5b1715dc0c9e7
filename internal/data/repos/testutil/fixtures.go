package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	types "github.com/yungbote/commerce-backend/internal/domain"
)

func Dec(tb testing.TB, s string) decimal.Decimal {
	tb.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		tb.Fatalf("parse decimal %q: %v", s, err)
	}
	return d
}

// SeedOrder inserts an order with one line item. Totals follow
// sub + tax + shipping - discount so the seeded row satisfies the invariant.
func SeedOrder(tb testing.TB, ctx context.Context, tx *gorm.DB, status types.OrderStatus, paymentStatus types.OrderPaymentStatus) *types.Order {
	tb.Helper()
	now := time.Now().UTC()
	orderID := uuid.New()
	o := &types.Order{
		ID:            orderID,
		UserID:        uuid.New(),
		AddressRef:    "addr-1",
		Currency:      "USD",
		SubTotal:      Dec(tb, "100"),
		Tax:           Dec(tb, "18"),
		ShippingCost:  Dec(tb, "50"),
		Discount:      Dec(tb, "0"),
		TotalAmount:   Dec(tb, "168"),
		Status:        status,
		PaymentStatus: paymentStatus,
		Items: []*types.OrderItem{
			{
				ID:         uuid.New(),
				OrderID:    orderID,
				ProductRef: "sku-1",
				Quantity:   4,
				UnitPrice:  Dec(tb, "25"),
				TotalPrice: Dec(tb, "100"),
				CreatedAt:  now,
			},
		},
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.WithContext(ctx).Create(o).Error; err != nil {
		tb.Fatalf("seed order: %v", err)
	}
	return o
}

func SeedPayment(tb testing.TB, ctx context.Context, tx *gorm.DB, orderID uuid.UUID, status types.PaymentStatus, amount string) *types.Payment {
	tb.Helper()
	now := time.Now().UTC()
	p := &types.Payment{
		ID:             uuid.New(),
		OrderID:        orderID,
		Currency:       "USD",
		Amount:         Dec(tb, amount),
		RefundedAmount: decimal.Zero,
		Method:         types.PaymentMethodCard,
		Status:         status,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed payment: %v", err)
	}
	return p
}

func SeedOutboxRecord(tb testing.TB, ctx context.Context, tx *gorm.DB, eventType string, createdAt time.Time) *types.OutboxRecord {
	tb.Helper()
	rec := &types.OutboxRecord{
		ID:            uuid.New(),
		AggregateType: "order",
		AggregateID:   uuid.New(),
		EventType:     eventType,
		Payload:       []byte(`{}`),
		SchemaVersion: 1,
		OccurredAt:    createdAt,
		CreatedAt:     createdAt,
	}
	if err := tx.WithContext(ctx).Create(rec).Error; err != nil {
		tb.Fatalf("seed outbox record: %v", err)
	}
	return rec
}
