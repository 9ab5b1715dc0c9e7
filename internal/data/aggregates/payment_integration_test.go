package aggregates

import (
	"context"
	"testing"

	"github.com/google/uuid"

	repotest "github.com/yungbote/commerce-backend/internal/data/repos/testutil"
	types "github.com/yungbote/commerce-backend/internal/domain"
	domainagg "github.com/yungbote/commerce-backend/internal/domain/aggregates"
	"github.com/yungbote/commerce-backend/internal/platform/dbctx"
)

func TestPaymentAggregateCreate(t *testing.T) {
	f := newAggFixture(t)
	ctx := context.Background()
	agg := f.paymentAgg()

	ord := repotest.SeedOrder(t, ctx, f.tx, types.OrderStatusCreated, types.OrderPaymentPending)

	res, err := agg.Create(ctx, domainagg.CreatePaymentInput{
		OrderID: ord.ID,
		Amount:  usd(t, "168"),
		Method:  types.PaymentMethodCard,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if res.Status != types.PaymentStatusPending {
		t.Fatalf("status: want=%q got=%q", types.PaymentStatusPending, res.Status)
	}

	events := f.pendingEvents(t, res.PaymentID)
	if len(events) != 1 || events[0].EventType != domainagg.EventPaymentCreated {
		t.Fatalf("expected one payment.created event, got %+v", events)
	}
}

func TestPaymentAggregateCreateGuards(t *testing.T) {
	f := newAggFixture(t)
	ctx := context.Background()
	agg := f.paymentAgg()

	ord := repotest.SeedOrder(t, ctx, f.tx, types.OrderStatusCreated, types.OrderPaymentPending)

	// Amount must match the order total exactly.
	if _, err := agg.Create(ctx, domainagg.CreatePaymentInput{
		OrderID: ord.ID,
		Amount:  usd(t, "100"),
		Method:  types.PaymentMethodCard,
	}); !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("amount mismatch: want validation, got %v", err)
	}

	if _, err := agg.Create(ctx, domainagg.CreatePaymentInput{
		OrderID: ord.ID,
		Amount:  usd(t, "168"),
		Method:  "cheque",
	}); !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("unknown method: want validation, got %v", err)
	}

	if _, err := agg.Create(ctx, domainagg.CreatePaymentInput{
		OrderID: uuid.New(),
		Amount:  usd(t, "168"),
		Method:  types.PaymentMethodCard,
	}); !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("missing order: want not_found, got %v", err)
	}

	cancelled := repotest.SeedOrder(t, ctx, f.tx, types.OrderStatusCancelled, types.OrderPaymentPending)
	if _, err := agg.Create(ctx, domainagg.CreatePaymentInput{
		OrderID: cancelled.ID,
		Amount:  usd(t, "168"),
		Method:  types.PaymentMethodCard,
	}); !domainagg.IsCode(err, domainagg.CodeInvariantViolation) {
		t.Fatalf("cancelled order: want invariant violation, got %v", err)
	}
}

func TestPaymentAggregateSecondActivePaymentRejected(t *testing.T) {
	f := newAggFixture(t)
	ctx := context.Background()
	agg := f.paymentAgg()

	ord := repotest.SeedOrder(t, ctx, f.tx, types.OrderStatusCreated, types.OrderPaymentPending)
	repotest.SeedPayment(t, ctx, f.tx, ord.ID, types.PaymentStatusPending, "168")

	_, err := agg.Create(ctx, domainagg.CreatePaymentInput{
		OrderID: ord.ID,
		Amount:  usd(t, "168"),
		Method:  types.PaymentMethodCard,
	})
	if !domainagg.IsCode(err, domainagg.CodeInvariantViolation) {
		t.Fatalf("second active payment: want invariant violation, got %v", err)
	}
}

func TestPaymentAggregateRetryAfterFailure(t *testing.T) {
	f := newAggFixture(t)
	ctx := context.Background()
	agg := f.paymentAgg()

	ord := repotest.SeedOrder(t, ctx, f.tx, types.OrderStatusCreated, types.OrderPaymentPending)
	repotest.SeedPayment(t, ctx, f.tx, ord.ID, types.PaymentStatusFailed, "168")

	// A failed payment does not block a fresh attempt.
	if _, err := agg.Create(ctx, domainagg.CreatePaymentInput{
		OrderID: ord.ID,
		Amount:  usd(t, "168"),
		Method:  types.PaymentMethodCard,
	}); err != nil {
		t.Fatalf("retry after failed payment: %v", err)
	}
}

func TestPaymentAggregateProcessAndComplete(t *testing.T) {
	f := newAggFixture(t)
	ctx := context.Background()
	agg := f.paymentAgg()

	ord := repotest.SeedOrder(t, ctx, f.tx, types.OrderStatusCreated, types.OrderPaymentPending)
	created, err := agg.Create(ctx, domainagg.CreatePaymentInput{
		OrderID: ord.ID,
		Amount:  usd(t, "168"),
		Method:  types.PaymentMethodCard,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Complete before Process is a rule violation.
	if _, err := agg.Complete(ctx, domainagg.CompletePaymentInput{PaymentID: created.PaymentID, TransactionRef: "tx-1"}); !domainagg.IsCode(err, domainagg.CodeInvariantViolation) {
		t.Fatalf("complete before process: want invariant violation, got %v", err)
	}

	proc, err := agg.Process(ctx, domainagg.ProcessPaymentInput{PaymentID: created.PaymentID})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if proc.Status != types.PaymentStatusProcessing {
		t.Fatalf("status: want=%q got=%q", types.PaymentStatusProcessing, proc.Status)
	}

	done, err := agg.Complete(ctx, domainagg.CompletePaymentInput{PaymentID: created.PaymentID, TransactionRef: "tx-1"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if done.Status != types.PaymentStatusCompleted {
		t.Fatalf("status: want=%q got=%q", types.PaymentStatusCompleted, done.Status)
	}

	// Capture mirrors onto the order in the same commit.
	reloaded, err := f.orders.GetByID(dbctx.Context{Ctx: ctx, Tx: f.tx}, ord.ID)
	if err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if reloaded.PaymentStatus != types.OrderPaymentCompleted {
		t.Fatalf("order payment_status: want=%q got=%q", types.OrderPaymentCompleted, reloaded.PaymentStatus)
	}
	if reloaded.Status != types.OrderStatusPaid {
		t.Fatalf("order status: want=%q got=%q", types.OrderStatusPaid, reloaded.Status)
	}

	if _, err := agg.Complete(ctx, domainagg.CompletePaymentInput{PaymentID: created.PaymentID, TransactionRef: "tx-2"}); !domainagg.IsCode(err, domainagg.CodeInvariantViolation) {
		t.Fatalf("double complete: want invariant violation, got %v", err)
	}

	events := f.pendingEvents(t, created.PaymentID)
	if len(events) != 2 {
		t.Fatalf("payment events: want=2 got=%d", len(events))
	}
	if events[1].EventType != domainagg.EventPaymentCaptured {
		t.Fatalf("second event: want=%q got=%q", domainagg.EventPaymentCaptured, events[1].EventType)
	}
}

func TestPaymentAggregateFail(t *testing.T) {
	f := newAggFixture(t)
	ctx := context.Background()
	agg := f.paymentAgg()

	ord := repotest.SeedOrder(t, ctx, f.tx, types.OrderStatusCreated, types.OrderPaymentPending)
	p := repotest.SeedPayment(t, ctx, f.tx, ord.ID, types.PaymentStatusProcessing, "168")

	res, err := agg.Fail(ctx, domainagg.FailPaymentInput{PaymentID: p.ID, Reason: "card declined"})
	if err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if res.Status != types.PaymentStatusFailed {
		t.Fatalf("status: want=%q got=%q", types.PaymentStatusFailed, res.Status)
	}

	var reloaded types.Payment
	if err := f.tx.WithContext(ctx).Where("id = ?", p.ID).First(&reloaded).Error; err != nil {
		t.Fatalf("reload payment: %v", err)
	}
	if reloaded.FailureReason != "card declined" {
		t.Fatalf("failure_reason: want=%q got=%q", "card declined", reloaded.FailureReason)
	}

	// Terminal; cannot fail again.
	if _, err := agg.Fail(ctx, domainagg.FailPaymentInput{PaymentID: p.ID, Reason: "again"}); !domainagg.IsCode(err, domainagg.CodeInvariantViolation) {
		t.Fatalf("double fail: want invariant violation, got %v", err)
	}
}

func TestPaymentAggregateRefundFull(t *testing.T) {
	f := newAggFixture(t)
	ctx := context.Background()
	agg := f.paymentAgg()

	ord := repotest.SeedOrder(t, ctx, f.tx, types.OrderStatusPaid, types.OrderPaymentCompleted)
	p := repotest.SeedPayment(t, ctx, f.tx, ord.ID, types.PaymentStatusCompleted, "168")

	res, err := agg.Refund(ctx, domainagg.RefundPaymentInput{PaymentID: p.ID})
	if err != nil {
		t.Fatalf("Refund: %v", err)
	}
	if res.Status != types.PaymentStatusRefunded {
		t.Fatalf("status: want=%q got=%q", types.PaymentStatusRefunded, res.Status)
	}
	if !res.Remaining.IsZero() {
		t.Fatalf("remaining: want=0 got=%s", res.Remaining)
	}

	reloaded, err := f.orders.GetByID(dbctx.Context{Ctx: ctx, Tx: f.tx}, ord.ID)
	if err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if reloaded.PaymentStatus != types.OrderPaymentRefunded {
		t.Fatalf("order payment_status: want=%q got=%q", types.OrderPaymentRefunded, reloaded.PaymentStatus)
	}

	// Nothing left to refund.
	if _, err := agg.Refund(ctx, domainagg.RefundPaymentInput{PaymentID: p.ID}); !domainagg.IsCode(err, domainagg.CodeInvariantViolation) {
		t.Fatalf("refund after full refund: want invariant violation, got %v", err)
	}
}

func TestPaymentAggregateRefundPartialThenRemainder(t *testing.T) {
	f := newAggFixture(t)
	ctx := context.Background()
	agg := f.paymentAgg()

	ord := repotest.SeedOrder(t, ctx, f.tx, types.OrderStatusPaid, types.OrderPaymentCompleted)
	p := repotest.SeedPayment(t, ctx, f.tx, ord.ID, types.PaymentStatusCompleted, "168")

	fifty := usd(t, "50")
	first, err := agg.Refund(ctx, domainagg.RefundPaymentInput{PaymentID: p.ID, Amount: &fifty})
	if err != nil {
		t.Fatalf("partial refund: %v", err)
	}
	if first.Status != types.PaymentStatusPartiallyRefunded {
		t.Fatalf("status: want=%q got=%q", types.PaymentStatusPartiallyRefunded, first.Status)
	}
	if !first.Remaining.Equal(usd(t, "118")) {
		t.Fatalf("remaining: want=118 USD got=%s", first.Remaining)
	}

	// Over-refunding the remainder is rejected.
	tooMuch := usd(t, "119")
	if _, err := agg.Refund(ctx, domainagg.RefundPaymentInput{PaymentID: p.ID, Amount: &tooMuch}); !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("over-refund: want validation error, got %v", err)
	}

	second, err := agg.Refund(ctx, domainagg.RefundPaymentInput{PaymentID: p.ID})
	if err != nil {
		t.Fatalf("remainder refund: %v", err)
	}
	if second.Status != types.PaymentStatusRefunded {
		t.Fatalf("status: want=%q got=%q", types.PaymentStatusRefunded, second.Status)
	}
	if !second.RefundedAmount.Equal(usd(t, "168")) {
		t.Fatalf("refunded total: want=168 USD got=%s", second.RefundedAmount)
	}

	reloaded, err := f.orders.GetByID(dbctx.Context{Ctx: ctx, Tx: f.tx}, ord.ID)
	if err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if reloaded.PaymentStatus != types.OrderPaymentRefunded {
		t.Fatalf("order payment_status: want=%q got=%q", types.OrderPaymentRefunded, reloaded.PaymentStatus)
	}
}

func TestPaymentAggregateRefundGuards(t *testing.T) {
	f := newAggFixture(t)
	ctx := context.Background()
	agg := f.paymentAgg()

	ord := repotest.SeedOrder(t, ctx, f.tx, types.OrderStatusCreated, types.OrderPaymentPending)
	p := repotest.SeedPayment(t, ctx, f.tx, ord.ID, types.PaymentStatusPending, "168")

	if _, err := agg.Refund(ctx, domainagg.RefundPaymentInput{PaymentID: p.ID}); !domainagg.IsCode(err, domainagg.CodeInvariantViolation) {
		t.Fatalf("refund of pending payment: want invariant violation, got %v", err)
	}

	if _, err := agg.Refund(ctx, domainagg.RefundPaymentInput{PaymentID: uuid.New()}); !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("missing payment: want not_found, got %v", err)
	}
}
