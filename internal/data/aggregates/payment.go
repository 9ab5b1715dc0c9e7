package aggregates

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	orderrepo "github.com/yungbote/commerce-backend/internal/data/repos/orders"
	paymentrepo "github.com/yungbote/commerce-backend/internal/data/repos/payments"
	types "github.com/yungbote/commerce-backend/internal/domain"
	domainagg "github.com/yungbote/commerce-backend/internal/domain/aggregates"
	"github.com/yungbote/commerce-backend/internal/domain/money"
	"github.com/yungbote/commerce-backend/internal/platform/dbctx"
)

type PaymentAggregateDeps struct {
	Base BaseDeps

	Payments paymentrepo.PaymentRepo
	Orders   orderrepo.OrderRepo
	Outbox   OutboxAppender
}

type paymentAggregate struct {
	deps PaymentAggregateDeps
}

func NewPaymentAggregate(deps PaymentAggregateDeps) domainagg.PaymentAggregate {
	deps.Base = deps.Base.withDefaults()
	return &paymentAggregate{deps: deps}
}

func (a *paymentAggregate) Contract() domainagg.Contract {
	return domainagg.PaymentAggregateContract
}

func (a *paymentAggregate) Create(ctx context.Context, in domainagg.CreatePaymentInput) (domainagg.CreatePaymentResult, error) {
	const op = "Payments.Payment.Create"
	var out domainagg.CreatePaymentResult
	if a.deps.Payments == nil || a.deps.Orders == nil || a.deps.Outbox == nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "payment aggregate repos not configured", nil)
	}
	if in.OrderID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing order_id", nil)
	}
	if !in.Amount.IsPositive() {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "payment amount must be positive", nil)
	}
	if !validPaymentMethod(in.Method) {
		return out, domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("unknown payment method %q", in.Method), nil)
	}

	paymentID := in.PaymentID
	if paymentID == uuid.Nil {
		paymentID = uuid.New()
	}
	createdAt := in.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		ord, err := a.deps.Orders.GetByID(dbc, in.OrderID)
		if err != nil {
			return err
		}
		if ord == nil {
			return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("order not found: %s", in.OrderID), nil)
		}
		if ord.Status == types.OrderStatusCancelled {
			return InvariantError("cannot pay a cancelled order")
		}
		if ord.PaymentStatus != types.OrderPaymentPending {
			return InvariantError("order is already paid")
		}
		if in.Amount.Currency() != money.Currency(ord.Currency) {
			return ValidationError(fmt.Sprintf("payment in %s, order in %s", in.Amount.Currency(), ord.Currency))
		}
		total, err := money.New(ord.TotalAmount, money.Currency(ord.Currency))
		if err != nil {
			return err
		}
		if !in.Amount.Equal(total) {
			return ValidationError(fmt.Sprintf("payment amount %s does not match order total %s", in.Amount, total))
		}

		// Fast path only; the partial unique index on payment(order_id) over
		// non-failed rows is the authoritative guard under concurrency.
		existing, err := a.deps.Payments.GetActiveByOrderID(dbc, in.OrderID)
		if err != nil {
			return err
		}
		if existing != nil {
			return InvariantError("an active payment already exists for this order")
		}

		row := &types.Payment{
			ID:             paymentID,
			OrderID:        in.OrderID,
			Currency:       ord.Currency,
			Amount:         in.Amount.Amount(),
			RefundedAmount: money.Zero(in.Amount.Currency()).Amount(),
			Method:         in.Method,
			Status:         types.PaymentStatusPending,
			Version:        1,
			CreatedAt:      createdAt,
			UpdatedAt:      createdAt,
		}
		if _, err := a.deps.Payments.Create(dbc, row); err != nil {
			if isUniqueViolation(err) {
				return InvariantError("an active payment already exists for this order")
			}
			return err
		}

		ev := domainagg.NewEvent(domainagg.AggregateTypePayment, paymentID, domainagg.EventPaymentCreated, createdAt, map[string]any{
			"payment_id": paymentID.String(),
			"order_id":   in.OrderID.String(),
			"amount":     in.Amount.Amount().String(),
			"currency":   string(in.Amount.Currency()),
			"method":     string(in.Method),
			"version":    1,
		})
		return a.deps.Outbox.Append(dbc, []domainagg.Event{ev})
	})
	if err != nil {
		return out, err
	}
	out = domainagg.CreatePaymentResult{
		PaymentID: paymentID,
		Status:    types.PaymentStatusPending,
		Version:   1,
	}
	return out, nil
}

func (a *paymentAggregate) Process(ctx context.Context, in domainagg.ProcessPaymentInput) (domainagg.PaymentTransitionResult, error) {
	const op = "Payments.Payment.Process"
	var out domainagg.PaymentTransitionResult
	if in.PaymentID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing payment_id", nil)
	}
	at := in.At.UTC()
	if at.IsZero() {
		at = time.Now().UTC()
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		p, err := a.mustGetPayment(dbc, op, in.PaymentID)
		if err != nil {
			return err
		}
		if p.Status != types.PaymentStatusPending {
			return InvariantError(fmt.Sprintf("cannot process payment in status %q", p.Status))
		}
		ok, err := a.deps.Base.CASGuard.UpdateByVersion(dbc, "payment", p.ID, p.Version, map[string]any{
			"status":     types.PaymentStatusProcessing,
			"updated_at": at,
		})
		if err != nil {
			return err
		}
		if err := RequireCASSuccess(ok, "payment changed while moving to processing"); err != nil {
			return err
		}
		out, err = paymentTransition(p, types.PaymentStatusProcessing, p.Version+1)
		if err != nil {
			return err
		}
		return nil
	})
	return out, err
}

func (a *paymentAggregate) Complete(ctx context.Context, in domainagg.CompletePaymentInput) (domainagg.PaymentTransitionResult, error) {
	const op = "Payments.Payment.Complete"
	var out domainagg.PaymentTransitionResult
	if in.PaymentID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing payment_id", nil)
	}
	txRef := strings.TrimSpace(in.TransactionRef)
	if txRef == "" {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing transaction_ref", nil)
	}
	at := in.At.UTC()
	if at.IsZero() {
		at = time.Now().UTC()
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		p, err := a.mustGetPayment(dbc, op, in.PaymentID)
		if err != nil {
			return err
		}
		if p.Status == types.PaymentStatusCompleted {
			return InvariantError("payment already completed")
		}
		if p.Status != types.PaymentStatusProcessing {
			return InvariantError(fmt.Sprintf("cannot complete payment in status %q", p.Status))
		}

		ok, err := a.deps.Base.CASGuard.UpdateByVersion(dbc, "payment", p.ID, p.Version, map[string]any{
			"status":          types.PaymentStatusCompleted,
			"transaction_ref": txRef,
			"updated_at":      at,
		})
		if err != nil {
			return err
		}
		if err := RequireCASSuccess(ok, "payment changed while completing"); err != nil {
			return err
		}

		// Capture mirrors onto the order inside the same commit.
		if err := a.advanceOrderPayment(dbc, op, p.OrderID, types.OrderPaymentCompleted, at); err != nil {
			return err
		}

		ev := domainagg.NewEvent(domainagg.AggregateTypePayment, p.ID, domainagg.EventPaymentCaptured, at, map[string]any{
			"payment_id":      p.ID.String(),
			"order_id":        p.OrderID.String(),
			"amount":          p.Amount.String(),
			"currency":        p.Currency,
			"transaction_ref": txRef,
			"version":         p.Version + 1,
		})
		if err := a.deps.Outbox.Append(dbc, []domainagg.Event{ev}); err != nil {
			return err
		}
		out, err = paymentTransition(p, types.PaymentStatusCompleted, p.Version+1)
		if err != nil {
			return err
		}
		return nil
	})
	return out, err
}

func (a *paymentAggregate) Fail(ctx context.Context, in domainagg.FailPaymentInput) (domainagg.PaymentTransitionResult, error) {
	const op = "Payments.Payment.Fail"
	var out domainagg.PaymentTransitionResult
	if in.PaymentID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing payment_id", nil)
	}
	at := in.At.UTC()
	if at.IsZero() {
		at = time.Now().UTC()
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		p, err := a.mustGetPayment(dbc, op, in.PaymentID)
		if err != nil {
			return err
		}
		if p.Status != types.PaymentStatusPending && p.Status != types.PaymentStatusProcessing {
			return InvariantError(fmt.Sprintf("cannot fail payment in status %q", p.Status))
		}
		ok, err := a.deps.Base.CASGuard.UpdateByVersion(dbc, "payment", p.ID, p.Version, map[string]any{
			"status":         types.PaymentStatusFailed,
			"failure_reason": strings.TrimSpace(in.Reason),
			"updated_at":     at,
		})
		if err != nil {
			return err
		}
		if err := RequireCASSuccess(ok, "payment changed while failing"); err != nil {
			return err
		}

		ev := domainagg.NewEvent(domainagg.AggregateTypePayment, p.ID, domainagg.EventPaymentFailed, at, map[string]any{
			"payment_id": p.ID.String(),
			"order_id":   p.OrderID.String(),
			"reason":     strings.TrimSpace(in.Reason),
			"version":    p.Version + 1,
		})
		if err := a.deps.Outbox.Append(dbc, []domainagg.Event{ev}); err != nil {
			return err
		}
		out, err = paymentTransition(p, types.PaymentStatusFailed, p.Version+1)
		if err != nil {
			return err
		}
		return nil
	})
	return out, err
}

func (a *paymentAggregate) Refund(ctx context.Context, in domainagg.RefundPaymentInput) (domainagg.RefundPaymentResult, error) {
	const op = "Payments.Payment.Refund"
	var out domainagg.RefundPaymentResult
	if in.PaymentID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing payment_id", nil)
	}
	at := in.At.UTC()
	if at.IsZero() {
		at = time.Now().UTC()
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		p, err := a.mustGetPayment(dbc, op, in.PaymentID)
		if err != nil {
			return err
		}
		if p.Status != types.PaymentStatusCompleted && p.Status != types.PaymentStatusPartiallyRefunded {
			return InvariantError(fmt.Sprintf("cannot refund payment in status %q", p.Status))
		}

		currency := money.Currency(p.Currency)
		captured, err := money.New(p.Amount, currency)
		if err != nil {
			return err
		}
		refundedSoFar, err := money.New(p.RefundedAmount, currency)
		if err != nil {
			return err
		}
		remainingBefore, err := captured.Sub(refundedSoFar)
		if err != nil {
			return err
		}

		amount := remainingBefore
		if in.Amount != nil {
			amount = *in.Amount
			if amount.Currency() != currency {
				return ValidationError(fmt.Sprintf("refund in %s, payment in %s", amount.Currency(), currency))
			}
		}
		if !amount.IsPositive() {
			return ValidationError("refund amount must be positive")
		}
		if over, err := amount.GreaterThan(remainingBefore); err != nil {
			return err
		} else if over {
			return ValidationError(fmt.Sprintf("refund %s exceeds refundable remainder %s", amount, remainingBefore))
		}

		refundedTotal, err := refundedSoFar.Add(amount)
		if err != nil {
			return err
		}
		remaining, err := captured.Sub(refundedTotal)
		if err != nil {
			return err
		}

		status := types.PaymentStatusPartiallyRefunded
		orderStatus := types.OrderPaymentPartiallyRefunded
		if remaining.IsZero() {
			status = types.PaymentStatusRefunded
			orderStatus = types.OrderPaymentRefunded
		}

		ok, err := a.deps.Base.CASGuard.UpdateByVersion(dbc, "payment", p.ID, p.Version, map[string]any{
			"status":          status,
			"refunded_amount": refundedTotal.Amount(),
			"updated_at":      at,
		})
		if err != nil {
			return err
		}
		if err := RequireCASSuccess(ok, "payment changed while refunding"); err != nil {
			return err
		}

		if err := a.advanceOrderPayment(dbc, op, p.OrderID, orderStatus, at); err != nil {
			return err
		}

		ev := domainagg.NewEvent(domainagg.AggregateTypePayment, p.ID, domainagg.EventPaymentRefunded, at, map[string]any{
			"payment_id":     p.ID.String(),
			"order_id":       p.OrderID.String(),
			"amount":         amount.Amount().String(),
			"refunded_total": refundedTotal.Amount().String(),
			"remaining":      remaining.Amount().String(),
			"currency":       p.Currency,
			"full":           remaining.IsZero(),
			"version":        p.Version + 1,
		})
		if err := a.deps.Outbox.Append(dbc, []domainagg.Event{ev}); err != nil {
			return err
		}
		out = domainagg.RefundPaymentResult{
			PaymentID:      p.ID,
			OrderID:        p.OrderID,
			Status:         status,
			RefundedAmount: refundedTotal,
			Remaining:      remaining,
			Version:        p.Version + 1,
		}
		return nil
	})
	return out, err
}

// paymentTransition snapshots the row into a transition result at the version
// the CAS write just produced.
func paymentTransition(p *types.Payment, status types.PaymentStatus, version int) (domainagg.PaymentTransitionResult, error) {
	amount, err := money.New(p.Amount, money.Currency(p.Currency))
	if err != nil {
		return domainagg.PaymentTransitionResult{}, err
	}
	return domainagg.PaymentTransitionResult{
		PaymentID: p.ID,
		OrderID:   p.OrderID,
		Status:    status,
		Amount:    amount,
		Method:    p.Method,
		Version:   version,
	}, nil
}

func (a *paymentAggregate) mustGetPayment(dbc dbctx.Context, op string, id uuid.UUID) (*types.Payment, error) {
	p, err := a.deps.Payments.GetByID(dbc, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("payment not found: %s", id), nil)
	}
	return p, nil
}

// advanceOrderPayment mirrors a payment outcome onto the order header with
// its own CAS; the order moving concurrently aborts the whole commit.
func (a *paymentAggregate) advanceOrderPayment(dbc dbctx.Context, op string, orderID uuid.UUID, to types.OrderPaymentStatus, at time.Time) error {
	ord, err := a.deps.Orders.GetByID(dbc, orderID)
	if err != nil {
		return err
	}
	if ord == nil {
		return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("order not found: %s", orderID), nil)
	}
	_, updates, err := orderPaymentUpdates(ord, to, at)
	if err != nil {
		return err
	}
	ok, err := a.deps.Base.CASGuard.UpdateByVersion(dbc, "order_header", ord.ID, ord.Version, updates)
	if err != nil {
		return err
	}
	return RequireCASSuccess(ok, "order changed while mirroring payment outcome")
}

func validPaymentMethod(m types.PaymentMethod) bool {
	switch m {
	case types.PaymentMethodCard, types.PaymentMethodBankTransfer, types.PaymentMethodWallet:
		return true
	default:
		return false
	}
}
