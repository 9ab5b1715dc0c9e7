package aggregates

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	orderrepo "github.com/yungbote/commerce-backend/internal/data/repos/orders"
	types "github.com/yungbote/commerce-backend/internal/domain"
	domainagg "github.com/yungbote/commerce-backend/internal/domain/aggregates"
	"github.com/yungbote/commerce-backend/internal/domain/money"
	"github.com/yungbote/commerce-backend/internal/platform/dbctx"
)

type OrderAggregateDeps struct {
	Base BaseDeps

	Orders orderrepo.OrderRepo
	Outbox OutboxAppender
}

type orderAggregate struct {
	deps OrderAggregateDeps
}

func NewOrderAggregate(deps OrderAggregateDeps) domainagg.OrderAggregate {
	deps.Base = deps.Base.withDefaults()
	return &orderAggregate{deps: deps}
}

func (a *orderAggregate) Contract() domainagg.Contract {
	return domainagg.OrderAggregateContract
}

func (a *orderAggregate) Create(ctx context.Context, in domainagg.CreateOrderInput) (domainagg.CreateOrderResult, error) {
	const op = "Orders.Order.Create"
	var out domainagg.CreateOrderResult
	if a.deps.Orders == nil || a.deps.Outbox == nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "order aggregate repos not configured", nil)
	}
	if err := validateOrderLines(in.UserID, in.Currency, in.AddressRef, in.Items); err != nil {
		return out, MapError(op, err)
	}

	totals, err := deriveOrderTotals(in.Currency, in.Items, in.TaxRate, in.ShippingCost, in.Discount)
	if err != nil {
		return out, MapError(op, err)
	}

	orderID := in.OrderID
	if orderID == uuid.Nil {
		orderID = uuid.New()
	}
	createdAt := in.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	row := buildOrderRow(orderID, in.UserID, in.Currency, in.AddressRef, in.CouponCode, in.Items, totals, createdAt)

	var replayed bool
	err = executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		// A caller-supplied id makes the create idempotent: a replay returns
		// the order committed by the first attempt and emits nothing.
		if in.OrderID != uuid.Nil {
			existing, err := a.deps.Orders.GetByID(dbc, in.OrderID)
			if err != nil {
				return err
			}
			if existing != nil {
				total, err := money.New(existing.TotalAmount, money.Currency(existing.Currency))
				if err != nil {
					return err
				}
				out = domainagg.CreateOrderResult{
					OrderID:     existing.ID,
					Status:      existing.Status,
					TotalAmount: total,
					Version:     existing.Version,
				}
				replayed = true
				return nil
			}
		}
		if _, err := a.deps.Orders.Create(dbc, row); err != nil {
			return err
		}
		ev := domainagg.NewEvent(domainagg.AggregateTypeOrder, orderID, domainagg.EventOrderCreated, createdAt, orderCreatedPayload(row, nil))
		return a.deps.Outbox.Append(dbc, []domainagg.Event{ev})
	})
	if err != nil {
		return out, err
	}
	if replayed {
		return out, nil
	}

	out = domainagg.CreateOrderResult{
		OrderID:     orderID,
		Status:      row.Status,
		TotalAmount: totals.Total,
		Version:     row.Version,
	}
	return out, nil
}

func (a *orderAggregate) SetPaymentStatus(ctx context.Context, in domainagg.SetOrderPaymentStatusInput) (domainagg.SetOrderPaymentStatusResult, error) {
	const op = "Orders.Order.SetPaymentStatus"
	var out domainagg.SetOrderPaymentStatusResult
	if in.OrderID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing order_id", nil)
	}
	at := in.At.UTC()
	if at.IsZero() {
		at = time.Now().UTC()
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		ord, err := a.deps.Orders.GetByID(dbc, in.OrderID)
		if err != nil {
			return err
		}
		if ord == nil {
			return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("order not found: %s", in.OrderID), nil)
		}

		status, updates, err := orderPaymentUpdates(ord, in.To, at)
		if err != nil {
			return err
		}
		ok, err := a.deps.Base.CASGuard.UpdateByVersion(dbc, "order_header", ord.ID, ord.Version, updates)
		if err != nil {
			return err
		}
		if err := RequireCASSuccess(ok, "order changed while updating payment status"); err != nil {
			return err
		}
		out = domainagg.SetOrderPaymentStatusResult{
			OrderID:       ord.ID,
			Status:        status,
			PaymentStatus: in.To,
			Version:       ord.Version + 1,
		}
		return nil
	})
	return out, err
}

func (a *orderAggregate) Cancel(ctx context.Context, in domainagg.CancelOrderInput) (domainagg.CancelOrderResult, error) {
	const op = "Orders.Order.Cancel"
	var out domainagg.CancelOrderResult
	if in.OrderID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing order_id", nil)
	}
	cancelledAt := in.CancelledAt.UTC()
	if cancelledAt.IsZero() {
		cancelledAt = time.Now().UTC()
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
			return InvariantError("order already cancelled")
		}
		if !orderCancellable(ord.Status) {
			return InvariantError(fmt.Sprintf("cannot cancel order in status %q", ord.Status))
		}

		ok, err := a.deps.Base.CASGuard.UpdateByVersion(dbc, "order_header", ord.ID, ord.Version, map[string]any{
			"status":     types.OrderStatusCancelled,
			"updated_at": cancelledAt,
		})
		if err != nil {
			return err
		}
		if err := RequireCASSuccess(ok, "order changed while cancelling"); err != nil {
			return err
		}

		ev := domainagg.NewEvent(domainagg.AggregateTypeOrder, ord.ID, domainagg.EventOrderCancelled, cancelledAt, map[string]any{
			"order_id": ord.ID.String(),
			"user_id":  ord.UserID.String(),
			"reason":   strings.TrimSpace(in.Reason),
			"version":  ord.Version + 1,
		})
		if err := a.deps.Outbox.Append(dbc, []domainagg.Event{ev}); err != nil {
			return err
		}
		out = domainagg.CancelOrderResult{
			OrderID: ord.ID,
			Status:  types.OrderStatusCancelled,
			Version: ord.Version + 1,
		}
		return nil
	})
	return out, err
}

func (a *orderAggregate) Reorder(ctx context.Context, in domainagg.ReorderInput) (domainagg.CreateOrderResult, error) {
	const op = "Orders.Order.Reorder"
	var out domainagg.CreateOrderResult
	if in.SourceOrderID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing source_order_id", nil)
	}
	createdAt := in.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	newID := uuid.New()

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		src, err := a.deps.Orders.GetByID(dbc, in.SourceOrderID)
		if err != nil {
			return err
		}
		if src == nil {
			return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("order not found: %s", in.SourceOrderID), nil)
		}
		if src.Status != types.OrderStatusDelivered && src.Status != types.OrderStatusCancelled {
			return InvariantError(fmt.Sprintf("cannot reorder from status %q", src.Status))
		}

		userID := in.UserID
		if userID == uuid.Nil {
			userID = src.UserID
		}
		addressRef := strings.TrimSpace(in.AddressRef)
		if addressRef == "" {
			addressRef = src.AddressRef
		}
		currency := money.Currency(src.Currency)

		// Source lines are re-priced at current prices; a product no longer
		// priced cannot be reordered.
		items := make([]domainagg.OrderLineInput, 0, len(src.Items))
		for _, it := range src.Items {
			price, ok := in.CurrentPrices[it.ProductRef]
			if !ok {
				return ValidationError(fmt.Sprintf("no current price for product %q", it.ProductRef))
			}
			items = append(items, domainagg.OrderLineInput{
				ProductRef: it.ProductRef,
				Quantity:   it.Quantity,
				UnitPrice:  price,
			})
		}
		if err := validateOrderLines(userID, currency, addressRef, items); err != nil {
			return err
		}
		totals, err := deriveOrderTotals(currency, items, in.TaxRate, in.ShippingCost, in.Discount)
		if err != nil {
			return err
		}

		row := buildOrderRow(newID, userID, currency, addressRef, src.CouponCode, items, totals, createdAt)
		if _, err := a.deps.Orders.Create(dbc, row); err != nil {
			return err
		}

		srcID := src.ID
		ev := domainagg.NewEvent(domainagg.AggregateTypeOrder, newID, domainagg.EventOrderCreated, createdAt, orderCreatedPayload(row, &srcID))
		if err := a.deps.Outbox.Append(dbc, []domainagg.Event{ev}); err != nil {
			return err
		}
		out = domainagg.CreateOrderResult{
			OrderID:     newID,
			Status:      row.Status,
			TotalAmount: totals.Total,
			Version:     row.Version,
		}
		return nil
	})
	return out, err
}

func validateOrderLines(userID uuid.UUID, currency money.Currency, addressRef string, items []domainagg.OrderLineInput) error {
	if userID == uuid.Nil {
		return ValidationError("missing user_id")
	}
	if _, err := money.New(money.Zero(currency).Amount(), currency); err != nil {
		return err
	}
	if strings.TrimSpace(addressRef) == "" {
		return ValidationError("missing address_ref")
	}
	if len(items) == 0 {
		return ValidationError("order requires at least one item")
	}
	for _, it := range items {
		if strings.TrimSpace(it.ProductRef) == "" {
			return ValidationError("item product_ref is required")
		}
		if it.Quantity <= 0 {
			return ValidationError(fmt.Sprintf("item %q quantity must be positive", it.ProductRef))
		}
		if it.UnitPrice.Currency() != currency {
			return ValidationError(fmt.Sprintf("item %q priced in %s, order currency is %s", it.ProductRef, it.UnitPrice.Currency(), currency))
		}
		if it.UnitPrice.IsNegative() {
			return ValidationError(fmt.Sprintf("item %q unit price must not be negative", it.ProductRef))
		}
	}
	return nil
}

func buildOrderRow(id, userID uuid.UUID, currency money.Currency, addressRef, couponCode string, items []domainagg.OrderLineInput, totals orderTotals, createdAt time.Time) *types.Order {
	rows := make([]*types.OrderItem, 0, len(items))
	for _, it := range items {
		line, _ := it.UnitPrice.MulQty(it.Quantity)
		rows = append(rows, &types.OrderItem{
			ID:         uuid.New(),
			OrderID:    id,
			ProductRef: it.ProductRef,
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice.Amount(),
			TotalPrice: line.Amount(),
			CreatedAt:  createdAt,
		})
	}
	return &types.Order{
		ID:            id,
		UserID:        userID,
		AddressRef:    strings.TrimSpace(addressRef),
		CouponCode:    strings.TrimSpace(couponCode),
		Currency:      string(currency),
		SubTotal:      totals.SubTotal.Amount(),
		Tax:           totals.Tax.Amount(),
		ShippingCost:  totals.Shipping.Amount(),
		Discount:      totals.Discount.Amount(),
		TotalAmount:   totals.Total.Amount(),
		Status:        types.OrderStatusCreated,
		PaymentStatus: types.OrderPaymentPending,
		Items:         rows,
		Version:       1,
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}
}

func orderCreatedPayload(row *types.Order, sourceOrderID *uuid.UUID) map[string]any {
	items := make([]map[string]any, 0, len(row.Items))
	for _, it := range row.Items {
		items = append(items, map[string]any{
			"product_ref": it.ProductRef,
			"quantity":    it.Quantity,
			"unit_price":  it.UnitPrice.String(),
		})
	}
	payload := map[string]any{
		"order_id":     row.ID.String(),
		"user_id":      row.UserID.String(),
		"currency":     row.Currency,
		"total_amount": row.TotalAmount.String(),
		"items":        items,
		"version":      row.Version,
	}
	if sourceOrderID != nil {
		payload["source_order_id"] = sourceOrderID.String()
	}
	return payload
}

// orderCancellable reports whether an order can still be cancelled; fulfilment
// starting (processing) is the point of no return and later states must route
// through the return flow.
func orderCancellable(s types.OrderStatus) bool {
	switch s {
	case types.OrderStatusCreated, types.OrderStatusAwaitingPayment, types.OrderStatusPaid:
		return true
	default:
		return false
	}
}

// orderPaymentTransitionAllowed encodes the forward-only payment status
// machine on the order header. partially_refunded repeats to absorb
// successive partial refunds.
func orderPaymentTransitionAllowed(from, to types.OrderPaymentStatus) bool {
	switch from {
	case types.OrderPaymentPending:
		return to == types.OrderPaymentCompleted
	case types.OrderPaymentCompleted:
		return to == types.OrderPaymentRefunded || to == types.OrderPaymentPartiallyRefunded
	case types.OrderPaymentPartiallyRefunded:
		return to == types.OrderPaymentRefunded || to == types.OrderPaymentPartiallyRefunded
	default:
		return false
	}
}

// orderPaymentUpdates derives the column updates for a payment status
// transition; completion also advances a pre-payment order to paid.
func orderPaymentUpdates(ord *types.Order, to types.OrderPaymentStatus, at time.Time) (types.OrderStatus, map[string]any, error) {
	if !orderPaymentTransitionAllowed(ord.PaymentStatus, to) {
		return "", nil, InvariantError(fmt.Sprintf("order payment status cannot move %s -> %s", ord.PaymentStatus, to))
	}
	status := ord.Status
	updates := map[string]any{
		"payment_status": to,
		"updated_at":     at,
	}
	if to == types.OrderPaymentCompleted &&
		(ord.Status == types.OrderStatusCreated || ord.Status == types.OrderStatusAwaitingPayment) {
		status = types.OrderStatusPaid
		updates["status"] = status
	}
	return status, updates, nil
}
