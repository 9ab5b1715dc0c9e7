package aggregates

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	splitrepo "github.com/yungbote/commerce-backend/internal/data/repos/fulfillment"
	orderrepo "github.com/yungbote/commerce-backend/internal/data/repos/orders"
	types "github.com/yungbote/commerce-backend/internal/domain"
	domainagg "github.com/yungbote/commerce-backend/internal/domain/aggregates"
	"github.com/yungbote/commerce-backend/internal/platform/dbctx"
)

type SplitAggregateDeps struct {
	Base BaseDeps

	Splits splitrepo.OrderSplitRepo
	Orders orderrepo.OrderRepo
	Outbox OutboxAppender
}

type splitAggregate struct {
	deps SplitAggregateDeps
}

func NewSplitAggregate(deps SplitAggregateDeps) domainagg.SplitAggregate {
	deps.Base = deps.Base.withDefaults()
	return &splitAggregate{deps: deps}
}

func (a *splitAggregate) Contract() domainagg.Contract {
	return domainagg.SplitAggregateContract
}

func (a *splitAggregate) CreateSplits(ctx context.Context, in domainagg.CreateSplitsInput) (domainagg.CreateSplitsResult, error) {
	const op = "Fulfillment.Split.CreateSplits"
	var out domainagg.CreateSplitsResult
	if a.deps.Splits == nil || a.deps.Orders == nil || a.deps.Outbox == nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "split aggregate repos not configured", nil)
	}
	if in.OrderID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing order_id", nil)
	}
	if err := validateAllocations(in.Allocations); err != nil {
		return out, MapError(op, err)
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
			return InvariantError("cannot split a cancelled order")
		}

		existing, err := a.deps.Splits.ListByOrderID(dbc, in.OrderID)
		if err != nil {
			return err
		}
		if err := checkAllocationFits(ord, existing, in.Allocations); err != nil {
			return err
		}

		rows := make([]*types.OrderSplit, 0, len(in.Allocations))
		events := make([]domainagg.Event, 0, len(in.Allocations))
		ids := make([]uuid.UUID, 0, len(in.Allocations))
		for _, alloc := range in.Allocations {
			splitID := uuid.New()
			items := make([]*types.OrderSplitItem, 0, len(alloc.Items))
			evItems := make([]map[string]any, 0, len(alloc.Items))
			for _, it := range alloc.Items {
				items = append(items, &types.OrderSplitItem{
					ID:           uuid.New(),
					OrderSplitID: splitID,
					ProductRef:   it.ProductRef,
					Quantity:     it.Quantity,
					CreatedAt:    createdAt,
				})
				evItems = append(evItems, map[string]any{
					"product_ref": it.ProductRef,
					"quantity":    it.Quantity,
				})
			}
			rows = append(rows, &types.OrderSplit{
				ID:              splitID,
				OriginalOrderID: ord.ID,
				Destination:     strings.TrimSpace(alloc.Destination),
				Status:          types.SplitStatusOpen,
				Items:           items,
				Version:         1,
				CreatedAt:       createdAt,
				UpdatedAt:       createdAt,
			})
			events = append(events, domainagg.NewEvent(domainagg.AggregateTypeSplit, splitID, domainagg.EventOrderSplitCreated, createdAt, map[string]any{
				"split_id":    splitID.String(),
				"order_id":    ord.ID.String(),
				"destination": strings.TrimSpace(alloc.Destination),
				"items":       evItems,
				"version":     1,
			}))
			ids = append(ids, splitID)
		}

		if _, err := a.deps.Splits.Create(dbc, rows); err != nil {
			return err
		}
		if err := a.deps.Outbox.Append(dbc, events); err != nil {
			return err
		}
		out = domainagg.CreateSplitsResult{SplitIDs: ids}
		return nil
	})
	return out, err
}

func (a *splitAggregate) Cancel(ctx context.Context, in domainagg.TransitionSplitInput) (domainagg.SplitTransitionResult, error) {
	return a.transition(ctx, "Fulfillment.Split.Cancel", in, types.SplitStatusCancelled, domainagg.EventOrderSplitCancelled)
}

func (a *splitAggregate) Complete(ctx context.Context, in domainagg.TransitionSplitInput) (domainagg.SplitTransitionResult, error) {
	return a.transition(ctx, "Fulfillment.Split.Complete", in, types.SplitStatusCompleted, domainagg.EventOrderSplitCompleted)
}

func (a *splitAggregate) transition(ctx context.Context, op string, in domainagg.TransitionSplitInput, to types.SplitStatus, eventType string) (domainagg.SplitTransitionResult, error) {
	var out domainagg.SplitTransitionResult
	if in.SplitID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing split_id", nil)
	}
	at := in.At.UTC()
	if at.IsZero() {
		at = time.Now().UTC()
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		sp, err := a.deps.Splits.GetByID(dbc, in.SplitID)
		if err != nil {
			return err
		}
		if sp == nil {
			return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("order split not found: %s", in.SplitID), nil)
		}
		if sp.Status == to {
			return InvariantError(fmt.Sprintf("order split already %s", to))
		}
		if sp.Status != types.SplitStatusOpen {
			return InvariantError(fmt.Sprintf("cannot move order split from %q to %q", sp.Status, to))
		}

		ok, err := a.deps.Base.CASGuard.UpdateByVersion(dbc, "order_split", sp.ID, sp.Version, map[string]any{
			"status":     to,
			"updated_at": at,
		})
		if err != nil {
			return err
		}
		if err := RequireCASSuccess(ok, "order split changed while transitioning"); err != nil {
			return err
		}

		ev := domainagg.NewEvent(domainagg.AggregateTypeSplit, sp.ID, eventType, at, map[string]any{
			"split_id":    sp.ID.String(),
			"order_id":    sp.OriginalOrderID.String(),
			"destination": sp.Destination,
			"version":     sp.Version + 1,
		})
		if err := a.deps.Outbox.Append(dbc, []domainagg.Event{ev}); err != nil {
			return err
		}
		out = domainagg.SplitTransitionResult{
			SplitID: sp.ID,
			Status:  to,
			Version: sp.Version + 1,
		}
		return nil
	})
	return out, err
}

func validateAllocations(allocs []domainagg.SplitAllocation) error {
	if len(allocs) == 0 {
		return ValidationError("at least one allocation is required")
	}
	seen := map[string]bool{}
	for _, alloc := range allocs {
		dest := strings.TrimSpace(alloc.Destination)
		if dest == "" {
			return ValidationError("allocation destination is required")
		}
		if seen[dest] {
			return ValidationError(fmt.Sprintf("duplicate destination %q", dest))
		}
		seen[dest] = true
		if len(alloc.Items) == 0 {
			return ValidationError(fmt.Sprintf("allocation %q has no items", dest))
		}
		for _, it := range alloc.Items {
			if strings.TrimSpace(it.ProductRef) == "" {
				return ValidationError("allocation item product_ref is required")
			}
			if it.Quantity <= 0 {
				return ValidationError(fmt.Sprintf("allocation item %q quantity must be positive", it.ProductRef))
			}
		}
	}
	return nil
}

// checkAllocationFits enforces the allocation invariant: per product, the
// quantity across non-cancelled splits plus the new allocations never
// exceeds the original order quantity.
func checkAllocationFits(ord *types.Order, existing []*types.OrderSplit, allocs []domainagg.SplitAllocation) error {
	original := map[string]int{}
	for _, it := range ord.Items {
		original[it.ProductRef] += it.Quantity
	}
	allocated := map[string]int{}
	for _, sp := range existing {
		if sp.Status == types.SplitStatusCancelled {
			continue
		}
		for _, it := range sp.Items {
			allocated[it.ProductRef] += it.Quantity
		}
	}
	for _, alloc := range allocs {
		for _, it := range alloc.Items {
			allocated[it.ProductRef] += it.Quantity
		}
	}
	for ref, qty := range allocated {
		limit, ok := original[ref]
		if !ok {
			return ValidationError(fmt.Sprintf("product %q is not on the order", ref))
		}
		if qty > limit {
			return InvariantError(fmt.Sprintf("product %q over-allocated: %d of %d", ref, qty, limit))
		}
	}
	return nil
}
