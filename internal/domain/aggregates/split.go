package aggregates

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/commerce-backend/internal/domain/fulfillment"
)

var SplitAggregateContract = Contract{
	Name:             "Fulfillment.SplitAggregate",
	WriteTxOwnership: WriteTxOwnedByAggregate,
	ReadPolicy:       ReadPolicyInvariantScoped,
	Notes:            "Per product, allocated quantity across non-cancelled splits never exceeds the original order quantity.",
}

// SplitAggregate owns order-split allocation invariants. Splits transition
// independently of the parent order and of sibling splits.
type SplitAggregate interface {
	Aggregate

	// CreateSplits validates allocations against the original order's line
	// items plus existing non-cancelled splits, then persists one split per
	// destination, all-or-nothing, with one order_split.created event each.
	CreateSplits(ctx context.Context, in CreateSplitsInput) (CreateSplitsResult, error)

	Cancel(ctx context.Context, in TransitionSplitInput) (SplitTransitionResult, error)
	Complete(ctx context.Context, in TransitionSplitInput) (SplitTransitionResult, error)
}

type SplitItemInput struct {
	ProductRef string
	Quantity   int
}

type SplitAllocation struct {
	Destination string
	Items       []SplitItemInput
}

type CreateSplitsInput struct {
	OrderID     uuid.UUID
	Allocations []SplitAllocation
	CreatedAt   time.Time
}

type CreateSplitsResult struct {
	SplitIDs []uuid.UUID
}

type TransitionSplitInput struct {
	SplitID uuid.UUID
	At      time.Time
}

type SplitTransitionResult struct {
	SplitID uuid.UUID
	Status  fulfillment.SplitStatus
	Version int
}
