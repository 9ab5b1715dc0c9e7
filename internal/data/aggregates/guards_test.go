package aggregates

import (
	"context"
	"testing"
	"time"

	repotest "github.com/yungbote/commerce-backend/internal/data/repos/testutil"
	types "github.com/yungbote/commerce-backend/internal/domain"
	domainagg "github.com/yungbote/commerce-backend/internal/domain/aggregates"
	"github.com/yungbote/commerce-backend/internal/platform/dbctx"
)

func TestCASGuardUpdateByVersionBumpsVersion(t *testing.T) {
	db := repotest.DB(t)
	tx := repotest.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	ord := repotest.SeedOrder(t, ctx, tx, types.OrderStatusCreated, types.OrderPaymentPending)

	guard := NewCASGuard(tx)
	ok, err := guard.UpdateByVersion(dbc, "order_header", ord.ID, ord.Version, map[string]any{
		"status":     types.OrderStatusAwaitingPayment,
		"updated_at": time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("UpdateByVersion: %v", err)
	}
	if !ok {
		t.Fatalf("matching version should update the row")
	}

	var reloaded types.Order
	if err := tx.WithContext(ctx).Where("id = ?", ord.ID).First(&reloaded).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if reloaded.Version != ord.Version+1 {
		t.Fatalf("version: want=%d got=%d", ord.Version+1, reloaded.Version)
	}
	if reloaded.Status != types.OrderStatusAwaitingPayment {
		t.Fatalf("status: want=%q got=%q", types.OrderStatusAwaitingPayment, reloaded.Status)
	}
}

func TestCASGuardUpdateByVersionStaleVersion(t *testing.T) {
	db := repotest.DB(t)
	tx := repotest.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	ord := repotest.SeedOrder(t, ctx, tx, types.OrderStatusCreated, types.OrderPaymentPending)

	guard := NewCASGuard(tx)
	ok, err := guard.UpdateByVersion(dbc, "order_header", ord.ID, ord.Version+7, map[string]any{
		"status": types.OrderStatusCancelled,
	})
	if err != nil {
		t.Fatalf("UpdateByVersion: %v", err)
	}
	if ok {
		t.Fatalf("stale version must not update the row")
	}

	err = MapError("test.op", RequireCASSuccess(ok, "order changed"))
	if !domainagg.IsCode(err, domainagg.CodeConflict) {
		t.Fatalf("failed CAS should map to conflict, got %v", err)
	}

	var reloaded types.Order
	if err := tx.WithContext(ctx).Where("id = ?", ord.ID).First(&reloaded).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if reloaded.Status != types.OrderStatusCreated {
		t.Fatalf("status must be untouched, got %q", reloaded.Status)
	}
}

func TestRequireVersionMatch(t *testing.T) {
	if err := RequireVersionMatch(3, 3); err != nil {
		t.Fatalf("equal versions: %v", err)
	}
	err := MapError("test.op", RequireVersionMatch(3, 2))
	if !domainagg.IsCode(err, domainagg.CodeConflict) {
		t.Fatalf("mismatched versions should map to conflict, got %v", err)
	}
}

func TestCASGuardUpdateByStatus(t *testing.T) {
	db := repotest.DB(t)
	tx := repotest.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	ord := repotest.SeedOrder(t, ctx, tx, types.OrderStatusCreated, types.OrderPaymentPending)

	guard := NewCASGuard(tx)
	ok, err := guard.UpdateByStatus(dbc, "order_header", ord.ID,
		[]string{string(types.OrderStatusCreated), string(types.OrderStatusAwaitingPayment)},
		map[string]any{
			"status":     types.OrderStatusCancelled,
			"version":    ord.Version + 1,
			"updated_at": time.Now().UTC(),
		})
	if err != nil {
		t.Fatalf("UpdateByStatus: %v", err)
	}
	if !ok {
		t.Fatalf("allowed status should update the row")
	}

	var reloaded types.Order
	if err := tx.WithContext(ctx).Where("id = ?", ord.ID).First(&reloaded).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if reloaded.Status != types.OrderStatusCancelled {
		t.Fatalf("status: want=%q got=%q", types.OrderStatusCancelled, reloaded.Status)
	}
	// UpdateByStatus leaves the version to the caller's update set.
	if reloaded.Version != ord.Version+1 {
		t.Fatalf("version: want=%d got=%d", ord.Version+1, reloaded.Version)
	}

	// The row left the allowed set; the guard now matches nothing.
	ok, err = guard.UpdateByStatus(dbc, "order_header", ord.ID,
		[]string{string(types.OrderStatusCreated)},
		map[string]any{"status": types.OrderStatusDelivered})
	if err != nil {
		t.Fatalf("UpdateByStatus: %v", err)
	}
	if ok {
		t.Fatalf("disallowed status must not update the row")
	}
	if err := MapError("test.op", RequireCASSuccess(ok, "order changed")); !domainagg.IsCode(err, domainagg.CodeConflict) {
		t.Fatalf("failed status guard should map to conflict, got %v", err)
	}
}
