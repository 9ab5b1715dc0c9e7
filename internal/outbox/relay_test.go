package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	outboxrepo "github.com/yungbote/commerce-backend/internal/data/repos/outbox"
	repotest "github.com/yungbote/commerce-backend/internal/data/repos/testutil"
	types "github.com/yungbote/commerce-backend/internal/domain"
	"github.com/yungbote/commerce-backend/internal/observability"
	"github.com/yungbote/commerce-backend/internal/platform/clock"
	"github.com/yungbote/commerce-backend/internal/platform/dbctx"
)

type recordingHandler struct {
	mu   sync.Mutex
	seen []uuid.UUID
	err  error
}

func (h *recordingHandler) Handle(_ context.Context, rec *types.OutboxRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, rec.ID)
	return h.err
}

func (h *recordingHandler) calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.seen)
}

func newTestRelay(t *testing.T, repo outboxrepo.OutboxRepo, registry *Registry, clk clock.Clock, cfg RelayConfig) *Relay {
	t.Helper()
	if cfg.InstanceID == "" {
		cfg.InstanceID = "relay-test"
	}
	return NewRelay(cfg, repo, registry, repotest.Logger(t), observability.NewMetrics(), clk)
}

func TestRelayDeliversOldestFirst(t *testing.T) {
	db := repotest.DB(t)
	ctx := context.Background()
	repo := outboxrepo.NewOutboxRepo(db, repotest.Logger(t))
	clk := clock.NewFrozen(time.Now().UTC())

	older := repotest.SeedOutboxRecord(t, ctx, db, "order.created", clk.Now().Add(-2*time.Minute))
	newer := repotest.SeedOutboxRecord(t, ctx, db, "order.created", clk.Now().Add(-time.Minute))

	h := &recordingHandler{}
	registry := NewRegistry()
	registry.Register("order.created", h)

	relay := newTestRelay(t, repo, registry, clk, RelayConfig{})
	delivered, err := relay.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if delivered != 2 {
		t.Fatalf("delivered: want=2 got=%d", delivered)
	}
	if len(h.seen) != 2 || h.seen[0] != older.ID || h.seen[1] != newer.ID {
		t.Fatalf("dispatch order: want=[%s %s] got=%v", older.ID, newer.ID, h.seen)
	}

	n, err := repo.CountPending(dbctx.Context{Ctx: ctx})
	if err != nil {
		t.Fatalf("CountPending: %v", err)
	}
	if n != 0 {
		t.Fatalf("pending after delivery: want=0 got=%d", n)
	}
}

func TestRelayRetriesWithBackoffThenDeadLetters(t *testing.T) {
	db := repotest.DB(t)
	ctx := context.Background()
	repo := outboxrepo.NewOutboxRepo(db, repotest.Logger(t))
	clk := clock.NewFrozen(time.Now().UTC())

	rec := repotest.SeedOutboxRecord(t, ctx, db, "payment.captured", clk.Now().Add(-time.Minute))

	h := &recordingHandler{err: errors.New("broker unavailable")}
	registry := NewRegistry()
	registry.Register("payment.captured", h)

	relay := newTestRelay(t, repo, registry, clk, RelayConfig{
		BaseBackoff: time.Minute,
		MaxBackoff:  time.Hour,
		MaxAttempts: 3,
		LeaseFor:    30 * time.Second,
	})

	// First attempt fails and schedules a retry one minute out.
	if _, err := relay.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce 1: %v", err)
	}
	if h.calls() != 1 {
		t.Fatalf("calls after first poll: want=1 got=%d", h.calls())
	}

	// Not due yet; nothing to claim.
	if _, err := relay.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce 2: %v", err)
	}
	if h.calls() != 1 {
		t.Fatalf("record dispatched before next_attempt_at: calls=%d", h.calls())
	}

	// Second attempt after the base backoff.
	clk.Advance(61 * time.Second)
	if _, err := relay.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce 3: %v", err)
	}
	if h.calls() != 2 {
		t.Fatalf("calls after second attempt: want=2 got=%d", h.calls())
	}

	// Third attempt exhausts the budget and dead-letters.
	clk.Advance(3 * time.Minute)
	if _, err := relay.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce 4: %v", err)
	}
	if h.calls() != 3 {
		t.Fatalf("calls after third attempt: want=3 got=%d", h.calls())
	}

	dead, err := repo.ListDeadLettered(dbctx.Context{Ctx: ctx}, 10)
	if err != nil {
		t.Fatalf("ListDeadLettered: %v", err)
	}
	if len(dead) != 1 || dead[0].ID != rec.ID {
		t.Fatalf("dead-lettered: want=[%s] got=%+v", rec.ID, dead)
	}
	if dead[0].LastError == "" {
		t.Fatalf("dead-lettered record must keep its last error")
	}

	// Dead-lettered records are never claimed again.
	clk.Advance(time.Hour)
	if _, err := relay.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce 5: %v", err)
	}
	if h.calls() != 3 {
		t.Fatalf("dead-lettered record was re-dispatched: calls=%d", h.calls())
	}
}

func TestRelayMissingHandlerFailsRecord(t *testing.T) {
	db := repotest.DB(t)
	ctx := context.Background()
	repo := outboxrepo.NewOutboxRepo(db, repotest.Logger(t))
	clk := clock.NewFrozen(time.Now().UTC())

	rec := repotest.SeedOutboxRecord(t, ctx, db, "invoice.issued", clk.Now().Add(-time.Minute))

	relay := newTestRelay(t, repo, NewRegistry(), clk, RelayConfig{})
	if _, err := relay.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	var reloaded types.OutboxRecord
	if err := db.WithContext(ctx).Where("id = ?", rec.ID).First(&reloaded).Error; err != nil {
		t.Fatalf("reload record: %v", err)
	}
	if reloaded.Delivered() {
		t.Fatalf("unroutable record must not be delivered")
	}
	if reloaded.AttemptCount != 1 {
		t.Fatalf("attempt_count: want=1 got=%d", reloaded.AttemptCount)
	}
	if reloaded.NextAttemptAt == nil {
		t.Fatalf("retry must be scheduled")
	}
}

func TestRelayRespectsForeignLease(t *testing.T) {
	db := repotest.DB(t)
	ctx := context.Background()
	repo := outboxrepo.NewOutboxRepo(db, repotest.Logger(t))
	clk := clock.NewFrozen(time.Now().UTC())

	repotest.SeedOutboxRecord(t, ctx, db, "order.created", clk.Now().Add(-time.Minute))

	// Another instance holds the lease.
	claimed, err := repo.ClaimBatch(dbctx.Context{Ctx: ctx}, "other-instance", 10, clk.Now(), time.Hour)
	if err != nil {
		t.Fatalf("ClaimBatch: %v", err)
	}
	if len(claimed) != 1 {
		t.Fatalf("setup claim: want=1 got=%d", len(claimed))
	}

	h := &recordingHandler{}
	registry := NewRegistry()
	registry.Register("order.created", h)
	relay := newTestRelay(t, repo, registry, clk, RelayConfig{})

	if _, err := relay.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if h.calls() != 0 {
		t.Fatalf("leased record must not be dispatched by another instance")
	}

	// The lease expires and the record becomes claimable again.
	clk.Advance(2 * time.Hour)
	if _, err := relay.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce after lease expiry: %v", err)
	}
	if h.calls() != 1 {
		t.Fatalf("expired lease must release the record: calls=%d", h.calls())
	}
}

func TestRegistryFallbackSeesEveryType(t *testing.T) {
	typed := &recordingHandler{}
	fallback := &recordingHandler{}
	registry := NewRegistry()
	registry.Register("order.created", typed)
	registry.RegisterFallback(fallback)

	hs := registry.HandlersFor("order.created")
	if len(hs) != 2 {
		t.Fatalf("handlers for typed event: want=2 got=%d", len(hs))
	}
	hs = registry.HandlersFor("payment.captured")
	if len(hs) != 1 {
		t.Fatalf("handlers for untyped event: want=1 got=%d", len(hs))
	}
}

func TestRelayBackoffCurve(t *testing.T) {
	relay := newTestRelay(t, nil, NewRegistry(), clock.System(), RelayConfig{
		BaseBackoff: 5 * time.Second,
		MaxBackoff:  time.Minute,
	})
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 5 * time.Second},
		{2, 10 * time.Second},
		{3, 20 * time.Second},
		{4, 40 * time.Second},
		{5, time.Minute},
		{9, time.Minute},
	}
	for _, tc := range cases {
		if got := relay.backoff(tc.attempt); got != tc.want {
			t.Fatalf("backoff(%d): want=%s got=%s", tc.attempt, tc.want, got)
		}
	}
}
