package outbox

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	outboxrepo "github.com/yungbote/commerce-backend/internal/data/repos/outbox"
	types "github.com/yungbote/commerce-backend/internal/domain"
	"github.com/yungbote/commerce-backend/internal/observability"
	"github.com/yungbote/commerce-backend/internal/platform/clock"
	"github.com/yungbote/commerce-backend/internal/platform/dbctx"
	"github.com/yungbote/commerce-backend/internal/platform/logger"
)

type RelayConfig struct {
	// InstanceID identifies this relay as a lease holder; defaults to
	// hostname plus a random suffix.
	InstanceID string

	BatchSize    int
	PollInterval time.Duration
	// LeaseFor bounds how long a claimed record stays invisible to other
	// instances; it must exceed HandlerTimeout.
	LeaseFor       time.Duration
	HandlerTimeout time.Duration

	// Backoff for attempt n is BaseBackoff * 2^(n-1), capped at MaxBackoff.
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	// MaxAttempts dead-letters a record once its failed attempts reach it.
	MaxAttempts int
}

func (c RelayConfig) withDefaults() RelayConfig {
	if strings.TrimSpace(c.InstanceID) == "" {
		host, _ := os.Hostname()
		if host == "" {
			host = "relay"
		}
		c.InstanceID = fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.HandlerTimeout <= 0 {
		c.HandlerTimeout = 10 * time.Second
	}
	if c.LeaseFor <= c.HandlerTimeout {
		c.LeaseFor = c.HandlerTimeout + 20*time.Second
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 5 * time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 10 * time.Minute
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 8
	}
	return c
}

// Relay polls the outbox table and pushes undelivered records through the
// handler registry. Multiple relay instances can run against the same table;
// the lease claim keeps them from double-dispatching within a lease window.
type Relay struct {
	cfg      RelayConfig
	repo     outboxrepo.OutboxRepo
	registry *Registry
	log      *logger.Logger
	metrics  *observability.Metrics
	clock    clock.Clock
}

func NewRelay(cfg RelayConfig, repo outboxrepo.OutboxRepo, registry *Registry, log *logger.Logger, metrics *observability.Metrics, clk clock.Clock) *Relay {
	if clk == nil {
		clk = clock.System()
	}
	return &Relay{
		cfg:      cfg.withDefaults(),
		repo:     repo,
		registry: registry,
		log:      log.With("component", "OutboxRelay", "instance", cfg.withDefaults().InstanceID),
		metrics:  metrics,
		clock:    clk,
	}
}

// Run polls until the context is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()
	r.log.Info("outbox relay started",
		"batch_size", r.cfg.BatchSize,
		"poll_interval", r.cfg.PollInterval.String(),
		"max_attempts", r.cfg.MaxAttempts)
	for {
		if _, err := r.RunOnce(ctx); err != nil {
			r.log.Error("outbox poll failed", "error", err)
		}
		select {
		case <-ctx.Done():
			r.log.Info("outbox relay stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce claims one batch and dispatches it, returning how many records
// were delivered.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	now := r.clock.Now().UTC()
	dbc := dbctx.Context{Ctx: ctx}
	batch, err := r.repo.ClaimBatch(dbc, r.cfg.InstanceID, r.cfg.BatchSize, now, r.cfg.LeaseFor)
	if err != nil {
		return 0, fmt.Errorf("claim outbox batch: %w", err)
	}
	r.metrics.ObserveRelayBatch(len(batch))

	delivered := 0
	for _, rec := range batch {
		if ctx.Err() != nil {
			return delivered, ctx.Err()
		}
		if r.dispatch(ctx, rec) {
			delivered++
		}
	}

	if pending, err := r.repo.CountPending(dbc); err == nil {
		r.metrics.SetOutboxPending(pending)
	}
	return delivered, nil
}

// dispatch runs every handler for the record and reports true on delivery.
// Failure of any handler fails the whole record; handlers already run may
// therefore see the record again, which at-least-once delivery permits.
func (r *Relay) dispatch(ctx context.Context, rec *types.OutboxRecord) bool {
	start := r.clock.Now()
	handlers := r.registry.HandlersFor(rec.EventType)

	var err error
	if len(handlers) == 0 {
		err = fmt.Errorf("no handler registered for event type %q", rec.EventType)
	} else {
		hctx, cancel := context.WithTimeout(ctx, r.cfg.HandlerTimeout)
		for _, h := range handlers {
			if err = h.Handle(hctx, rec); err != nil {
				break
			}
		}
		cancel()
	}

	now := r.clock.Now().UTC()
	dbc := dbctx.Context{Ctx: ctx}
	if err == nil {
		if markErr := r.repo.MarkDelivered(dbc, rec.ID, r.cfg.InstanceID, now); markErr != nil {
			r.log.Error("mark delivered failed", "event_id", rec.ID, "error", markErr)
			return false
		}
		r.metrics.IncRelayDelivered(rec.EventType)
		r.metrics.ObserveRelayDispatch(rec.EventType, "delivered", now.Sub(start))
		return true
	}

	attempts := rec.AttemptCount + 1
	r.metrics.IncRelayFailed(rec.EventType)
	if attempts >= r.cfg.MaxAttempts {
		if markErr := r.repo.MarkDeadLettered(dbc, rec.ID, r.cfg.InstanceID, now, err.Error()); markErr != nil {
			r.log.Error("mark dead-lettered failed", "event_id", rec.ID, "error", markErr)
			return false
		}
		r.metrics.IncRelayDeadLettered(rec.EventType)
		r.metrics.ObserveRelayDispatch(rec.EventType, "dead_lettered", now.Sub(start))
		r.log.Error("outbox record dead-lettered",
			"event_id", rec.ID,
			"event_type", rec.EventType,
			"attempts", attempts,
			"error", err)
		return false
	}

	next := now.Add(r.backoff(attempts))
	if markErr := r.repo.MarkFailed(dbc, rec.ID, r.cfg.InstanceID, attempts, next, err.Error()); markErr != nil {
		r.log.Error("mark failed failed", "event_id", rec.ID, "error", markErr)
		return false
	}
	r.metrics.ObserveRelayDispatch(rec.EventType, "failed", now.Sub(start))
	r.log.Warn("outbox delivery failed",
		"event_id", rec.ID,
		"event_type", rec.EventType,
		"attempt", attempts,
		"next_attempt_at", next.Format(time.RFC3339),
		"error", err)
	return false
}

func (r *Relay) backoff(attempt int) time.Duration {
	d := r.cfg.BaseBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= r.cfg.MaxBackoff {
			return r.cfg.MaxBackoff
		}
	}
	if d > r.cfg.MaxBackoff {
		return r.cfg.MaxBackoff
	}
	return d
}
