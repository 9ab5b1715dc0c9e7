package handlers

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	types "github.com/yungbote/commerce-backend/internal/domain"
	"github.com/yungbote/commerce-backend/internal/outbox"
	"github.com/yungbote/commerce-backend/internal/platform/logger"
)

// Deduper remembers event ids so at-least-once delivery collapses to
// effectively-once for guarded handlers. An id is only marked after the
// guarded handler has succeeded; a failed delivery stays unmarked so the
// relay's retry runs the handler again.
type Deduper interface {
	// Seen reports whether the event id was already marked.
	Seen(ctx context.Context, eventID string) (bool, error)
	// MarkSeen records the event id for the retention window.
	MarkSeen(ctx context.Context, eventID string) error
}

type redisDeduper struct {
	rdb    *goredis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisDeduper tracks handled event ids in Redis under a shared prefix.
func NewRedisDeduper(rdb *goredis.Client, prefix string, ttl time.Duration) Deduper {
	if prefix == "" {
		prefix = "outbox:seen"
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &redisDeduper{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (d *redisDeduper) key(eventID string) string {
	return fmt.Sprintf("%s:%s", d.prefix, eventID)
}

func (d *redisDeduper) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := d.rdb.Exists(ctx, d.key(eventID)).Result()
	if err != nil {
		return false, fmt.Errorf("dedupe exists: %w", err)
	}
	return n > 0, nil
}

func (d *redisDeduper) MarkSeen(ctx context.Context, eventID string) error {
	if err := d.rdb.Set(ctx, d.key(eventID), 1, d.ttl).Err(); err != nil {
		return fmt.Errorf("dedupe set: %w", err)
	}
	return nil
}

type dedupingHandler struct {
	deduper Deduper
	inner   outbox.Handler
	log     *logger.Logger
}

// WithDedupe wraps a handler so replayed records are acknowledged without
// re-running it. The id is marked only after the inner handler succeeds:
// marking first would turn a failed delivery into a permanently skipped one.
// A dedupe store failure fails the record; retrying is safer than risking a
// double side effect.
func WithDedupe(deduper Deduper, inner outbox.Handler, baseLog *logger.Logger) outbox.Handler {
	return &dedupingHandler{
		deduper: deduper,
		inner:   inner,
		log:     baseLog.With("handler", "Dedupe"),
	}
}

func (h *dedupingHandler) Handle(ctx context.Context, rec *types.OutboxRecord) error {
	eventID := rec.ID.String()
	seen, err := h.deduper.Seen(ctx, eventID)
	if err != nil {
		return err
	}
	if seen {
		h.log.Debug("duplicate delivery skipped", "event_id", rec.ID, "event_type", rec.EventType)
		return nil
	}
	if err := h.inner.Handle(ctx, rec); err != nil {
		return err
	}
	if err := h.deduper.MarkSeen(ctx, eventID); err != nil {
		// The handler ran but the mark did not stick; failing the record keeps
		// the retention guarantee at the cost of a possible duplicate run.
		h.log.Warn("dedupe mark failed after delivery", "event_id", rec.ID, "error", err)
		return err
	}
	return nil
}
