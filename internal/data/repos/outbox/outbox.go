package outbox

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/commerce-backend/internal/domain"
	"github.com/yungbote/commerce-backend/internal/platform/dbctx"
	"github.com/yungbote/commerce-backend/internal/platform/logger"
)

type OutboxRepo interface {
	// Append persists records inside the caller's transaction; the caller is
	// the transactional unit, so dbc.Tx must carry the same transaction that
	// commits the aggregate mutation the records describe.
	Append(dbc dbctx.Context, rows []*types.OutboxRecord) error

	// ClaimBatch atomically leases up to limit undelivered, due, unleased
	// records for instanceID. Safe to call from concurrent relay instances;
	// each record is claimed by at most one instance per lease window.
	ClaimBatch(dbc dbctx.Context, instanceID string, limit int, now time.Time, leaseFor time.Duration) ([]*types.OutboxRecord, error)

	// MarkDelivered finalizes a record after confirmed handler success. The
	// lease holder check keeps a late instance from finalizing a record it
	// lost the lease on.
	MarkDelivered(dbc dbctx.Context, id uuid.UUID, instanceID string, at time.Time) error

	// MarkFailed records a delivery failure and schedules the next attempt.
	MarkFailed(dbc dbctx.Context, id uuid.UUID, instanceID string, attemptCount int, nextAttemptAt time.Time, lastError string) error

	// MarkDeadLettered parks a record for manual inspection after the retry
	// budget is exhausted.
	MarkDeadLettered(dbc dbctx.Context, id uuid.UUID, instanceID string, at time.Time, lastError string) error

	ListPendingByAggregate(dbc dbctx.Context, aggregateID uuid.UUID) ([]*types.OutboxRecord, error)
	ListDeadLettered(dbc dbctx.Context, limit int) ([]*types.OutboxRecord, error)
	CountPending(dbc dbctx.Context) (int64, error)
}

type outboxRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewOutboxRepo(db *gorm.DB, baseLog *logger.Logger) OutboxRepo {
	return &outboxRepo{db: db, log: baseLog.With("repo", "OutboxRepo")}
}

func (r *outboxRepo) base(dbc dbctx.Context) *gorm.DB {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx)
}

func (r *outboxRepo) Append(dbc dbctx.Context, rows []*types.OutboxRecord) error {
	if len(rows) == 0 {
		return nil
	}
	return r.base(dbc).Create(&rows).Error
}

func (r *outboxRepo) ClaimBatch(dbc dbctx.Context, instanceID string, limit int, now time.Time, leaseFor time.Duration) ([]*types.OutboxRecord, error) {
	if limit <= 0 || instanceID == "" {
		return nil, nil
	}

	var candidates []*types.OutboxRecord
	err := r.base(dbc).
		Where("delivered_at IS NULL").
		Where("dead_lettered_at IS NULL").
		Where("next_attempt_at IS NULL OR next_attempt_at <= ?", now).
		Where("leased_until IS NULL OR leased_until < ?", now).
		Order("created_at ASC").
		Limit(limit).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}

	leaseUntil := now.Add(leaseFor)
	claimed := make([]*types.OutboxRecord, 0, len(candidates))
	for _, rec := range candidates {
		// Conditional update is the atomic claim: only one instance's update
		// matches while the previous lease (if any) is expired.
		res := r.base(dbc).
			Model(&types.OutboxRecord{}).
			Where("id = ?", rec.ID).
			Where("delivered_at IS NULL").
			Where("dead_lettered_at IS NULL").
			Where("leased_until IS NULL OR leased_until < ?", now).
			Updates(map[string]interface{}{
				"leased_by":    instanceID,
				"leased_until": leaseUntil,
			})
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			continue
		}
		rec.LeasedBy = instanceID
		u := leaseUntil
		rec.LeasedUntil = &u
		claimed = append(claimed, rec)
	}
	return claimed, nil
}

func (r *outboxRepo) MarkDelivered(dbc dbctx.Context, id uuid.UUID, instanceID string, at time.Time) error {
	if id == uuid.Nil {
		return nil
	}
	return r.base(dbc).
		Model(&types.OutboxRecord{}).
		Where("id = ? AND leased_by = ? AND delivered_at IS NULL", id, instanceID).
		Updates(map[string]interface{}{
			"delivered_at": at,
			"leased_until": nil,
		}).Error
}

func (r *outboxRepo) MarkFailed(dbc dbctx.Context, id uuid.UUID, instanceID string, attemptCount int, nextAttemptAt time.Time, lastError string) error {
	if id == uuid.Nil {
		return nil
	}
	return r.base(dbc).
		Model(&types.OutboxRecord{}).
		Where("id = ? AND leased_by = ? AND delivered_at IS NULL", id, instanceID).
		Updates(map[string]interface{}{
			"attempt_count":   attemptCount,
			"next_attempt_at": nextAttemptAt,
			"last_error":      lastError,
			"leased_until":    nil,
		}).Error
}

func (r *outboxRepo) MarkDeadLettered(dbc dbctx.Context, id uuid.UUID, instanceID string, at time.Time, lastError string) error {
	if id == uuid.Nil {
		return nil
	}
	return r.base(dbc).
		Model(&types.OutboxRecord{}).
		Where("id = ? AND leased_by = ? AND delivered_at IS NULL", id, instanceID).
		Updates(map[string]interface{}{
			"dead_lettered_at": at,
			"last_error":       lastError,
			"leased_until":     nil,
		}).Error
}

func (r *outboxRepo) ListPendingByAggregate(dbc dbctx.Context, aggregateID uuid.UUID) ([]*types.OutboxRecord, error) {
	var out []*types.OutboxRecord
	if aggregateID == uuid.Nil {
		return out, nil
	}
	err := r.base(dbc).
		Where("aggregate_id = ? AND delivered_at IS NULL AND dead_lettered_at IS NULL", aggregateID).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *outboxRepo) ListDeadLettered(dbc dbctx.Context, limit int) ([]*types.OutboxRecord, error) {
	var out []*types.OutboxRecord
	q := r.base(dbc).
		Where("dead_lettered_at IS NOT NULL").
		Order("dead_lettered_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *outboxRepo) CountPending(dbc dbctx.Context) (int64, error) {
	var n int64
	err := r.base(dbc).
		Model(&types.OutboxRecord{}).
		Where("delivered_at IS NULL AND dead_lettered_at IS NULL").
		Count(&n).Error
	return n, err
}
