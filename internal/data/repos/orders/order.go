package orders

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/commerce-backend/internal/domain"
	"github.com/yungbote/commerce-backend/internal/platform/dbctx"
	"github.com/yungbote/commerce-backend/internal/platform/logger"
)

type OrderRepo interface {
	Create(dbc dbctx.Context, row *types.Order) (*types.Order, error)

	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Order, error)
	ListByUserID(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*types.Order, error)

	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type orderRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewOrderRepo(db *gorm.DB, baseLog *logger.Logger) OrderRepo {
	return &orderRepo{db: db, log: baseLog.With("repo", "OrderRepo")}
}

func (r *orderRepo) base(dbc dbctx.Context) *gorm.DB {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx)
}

func (r *orderRepo) Create(dbc dbctx.Context, row *types.Order) (*types.Order, error) {
	if row == nil {
		return nil, nil
	}
	if err := r.base(dbc).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *orderRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Order, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.Order
	err := r.base(dbc).
		Preload("Items").
		Where("id = ?", id).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *orderRepo) ListByUserID(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*types.Order, error) {
	var out []*types.Order
	if userID == uuid.Nil {
		return out, nil
	}
	q := r.base(dbc).
		Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *orderRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	return r.base(dbc).
		Model(&types.Order{}).
		Where("id = ?", id).
		Updates(updates).Error
}
