package fulfillment

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/commerce-backend/internal/domain"
	"github.com/yungbote/commerce-backend/internal/platform/dbctx"
	"github.com/yungbote/commerce-backend/internal/platform/logger"
)

type OrderSplitRepo interface {
	Create(dbc dbctx.Context, rows []*types.OrderSplit) ([]*types.OrderSplit, error)

	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.OrderSplit, error)
	// ListByOrderID returns all splits of an order, items preloaded.
	ListByOrderID(dbc dbctx.Context, orderID uuid.UUID) ([]*types.OrderSplit, error)

	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type orderSplitRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewOrderSplitRepo(db *gorm.DB, baseLog *logger.Logger) OrderSplitRepo {
	return &orderSplitRepo{db: db, log: baseLog.With("repo", "OrderSplitRepo")}
}

func (r *orderSplitRepo) base(dbc dbctx.Context) *gorm.DB {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx)
}

func (r *orderSplitRepo) Create(dbc dbctx.Context, rows []*types.OrderSplit) ([]*types.OrderSplit, error) {
	if len(rows) == 0 {
		return []*types.OrderSplit{}, nil
	}
	if err := r.base(dbc).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *orderSplitRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.OrderSplit, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.OrderSplit
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

func (r *orderSplitRepo) ListByOrderID(dbc dbctx.Context, orderID uuid.UUID) ([]*types.OrderSplit, error) {
	var out []*types.OrderSplit
	if orderID == uuid.Nil {
		return out, nil
	}
	err := r.base(dbc).
		Preload("Items").
		Where("original_order_id = ?", orderID).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *orderSplitRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	return r.base(dbc).
		Model(&types.OrderSplit{}).
		Where("id = ?", id).
		Updates(updates).Error
}
