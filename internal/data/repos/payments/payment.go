package payments

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/commerce-backend/internal/domain"
	"github.com/yungbote/commerce-backend/internal/platform/dbctx"
	"github.com/yungbote/commerce-backend/internal/platform/logger"
)

type PaymentRepo interface {
	Create(dbc dbctx.Context, row *types.Payment) (*types.Payment, error)

	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Payment, error)
	// GetActiveByOrderID returns the non-failed payment for the order, if any.
	GetActiveByOrderID(dbc dbctx.Context, orderID uuid.UUID) (*types.Payment, error)

	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type paymentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPaymentRepo(db *gorm.DB, baseLog *logger.Logger) PaymentRepo {
	return &paymentRepo{db: db, log: baseLog.With("repo", "PaymentRepo")}
}

func (r *paymentRepo) base(dbc dbctx.Context) *gorm.DB {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx)
}

func (r *paymentRepo) Create(dbc dbctx.Context, row *types.Payment) (*types.Payment, error) {
	if row == nil {
		return nil, nil
	}
	if err := r.base(dbc).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *paymentRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Payment, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.Payment
	err := r.base(dbc).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *paymentRepo) GetActiveByOrderID(dbc dbctx.Context, orderID uuid.UUID) (*types.Payment, error) {
	if orderID == uuid.Nil {
		return nil, nil
	}
	var row types.Payment
	err := r.base(dbc).
		Where("order_id = ? AND status <> ?", orderID, types.PaymentStatusFailed).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *paymentRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	return r.base(dbc).
		Model(&types.Payment{}).
		Where("id = ?", id).
		Updates(updates).Error
}
