package billing

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/commerce-backend/internal/domain"
	"github.com/yungbote/commerce-backend/internal/platform/dbctx"
	"github.com/yungbote/commerce-backend/internal/platform/logger"
)

type InvoiceRepo interface {
	Create(dbc dbctx.Context, row *types.Invoice) (*types.Invoice, error)

	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Invoice, error)
	GetByOrderID(dbc dbctx.Context, orderID uuid.UUID) (*types.Invoice, error)

	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type invoiceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewInvoiceRepo(db *gorm.DB, baseLog *logger.Logger) InvoiceRepo {
	return &invoiceRepo{db: db, log: baseLog.With("repo", "InvoiceRepo")}
}

func (r *invoiceRepo) base(dbc dbctx.Context) *gorm.DB {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx)
}

func (r *invoiceRepo) Create(dbc dbctx.Context, row *types.Invoice) (*types.Invoice, error) {
	if row == nil {
		return nil, nil
	}
	if err := r.base(dbc).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *invoiceRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Invoice, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.Invoice
	err := r.base(dbc).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *invoiceRepo) GetByOrderID(dbc dbctx.Context, orderID uuid.UUID) (*types.Invoice, error) {
	if orderID == uuid.Nil {
		return nil, nil
	}
	var row types.Invoice
	err := r.base(dbc).Where("order_id = ?", orderID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *invoiceRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	return r.base(dbc).
		Model(&types.Invoice{}).
		Where("id = ?", id).
		Updates(updates).Error
}
