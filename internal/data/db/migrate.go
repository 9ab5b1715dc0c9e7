package db

import (
	types "github.com/yungbote/commerce-backend/internal/domain"
	"gorm.io/gorm"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(
		// Orders context
		&types.Order{},
		&types.OrderItem{},

		// Payments context
		&types.Payment{},

		// Billing context
		&types.Invoice{},

		// Fulfillment context
		&types.OrderSplit{},
		&types.OrderSplitItem{},

		// Transactional outbox
		&types.OutboxRecord{},
	); err != nil {
		return err
	}
	return applyConstraints(db)
}

// applyConstraints installs the uniqueness guards AutoMigrate cannot express.
// The partial unique index on payment(order_id) is the authoritative
// one-active-payment-per-order rule; application-level existence checks are
// only a fast path in front of it.
func applyConstraints(db *gorm.DB) error {
	stmts := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS uidx_payment_active_order
		   ON payment (order_id)
		   WHERE status <> 'failed'`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
