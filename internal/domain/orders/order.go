package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderStatus string

const (
	OrderStatusCreated         OrderStatus = "created"
	OrderStatusAwaitingPayment OrderStatus = "awaiting_payment"
	OrderStatusPaid            OrderStatus = "paid"
	OrderStatusProcessing      OrderStatus = "processing"
	OrderStatusShipped         OrderStatus = "shipped"
	OrderStatusDelivered       OrderStatus = "delivered"
	OrderStatusCancelled       OrderStatus = "cancelled"
	OrderStatusReturned        OrderStatus = "returned"
)

type OrderPaymentStatus string

const (
	OrderPaymentPending           OrderPaymentStatus = "pending"
	OrderPaymentCompleted         OrderPaymentStatus = "completed"
	OrderPaymentRefunded          OrderPaymentStatus = "refunded"
	OrderPaymentPartiallyRefunded OrderPaymentStatus = "partially_refunded"
)

// Order is the order bounded context's aggregate root. Monetary columns hold
// the invariant total_amount = sub_total + tax + shipping_cost - discount,
// re-derived on every item or price mutation.
type Order struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	UserID     uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	AddressRef string    `gorm:"column:address_ref;not null" json:"address_ref"`
	CouponCode string    `gorm:"column:coupon_code" json:"coupon_code,omitempty"`

	Currency     string          `gorm:"column:currency;not null" json:"currency"`
	SubTotal     decimal.Decimal `gorm:"column:sub_total;type:numeric;not null" json:"sub_total"`
	Tax          decimal.Decimal `gorm:"column:tax;type:numeric;not null" json:"tax"`
	ShippingCost decimal.Decimal `gorm:"column:shipping_cost;type:numeric;not null" json:"shipping_cost"`
	Discount     decimal.Decimal `gorm:"column:discount;type:numeric;not null" json:"discount"`
	TotalAmount  decimal.Decimal `gorm:"column:total_amount;type:numeric;not null" json:"total_amount"`

	// created|awaiting_payment|paid|processing|shipped|delivered|cancelled|returned
	Status OrderStatus `gorm:"column:status;not null;index" json:"status"`
	// pending|completed|refunded|partially_refunded
	PaymentStatus OrderPaymentStatus `gorm:"column:payment_status;not null;index" json:"payment_status"`

	Items []*OrderItem `gorm:"foreignKey:OrderID;references:ID" json:"items,omitempty"`

	// Version is the optimistic concurrency stamp; commits against a stale
	// version are rejected at the storage layer.
	Version int `gorm:"column:version;not null" json:"version"`

	CreatedAt time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Order) TableName() string { return "order_header" }

// OrderItem is owned exclusively by Order and immutable once the order
// leaves the created status.
type OrderItem struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID uuid.UUID `gorm:"type:uuid;not null;index" json:"order_id"`

	ProductRef string          `gorm:"column:product_ref;not null;index" json:"product_ref"`
	Quantity   int             `gorm:"column:quantity;not null" json:"quantity"`
	UnitPrice  decimal.Decimal `gorm:"column:unit_price;type:numeric;not null" json:"unit_price"`
	TotalPrice decimal.Decimal `gorm:"column:total_price;type:numeric;not null" json:"total_price"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (OrderItem) TableName() string { return "order_item" }
