package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	InvoiceStatusIssued InvoiceStatus = "issued"
	InvoiceStatusSent   InvoiceStatus = "sent"
)

// Invoice is an immutable financial snapshot of a paid order. Monetary fields
// are copied from the order at issuance and never recomputed afterwards.
type Invoice struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"order_id"`

	// INV-{yyyyMMdd}-{random6}; collisions are retried at the create path.
	InvoiceNumber string `gorm:"column:invoice_number;not null;uniqueIndex" json:"invoice_number"`

	IssuedAt time.Time `gorm:"column:issued_at;not null" json:"issued_at"`
	DueAt    time.Time `gorm:"column:due_at;not null" json:"due_at"`

	Currency     string          `gorm:"column:currency;not null" json:"currency"`
	SubTotal     decimal.Decimal `gorm:"column:sub_total;type:numeric;not null" json:"sub_total"`
	Tax          decimal.Decimal `gorm:"column:tax;type:numeric;not null" json:"tax"`
	ShippingCost decimal.Decimal `gorm:"column:shipping_cost;type:numeric;not null" json:"shipping_cost"`
	Discount     decimal.Decimal `gorm:"column:discount;type:numeric;not null" json:"discount"`
	TotalAmount  decimal.Decimal `gorm:"column:total_amount;type:numeric;not null" json:"total_amount"`

	// issued|sent
	Status InvoiceStatus `gorm:"column:status;not null;index" json:"status"`
	// PdfURL is a rendering artifact, the only field mutable after send.
	PdfURL string `gorm:"column:pdf_url" json:"pdf_url,omitempty"`

	Version int `gorm:"column:version;not null" json:"version"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Invoice) TableName() string { return "invoice" }
