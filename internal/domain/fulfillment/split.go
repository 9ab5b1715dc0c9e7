package fulfillment

import (
	"time"

	"github.com/google/uuid"
)

type SplitStatus string

const (
	SplitStatusOpen      SplitStatus = "open"
	SplitStatusCompleted SplitStatus = "completed"
	SplitStatusCancelled SplitStatus = "cancelled"
)

// OrderSplit partitions part of an order's line items toward one destination
// (for example a warehouse). Splits transition independently of the parent
// order and of sibling splits.
type OrderSplit struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OriginalOrderID uuid.UUID `gorm:"type:uuid;not null;index" json:"original_order_id"`

	Destination string `gorm:"column:destination;not null" json:"destination"`
	// open|completed|cancelled
	Status SplitStatus `gorm:"column:status;not null;index" json:"status"`

	Items []*OrderSplitItem `gorm:"foreignKey:OrderSplitID;references:ID" json:"items,omitempty"`

	Version int `gorm:"column:version;not null" json:"version"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (OrderSplit) TableName() string { return "order_split" }

type OrderSplitItem struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OrderSplitID uuid.UUID `gorm:"type:uuid;not null;index" json:"order_split_id"`

	ProductRef string `gorm:"column:product_ref;not null;index" json:"product_ref"`
	Quantity   int    `gorm:"column:quantity;not null" json:"quantity"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (OrderSplitItem) TableName() string { return "order_split_item" }
