package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// OrderLine is one line of an order snapshot, priced at finalize time.
type OrderLine struct {
	Item     string `json:"item"`
	Quantity int    `json:"quantity"`
	Subtotal int64  `json:"subtotal"`
}

// Order is the immutable snapshot written once at finalize time. Prices are
// in the smallest currency unit.
type Order struct {
	ID                       string      `json:"id"`
	UserID                   string      `json:"user_id"`
	DisplayName              string      `json:"display_name,omitempty"`
	Lines                    []OrderLine `json:"lines"`
	Total                    int64       `json:"total"`
	FulfillmentOffsetMinutes int         `json:"fulfillment_offset_minutes"`
	CreatedAt                time.Time   `json:"created_at"`
}

// ArchivedOrder is the durable append-only copy of an order snapshot.
type ArchivedOrder struct {
	ID                       uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID                  string         `gorm:"uniqueIndex;not null;column:order_id" json:"order_id"`
	UserID                   string         `gorm:"index;not null;column:user_id" json:"user_id"`
	DisplayName              string         `gorm:"column:display_name" json:"display_name"`
	Lines                    datatypes.JSON `gorm:"column:lines" json:"lines"`
	Total                    int64          `gorm:"not null;column:total" json:"total"`
	FulfillmentOffsetMinutes int            `gorm:"column:fulfillment_offset_minutes" json:"fulfillment_offset_minutes"`
	CreatedAt                time.Time      `gorm:"not null;column:created_at" json:"created_at"`
}

func (ArchivedOrder) TableName() string {
	return "order_archive"
}
