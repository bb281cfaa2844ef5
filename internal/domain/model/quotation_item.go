package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 見積明細（スナップショットは持たない）
type QuotationItem struct {
	ID             string          `gorm:"type:uuid;primaryKey" json:"id"`
	QuotationID    string          `gorm:"type:uuid;not null;index" json:"quotation_id"`
	ProductID      string          `gorm:"type:uuid;not null;index" json:"product_id"`
	Quantity       int64           `gorm:"not null" json:"quantity"`
	UnitPrice      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	TotalPrice     decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_price"`
	Description    *string         `gorm:"type:text" json:"description"`
	Specifications Attributes      `gorm:"serializer:json" json:"specifications"`
	Brand          *string         `gorm:"type:varchar(100)" json:"brand"`
	Model          *string         `gorm:"type:varchar(100)" json:"model"`
	DeliveryTime   *int            `json:"delivery_time"`
	Position       int             `gorm:"not null;default:0" json:"-"`
	CreatedAt      time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
}
