package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Category struct {
	ID          string        `gorm:"type:uuid;primaryKey" json:"id"`
	Name        LocalizedText `gorm:"serializer:json;not null" json:"name"`
	Slug        string        `gorm:"type:varchar(255);uniqueIndex;not null" json:"slug"`
	Description LocalizedText `gorm:"serializer:json" json:"description"`
	ParentID    *string       `gorm:"type:uuid;index" json:"parent_id"`
	SortOrder   int           `gorm:"not null;default:0" json:"sort_order"`
	IsActive    bool          `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

type Product struct {
	ID                string          `gorm:"type:uuid;primaryKey" json:"id"`
	SKU               string          `gorm:"column:sku;type:varchar(255);uniqueIndex;not null" json:"sku"`
	Name              LocalizedText   `gorm:"serializer:json;not null" json:"name"`
	Description       LocalizedText   `gorm:"serializer:json" json:"description"`
	Specifications    Attributes      `gorm:"serializer:json" json:"specifications"`
	Price             decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	Stock             int64           `gorm:"not null;default:0" json:"stock"`
	MinStock          int64           `gorm:"not null;default:0" json:"min_stock"`
	Unit              LocalizedText   `gorm:"serializer:json" json:"unit"`
	CategoryID        string          `gorm:"type:uuid;not null;index" json:"category_id"`
	SupplierCompanyID string          `gorm:"type:uuid;not null;index" json:"supplier_company_id"`
	IsActive          bool            `gorm:"not null;default:true" json:"is_active"`
	CreatedAt         time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// 在庫が下限以下
func (p Product) IsLowStock() bool {
	return p.Stock <= p.MinStock
}
