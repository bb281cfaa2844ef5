package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 注文明細（商品情報は注文時点のスナップショット）
type OrderItem struct {
	ID                    string          `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID               string          `gorm:"type:uuid;not null;index" json:"order_id"`
	ProductID             string          `gorm:"type:uuid;not null;index" json:"product_id"`
	Quantity              int64           `gorm:"not null" json:"quantity"`
	UnitPrice             decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	TotalPrice            decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_price"`
	ProductName           LocalizedText   `gorm:"serializer:json;not null" json:"product_name"`
	ProductSKU            string          `gorm:"column:product_sku;type:varchar(255);not null" json:"product_sku"`
	ProductSpecifications Attributes      `gorm:"serializer:json" json:"product_specifications"`
	Position              int             `gorm:"not null;default:0" json:"-"`
	CreatedAt             time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
}

// 商品から明細を作る（スナップショット）
func NewOrderItem(p Product, quantity int64, unitPrice decimal.Decimal) OrderItem {
	return OrderItem{
		ProductID:             p.ID,
		Quantity:              quantity,
		UnitPrice:             unitPrice,
		TotalPrice:            LineTotal(unitPrice, quantity),
		ProductName:           p.Name.Clone(),
		ProductSKU:            p.SKU,
		ProductSpecifications: p.Specifications.Clone(),
	}
}
