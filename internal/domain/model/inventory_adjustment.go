package model

import "time"

// 在庫調整の履歴（手動更新・注文・キャンセル戻し）
type InventoryReason string

const (
	InventoryReasonManual        InventoryReason = "manual"
	InventoryReasonOrder         InventoryReason = "order"
	InventoryReasonOrderCancel   InventoryReason = "order_cancel"
	InventoryReasonQuotationDeal InventoryReason = "quotation_accept"
)

type InventoryAdjustment struct {
	ID          string          `gorm:"type:uuid;primaryKey" json:"id"`
	ProductID   string          `gorm:"type:uuid;not null;index" json:"product_id"`
	ActorUserID string          `gorm:"type:uuid;not null;index" json:"actor_user_id"`
	Delta       int64           `gorm:"not null" json:"delta"`
	Reason      InventoryReason `gorm:"type:varchar(50);not null" json:"reason"`
	ReferenceID *string         `gorm:"type:varchar(36);index" json:"reference_id"`
	CreatedAt   time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
}
