package model

import "time"

// 在庫更新、注文ステータス更新など。
type AuditAction string

const (
	//在庫を更新した操作。
	AuditActionUpdateStock AuditAction = "UPDATE_STOCK"
	//注文ステータスを更新した操作。
	AuditActionUpdateOrderStatus AuditAction = "UPDATE_ORDER_STATUS"
	//注文をキャンセルした操作。
	AuditActionCancelOrder AuditAction = "CANCEL_ORDER"
	//見積ステータスの変更（送信・承諾・却下・期限切れ）。
	AuditActionUpdateQuotationStatus AuditAction = "UPDATE_QUOTATION_STATUS"
	//強制ログアウト。
	AuditActionForceLogout AuditAction = "FORCE_LOGOUT"
)

// 何に対する操作か
type AuditResourceType string

const (
	AuditResourceProduct   AuditResourceType = "product"
	AuditResourceOrder     AuditResourceType = "order"
	AuditResourceQuotation AuditResourceType = "quotation"
	AuditResourceUser      AuditResourceType = "user"
)

// 監査ログ。
// 「誰が」「何を」「どの対象に」「どう変えたか」を残す。
type AuditLog struct {
	ID string `gorm:"type:uuid;primaryKey" json:"id"`

	//操作したユーザー。期限切れなど自動遷移は空。
	ActorUserID string `gorm:"type:varchar(36);index" json:"actor_user_id"`

	Action AuditAction `gorm:"type:varchar(50);not null;index" json:"action"`

	ResourceType AuditResourceType `gorm:"type:varchar(50);not null;index" json:"resource_type"`

	ResourceID string `gorm:"type:varchar(36);not null;index" json:"resource_id"`

	//JSON文字列で保存する。
	BeforeJSON string `gorm:"type:text" json:"before_json"`
	AfterJSON  string `gorm:"type:text" json:"after_json"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}
