package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// 遷移表にない遷移
	ErrInvalidTransition = errors.New("invalid status transition")
	// 返金は支払い済みのみ
	ErrRefundRequiresPayment = errors.New("refund requires paid order")
	// 未知のステータス文字列
	ErrUnknownStatus = errors.New("unknown status")
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
)

// 注文ステータスの遷移表（ここにない遷移は全部NG）
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusRefunded},
	OrderStatusShipped:    {OrderStatusDelivered, OrderStatusRefunded},
	OrderStatusDelivered:  {},
	OrderStatusCancelled:  {},
	OrderStatusRefunded:   {},
}

func ParseOrderStatus(s string) (OrderStatus, error) {
	st := OrderStatus(s)
	if _, ok := orderTransitions[st]; !ok {
		return "", ErrUnknownStatus
	}
	return st, nil
}

func (s OrderStatus) IsTerminal() bool {
	return len(orderTransitions[s]) == 0
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, n := range orderTransitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

// キャンセルできるのは pending / confirmed だけ
func (s OrderStatus) IsCancellable() bool {
	return s.CanTransitionTo(OrderStatusCancelled)
}

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch PaymentStatus(s) {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded:
		return PaymentStatus(s), nil
	}
	return "", ErrUnknownStatus
}

// 配送先
type Address struct {
	Province   string `json:"province,omitempty"`
	City       string `json:"city" validate:"required,max=100"`
	District   string `json:"district,omitempty"`
	Street     string `json:"street" validate:"required,max=255"`
	PostalCode string `json:"postal_code,omitempty"`
}

// 配送連絡先
type Contact struct {
	Name  string `json:"name" validate:"required,max=100"`
	Phone string `json:"phone" validate:"required,max=50"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
}

type Order struct {
	ID                    string          `gorm:"type:uuid;primaryKey" json:"id"`
	OrderNumber           string          `gorm:"type:varchar(50);uniqueIndex;not null" json:"order_number"`
	BuyerCompanyID        string          `gorm:"type:uuid;not null;index" json:"buyer_company_id"`
	BuyerUserID           string          `gorm:"type:uuid;not null;index" json:"buyer_user_id"`
	SupplierCompanyID     string          `gorm:"type:uuid;not null;index" json:"supplier_company_id"`
	Status                OrderStatus     `gorm:"type:varchar(20);not null;index" json:"status"`
	PaymentStatus         PaymentStatus   `gorm:"type:varchar(20);not null;index" json:"payment_status"`
	Subtotal              decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"subtotal"`
	TaxAmount             decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"tax_amount"`
	ShippingAmount        decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"shipping_amount"`
	DiscountAmount        decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"discount_amount"`
	TotalAmount           decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_amount"`
	DeliveryAddress       Address         `gorm:"serializer:json" json:"delivery_address"`
	DeliveryContact       Contact         `gorm:"serializer:json" json:"delivery_contact"`
	RequestedDeliveryDate *time.Time      `json:"requested_delivery_date"`
	ActualDeliveryDate    *time.Time      `json:"actual_delivery_date"`
	Notes                 *string         `gorm:"type:text" json:"notes"`
	InternalNotes         *string         `gorm:"type:text" json:"internal_notes"`
	StatusUpdatedAt       *time.Time      `json:"status_updated_at"`
	CancellationReason    *string         `gorm:"type:text" json:"cancellation_reason"`
	CancelledAt           *time.Time      `json:"cancelled_at"`
	CreatedAt             time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time       `gorm:"not null;autoUpdateTime" json:"updated_at"`

	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
}

// 金額を設定（totalは常にここで計算）
func (o *Order) ApplyTotals(t Totals) {
	o.Subtotal = t.Subtotal
	o.TaxAmount = t.Tax
	o.ShippingAmount = t.Shipping
	o.DiscountAmount = t.Discount
	o.TotalAmount = t.Total()
}

// 遷移表に従ってステータスを変える
func (o *Order) TransitionTo(next OrderStatus, now time.Time) error {
	if !o.Status.CanTransitionTo(next) {
		return ErrInvalidTransition
	}
	if next == OrderStatusRefunded {
		if o.PaymentStatus != PaymentStatusPaid {
			return ErrRefundRequiresPayment
		}
		o.PaymentStatus = PaymentStatusRefunded
	}
	if next == OrderStatusDelivered && o.ActualDeliveryDate == nil {
		o.ActualDeliveryDate = &now
	}
	o.Status = next
	o.StatusUpdatedAt = &now
	return nil
}

// キャンセル（理由つき）
func (o *Order) Cancel(reason string, now time.Time) error {
	if err := o.TransitionTo(OrderStatusCancelled, now); err != nil {
		return err
	}
	o.CancellationReason = &reason
	o.CancelledAt = &now
	return nil
}
