package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type QuotationStatus string

const (
	QuotationStatusDraft    QuotationStatus = "draft"
	QuotationStatusSent     QuotationStatus = "sent"
	QuotationStatusViewed   QuotationStatus = "viewed"
	QuotationStatusAccepted QuotationStatus = "accepted"
	QuotationStatusRejected QuotationStatus = "rejected"
	QuotationStatusExpired  QuotationStatus = "expired"
)

// 見積ステータスの遷移表
var quotationTransitions = map[QuotationStatus][]QuotationStatus{
	QuotationStatusDraft:    {QuotationStatusSent},
	QuotationStatusSent:     {QuotationStatusViewed, QuotationStatusAccepted, QuotationStatusRejected, QuotationStatusExpired},
	QuotationStatusViewed:   {QuotationStatusAccepted, QuotationStatusRejected, QuotationStatusExpired},
	QuotationStatusAccepted: {},
	QuotationStatusRejected: {},
	QuotationStatusExpired:  {},
}

func ParseQuotationStatus(s string) (QuotationStatus, error) {
	st := QuotationStatus(s)
	if _, ok := quotationTransitions[st]; !ok {
		return "", ErrUnknownStatus
	}
	return st, nil
}

func (s QuotationStatus) IsTerminal() bool {
	return len(quotationTransitions[s]) == 0
}

func (s QuotationStatus) CanTransitionTo(next QuotationStatus) bool {
	for _, n := range quotationTransitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

type Quotation struct {
	ID                string          `gorm:"type:uuid;primaryKey" json:"id"`
	QuotationNumber   string          `gorm:"type:varchar(50);uniqueIndex;not null" json:"quotation_number"`
	BuyerCompanyID    string          `gorm:"type:uuid;not null;index" json:"buyer_company_id"`
	BuyerUserID       string          `gorm:"type:uuid;not null;index" json:"buyer_user_id"`
	SupplierCompanyID string          `gorm:"type:uuid;not null;index" json:"supplier_company_id"`
	SupplierUserID    string          `gorm:"type:uuid;not null" json:"supplier_user_id"`
	Status            QuotationStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	Subtotal          decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"subtotal"`
	TaxAmount         decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"tax_amount"`
	DiscountAmount    decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"discount_amount"`
	TotalAmount       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_amount"`
	ValidUntil        time.Time       `gorm:"not null;index" json:"valid_until"`
	PaymentTerms      *string         `gorm:"type:text" json:"payment_terms"`
	DeliveryTerms     *string         `gorm:"type:text" json:"delivery_terms"`
	Notes             *string         `gorm:"type:text" json:"notes"`
	OrderID           *string         `gorm:"type:uuid" json:"order_id"`
	SentAt            *time.Time      `json:"sent_at"`
	ViewedAt          *time.Time      `json:"viewed_at"`
	RespondedAt       *time.Time      `json:"responded_at"`
	CreatedAt         time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"not null;autoUpdateTime" json:"updated_at"`

	Items []QuotationItem `gorm:"foreignKey:QuotationID;constraint:OnDelete:CASCADE" json:"items"`
}

// 見積に送料はない
func (q *Quotation) ApplyTotals(t Totals) {
	t.Shipping = decimal.Zero
	q.Subtotal = t.Subtotal
	q.TaxAmount = t.Tax
	q.DiscountAmount = t.Discount
	q.TotalAmount = t.Total()
}

func (q *Quotation) Totals() Totals {
	return Totals{
		Subtotal: q.Subtotal,
		Tax:      q.TaxAmount,
		Shipping: decimal.Zero,
		Discount: q.DiscountAmount,
	}
}

func (q *Quotation) IsExpiredAt(now time.Time) bool {
	return q.ValidUntil.Before(now)
}

func (q *Quotation) transitionTo(next QuotationStatus) error {
	if !q.Status.CanTransitionTo(next) {
		return ErrInvalidTransition
	}
	q.Status = next
	return nil
}

func (q *Quotation) Send(now time.Time) error {
	if err := q.transitionTo(QuotationStatusSent); err != nil {
		return err
	}
	q.SentAt = &now
	return nil
}

// バイヤーが初めて開いたとき sent -> viewed（2回目以降は何もしない）
func (q *Quotation) MarkViewed(now time.Time) bool {
	if q.Status != QuotationStatusSent || q.ViewedAt != nil {
		return false
	}
	q.Status = QuotationStatusViewed
	q.ViewedAt = &now
	return true
}

// 期限切れなら expired にする（変わったら true）
func (q *Quotation) ExpireIfDue(now time.Time) bool {
	if !q.IsExpiredAt(now) || !q.Status.CanTransitionTo(QuotationStatusExpired) {
		return false
	}
	q.Status = QuotationStatusExpired
	return true
}

func (q *Quotation) Accept(orderID string, now time.Time) error {
	if err := q.transitionTo(QuotationStatusAccepted); err != nil {
		return err
	}
	q.OrderID = &orderID
	q.RespondedAt = &now
	return nil
}

func (q *Quotation) Reject(now time.Time) error {
	if err := q.transitionTo(QuotationStatusRejected); err != nil {
		return err
	}
	q.RespondedAt = &now
	return nil
}
