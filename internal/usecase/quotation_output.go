package usecase

import (
	"time"

	"tigu/internal/domain/model"
)

type QuotationItemOutput struct {
	ID             string           `json:"id"`
	ProductID      string           `json:"product_id"`
	Quantity       int64            `json:"quantity"`
	UnitPrice      string           `json:"unit_price"`
	TotalPrice     string           `json:"total_price"`
	Description    *string          `json:"description"`
	Specifications model.Attributes `json:"specifications"`
	Brand          *string          `json:"brand"`
	Model          *string          `json:"model"`
	DeliveryTime   *int             `json:"delivery_time"`
}

type QuotationOutput struct {
	ID                string                `json:"id"`
	QuotationNumber   string                `json:"quotation_number"`
	BuyerCompanyID    string                `json:"buyer_company_id"`
	BuyerUserID       string                `json:"buyer_user_id"`
	SupplierCompanyID string                `json:"supplier_company_id"`
	SupplierUserID    string                `json:"supplier_user_id"`
	Status            string                `json:"status"`
	Subtotal          string                `json:"subtotal"`
	TaxAmount         string                `json:"tax_amount"`
	DiscountAmount    string                `json:"discount_amount"`
	TotalAmount       string                `json:"total_amount"`
	ValidUntil        time.Time             `json:"valid_until"`
	PaymentTerms      *string               `json:"payment_terms"`
	DeliveryTerms     *string               `json:"delivery_terms"`
	Notes             *string               `json:"notes"`
	OrderID           *string               `json:"order_id"`
	SentAt            *time.Time            `json:"sent_at"`
	ViewedAt          *time.Time            `json:"viewed_at"`
	RespondedAt       *time.Time            `json:"responded_at"`
	CreatedAt         time.Time             `json:"created_at"`
	UpdatedAt         time.Time             `json:"updated_at"`
	Items             []QuotationItemOutput `json:"items"`
}

type QuotationListOutput struct {
	Items []QuotationOutput `json:"items"`
	Total int64             `json:"total"`
	Page  int               `json:"page"`
	Limit int               `json:"limit"`
	Pages int               `json:"pages"`
}

type MessageOutput struct {
	Message string  `json:"message"`
	OrderID *string `json:"order_id,omitempty"`
}

func toQuotationOutput(q model.Quotation, items []model.QuotationItem) QuotationOutput {
	outItems := make([]QuotationItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, QuotationItemOutput{
			ID:             it.ID,
			ProductID:      it.ProductID,
			Quantity:       it.Quantity,
			UnitPrice:      model.FormatMoney(it.UnitPrice),
			TotalPrice:     model.FormatMoney(it.TotalPrice),
			Description:    it.Description,
			Specifications: it.Specifications,
			Brand:          it.Brand,
			Model:          it.Model,
			DeliveryTime:   it.DeliveryTime,
		})
	}

	return QuotationOutput{
		ID:                q.ID,
		QuotationNumber:   q.QuotationNumber,
		BuyerCompanyID:    q.BuyerCompanyID,
		BuyerUserID:       q.BuyerUserID,
		SupplierCompanyID: q.SupplierCompanyID,
		SupplierUserID:    q.SupplierUserID,
		Status:            string(q.Status),
		Subtotal:          model.FormatMoney(q.Subtotal),
		TaxAmount:         model.FormatMoney(q.TaxAmount),
		DiscountAmount:    model.FormatMoney(q.DiscountAmount),
		TotalAmount:       model.FormatMoney(q.TotalAmount),
		ValidUntil:        q.ValidUntil,
		PaymentTerms:      q.PaymentTerms,
		DeliveryTerms:     q.DeliveryTerms,
		Notes:             q.Notes,
		OrderID:           q.OrderID,
		SentAt:            q.SentAt,
		ViewedAt:          q.ViewedAt,
		RespondedAt:       q.RespondedAt,
		CreatedAt:         q.CreatedAt,
		UpdatedAt:         q.UpdatedAt,
		Items:             outItems,
	}
}
