package usecase

import (
	"math"
	"time"

	"tigu/internal/domain/model"
)

type OrderItemOutput struct {
	ID                    string              `json:"id"`
	ProductID             string              `json:"product_id"`
	Quantity              int64               `json:"quantity"`
	UnitPrice             string              `json:"unit_price"`
	TotalPrice            string              `json:"total_price"`
	ProductName           model.LocalizedText `json:"product_name"`
	ProductSKU            string              `json:"product_sku"`
	ProductSpecifications model.Attributes    `json:"product_specifications"`
}

type OrderOutput struct {
	ID                    string            `json:"id"`
	OrderNumber           string            `json:"order_number"`
	BuyerCompanyID        string            `json:"buyer_company_id"`
	BuyerUserID           string            `json:"buyer_user_id"`
	SupplierCompanyID     string            `json:"supplier_company_id"`
	Status                string            `json:"status"`
	PaymentStatus         string            `json:"payment_status"`
	Subtotal              string            `json:"subtotal"`
	TaxAmount             string            `json:"tax_amount"`
	ShippingAmount        string            `json:"shipping_amount"`
	DiscountAmount        string            `json:"discount_amount"`
	TotalAmount           string            `json:"total_amount"`
	DeliveryAddress       model.Address     `json:"delivery_address"`
	DeliveryContact       model.Contact     `json:"delivery_contact"`
	RequestedDeliveryDate *time.Time        `json:"requested_delivery_date"`
	ActualDeliveryDate    *time.Time        `json:"actual_delivery_date"`
	Notes                 *string           `json:"notes"`
	InternalNotes         *string           `json:"internal_notes,omitempty"`
	StatusUpdatedAt       *time.Time        `json:"status_updated_at"`
	CancellationReason    *string           `json:"cancellation_reason"`
	CancelledAt           *time.Time        `json:"cancelled_at"`
	CreatedAt             time.Time         `json:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at"`
	Items                 []OrderItemOutput `json:"items"`
}

type OrderListOutput struct {
	Items []OrderOutput `json:"items"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
	Pages int           `json:"pages"`
}

// internal_notesは売り手側と管理者だけに見せる
func toOrderOutput(o model.Order, items []model.OrderItem, showInternal bool) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			ID:                    it.ID,
			ProductID:             it.ProductID,
			Quantity:              it.Quantity,
			UnitPrice:             model.FormatMoney(it.UnitPrice),
			TotalPrice:            model.FormatMoney(it.TotalPrice),
			ProductName:           it.ProductName,
			ProductSKU:            it.ProductSKU,
			ProductSpecifications: it.ProductSpecifications,
		})
	}

	out := OrderOutput{
		ID:                    o.ID,
		OrderNumber:           o.OrderNumber,
		BuyerCompanyID:        o.BuyerCompanyID,
		BuyerUserID:           o.BuyerUserID,
		SupplierCompanyID:     o.SupplierCompanyID,
		Status:                string(o.Status),
		PaymentStatus:         string(o.PaymentStatus),
		Subtotal:              model.FormatMoney(o.Subtotal),
		TaxAmount:             model.FormatMoney(o.TaxAmount),
		ShippingAmount:        model.FormatMoney(o.ShippingAmount),
		DiscountAmount:        model.FormatMoney(o.DiscountAmount),
		TotalAmount:           model.FormatMoney(o.TotalAmount),
		DeliveryAddress:       o.DeliveryAddress,
		DeliveryContact:       o.DeliveryContact,
		RequestedDeliveryDate: o.RequestedDeliveryDate,
		ActualDeliveryDate:    o.ActualDeliveryDate,
		Notes:                 o.Notes,
		StatusUpdatedAt:       o.StatusUpdatedAt,
		CancellationReason:    o.CancellationReason,
		CancelledAt:           o.CancelledAt,
		CreatedAt:             o.CreatedAt,
		UpdatedAt:             o.UpdatedAt,
		Items:                 outItems,
	}
	if showInternal {
		out.InternalNotes = o.InternalNotes
	}
	return out
}

func pageCount(total int64, limit int) int {
	if limit <= 0 {
		return 0
	}
	return int(math.Ceil(float64(total) / float64(limit)))
}
