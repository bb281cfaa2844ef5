package repository

import (
	"context"

	"tigu/internal/domain/model"
)

type QuotationItemRepository interface {
	CreateBulk(ctx context.Context, quotationID string, items []model.QuotationItem) error
	ListByQuotationID(ctx context.Context, quotationID string) ([]model.QuotationItem, error)
}
