package repository

import (
	"context"

	"tigu/internal/domain/model"
)

type QuotationListFilter struct {
	Page   int
	Limit  int
	Scope  PartyScope
	Status *model.QuotationStatus
}

type QuotationRepository interface {
	// quotation_number重複は ErrDuplicate
	Create(ctx context.Context, q *model.Quotation) error
	FindByID(ctx context.Context, quotationID string) (model.Quotation, error)
	FindByIDForUpdate(ctx context.Context, quotationID string) (model.Quotation, error)
	Update(ctx context.Context, q *model.Quotation) error
	List(ctx context.Context, f QuotationListFilter) ([]model.Quotation, int64, error)
}
