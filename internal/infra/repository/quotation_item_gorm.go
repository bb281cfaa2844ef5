package repository

import (
	"context"

	"tigu/internal/domain/model"

	"gorm.io/gorm"
)

type QuotationItemGormRepository struct {
	db *gorm.DB
}

func NewQuotationItemGormRepository(db *gorm.DB) *QuotationItemGormRepository {
	return &QuotationItemGormRepository{db: db}
}

func (r *QuotationItemGormRepository) CreateBulk(ctx context.Context, quotationID string, items []model.QuotationItem) error {
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		ensureID(&items[i].ID)
		items[i].QuotationID = quotationID
		items[i].Position = i
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *QuotationItemGormRepository) ListByQuotationID(ctx context.Context, quotationID string) ([]model.QuotationItem, error) {
	var items []model.QuotationItem
	err := r.db.WithContext(ctx).Where("quotation_id = ?", quotationID).Order("position asc").Find(&items).Error
	if err != nil {
		return []model.QuotationItem{}, err
	}
	return items, nil
}
