package repository

import (
	"context"

	"tigu/internal/domain/model"

	"gorm.io/gorm"
)

type OrderItemGormRepository struct {
	db *gorm.DB
}

func NewOrderItemGormRepository(db *gorm.DB) *OrderItemGormRepository {
	return &OrderItemGormRepository{db: db}
}

// 明細一括作成（並び順はPositionで保持）
func (r *OrderItemGormRepository) CreateBulk(ctx context.Context, orderID string, items []model.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		ensureID(&items[i].ID)
		items[i].OrderID = orderID
		items[i].Position = i
	}
	if err := r.db.WithContext(ctx).Create(&items).Error; err != nil {
		return err
	}
	return nil
}

func (r *OrderItemGormRepository) ListByOrderID(ctx context.Context, orderID string) ([]model.OrderItem, error) {
	var items []model.OrderItem
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("position asc").Find(&items).Error
	if err != nil {
		return []model.OrderItem{}, err
	}
	return items, nil
}
