package repository

import (
	"context"
	"time"

	"tigu/internal/domain/model"
)

type OrderListFilter struct {
	Page          int
	Limit         int
	Scope         PartyScope
	Status        *model.OrderStatus
	PaymentStatus *model.PaymentStatus
	NumberLike    string
	From          *time.Time
	To            *time.Time
}

type OrderRepository interface {
	// order_number重複は ErrDuplicate
	Create(ctx context.Context, order *model.Order) error
	FindByID(ctx context.Context, orderID string) (model.Order, error)
	// 行ロックつき（ステータス更新用）
	FindByIDForUpdate(ctx context.Context, orderID string) (model.Order, error)
	Update(ctx context.Context, order *model.Order) error
	List(ctx context.Context, f OrderListFilter) ([]model.Order, int64, error)
}
