package repository

import (
	"context"

	"tigu/internal/domain/model"

	"github.com/shopspring/decimal"
)

// 一覧検索
type ProductListQuery struct {
	Page              int
	Limit             int
	Q                 string
	CategoryID        *string
	SupplierCompanyID *string
	MinPrice          *decimal.Decimal
	MaxPrice          *decimal.Decimal
	InStock           bool
	Sort              string
}

// 商品の永続化（保存・取得）だけを約束。
type ProductRepository interface {
	List(ctx context.Context, q ProductListQuery) ([]model.Product, int64, error)
	FindByID(ctx context.Context, id string) (model.Product, error)
	FindBySKU(ctx context.Context, sku string) (model.Product, error)
	ListLowStock(ctx context.Context, supplierCompanyID *string) ([]model.Product, error)

	Create(ctx context.Context, p model.Product) (model.Product, error)
	Update(ctx context.Context, p model.Product) error
	Deactivate(ctx context.Context, id string) error
}

type CategoryRepository interface {
	ListActive(ctx context.Context) ([]model.Category, error)
	FindBySlug(ctx context.Context, slug string) (model.Category, error)
	FindByID(ctx context.Context, id string) (model.Category, error)
	Create(ctx context.Context, c model.Category) (model.Category, error)
}
