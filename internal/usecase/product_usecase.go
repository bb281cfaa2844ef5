package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tigu/internal/auth"
	"tigu/internal/domain/model"
	repo "tigu/internal/repository"

	"github.com/shopspring/decimal"
)

// 在庫が動いたらカタログのキャッシュを無効化
type CatalogInvalidator interface {
	Bump(ctx context.Context) error
}

type ProductCache interface {
	CatalogInvalidator
	BuildKey(ctx context.Context, parts ...string) (string, error)
	FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error
}

func invalidateCatalog(ctx context.Context, log *slog.Logger, c CatalogInvalidator) {
	if c == nil {
		return
	}
	if err := c.Bump(ctx); err != nil {
		log.Warn("catalog cache bump failed", slog.Any("err", err))
	}
}

type ProductUsecase struct {
	tx         repo.TransactionManager
	products   repo.ProductRepository
	categories repo.CategoryRepository
	cache      ProductCache
	clock      auth.Clock
	log        *slog.Logger
}

// DI
func NewProductUsecase(
	tx repo.TransactionManager,
	products repo.ProductRepository,
	categories repo.CategoryRepository,
	cache ProductCache,
	clock auth.Clock,
	log *slog.Logger,
) *ProductUsecase {
	return &ProductUsecase{
		tx:         tx,
		products:   products,
		categories: categories,
		cache:      cache,
		clock:      clock,
		log:        log,
	}
}

type ProductOutput struct {
	ID                string              `json:"id"`
	SKU               string              `json:"sku"`
	Name              model.LocalizedText `json:"name"`
	Description       model.LocalizedText `json:"description"`
	Specifications    model.Attributes    `json:"specifications"`
	Price             string              `json:"price"`
	Stock             int64               `json:"stock"`
	MinStock          int64               `json:"min_stock"`
	Unit              model.LocalizedText `json:"unit"`
	CategoryID        string              `json:"category_id"`
	SupplierCompanyID string              `json:"supplier_company_id"`
	IsActive          bool                `json:"is_active"`
	IsLowStock        bool                `json:"is_low_stock"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

func toProductOutput(p model.Product) ProductOutput {
	return ProductOutput{
		ID:                p.ID,
		SKU:               p.SKU,
		Name:              p.Name,
		Description:       p.Description,
		Specifications:    p.Specifications,
		Price:             model.FormatMoney(p.Price),
		Stock:             p.Stock,
		MinStock:          p.MinStock,
		Unit:              p.Unit,
		CategoryID:        p.CategoryID,
		SupplierCompanyID: p.SupplierCompanyID,
		IsActive:          p.IsActive,
		IsLowStock:        p.IsLowStock(),
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

// GET /productsの入力DTO
type ListProductsInput struct {
	Page              int
	Limit             int
	Q                 string
	CategoryID        string
	SupplierCompanyID string
	MinPrice          *decimal.Decimal
	MaxPrice          *decimal.Decimal
	InStock           bool
	Sort              string
}

type ProductListOutput struct {
	Items []ProductOutput `json:"items"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
	Pages int             `json:"pages"`
}

// キャッシュが使えないときはDBから直接読む
func (u *ProductUsecase) cached(ctx context.Context, dest any, load func(context.Context) (any, error), parts ...string) error {
	if u.cache != nil {
		key, err := u.cache.BuildKey(ctx, parts...)
		if err == nil {
			err = u.cache.FetchJSON(ctx, key, dest, load)
			if err == nil {
				return nil
			}
			if _, ok := AsHTTPError(err); ok {
				return err
			}
		}
		u.log.Warn("product cache unavailable", slog.Any("err", err))
	}

	value, err := load(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return internalError(u.log, "encode product", err)
	}
	return json.Unmarshal(raw, dest)
}

func (u *ProductUsecase) ListProducts(ctx context.Context, in ListProductsInput) (ProductListOutput, error) {
	if in.Page < 1 {
		return ProductListOutput{}, badRequest("invalid page")
	}
	if in.Limit < 1 || in.Limit > 100 {
		return ProductListOutput{}, badRequest("invalid limit")
	}
	if len(in.Q) > 100 {
		return ProductListOutput{}, badRequest("q too long")
	}
	if in.MinPrice != nil && in.MinPrice.IsNegative() {
		return ProductListOutput{}, badRequest("min_price must be >= 0")
	}
	if in.MaxPrice != nil && in.MaxPrice.IsNegative() {
		return ProductListOutput{}, badRequest("max_price must be >= 0")
	}
	if in.MinPrice != nil && in.MaxPrice != nil && in.MinPrice.GreaterThan(*in.MaxPrice) {
		return ProductListOutput{}, badRequest("min_price must be <= max_price")
	}
	switch in.Sort {
	case "", "new", "price_asc", "price_desc", "stock_asc":
	default:
		return ProductListOutput{}, badRequest("invalid sort")
	}

	q := repo.ProductListQuery{
		Page:     in.Page,
		Limit:    in.Limit,
		Q:        strings.TrimSpace(in.Q),
		MinPrice: in.MinPrice,
		MaxPrice: in.MaxPrice,
		InStock:  in.InStock,
		Sort:     in.Sort,
	}
	if in.CategoryID != "" {
		q.CategoryID = &in.CategoryID
	}
	if in.SupplierCompanyID != "" {
		q.SupplierCompanyID = &in.SupplierCompanyID
	}

	var out ProductListOutput
	err := u.cached(ctx, &out, func(ctx context.Context) (any, error) {
		items, total, err := u.products.List(ctx, q)
		if err != nil {
			return nil, internalError(u.log, "list products", err)
		}
		outs := make([]ProductOutput, 0, len(items))
		for _, p := range items {
			outs = append(outs, toProductOutput(p))
		}
		return ProductListOutput{
			Items: outs,
			Total: total,
			Page:  in.Page,
			Limit: in.Limit,
			Pages: pageCount(total, in.Limit),
		}, nil
	}, "list", listCacheKey(in))
	if err != nil {
		return ProductListOutput{}, err
	}
	return out, nil
}

func listCacheKey(in ListProductsInput) string {
	v := url.Values{}
	v.Set("page", strconv.Itoa(in.Page))
	v.Set("limit", strconv.Itoa(in.Limit))
	v.Set("q", strings.ToLower(strings.TrimSpace(in.Q)))
	v.Set("category", in.CategoryID)
	v.Set("supplier", in.SupplierCompanyID)
	if in.MinPrice != nil {
		v.Set("min", in.MinPrice.String())
	}
	if in.MaxPrice != nil {
		v.Set("max", in.MaxPrice.String())
	}
	v.Set("in_stock", strconv.FormatBool(in.InStock))
	v.Set("sort", in.Sort)
	return v.Encode()
}

func (u *ProductUsecase) GetProduct(ctx context.Context, productID string) (ProductOutput, error) {
	if strings.TrimSpace(productID) == "" {
		return ProductOutput{}, badRequest("invalid product id")
	}

	var out ProductOutput
	err := u.cached(ctx, &out, func(ctx context.Context) (any, error) {
		p, err := u.products.FindByID(ctx, productID)
		if errors.Is(err, repo.ErrNotFound) || (err == nil && !p.IsActive) {
			return nil, notFound("Product not found")
		}
		if err != nil {
			return nil, internalError(u.log, "get product", err)
		}
		return toProductOutput(p), nil
	}, "product", productID)
	if err != nil {
		return ProductOutput{}, err
	}
	return out, nil
}

type CreateProductInput struct {
	SKU               string              `json:"sku" validate:"required,max=255"`
	Name              model.LocalizedText `json:"name" validate:"required"`
	Description       model.LocalizedText `json:"description"`
	Specifications    model.Attributes    `json:"specifications"`
	Price             decimal.Decimal     `json:"price"`
	Stock             int64               `json:"stock" validate:"gte=0"`
	MinStock          int64               `json:"min_stock" validate:"gte=0"`
	Unit              model.LocalizedText `json:"unit"`
	CategoryID        string              `json:"category_id" validate:"required"`
	SupplierCompanyID string              `json:"supplier_company_id" validate:"required"`
}

func (u *ProductUsecase) CreateProduct(ctx context.Context, userID string, in CreateProductInput) (ProductOutput, error) {
	sku := strings.TrimSpace(in.SKU)
	if sku == "" {
		return ProductOutput{}, badRequest("sku required")
	}
	if len(in.Name) == 0 {
		return ProductOutput{}, badRequest("name required")
	}
	if !in.Price.IsPositive() {
		return ProductOutput{}, badRequest("price must be greater than 0")
	}
	if in.Stock < 0 || in.MinStock < 0 {
		return ProductOutput{}, badRequest("stock must be >= 0")
	}

	if _, err := u.categories.FindByID(ctx, in.CategoryID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ProductOutput{}, badRequest("Category not found")
		}
		return ProductOutput{}, internalError(u.log, "find category", err)
	}

	var out ProductOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		actor, err := loadActor(ctx, r, userID)
		if err != nil {
			return err
		}
		if !actor.IsAdmin && !actor.MemberOf(in.SupplierCompanyID) {
			return forbidden("Not a member of the supplier company")
		}

		company, err := r.Companies().FindByID(ctx, in.SupplierCompanyID)
		if errors.Is(err, repo.ErrNotFound) {
			return badRequest("Supplier company not found")
		}
		if err != nil {
			return fmt.Errorf("find company: %w", err)
		}
		if !company.Type.CanSell() {
			return badRequest("Company cannot sell products")
		}

		now := u.clock.Now()
		p, err := r.Products().Create(ctx, model.Product{
			SKU:               sku,
			Name:              in.Name,
			Description:       in.Description,
			Specifications:    in.Specifications,
			Price:             in.Price,
			Stock:             in.Stock,
			MinStock:          in.MinStock,
			Unit:              in.Unit,
			CategoryID:        in.CategoryID,
			SupplierCompanyID: in.SupplierCompanyID,
			IsActive:          true,
			CreatedAt:         now,
			UpdatedAt:         now,
		})
		if errors.Is(err, repo.ErrDuplicate) {
			return conflict("SKU already exists")
		}
		if err != nil {
			return fmt.Errorf("create product: %w", err)
		}
		out = toProductOutput(p)
		return nil
	})
	if err != nil {
		return ProductOutput{}, txError(u.log, "create product", err)
	}

	invalidateCatalog(ctx, u.log, u.cache)
	return out, nil
}

// 更新できる項目だけ（在庫は UpdateStock）
type UpdateProductInput struct {
	Name           *model.LocalizedText `json:"name"`
	Description    *model.LocalizedText `json:"description"`
	Specifications *model.Attributes    `json:"specifications"`
	Price          *decimal.Decimal     `json:"price"`
	Unit           *model.LocalizedText `json:"unit"`
	CategoryID     *string              `json:"category_id"`
	IsActive       *bool                `json:"is_active"`
}

func (u *ProductUsecase) UpdateProduct(ctx context.Context, userID string, productID string, in UpdateProductInput) (ProductOutput, error) {
	if in.Price != nil && !in.Price.IsPositive() {
		return ProductOutput{}, badRequest("price must be greater than 0")
	}
	if in.Name != nil && len(*in.Name) == 0 {
		return ProductOutput{}, badRequest("name required")
	}
	if in.CategoryID != nil {
		if _, err := u.categories.FindByID(ctx, *in.CategoryID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ProductOutput{}, badRequest("Category not found")
			}
			return ProductOutput{}, internalError(u.log, "find category", err)
		}
	}

	var out ProductOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := u.findOwnedProduct(ctx, r, userID, productID)
		if err != nil {
			return err
		}

		if in.Name != nil {
			p.Name = *in.Name
		}
		if in.Description != nil {
			p.Description = *in.Description
		}
		if in.Specifications != nil {
			p.Specifications = *in.Specifications
		}
		if in.Price != nil {
			p.Price = *in.Price
		}
		if in.Unit != nil {
			p.Unit = *in.Unit
		}
		if in.CategoryID != nil {
			p.CategoryID = *in.CategoryID
		}
		if in.IsActive != nil {
			p.IsActive = *in.IsActive
		}
		p.UpdatedAt = u.clock.Now()

		if err := r.Products().Update(ctx, p); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return notFound("Product not found")
			}
			return fmt.Errorf("update product: %w", err)
		}
		out = toProductOutput(p)
		return nil
	})
	if err != nil {
		return ProductOutput{}, txError(u.log, "update product", err)
	}

	invalidateCatalog(ctx, u.log, u.cache)
	return out, nil
}

// 論理削除（is_active=false）
func (u *ProductUsecase) DeleteProduct(ctx context.Context, userID string, productID string) error {
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if _, err := u.findOwnedProduct(ctx, r, userID, productID); err != nil {
			return err
		}
		if err := r.Products().Deactivate(ctx, productID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return notFound("Product not found")
			}
			return fmt.Errorf("deactivate product: %w", err)
		}
		return nil
	})
	if err != nil {
		return txError(u.log, "delete product", err)
	}

	invalidateCatalog(ctx, u.log, u.cache)
	return nil
}

// 売り手会社のメンバーか管理者だけ
func (u *ProductUsecase) findOwnedProduct(ctx context.Context, r repo.TxRepos, userID, productID string) (model.Product, error) {
	actor, err := loadActor(ctx, r, userID)
	if err != nil {
		return model.Product{}, err
	}

	p, err := r.Products().FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Product{}, notFound("Product not found")
	}
	if err != nil {
		return model.Product{}, fmt.Errorf("find product: %w", err)
	}
	if !actor.IsAdmin && !actor.MemberOf(p.SupplierCompanyID) {
		return model.Product{}, forbidden("Not enough permissions")
	}
	return p, nil
}

// stock <= min_stock の商品
func (u *ProductUsecase) ListLowStock(ctx context.Context, userID string, supplierCompanyID string) ([]ProductOutput, error) {
	var outs []ProductOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		actor, err := loadActor(ctx, r, userID)
		if err != nil {
			return err
		}

		var filter *string
		switch {
		case supplierCompanyID != "":
			if !actor.IsAdmin && !actor.MemberOf(supplierCompanyID) {
				return forbidden("Not a member of the supplier company")
			}
			filter = &supplierCompanyID
		case !actor.IsAdmin:
			//管理者以外は自分の会社のどれかを指定させる
			if len(actor.CompanyIDs) != 1 {
				return badRequest("supplier_company_id is required")
			}
			filter = &actor.CompanyIDs[0]
		}

		items, err := r.Products().ListLowStock(ctx, filter)
		if err != nil {
			return fmt.Errorf("list low stock: %w", err)
		}
		outs = make([]ProductOutput, 0, len(items))
		for _, p := range items {
			outs = append(outs, toProductOutput(p))
		}
		return nil
	})
	if err != nil {
		return nil, txError(u.log, "list low stock", err)
	}
	return outs, nil
}

type UpdateStockInput struct {
	Stock    int64  `json:"stock" validate:"gte=0"`
	MinStock *int64 `json:"min_stock" validate:"omitempty,gte=0"`
	Reason   string `json:"reason" validate:"max=255"`
}

// 在庫の現在値を設定し、調整履歴と監査ログを残す
func (u *ProductUsecase) UpdateStock(ctx context.Context, userID string, productID string, in UpdateStockInput) (ProductOutput, error) {
	if in.Stock < 0 {
		return ProductOutput{}, badRequest("stock must be >= 0")
	}
	if in.MinStock != nil && *in.MinStock < 0 {
		return ProductOutput{}, badRequest("min_stock must be >= 0")
	}

	var out ProductOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := u.findOwnedProduct(ctx, r, userID, productID)
		if err != nil {
			return err
		}

		now := u.clock.Now()
		before := map[string]int64{"stock": p.Stock, "min_stock": p.MinStock}

		if err := r.Inventory().SetStock(ctx, productID, in.Stock, in.MinStock); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return notFound("Product not found")
			}
			return fmt.Errorf("set stock: %w", err)
		}

		if delta := in.Stock - p.Stock; delta != 0 {
			if err := r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
				ProductID:   productID,
				ActorUserID: userID,
				Delta:       delta,
				Reason:      model.InventoryReasonManual,
				CreatedAt:   now,
			}); err != nil {
				return fmt.Errorf("create adjustment: %w", err)
			}
		}

		p.Stock = in.Stock
		if in.MinStock != nil {
			p.MinStock = *in.MinStock
		}
		after := map[string]int64{"stock": p.Stock, "min_stock": p.MinStock}

		if err := writeAudit(ctx, r, userID, model.AuditActionUpdateStock, model.AuditResourceProduct, productID, before, after, now); err != nil {
			return err
		}

		out = toProductOutput(p)
		return nil
	})
	if err != nil {
		return ProductOutput{}, txError(u.log, "update stock", err)
	}

	u.log.Info("stock updated", slog.String("product_id", productID), slog.Int64("stock", in.Stock))
	invalidateCatalog(ctx, u.log, u.cache)
	return out, nil
}

func (u *ProductUsecase) ListCategories(ctx context.Context) ([]model.Category, error) {
	var out []model.Category
	err := u.cached(ctx, &out, func(ctx context.Context) (any, error) {
		items, err := u.categories.ListActive(ctx)
		if err != nil {
			return nil, internalError(u.log, "list categories", err)
		}
		return items, nil
	}, "categories")
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (u *ProductUsecase) GetCategoryBySlug(ctx context.Context, slug string) (model.Category, error) {
	c, err := u.categories.FindBySlug(ctx, strings.TrimSpace(slug))
	if errors.Is(err, repo.ErrNotFound) || (err == nil && !c.IsActive) {
		return model.Category{}, notFound("Category not found")
	}
	if err != nil {
		return model.Category{}, internalError(u.log, "get category", err)
	}
	return c, nil
}

type CreateCategoryInput struct {
	Name        model.LocalizedText `json:"name" validate:"required"`
	Slug        string              `json:"slug" validate:"required,max=255"`
	Description model.LocalizedText `json:"description"`
	ParentID    *string             `json:"parent_id"`
	SortOrder   int                 `json:"sort_order"`
}

func (u *ProductUsecase) CreateCategory(ctx context.Context, in CreateCategoryInput) (model.Category, error) {
	slug := strings.ToLower(strings.TrimSpace(in.Slug))
	if slug == "" || len(in.Name) == 0 {
		return model.Category{}, badRequest("name and slug required")
	}
	if in.ParentID != nil {
		if _, err := u.categories.FindByID(ctx, *in.ParentID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return model.Category{}, badRequest("Parent category not found")
			}
			return model.Category{}, internalError(u.log, "find parent category", err)
		}
	}

	now := u.clock.Now()
	c, err := u.categories.Create(ctx, model.Category{
		Name:        in.Name,
		Slug:        slug,
		Description: in.Description,
		ParentID:    in.ParentID,
		SortOrder:   in.SortOrder,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if errors.Is(err, repo.ErrDuplicate) {
		return model.Category{}, conflict("Category with this slug already exists")
	}
	if err != nil {
		return model.Category{}, internalError(u.log, "create category", err)
	}

	invalidateCatalog(ctx, u.log, u.cache)
	return c, nil
}
