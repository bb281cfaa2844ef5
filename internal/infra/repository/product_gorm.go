package repository

import (
	"context"
	"strings"

	"tigu/internal/domain/model"
	repo "tigu/internal/repository"

	"gorm.io/gorm"
)

type ProductGormRepository struct {
	db *gorm.DB
}

// DI
func NewProductGormRepository(db *gorm.DB) *ProductGormRepository {
	return &ProductGormRepository{db: db}
}

// 公開商品のみを、検索/カテゴリ/サプライヤー/価格帯/在庫/ソート/ページング付きで返す。
func (r *ProductGormRepository) List(ctx context.Context, q repo.ProductListQuery) ([]model.Product, int64, error) {
	var products []model.Product
	var total int64

	q.Page, q.Limit = normalizePage(q.Page, q.Limit, 100, 20)

	tx := r.db.WithContext(ctx).Model(&model.Product{})

	// 公開（is_active=true）のものだけ
	tx = tx.Where("is_active = ?", true)

	// q は sku と name(JSON) を対象
	if kw := strings.ToLower(strings.TrimSpace(q.Q)); kw != "" {
		like := "%" + kw + "%"
		tx = tx.Where("(LOWER(sku) LIKE ? OR LOWER(name) LIKE ?)", like, like)
	}

	if q.CategoryID != nil {
		tx = tx.Where("category_id = ?", *q.CategoryID)
	}
	if q.SupplierCompanyID != nil {
		tx = tx.Where("supplier_company_id = ?", *q.SupplierCompanyID)
	}

	//価格帯
	if q.MinPrice != nil {
		tx = tx.Where("price >= ?", *q.MinPrice)
	}
	if q.MaxPrice != nil {
		tx = tx.Where("price <= ?", *q.MaxPrice)
	}

	if q.InStock {
		tx = tx.Where("stock > 0")
	}

	//total（件数）
	if err := tx.Count(&total).Error; err != nil {
		return []model.Product{}, 0, err
	}

	//sort
	switch q.Sort {
	case "price_asc":
		tx = tx.Order("price asc").Order("id asc")
	case "price_desc":
		tx = tx.Order("price desc").Order("id desc")
	case "stock_asc":
		tx = tx.Order("stock asc").Order("id asc")
	default:
		tx = tx.Order("created_at desc").Order("id desc")
	}

	offset := (q.Page - 1) * q.Limit
	if err := tx.Offset(offset).Limit(q.Limit).Find(&products).Error; err != nil {
		return []model.Product{}, 0, err
	}

	return products, total, nil
}

// IDで商品を取得（非公開も返す。公開判定はusecase側）
func (r *ProductGormRepository) FindByID(ctx context.Context, id string) (model.Product, error) {
	var p model.Product
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if isNotFound(err) {
		return model.Product{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Product{}, err
	}
	return p, nil
}

func (r *ProductGormRepository) FindBySKU(ctx context.Context, sku string) (model.Product, error) {
	var p model.Product
	err := r.db.WithContext(ctx).Where("sku = ?", sku).First(&p).Error
	if isNotFound(err) {
		return model.Product{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Product{}, err
	}
	return p, nil
}

// 在庫が下限以下の公開商品
func (r *ProductGormRepository) ListLowStock(ctx context.Context, supplierCompanyID *string) ([]model.Product, error) {
	tx := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("stock <= min_stock")
	if supplierCompanyID != nil {
		tx = tx.Where("supplier_company_id = ?", *supplierCompanyID)
	}

	var products []model.Product
	if err := tx.Order("stock asc").Order("id asc").Find(&products).Error; err != nil {
		return []model.Product{}, err
	}
	return products, nil
}

// 商品の作成
func (r *ProductGormRepository) Create(ctx context.Context, p model.Product) (model.Product, error) {
	ensureID(&p.ID)
	if err := r.db.WithContext(ctx).Create(&p).Error; err != nil {
		if isDuplicate(err) {
			return model.Product{}, repo.ErrDuplicate
		}
		return model.Product{}, err
	}
	return p, nil
}

// 商品の更新（在庫は InventoryRepository 経由）
func (r *ProductGormRepository) Update(ctx context.Context, p model.Product) error {
	res := r.db.WithContext(ctx).Model(&model.Product{ID: p.ID}).
		Select("name", "description", "specifications", "price", "unit", "category_id", "is_active").
		Updates(&p)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 論理削除（is_active=false）
func (r *ProductGormRepository) Deactivate(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Model(&model.Product{}).
		Where("id = ?", id).
		Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}
