package repository

import (
	"context"
	"strings"

	"tigu/internal/domain/model"
	repo "tigu/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderGormRepository struct {
	db *gorm.DB
}

func NewOrderGormRepository(db *gorm.DB) *OrderGormRepository {
	return &OrderGormRepository{db: db}
}

// 注文ヘッダのみ保存（明細は OrderItemRepository）
func (r *OrderGormRepository) Create(ctx context.Context, order *model.Order) error {
	ensureID(&order.ID)
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(order).Error; err != nil {
		if isDuplicate(err) {
			return repo.ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *OrderGormRepository) FindByID(ctx context.Context, orderID string) (model.Order, error) {
	return r.find(r.db.WithContext(ctx), orderID)
}

// SELECT ... FOR UPDATE（sqliteでは無視される）
func (r *OrderGormRepository) FindByIDForUpdate(ctx context.Context, orderID string) (model.Order, error) {
	return r.find(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), orderID)
}

func (r *OrderGormRepository) find(db *gorm.DB, orderID string) (model.Order, error) {
	var o model.Order
	err := db.Where("id = ?", orderID).First(&o).Error
	if isNotFound(err) {
		return model.Order{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Order{}, err
	}
	return o, nil
}

func (r *OrderGormRepository) Update(ctx context.Context, order *model.Order) error {
	res := r.db.WithContext(ctx).Omit(clause.Associations).Save(order)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *OrderGormRepository) List(ctx context.Context, f repo.OrderListFilter) ([]model.Order, int64, error) {
	f.Page, f.Limit = normalizePage(f.Page, f.Limit, 100, 20)

	q := applyPartyScope(r.db.WithContext(ctx).Model(&model.Order{}), f.Scope)

	//status 絞り込み
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}
	if f.PaymentStatus != nil {
		q = q.Where("payment_status = ?", *f.PaymentStatus)
	}

	//注文番号の部分一致
	if n := strings.ToUpper(strings.TrimSpace(f.NumberLike)); n != "" {
		q = q.Where("order_number LIKE ?", "%"+n+"%")
	}

	//期間絞り込み
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at <= ?", *f.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return []model.Order{}, 0, err
	}

	var items []model.Order
	offset := (f.Page - 1) * f.Limit
	if err := q.Order("created_at desc").Order("id desc").Limit(f.Limit).Offset(offset).Find(&items).Error; err != nil {
		return []model.Order{}, 0, err
	}

	return items, total, nil
}

// 当事者で絞る（注文・見積共通）
func applyPartyScope(q *gorm.DB, s repo.PartyScope) *gorm.DB {
	if s.All {
		switch s.Side {
		case repo.SideBuyer:
			if len(s.CompanyIDs) > 0 {
				q = q.Where("buyer_company_id IN ?", s.CompanyIDs)
			}
		case repo.SideSupplier:
			if len(s.CompanyIDs) > 0 {
				q = q.Where("supplier_company_id IN ?", s.CompanyIDs)
			}
		}
		return q
	}

	companies := s.CompanyIDs
	if len(companies) == 0 {
		// IN () を避ける
		companies = []string{""}
	}

	switch s.Side {
	case repo.SideBuyer:
		return q.Where("(buyer_user_id = ? OR buyer_company_id IN ?)", s.UserID, companies)
	case repo.SideSupplier:
		return q.Where("supplier_company_id IN ?", companies)
	default:
		return q.Where("(buyer_user_id = ? OR buyer_company_id IN ? OR supplier_company_id IN ?)", s.UserID, companies, companies)
	}
}
