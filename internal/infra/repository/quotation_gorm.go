package repository

import (
	"context"

	"tigu/internal/domain/model"
	repo "tigu/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type QuotationGormRepository struct {
	db *gorm.DB
}

func NewQuotationGormRepository(db *gorm.DB) *QuotationGormRepository {
	return &QuotationGormRepository{db: db}
}

func (r *QuotationGormRepository) Create(ctx context.Context, q *model.Quotation) error {
	ensureID(&q.ID)
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(q).Error; err != nil {
		if isDuplicate(err) {
			return repo.ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *QuotationGormRepository) FindByID(ctx context.Context, quotationID string) (model.Quotation, error) {
	return r.find(r.db.WithContext(ctx), quotationID)
}

func (r *QuotationGormRepository) FindByIDForUpdate(ctx context.Context, quotationID string) (model.Quotation, error) {
	return r.find(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), quotationID)
}

func (r *QuotationGormRepository) find(db *gorm.DB, quotationID string) (model.Quotation, error) {
	var q model.Quotation
	err := db.Where("id = ?", quotationID).First(&q).Error
	if isNotFound(err) {
		return model.Quotation{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Quotation{}, err
	}
	return q, nil
}

func (r *QuotationGormRepository) Update(ctx context.Context, q *model.Quotation) error {
	res := r.db.WithContext(ctx).Omit(clause.Associations).Save(q)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *QuotationGormRepository) List(ctx context.Context, f repo.QuotationListFilter) ([]model.Quotation, int64, error) {
	f.Page, f.Limit = normalizePage(f.Page, f.Limit, 100, 20)

	q := applyPartyScope(r.db.WithContext(ctx).Model(&model.Quotation{}), f.Scope)
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return []model.Quotation{}, 0, err
	}

	var items []model.Quotation
	offset := (f.Page - 1) * f.Limit
	if err := q.Order("created_at desc").Order("id desc").Limit(f.Limit).Offset(offset).Find(&items).Error; err != nil {
		return []model.Quotation{}, 0, err
	}
	return items, total, nil
}
