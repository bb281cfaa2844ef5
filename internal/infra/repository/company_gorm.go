package repository

import (
	"context"

	"tigu/internal/domain/model"
	repo "tigu/internal/repository"

	"gorm.io/gorm"
)

type companyGormRepository struct {
	db *gorm.DB
}

func NewCompanyGormRepository(db *gorm.DB) repo.CompanyRepository {
	return &companyGormRepository{db: db}
}

func (r *companyGormRepository) Create(ctx context.Context, company *model.Company) error {
	ensureID(&company.ID)
	if err := r.db.WithContext(ctx).Create(company).Error; err != nil {
		if isDuplicate(err) {
			return repo.ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *companyGormRepository) FindByID(ctx context.Context, companyID string) (model.Company, error) {
	var c model.Company
	err := r.db.WithContext(ctx).Where("id = ?", companyID).First(&c).Error
	if isNotFound(err) {
		return model.Company{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Company{}, err
	}
	return c, nil
}

func (r *companyGormRepository) AddMember(ctx context.Context, member *model.CompanyUser) error {
	ensureID(&member.ID)
	if err := r.db.WithContext(ctx).Create(member).Error; err != nil {
		if isDuplicate(err) {
			return repo.ErrDuplicate
		}
		return err
	}
	return nil
}

// 有効な所属のみ
func (r *companyGormRepository) ListMemberships(ctx context.Context, userID string) ([]model.CompanyUser, error) {
	var members []model.CompanyUser
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("created_at asc").
		Find(&members).Error
	if err != nil {
		return []model.CompanyUser{}, err
	}
	return members, nil
}
