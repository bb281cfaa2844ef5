package repository

import (
	"context"

	"tigu/internal/domain/model"
	repo "tigu/internal/repository"

	"gorm.io/gorm"
)

type CategoryGormRepository struct {
	db *gorm.DB
}

func NewCategoryGormRepository(db *gorm.DB) *CategoryGormRepository {
	return &CategoryGormRepository{db: db}
}

func (r *CategoryGormRepository) ListActive(ctx context.Context) ([]model.Category, error) {
	var cats []model.Category
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("sort_order asc").Order("slug asc").
		Find(&cats).Error
	if err != nil {
		return []model.Category{}, err
	}
	return cats, nil
}

func (r *CategoryGormRepository) FindBySlug(ctx context.Context, slug string) (model.Category, error) {
	var c model.Category
	err := r.db.WithContext(ctx).Where("slug = ? AND is_active = ?", slug, true).First(&c).Error
	if isNotFound(err) {
		return model.Category{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Category{}, err
	}
	return c, nil
}

func (r *CategoryGormRepository) FindByID(ctx context.Context, id string) (model.Category, error) {
	var c model.Category
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	if isNotFound(err) {
		return model.Category{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Category{}, err
	}
	return c, nil
}

func (r *CategoryGormRepository) Create(ctx context.Context, c model.Category) (model.Category, error) {
	ensureID(&c.ID)
	if err := r.db.WithContext(ctx).Create(&c).Error; err != nil {
		if isDuplicate(err) {
			return model.Category{}, repo.ErrDuplicate
		}
		return model.Category{}, err
	}
	return c, nil
}
