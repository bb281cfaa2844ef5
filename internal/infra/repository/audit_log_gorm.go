package repository

import (
	"context"

	"tigu/internal/domain/model"
	repo "tigu/internal/repository"

	"gorm.io/gorm"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 200
)

type auditLogGormRepository struct {
	db *gorm.DB
}

func NewAuditLogGormRepository(db *gorm.DB) repo.AuditLogRepository {
	return &auditLogGormRepository{db: db}
}

// 注文・見積と同じtxで書く（ステータスと履歴がずれない）
func (r *auditLogGormRepository) Create(ctx context.Context, entry model.AuditLog) error {
	ensureID(&entry.ID)
	return r.db.WithContext(ctx).Create(&entry).Error
}

func (r *auditLogGormRepository) List(ctx context.Context, f repo.AuditLogFilter) ([]model.AuditLog, error) {
	var logs []model.AuditLog
	err := r.db.WithContext(ctx).
		Scopes(auditMatching(f), auditPage(f.Limit, f.Offset)).
		Order("created_at DESC").Order("id DESC").
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}

// 1件の注文・見積などの変更履歴（古い順）
func (r *auditLogGormRepository) ListByResource(ctx context.Context, resourceType model.AuditResourceType, resourceID string) ([]model.AuditLog, error) {
	logs := []model.AuditLog{}
	err := r.db.WithContext(ctx).
		Where("resource_type = ? AND resource_id = ?", resourceType, resourceID).
		Order("created_at ASC").Order("id ASC").
		Limit(maxAuditLimit).
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}

func auditMatching(f repo.AuditLogFilter) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		if f.ActorUserID != nil {
			q = q.Where("actor_user_id = ?", *f.ActorUserID)
		}
		if f.Action != nil {
			q = q.Where("action = ?", *f.Action)
		}
		if f.ResourceType != nil {
			q = q.Where("resource_type = ?", *f.ResourceType)
		}
		if f.ResourceID != nil {
			q = q.Where("resource_id = ?", *f.ResourceID)
		}
		if f.CreatedFrom != nil {
			q = q.Where("created_at >= ?", *f.CreatedFrom)
		}
		if f.CreatedTo != nil {
			q = q.Where("created_at <= ?", *f.CreatedTo)
		}
		return q
	}
}

func auditPage(limit, offset int) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		if limit <= 0 || limit > maxAuditLimit {
			limit = defaultAuditLimit
		}
		if offset < 0 {
			offset = 0
		}
		return q.Limit(limit).Offset(offset)
	}
}
