package usecase

import (
	"context"
	"log/slog"
	"time"

	"tigu/internal/domain/model"
	repo "tigu/internal/repository"
)

type AdminUsecase struct {
	auditRepo repo.AuditLogRepository
	log       *slog.Logger
}

func NewAdminUsecase(auditRepo repo.AuditLogRepository, log *slog.Logger) *AdminUsecase {
	return &AdminUsecase{auditRepo: auditRepo, log: log}
}

type ListAuditLogsInput struct {
	ActorUserID  string
	Action       string
	ResourceType string
	ResourceID   string
	From         *time.Time
	To           *time.Time
	Limit        int
	Offset       int
}

// 監査ログ一覧（新しい順）
func (u *AdminUsecase) ListAuditLogs(ctx context.Context, in ListAuditLogsInput) ([]model.AuditLog, error) {
	if in.Limit < 0 || in.Limit > 200 {
		return nil, badRequest("invalid limit")
	}
	if in.Offset < 0 {
		return nil, badRequest("invalid offset")
	}
	if in.From != nil && in.To != nil && in.From.After(*in.To) {
		return nil, badRequest("from must be before to")
	}

	f := repo.AuditLogFilter{
		CreatedFrom: in.From,
		CreatedTo:   in.To,
		Limit:       in.Limit,
		Offset:      in.Offset,
	}
	if in.ActorUserID != "" {
		f.ActorUserID = &in.ActorUserID
	}
	if in.Action != "" {
		a := model.AuditAction(in.Action)
		f.Action = &a
	}
	if in.ResourceType != "" {
		rt := model.AuditResourceType(in.ResourceType)
		f.ResourceType = &rt
	}
	if in.ResourceID != "" {
		f.ResourceID = &in.ResourceID
	}

	logs, err := u.auditRepo.List(ctx, f)
	if err != nil {
		return nil, internalError(u.log, "list audit logs", err)
	}
	return logs, nil
}

// 1件の注文・見積・商品・ユーザーの履歴（古い順）
func (u *AdminUsecase) ResourceHistory(ctx context.Context, resourceType string, resourceID string) ([]model.AuditLog, error) {
	rt := model.AuditResourceType(resourceType)
	switch rt {
	case model.AuditResourceOrder, model.AuditResourceQuotation, model.AuditResourceProduct, model.AuditResourceUser:
	default:
		return nil, badRequest("invalid resource_type")
	}
	if resourceID == "" {
		return nil, badRequest("resource_id required")
	}

	logs, err := u.auditRepo.ListByResource(ctx, rt, resourceID)
	if err != nil {
		return nil, internalError(u.log, "list resource history", err)
	}
	return logs, nil
}
