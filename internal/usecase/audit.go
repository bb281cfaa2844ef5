package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tigu/internal/domain/model"
	repo "tigu/internal/repository"
)

// 監査ログを作成
// 「誰が」「何を」「どの対象に」「どう変えたか」を残す
func writeAudit(
	ctx context.Context,
	r repo.TxRepos,
	actorUserID string,
	action model.AuditAction,
	resource model.AuditResourceType,
	resourceID string,
	before any,
	after any,
	now time.Time,
) error {
	beforeJSON, err := json.Marshal(before)
	if err != nil {
		return fmt.Errorf("marshal audit before: %w", err)
	}
	afterJSON, err := json.Marshal(after)
	if err != nil {
		return fmt.Errorf("marshal audit after: %w", err)
	}

	if err := r.AuditLogs().Create(ctx, model.AuditLog{
		ActorUserID:  actorUserID,
		Action:       action,
		ResourceType: resource,
		ResourceID:   resourceID,
		BeforeJSON:   string(beforeJSON),
		AfterJSON:    string(afterJSON),
		CreatedAt:    now,
	}); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

type statusSnapshot struct {
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status,omitempty"`
}
