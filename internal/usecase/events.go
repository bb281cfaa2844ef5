package usecase

import (
	"context"
	"log/slog"
)

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
	EventQuotationSent      = "quotation.sent"
	EventQuotationAccepted  = "quotation.accepted"
	EventQuotationRejected  = "quotation.rejected"
	EventQuotationExpired   = "quotation.expired"
)

// commit後にライフサイクルイベントを流す
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, key string, payload any) error
}

type StatusChangedPayload struct {
	ID     string `json:"id"`
	Number string `json:"number"`
	From   string `json:"from"`
	To     string `json:"to"`
	Actor  string `json:"actor_user_id,omitempty"`
}

// 送信失敗は業務処理を失敗させない（DBはcommit済み）
func publish(ctx context.Context, log *slog.Logger, p EventPublisher, eventType, key string, payload any) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, eventType, key, payload); err != nil {
		log.Warn("publish event failed",
			slog.String("event_type", eventType),
			slog.String("key", key),
			slog.Any("err", err),
		)
	}
}
