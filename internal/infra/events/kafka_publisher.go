package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

var publishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "tigu",
	Subsystem: "events",
	Name:      "published_total",
	Help:      "Lifecycle events handed to the broker, by type and result.",
}, []string{"event_type", "result"})

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// 注文・見積のライフサイクルイベントをKafkaへ送る
type KafkaPublisher struct {
	w       messageWriter
	timeout time.Duration
	log     *slog.Logger
	now     func() time.Time
}

func NewKafkaPublisher(brokers []string, topic string, log *slog.Logger) *KafkaPublisher {
	return newKafkaPublisher(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}, log)
}

func newKafkaPublisher(w messageWriter, log *slog.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		w:       w,
		timeout: 5 * time.Second,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// keyは注文/見積ID（同じIDは同じパーティション）
func (p *KafkaPublisher) Publish(ctx context.Context, eventType string, key string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		publishedTotal.WithLabelValues(eventType, "error").Inc()
		return fmt.Errorf("marshal payload: %w", err)
	}

	env := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  eventVersion,
		OccurredAt:    p.now(),
		Producer:      producerName,
		CorrelationID: key,
		Payload:       raw,
	}
	value, err := json.Marshal(env)
	if err != nil {
		publishedTotal.WithLabelValues(eventType, "error").Inc()
		return fmt.Errorf("marshal envelope: %w", err)
	}

	//リクエストのキャンセルに引きずられないよう独立したタイムアウト
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	if err := p.w.WriteMessages(wctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  env.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
		},
	}); err != nil {
		publishedTotal.WithLabelValues(eventType, "error").Inc()
		return fmt.Errorf("write message: %w", err)
	}

	publishedTotal.WithLabelValues(eventType, "ok").Inc()
	p.log.Debug("event published", slog.String("event_type", eventType), slog.String("key", key))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}

// ブローカー未設定のとき
type NoopPublisher struct {
	log *slog.Logger
}

func NewNoopPublisher(log *slog.Logger) *NoopPublisher {
	return &NoopPublisher{log: log}
}

func (p *NoopPublisher) Publish(_ context.Context, eventType string, key string, _ any) error {
	publishedTotal.WithLabelValues(eventType, "skipped").Inc()
	p.log.Debug("event dropped (no broker)", slog.String("event_type", eventType), slog.String("key", key))
	return nil
}

func (p *NoopPublisher) Close() error { return nil }
