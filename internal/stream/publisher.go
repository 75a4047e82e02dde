package stream

import (
	"context"
	"encoding/json"
	"time"

	"smartinfra-data/internal/domain"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// TicketEvent 工单状态变更事件（发布到 Redis Streams 供通知/看板消费）
type TicketEvent struct {
	TicketID     string  `json:"ticket_id"`
	TicketNumber string  `json:"ticket_number"`
	FromStatus   *string `json:"from_status"` // 建单时为 null
	ToStatus     string  `json:"to_status"`
	ChangedBy    string  `json:"changed_by,omitempty"`
	Reason       string  `json:"reason,omitempty"`
	OccurredAt   int64   `json:"occurred_at"` // unix 秒
}

// NewTicketEvent 从状态流转记录构造事件
func NewTicketEvent(ticketNumber string, h *domain.TicketStatusHistory) TicketEvent {
	ev := TicketEvent{
		TicketID:     h.TicketID,
		TicketNumber: ticketNumber,
		ToStatus:     string(h.ToStatus),
		OccurredAt:   h.CreatedAt.Unix(),
	}
	if h.FromStatus != nil {
		s := string(*h.FromStatus)
		ev.FromStatus = &s
	}
	if h.ChangedBy.Valid {
		ev.ChangedBy = h.ChangedBy.String
	}
	if h.Reason.Valid {
		ev.Reason = h.Reason.String
	}
	return ev
}

// Publisher 工单事件发布器接口
type Publisher interface {
	PublishTicketEvent(ctx context.Context, ev TicketEvent) error
}

// RedisPublisher 基于 Redis Streams（XADD）的实现
type RedisPublisher struct {
	client *redis.Client
	stream string
	logger *zap.Logger
}

func NewRedisPublisher(client *redis.Client, stream string, logger *zap.Logger) *RedisPublisher {
	return &RedisPublisher{client: client, stream: stream, logger: logger}
}

func (p *RedisPublisher) PublishTicketEvent(ctx context.Context, ev TicketEvent) error {
	jsonBytes, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"data":      string(jsonBytes),
			"timestamp": time.Now().Unix(),
		},
	}).Result()
	if err != nil {
		return err
	}

	p.logger.Debug("published ticket event",
		zap.String("stream", p.stream),
		zap.String("message_id", id),
		zap.String("ticket_id", ev.TicketID),
		zap.String("to_status", ev.ToStatus),
	)
	return nil
}

// NopPublisher 空实现（无 Redis 时使用）
type NopPublisher struct{}

func (NopPublisher) PublishTicketEvent(context.Context, TicketEvent) error { return nil }
