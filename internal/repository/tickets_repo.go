package repository

import (
	"context"
	"encoding/json"
	"time"

	"smartinfra-data/internal/domain"
)

// TicketFilters 工单查询过滤器
type TicketFilters struct {
	Statuses         []domain.TicketStatus
	AssignedWorkerID *string
	PotholeID        *string
}

// TicketPatch 状态迁移时的字段更新（nil 字段不写）
type TicketPatch struct {
	Status           *domain.TicketStatus
	AssignedWorkerID *string
	AssignedAt       *time.Time
	StartedAt        *time.Time
	CompletedAt      *time.Time
	ResolvedAt       *time.Time
	RouteData        json.RawMessage
	EstimatedETA     *string
	AdminNotes       *string
}

// TicketTx 单工单锁作用域内的操作。实现方保证：Ticket() 返回的是加锁后
// 读到的当前行；所有写入与外层锁在同一事务中提交，整体原子。
type TicketTx interface {
	// Ticket 加锁时读到的工单快照
	Ticket() *domain.Ticket
	// UpdateTicket 写新状态/时间戳，失败不产生部分写入
	UpdateTicket(ctx context.Context, patch TicketPatch) error
	// AppendHistory 追加状态流转记录
	AppendHistory(ctx context.Context, h *domain.TicketStatusHistory) error
	// GetWorker 在锁作用域内读取 Worker（ASSIGNED 守卫需要与状态写入
	// 同一事务内判定 is_active）
	GetWorker(ctx context.Context, workerID string) (*domain.Worker, error)
	// LatestWorkProof 最近一次提交的凭证（无则 ErrNotFound）
	LatestWorkProof(ctx context.Context) (*domain.WorkProof, error)
	// CountWorkProofs 该工单的凭证数量
	CountWorkProofs(ctx context.Context) (int, error)
}

// TicketsRepository 工单Repository接口
// 状态流转必须经由 WithTicketLock；CreateTicket 原子地写入工单和首条
// 流转记录（from=null → DETECTED），保证审计链任何时刻与 status 一致。
type TicketsRepository interface {
	CreateTicket(ctx context.Context, t *domain.Ticket, first *domain.TicketStatusHistory) error
	GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error)
	GetTicketByNumber(ctx context.Context, ticketNumber string) (*domain.Ticket, error)
	GetTicketByPothole(ctx context.Context, potholeID string) (*domain.Ticket, error)
	ListTickets(ctx context.Context, filters TicketFilters, page, size int) ([]*domain.Ticket, int, error)
	ListStatusHistory(ctx context.Context, ticketID string) ([]*domain.TicketStatusHistory, error)
	// CountTicketsCreatedSince 生成当日工单序号用
	CountTicketsCreatedSince(ctx context.Context, since time.Time) (int, error)

	// WithTicketLock 以 ticketID 为粒度串行化执行 fn。fn 返回错误时整体
	// 回滚；提交后不可取消。竞争失败方得到 ErrConcurrentModification。
	WithTicketLock(ctx context.Context, ticketID string, fn func(tx TicketTx) error) error
}
