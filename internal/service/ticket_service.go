package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"smartinfra-data/internal/domain"
	"smartinfra-data/internal/repository"
	"smartinfra-data/internal/stream"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TicketService 工单生命周期服务接口。所有状态迁移走同一条路径：
// 锁内校验状态机 + 守卫条件，写状态、补时间戳、追加流转记录，提交后发布事件。
type TicketService interface {
	CreateTicket(ctx context.Context, req CreateTicketRequest) (*domain.Ticket, error)
	GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error)
	GetTicketByNumber(ctx context.Context, ticketNumber string) (*domain.Ticket, error)
	ListTickets(ctx context.Context, req ListTicketsRequest) (*ListTicketsResponse, error)
	ListStatusHistory(ctx context.Context, ticketID string) ([]*domain.TicketStatusHistory, error)

	// Transition 通用状态迁移入口
	Transition(ctx context.Context, req TransitionRequest) (*domain.Ticket, error)

	// 语义化入口（内部走 Transition）
	RankTicket(ctx context.Context, ticketID, changedBy string) (*domain.Ticket, error)
	AssignTicket(ctx context.Context, ticketID, workerID, changedBy string) (*domain.Ticket, error)
	StartJob(ctx context.Context, req StartJobRequest) (*domain.Ticket, error)
	RejectTicket(ctx context.Context, ticketID, reason, changedBy string) (*domain.Ticket, error)
}

// CreateTicketRequest 建单请求
type CreateTicketRequest struct {
	PotholeID string
	Notes     *string
	CreatedBy string // 写入首条流转记录的 changed_by，可空
}

// ListTicketsRequest 工单列表请求
type ListTicketsRequest struct {
	Statuses         []domain.TicketStatus
	AssignedWorkerID *string
	PotholeID        *string
	Page             int
	Size             int
}

// ListTicketsResponse 工单列表响应
type ListTicketsResponse struct {
	Items []*domain.Ticket
	Total int
}

// TransitionRequest 状态迁移请求
type TransitionRequest struct {
	TicketID  string
	To        domain.TicketStatus
	ChangedBy string
	Reason    *string
	// WorkerID 目标为 ASSIGNED 时必填
	WorkerID *string
	// RouteData / EstimatedETA 目标为 IN_PROGRESS（开工）时可选
	RouteData    json.RawMessage
	EstimatedETA *string
}

// StartJobRequest 开工请求（维修工 App 上报路线与预计到达）
type StartJobRequest struct {
	TicketID     string
	WorkerID     string
	RouteData    json.RawMessage
	EstimatedETA *string
}

type ticketService struct {
	ticketsRepo  repository.TicketsRepository
	potholesRepo repository.PotholesRepository
	publisher    stream.Publisher
	logger       *zap.Logger
}

// NewTicketService 创建 TicketService 实例
func NewTicketService(
	ticketsRepo repository.TicketsRepository,
	potholesRepo repository.PotholesRepository,
	publisher stream.Publisher,
	logger *zap.Logger,
) TicketService {
	return &ticketService{
		ticketsRepo:  ticketsRepo,
		potholesRepo: potholesRepo,
		publisher:    publisher,
		logger:       logger,
	}
}

// nextTicketNumber 生成 TICKET-YYYYMMDD-NNNN（NNNN 为当日序号）
func (s *ticketService) nextTicketNumber(ctx context.Context, now time.Time) (string, error) {
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	n, err := s.ticketsRepo.CountTicketsCreatedSince(ctx, startOfDay)
	if err != nil {
		return "", fmt.Errorf("count today's tickets: %w", err)
	}
	return fmt.Sprintf("TICKET-%s-%04d", now.Format("20060102"), n+1), nil
}

func (s *ticketService) CreateTicket(ctx context.Context, req CreateTicketRequest) (*domain.Ticket, error) {
	if req.PotholeID == "" {
		return nil, fmt.Errorf("%w: pothole_id is required", domain.ErrInvalidInput)
	}
	if _, err := s.potholesRepo.GetPothole(ctx, req.PotholeID); err != nil {
		return nil, fmt.Errorf("load pothole: %w", err)
	}

	// 工单号按当日计数生成，并发建单撞号时顺延重试
	var created *domain.Ticket
	var firstHist *domain.TicketStatusHistory
	for attempt := 0; attempt < 3; attempt++ {
		now := time.Now()
		number, err := s.nextTicketNumber(ctx, now)
		if err != nil {
			return nil, err
		}

		t := &domain.Ticket{
			TicketID:     uuid.NewString(),
			TicketNumber: number,
			Status:       domain.TicketDetected,
			PotholeID:    req.PotholeID,
			Version:      1,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if req.Notes != nil {
			t.Notes = sql.NullString{Valid: true, String: *req.Notes}
		}
		first := &domain.TicketStatusHistory{
			HistoryID: uuid.NewString(),
			TicketID:  t.TicketID,
			ToStatus:  domain.TicketDetected,
			CreatedAt: now,
		}
		if req.CreatedBy != "" {
			first.ChangedBy = sql.NullString{Valid: true, String: req.CreatedBy}
		}

		err = s.ticketsRepo.CreateTicket(ctx, t, first)
		if err == nil {
			created, firstHist = t, first
			break
		}
		if errors.Is(err, domain.ErrConstraintViolation) && attempt < 2 {
			continue
		}
		return nil, fmt.Errorf("create ticket: %w", err)
	}

	s.logger.Info("ticket created",
		zap.String("ticket_id", created.TicketID),
		zap.String("ticket_number", created.TicketNumber),
		zap.String("pothole_id", created.PotholeID),
	)
	s.publish(ctx, created.TicketNumber, firstHist)
	return created, nil
}

func (s *ticketService) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	return s.ticketsRepo.GetTicket(ctx, ticketID)
}

func (s *ticketService) GetTicketByNumber(ctx context.Context, ticketNumber string) (*domain.Ticket, error) {
	return s.ticketsRepo.GetTicketByNumber(ctx, ticketNumber)
}

func (s *ticketService) ListTickets(ctx context.Context, req ListTicketsRequest) (*ListTicketsResponse, error) {
	page, size := req.Page, req.Size
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 200 {
		size = 20
	}
	items, total, err := s.ticketsRepo.ListTickets(ctx, repository.TicketFilters{
		Statuses:         req.Statuses,
		AssignedWorkerID: req.AssignedWorkerID,
		PotholeID:        req.PotholeID,
	}, page, size)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	return &ListTicketsResponse{Items: items, Total: total}, nil
}

func (s *ticketService) ListStatusHistory(ctx context.Context, ticketID string) ([]*domain.TicketStatusHistory, error) {
	return s.ticketsRepo.ListStatusHistory(ctx, ticketID)
}

// Transition 状态迁移。锁内依次：状态机合法性、目标态守卫、写状态与
// 时间戳、追加流转记录；整体原子，提交后发布事件。
func (s *ticketService) Transition(ctx context.Context, req TransitionRequest) (*domain.Ticket, error) {
	if !req.To.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, req.To)
	}
	if req.To == domain.TicketRejected && (req.Reason == nil || *req.Reason == "") {
		return nil, fmt.Errorf("%w: reason is required to reject a ticket", domain.ErrInvalidInput)
	}

	var result *domain.Ticket
	var hist *domain.TicketStatusHistory
	var ticketNumber string

	err := s.ticketsRepo.WithTicketLock(ctx, req.TicketID, func(tx repository.TicketTx) error {
		t := tx.Ticket()
		ticketNumber = t.TicketNumber
		from := t.Status

		if !domain.CanTransition(from, req.To) {
			return &domain.InvalidTransitionError{From: from, To: req.To}
		}

		now := time.Now()
		patch := repository.TicketPatch{Status: &req.To}

		switch req.To {
		case domain.TicketRanked:
			// 必须先有优先级评分
			pothole, err := s.potholesRepo.GetPothole(ctx, t.PotholeID)
			if err != nil {
				return fmt.Errorf("load pothole: %w", err)
			}
			if !pothole.Scored() {
				return fmt.Errorf("%w: pothole has no priority score", domain.ErrInvalidState)
			}

		case domain.TicketAssigned:
			if req.WorkerID == nil || *req.WorkerID == "" {
				return fmt.Errorf("%w: worker_id is required to assign", domain.ErrInvalidInput)
			}
			worker, err := tx.GetWorker(ctx, *req.WorkerID)
			if err != nil {
				return fmt.Errorf("load worker: %w", err)
			}
			if !worker.IsActive {
				return fmt.Errorf("%w: worker %s is inactive", domain.ErrInvalidState, worker.WorkerID)
			}
			patch.AssignedWorkerID = req.WorkerID
			patch.AssignedAt = &now

		case domain.TicketInProgress:
			if from == domain.TicketAssigned {
				patch.StartedAt = &now
				patch.RouteData = req.RouteData
				patch.EstimatedETA = req.EstimatedETA
			}
			// AWAITING_VERIFICATION 返工回 IN_PROGRESS：守卫在审核流程里做，
			// 这里只要求最近凭证已被拒绝
			if from == domain.TicketAwaitingVerification {
				proof, err := tx.LatestWorkProof(ctx)
				if err != nil {
					return fmt.Errorf("%w: no work proof on ticket", domain.ErrInvalidState)
				}
				if proof.Review != domain.ReviewRejected {
					return fmt.Errorf("%w: latest work proof is not rejected", domain.ErrInvalidState)
				}
			}

		case domain.TicketAwaitingVerification:
			n, err := tx.CountWorkProofs(ctx)
			if err != nil {
				return fmt.Errorf("count work proofs: %w", err)
			}
			if n == 0 {
				return fmt.Errorf("%w: at least one work proof is required", domain.ErrInvalidState)
			}
			patch.CompletedAt = &now

		case domain.TicketResolved:
			proof, err := tx.LatestWorkProof(ctx)
			if err != nil {
				return fmt.Errorf("%w: no work proof on ticket", domain.ErrInvalidState)
			}
			if proof.Review != domain.ReviewApproved {
				return fmt.Errorf("%w: latest work proof is not approved", domain.ErrInvalidState)
			}
			patch.ResolvedAt = &now

		case domain.TicketRejected:
			// 状态机层已保证 from 非终态；reason 已在入口校验
		}

		if err := tx.UpdateTicket(ctx, patch); err != nil {
			return err
		}

		h := &domain.TicketStatusHistory{
			HistoryID:  uuid.NewString(),
			TicketID:   t.TicketID,
			FromStatus: &from,
			ToStatus:   req.To,
			CreatedAt:  now,
		}
		if req.ChangedBy != "" {
			h.ChangedBy = sql.NullString{Valid: true, String: req.ChangedBy}
		}
		if req.Reason != nil && *req.Reason != "" {
			h.Reason = sql.NullString{Valid: true, String: *req.Reason}
		}
		if err := tx.AppendHistory(ctx, h); err != nil {
			return err
		}
		hist = h
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, ticketNumber, hist)

	result, err = s.ticketsRepo.GetTicket(ctx, req.TicketID)
	if err != nil {
		return nil, fmt.Errorf("reload ticket: %w", err)
	}
	s.logger.Info("ticket transitioned",
		zap.String("ticket_id", req.TicketID),
		zap.String("from", string(*hist.FromStatus)),
		zap.String("to", string(req.To)),
	)
	return result, nil
}

func (s *ticketService) RankTicket(ctx context.Context, ticketID, changedBy string) (*domain.Ticket, error) {
	return s.Transition(ctx, TransitionRequest{
		TicketID: ticketID, To: domain.TicketRanked, ChangedBy: changedBy,
	})
}

func (s *ticketService) AssignTicket(ctx context.Context, ticketID, workerID, changedBy string) (*domain.Ticket, error) {
	return s.Transition(ctx, TransitionRequest{
		TicketID: ticketID, To: domain.TicketAssigned, ChangedBy: changedBy, WorkerID: &workerID,
	})
}

func (s *ticketService) StartJob(ctx context.Context, req StartJobRequest) (*domain.Ticket, error) {
	// 只允许被指派的维修工开工
	t, err := s.ticketsRepo.GetTicket(ctx, req.TicketID)
	if err != nil {
		return nil, err
	}
	if !t.AssignedWorkerID.Valid || t.AssignedWorkerID.String != req.WorkerID {
		return nil, fmt.Errorf("%w: ticket is not assigned to worker %s", domain.ErrInvalidState, req.WorkerID)
	}
	return s.Transition(ctx, TransitionRequest{
		TicketID:     req.TicketID,
		To:           domain.TicketInProgress,
		ChangedBy:    req.WorkerID,
		RouteData:    req.RouteData,
		EstimatedETA: req.EstimatedETA,
	})
}

func (s *ticketService) RejectTicket(ctx context.Context, ticketID, reason, changedBy string) (*domain.Ticket, error) {
	return s.Transition(ctx, TransitionRequest{
		TicketID: ticketID, To: domain.TicketRejected, ChangedBy: changedBy, Reason: &reason,
	})
}

// publish 事件发布失败只记日志，不影响已提交的状态迁移
func (s *ticketService) publish(ctx context.Context, ticketNumber string, h *domain.TicketStatusHistory) {
	if h == nil {
		return
	}
	if err := s.publisher.PublishTicketEvent(ctx, stream.NewTicketEvent(ticketNumber, h)); err != nil {
		s.logger.Warn("publish ticket event failed",
			zap.String("ticket_id", h.TicketID), zap.Error(err))
	}
}
