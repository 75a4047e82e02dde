package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"smartinfra-data/internal/domain"
	"smartinfra-data/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WorkProofService 完工凭证服务接口。提交驱动 IN_PROGRESS→AWAITING_VERIFICATION，
// 审核驱动 →RESOLVED（通过）或 →IN_PROGRESS（返工）。
type WorkProofService interface {
	SubmitProof(ctx context.Context, req SubmitProofRequest) (*SubmitProofResponse, error)
	ReviewProof(ctx context.Context, req ReviewProofRequest) (*ReviewProofResponse, error)
	GetProof(ctx context.Context, proofID string) (*domain.WorkProof, error)
	ListProofsByTicket(ctx context.Context, ticketID string) ([]*domain.WorkProof, error)
}

// SubmitProofRequest 凭证提交请求
type SubmitProofRequest struct {
	TicketID  string
	WorkerID  string
	ImageURLs []string // 至少一张
	Notes     *string
	Latitude  *float64 // 拍摄位置，可空
	Longitude *float64
}

// SubmitProofResponse 凭证提交响应
type SubmitProofResponse struct {
	Proof  *domain.WorkProof
	Ticket *domain.Ticket // 提交后的工单（AWAITING_VERIFICATION）
}

// ReviewProofRequest 凭证审核请求
type ReviewProofRequest struct {
	ProofID     string
	Approved    bool
	ReviewedBy  string
	ReviewNotes *string
}

// ReviewProofResponse 凭证审核响应
type ReviewProofResponse struct {
	Proof  *domain.WorkProof
	Ticket *domain.Ticket // 审核后的工单（RESOLVED 或 IN_PROGRESS）
}

type workProofService struct {
	proofsRepo  repository.WorkProofsRepository
	ticketsRepo repository.TicketsRepository
	tickets     TicketService
	logger      *zap.Logger
}

// NewWorkProofService 创建 WorkProofService 实例
func NewWorkProofService(
	proofsRepo repository.WorkProofsRepository,
	ticketsRepo repository.TicketsRepository,
	tickets TicketService,
	logger *zap.Logger,
) WorkProofService {
	return &workProofService{
		proofsRepo:  proofsRepo,
		ticketsRepo: ticketsRepo,
		tickets:     tickets,
		logger:      logger,
	}
}

func (s *workProofService) SubmitProof(ctx context.Context, req SubmitProofRequest) (*SubmitProofResponse, error) {
	// 1. 参数验证
	if req.TicketID == "" || req.WorkerID == "" {
		return nil, fmt.Errorf("%w: ticket_id and worker_id are required", domain.ErrInvalidInput)
	}
	if len(req.ImageURLs) == 0 {
		return nil, fmt.Errorf("%w: at least one image is required", domain.ErrInvalidInput)
	}

	// 2. 工单必须在施工中且指派给本人
	t, err := s.ticketsRepo.GetTicket(ctx, req.TicketID)
	if err != nil {
		return nil, fmt.Errorf("load ticket: %w", err)
	}
	if t.Status != domain.TicketInProgress {
		return nil, fmt.Errorf("%w: ticket is %s, proof requires IN_PROGRESS", domain.ErrInvalidState, t.Status)
	}
	if !t.AssignedWorkerID.Valid || t.AssignedWorkerID.String != req.WorkerID {
		return nil, fmt.Errorf("%w: ticket is not assigned to worker %s", domain.ErrInvalidState, req.WorkerID)
	}

	// 3. 写入凭证（PENDING）
	proof := &domain.WorkProof{
		ProofID:     uuid.NewString(),
		TicketID:    req.TicketID,
		ImageURLs:   req.ImageURLs,
		SubmittedAt: time.Now(),
		Review:      domain.ReviewPending,
	}
	if req.Notes != nil {
		proof.Notes = sql.NullString{Valid: true, String: *req.Notes}
	}
	if req.Latitude != nil {
		proof.Latitude = sql.NullFloat64{Valid: true, Float64: *req.Latitude}
	}
	if req.Longitude != nil {
		proof.Longitude = sql.NullFloat64{Valid: true, Float64: *req.Longitude}
	}
	if err := s.proofsRepo.CreateWorkProof(ctx, proof); err != nil {
		return nil, fmt.Errorf("create work proof: %w", err)
	}

	// 4. 驱动状态迁移（锁内复核 IN_PROGRESS 与凭证数量）
	ticket, err := s.tickets.Transition(ctx, TransitionRequest{
		TicketID:  req.TicketID,
		To:        domain.TicketAwaitingVerification,
		ChangedBy: req.WorkerID,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("work proof submitted",
		zap.String("proof_id", proof.ProofID),
		zap.String("ticket_id", req.TicketID),
		zap.Int("images", len(req.ImageURLs)),
	)
	return &SubmitProofResponse{Proof: proof, Ticket: ticket}, nil
}

func (s *workProofService) ReviewProof(ctx context.Context, req ReviewProofRequest) (*ReviewProofResponse, error) {
	if req.ProofID == "" || req.ReviewedBy == "" {
		return nil, fmt.Errorf("%w: proof_id and reviewed_by are required", domain.ErrInvalidInput)
	}

	proof, err := s.proofsRepo.GetWorkProof(ctx, req.ProofID)
	if err != nil {
		return nil, fmt.Errorf("load work proof: %w", err)
	}
	if proof.Review.Decided() {
		return nil, domain.ErrAlreadyReviewed
	}

	t, err := s.ticketsRepo.GetTicket(ctx, proof.TicketID)
	if err != nil {
		return nil, fmt.Errorf("load ticket: %w", err)
	}
	if t.Status != domain.TicketAwaitingVerification {
		return nil, fmt.Errorf("%w: ticket is %s, review requires AWAITING_VERIFICATION", domain.ErrInvalidState, t.Status)
	}

	// 先落审核结论（条件更新幂等），再驱动状态迁移
	reviewed, err := s.proofsRepo.SetReview(ctx, req.ProofID, repository.ProofReview{
		Approved:    req.Approved,
		ReviewedBy:  req.ReviewedBy,
		ReviewedAt:  time.Now(),
		ReviewNotes: req.ReviewNotes,
	})
	if err != nil {
		return nil, err
	}

	to := domain.TicketInProgress
	if req.Approved {
		to = domain.TicketResolved
	}
	ticket, err := s.tickets.Transition(ctx, TransitionRequest{
		TicketID:  proof.TicketID,
		To:        to,
		ChangedBy: req.ReviewedBy,
		Reason:    req.ReviewNotes,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("work proof reviewed",
		zap.String("proof_id", req.ProofID),
		zap.Bool("approved", req.Approved),
		zap.String("ticket_status", string(ticket.Status)),
	)
	return &ReviewProofResponse{Proof: reviewed, Ticket: ticket}, nil
}

func (s *workProofService) GetProof(ctx context.Context, proofID string) (*domain.WorkProof, error) {
	return s.proofsRepo.GetWorkProof(ctx, proofID)
}

func (s *workProofService) ListProofsByTicket(ctx context.Context, ticketID string) ([]*domain.WorkProof, error) {
	return s.proofsRepo.ListWorkProofsByTicket(ctx, ticketID)
}
