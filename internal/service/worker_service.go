package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"smartinfra-data/internal/domain"
	"smartinfra-data/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WorkerService 维修工服务接口
type WorkerService interface {
	RegisterWorker(ctx context.Context, req RegisterWorkerRequest) (*domain.Worker, error)
	// GetWorker 按 worker_id 查，查不到再按 employee_id 查
	GetWorker(ctx context.Context, idOrEmployeeID string) (*domain.Worker, error)
	ListWorkers(ctx context.Context, activeOnly bool, page, size int) (*ListWorkersResponse, error)
	SetWorkerActive(ctx context.Context, workerID string, active bool) error

	UpdateLocation(ctx context.Context, req UpdateLocationRequest) (*domain.WorkerLocation, error)
	ListLocations(ctx context.Context, workerID string, limit int) ([]*domain.WorkerLocation, error)

	// ListTasks 维修工名下未完结的工单
	ListTasks(ctx context.Context, workerID string, page, size int) (*ListTicketsResponse, error)
}

// RegisterWorkerRequest 维修工注册请求
type RegisterWorkerRequest struct {
	Name       string
	Email      string
	EmployeeID string
	Phone      *string
	UserID     *string // 关联的登录用户，可空
}

// ListWorkersResponse 维修工列表响应
type ListWorkersResponse struct {
	Items []*domain.Worker
	Total int
}

// UpdateLocationRequest 位置上报请求
type UpdateLocationRequest struct {
	WorkerID  string
	Latitude  float64
	Longitude float64
	Accuracy  *float64
}

type workerService struct {
	workersRepo repository.WorkersRepository
	ticketsRepo repository.TicketsRepository
	logger      *zap.Logger
}

// NewWorkerService 创建 WorkerService 实例
func NewWorkerService(
	workersRepo repository.WorkersRepository,
	ticketsRepo repository.TicketsRepository,
	logger *zap.Logger,
) WorkerService {
	return &workerService{
		workersRepo: workersRepo,
		ticketsRepo: ticketsRepo,
		logger:      logger,
	}
}

func (s *workerService) RegisterWorker(ctx context.Context, req RegisterWorkerRequest) (*domain.Worker, error) {
	if req.Name == "" || req.Email == "" || req.EmployeeID == "" {
		return nil, fmt.Errorf("%w: name, email and employee_id are required", domain.ErrInvalidInput)
	}

	now := time.Now()
	w := &domain.Worker{
		WorkerID:   uuid.NewString(),
		Name:       req.Name,
		Email:      req.Email,
		EmployeeID: req.EmployeeID,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if req.Phone != nil {
		w.Phone = sql.NullString{Valid: true, String: *req.Phone}
	}
	if req.UserID != nil {
		w.UserID = sql.NullString{Valid: true, String: *req.UserID}
	}

	if err := s.workersRepo.CreateWorker(ctx, w); err != nil {
		return nil, fmt.Errorf("register worker: %w", err)
	}

	s.logger.Info("worker registered",
		zap.String("worker_id", w.WorkerID),
		zap.String("employee_id", w.EmployeeID),
	)
	return w, nil
}

func (s *workerService) GetWorker(ctx context.Context, idOrEmployeeID string) (*domain.Worker, error) {
	w, err := s.workersRepo.GetWorker(ctx, idOrEmployeeID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	return s.workersRepo.GetWorkerByEmployeeID(ctx, idOrEmployeeID)
}

func (s *workerService) ListWorkers(ctx context.Context, activeOnly bool, page, size int) (*ListWorkersResponse, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 200 {
		size = 20
	}
	items, total, err := s.workersRepo.ListWorkers(ctx, activeOnly, page, size)
	if err != nil {
		return nil, fmt.Errorf("list workers: %w", err)
	}
	return &ListWorkersResponse{Items: items, Total: total}, nil
}

func (s *workerService) SetWorkerActive(ctx context.Context, workerID string, active bool) error {
	return s.workersRepo.SetWorkerActive(ctx, workerID, active)
}

func (s *workerService) UpdateLocation(ctx context.Context, req UpdateLocationRequest) (*domain.WorkerLocation, error) {
	if req.WorkerID == "" {
		return nil, fmt.Errorf("%w: worker_id is required", domain.ErrInvalidInput)
	}
	if req.Latitude < -90 || req.Latitude > 90 || req.Longitude < -180 || req.Longitude > 180 {
		return nil, fmt.Errorf("%w: coordinates out of range", domain.ErrInvalidInput)
	}
	loc, err := s.workersRepo.UpdateWorkerLocation(ctx, req.WorkerID, req.Latitude, req.Longitude, req.Accuracy, time.Now())
	if err != nil {
		return nil, fmt.Errorf("update worker location: %w", err)
	}
	return loc, nil
}

func (s *workerService) ListLocations(ctx context.Context, workerID string, limit int) ([]*domain.WorkerLocation, error) {
	if limit < 1 || limit > 500 {
		limit = 50
	}
	return s.workersRepo.ListWorkerLocations(ctx, workerID, limit)
}

func (s *workerService) ListTasks(ctx context.Context, workerID string, page, size int) (*ListTicketsResponse, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 200 {
		size = 20
	}
	items, total, err := s.ticketsRepo.ListTickets(ctx, repository.TicketFilters{
		Statuses: []domain.TicketStatus{
			domain.TicketAssigned,
			domain.TicketInProgress,
			domain.TicketAwaitingVerification,
		},
		AssignedWorkerID: &workerID,
	}, page, size)
	if err != nil {
		return nil, fmt.Errorf("list worker tasks: %w", err)
	}
	return &ListTicketsResponse{Items: items, Total: total}, nil
}
