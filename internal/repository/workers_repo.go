package repository

import (
	"context"
	"time"

	"smartinfra-data/internal/domain"
)

// WorkersRepository 维修工Repository接口（Worker + WorkerLocation 同一聚合，
// worker_locations 仅追加）
type WorkersRepository interface {
	CreateWorker(ctx context.Context, w *domain.Worker) error
	GetWorker(ctx context.Context, workerID string) (*domain.Worker, error)
	GetWorkerByEmployeeID(ctx context.Context, employeeID string) (*domain.Worker, error)
	ListWorkers(ctx context.Context, activeOnly bool, page, size int) ([]*domain.Worker, int, error)
	SetWorkerActive(ctx context.Context, workerID string, active bool) error

	// UpdateWorkerLocation 更新当前位置并追加轨迹记录（单次逻辑操作）
	UpdateWorkerLocation(ctx context.Context, workerID string, lat, lon float64, accuracy *float64, at time.Time) (*domain.WorkerLocation, error)
	ListWorkerLocations(ctx context.Context, workerID string, limit int) ([]*domain.WorkerLocation, error)
}
