package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"smartinfra-data/internal/domain"

	"github.com/google/uuid"
)

// MemoryWorkersRepository 内存实现
type MemoryWorkersRepository struct {
	mu      sync.RWMutex
	workers map[string]*domain.Worker
	// locations 按 worker_id 分组，追加序
	locations map[string][]*domain.WorkerLocation
}

func NewMemoryWorkersRepository() *MemoryWorkersRepository {
	return &MemoryWorkersRepository{
		workers:   make(map[string]*domain.Worker),
		locations: make(map[string][]*domain.WorkerLocation),
	}
}

var _ WorkersRepository = (*MemoryWorkersRepository)(nil)

func cloneWorker(w *domain.Worker) *domain.Worker {
	c := *w
	if w.LastLocationUpdate != nil {
		t := *w.LastLocationUpdate
		c.LastLocationUpdate = &t
	}
	return &c
}

func cloneWorkerLocation(l *domain.WorkerLocation) *domain.WorkerLocation {
	c := *l
	return &c
}

func (r *MemoryWorkersRepository) CreateWorker(ctx context.Context, w *domain.Worker) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.workers[w.WorkerID]; ok {
		return fmt.Errorf("%w: workers_pkey", domain.ErrConstraintViolation)
	}
	for _, existing := range r.workers {
		if existing.EmployeeID == w.EmployeeID {
			return fmt.Errorf("%w: workers_employee_id_key", domain.ErrConstraintViolation)
		}
		if existing.Email == w.Email {
			return fmt.Errorf("%w: workers_email_key", domain.ErrConstraintViolation)
		}
	}
	r.workers[w.WorkerID] = cloneWorker(w)
	return nil
}

func (r *MemoryWorkersRepository) GetWorker(ctx context.Context, workerID string) (*domain.Worker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.getWorkerLocked(workerID)
}

func (r *MemoryWorkersRepository) getWorkerLocked(workerID string) (*domain.Worker, error) {
	w, ok := r.workers[workerID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneWorker(w), nil
}

func (r *MemoryWorkersRepository) GetWorkerByEmployeeID(ctx context.Context, employeeID string) (*domain.Worker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, w := range r.workers {
		if w.EmployeeID == employeeID {
			return cloneWorker(w), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MemoryWorkersRepository) ListWorkers(ctx context.Context, activeOnly bool, page, size int) ([]*domain.Worker, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []*domain.Worker
	for _, w := range r.workers {
		if activeOnly && !w.IsActive {
			continue
		}
		all = append(all, cloneWorker(w))
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	return paginate(all, page, size), len(all), nil
}

func (r *MemoryWorkersRepository) SetWorkerActive(ctx context.Context, workerID string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workers[workerID]
	if !ok {
		return domain.ErrNotFound
	}
	w.IsActive = active
	w.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryWorkersRepository) UpdateWorkerLocation(ctx context.Context, workerID string, lat, lon float64, accuracy *float64, at time.Time) (*domain.WorkerLocation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workers[workerID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	w.CurrentLatitude = sql.NullFloat64{Valid: true, Float64: lat}
	w.CurrentLongitude = sql.NullFloat64{Valid: true, Float64: lon}
	t := at
	w.LastLocationUpdate = &t
	w.UpdatedAt = time.Now()

	loc := &domain.WorkerLocation{
		LocationID: uuid.New().String(),
		WorkerID:   workerID,
		Latitude:   lat,
		Longitude:  lon,
		RecordedAt: at,
	}
	if accuracy != nil {
		loc.Accuracy = sql.NullFloat64{Valid: true, Float64: *accuracy}
	}
	r.locations[workerID] = append(r.locations[workerID], cloneWorkerLocation(loc))
	return loc, nil
}

func (r *MemoryWorkersRepository) ListWorkerLocations(ctx context.Context, workerID string, limit int) ([]*domain.WorkerLocation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	locs := r.locations[workerID]
	var items []*domain.WorkerLocation
	// 倒序返回最近 limit 条
	for i := len(locs) - 1; i >= 0 && len(items) < limit; i-- {
		items = append(items, cloneWorkerLocation(locs[i]))
	}
	return items, nil
}
