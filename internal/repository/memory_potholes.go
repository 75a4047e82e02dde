package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"smartinfra-data/internal/domain"
)

// MemoryPotholesRepository 内存实现
type MemoryPotholesRepository struct {
	mu       sync.RWMutex
	potholes map[string]*domain.Pothole
	// roadInfo 按 pothole_id 索引（1:1）
	roadInfo map[string]*domain.RoadInfo
}

func NewMemoryPotholesRepository() *MemoryPotholesRepository {
	return &MemoryPotholesRepository{
		potholes: make(map[string]*domain.Pothole),
		roadInfo: make(map[string]*domain.RoadInfo),
	}
}

var _ PotholesRepository = (*MemoryPotholesRepository)(nil)

func clonePothole(p *domain.Pothole) *domain.Pothole {
	c := *p
	return &c
}

func cloneRoadInfo(ri *domain.RoadInfo) *domain.RoadInfo {
	c := *ri
	if ri.OSMData != nil {
		c.OSMData = append([]byte(nil), ri.OSMData...)
	}
	return &c
}

func (r *MemoryPotholesRepository) CreatePothole(ctx context.Context, p *domain.Pothole) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.potholes[p.PotholeID]; ok {
		return fmt.Errorf("%w: potholes_pkey", domain.ErrConstraintViolation)
	}
	for _, existing := range r.potholes {
		if existing.DetectionID == p.DetectionID {
			return fmt.Errorf("%w: potholes_detection_id_key", domain.ErrConstraintViolation)
		}
	}
	r.potholes[p.PotholeID] = clonePothole(p)
	return nil
}

func (r *MemoryPotholesRepository) GetPothole(ctx context.Context, potholeID string) (*domain.Pothole, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.potholes[potholeID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clonePothole(p), nil
}

func (r *MemoryPotholesRepository) GetPotholeByDetection(ctx context.Context, detectionID string) (*domain.Pothole, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.potholes {
		if p.DetectionID == detectionID {
			return clonePothole(p), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MemoryPotholesRepository) ListPotholes(ctx context.Context, filters PotholeFilters, page, size int) ([]*domain.Pothole, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []*domain.Pothole
	for _, p := range r.potholes {
		if filters.PriorityLevel != nil {
			level, ok := p.Level()
			if !ok || level != *filters.PriorityLevel {
				continue
			}
		}
		if filters.Scored != nil && p.Scored() != *filters.Scored {
			continue
		}
		all = append(all, clonePothole(p))
	}
	// 已评分按分数降序在前，未评分按创建时间降序在后
	sort.Slice(all, func(i, j int) bool {
		si, sj := all[i].Scored(), all[j].Scored()
		if si != sj {
			return si
		}
		if si {
			return all[i].PriorityScore.Float64 > all[j].PriorityScore.Float64
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	return paginate(all, page, size), len(all), nil
}

func (r *MemoryPotholesRepository) UpdatePriority(ctx context.Context, potholeID string, score float64, level domain.PriorityLevel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.potholes[potholeID]
	if !ok {
		return domain.ErrNotFound
	}
	p.PriorityScore = sql.NullFloat64{Valid: true, Float64: score}
	p.PriorityLevel = sql.NullString{Valid: true, String: string(level)}
	p.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryPotholesRepository) UpsertRoadInfo(ctx context.Context, ri *domain.RoadInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.potholes[ri.PotholeID]; !ok {
		return fmt.Errorf("%w: road_info_pothole_id_fkey", domain.ErrConstraintViolation)
	}
	if existing, ok := r.roadInfo[ri.PotholeID]; ok {
		// 幂等更新：保留首次的主键和创建时间
		updated := cloneRoadInfo(ri)
		updated.RoadInfoID = existing.RoadInfoID
		updated.CreatedAt = existing.CreatedAt
		updated.UpdatedAt = time.Now()
		r.roadInfo[ri.PotholeID] = updated
		return nil
	}
	r.roadInfo[ri.PotholeID] = cloneRoadInfo(ri)
	return nil
}

func (r *MemoryPotholesRepository) GetRoadInfoByPothole(ctx context.Context, potholeID string) (*domain.RoadInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ri, ok := r.roadInfo[potholeID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneRoadInfo(ri), nil
}
