package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"smartinfra-data/internal/domain"
)

// MemoryDetectionsRepository 内存实现
type MemoryDetectionsRepository struct {
	mu         sync.RWMutex
	detections map[string]*domain.Detection
}

func NewMemoryDetectionsRepository() *MemoryDetectionsRepository {
	return &MemoryDetectionsRepository{detections: make(map[string]*domain.Detection)}
}

var _ DetectionsRepository = (*MemoryDetectionsRepository)(nil)

func cloneDetection(d *domain.Detection) *domain.Detection {
	c := *d
	return &c
}

func (r *MemoryDetectionsRepository) CreateDetection(ctx context.Context, d *domain.Detection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.detections[d.DetectionID]; ok {
		return fmt.Errorf("%w: detections_pkey", domain.ErrConstraintViolation)
	}
	r.detections[d.DetectionID] = cloneDetection(d)
	return nil
}

func (r *MemoryDetectionsRepository) GetDetection(ctx context.Context, detectionID string) (*domain.Detection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.detections[detectionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneDetection(d), nil
}

func (r *MemoryDetectionsRepository) ListDetectionsByMedia(ctx context.Context, mediaID string) ([]*domain.Detection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var items []*domain.Detection
	for _, d := range r.detections {
		if d.MediaID == mediaID {
			items = append(items, cloneDetection(d))
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}
