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

// MemoryReportsRepository 内存实现
type MemoryReportsRepository struct {
	mu      sync.RWMutex
	reports map[string]*domain.Report
	media   map[string]*domain.Media
}

func NewMemoryReportsRepository() *MemoryReportsRepository {
	return &MemoryReportsRepository{
		reports: make(map[string]*domain.Report),
		media:   make(map[string]*domain.Media),
	}
}

var _ ReportsRepository = (*MemoryReportsRepository)(nil)

func cloneReport(r *domain.Report) *domain.Report {
	c := *r
	return &c
}

func cloneMedia(m *domain.Media) *domain.Media {
	c := *m
	return &c
}

func (r *MemoryReportsRepository) CreateReport(ctx context.Context, rep *domain.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.reports[rep.ReportID]; ok {
		return fmt.Errorf("%w: reports_pkey", domain.ErrConstraintViolation)
	}
	r.reports[rep.ReportID] = cloneReport(rep)
	return nil
}

func (r *MemoryReportsRepository) GetReport(ctx context.Context, reportID string) (*domain.Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rep, ok := r.reports[reportID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneReport(rep), nil
}

func (r *MemoryReportsRepository) ListReports(ctx context.Context, filters ReportFilters, page, size int) ([]*domain.Report, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []*domain.Report
	for _, rep := range r.reports {
		if filters.Status != nil && rep.Status != *filters.Status {
			continue
		}
		if filters.UserID != nil && (!rep.UserID.Valid || rep.UserID.String != *filters.UserID) {
			continue
		}
		all = append(all, cloneReport(rep))
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	return paginate(all, page, size), len(all), nil
}

func (r *MemoryReportsRepository) UpdateReportStatus(ctx context.Context, reportID string, status domain.ReportStatus, severity *int32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rep, ok := r.reports[reportID]
	if !ok {
		return domain.ErrNotFound
	}
	rep.Status = status
	if severity != nil {
		rep.Severity = sql.NullInt32{Valid: true, Int32: *severity}
	}
	rep.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryReportsRepository) CreateMedia(ctx context.Context, m *domain.Media) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.reports[m.ReportID]; !ok {
		return fmt.Errorf("%w: media_report_id_fkey", domain.ErrConstraintViolation)
	}
	if _, ok := r.media[m.MediaID]; ok {
		return fmt.Errorf("%w: media_pkey", domain.ErrConstraintViolation)
	}
	r.media[m.MediaID] = cloneMedia(m)
	return nil
}

func (r *MemoryReportsRepository) GetMedia(ctx context.Context, mediaID string) (*domain.Media, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.media[mediaID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneMedia(m), nil
}

func (r *MemoryReportsRepository) ListMediaByReport(ctx context.Context, reportID string) ([]*domain.Media, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var items []*domain.Media
	for _, m := range r.media {
		if m.ReportID == reportID {
			items = append(items, cloneMedia(m))
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].UploadedAt.Before(items[j].UploadedAt)
	})
	return items, nil
}
