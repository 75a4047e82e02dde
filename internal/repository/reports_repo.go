package repository

import (
	"context"

	"smartinfra-data/internal/domain"
)

// ReportFilters 上报查询过滤器
type ReportFilters struct {
	Status *domain.ReportStatus
	UserID *string
}

// ReportsRepository 市民上报Repository接口（Report + Media 同一聚合）
type ReportsRepository interface {
	CreateReport(ctx context.Context, r *domain.Report) error
	GetReport(ctx context.Context, reportID string) (*domain.Report, error)
	ListReports(ctx context.Context, filters ReportFilters, page, size int) ([]*domain.Report, int, error)
	// UpdateReportStatus 检测核实/解决时更新状态（severity 可空）
	UpdateReportStatus(ctx context.Context, reportID string, status domain.ReportStatus, severity *int32) error

	CreateMedia(ctx context.Context, m *domain.Media) error
	GetMedia(ctx context.Context, mediaID string) (*domain.Media, error)
	ListMediaByReport(ctx context.Context, reportID string) ([]*domain.Media, error)
}
