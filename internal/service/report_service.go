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

// ReportService 市民上报服务接口
type ReportService interface {
	CreateReport(ctx context.Context, req CreateReportRequest) (*ReportWithMedia, error)
	GetReport(ctx context.Context, reportID string) (*ReportWithMedia, error)
	ListReports(ctx context.Context, req ListReportsRequest) (*ListReportsResponse, error)
	// UpdateStatus 管理端核实/关闭上报
	UpdateStatus(ctx context.Context, reportID string, status domain.ReportStatus, severity *int32) error
	AddMedia(ctx context.Context, reportID string, media MediaInput) (*domain.Media, error)
}

// MediaInput 媒体上传参数
type MediaInput struct {
	MediaURL  string
	MediaType domain.MediaType
}

// CreateReportRequest 上报创建请求
type CreateReportRequest struct {
	Title       *string
	Description *string
	Latitude    float64
	Longitude   float64
	ImageURL    *string
	UserID      *string // 匿名上报时为空
	Media       []MediaInput
}

// ReportWithMedia 上报及其媒体
type ReportWithMedia struct {
	Report *domain.Report
	Media  []*domain.Media
}

// ListReportsRequest 上报列表请求
type ListReportsRequest struct {
	Status *domain.ReportStatus
	UserID *string
	Page   int
	Size   int
}

// ListReportsResponse 上报列表响应
type ListReportsResponse struct {
	Items []*domain.Report
	Total int
}

type reportService struct {
	reportsRepo repository.ReportsRepository
	logger      *zap.Logger
}

// NewReportService 创建 ReportService 实例
func NewReportService(reportsRepo repository.ReportsRepository, logger *zap.Logger) ReportService {
	return &reportService{reportsRepo: reportsRepo, logger: logger}
}

func (s *reportService) CreateReport(ctx context.Context, req CreateReportRequest) (*ReportWithMedia, error) {
	// 1. 参数验证
	if req.Latitude < -90 || req.Latitude > 90 || req.Longitude < -180 || req.Longitude > 180 {
		return nil, fmt.Errorf("%w: coordinates out of range", domain.ErrInvalidInput)
	}
	for _, m := range req.Media {
		if m.MediaURL == "" {
			return nil, fmt.Errorf("%w: media_url is required", domain.ErrInvalidInput)
		}
		if m.MediaType != domain.MediaImage && m.MediaType != domain.MediaVideo {
			return nil, fmt.Errorf("%w: unknown media_type %q", domain.ErrInvalidInput, m.MediaType)
		}
	}

	// 2. 写入上报
	now := time.Now()
	rep := &domain.Report{
		ReportID:  uuid.NewString(),
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Status:    domain.ReportPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.Title != nil {
		rep.Title = sql.NullString{Valid: true, String: *req.Title}
	}
	if req.Description != nil {
		rep.Description = sql.NullString{Valid: true, String: *req.Description}
	}
	if req.ImageURL != nil {
		rep.ImageURL = sql.NullString{Valid: true, String: *req.ImageURL}
	}
	if req.UserID != nil {
		rep.UserID = sql.NullString{Valid: true, String: *req.UserID}
	}
	if err := s.reportsRepo.CreateReport(ctx, rep); err != nil {
		return nil, fmt.Errorf("create report: %w", err)
	}

	// 3. 挂媒体
	var media []*domain.Media
	for _, in := range req.Media {
		m := &domain.Media{
			MediaID:    uuid.NewString(),
			ReportID:   rep.ReportID,
			MediaURL:   in.MediaURL,
			MediaType:  in.MediaType,
			UploadedAt: time.Now(),
		}
		if err := s.reportsRepo.CreateMedia(ctx, m); err != nil {
			return nil, fmt.Errorf("create media: %w", err)
		}
		media = append(media, m)
	}

	s.logger.Info("report created",
		zap.String("report_id", rep.ReportID),
		zap.Int("media", len(media)),
	)
	return &ReportWithMedia{Report: rep, Media: media}, nil
}

func (s *reportService) GetReport(ctx context.Context, reportID string) (*ReportWithMedia, error) {
	rep, err := s.reportsRepo.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	media, err := s.reportsRepo.ListMediaByReport(ctx, reportID)
	if err != nil {
		return nil, fmt.Errorf("list report media: %w", err)
	}
	return &ReportWithMedia{Report: rep, Media: media}, nil
}

func (s *reportService) ListReports(ctx context.Context, req ListReportsRequest) (*ListReportsResponse, error) {
	page, size := req.Page, req.Size
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 200 {
		size = 20
	}
	items, total, err := s.reportsRepo.ListReports(ctx, repository.ReportFilters{
		Status: req.Status,
		UserID: req.UserID,
	}, page, size)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return &ListReportsResponse{Items: items, Total: total}, nil
}

func (s *reportService) UpdateStatus(ctx context.Context, reportID string, status domain.ReportStatus, severity *int32) error {
	switch status {
	case domain.ReportPending, domain.ReportVerified, domain.ReportResolved:
	default:
		return fmt.Errorf("%w: unknown report status %q", domain.ErrInvalidInput, status)
	}
	return s.reportsRepo.UpdateReportStatus(ctx, reportID, status, severity)
}

func (s *reportService) AddMedia(ctx context.Context, reportID string, in MediaInput) (*domain.Media, error) {
	if in.MediaURL == "" {
		return nil, fmt.Errorf("%w: media_url is required", domain.ErrInvalidInput)
	}
	if in.MediaType != domain.MediaImage && in.MediaType != domain.MediaVideo {
		return nil, fmt.Errorf("%w: unknown media_type %q", domain.ErrInvalidInput, in.MediaType)
	}
	if _, err := s.reportsRepo.GetReport(ctx, reportID); err != nil {
		return nil, err
	}
	m := &domain.Media{
		MediaID:    uuid.NewString(),
		ReportID:   reportID,
		MediaURL:   in.MediaURL,
		MediaType:  in.MediaType,
		UploadedAt: time.Now(),
	}
	if err := s.reportsRepo.CreateMedia(ctx, m); err != nil {
		return nil, fmt.Errorf("create media: %w", err)
	}
	return m, nil
}
