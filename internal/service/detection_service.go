package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"smartinfra-data/internal/config"
	"smartinfra-data/internal/domain"
	"smartinfra-data/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DetectionService 检测结果接入服务接口。ML 管线产出经 HTTP 或 MQTT 进来，
// 高置信度结果自动核实上报并晋升为坑洞。
type DetectionService interface {
	RecordDetection(ctx context.Context, req RecordDetectionRequest) (*RecordDetectionResponse, error)
	GetDetection(ctx context.Context, detectionID string) (*domain.Detection, error)
	ListDetectionsByMedia(ctx context.Context, mediaID string) ([]*domain.Detection, error)
	// PromoteDetection 手动晋升（已晋升过的返回 ErrAlreadyPromoted）
	PromoteDetection(ctx context.Context, detectionID string) (*domain.Pothole, error)
}

// RecordDetectionRequest 检测结果录入请求
type RecordDetectionRequest struct {
	MediaID       string
	DetectedClass string   // 默认 "pothole"
	Confidence    float64  // 0..1
	BBoxX         float64
	BBoxY         float64
	BBoxWidth     float64
	BBoxHeight    float64
	FrameTime     *float64 // 视频帧秒数，可空
}

// RecordDetectionResponse 检测结果录入响应
type RecordDetectionResponse struct {
	Detection    *domain.Detection
	Pothole      *domain.Pothole // 达到晋升阈值时自动创建，否则为 nil
	AutoVerified bool            // 是否自动核实了所属上报
}

type detectionService struct {
	detectionsRepo repository.DetectionsRepository
	reportsRepo    repository.ReportsRepository
	potholesRepo   repository.PotholesRepository
	cfg            *config.PriorityConfig
	logger         *zap.Logger
}

// NewDetectionService 创建 DetectionService 实例
func NewDetectionService(
	detectionsRepo repository.DetectionsRepository,
	reportsRepo repository.ReportsRepository,
	potholesRepo repository.PotholesRepository,
	cfg *config.PriorityConfig,
	logger *zap.Logger,
) DetectionService {
	return &detectionService{
		detectionsRepo: detectionsRepo,
		reportsRepo:    reportsRepo,
		potholesRepo:   potholesRepo,
		cfg:            cfg,
		logger:         logger,
	}
}

func (s *detectionService) RecordDetection(ctx context.Context, req RecordDetectionRequest) (*RecordDetectionResponse, error) {
	// 1. 参数验证
	if req.MediaID == "" {
		return nil, fmt.Errorf("%w: media_id is required", domain.ErrInvalidInput)
	}
	if req.Confidence < 0 || req.Confidence > 1 {
		return nil, fmt.Errorf("%w: confidence must be in [0,1]", domain.ErrInvalidInput)
	}
	if req.BBoxWidth < 0 || req.BBoxHeight < 0 {
		return nil, fmt.Errorf("%w: bbox dimensions must be non-negative", domain.ErrInvalidInput)
	}
	if req.DetectedClass == "" {
		req.DetectedClass = s.cfg.PromotionClass
	}

	// 2. 归属媒体必须存在
	media, err := s.reportsRepo.GetMedia(ctx, req.MediaID)
	if err != nil {
		return nil, fmt.Errorf("load media: %w", err)
	}

	// 3. 写入检测结果
	d := &domain.Detection{
		DetectionID:   uuid.NewString(),
		MediaID:       req.MediaID,
		DetectedClass: req.DetectedClass,
		Confidence:    req.Confidence,
		BBoxX:         req.BBoxX,
		BBoxY:         req.BBoxY,
		BBoxWidth:     req.BBoxWidth,
		BBoxHeight:    req.BBoxHeight,
		CreatedAt:     time.Now(),
	}
	if req.FrameTime != nil {
		d.FrameTime = sql.NullFloat64{Valid: true, Float64: *req.FrameTime}
	}
	if err := s.detectionsRepo.CreateDetection(ctx, d); err != nil {
		return nil, fmt.Errorf("create detection: %w", err)
	}

	resp := &RecordDetectionResponse{Detection: d}

	// 4. 高置信度自动核实所属上报（severity 3）
	if req.Confidence > s.cfg.AutoVerifyThreshold {
		severity := int32(3)
		if err := s.reportsRepo.UpdateReportStatus(ctx, media.ReportID, domain.ReportVerified, &severity); err != nil {
			s.logger.Warn("auto-verify report failed",
				zap.String("report_id", media.ReportID), zap.Error(err))
		} else {
			resp.AutoVerified = true
		}
	}

	// 5. 达到晋升阈值自动创建坑洞
	if req.DetectedClass == s.cfg.PromotionClass && req.Confidence >= s.cfg.PromotionThreshold {
		pothole, err := s.promote(ctx, d, media)
		if err != nil {
			// 已有同 detection 的坑洞时静默跳过，其余错误上抛
			if !errors.Is(err, domain.ErrAlreadyPromoted) {
				return nil, err
			}
		} else {
			resp.Pothole = pothole
		}
	}

	return resp, nil
}

// promote 由检测结果创建坑洞，坐标与图片取自所属上报
func (s *detectionService) promote(ctx context.Context, d *domain.Detection, media *domain.Media) (*domain.Pothole, error) {
	if _, err := s.potholesRepo.GetPotholeByDetection(ctx, d.DetectionID); err == nil {
		return nil, domain.ErrAlreadyPromoted
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("check promotion: %w", err)
	}

	report, err := s.reportsRepo.GetReport(ctx, media.ReportID)
	if err != nil {
		return nil, fmt.Errorf("load report: %w", err)
	}

	now := time.Now()
	pothole := &domain.Pothole{
		PotholeID:   uuid.NewString(),
		Latitude:    report.Latitude,
		Longitude:   report.Longitude,
		DetectionID: d.DetectionID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if report.ImageURL.Valid {
		pothole.ImageURL = report.ImageURL
	} else {
		pothole.ImageURL = sql.NullString{Valid: true, String: media.MediaURL}
	}

	if err := s.potholesRepo.CreatePothole(ctx, pothole); err != nil {
		// 并发晋升竞争：唯一约束兜底
		if errors.Is(err, domain.ErrConstraintViolation) {
			return nil, domain.ErrAlreadyPromoted
		}
		return nil, fmt.Errorf("create pothole: %w", err)
	}

	s.logger.Info("detection promoted to pothole",
		zap.String("detection_id", d.DetectionID),
		zap.String("pothole_id", pothole.PotholeID),
		zap.Float64("confidence", d.Confidence),
	)
	return pothole, nil
}

func (s *detectionService) GetDetection(ctx context.Context, detectionID string) (*domain.Detection, error) {
	return s.detectionsRepo.GetDetection(ctx, detectionID)
}

func (s *detectionService) ListDetectionsByMedia(ctx context.Context, mediaID string) ([]*domain.Detection, error) {
	return s.detectionsRepo.ListDetectionsByMedia(ctx, mediaID)
}

func (s *detectionService) PromoteDetection(ctx context.Context, detectionID string) (*domain.Pothole, error) {
	d, err := s.detectionsRepo.GetDetection(ctx, detectionID)
	if err != nil {
		return nil, fmt.Errorf("load detection: %w", err)
	}
	media, err := s.reportsRepo.GetMedia(ctx, d.MediaID)
	if err != nil {
		return nil, fmt.Errorf("load media: %w", err)
	}
	return s.promote(ctx, d, media)
}
