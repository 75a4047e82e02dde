package service

import (
	"context"
	"errors"
	"fmt"

	"smartinfra-data/internal/config"
	"smartinfra-data/internal/domain"
	"smartinfra-data/internal/repository"

	"go.uber.org/zap"
)

// PriorityService 坑洞优先级评分服务接口
type PriorityService interface {
	// ScorePothole 计算并持久化优先级（幂等：同样输入得同样结果）
	ScorePothole(ctx context.Context, potholeID string) (*ScoreResult, error)
	// Explain 返回评分因子拆解，不写库
	Explain(ctx context.Context, potholeID string) (*ScoreBreakdown, error)
}

// ScoreResult 评分结果
type ScoreResult struct {
	PotholeID string
	Score     float64
	Level     domain.PriorityLevel
}

// ScoreBreakdown 评分因子拆解（管理端展示用）
type ScoreBreakdown struct {
	PotholeID         string               `json:"pothole_id"`
	Confidence        float64              `json:"confidence"`
	TrafficImportance float64              `json:"traffic_importance"`
	PriorityFactor    float64              `json:"priority_factor"`
	SpeedWeight       float64              `json:"speed_weight"`
	Score             float64              `json:"score"`
	Level             domain.PriorityLevel `json:"level"`
	RoadName          string               `json:"road_name,omitempty"`
	RoadType          string               `json:"road_type,omitempty"`
	UsedRoadDefaults  bool                 `json:"used_road_defaults"`
}

type priorityService struct {
	potholesRepo   repository.PotholesRepository
	detectionsRepo repository.DetectionsRepository
	cfg            *config.PriorityConfig
	logger         *zap.Logger
}

// NewPriorityService 创建 PriorityService 实例
func NewPriorityService(
	potholesRepo repository.PotholesRepository,
	detectionsRepo repository.DetectionsRepository,
	cfg *config.PriorityConfig,
	logger *zap.Logger,
) PriorityService {
	return &priorityService{
		potholesRepo:   potholesRepo,
		detectionsRepo: detectionsRepo,
		cfg:            cfg,
		logger:         logger,
	}
}

// 道路信息缺失时的评分默认值
const (
	defaultTrafficImportance = 2.0
	defaultPriorityFactor    = 2.0
)

// speedWeight 限速权重：无限速 1.0，有限速 1 + v/100
func speedWeight(limit *int32) float64 {
	if limit == nil {
		return 1.0
	}
	return 1.0 + float64(*limit)/100.0
}

// bucket 分数落档：[0,Low) LOW、[Low,Medium) MEDIUM、[Medium,High) HIGH、其余 CRITICAL
func (s *priorityService) bucket(score float64) domain.PriorityLevel {
	switch {
	case score < s.cfg.BucketLow:
		return domain.PriorityLow
	case score < s.cfg.BucketMedium:
		return domain.PriorityMedium
	case score < s.cfg.BucketHigh:
		return domain.PriorityHigh
	default:
		return domain.PriorityCritical
	}
}

// compute 汇总评分输入。道路信息缺失按默认因子计，评分不因此失败。
func (s *priorityService) compute(ctx context.Context, potholeID string) (*ScoreBreakdown, error) {
	pothole, err := s.potholesRepo.GetPothole(ctx, potholeID)
	if err != nil {
		return nil, fmt.Errorf("load pothole: %w", err)
	}

	detection, err := s.detectionsRepo.GetDetection(ctx, pothole.DetectionID)
	if err != nil {
		return nil, fmt.Errorf("load detection: %w", err)
	}

	b := &ScoreBreakdown{
		PotholeID:         potholeID,
		Confidence:        detection.Confidence,
		TrafficImportance: defaultTrafficImportance,
		PriorityFactor:    defaultPriorityFactor,
		SpeedWeight:       1.0,
		UsedRoadDefaults:  true,
	}

	roadInfo, err := s.potholesRepo.GetRoadInfoByPothole(ctx, potholeID)
	switch {
	case err == nil:
		b.TrafficImportance = roadInfo.TrafficImportance
		b.PriorityFactor = roadInfo.PriorityFactor
		b.UsedRoadDefaults = false
		if roadInfo.SpeedLimit.Valid {
			v := roadInfo.SpeedLimit.Int32
			b.SpeedWeight = speedWeight(&v)
		}
		if roadInfo.RoadName.Valid {
			b.RoadName = roadInfo.RoadName.String
		}
		if roadInfo.RoadType.Valid {
			b.RoadType = roadInfo.RoadType.String
		}
	case errors.Is(err, domain.ErrNotFound):
		// 无道路信息，按默认因子评分
	default:
		return nil, fmt.Errorf("load road info: %w", err)
	}

	b.Score = b.Confidence * b.TrafficImportance * b.PriorityFactor * b.SpeedWeight
	b.Level = s.bucket(b.Score)
	return b, nil
}

func (s *priorityService) ScorePothole(ctx context.Context, potholeID string) (*ScoreResult, error) {
	b, err := s.compute(ctx, potholeID)
	if err != nil {
		return nil, err
	}

	if err := s.potholesRepo.UpdatePriority(ctx, potholeID, b.Score, b.Level); err != nil {
		return nil, fmt.Errorf("persist priority: %w", err)
	}

	s.logger.Info("pothole scored",
		zap.String("pothole_id", potholeID),
		zap.Float64("score", b.Score),
		zap.String("level", string(b.Level)),
	)
	return &ScoreResult{PotholeID: potholeID, Score: b.Score, Level: b.Level}, nil
}

func (s *priorityService) Explain(ctx context.Context, potholeID string) (*ScoreBreakdown, error) {
	return s.compute(ctx, potholeID)
}
