package repository

import (
	"context"

	"smartinfra-data/internal/domain"
)

// PotholeFilters 坑洞查询过滤器
type PotholeFilters struct {
	PriorityLevel *domain.PriorityLevel
	Scored        *bool // 仅已评分/未评分
}

// PotholesRepository 坑洞Repository接口（Pothole + RoadInfo 同一聚合，
// road_info.pothole_id 唯一约束保证 1:1）
type PotholesRepository interface {
	CreatePothole(ctx context.Context, p *domain.Pothole) error
	GetPothole(ctx context.Context, potholeID string) (*domain.Pothole, error)
	GetPotholeByDetection(ctx context.Context, detectionID string) (*domain.Pothole, error)
	ListPotholes(ctx context.Context, filters PotholeFilters, page, size int) ([]*domain.Pothole, int, error)
	// UpdatePriority 持久化评分结果（score + level 成对写入）
	UpdatePriority(ctx context.Context, potholeID string, score float64, level domain.PriorityLevel) error

	// UpsertRoadInfo 附加/更新道路信息（按 pothole_id 幂等）
	UpsertRoadInfo(ctx context.Context, ri *domain.RoadInfo) error
	GetRoadInfoByPothole(ctx context.Context, potholeID string) (*domain.RoadInfo, error)
}
