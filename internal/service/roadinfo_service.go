package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"smartinfra-data/internal/config"
	"smartinfra-data/internal/domain"
	"smartinfra-data/internal/repository"
	"smartinfra-data/internal/store"

	"database/sql"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RoadInfoService 道路上下文服务接口。从 Overpass（OpenStreetMap）查询坑洞
// 所在道路，推导交通重要性与优先级因子，写入后触发重新评分。
type RoadInfoService interface {
	// AttachRoadInfo 查询并附加/更新道路信息（按 pothole_id 幂等）
	AttachRoadInfo(ctx context.Context, potholeID string) (*domain.RoadInfo, error)
	// GetRoadInfo 读取已附加的道路信息
	GetRoadInfo(ctx context.Context, potholeID string) (*domain.RoadInfo, error)
}

type roadInfoService struct {
	potholesRepo repository.PotholesRepository
	priority     PriorityService
	cache        store.KV
	client       *resty.Client
	cfg          *config.OverpassConfig
	logger       *zap.Logger
}

// NewRoadInfoService 创建 RoadInfoService 实例
func NewRoadInfoService(
	potholesRepo repository.PotholesRepository,
	priority PriorityService,
	cache store.KV,
	cfg *config.OverpassConfig,
	logger *zap.Logger,
) RoadInfoService {
	client := resty.New().
		SetTimeout(time.Duration(cfg.TimeoutSec) * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)

	return &roadInfoService{
		potholesRepo: potholesRepo,
		priority:     priority,
		cache:        cache,
		client:       client,
		cfg:          cfg,
		logger:       logger,
	}
}

// overpassResponse Overpass interpreter 返回结构（只取用到的字段）
type overpassResponse struct {
	Elements []overpassWay `json:"elements"`
}

type overpassWay struct {
	Type     string            `json:"type"`
	ID       int64             `json:"id"`
	Tags     map[string]string `json:"tags"`
	Geometry []overpassPoint   `json:"geometry"`
}

type overpassPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// trafficImportanceByHighway OSM highway 分类 → 交通重要性
var trafficImportanceByHighway = map[string]float64{
	"motorway":      5.0,
	"trunk":         4.5,
	"primary":       4.0,
	"secondary":     3.5,
	"tertiary":      3.0,
	"residential":   2.0,
	"unclassified":  1.5,
	"service":       1.0,
	"track":         0.8,
	"path":          0.5,
	"motorway_link": 4.5,
	"trunk_link":    4.0,
	"primary_link":  3.5,
}

const defaultImportance = 2.0

func importanceFor(highway string) float64 {
	if v, ok := trafficImportanceByHighway[highway]; ok {
		return v
	}
	return defaultImportance
}

// priorityFactorFor 重要性叠加限速与道路等级系数
func priorityFactorFor(importance float64, highway string, speedLimit *int32) float64 {
	factor := importance
	if speedLimit != nil {
		switch {
		case *speedLimit >= 80:
			factor *= 1.3
		case *speedLimit >= 60:
			factor *= 1.2
		case *speedLimit >= 40:
			factor *= 1.1
		}
	}
	switch highway {
	case "motorway", "trunk", "motorway_link", "trunk_link":
		factor *= 1.25
	case "primary", "secondary", "primary_link":
		factor *= 1.15
	}
	return factor
}

// parseMaxspeed OSM maxspeed 标签解析（"50"、"50 km/h"；mph 等带单位的跳过换算，
// 仅取数字部分不可靠时返回 nil）
func parseMaxspeed(raw string) *int32 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	fields := strings.Fields(raw)
	n, err := strconv.Atoi(fields[0])
	if err != nil || n <= 0 {
		return nil
	}
	v := int32(n)
	return &v
}

// haversineMeters 两点球面距离（米）
func haversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadius = 6371000.0
	rad := math.Pi / 180.0
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadius * math.Asin(math.Sqrt(a))
}

// cacheKey 按 4 位小数取整坐标（约 11 米格），同格复用同一条道路查询
func (s *roadInfoService) cacheKey(lat, lon float64) string {
	return fmt.Sprintf("roadinfo:%.4f:%.4f", lat, lon)
}

// queryOverpass 查询坑洞周边道路，带 Redis 缓存
func (s *roadInfoService) queryOverpass(ctx context.Context, lat, lon float64) (*overpassResponse, error) {
	key := s.cacheKey(lat, lon)
	if cached, err := s.cache.Get(ctx, key); err == nil {
		var resp overpassResponse
		if err := json.Unmarshal([]byte(cached), &resp); err == nil {
			return &resp, nil
		}
	}

	query := fmt.Sprintf(
		`[out:json];way(around:%d,%f,%f)["highway"];out geom;`,
		s.cfg.RadiusMeters, lat, lon,
	)

	httpResp, err := s.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{"data": query}).
		Post(s.cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("overpass request: %w", err)
	}
	if httpResp.StatusCode() != 200 {
		return nil, fmt.Errorf("overpass status %d", httpResp.StatusCode())
	}

	var resp overpassResponse
	if err := json.Unmarshal(httpResp.Body(), &resp); err != nil {
		return nil, fmt.Errorf("overpass decode: %w", err)
	}

	if err := s.cache.Set(ctx, key, string(httpResp.Body()),
		time.Duration(s.cfg.CacheTTLSec)*time.Second); err != nil {
		s.logger.Warn("road info cache write failed", zap.Error(err))
	}
	return &resp, nil
}

// closestWay 按几何点最小球面距离选最近道路
func closestWay(resp *overpassResponse, lat, lon float64) *overpassWay {
	var best *overpassWay
	bestDist := math.MaxFloat64
	for i := range resp.Elements {
		way := &resp.Elements[i]
		if way.Type != "way" {
			continue
		}
		for _, p := range way.Geometry {
			if d := haversineMeters(lat, lon, p.Lat, p.Lon); d < bestDist {
				bestDist = d
				best = way
			}
		}
	}
	return best
}

func (s *roadInfoService) AttachRoadInfo(ctx context.Context, potholeID string) (*domain.RoadInfo, error) {
	pothole, err := s.potholesRepo.GetPothole(ctx, potholeID)
	if err != nil {
		return nil, fmt.Errorf("load pothole: %w", err)
	}

	now := time.Now()
	ri := &domain.RoadInfo{
		RoadInfoID:        uuid.NewString(),
		PotholeID:         potholeID,
		TrafficImportance: defaultImportance,
		PriorityFactor:    defaultImportance,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	// Overpass 失败不阻断：落默认因子，后续可重试覆盖
	resp, err := s.queryOverpass(ctx, pothole.Latitude, pothole.Longitude)
	if err != nil {
		s.logger.Warn("overpass query failed, using road defaults",
			zap.String("pothole_id", potholeID), zap.Error(err))
	} else if way := closestWay(resp, pothole.Latitude, pothole.Longitude); way != nil {
		highway := way.Tags["highway"]
		speedLimit := parseMaxspeed(way.Tags["maxspeed"])

		if name := way.Tags["name"]; name != "" {
			ri.RoadName = sql.NullString{Valid: true, String: name}
		}
		if highway != "" {
			ri.RoadType = sql.NullString{Valid: true, String: highway}
		}
		if speedLimit != nil {
			ri.SpeedLimit = sql.NullInt32{Valid: true, Int32: *speedLimit}
		}
		ri.TrafficImportance = importanceFor(highway)
		ri.PriorityFactor = priorityFactorFor(ri.TrafficImportance, highway, speedLimit)
		if raw, err := json.Marshal(way); err == nil {
			ri.OSMData = raw
		}
	}

	if err := s.potholesRepo.UpsertRoadInfo(ctx, ri); err != nil {
		return nil, fmt.Errorf("upsert road info: %w", err)
	}

	// 道路因子变化意味着分数过期，立即重评
	if _, err := s.priority.ScorePothole(ctx, potholeID); err != nil {
		return nil, fmt.Errorf("rescore after road info: %w", err)
	}

	return s.potholesRepo.GetRoadInfoByPothole(ctx, potholeID)
}

func (s *roadInfoService) GetRoadInfo(ctx context.Context, potholeID string) (*domain.RoadInfo, error) {
	ri, err := s.potholesRepo.GetRoadInfoByPothole(ctx, potholeID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load road info: %w", err)
	}
	return ri, nil
}
