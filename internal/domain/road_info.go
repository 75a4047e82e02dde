package domain

import (
	"database/sql"
	"encoding/json"
	"time"
)

// RoadInfo 道路上下文领域模型（对应 road_info 表）
// pothole_id 唯一约束保证每个坑洞至多一条道路信息
// osm_data 为 Overpass 返回的原始 way 元素（JSONB，不建模固定结构）
type RoadInfo struct {
	RoadInfoID        string          `db:"road_info_id"` // UUID, PRIMARY KEY
	PotholeID         string          `db:"pothole_id"`   // UNIQUE, NOT NULL
	RoadName          sql.NullString  `db:"road_name"`
	RoadType          sql.NullString  `db:"road_type"` // OSM highway 分类
	SpeedLimit        sql.NullInt32   `db:"speed_limit"`
	TrafficImportance float64         `db:"traffic_importance"` // DEFAULT 2.0
	PriorityFactor    float64         `db:"priority_factor"`    // DEFAULT 2.0
	OSMData           json.RawMessage `db:"osm_data"`           // JSONB, nullable
	CreatedAt         time.Time       `db:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at"`
}

func (r *RoadInfo) ToJSON() map[string]any {
	m := map[string]any{
		"road_info_id":       r.RoadInfoID,
		"pothole_id":         r.PotholeID,
		"traffic_importance": r.TrafficImportance,
		"priority_factor":    r.PriorityFactor,
		"created_at":         r.CreatedAt,
		"updated_at":         r.UpdatedAt,
	}
	if r.RoadName.Valid {
		m["road_name"] = r.RoadName.String
	}
	if r.RoadType.Valid {
		m["road_type"] = r.RoadType.String
	}
	if r.SpeedLimit.Valid {
		m["speed_limit"] = r.SpeedLimit.Int32
	}
	if len(r.OSMData) > 0 {
		m["osm_data"] = json.RawMessage(r.OSMData)
	}
	return m
}
