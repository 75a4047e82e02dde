package domain

import (
	"database/sql"
	"time"
)

// Pothole 坑洞领域模型（对应 potholes 表）
// 由高置信度 Detection 晋升而来；detection_id 唯一约束保证 1:1
type Pothole struct {
	PotholeID     string          `db:"pothole_id"`   // UUID, PRIMARY KEY
	Latitude      float64         `db:"latitude"`     // NOT NULL
	Longitude     float64         `db:"longitude"`    // NOT NULL
	ImageURL      sql.NullString  `db:"image_url"`
	DetectionID   string          `db:"detection_id"` // UNIQUE, NOT NULL
	PriorityScore sql.NullFloat64 `db:"priority_score"`
	PriorityLevel sql.NullString  `db:"priority_level"` // LOW|MEDIUM|HIGH|CRITICAL
	CreatedAt     time.Time       `db:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
}

// Level 返回档位（未评分时 ok=false）
func (p *Pothole) Level() (PriorityLevel, bool) {
	if !p.PriorityLevel.Valid {
		return "", false
	}
	return PriorityLevel(p.PriorityLevel.String), true
}

// Scored 是否已评分
func (p *Pothole) Scored() bool {
	return p.PriorityScore.Valid
}

func (p *Pothole) ToJSON() map[string]any {
	m := map[string]any{
		"pothole_id":   p.PotholeID,
		"latitude":     p.Latitude,
		"longitude":    p.Longitude,
		"detection_id": p.DetectionID,
		"created_at":   p.CreatedAt,
		"updated_at":   p.UpdatedAt,
	}
	if p.ImageURL.Valid {
		m["image_url"] = p.ImageURL.String
	}
	if p.PriorityScore.Valid {
		m["priority_score"] = p.PriorityScore.Float64
	} else {
		m["priority_score"] = nil
	}
	if p.PriorityLevel.Valid {
		m["priority_level"] = p.PriorityLevel.String
	} else {
		m["priority_level"] = nil
	}
	return m
}
