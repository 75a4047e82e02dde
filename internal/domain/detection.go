package domain

import (
	"database/sql"
	"time"
)

// Detection ML 检测结果领域模型（对应 detections 表）
// 一次推理产出一条记录；frame_time 仅视频媒体有值
type Detection struct {
	DetectionID   string          `db:"detection_id"` // UUID, PRIMARY KEY
	MediaID       string          `db:"media_id"`     // NOT NULL, REFERENCES media
	DetectedClass string          `db:"detected_class"` // DEFAULT 'pothole'
	Confidence    float64         `db:"confidence"`     // 0..1
	BBoxX         float64         `db:"bbox_x"`
	BBoxY         float64         `db:"bbox_y"`
	BBoxWidth     float64         `db:"bbox_width"`
	BBoxHeight    float64         `db:"bbox_height"`
	FrameTime     sql.NullFloat64 `db:"frame_time"` // nullable, 视频帧秒数
	CreatedAt     time.Time       `db:"created_at"`
}

func (d *Detection) ToJSON() map[string]any {
	m := map[string]any{
		"detection_id":   d.DetectionID,
		"media_id":       d.MediaID,
		"detected_class": d.DetectedClass,
		"confidence":     d.Confidence,
		"bbox": map[string]any{
			"x":      d.BBoxX,
			"y":      d.BBoxY,
			"width":  d.BBoxWidth,
			"height": d.BBoxHeight,
		},
		"created_at": d.CreatedAt,
	}
	if d.FrameTime.Valid {
		m["frame_time"] = d.FrameTime.Float64
	}
	return m
}
