package domain

import (
	"database/sql"
	"time"
)

// Worker 维修工领域模型（对应 workers 表）
// 可选 1:1 关联 User（user_id 可空）；employee_id 与 email 唯一
type Worker struct {
	WorkerID           string          `db:"worker_id"` // UUID, PRIMARY KEY
	UserID             sql.NullString  `db:"user_id"`   // nullable, UNIQUE
	Name               string          `db:"name"`      // NOT NULL
	Email              string          `db:"email"`     // UNIQUE, NOT NULL
	Phone              sql.NullString  `db:"phone"`
	EmployeeID         string          `db:"employee_id"` // UNIQUE, NOT NULL
	IsActive           bool            `db:"is_active"`   // DEFAULT true
	CurrentLatitude    sql.NullFloat64 `db:"current_latitude"`
	CurrentLongitude   sql.NullFloat64 `db:"current_longitude"`
	LastLocationUpdate *time.Time      `db:"last_location_update"`
	CreatedAt          time.Time       `db:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at"`
}

// HasLocation 是否有可用的当前位置
func (w *Worker) HasLocation() bool {
	return w.CurrentLatitude.Valid && w.CurrentLongitude.Valid
}

func (w *Worker) ToJSON() map[string]any {
	m := map[string]any{
		"worker_id":   w.WorkerID,
		"name":        w.Name,
		"email":       w.Email,
		"employee_id": w.EmployeeID,
		"is_active":   w.IsActive,
		"created_at":  w.CreatedAt,
		"updated_at":  w.UpdatedAt,
	}
	if w.UserID.Valid {
		m["user_id"] = w.UserID.String
	}
	if w.Phone.Valid {
		m["phone"] = w.Phone.String
	}
	if w.CurrentLatitude.Valid {
		m["current_latitude"] = w.CurrentLatitude.Float64
	}
	if w.CurrentLongitude.Valid {
		m["current_longitude"] = w.CurrentLongitude.Float64
	}
	if w.LastLocationUpdate != nil {
		m["last_location_update"] = *w.LastLocationUpdate
	}
	return m
}

// WorkerLocation 位置轨迹（对应 worker_locations 表），仅追加
type WorkerLocation struct {
	LocationID string          `db:"location_id"` // UUID, PRIMARY KEY
	WorkerID   string          `db:"worker_id"`   // NOT NULL, REFERENCES workers
	Latitude   float64         `db:"latitude"`
	Longitude  float64         `db:"longitude"`
	Accuracy   sql.NullFloat64 `db:"accuracy"` // GPS 精度（米）
	RecordedAt time.Time       `db:"recorded_at"`
}

func (l *WorkerLocation) ToJSON() map[string]any {
	m := map[string]any{
		"location_id": l.LocationID,
		"worker_id":   l.WorkerID,
		"latitude":    l.Latitude,
		"longitude":   l.Longitude,
		"recorded_at": l.RecordedAt,
	}
	if l.Accuracy.Valid {
		m["accuracy"] = l.Accuracy.Float64
	}
	return m
}
