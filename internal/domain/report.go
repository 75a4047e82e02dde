package domain

import (
	"database/sql"
	"time"
)

// Report 市民上报领域模型（对应 reports 表）
// 一条上报可挂多个 Media；user_id 为空表示匿名上报
type Report struct {
	ReportID    string         `db:"report_id"` // UUID, PRIMARY KEY
	Title       sql.NullString `db:"title"`
	Description sql.NullString `db:"description"`
	Latitude    float64        `db:"latitude"`  // NOT NULL
	Longitude   float64        `db:"longitude"` // NOT NULL
	Status      ReportStatus   `db:"status"`    // DEFAULT 'PENDING'
	Severity    sql.NullInt32  `db:"severity"`
	ImageURL    sql.NullString `db:"image_url"`
	UserID      sql.NullString `db:"user_id"` // nullable, REFERENCES users
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func (r *Report) ToJSON() map[string]any {
	m := map[string]any{
		"report_id":  r.ReportID,
		"latitude":   r.Latitude,
		"longitude":  r.Longitude,
		"status":     string(r.Status),
		"created_at": r.CreatedAt,
		"updated_at": r.UpdatedAt,
	}
	if r.Title.Valid {
		m["title"] = r.Title.String
	}
	if r.Description.Valid {
		m["description"] = r.Description.String
	}
	if r.Severity.Valid {
		m["severity"] = r.Severity.Int32
	}
	if r.ImageURL.Valid {
		m["image_url"] = r.ImageURL.String
	}
	if r.UserID.Valid {
		m["user_id"] = r.UserID.String
	}
	return m
}

// Media 媒体领域模型（对应 media 表），属于且仅属于一个 Report
type Media struct {
	MediaID    string    `db:"media_id"`  // UUID, PRIMARY KEY
	ReportID   string    `db:"report_id"` // NOT NULL, REFERENCES reports
	MediaURL   string    `db:"media_url"` // NOT NULL
	MediaType  MediaType `db:"media_type"`
	UploadedAt time.Time `db:"uploaded_at"`
}

func (m *Media) ToJSON() map[string]any {
	return map[string]any{
		"media_id":    m.MediaID,
		"report_id":   m.ReportID,
		"media_url":   m.MediaURL,
		"media_type":  string(m.MediaType),
		"uploaded_at": m.UploadedAt,
	}
}
