package domain

import (
	"database/sql"
	"time"
)

// ReviewState 凭证审核状态。DB 中持久化为可空布尔（is_approved：
// NULL=待审、true/false=已决），Go 侧用显式三值避免空布尔歧义。
type ReviewState string

const (
	ReviewPending  ReviewState = "PENDING"
	ReviewApproved ReviewState = "APPROVED"
	ReviewRejected ReviewState = "REJECTED"
)

// ReviewStateFromBool 从可空布尔列还原审核状态
func ReviewStateFromBool(b sql.NullBool) ReviewState {
	switch {
	case !b.Valid:
		return ReviewPending
	case b.Bool:
		return ReviewApproved
	default:
		return ReviewRejected
	}
}

// ToBool 转回可空布尔列
func (s ReviewState) ToBool() sql.NullBool {
	switch s {
	case ReviewApproved:
		return sql.NullBool{Valid: true, Bool: true}
	case ReviewRejected:
		return sql.NullBool{Valid: true, Bool: false}
	default:
		return sql.NullBool{}
	}
}

// Decided 是否已审核
func (s ReviewState) Decided() bool {
	return s == ReviewApproved || s == ReviewRejected
}

// WorkProof 完工凭证（对应 work_proofs 表）
// image_urls 为 text[]，至少一张；经纬度为拍摄位置，可空
type WorkProof struct {
	ProofID     string          `db:"proof_id"`  // UUID, PRIMARY KEY
	TicketID    string          `db:"ticket_id"` // NOT NULL, REFERENCES tickets
	ImageURLs   []string        `db:"image_urls"`
	Notes       sql.NullString  `db:"notes"`
	Latitude    sql.NullFloat64 `db:"latitude"`
	Longitude   sql.NullFloat64 `db:"longitude"`
	SubmittedAt time.Time       `db:"submitted_at"`
	Review      ReviewState     `db:"is_approved"` // 持久化为可空布尔
	ReviewedBy  sql.NullString  `db:"reviewed_by"`
	ReviewedAt  *time.Time      `db:"reviewed_at"`
	ReviewNotes sql.NullString  `db:"review_notes"`
}

func (p *WorkProof) ToJSON() map[string]any {
	m := map[string]any{
		"proof_id":     p.ProofID,
		"ticket_id":    p.TicketID,
		"image_urls":   p.ImageURLs,
		"submitted_at": p.SubmittedAt,
		"review_state": string(p.Review),
	}
	// 与上游 schema 互操作：保留 is_approved 的三态布尔表示
	if b := p.Review.ToBool(); b.Valid {
		m["is_approved"] = b.Bool
	} else {
		m["is_approved"] = nil
	}
	if p.Notes.Valid {
		m["notes"] = p.Notes.String
	}
	if p.Latitude.Valid {
		m["latitude"] = p.Latitude.Float64
	}
	if p.Longitude.Valid {
		m["longitude"] = p.Longitude.Float64
	}
	if p.ReviewedBy.Valid {
		m["reviewed_by"] = p.ReviewedBy.String
	}
	if p.ReviewedAt != nil {
		m["reviewed_at"] = *p.ReviewedAt
	}
	if p.ReviewNotes.Valid {
		m["review_notes"] = p.ReviewNotes.String
	}
	return m
}
