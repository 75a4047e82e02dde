package domain

import (
	"database/sql"
	"time"
)

// User 用户领域模型（对应 users 表）
type User struct {
	UserID     string         `db:"user_id"`     // UUID, PRIMARY KEY
	ExternalID sql.NullString `db:"external_id"` // 外部认证ID, UNIQUE, nullable
	Name       sql.NullString `db:"name"`
	Email      string         `db:"email"` // UNIQUE, NOT NULL
	Role       Role           `db:"role"`  // ADMIN | CITIZEN | WORKER
	CreatedAt  time.Time      `db:"created_at"`
}

func (u *User) ToJSON() map[string]any {
	m := map[string]any{
		"user_id":    u.UserID,
		"email":      u.Email,
		"role":       string(u.Role),
		"created_at": u.CreatedAt,
	}
	if u.ExternalID.Valid {
		m["external_id"] = u.ExternalID.String
	}
	if u.Name.Valid {
		m["name"] = u.Name.String
	}
	return m
}
