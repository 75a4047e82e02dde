package domain

import (
	"database/sql"
	"encoding/json"
	"time"
)

// TicketStatus 工单状态
type TicketStatus string

const (
	TicketDetected             TicketStatus = "DETECTED"
	TicketRanked               TicketStatus = "RANKED"
	TicketAssigned             TicketStatus = "ASSIGNED"
	TicketInProgress           TicketStatus = "IN_PROGRESS"
	TicketAwaitingVerification TicketStatus = "AWAITING_VERIFICATION"
	TicketResolved             TicketStatus = "RESOLVED"
	TicketRejected             TicketStatus = "REJECTED"
)

// validTransitions 状态机迁移表。REJECTED 可从任意非终态进入（管理员操作，
// 见 CanTransition），此表只列常规流转。
var validTransitions = map[TicketStatus][]TicketStatus{
	TicketDetected:             {TicketRanked},
	TicketRanked:               {TicketAssigned},
	TicketAssigned:             {TicketInProgress},
	TicketInProgress:           {TicketAwaitingVerification},
	TicketAwaitingVerification: {TicketResolved, TicketInProgress},
	TicketResolved:             {},
	TicketRejected:             {},
}

// Valid 检查是否为合法状态值
func (s TicketStatus) Valid() bool {
	_, ok := validTransitions[s]
	return ok
}

// Terminal 是否终态
func (s TicketStatus) Terminal() bool {
	return s == TicketResolved || s == TicketRejected
}

// CanTransition 状态机迁移是否被允许（不含守卫条件，守卫由服务层校验）
func CanTransition(from, to TicketStatus) bool {
	if to == TicketRejected {
		return !from.Terminal()
	}
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses 当前状态的所有合法后继
func NextStatuses(from TicketStatus) []TicketStatus {
	next := append([]TicketStatus{}, validTransitions[from]...)
	if !from.Terminal() {
		next = append(next, TicketRejected)
	}
	return next
}

// Ticket 工单领域模型（对应 tickets 表）
// pothole_id 唯一约束保证一个坑洞至多一张工单；version 用于乐观并发控制
type Ticket struct {
	TicketID         string          `db:"ticket_id"`     // UUID, PRIMARY KEY
	TicketNumber     string          `db:"ticket_number"` // UNIQUE, 形如 TICKET-20250831-0042
	Status           TicketStatus    `db:"status"`        // DEFAULT 'DETECTED'
	PotholeID        string          `db:"pothole_id"`    // UNIQUE, NOT NULL
	AssignedWorkerID sql.NullString  `db:"assigned_worker_id"`
	AssignedAt       *time.Time      `db:"assigned_at"`
	StartedAt        *time.Time      `db:"started_at"`
	CompletedAt      *time.Time      `db:"completed_at"`
	ResolvedAt       *time.Time      `db:"resolved_at"`
	RouteData        json.RawMessage `db:"route_data"` // JSONB, nullable
	EstimatedETA     sql.NullString  `db:"estimated_eta"`
	Notes            sql.NullString  `db:"notes"`
	AdminNotes       sql.NullString  `db:"admin_notes"`
	Version          int64           `db:"version"`
	CreatedAt        time.Time       `db:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at"`
}

func (t *Ticket) ToJSON() map[string]any {
	m := map[string]any{
		"ticket_id":     t.TicketID,
		"ticket_number": t.TicketNumber,
		"status":        string(t.Status),
		"pothole_id":    t.PotholeID,
		"created_at":    t.CreatedAt,
		"updated_at":    t.UpdatedAt,
	}
	if t.AssignedWorkerID.Valid {
		m["assigned_worker_id"] = t.AssignedWorkerID.String
	} else {
		m["assigned_worker_id"] = nil
	}
	if t.AssignedAt != nil {
		m["assigned_at"] = *t.AssignedAt
	}
	if t.StartedAt != nil {
		m["started_at"] = *t.StartedAt
	}
	if t.CompletedAt != nil {
		m["completed_at"] = *t.CompletedAt
	}
	if t.ResolvedAt != nil {
		m["resolved_at"] = *t.ResolvedAt
	}
	if len(t.RouteData) > 0 {
		m["route_data"] = json.RawMessage(t.RouteData)
	}
	if t.EstimatedETA.Valid {
		m["estimated_eta"] = t.EstimatedETA.String
	}
	if t.Notes.Valid {
		m["notes"] = t.Notes.String
	}
	if t.AdminNotes.Valid {
		m["admin_notes"] = t.AdminNotes.String
	}
	return m
}

// TicketStatusHistory 工单状态流转审计（对应 ticket_status_history 表）
// 仅追加，不提供更新/删除；from_status 为空表示建单
type TicketStatusHistory struct {
	HistoryID  string         `db:"history_id"` // UUID, PRIMARY KEY
	TicketID   string         `db:"ticket_id"`  // NOT NULL, REFERENCES tickets
	FromStatus *TicketStatus  `db:"from_status"`
	ToStatus   TicketStatus   `db:"to_status"` // NOT NULL
	ChangedBy  sql.NullString `db:"changed_by"`
	Reason     sql.NullString `db:"reason"`
	CreatedAt  time.Time      `db:"created_at"`
}

func (h *TicketStatusHistory) ToJSON() map[string]any {
	m := map[string]any{
		"history_id": h.HistoryID,
		"ticket_id":  h.TicketID,
		"to_status":  string(h.ToStatus),
		"created_at": h.CreatedAt,
	}
	if h.FromStatus != nil {
		m["from_status"] = string(*h.FromStatus)
	} else {
		m["from_status"] = nil
	}
	if h.ChangedBy.Valid {
		m["changed_by"] = h.ChangedBy.String
	}
	if h.Reason.Valid {
		m["reason"] = h.Reason.String
	}
	return m
}
