package domain

// Role 用户角色（wire 值与上游 schema 保持一致）
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleCitizen Role = "CITIZEN"
	RoleWorker  Role = "WORKER"
)

// ReportStatus 市民上报状态
type ReportStatus string

const (
	ReportPending  ReportStatus = "PENDING"
	ReportVerified ReportStatus = "VERIFIED"
	ReportResolved ReportStatus = "RESOLVED"
)

// MediaType 媒体类型
type MediaType string

const (
	MediaImage MediaType = "IMAGE"
	MediaVideo MediaType = "VIDEO"
)

// PriorityLevel 坑洞优先级档位
type PriorityLevel string

const (
	PriorityLow      PriorityLevel = "LOW"
	PriorityMedium   PriorityLevel = "MEDIUM"
	PriorityHigh     PriorityLevel = "HIGH"
	PriorityCritical PriorityLevel = "CRITICAL"
)

// priorityRank 档位的序关系（用于单调性判断）
var priorityRank = map[PriorityLevel]int{
	PriorityLow:      0,
	PriorityMedium:   1,
	PriorityHigh:     2,
	PriorityCritical: 3,
}

// Rank 返回档位序号，LOW=0 … CRITICAL=3
func (p PriorityLevel) Rank() int {
	return priorityRank[p]
}

// Valid 检查是否为合法档位
func (p PriorityLevel) Valid() bool {
	_, ok := priorityRank[p]
	return ok
}
