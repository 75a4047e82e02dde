package repository

import (
	"context"
	"time"

	"smartinfra-data/internal/domain"
)

// ProofReview 审核写入参数
type ProofReview struct {
	Approved    bool
	ReviewedBy  string
	ReviewedAt  time.Time
	ReviewNotes *string
}

// WorkProofsRepository 完工凭证Repository接口
type WorkProofsRepository interface {
	CreateWorkProof(ctx context.Context, p *domain.WorkProof) error
	GetWorkProof(ctx context.Context, proofID string) (*domain.WorkProof, error)
	// ListWorkProofsByTicket 按提交时间倒序
	ListWorkProofsByTicket(ctx context.Context, ticketID string) ([]*domain.WorkProof, error)
	// SetReview 写入审核结论。仅当凭证仍为待审（is_approved IS NULL）时生效，
	// 已审核的凭证返回 ErrAlreadyReviewed —— 条件更新本身就是幂等守卫。
	SetReview(ctx context.Context, proofID string, review ProofReview) (*domain.WorkProof, error)
}
