package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"

	"smartinfra-data/internal/domain"
)

// MemoryWorkProofsRepository 内存实现
type MemoryWorkProofsRepository struct {
	mu     sync.RWMutex
	proofs map[string]*domain.WorkProof
}

func NewMemoryWorkProofsRepository() *MemoryWorkProofsRepository {
	return &MemoryWorkProofsRepository{proofs: make(map[string]*domain.WorkProof)}
}

var _ WorkProofsRepository = (*MemoryWorkProofsRepository)(nil)

func cloneWorkProof(p *domain.WorkProof) *domain.WorkProof {
	c := *p
	c.ImageURLs = append([]string(nil), p.ImageURLs...)
	if p.ReviewedAt != nil {
		t := *p.ReviewedAt
		c.ReviewedAt = &t
	}
	return &c
}

func (r *MemoryWorkProofsRepository) CreateWorkProof(ctx context.Context, p *domain.WorkProof) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.proofs[p.ProofID]; ok {
		return fmt.Errorf("%w: work_proofs_pkey", domain.ErrConstraintViolation)
	}
	r.proofs[p.ProofID] = cloneWorkProof(p)
	return nil
}

func (r *MemoryWorkProofsRepository) GetWorkProof(ctx context.Context, proofID string) (*domain.WorkProof, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.proofs[proofID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneWorkProof(p), nil
}

func (r *MemoryWorkProofsRepository) ListWorkProofsByTicket(ctx context.Context, ticketID string) ([]*domain.WorkProof, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.listByTicketLocked(ticketID), nil
}

func (r *MemoryWorkProofsRepository) listByTicketLocked(ticketID string) []*domain.WorkProof {
	var items []*domain.WorkProof
	for _, p := range r.proofs {
		if p.TicketID == ticketID {
			items = append(items, cloneWorkProof(p))
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].SubmittedAt.After(items[j].SubmittedAt)
	})
	return items
}

func (r *MemoryWorkProofsRepository) SetReview(ctx context.Context, proofID string, review ProofReview) (*domain.WorkProof, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.proofs[proofID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if p.Review.Decided() {
		return nil, domain.ErrAlreadyReviewed
	}
	if review.Approved {
		p.Review = domain.ReviewApproved
	} else {
		p.Review = domain.ReviewRejected
	}
	p.ReviewedBy = sql.NullString{Valid: true, String: review.ReviewedBy}
	t := review.ReviewedAt
	p.ReviewedAt = &t
	if review.ReviewNotes != nil {
		p.ReviewNotes = sql.NullString{Valid: true, String: *review.ReviewNotes}
	}
	return cloneWorkProof(p), nil
}
