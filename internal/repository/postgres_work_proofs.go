package repository

import (
	"context"
	"database/sql"
	"fmt"

	"smartinfra-data/internal/domain"

	"github.com/lib/pq"
)

// PostgresWorkProofsRepository 完工凭证Repository实现
type PostgresWorkProofsRepository struct {
	db *sql.DB
}

func NewPostgresWorkProofsRepository(db *sql.DB) *PostgresWorkProofsRepository {
	return &PostgresWorkProofsRepository{db: db}
}

var _ WorkProofsRepository = (*PostgresWorkProofsRepository)(nil)

const workProofColumns = `proof_id, ticket_id, image_urls, notes, latitude, longitude,
	submitted_at, is_approved, reviewed_by, reviewed_at, review_notes`

func scanWorkProof(row interface{ Scan(...interface{}) error }) (*domain.WorkProof, error) {
	var p domain.WorkProof
	var approved sql.NullBool
	if err := row.Scan(
		&p.ProofID, &p.TicketID, pq.Array(&p.ImageURLs), &p.Notes, &p.Latitude, &p.Longitude,
		&p.SubmittedAt, &approved, &p.ReviewedBy, &p.ReviewedAt, &p.ReviewNotes,
	); err != nil {
		return nil, mapError(err)
	}
	p.Review = domain.ReviewStateFromBool(approved)
	return &p, nil
}

func (r *PostgresWorkProofsRepository) CreateWorkProof(ctx context.Context, p *domain.WorkProof) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO work_proofs (proof_id, ticket_id, image_urls, notes, latitude, longitude,
		        submitted_at, is_approved, reviewed_by, reviewed_at, review_notes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p.ProofID, p.TicketID, pq.Array(p.ImageURLs), p.Notes, p.Latitude, p.Longitude,
		p.SubmittedAt, p.Review.ToBool(), p.ReviewedBy, p.ReviewedAt, p.ReviewNotes,
	)
	if err != nil {
		return fmt.Errorf("create work proof: %w", mapError(err))
	}
	return nil
}

func (r *PostgresWorkProofsRepository) GetWorkProof(ctx context.Context, proofID string) (*domain.WorkProof, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+workProofColumns+` FROM work_proofs WHERE proof_id = $1`, proofID)
	return scanWorkProof(row)
}

func (r *PostgresWorkProofsRepository) ListWorkProofsByTicket(ctx context.Context, ticketID string) ([]*domain.WorkProof, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+workProofColumns+` FROM work_proofs
		 WHERE ticket_id = $1 ORDER BY submitted_at DESC`, ticketID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var items []*domain.WorkProof
	for rows.Next() {
		p, err := scanWorkProof(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

// SetReview 条件更新：仅 is_approved IS NULL 的行可写。0 行受影响时区分
// “不存在”与“已审核”返回不同错误。
func (r *PostgresWorkProofsRepository) SetReview(ctx context.Context, proofID string, review ProofReview) (*domain.WorkProof, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE work_proofs SET is_approved = $1, reviewed_by = $2, reviewed_at = $3, review_notes = $4
		 WHERE proof_id = $5 AND is_approved IS NULL`,
		review.Approved, review.ReviewedBy, review.ReviewedAt, review.ReviewNotes, proofID,
	)
	if err != nil {
		return nil, fmt.Errorf("set proof review: %w", mapError(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetWorkProof(ctx, proofID); err != nil {
			return nil, err
		}
		return nil, domain.ErrAlreadyReviewed
	}
	return r.GetWorkProof(ctx, proofID)
}
