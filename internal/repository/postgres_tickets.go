package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"smartinfra-data/internal/domain"

	"github.com/lib/pq"
)

// PostgresTicketsRepository 工单Repository实现。
// 状态迁移通过 WithTicketLock 串行化：事务内 SELECT ... FOR UPDATE 锁行，
// 状态写入和审计追加与锁同一事务提交。
type PostgresTicketsRepository struct {
	db *sql.DB
}

func NewPostgresTicketsRepository(db *sql.DB) *PostgresTicketsRepository {
	return &PostgresTicketsRepository{db: db}
}

var _ TicketsRepository = (*PostgresTicketsRepository)(nil)

const ticketColumns = `ticket_id, ticket_number, status, pothole_id, assigned_worker_id,
	assigned_at, started_at, completed_at, resolved_at, route_data, estimated_eta,
	notes, admin_notes, version, created_at, updated_at`

func scanTicket(row interface{ Scan(...interface{}) error }) (*domain.Ticket, error) {
	var t domain.Ticket
	var routeData sql.NullString
	if err := row.Scan(
		&t.TicketID, &t.TicketNumber, &t.Status, &t.PotholeID, &t.AssignedWorkerID,
		&t.AssignedAt, &t.StartedAt, &t.CompletedAt, &t.ResolvedAt, &routeData,
		&t.EstimatedETA, &t.Notes, &t.AdminNotes, &t.Version, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, mapError(err)
	}
	if routeData.Valid {
		t.RouteData = []byte(routeData.String)
	}
	return &t, nil
}

func insertHistory(ctx context.Context, execer interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
}, h *domain.TicketStatusHistory) error {
	var from interface{}
	if h.FromStatus != nil {
		from = string(*h.FromStatus)
	}
	_, err := execer.ExecContext(ctx,
		`INSERT INTO ticket_status_history (history_id, ticket_id, from_status, to_status,
		        changed_by, reason, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		h.HistoryID, h.TicketID, from, h.ToStatus, h.ChangedBy, h.Reason, h.CreatedAt,
	)
	return mapError(err)
}

func (r *PostgresTicketsRepository) CreateTicket(ctx context.Context, t *domain.Ticket, first *domain.TicketStatusHistory) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create ticket: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO tickets (ticket_id, ticket_number, status, pothole_id, assigned_worker_id,
		        assigned_at, started_at, completed_at, resolved_at, route_data, estimated_eta,
		        notes, admin_notes, version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		t.TicketID, t.TicketNumber, t.Status, t.PotholeID, t.AssignedWorkerID,
		t.AssignedAt, t.StartedAt, t.CompletedAt, t.ResolvedAt, nullableJSON(t.RouteData),
		t.EstimatedETA, t.Notes, t.AdminNotes, t.Version, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create ticket: %w", mapError(err))
	}

	if err := insertHistory(ctx, tx, first); err != nil {
		return fmt.Errorf("create ticket history: %w", err)
	}

	return tx.Commit()
}

func (r *PostgresTicketsRepository) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE ticket_id = $1`, ticketID)
	return scanTicket(row)
}

func (r *PostgresTicketsRepository) GetTicketByNumber(ctx context.Context, ticketNumber string) (*domain.Ticket, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE ticket_number = $1`, ticketNumber)
	return scanTicket(row)
}

func (r *PostgresTicketsRepository) GetTicketByPothole(ctx context.Context, potholeID string) (*domain.Ticket, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE pothole_id = $1`, potholeID)
	return scanTicket(row)
}

func (r *PostgresTicketsRepository) ListTickets(ctx context.Context, filters TicketFilters, page, size int) ([]*domain.Ticket, int, error) {
	where := []string{"TRUE"}
	args := []interface{}{}
	argN := 1

	if len(filters.Statuses) > 0 {
		statuses := make([]string, len(filters.Statuses))
		for i, s := range filters.Statuses {
			statuses[i] = string(s)
		}
		where = append(where, fmt.Sprintf("status = ANY($%d)", argN))
		args = append(args, pq.Array(statuses))
		argN++
	}
	if filters.AssignedWorkerID != nil {
		where = append(where, fmt.Sprintf("assigned_worker_id = $%d", argN))
		args = append(args, *filters.AssignedWorkerID)
		argN++
	}
	if filters.PotholeID != nil {
		where = append(where, fmt.Sprintf("pothole_id = $%d", argN))
		args = append(args, *filters.PotholeID)
		argN++
	}

	whereClause := joinAnd(where)

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tickets WHERE `+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, mapError(err)
	}

	query := fmt.Sprintf(
		`SELECT `+ticketColumns+` FROM tickets WHERE `+whereClause+`
		 ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, argN, argN+1)
	args = append(args, size, (page-1)*size)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, mapError(err)
	}
	defer rows.Close()

	var items []*domain.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, t)
	}
	return items, total, rows.Err()
}

func (r *PostgresTicketsRepository) ListStatusHistory(ctx context.Context, ticketID string) ([]*domain.TicketStatusHistory, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT history_id, ticket_id, from_status, to_status, changed_by, reason, created_at
		 FROM ticket_status_history WHERE ticket_id = $1 ORDER BY created_at ASC`, ticketID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var items []*domain.TicketStatusHistory
	for rows.Next() {
		var h domain.TicketStatusHistory
		var from sql.NullString
		if err := rows.Scan(&h.HistoryID, &h.TicketID, &from, &h.ToStatus,
			&h.ChangedBy, &h.Reason, &h.CreatedAt); err != nil {
			return nil, mapError(err)
		}
		if from.Valid {
			s := domain.TicketStatus(from.String)
			h.FromStatus = &s
		}
		items = append(items, &h)
	}
	return items, rows.Err()
}

func (r *PostgresTicketsRepository) CountTicketsCreatedSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tickets WHERE created_at >= $1`, since).Scan(&n)
	if err != nil {
		return 0, mapError(err)
	}
	return n, nil
}

func (r *PostgresTicketsRepository) WithTicketLock(ctx context.Context, ticketID string, fn func(tx TicketTx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ticket lock: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE ticket_id = $1 FOR UPDATE`, ticketID)
	t, err := scanTicket(row)
	if err != nil {
		return err
	}

	ttx := &postgresTicketTx{tx: tx, ticket: t}
	if err := fn(ttx); err != nil {
		return err
	}

	return tx.Commit()
}

// postgresTicketTx TicketTx 的事务内实现
type postgresTicketTx struct {
	tx     *sql.Tx
	ticket *domain.Ticket
}

func (t *postgresTicketTx) Ticket() *domain.Ticket { return t.ticket }

func (t *postgresTicketTx) UpdateTicket(ctx context.Context, patch TicketPatch) error {
	set := []string{"updated_at = NOW()", "version = version + 1"}
	args := []interface{}{}
	argN := 1

	appendSet := func(col string, val interface{}) {
		set = append(set, fmt.Sprintf("%s = $%d", col, argN))
		args = append(args, val)
		argN++
	}

	if patch.Status != nil {
		appendSet("status", string(*patch.Status))
	}
	if patch.AssignedWorkerID != nil {
		appendSet("assigned_worker_id", *patch.AssignedWorkerID)
	}
	if patch.AssignedAt != nil {
		appendSet("assigned_at", *patch.AssignedAt)
	}
	if patch.StartedAt != nil {
		appendSet("started_at", *patch.StartedAt)
	}
	if patch.CompletedAt != nil {
		appendSet("completed_at", *patch.CompletedAt)
	}
	if patch.ResolvedAt != nil {
		appendSet("resolved_at", *patch.ResolvedAt)
	}
	if len(patch.RouteData) > 0 {
		appendSet("route_data", string(patch.RouteData))
	}
	if patch.EstimatedETA != nil {
		appendSet("estimated_eta", *patch.EstimatedETA)
	}
	if patch.AdminNotes != nil {
		appendSet("admin_notes", *patch.AdminNotes)
	}

	query := fmt.Sprintf(`UPDATE tickets SET %s WHERE ticket_id = $%d`,
		joinComma(set), argN)
	args = append(args, t.ticket.TicketID)

	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update ticket: %w", mapError(err))
	}
	return nil
}

func (t *postgresTicketTx) AppendHistory(ctx context.Context, h *domain.TicketStatusHistory) error {
	return insertHistory(ctx, t.tx, h)
}

func (t *postgresTicketTx) GetWorker(ctx context.Context, workerID string) (*domain.Worker, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+workerColumns+` FROM workers WHERE worker_id = $1`, workerID)
	return scanWorker(row)
}

func (t *postgresTicketTx) LatestWorkProof(ctx context.Context) (*domain.WorkProof, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+workProofColumns+` FROM work_proofs
		 WHERE ticket_id = $1 ORDER BY submitted_at DESC LIMIT 1`, t.ticket.TicketID)
	return scanWorkProof(row)
}

func (t *postgresTicketTx) CountWorkProofs(ctx context.Context) (int, error) {
	var n int
	err := t.tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM work_proofs WHERE ticket_id = $1`, t.ticket.TicketID).Scan(&n)
	if err != nil {
		return 0, mapError(err)
	}
	return n, nil
}
