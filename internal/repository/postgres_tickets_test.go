package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"smartinfra-data/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pqError(code, constraint string) *pq.Error {
	return &pq.Error{Code: pq.ErrorCode(code), Constraint: constraint}
}

func newTicketsRepo(t *testing.T) (*PostgresTicketsRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresTicketsRepository(db), mock
}

func ticketRows(t *domain.Ticket) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"ticket_id", "ticket_number", "status", "pothole_id", "assigned_worker_id",
		"assigned_at", "started_at", "completed_at", "resolved_at", "route_data",
		"estimated_eta", "notes", "admin_notes", "version", "created_at", "updated_at",
	}).AddRow(
		t.TicketID, t.TicketNumber, string(t.Status), t.PotholeID, nil,
		nil, nil, nil, nil, nil,
		nil, nil, nil, t.Version, t.CreatedAt, t.UpdatedAt,
	)
}

func TestPostgresCreateTicket(t *testing.T) {
	repo, mock := newTicketsRepo(t)
	now := time.Now()

	ticket := &domain.Ticket{
		TicketID:     "tid-1",
		TicketNumber: "TICKET-20260831-0001",
		Status:       domain.TicketDetected,
		PotholeID:    "pid-1",
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	first := &domain.TicketStatusHistory{
		HistoryID: "hid-1",
		TicketID:  "tid-1",
		ToStatus:  domain.TicketDetected,
		CreatedAt: now,
	}

	// 工单与首条流转记录同一事务落库
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO tickets`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO ticket_status_history`).
		WithArgs("hid-1", "tid-1", nil, domain.TicketDetected,
			first.ChangedBy, first.Reason, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.CreateTicket(context.Background(), ticket, first))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateTicket_DuplicateNumber(t *testing.T) {
	repo, mock := newTicketsRepo(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO tickets`).
		WillReturnError(pqError("23505", "tickets_ticket_number_key"))
	mock.ExpectRollback()

	err := repo.CreateTicket(context.Background(), &domain.Ticket{
		TicketID: "tid-1", TicketNumber: "TICKET-20260831-0001",
		Status: domain.TicketDetected, PotholeID: "pid-1",
		Version: 1, CreatedAt: now, UpdatedAt: now,
	}, &domain.TicketStatusHistory{HistoryID: "hid-1", TicketID: "tid-1", ToStatus: domain.TicketDetected, CreatedAt: now})
	assert.ErrorIs(t, err, domain.ErrConstraintViolation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetTicket_NotFound(t *testing.T) {
	repo, mock := newTicketsRepo(t)

	mock.ExpectQuery(`SELECT .+ FROM tickets WHERE ticket_id = \$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetTicket(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPostgresWithTicketLock(t *testing.T) {
	repo, mock := newTicketsRepo(t)
	now := time.Now()

	stored := &domain.Ticket{
		TicketID:     "tid-1",
		TicketNumber: "TICKET-20260831-0001",
		Status:       domain.TicketDetected,
		PotholeID:    "pid-1",
		Version:      3,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM tickets WHERE ticket_id = \$1 FOR UPDATE`).
		WithArgs("tid-1").
		WillReturnRows(ticketRows(stored))
	mock.ExpectExec(`UPDATE tickets SET updated_at = NOW\(\), version = version \+ 1, status = \$1 WHERE ticket_id = \$2`).
		WithArgs("RANKED", "tid-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO ticket_status_history`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	to := domain.TicketRanked
	err := repo.WithTicketLock(context.Background(), "tid-1", func(tx TicketTx) error {
		assert.Equal(t, domain.TicketDetected, tx.Ticket().Status)
		assert.Equal(t, int64(3), tx.Ticket().Version)
		if err := tx.UpdateTicket(context.Background(), TicketPatch{Status: &to}); err != nil {
			return err
		}
		return tx.AppendHistory(context.Background(), &domain.TicketStatusHistory{
			HistoryID: "hid-2", TicketID: "tid-1",
			FromStatus: &stored.Status, ToStatus: to, CreatedAt: now,
		})
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresWithTicketLock_CallbackErrorRollsBack(t *testing.T) {
	repo, mock := newTicketsRepo(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM tickets WHERE ticket_id = \$1 FOR UPDATE`).
		WithArgs("tid-1").
		WillReturnRows(ticketRows(&domain.Ticket{
			TicketID: "tid-1", TicketNumber: "TICKET-20260831-0001",
			Status: domain.TicketResolved, PotholeID: "pid-1",
			Version: 9, CreatedAt: now, UpdatedAt: now,
		}))
	mock.ExpectRollback()

	err := repo.WithTicketLock(context.Background(), "tid-1", func(tx TicketTx) error {
		return &domain.InvalidTransitionError{From: tx.Ticket().Status, To: domain.TicketRanked}
	})
	assert.True(t, domain.IsInvalidTransition(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCountTicketsCreatedSince(t *testing.T) {
	repo, mock := newTicketsRepo(t)
	since := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM tickets WHERE created_at >= \$1`).
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	n, err := repo.CountTicketsCreatedSince(context.Background(), since)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}
