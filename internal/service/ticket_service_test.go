package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"smartinfra-data/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTicket(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	p := env.seedPothole(t, 0.8)
	ticket, err := env.ticketSvc.CreateTicket(ctx, CreateTicketRequest{
		PotholeID: p.PotholeID,
		CreatedBy: "system",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.TicketDetected, ticket.Status)
	assert.Equal(t, p.PotholeID, ticket.PotholeID)
	want := "TICKET-" + time.Now().Format("20060102") + "-0001"
	assert.Equal(t, want, ticket.TicketNumber)

	hist, err := env.ticketSvc.ListStatusHistory(ctx, ticket.TicketID)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Nil(t, hist[0].FromStatus)
	assert.Equal(t, domain.TicketDetected, hist[0].ToStatus)
	assert.Equal(t, "system", hist[0].ChangedBy.String)

	events := env.published.all()
	require.Len(t, events, 1)
	assert.Equal(t, string(domain.TicketDetected), events[0].ToStatus)
}

func TestCreateTicket_NumbersIncrementWithinDay(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		p := env.seedPothole(t, 0.8)
		ticket, err := env.ticketSvc.CreateTicket(ctx, CreateTicketRequest{PotholeID: p.PotholeID})
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(ticket.TicketNumber, fmt.Sprintf("-%04d", i)),
			"got %s", ticket.TicketNumber)
	}
}

func TestCreateTicket_UnknownPothole(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.ticketSvc.CreateTicket(context.Background(), CreateTicketRequest{PotholeID: "missing"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// 全链路：DETECTED → RANKED → ASSIGNED → IN_PROGRESS → AWAITING_VERIFICATION → RESOLVED
func TestTicketLifecycle_HappyPath(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ticket := env.seedScoredTicket(t)
	worker := env.seedWorker(t, true)

	ticket, err := env.ticketSvc.RankTicket(ctx, ticket.TicketID, "admin")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketRanked, ticket.Status)

	ticket, err = env.ticketSvc.AssignTicket(ctx, ticket.TicketID, worker.WorkerID, "admin")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketAssigned, ticket.Status)
	assert.Equal(t, worker.WorkerID, ticket.AssignedWorkerID.String)
	assert.NotNil(t, ticket.AssignedAt)

	ticket, err = env.ticketSvc.StartJob(ctx, StartJobRequest{
		TicketID:     ticket.TicketID,
		WorkerID:     worker.WorkerID,
		EstimatedETA: strPtr("25m"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketInProgress, ticket.Status)
	assert.NotNil(t, ticket.StartedAt)

	submitted, err := env.proofSvc.SubmitProof(ctx, SubmitProofRequest{
		TicketID:  ticket.TicketID,
		WorkerID:  worker.WorkerID,
		ImageURLs: []string{"https://cdn.example.com/fixed.jpg"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketAwaitingVerification, submitted.Ticket.Status)
	assert.NotNil(t, submitted.Ticket.CompletedAt)

	reviewed, err := env.proofSvc.ReviewProof(ctx, ReviewProofRequest{
		ProofID:    submitted.Proof.ProofID,
		Approved:   true,
		ReviewedBy: "supervisor",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketResolved, reviewed.Ticket.Status)
	assert.NotNil(t, reviewed.Ticket.ResolvedAt)

	hist, err := env.ticketSvc.ListStatusHistory(ctx, ticket.TicketID)
	require.NoError(t, err)
	require.Len(t, hist, 6)
	got := make([]domain.TicketStatus, 0, len(hist))
	for _, h := range hist {
		got = append(got, h.ToStatus)
	}
	assert.Equal(t, []domain.TicketStatus{
		domain.TicketDetected,
		domain.TicketRanked,
		domain.TicketAssigned,
		domain.TicketInProgress,
		domain.TicketAwaitingVerification,
		domain.TicketResolved,
	}, got)
}

// 返工：凭证被拒回 IN_PROGRESS，重新提交后通过
func TestTicketLifecycle_ReworkLoop(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ticket := env.seedScoredTicket(t)
	worker := env.seedWorker(t, true)

	_, err := env.ticketSvc.RankTicket(ctx, ticket.TicketID, "")
	require.NoError(t, err)
	_, err = env.ticketSvc.AssignTicket(ctx, ticket.TicketID, worker.WorkerID, "")
	require.NoError(t, err)
	_, err = env.ticketSvc.StartJob(ctx, StartJobRequest{TicketID: ticket.TicketID, WorkerID: worker.WorkerID})
	require.NoError(t, err)

	first, err := env.proofSvc.SubmitProof(ctx, SubmitProofRequest{
		TicketID:  ticket.TicketID,
		WorkerID:  worker.WorkerID,
		ImageURLs: []string{"https://cdn.example.com/blurry.jpg"},
	})
	require.NoError(t, err)

	rejected, err := env.proofSvc.ReviewProof(ctx, ReviewProofRequest{
		ProofID:     first.Proof.ProofID,
		Approved:    false,
		ReviewedBy:  "supervisor",
		ReviewNotes: strPtr("photo does not show the repaired surface"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketInProgress, rejected.Ticket.Status)
	assert.Equal(t, domain.ReviewRejected, rejected.Proof.Review)

	second, err := env.proofSvc.SubmitProof(ctx, SubmitProofRequest{
		TicketID:  ticket.TicketID,
		WorkerID:  worker.WorkerID,
		ImageURLs: []string{"https://cdn.example.com/fixed.jpg"},
	})
	require.NoError(t, err)

	approved, err := env.proofSvc.ReviewProof(ctx, ReviewProofRequest{
		ProofID:    second.Proof.ProofID,
		Approved:   true,
		ReviewedBy: "supervisor",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketResolved, approved.Ticket.Status)

	hist, err := env.ticketSvc.ListStatusHistory(ctx, ticket.TicketID)
	require.NoError(t, err)
	// DETECTED, RANKED, ASSIGNED, IN_PROGRESS, AWAITING, IN_PROGRESS, AWAITING, RESOLVED
	assert.Len(t, hist, 8)
}

func TestTransition_IllegalJump(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ticket := env.seedScoredTicket(t)

	_, err := env.ticketSvc.Transition(ctx, TransitionRequest{
		TicketID: ticket.TicketID,
		To:       domain.TicketAssigned,
	})
	require.Error(t, err)
	assert.True(t, domain.IsInvalidTransition(err), "got %v", err)

	// 工单状态未变，也没有新的流转记录
	got, err := env.ticketSvc.GetTicket(ctx, ticket.TicketID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketDetected, got.Status)
	hist, err := env.ticketSvc.ListStatusHistory(ctx, ticket.TicketID)
	require.NoError(t, err)
	assert.Len(t, hist, 1)
}

func TestTransition_UnknownStatus(t *testing.T) {
	env := newTestEnv(t)
	ticket := env.seedScoredTicket(t)

	_, err := env.ticketSvc.Transition(context.Background(), TransitionRequest{
		TicketID: ticket.TicketID,
		To:       domain.TicketStatus("SHIPPED"),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRankTicket_RequiresScore(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// 未评分的坑洞不能进入 RANKED
	p := env.seedPothole(t, 0.8)
	ticket, err := env.ticketSvc.CreateTicket(ctx, CreateTicketRequest{PotholeID: p.PotholeID})
	require.NoError(t, err)

	_, err = env.ticketSvc.RankTicket(ctx, ticket.TicketID, "")
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestAssignTicket_Guards(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ticket := env.seedScoredTicket(t)
	_, err := env.ticketSvc.RankTicket(ctx, ticket.TicketID, "")
	require.NoError(t, err)

	t.Run("missing worker", func(t *testing.T) {
		_, err := env.ticketSvc.Transition(ctx, TransitionRequest{
			TicketID: ticket.TicketID,
			To:       domain.TicketAssigned,
		})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("unknown worker", func(t *testing.T) {
		_, err := env.ticketSvc.AssignTicket(ctx, ticket.TicketID, "no-such-worker", "")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("inactive worker", func(t *testing.T) {
		inactive := env.seedWorker(t, false)
		_, err := env.ticketSvc.AssignTicket(ctx, ticket.TicketID, inactive.WorkerID, "")
		assert.ErrorIs(t, err, domain.ErrInvalidState)
	})
}

func TestStartJob_WrongWorker(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ticket := env.seedScoredTicket(t)
	assigned := env.seedWorker(t, true)
	other := env.seedWorker(t, true)

	_, err := env.ticketSvc.RankTicket(ctx, ticket.TicketID, "")
	require.NoError(t, err)
	_, err = env.ticketSvc.AssignTicket(ctx, ticket.TicketID, assigned.WorkerID, "")
	require.NoError(t, err)

	_, err = env.ticketSvc.StartJob(ctx, StartJobRequest{
		TicketID: ticket.TicketID,
		WorkerID: other.WorkerID,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestRejectTicket(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("requires reason", func(t *testing.T) {
		ticket := env.seedScoredTicket(t)
		_, err := env.ticketSvc.RejectTicket(ctx, ticket.TicketID, "", "admin")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("from detected", func(t *testing.T) {
		ticket := env.seedScoredTicket(t)
		rejected, err := env.ticketSvc.RejectTicket(ctx, ticket.TicketID, "duplicate of an open ticket", "admin")
		require.NoError(t, err)
		assert.Equal(t, domain.TicketRejected, rejected.Status)

		hist, err := env.ticketSvc.ListStatusHistory(ctx, ticket.TicketID)
		require.NoError(t, err)
		last := hist[len(hist)-1]
		assert.Equal(t, "duplicate of an open ticket", last.Reason.String)
	})

	t.Run("terminal is frozen", func(t *testing.T) {
		ticket := env.seedScoredTicket(t)
		_, err := env.ticketSvc.RejectTicket(ctx, ticket.TicketID, "dup", "admin")
		require.NoError(t, err)

		_, err = env.ticketSvc.RankTicket(ctx, ticket.TicketID, "")
		assert.True(t, domain.IsInvalidTransition(err), "got %v", err)
	})
}

// 并发：对同一 DETECTED 工单并发 rank，只允许一次成功
func TestTransition_ConcurrentRank(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ticket := env.seedScoredTicket(t)

	const n = 8
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.ticketSvc.RankTicket(ctx, ticket.TicketID, "")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		ok := domain.IsInvalidTransition(err) || errors.Is(err, domain.ErrConcurrentModification)
		assert.True(t, ok, "unexpected error: %v", err)
	}
	assert.Equal(t, 1, succeeded)

	hist, err := env.ticketSvc.ListStatusHistory(ctx, ticket.TicketID)
	require.NoError(t, err)
	assert.Len(t, hist, 2) // DETECTED + 唯一一次 RANKED
}
