package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"smartinfra-data/internal/domain"
)

// MemoryTicketsRepository 内存实现。WithTicketLock 用单工单互斥锁串行化，
// 提交时校验 version（CAS），竞争失败返回 ErrConcurrentModification。
// TicketTx 需要在锁作用域内读 Worker/WorkProof，因此持有对应内存仓储的引用。
type MemoryTicketsRepository struct {
	mu      sync.RWMutex
	tickets map[string]*domain.Ticket
	history map[string][]*domain.TicketStatusHistory

	lockMu      sync.Mutex
	ticketLocks map[string]*sync.Mutex

	workers *MemoryWorkersRepository
	proofs  *MemoryWorkProofsRepository
}

func NewMemoryTicketsRepository(workers *MemoryWorkersRepository, proofs *MemoryWorkProofsRepository) *MemoryTicketsRepository {
	return &MemoryTicketsRepository{
		tickets:     make(map[string]*domain.Ticket),
		history:     make(map[string][]*domain.TicketStatusHistory),
		ticketLocks: make(map[string]*sync.Mutex),
		workers:     workers,
		proofs:      proofs,
	}
}

var _ TicketsRepository = (*MemoryTicketsRepository)(nil)

func cloneTicket(t *domain.Ticket) *domain.Ticket {
	c := *t
	if t.RouteData != nil {
		c.RouteData = append([]byte(nil), t.RouteData...)
	}
	for _, src := range []**time.Time{&c.AssignedAt, &c.StartedAt, &c.CompletedAt, &c.ResolvedAt} {
		if *src != nil {
			v := **src
			*src = &v
		}
	}
	return &c
}

func cloneHistory(h *domain.TicketStatusHistory) *domain.TicketStatusHistory {
	c := *h
	if h.FromStatus != nil {
		s := *h.FromStatus
		c.FromStatus = &s
	}
	return &c
}

func (r *MemoryTicketsRepository) ticketLock(ticketID string) *sync.Mutex {
	r.lockMu.Lock()
	defer r.lockMu.Unlock()
	l, ok := r.ticketLocks[ticketID]
	if !ok {
		l = &sync.Mutex{}
		r.ticketLocks[ticketID] = l
	}
	return l
}

func (r *MemoryTicketsRepository) CreateTicket(ctx context.Context, t *domain.Ticket, first *domain.TicketStatusHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[t.TicketID]; ok {
		return fmt.Errorf("%w: tickets_pkey", domain.ErrConstraintViolation)
	}
	for _, existing := range r.tickets {
		if existing.PotholeID == t.PotholeID {
			return fmt.Errorf("%w: tickets_pothole_id_key", domain.ErrConstraintViolation)
		}
		if existing.TicketNumber == t.TicketNumber {
			return fmt.Errorf("%w: tickets_ticket_number_key", domain.ErrConstraintViolation)
		}
	}
	r.tickets[t.TicketID] = cloneTicket(t)
	r.history[t.TicketID] = append(r.history[t.TicketID], cloneHistory(first))
	return nil
}

func (r *MemoryTicketsRepository) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tickets[ticketID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneTicket(t), nil
}

func (r *MemoryTicketsRepository) GetTicketByNumber(ctx context.Context, ticketNumber string) (*domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.tickets {
		if t.TicketNumber == ticketNumber {
			return cloneTicket(t), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MemoryTicketsRepository) GetTicketByPothole(ctx context.Context, potholeID string) (*domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.tickets {
		if t.PotholeID == potholeID {
			return cloneTicket(t), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MemoryTicketsRepository) ListTickets(ctx context.Context, filters TicketFilters, page, size int) ([]*domain.Ticket, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []*domain.Ticket
	for _, t := range r.tickets {
		if len(filters.Statuses) > 0 {
			matched := false
			for _, s := range filters.Statuses {
				if t.Status == s {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
		}
		if filters.AssignedWorkerID != nil && (!t.AssignedWorkerID.Valid || t.AssignedWorkerID.String != *filters.AssignedWorkerID) {
			continue
		}
		if filters.PotholeID != nil && t.PotholeID != *filters.PotholeID {
			continue
		}
		all = append(all, cloneTicket(t))
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	return paginate(all, page, size), len(all), nil
}

func (r *MemoryTicketsRepository) ListStatusHistory(ctx context.Context, ticketID string) ([]*domain.TicketStatusHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.tickets[ticketID]; !ok {
		return nil, domain.ErrNotFound
	}
	var items []*domain.TicketStatusHistory
	for _, h := range r.history[ticketID] {
		items = append(items, cloneHistory(h))
	}
	return items, nil
}

func (r *MemoryTicketsRepository) CountTicketsCreatedSince(ctx context.Context, since time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, t := range r.tickets {
		if !t.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *MemoryTicketsRepository) WithTicketLock(ctx context.Context, ticketID string, fn func(tx TicketTx) error) error {
	lock := r.ticketLock(ticketID)
	lock.Lock()
	defer lock.Unlock()

	snapshot, err := r.GetTicket(ctx, ticketID)
	if err != nil {
		return err
	}

	ttx := &memoryTicketTx{repo: r, ticket: snapshot, baseVersion: snapshot.Version}
	if err := fn(ttx); err != nil {
		return err
	}
	return ttx.commit()
}

// memoryTicketTx 对快照暂存写入，commit 时整体落库（version CAS 守卫）
type memoryTicketTx struct {
	repo        *MemoryTicketsRepository
	ticket      *domain.Ticket
	baseVersion int64
	dirty       bool
	pendingHist []*domain.TicketStatusHistory
}

func (t *memoryTicketTx) Ticket() *domain.Ticket { return t.ticket }

func (t *memoryTicketTx) UpdateTicket(ctx context.Context, patch TicketPatch) error {
	if patch.Status != nil {
		t.ticket.Status = *patch.Status
	}
	if patch.AssignedWorkerID != nil {
		t.ticket.AssignedWorkerID.Valid = true
		t.ticket.AssignedWorkerID.String = *patch.AssignedWorkerID
	}
	if patch.AssignedAt != nil {
		v := *patch.AssignedAt
		t.ticket.AssignedAt = &v
	}
	if patch.StartedAt != nil {
		v := *patch.StartedAt
		t.ticket.StartedAt = &v
	}
	if patch.CompletedAt != nil {
		v := *patch.CompletedAt
		t.ticket.CompletedAt = &v
	}
	if patch.ResolvedAt != nil {
		v := *patch.ResolvedAt
		t.ticket.ResolvedAt = &v
	}
	if len(patch.RouteData) > 0 {
		t.ticket.RouteData = append([]byte(nil), patch.RouteData...)
	}
	if patch.EstimatedETA != nil {
		t.ticket.EstimatedETA.Valid = true
		t.ticket.EstimatedETA.String = *patch.EstimatedETA
	}
	if patch.AdminNotes != nil {
		t.ticket.AdminNotes.Valid = true
		t.ticket.AdminNotes.String = *patch.AdminNotes
	}
	t.ticket.UpdatedAt = time.Now()
	t.dirty = true
	return nil
}

func (t *memoryTicketTx) AppendHistory(ctx context.Context, h *domain.TicketStatusHistory) error {
	t.pendingHist = append(t.pendingHist, cloneHistory(h))
	t.dirty = true
	return nil
}

func (t *memoryTicketTx) GetWorker(ctx context.Context, workerID string) (*domain.Worker, error) {
	return t.repo.workers.GetWorker(ctx, workerID)
}

func (t *memoryTicketTx) LatestWorkProof(ctx context.Context) (*domain.WorkProof, error) {
	items, err := t.repo.proofs.ListWorkProofsByTicket(ctx, t.ticket.TicketID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, domain.ErrNotFound
	}
	return items[0], nil
}

func (t *memoryTicketTx) CountWorkProofs(ctx context.Context) (int, error) {
	items, err := t.repo.proofs.ListWorkProofsByTicket(ctx, t.ticket.TicketID)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

func (t *memoryTicketTx) commit() error {
	if !t.dirty {
		return nil
	}
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	stored, ok := t.repo.tickets[t.ticket.TicketID]
	if !ok {
		return domain.ErrNotFound
	}
	if stored.Version != t.baseVersion {
		return domain.ErrConcurrentModification
	}
	t.ticket.Version = t.baseVersion + 1
	t.repo.tickets[t.ticket.TicketID] = cloneTicket(t.ticket)
	t.repo.history[t.ticket.TicketID] = append(t.repo.history[t.ticket.TicketID], t.pendingHist...)
	return nil
}
