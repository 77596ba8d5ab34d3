package registry

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/loan-lifecycle-engine/internal/domain/interest"
	"github.com/loan-lifecycle-engine/internal/domain/ledger"
	"github.com/loan-lifecycle-engine/internal/domain/loan"
	"github.com/loan-lifecycle-engine/internal/domain/outbox"
	"github.com/loan-lifecycle-engine/internal/domain/shared"
)

// memStore backs the in-memory repositories. ExecuteTx snapshots it and
// restores the snapshot when the unit of work fails, which is the rollback
// behaviour the registry relies on.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	loans    map[uuid.UUID]loan.Account
	order    []uuid.UUID
	payments []ledger.Payment
	paySeq   int64
	messages []outbox.Message
	msgSeq   int64

	failOutboxCreate error
}

func newMemStore() *memStore {
	return &memStore{loans: make(map[uuid.UUID]loan.Account)}
}

type memSnapshot struct {
	loans    map[uuid.UUID]loan.Account
	order    []uuid.UUID
	payments []ledger.Payment
	paySeq   int64
	messages []outbox.Message
	msgSeq   int64
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	loans := make(map[uuid.UUID]loan.Account, len(s.loans))
	for k, v := range s.loans {
		loans[k] = v
	}
	return memSnapshot{
		loans:    loans,
		order:    append([]uuid.UUID(nil), s.order...),
		payments: append([]ledger.Payment(nil), s.payments...),
		paySeq:   s.paySeq,
		messages: append([]outbox.Message(nil), s.messages...),
		msgSeq:   s.msgSeq,
	}
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loans = snap.loans
	s.order = snap.order
	s.payments = snap.payments
	s.paySeq = snap.paySeq
	s.messages = snap.messages
	s.msgSeq = snap.msgSeq
}

func (s *memStore) ExecuteTx(_ context.Context, fn func(tx pgx.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(nil); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *memStore) eventTypes(loanID uuid.UUID) []shared.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	var types []shared.EventType
	for _, m := range s.messages {
		if m.LoanID == loanID {
			types = append(types, m.EventType)
		}
	}
	return types
}

func (s *memStore) paymentCount(loanID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.payments {
		if p.LoanID == loanID {
			n++
		}
	}
	return n
}

// tamperBalance overwrites the cached balance without touching payments.
func (s *memStore) tamperBalance(loanID uuid.UUID, balance int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.loans[loanID]
	acc.RemainingBalance = &balance
	s.loans[loanID] = acc
}

type memLoans struct{ s *memStore }

func (m *memLoans) Create(_ context.Context, acc *loan.Account) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.loans[acc.ID] = *acc
	m.s.order = append(m.s.order, acc.ID)
	return nil
}

func (m *memLoans) GetByID(_ context.Context, id uuid.UUID) (*loan.Account, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	acc, ok := m.s.loans[id]
	if !ok {
		return nil, loan.NotFoundError{LoanID: id}
	}
	return &acc, nil
}

func (m *memLoans) Update(_ context.Context, acc *loan.Account) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.loans[acc.ID]; !ok {
		return loan.NotFoundError{LoanID: acc.ID}
	}
	m.s.loans[acc.ID] = *acc
	return nil
}

func (m *memLoans) filter(keep func(loan.Account) bool) []*loan.Account {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	out := make([]*loan.Account, 0)
	for _, id := range m.s.order {
		acc := m.s.loans[id]
		if keep(acc) {
			out = append(out, &acc)
		}
	}
	return out
}

func page(all []*loan.Account, limit, offset int) []*loan.Account {
	if offset >= len(all) {
		return []*loan.Account{}
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end]
}

func (m *memLoans) ListByStatus(_ context.Context, status loan.Status, limit, offset int) ([]*loan.Account, error) {
	all := m.filter(func(a loan.Account) bool { return a.Status == status })
	sort.SliceStable(all, func(i, j int) bool { return all[i].AppliedAt.Before(all[j].AppliedAt) })
	return page(all, limit, offset), nil
}

func (m *memLoans) CountByStatus(_ context.Context, status loan.Status) (int64, error) {
	return int64(len(m.filter(func(a loan.Account) bool { return a.Status == status }))), nil
}

func (m *memLoans) ListByBorrower(_ context.Context, borrowerID string, limit, offset int) ([]*loan.Account, error) {
	all := m.filter(func(a loan.Account) bool { return a.BorrowerID == borrowerID })
	sort.SliceStable(all, func(i, j int) bool { return all[i].AppliedAt.After(all[j].AppliedAt) })
	return page(all, limit, offset), nil
}

func (m *memLoans) CountByBorrower(_ context.Context, borrowerID string) (int64, error) {
	return int64(len(m.filter(func(a loan.Account) bool { return a.BorrowerID == borrowerID }))), nil
}

func (m *memLoans) ListActiveByBorrower(_ context.Context, borrowerID string) ([]*loan.Account, error) {
	return m.filter(func(a loan.Account) bool {
		return a.BorrowerID == borrowerID && !a.Status.Terminal()
	}), nil
}

func (m *memLoans) CountAllByStatus(_ context.Context) (map[loan.Status]int64, error) {
	counts := make(map[loan.Status]int64)
	for _, s := range loan.AllStatuses() {
		counts[s] = 0
	}
	for _, a := range m.filter(func(loan.Account) bool { return true }) {
		counts[a.Status]++
	}
	return counts, nil
}

func (m *memLoans) LockForUpdate(ctx context.Context, id uuid.UUID) (*loan.Account, error) {
	return m.GetByID(ctx, id)
}

func (m *memLoans) LockBorrower(context.Context, string) error { return nil }

func (m *memLoans) WithTx(pgx.Tx) loan.Repository { return m }

type memPayments struct{ s *memStore }

func (m *memPayments) Append(_ context.Context, p *ledger.Payment) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if p.RequestID != nil {
		for _, existing := range m.s.payments {
			if existing.LoanID == p.LoanID && existing.RequestID != nil && *existing.RequestID == *p.RequestID {
				return ledger.ErrDuplicateRequest{RequestID: *p.RequestID}
			}
		}
	}
	m.s.paySeq++
	p.Sequence = m.s.paySeq
	m.s.payments = append(m.s.payments, *p)
	return nil
}

func (m *memPayments) History(_ context.Context, loanID uuid.UUID) ([]*ledger.Payment, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	out := make([]*ledger.Payment, 0)
	for _, p := range m.s.payments {
		if p.LoanID == loanID {
			p := p
			out = append(out, &p)
		}
	}
	return out, nil
}

func (m *memPayments) SumByLoan(ctx context.Context, loanID uuid.UUID) (int64, error) {
	history, _ := m.History(ctx, loanID)
	var sum int64
	for _, p := range history {
		sum += p.Amount
	}
	return sum, nil
}

func (m *memPayments) ExistsByRequestID(_ context.Context, loanID uuid.UUID, requestID string) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, p := range m.s.payments {
		if p.LoanID == loanID && p.RequestID != nil && *p.RequestID == requestID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memPayments) WithTx(pgx.Tx) ledger.Repository { return m }

type memOutbox struct{ s *memStore }

func (m *memOutbox) Create(_ context.Context, msg *outbox.Message) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.failOutboxCreate != nil {
		return m.s.failOutboxCreate
	}
	m.s.msgSeq++
	msg.ID = m.s.msgSeq
	m.s.messages = append(m.s.messages, *msg)
	return nil
}

func (m *memOutbox) GetPending(_ context.Context, limit int) ([]*outbox.Message, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	out := make([]*outbox.Message, 0)
	for _, msg := range m.s.messages {
		if msg.Status == shared.OutboxStatusPending && len(out) < limit {
			msg := msg
			out = append(out, &msg)
		}
	}
	return out, nil
}

func (m *memOutbox) UpdateStatus(_ context.Context, id int64, status shared.OutboxStatus) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for i := range m.s.messages {
		if m.s.messages[i].ID == id {
			m.s.messages[i].Status = status
			return nil
		}
	}
	return outbox.ErrMessageNotFound{ID: id}
}

func (m *memOutbox) IncrementAttempts(_ context.Context, id int64) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for i := range m.s.messages {
		if m.s.messages[i].ID == id {
			m.s.messages[i].Attempts++
			return nil
		}
	}
	return outbox.ErrMessageNotFound{ID: id}
}

func (m *memOutbox) GetByEventID(_ context.Context, eventID uuid.UUID) (*outbox.Message, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, msg := range m.s.messages {
		if msg.EventID == eventID {
			return &msg, nil
		}
	}
	return nil, outbox.ErrMessageNotFound{}
}

func (m *memOutbox) WithTx(pgx.Tx) outbox.Repository { return m }

func newTestRegistry() (*Registry, *memStore) {
	store := newMemStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := NewRegistry(
		logger,
		store,
		&memLoans{s: store},
		&memPayments{s: store},
		&memOutbox{s: store},
		interest.NewCalculator(interest.DefaultRateSchedule()),
	)

	var tick int64
	base := time.Date(2026, time.January, 1, 9, 0, 0, 0, time.UTC)
	reg.now = func() time.Time {
		return base.Add(time.Duration(atomic.AddInt64(&tick, 1)) * time.Second)
	}
	return reg, store
}
