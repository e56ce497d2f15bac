package service

import (
	"sync"
	"time"

	"github.com/comanda-pos/api/internal/enum"
	"github.com/comanda-pos/api/internal/money"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// settledToleranceCents absorbs rounding from multi-way splits. This is a
// deliberate bounded epsilon in integer cents, not floating-point slop.
const settledToleranceCents = 1

// SessionPayment is one partial payment recorded against a session.
type SessionPayment struct {
	Method enum.PaymentMethod
	Amount decimal.Decimal
	At     time.Time
}

// PaymentSession accumulates partial payments against one order (or one
// table's worth of orders) until the balance is discharged. It is a
// client-side accumulation buffer, not a ledger of record: nothing is
// persisted until Commit, and an abandoned session leaves no trace.
//
// Invariant at every observation point, cent-exact:
//
//	OriginalTotal == CurrentTotal + sum(Payments.Amount) - change paid out
//
// CurrentTotal is clamped at zero and non-increasing.
type PaymentSession struct {
	ID            uuid.UUID
	OrderIDs      []uuid.UUID
	TableID       *uuid.UUID // set for table-wide settlement
	OriginalTotal decimal.Decimal
	CurrentTotal  decimal.Decimal
	Payments      []SessionPayment
	Active        bool
	OpenedAt      time.Time
}

// Settled reports whether the remaining balance is within tolerance.
func (s *PaymentSession) Settled() bool {
	return money.Cents(s.CurrentTotal) <= settledToleranceCents
}

// DisplayMethod is the method stamped on settled orders: the last
// payment's method, or SPLIT when the bill was paid in several parts.
func (s *PaymentSession) DisplayMethod() enum.PaymentMethod {
	if len(s.Payments) > 1 {
		return enum.PaymentMethodSplit
	}
	if len(s.Payments) == 1 {
		return s.Payments[0].Method
	}
	return ""
}

func (s *PaymentSession) clone() *PaymentSession {
	c := *s
	c.OrderIDs = append([]uuid.UUID(nil), s.OrderIDs...)
	c.Payments = append([]SessionPayment(nil), s.Payments...)
	if s.TableID != nil {
		t := *s.TableID
		c.TableID = &t
	}
	return &c
}

// SessionStore holds all in-progress settlements. A single mutex guards
// the map and every session mutation: payments for the same session are
// serialized, and since all operations are in-memory arithmetic the
// coarse lock is not a throughput concern.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*PaymentSession
	byOrder  map[uuid.UUID]uuid.UUID // order -> owning session
	now      func() time.Time
}

// NewSessionStore creates an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[uuid.UUID]*PaymentSession),
		byOrder:  make(map[uuid.UUID]uuid.UUID),
		now:      time.Now,
	}
}

// Open creates a session owning the given orders. Fails with
// ErrSettlementOpen if any order is already owned by an active session.
func (st *SessionStore) Open(orderIDs []uuid.UUID, total decimal.Decimal, tableID *uuid.UUID) (*PaymentSession, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	for _, id := range orderIDs {
		if _, owned := st.byOrder[id]; owned {
			return nil, ErrSettlementOpen
		}
	}

	s := &PaymentSession{
		ID:            uuid.New(),
		OrderIDs:      append([]uuid.UUID(nil), orderIDs...),
		TableID:       tableID,
		OriginalTotal: total,
		CurrentTotal:  total,
		Active:        true,
		OpenedAt:      st.now(),
	}
	st.sessions[s.ID] = s
	for _, id := range orderIDs {
		st.byOrder[id] = s.ID
	}
	return s.clone(), nil
}

// Get returns a snapshot of the session.
func (st *SessionStore) Get(id uuid.UUID) (*PaymentSession, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s.clone(), nil
}

// HasPaymentsForOrder reports whether an active session owning the order
// has already recorded payments. Used to block cancellation until those
// payments are reconciled or the session is abandoned.
func (st *SessionStore) HasPaymentsForOrder(orderID uuid.UUID) bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	sid, ok := st.byOrder[orderID]
	if !ok {
		return false
	}
	return len(st.sessions[sid].Payments) > 0
}

// RecordPayment appends a payment and reduces the remaining balance,
// clamped at zero. The returned change is amount minus the balance before
// the payment when the payment overshoots, zero otherwise.
func (st *SessionStore) RecordPayment(id uuid.UUID, method enum.PaymentMethod, amount decimal.Decimal) (*PaymentSession, decimal.Decimal, error) {
	if !method.Valid() {
		return nil, decimal.Zero, ErrInvalidMethod
	}
	if money.Cents(amount) <= 0 {
		return nil, decimal.Zero, ErrInvalidAmount
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[id]
	if !ok {
		return nil, decimal.Zero, ErrSessionNotFound
	}
	if !s.Active {
		return nil, decimal.Zero, ErrSessionClosed
	}
	if money.Cents(s.CurrentTotal) == 0 {
		// Fully discharged; overpayment is only accepted on the payment
		// that settles the balance.
		return nil, decimal.Zero, ErrSessionClosed
	}

	change := money.SubtractClamped(amount, s.CurrentTotal)
	s.CurrentTotal = money.SubtractClamped(s.CurrentTotal, amount)
	s.Payments = append(s.Payments, SessionPayment{
		Method: method,
		Amount: amount,
		At:     st.now(),
	})
	return s.clone(), change, nil
}

// claimForCommit atomically takes the session out of the active state so
// only one commit can proceed. A failed commit must hand the claim back
// with reopen; a successful one discards the session.
func (st *SessionStore) claimForCommit(id uuid.UUID) (*PaymentSession, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if !s.Active {
		return nil, ErrSessionClosed
	}
	s.Active = false
	return s.clone(), nil
}

func (st *SessionStore) reopen(id uuid.UUID) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if s, ok := st.sessions[id]; ok {
		s.Active = true
	}
}

// discard removes the session and releases its order ownership. No
// recorded payments survive: that is intentional, so a mis-keyed partial
// payment never contaminates the order record unless committed.
func (st *SessionStore) discard(id uuid.UUID) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[id]
	if !ok {
		return
	}
	for _, oid := range s.OrderIDs {
		delete(st.byOrder, oid)
	}
	delete(st.sessions, id)
}

// Abandon discards the session without touching any order.
func (st *SessionStore) Abandon(id uuid.UUID) error {
	st.mu.Lock()
	_, ok := st.sessions[id]
	st.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	st.discard(id)
	return nil
}
