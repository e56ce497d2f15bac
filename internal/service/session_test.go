package service

import (
	"testing"

	"github.com/comanda-pos/api/internal/enum"
	"github.com/comanda-pos/api/internal/money"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func amount(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func openSession(t *testing.T, st *SessionStore, total string) *PaymentSession {
	t.Helper()
	s, err := st.Open([]uuid.UUID{uuid.New()}, amount(t, total), nil)
	require.NoError(t, err)
	return s
}

// conservationHolds asserts originalTotal == currentTotal + sum(payments) -
// change paid out, cent-exact.
func conservationHolds(t *testing.T, s *PaymentSession) {
	t.Helper()
	paid := int64(0)
	for _, p := range s.Payments {
		paid += money.Cents(p.Amount)
	}
	balance := money.Cents(s.CurrentTotal)
	original := money.Cents(s.OriginalTotal)
	// Payments can overshoot by the change amount; below the clamp point
	// the identity must be exact.
	if paid <= original {
		assert.Equal(t, original, balance+paid, "conservation: original=%d balance=%d paid=%d", original, balance, paid)
	} else {
		assert.Zero(t, balance, "overpaid session must have zero balance")
	}
}

func TestSplitSettlementExact(t *testing.T) {
	// Order total 36.00 (2x10.50 + 1x15.00); pay 20.00 CASH then 16.00 PIX.
	st := NewSessionStore()
	s := openSession(t, st, "36.00")

	s, change, err := st.RecordPayment(s.ID, enum.PaymentMethodCash, amount(t, "20.00"))
	require.NoError(t, err)
	assert.True(t, change.IsZero())
	assert.True(t, s.CurrentTotal.Equal(amount(t, "16.00")), "balance %s", s.CurrentTotal)
	assert.False(t, s.Settled())
	conservationHolds(t, s)

	s, change, err = st.RecordPayment(s.ID, enum.PaymentMethodPix, amount(t, "16.00"))
	require.NoError(t, err)
	assert.True(t, change.IsZero())
	assert.True(t, s.CurrentTotal.IsZero(), "balance %s", s.CurrentTotal)
	assert.True(t, s.Settled())
	assert.Equal(t, enum.PaymentMethodSplit, s.DisplayMethod())
	conservationHolds(t, s)
}

func TestOverpaymentYieldsChange(t *testing.T) {
	// Order total 10.00; pay 15.00 CASH: balance clamps at zero, change 5.00.
	st := NewSessionStore()
	s := openSession(t, st, "10.00")

	s, change, err := st.RecordPayment(s.ID, enum.PaymentMethodCash, amount(t, "15.00"))
	require.NoError(t, err)
	assert.True(t, change.Equal(amount(t, "5.00")), "change %s", change)
	assert.True(t, s.CurrentTotal.IsZero())
	assert.True(t, s.Settled())
	assert.Equal(t, enum.PaymentMethodCash, s.DisplayMethod())
	conservationHolds(t, s)
}

func TestPartialPaymentNotSettled(t *testing.T) {
	// Order total 21.98; pay 10.00 PIX: balance 11.98, not settled.
	st := NewSessionStore()
	s := openSession(t, st, "21.98")

	s, change, err := st.RecordPayment(s.ID, enum.PaymentMethodPix, amount(t, "10.00"))
	require.NoError(t, err)
	assert.True(t, change.IsZero())
	assert.True(t, s.CurrentTotal.Equal(amount(t, "11.98")), "balance %s", s.CurrentTotal)
	assert.False(t, s.Settled())
	conservationHolds(t, s)
}

func TestOneCentToleranceSettles(t *testing.T) {
	st := NewSessionStore()
	s := openSession(t, st, "30.00")

	// Three-way split of 30.00 keyed as 10.00 + 10.00 + 9.99.
	for _, a := range []string{"10.00", "10.00", "9.99"} {
		var err error
		s, _, err = st.RecordPayment(s.ID, enum.PaymentMethodCard, amount(t, a))
		require.NoError(t, err)
	}
	assert.True(t, s.CurrentTotal.Equal(amount(t, "0.01")))
	assert.True(t, s.Settled(), "1 cent remaining is within tolerance")
}

func TestBalanceMonotonicAndNeverNegative(t *testing.T) {
	st := NewSessionStore()
	s := openSession(t, st, "50.00")

	prev := money.Cents(s.CurrentTotal)
	for _, a := range []string{"5.00", "0.01", "40.00", "100.00"} {
		var err error
		s, _, err = st.RecordPayment(s.ID, enum.PaymentMethodCash, amount(t, a))
		require.NoError(t, err)
		cur := money.Cents(s.CurrentTotal)
		assert.LessOrEqual(t, cur, prev, "balance must be non-increasing")
		assert.GreaterOrEqual(t, cur, int64(0), "balance must never go negative")
		conservationHolds(t, s)
		prev = cur
	}

	// Fully discharged: nothing more can be recorded.
	_, _, err := st.RecordPayment(s.ID, enum.PaymentMethodCash, amount(t, "3.00"))
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestRecordPaymentValidation(t *testing.T) {
	st := NewSessionStore()
	s := openSession(t, st, "10.00")

	_, _, err := st.RecordPayment(s.ID, enum.PaymentMethodCash, decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, _, err = st.RecordPayment(s.ID, enum.PaymentMethodCash, amount(t, "-5.00"))
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, _, err = st.RecordPayment(s.ID, enum.PaymentMethod("CHEQUE"), amount(t, "5.00"))
	assert.ErrorIs(t, err, ErrInvalidMethod)

	// SPLIT is a display method, not a payable one.
	_, _, err = st.RecordPayment(s.ID, enum.PaymentMethodSplit, amount(t, "5.00"))
	assert.ErrorIs(t, err, ErrInvalidMethod)

	_, _, err = st.RecordPayment(uuid.New(), enum.PaymentMethodCash, amount(t, "5.00"))
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionExclusivity(t *testing.T) {
	st := NewSessionStore()
	orderID := uuid.New()

	_, err := st.Open([]uuid.UUID{orderID}, decimal.NewFromInt(10), nil)
	require.NoError(t, err)

	// A second session for the same order is rejected while the first lives.
	_, err = st.Open([]uuid.UUID{orderID}, decimal.NewFromInt(10), nil)
	assert.ErrorIs(t, err, ErrSettlementOpen)
}

func TestAbandonLeavesNoTrace(t *testing.T) {
	st := NewSessionStore()
	orderID := uuid.New()

	s, err := st.Open([]uuid.UUID{orderID}, decimal.NewFromInt(25), nil)
	require.NoError(t, err)

	_, _, err = st.RecordPayment(s.ID, enum.PaymentMethodCard, amount(t, "10.00"))
	require.NoError(t, err)
	assert.True(t, st.HasPaymentsForOrder(orderID))

	require.NoError(t, st.Abandon(s.ID))
	assert.False(t, st.HasPaymentsForOrder(orderID))

	_, err = st.Get(s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	// The order is free for a fresh settlement.
	_, err = st.Open([]uuid.UUID{orderID}, decimal.NewFromInt(25), nil)
	assert.NoError(t, err)

	assert.ErrorIs(t, st.Abandon(s.ID), ErrSessionNotFound)
}

func TestClaimForCommitIsExclusive(t *testing.T) {
	st := NewSessionStore()
	s := openSession(t, st, "10.00")

	_, _, err := st.RecordPayment(s.ID, enum.PaymentMethodPix, amount(t, "10.00"))
	require.NoError(t, err)

	claimed, err := st.claimForCommit(s.ID)
	require.NoError(t, err)
	assert.True(t, claimed.Settled())

	// Second claim fails while the first commit is in flight.
	_, err = st.claimForCommit(s.ID)
	assert.ErrorIs(t, err, ErrSessionClosed)

	// Payments are frozen during commit too.
	_, _, err = st.RecordPayment(s.ID, enum.PaymentMethodPix, amount(t, "1.00"))
	assert.ErrorIs(t, err, ErrSessionClosed)

	// A failed commit hands the claim back.
	st.reopen(s.ID)
	_, err = st.claimForCommit(s.ID)
	assert.NoError(t, err)
}

func TestSnapshotsAreCopies(t *testing.T) {
	st := NewSessionStore()
	s := openSession(t, st, "10.00")

	snap, _, err := st.RecordPayment(s.ID, enum.PaymentMethodCash, amount(t, "2.00"))
	require.NoError(t, err)

	// Mutating the snapshot must not leak into the store.
	snap.Payments[0].Amount = amount(t, "999.00")
	snap.CurrentTotal = decimal.Zero

	fresh, err := st.Get(s.ID)
	require.NoError(t, err)
	assert.True(t, fresh.Payments[0].Amount.Equal(amount(t, "2.00")))
	assert.True(t, fresh.CurrentTotal.Equal(amount(t, "8.00")))
}
