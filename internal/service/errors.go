package service

import "errors"

// Business outcomes returned by the settlement service. All of these are
// expected, recoverable results that handlers map to 400/409-class
// responses; none indicate a fault in the process.
var (
	ErrEmptyItems      = errors.New("items are required")
	ErrInvalidQuantity = errors.New("quantity must be > 0")
	ErrInvalidAmount   = errors.New("amount must be > 0")
	ErrInvalidMethod   = errors.New("invalid payment method")
	ErrProductNotFound = errors.New("product not found")
	ErrOrderNotFound   = errors.New("order not found")
	ErrTableNotFound   = errors.New("table not found")
	ErrSessionNotFound = errors.New("payment session not found")

	// ErrTerminalState: advance attempted on a status with no successor.
	ErrTerminalState = errors.New("order status has no further transition")

	// ErrStatusConflict: a concurrent request advanced the order between
	// our read and write. The caller should reload and retry.
	ErrStatusConflict = errors.New("order status changed, please retry")

	// ErrInvalidState: cancellation or mutation attempted on an order that
	// is closed or otherwise ineligible for the operation.
	ErrInvalidState = errors.New("operation not allowed in current order state")

	// ErrClosedOrder: item mutation attempted after finalization,
	// cancellation, or full payment.
	ErrClosedOrder = errors.New("order is closed to item changes")

	// ErrAlreadyPaid: settlement opened on an order already marked paid.
	ErrAlreadyPaid = errors.New("order is already paid")

	// ErrIncompleteSettlement: commit attempted while the remaining
	// balance exceeds the one-cent tolerance.
	ErrIncompleteSettlement = errors.New("remaining balance exceeds tolerance")

	// ErrTableStillActive: release attempted while active orders remain.
	ErrTableStillActive = errors.New("table still has active orders")

	// ErrTableUnavailable: operation attempted on a MAINTENANCE table
	// (dine-in order placed on it, or a release).
	ErrTableUnavailable = errors.New("table is under maintenance")

	// ErrSettlementOpen: a second settlement opened against an order that
	// already has an active session. Sessions own their order exclusively.
	ErrSettlementOpen = errors.New("order already has an open settlement")

	// ErrSessionClosed: payment recorded or commit attempted on a session
	// that was already committed or abandoned.
	ErrSessionClosed = errors.New("payment session is not active")

	// ErrNoPayments: commit attempted on a session with no payments.
	ErrNoPayments = errors.New("settlement has no recorded payments")
)
