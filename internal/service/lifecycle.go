package service

import "github.com/comanda-pos/api/internal/enum"

// NextStatus is the total forward-transition function over the order
// lifecycle. ok is false for DELIVERED (settlement, not advance, closes a
// delivered order) and for the terminal states. Adding a status without
// extending this switch is a compile-visible hole, which is the point of
// keeping it exhaustive.
func NextStatus(s enum.OrderStatus) (enum.OrderStatus, bool) {
	switch s {
	case enum.OrderStatusPending:
		return enum.OrderStatusConfirmed, true
	case enum.OrderStatusPreparing:
		return enum.OrderStatusReady, true
	case enum.OrderStatusConfirmed:
		return enum.OrderStatusPreparing, true
	case enum.OrderStatusReady:
		return enum.OrderStatusDelivered, true
	case enum.OrderStatusDelivered, enum.OrderStatusFinalized, enum.OrderStatusCancelled:
		return "", false
	}
	return "", false
}

// Cancellable reports whether an order in status s may be cancelled.
// DELIVERED orders are already with the customer and must be settled or
// reconciled externally; terminal states never change.
func Cancellable(s enum.OrderStatus) bool {
	switch s {
	case enum.OrderStatusDelivered, enum.OrderStatusFinalized, enum.OrderStatusCancelled:
		return false
	}
	return true
}

// OpenForItems reports whether items may still be added to an order in
// status s. The total is immutable once the order is finalized or
// cancelled.
func OpenForItems(s enum.OrderStatus) bool {
	return !s.Terminal()
}
