package enum

// ── State machines (CHECK constrained in DB) ──

// OrderStatus is the order lifecycle state. Forward transitions are
// PENDING → CONFIRMED → PREPARING → READY → DELIVERED; FINALIZED and
// CANCELLED are terminal.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusPreparing OrderStatus = "PREPARING"
	OrderStatusReady     OrderStatus = "READY"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusFinalized OrderStatus = "FINALIZED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusPreparing,
		OrderStatusReady, OrderStatusDelivered, OrderStatusFinalized,
		OrderStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether s admits no further transition of any kind.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusFinalized || s == OrderStatusCancelled
}

type TableStatus string

const (
	TableStatusFree        TableStatus = "FREE"
	TableStatusOccupied    TableStatus = "OCCUPIED"
	TableStatusMaintenance TableStatus = "MAINTENANCE"
)

func (s TableStatus) Valid() bool {
	switch s {
	case TableStatusFree, TableStatusOccupied, TableStatusMaintenance:
		return true
	}
	return false
}

// ── Configurable labels (no DB constraint) ──

type PaymentMethod string

const (
	PaymentMethodPix  PaymentMethod = "PIX"
	PaymentMethodCard PaymentMethod = "CARD"
	PaymentMethodCash PaymentMethod = "CASH"

	// PaymentMethodSplit is never a payment row method; it is the display
	// method stamped on an order settled by more than one payment.
	PaymentMethodSplit PaymentMethod = "SPLIT"
)

// Valid reports whether m may be used on an individual payment.
// SPLIT is excluded: it only appears as an order's display method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodPix, PaymentMethodCard, PaymentMethodCash:
		return true
	}
	return false
}

// ── Roles (CHECK constrained in DB) ──

const (
	UserRoleAdmin   = "ADMIN"
	UserRoleWaiter  = "WAITER"
	UserRoleKitchen = "KITCHEN"
	UserRoleCashier = "CASHIER"
)
