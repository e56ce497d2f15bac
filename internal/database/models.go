package database

import (
	"time"

	"github.com/comanda-pos/api/internal/enum"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Order is a row in the orders table. Total is immutable once the order
// reaches FINALIZED or CANCELLED; IsActive mirrors "counts toward table
// occupancy".
type Order struct {
	ID            uuid.UUID
	OrderNumber   string
	TableID       pgtype.UUID // null for counter / walk-up orders
	Status        enum.OrderStatus
	Total         pgtype.Numeric
	IsPaid        bool
	IsActive      bool
	PaymentMethod pgtype.Text // display method stamped at settlement
	Notes         pgtype.Text
	CreatedBy     uuid.UUID
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type OrderItem struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	ProductID uuid.UUID
	Quantity  int32
	UnitPrice pgtype.Numeric // price snapshot at the time the item was added
	Subtotal  pgtype.Numeric
	Notes     pgtype.Text
	CreatedAt time.Time
}

type Payment struct {
	ID             uuid.UUID
	OrderID        uuid.UUID
	Method         enum.PaymentMethod
	Amount         pgtype.Numeric
	AmountReceived pgtype.Numeric // CASH only
	ChangeAmount   pgtype.Numeric // CASH only
	ProcessedBy    uuid.UUID
	ProcessedAt    time.Time
}

type Table struct {
	ID         uuid.UUID
	Number     int32
	Capacity   int32
	Status     enum.TableStatus
	AssignedTo pgtype.UUID
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Product struct {
	ID        uuid.UUID
	Name      string
	Price     pgtype.Numeric
	IsActive  bool
	CreatedAt time.Time
}

type User struct {
	ID             uuid.UUID
	FullName       string
	Email          string
	HashedPassword string
	Role           string
	IsActive       bool
	CreatedAt      time.Time
}
