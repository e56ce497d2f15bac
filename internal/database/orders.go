package database

import (
	"context"

	"github.com/comanda-pos/api/internal/enum"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, order_number, table_id, status, total, is_paid, is_active,
	payment_method, notes, created_by, created_at, updated_at`

func scanOrder(row interface{ Scan(dest ...any) error }) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.TableID, &o.Status, &o.Total, &o.IsPaid,
		&o.IsActive, &o.PaymentMethod, &o.Notes, &o.CreatedBy, &o.CreatedAt,
		&o.UpdatedAt,
	)
	return o, err
}

// GetNextOrderNumber returns MAX(order number)+1 over all orders. The
// scan must be global: order_number carries a global unique constraint,
// so any narrower scope would regenerate numbers that already exist.
// Concurrent transactions can still observe the same MAX; callers retry
// on the resulting unique violation.
func (q *Queries) GetNextOrderNumber(ctx context.Context) (int32, error) {
	const sql = `
		SELECT COALESCE(MAX(CAST(SUBSTRING(order_number FROM 5) AS INTEGER)), 0) + 1
		FROM orders
	`
	var n int32
	err := q.db.QueryRow(ctx, sql).Scan(&n)
	return n, err
}

type CreateOrderParams struct {
	OrderNumber string
	TableID     pgtype.UUID
	Status      enum.OrderStatus
	Total       pgtype.Numeric
	Notes       pgtype.Text
	CreatedBy   uuid.UUID
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	const sql = `
		INSERT INTO orders (order_number, table_id, status, total, notes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + orderColumns
	return scanOrder(q.db.QueryRow(ctx, sql,
		arg.OrderNumber, arg.TableID, arg.Status, arg.Total, arg.Notes, arg.CreatedBy))
}

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	const sql = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	return scanOrder(q.db.QueryRow(ctx, sql, id))
}

// GetOrderForUpdate locks the order row (FOR NO KEY UPDATE) so concurrent
// settlement commits and status changes serialize on it.
func (q *Queries) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (Order, error) {
	const sql = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR NO KEY UPDATE`
	return scanOrder(q.db.QueryRow(ctx, sql, id))
}

type ListOrdersParams struct {
	Status  pgtype.Text // optional filter
	TableID pgtype.UUID // optional filter
	Active  pgtype.Bool // optional filter
	Limit   int32
	Offset  int32
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	const sql = `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE ($1::text IS NULL OR status = $1)
		  AND ($2::uuid IS NULL OR table_id = $2)
		  AND ($3::boolean IS NULL OR is_active = $3)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5
	`
	rows, err := q.db.Query(ctx, sql, arg.Status, arg.TableID, arg.Active, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// ListActiveOrdersByTable returns the orders that keep a table occupied.
func (q *Queries) ListActiveOrdersByTable(ctx context.Context, tableID uuid.UUID) ([]Order, error) {
	const sql = `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE table_id = $1 AND is_active = true
		ORDER BY created_at
	`
	rows, err := q.db.Query(ctx, sql, tableID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (q *Queries) CountActiveOrdersByTable(ctx context.Context, tableID uuid.UUID) (int64, error) {
	const sql = `SELECT COUNT(*) FROM orders WHERE table_id = $1 AND is_active = true`
	var n int64
	err := q.db.QueryRow(ctx, sql, tableID).Scan(&n)
	return n, err
}

type AdvanceOrderStatusParams struct {
	ID         uuid.UUID
	NewStatus  enum.OrderStatus
	FromStatus enum.OrderStatus
}

// AdvanceOrderStatus applies a status transition with compare-and-swap on
// the current status. Zero rows back means another request advanced the
// order first; callers surface that as a conflict.
func (q *Queries) AdvanceOrderStatus(ctx context.Context, arg AdvanceOrderStatusParams) (Order, error) {
	const sql = `
		UPDATE orders
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status = $3
		RETURNING ` + orderColumns
	return scanOrder(q.db.QueryRow(ctx, sql, arg.ID, arg.NewStatus, arg.FromStatus))
}

// CancelOrder cancels atomically: only active orders outside DELIVERED and
// the terminal states can be cancelled. Zero rows back means the
// precondition did not hold.
func (q *Queries) CancelOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	const sql = `
		UPDATE orders
		SET status = 'CANCELLED', is_active = false, updated_at = now()
		WHERE id = $1
		  AND is_active = true
		  AND status NOT IN ('DELIVERED', 'FINALIZED', 'CANCELLED')
		RETURNING ` + orderColumns
	return scanOrder(q.db.QueryRow(ctx, sql, id))
}

type SettleOrderParams struct {
	ID            uuid.UUID
	Status        enum.OrderStatus
	PaymentMethod pgtype.Text
}

// SettleOrder marks an order paid and inactive with its display payment
// method. The status is computed by the caller (DELIVERED advances to
// FINALIZED; earlier statuses keep their value).
func (q *Queries) SettleOrder(ctx context.Context, arg SettleOrderParams) (Order, error) {
	const sql = `
		UPDATE orders
		SET is_paid = true, is_active = false, status = $2, payment_method = $3,
		    updated_at = now()
		WHERE id = $1 AND is_paid = false
		RETURNING ` + orderColumns
	return scanOrder(q.db.QueryRow(ctx, sql, arg.ID, arg.Status, arg.PaymentMethod))
}

type UpdateOrderTotalParams struct {
	ID    uuid.UUID
	Total pgtype.Numeric
}

func (q *Queries) UpdateOrderTotal(ctx context.Context, arg UpdateOrderTotalParams) (Order, error) {
	const sql = `
		UPDATE orders
		SET total = $2, updated_at = now()
		WHERE id = $1
		RETURNING ` + orderColumns
	return scanOrder(q.db.QueryRow(ctx, sql, arg.ID, arg.Total))
}

type CreateOrderItemParams struct {
	OrderID   uuid.UUID
	ProductID uuid.UUID
	Quantity  int32
	UnitPrice pgtype.Numeric
	Subtotal  pgtype.Numeric
	Notes     pgtype.Text
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	const sql = `
		INSERT INTO order_items (order_id, product_id, quantity, unit_price, subtotal, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, order_id, product_id, quantity, unit_price, subtotal, notes, created_at
	`
	var it OrderItem
	err := q.db.QueryRow(ctx, sql,
		arg.OrderID, arg.ProductID, arg.Quantity, arg.UnitPrice, arg.Subtotal, arg.Notes,
	).Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.UnitPrice,
		&it.Subtotal, &it.Notes, &it.CreatedAt)
	return it, err
}

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	const sql = `
		SELECT id, order_id, product_id, quantity, unit_price, subtotal, notes, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY created_at
	`
	rows, err := q.db.Query(ctx, sql, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity,
			&it.UnitPrice, &it.Subtotal, &it.Notes, &it.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
