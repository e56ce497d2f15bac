package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/comanda-pos/api/internal/database"
	"github.com/comanda-pos/api/internal/enum"
	"github.com/comanda-pos/api/internal/money"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const maxOrderNumberRetries = 3

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store defines the DB methods the settlement service needs.
// Satisfied by *database.Queries (and its WithTx variant).
type Store interface {
	GetNextOrderNumber(ctx context.Context) (int32, error)
	GetProductForOrder(ctx context.Context, id uuid.UUID) (database.Product, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListActiveOrdersByTable(ctx context.Context, tableID uuid.UUID) ([]database.Order, error)
	AdvanceOrderStatus(ctx context.Context, arg database.AdvanceOrderStatusParams) (database.Order, error)
	CancelOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	SettleOrder(ctx context.Context, arg database.SettleOrderParams) (database.Order, error)
	UpdateOrderTotal(ctx context.Context, arg database.UpdateOrderTotalParams) (database.Order, error)
	CreatePayment(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error)
	GetTable(ctx context.Context, id uuid.UUID) (database.Table, error)
	AssignTable(ctx context.Context, arg database.AssignTableParams) (database.Table, error)
}

// NewStore creates a Store from a DBTX (pool or tx). This lets the service
// rebind its store inside transactions.
type NewStore func(db database.DBTX) Store

// Settlement orchestrates the order lifecycle, split-payment settlement,
// and table-occupancy coupling. It is the entry point HTTP handlers call.
type Settlement struct {
	store    Store
	pool     TxBeginner
	newStore NewStore
	sessions *SessionStore
}

// NewSettlement creates the settlement service.
func NewSettlement(store Store, pool TxBeginner, newStore NewStore, sessions *SessionStore) *Settlement {
	return &Settlement{store: store, pool: pool, newStore: newStore, sessions: sessions}
}

// Sessions exposes the session store for read access (table coordinator,
// cancellation checks in handlers).
func (s *Settlement) Sessions() *SessionStore {
	return s.sessions
}

// --- Order creation ---

// CreateOrderRequest is the validated input for creating an order.
type CreateOrderRequest struct {
	TableID   string // empty for counter / walk-up orders
	Notes     string
	Confirmed bool // true when the order is created already accepted
	CreatedBy uuid.UUID
	Items     []OrderItemRequest
}

// OrderItemRequest is a single line in an order.
type OrderItemRequest struct {
	ProductID string
	Quantity  int32
	Notes     string
}

// CreateOrderResult is the created order with its items.
type CreateOrderResult struct {
	Order database.Order
	Items []database.OrderItem
}

// CreateOrder validates, snapshots prices, and creates an order
// atomically. Dine-in orders occupy their table in the same transaction.
// Retries on order_number unique violations (concurrent transactions can
// observe the same MAX).
func (s *Settlement) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("items[%d]: %w", i, ErrInvalidQuantity)
		}
	}

	var tableID pgtype.UUID
	if req.TableID != "" {
		tid, err := uuid.Parse(req.TableID)
		if err != nil {
			return nil, ErrTableNotFound
		}
		tableID = pgtype.UUID{Bytes: tid, Valid: true}
	}

	var lastErr error
	for attempt := 0; attempt < maxOrderNumberRetries; attempt++ {
		result, err := s.createOrderTx(ctx, req, tableID)
		if err == nil {
			return result, nil
		}
		if isOrderNumberConflict(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

func isOrderNumberConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "orders_order_number_key"
	}
	return false
}

func (s *Settlement) createOrderTx(ctx context.Context, req CreateOrderRequest, tableID pgtype.UUID) (*CreateOrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	nextNum, err := store.GetNextOrderNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("get next order number: %w", err)
	}
	orderNumber := fmt.Sprintf("CMD-%03d", nextNum)

	// Price snapshots + cent-exact total.
	type line struct {
		productID uuid.UUID
		quantity  int32
		unitPrice decimal.Decimal
		subtotal  decimal.Decimal
		notes     string
	}
	var lines []line
	total := decimal.Zero
	for i, item := range req.Items {
		pid, err := uuid.Parse(item.ProductID)
		if err != nil {
			return nil, fmt.Errorf("items[%d]: %w", i, ErrProductNotFound)
		}
		product, err := store.GetProductForOrder(ctx, pid)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("items[%d]: %w", i, ErrProductNotFound)
			}
			return nil, fmt.Errorf("items[%d]: get product: %w", i, err)
		}
		unitPrice := numericToDecimal(product.Price)
		subtotal := money.Line(item.Quantity, unitPrice)
		total = money.Add(total, subtotal)
		lines = append(lines, line{
			productID: pid,
			quantity:  item.Quantity,
			unitPrice: unitPrice,
			subtotal:  subtotal,
			notes:     item.Notes,
		})
	}

	status := enum.OrderStatusPending
	if req.Confirmed {
		status = enum.OrderStatusConfirmed
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		OrderNumber: orderNumber,
		TableID:     tableID,
		Status:      status,
		Total:       decimalToNumeric(total),
		Notes:       textOrNull(req.Notes),
		CreatedBy:   req.CreatedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	var items []database.OrderItem
	for _, l := range lines {
		item, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
			OrderID:   order.ID,
			ProductID: l.productID,
			Quantity:  l.quantity,
			UnitPrice: decimalToNumeric(l.unitPrice),
			Subtotal:  decimalToNumeric(l.subtotal),
			Notes:     textOrNull(l.notes),
		})
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
		items = append(items, item)
	}

	// Dine-in: couple the table to the new order.
	if tableID.Valid {
		if _, err := store.AssignTable(ctx, database.AssignTableParams{
			ID:         tableID.Bytes,
			AssignedTo: pgtype.UUID{Bytes: req.CreatedBy, Valid: true},
		}); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				// No row updated: the table is missing or under maintenance.
				if _, getErr := store.GetTable(ctx, tableID.Bytes); errors.Is(getErr, pgx.ErrNoRows) {
					return nil, ErrTableNotFound
				}
				return nil, ErrTableUnavailable
			}
			return nil, fmt.Errorf("assign table: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &CreateOrderResult{Order: order, Items: items}, nil
}

// --- Lifecycle operations ---

// AdvanceOrderStatus moves an order to its next lifecycle status. The
// write compares against the status we read, so two racing advances
// cannot both apply; the loser gets ErrStatusConflict.
func (s *Settlement) AdvanceOrderStatus(ctx context.Context, orderID uuid.UUID) (database.Order, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}

	next, ok := NextStatus(order.Status)
	if !ok {
		return database.Order{}, ErrTerminalState
	}

	updated, err := s.store.AdvanceOrderStatus(ctx, database.AdvanceOrderStatusParams{
		ID:         orderID,
		NewStatus:  next,
		FromStatus: order.Status,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrStatusConflict
		}
		return database.Order{}, fmt.Errorf("advance order status: %w", err)
	}
	return updated, nil
}

// CancelOrder cancels an active order. Orders with an open settlement
// holding recorded payments cannot be cancelled; those payments must be
// reconciled or the session abandoned first (refunds are out of scope).
func (s *Settlement) CancelOrder(ctx context.Context, orderID uuid.UUID) (database.Order, error) {
	if s.sessions.HasPaymentsForOrder(orderID) {
		return database.Order{}, ErrInvalidState
	}

	cancelled, err := s.store.CancelOrder(ctx, orderID)
	if err == nil {
		return cancelled, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return database.Order{}, fmt.Errorf("cancel order: %w", err)
	}

	// No row updated: distinguish missing from ineligible.
	if _, getErr := s.store.GetOrder(ctx, orderID); getErr != nil {
		if errors.Is(getErr, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order for cancel: %w", getErr)
	}
	return database.Order{}, ErrInvalidState
}

// AddItems appends items to an open order and recomputes its total from
// all line subtotals, cent-exact. The order row is locked for the whole
// recomputation.
func (s *Settlement) AddItems(ctx context.Context, orderID uuid.UUID, items []OrderItemRequest) (*CreateOrderResult, error) {
	if len(items) == 0 {
		return nil, ErrEmptyItems
	}
	for i, item := range items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("items[%d]: %w", i, ErrInvalidQuantity)
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if !OpenForItems(order.Status) || order.IsPaid {
		return nil, ErrClosedOrder
	}

	for i, item := range items {
		pid, err := uuid.Parse(item.ProductID)
		if err != nil {
			return nil, fmt.Errorf("items[%d]: %w", i, ErrProductNotFound)
		}
		product, err := store.GetProductForOrder(ctx, pid)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("items[%d]: %w", i, ErrProductNotFound)
			}
			return nil, fmt.Errorf("items[%d]: get product: %w", i, err)
		}
		unitPrice := numericToDecimal(product.Price)
		if _, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
			OrderID:   orderID,
			ProductID: pid,
			Quantity:  item.Quantity,
			UnitPrice: decimalToNumeric(unitPrice),
			Subtotal:  decimalToNumeric(money.Line(item.Quantity, unitPrice)),
			Notes:     textOrNull(item.Notes),
		}); err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
	}

	// Recompute the total from every line, never by incrementing.
	all, err := store.ListOrderItemsByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	total := decimal.Zero
	for _, it := range all {
		total = money.Add(total, numericToDecimal(it.Subtotal))
	}

	updated, err := store.UpdateOrderTotal(ctx, database.UpdateOrderTotalParams{
		ID:    orderID,
		Total: decimalToNumeric(total),
	})
	if err != nil {
		return nil, fmt.Errorf("update order total: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &CreateOrderResult{Order: updated, Items: all}, nil
}

// --- Settlement operations ---

// OpenSettlementRequest targets either one order or a whole table.
type OpenSettlementRequest struct {
	OrderID string
	TableID string
}

// OpenSettlement starts a payment session for an order, or one combined
// session across every active order on a table.
func (s *Settlement) OpenSettlement(ctx context.Context, req OpenSettlementRequest) (*PaymentSession, error) {
	switch {
	case req.OrderID != "" && req.TableID == "":
		return s.openOrderSettlement(ctx, req.OrderID)
	case req.TableID != "" && req.OrderID == "":
		return s.openTableSettlement(ctx, req.TableID)
	default:
		return nil, errors.New("exactly one of order_id or table_id is required")
	}
}

func (s *Settlement) openOrderSettlement(ctx context.Context, orderID string) (*PaymentSession, error) {
	oid, err := uuid.Parse(orderID)
	if err != nil {
		return nil, ErrOrderNotFound
	}
	order, err := s.store.GetOrder(ctx, oid)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order.IsPaid {
		return nil, ErrAlreadyPaid
	}
	if !order.IsActive {
		return nil, ErrInvalidState
	}
	return s.sessions.Open([]uuid.UUID{order.ID}, numericToDecimal(order.Total), nil)
}

func (s *Settlement) openTableSettlement(ctx context.Context, tableID string) (*PaymentSession, error) {
	tid, err := uuid.Parse(tableID)
	if err != nil {
		return nil, ErrTableNotFound
	}
	if _, err := s.store.GetTable(ctx, tid); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTableNotFound
		}
		return nil, fmt.Errorf("get table: %w", err)
	}

	orders, err := s.store.ListActiveOrdersByTable(ctx, tid)
	if err != nil {
		return nil, fmt.Errorf("list active orders: %w", err)
	}
	if len(orders) == 0 {
		return nil, ErrInvalidState
	}

	total := decimal.Zero
	ids := make([]uuid.UUID, 0, len(orders))
	for _, o := range orders {
		if o.IsPaid {
			return nil, ErrAlreadyPaid
		}
		total = money.Add(total, numericToDecimal(o.Total))
		ids = append(ids, o.ID)
	}
	return s.sessions.Open(ids, total, &tid)
}

// RecordPayment adds a partial payment to a session and returns the
// updated session snapshot plus any change owed to the payer.
func (s *Settlement) RecordPayment(ctx context.Context, sessionID uuid.UUID, method enum.PaymentMethod, amount decimal.Decimal) (*PaymentSession, decimal.Decimal, error) {
	return s.sessions.RecordPayment(sessionID, method, amount)
}

// GetSettlement returns a snapshot of an open session.
func (s *Settlement) GetSettlement(sessionID uuid.UUID) (*PaymentSession, error) {
	return s.sessions.Get(sessionID)
}

// AbandonSettlement discards a session; no partial payments persist.
func (s *Settlement) AbandonSettlement(sessionID uuid.UUID) error {
	return s.sessions.Abandon(sessionID)
}

// CommitSettlement finalizes a settled session: every owned order is
// locked, its payments persisted, and the order marked paid and inactive
// in one transaction. DELIVERED orders advance to FINALIZED. All-or-
// nothing across the order set; a second commit of the same session fails
// deterministically.
func (s *Settlement) CommitSettlement(ctx context.Context, sessionID uuid.UUID, processedBy uuid.UUID) ([]database.Order, error) {
	session, err := s.sessions.claimForCommit(sessionID)
	if err != nil {
		return nil, err
	}

	settled, err := s.commitTx(ctx, session, processedBy)
	if err != nil {
		s.sessions.reopen(sessionID)
		return nil, err
	}
	s.sessions.discard(sessionID)
	return settled, nil
}

func (s *Settlement) commitTx(ctx context.Context, session *PaymentSession, processedBy uuid.UUID) ([]database.Order, error) {
	// Zero-total sessions (fully comped orders) have nothing to pay and
	// commit with no payment rows; anything owed needs at least one payment.
	if len(session.Payments) == 0 && money.Cents(session.OriginalTotal) > 0 {
		return nil, ErrNoPayments
	}
	if !session.Settled() {
		return nil, ErrIncompleteSettlement
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	// Lock every order first so concurrent commits and cancellations
	// serialize, then re-check eligibility under the lock.
	orders := make([]database.Order, 0, len(session.OrderIDs))
	for _, oid := range session.OrderIDs {
		order, err := store.GetOrderForUpdate(ctx, oid)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrOrderNotFound
			}
			return nil, fmt.Errorf("lock order: %w", err)
		}
		if order.IsPaid {
			return nil, ErrAlreadyPaid
		}
		if order.Status == enum.OrderStatusCancelled {
			return nil, ErrInvalidState
		}
		orders = append(orders, order)
	}

	for _, alloc := range allocatePayments(orders, session.Payments) {
		if _, err := store.CreatePayment(ctx, database.CreatePaymentParams{
			OrderID:        alloc.orderID,
			Method:         alloc.method,
			Amount:         decimalToNumeric(alloc.amount),
			AmountReceived: alloc.amountReceived,
			ChangeAmount:   alloc.changeAmount,
			ProcessedBy:    processedBy,
		}); err != nil {
			return nil, fmt.Errorf("create payment: %w", err)
		}
	}

	// No payments (zero total) stamps a NULL method.
	var displayMethod pgtype.Text
	if m := session.DisplayMethod(); m != "" {
		displayMethod = pgtype.Text{String: string(m), Valid: true}
	}

	settled := make([]database.Order, 0, len(orders))
	for _, order := range orders {
		finalStatus := order.Status
		if finalStatus == enum.OrderStatusDelivered {
			finalStatus = enum.OrderStatusFinalized
		}
		updated, err := store.SettleOrder(ctx, database.SettleOrderParams{
			ID:            order.ID,
			Status:        finalStatus,
			PaymentMethod: displayMethod,
		})
		if err != nil {
			return nil, fmt.Errorf("settle order: %w", err)
		}
		settled = append(settled, updated)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return settled, nil
}

// paymentAllocation is one persisted payment row: a session payment (or
// the part of one) applied to a specific order.
type paymentAllocation struct {
	orderID        uuid.UUID
	method         enum.PaymentMethod
	amount         decimal.Decimal
	amountReceived pgtype.Numeric
	changeAmount   pgtype.Numeric
}

// allocatePayments distributes session payments across order balances
// sequentially, so each order's persisted payments sum to at most its
// total. Whatever a payment tenders beyond the combined balance is
// recorded as change on that payment's row, never as a negative balance.
func allocatePayments(orders []database.Order, payments []SessionPayment) []paymentAllocation {
	remaining := make([]int64, len(orders))
	for i, o := range orders {
		remaining[i] = money.Cents(numericToDecimal(o.Total))
	}

	var allocs []paymentAllocation
	idx := 0
	for _, p := range payments {
		tendered := money.Cents(p.Amount)
		left := tendered
		for left > 0 && idx < len(orders) {
			if remaining[idx] == 0 {
				idx++
				continue
			}
			applied := left
			if applied > remaining[idx] {
				applied = remaining[idx]
			}
			remaining[idx] -= applied
			left -= applied

			alloc := paymentAllocation{
				orderID: orders[idx].ID,
				method:  p.Method,
				amount:  money.FromCents(applied),
			}
			// Change only on the payment's final slice, once nothing is left
			// to apply it to.
			if left > 0 && idx == len(orders)-1 && remaining[idx] == 0 {
				alloc.amountReceived = decimalToNumeric(money.FromCents(applied + left))
				alloc.changeAmount = decimalToNumeric(money.FromCents(left))
				left = 0
			}
			allocs = append(allocs, alloc)
		}
	}
	return allocs
}

// --- Helpers ---

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
