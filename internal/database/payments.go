package database

import (
	"context"

	"github.com/comanda-pos/api/internal/enum"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type CreatePaymentParams struct {
	OrderID        uuid.UUID
	Method         enum.PaymentMethod
	Amount         pgtype.Numeric
	AmountReceived pgtype.Numeric
	ChangeAmount   pgtype.Numeric
	ProcessedBy    uuid.UUID
}

func (q *Queries) CreatePayment(ctx context.Context, arg CreatePaymentParams) (Payment, error) {
	const sql = `
		INSERT INTO payments (order_id, method, amount, amount_received, change_amount, processed_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, order_id, method, amount, amount_received, change_amount, processed_by, processed_at
	`
	var p Payment
	err := q.db.QueryRow(ctx, sql,
		arg.OrderID, arg.Method, arg.Amount, arg.AmountReceived, arg.ChangeAmount, arg.ProcessedBy,
	).Scan(&p.ID, &p.OrderID, &p.Method, &p.Amount, &p.AmountReceived,
		&p.ChangeAmount, &p.ProcessedBy, &p.ProcessedAt)
	return p, err
}

func (q *Queries) ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]Payment, error) {
	const sql = `
		SELECT id, order_id, method, amount, amount_received, change_amount, processed_by, processed_at
		FROM payments
		WHERE order_id = $1
		ORDER BY processed_at
	`
	rows, err := q.db.Query(ctx, sql, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.OrderID, &p.Method, &p.Amount,
			&p.AmountReceived, &p.ChangeAmount, &p.ProcessedBy, &p.ProcessedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
