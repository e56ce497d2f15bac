package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// GetProductForOrder looks up an active product's price snapshot for item
// total computation.
func (q *Queries) GetProductForOrder(ctx context.Context, id uuid.UUID) (Product, error) {
	const sql = `
		SELECT id, name, price, is_active, created_at
		FROM products
		WHERE id = $1 AND is_active = true
	`
	var p Product
	err := q.db.QueryRow(ctx, sql, id).Scan(&p.ID, &p.Name, &p.Price, &p.IsActive, &p.CreatedAt)
	return p, err
}

func (q *Queries) ListProducts(ctx context.Context) ([]Product, error) {
	const sql = `
		SELECT id, name, price, is_active, created_at
		FROM products
		WHERE is_active = true
		ORDER BY name
	`
	rows, err := q.db.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.IsActive, &p.CreatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

type CreateProductParams struct {
	Name  string
	Price pgtype.Numeric
}

func (q *Queries) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	const sql = `
		INSERT INTO products (name, price)
		VALUES ($1, $2)
		RETURNING id, name, price, is_active, created_at
	`
	var p Product
	err := q.db.QueryRow(ctx, sql, arg.Name, arg.Price).
		Scan(&p.ID, &p.Name, &p.Price, &p.IsActive, &p.CreatedAt)
	return p, err
}
