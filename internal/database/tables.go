package database

import (
	"context"

	"github.com/comanda-pos/api/internal/enum"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const tableColumns = `id, number, capacity, status, assigned_to, created_at, updated_at`

func scanTable(row interface{ Scan(dest ...any) error }) (Table, error) {
	var t Table
	err := row.Scan(&t.ID, &t.Number, &t.Capacity, &t.Status, &t.AssignedTo,
		&t.CreatedAt, &t.UpdatedAt)
	return t, err
}

type CreateTableParams struct {
	Number   int32
	Capacity int32
}

func (q *Queries) CreateTable(ctx context.Context, arg CreateTableParams) (Table, error) {
	const sql = `
		INSERT INTO tables (number, capacity, status)
		VALUES ($1, $2, 'FREE')
		RETURNING ` + tableColumns
	return scanTable(q.db.QueryRow(ctx, sql, arg.Number, arg.Capacity))
}

func (q *Queries) GetTable(ctx context.Context, id uuid.UUID) (Table, error) {
	const sql = `SELECT ` + tableColumns + ` FROM tables WHERE id = $1`
	return scanTable(q.db.QueryRow(ctx, sql, id))
}

// GetTableForUpdate locks the table row so release and assignment
// serialize against each other.
func (q *Queries) GetTableForUpdate(ctx context.Context, id uuid.UUID) (Table, error) {
	const sql = `SELECT ` + tableColumns + ` FROM tables WHERE id = $1 FOR NO KEY UPDATE`
	return scanTable(q.db.QueryRow(ctx, sql, id))
}

func (q *Queries) ListTables(ctx context.Context) ([]Table, error) {
	const sql = `SELECT ` + tableColumns + ` FROM tables ORDER BY number`
	rows, err := q.db.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []Table
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

type UpdateTableStatusParams struct {
	ID     uuid.UUID
	Status enum.TableStatus
}

func (q *Queries) UpdateTableStatus(ctx context.Context, arg UpdateTableStatusParams) (Table, error) {
	const sql = `
		UPDATE tables
		SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING ` + tableColumns
	return scanTable(q.db.QueryRow(ctx, sql, arg.ID, arg.Status))
}

type AssignTableParams struct {
	ID         uuid.UUID
	AssignedTo pgtype.UUID
}

// AssignTable marks a table occupied and records the staff member serving
// it. A MAINTENANCE table is never assignable; the WHERE clause enforces
// that atomically.
func (q *Queries) AssignTable(ctx context.Context, arg AssignTableParams) (Table, error) {
	const sql = `
		UPDATE tables
		SET status = 'OCCUPIED', assigned_to = $2, updated_at = now()
		WHERE id = $1 AND status <> 'MAINTENANCE'
		RETURNING ` + tableColumns
	return scanTable(q.db.QueryRow(ctx, sql, arg.ID, arg.AssignedTo))
}

// ReleaseTable frees a table and clears its assignment.
func (q *Queries) ReleaseTable(ctx context.Context, id uuid.UUID) (Table, error) {
	const sql = `
		UPDATE tables
		SET status = 'FREE', assigned_to = NULL, updated_at = now()
		WHERE id = $1
		RETURNING ` + tableColumns
	return scanTable(q.db.QueryRow(ctx, sql, id))
}
