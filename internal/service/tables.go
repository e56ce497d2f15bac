package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/comanda-pos/api/internal/database"
	"github.com/comanda-pos/api/internal/enum"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TableStore defines the DB methods the table coordinator needs.
// Satisfied by *database.Queries.
type TableStore interface {
	GetTable(ctx context.Context, id uuid.UUID) (database.Table, error)
	GetTableForUpdate(ctx context.Context, id uuid.UUID) (database.Table, error)
	CountActiveOrdersByTable(ctx context.Context, tableID uuid.UUID) (int64, error)
	ReleaseTable(ctx context.Context, id uuid.UUID) (database.Table, error)
	UpdateTableStatus(ctx context.Context, arg database.UpdateTableStatusParams) (database.Table, error)
}

// NewTableStore creates a TableStore from a DBTX (pool or tx).
type NewTableStore func(db database.DBTX) TableStore

// TableCoordinator keeps table status consistent with the set of active
// orders referencing the table. Releasing a table is always an explicit
// operator action: staff must physically clear the table first, so the
// coordinator only ever answers "can it be released" and performs the
// release when asked.
type TableCoordinator struct {
	store    TableStore
	pool     TxBeginner
	newStore NewTableStore
}

// NewTableCoordinator creates the coordinator.
func NewTableCoordinator(store TableStore, pool TxBeginner, newStore NewTableStore) *TableCoordinator {
	return &TableCoordinator{store: store, pool: pool, newStore: newStore}
}

// CanRelease reports whether the table has no active orders. This is a
// pure query for frontends deciding whether to prompt the operator; the
// release itself re-checks under a lock.
func (c *TableCoordinator) CanRelease(ctx context.Context, tableID uuid.UUID) (bool, error) {
	if _, err := c.store.GetTable(ctx, tableID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrTableNotFound
		}
		return false, fmt.Errorf("get table: %w", err)
	}
	n, err := c.store.CountActiveOrdersByTable(ctx, tableID)
	if err != nil {
		return false, fmt.Errorf("count active orders: %w", err)
	}
	return n == 0, nil
}

// Release frees the table. The active-order count is re-checked inside
// the transaction with the table row locked, so an order created between
// the operator's confirmation and this call still blocks the release.
func (c *TableCoordinator) Release(ctx context.Context, tableID uuid.UUID) (database.Table, error) {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return database.Table{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := c.newStore(tx)

	locked, err := store.GetTableForUpdate(ctx, tableID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Table{}, ErrTableNotFound
		}
		return database.Table{}, fmt.Errorf("lock table: %w", err)
	}
	// Maintenance exits only through SetMaintenance; a release must not
	// quietly return the table to service.
	if locked.Status == enum.TableStatusMaintenance {
		return database.Table{}, ErrTableUnavailable
	}

	n, err := store.CountActiveOrdersByTable(ctx, tableID)
	if err != nil {
		return database.Table{}, fmt.Errorf("count active orders: %w", err)
	}
	if n > 0 {
		return database.Table{}, ErrTableStillActive
	}

	table, err := store.ReleaseTable(ctx, tableID)
	if err != nil {
		return database.Table{}, fmt.Errorf("release table: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Table{}, fmt.Errorf("commit tx: %w", err)
	}
	return table, nil
}

// SetMaintenance toggles a table in or out of MAINTENANCE. Entering
// maintenance requires the table to have no active orders.
func (c *TableCoordinator) SetMaintenance(ctx context.Context, tableID uuid.UUID, on bool) (database.Table, error) {
	if on {
		ok, err := c.CanRelease(ctx, tableID)
		if err != nil {
			return database.Table{}, err
		}
		if !ok {
			return database.Table{}, ErrTableStillActive
		}
		return c.store.UpdateTableStatus(ctx, database.UpdateTableStatusParams{
			ID:     tableID,
			Status: enum.TableStatusMaintenance,
		})
	}
	return c.store.UpdateTableStatus(ctx, database.UpdateTableStatusParams{
		ID:     tableID,
		Status: enum.TableStatusFree,
	})
}
