package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/dpnr05/banking-fullstack-app/internal/domain"
)

// txKey is the key type for storing the active transaction in context.
type txKey struct{}

// TransactionManager implements domain.TransactionManager on PostgreSQL.
// Begin and commit failures surface as domain.ErrStoreUnavailable so the
// caller can tell "the store couldn't apply this" apart from domain errors.
type TransactionManager struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewTransactionManager creates a new TransactionManager.
func NewTransactionManager(pool *pgxpool.Pool, logger *zap.Logger) *TransactionManager {
	return &TransactionManager{pool: pool, logger: logger}
}

// WithTransaction executes fn within one database transaction. The pgx.Tx is
// stored in the context passed to fn so repositories route their statements
// through it. If fn returns an error the transaction is rolled back and no
// write is visible; otherwise it is committed.
func (tm *TransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := tm.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %v", domain.ErrStoreUnavailable, err)
	}

	// Rollback after a successful commit is a no-op returning ErrTxClosed.
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			tm.logger.Error("failed to rollback transaction", zap.Error(err))
		}
	}()

	txCtx := context.WithValue(ctx, txKey{}, tx)

	if err := fn(txCtx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: failed to commit transaction: %v", domain.ErrStoreUnavailable, err)
	}

	return nil
}

// storeError classifies an unexpected store failure (dial, lock, query or
// write errors) as domain.ErrStoreUnavailable, keeping every failure the
// caller can see inside the closed error taxonomy.
func storeError(op string, err error) error {
	return fmt.Errorf("%w: failed to %s: %v", domain.ErrStoreUnavailable, op, err)
}

// querier is the subset of pgx.Tx / pgxpool.Pool the repositories need.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// queryTarget returns the transaction stored in ctx if there is one,
// otherwise the plain pool. Repositories use it so the same code path works
// inside and outside an atomic unit.
func queryTarget(ctx context.Context, pool *pgxpool.Pool) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return pool
}
