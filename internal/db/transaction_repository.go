package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dpnr05/banking-fullstack-app/internal/domain"
)

// TransactionRepository implements domain.TransactionRepository using
// PostgreSQL. Records are append-only; BIGSERIAL assigns the monotonically
// increasing ids history ordering relies on.
type TransactionRepository struct {
	pool *pgxpool.Pool
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

// Create appends the audit record for a transfer and returns it with its
// assigned id and creation timestamp.
func (r *TransactionRepository) Create(ctx context.Context, fromID, toID int64, amount decimal.Decimal) (*domain.Transaction, error) {
	query := `
		INSERT INTO transactions (from_account_id, to_account_id, amount)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`

	record := domain.Transaction{
		FromAccountID: fromID,
		ToAccountID:   toID,
		Amount:        amount,
	}
	err := queryTarget(ctx, r.pool).QueryRow(ctx, query, fromID, toID, amount.StringFixed(2)).
		Scan(&record.ID, &record.CreatedAt)
	if err != nil {
		return nil, storeError("insert transaction", err)
	}

	return &record, nil
}

// ListRecent retrieves up to limit records, most recent first. Ordering by
// id reflects commit order, not request arrival.
func (r *TransactionRepository) ListRecent(ctx context.Context, limit int) ([]domain.Transaction, error) {
	query := `
		SELECT id, from_account_id, to_account_id, amount::text, created_at
		FROM transactions
		ORDER BY id DESC
		LIMIT $1
	`

	rows, err := queryTarget(ctx, r.pool).Query(ctx, query, limit)
	if err != nil {
		return nil, storeError("list transactions", err)
	}
	defer rows.Close()

	records := []domain.Transaction{}
	for rows.Next() {
		var (
			record domain.Transaction
			amount string
		)
		if err := rows.Scan(&record.ID, &record.FromAccountID, &record.ToAccountID, &amount, &record.CreatedAt); err != nil {
			return nil, storeError("scan transaction", err)
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, storeError("parse stored amount", err)
		}
		record.Amount = d
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("list transactions", err)
	}

	return records, nil
}
