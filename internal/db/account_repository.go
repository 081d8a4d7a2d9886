package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dpnr05/banking-fullstack-app/internal/domain"
)

// AccountRepository implements domain.AccountRepository using PostgreSQL.
// Balances travel as NUMERIC::text on the wire and are parsed into
// decimal.Decimal, so no float is involved anywhere on the path.
type AccountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		account domain.Account
		balance string
	)
	if err := row.Scan(&account.ID, &account.Name, &balance, &account.CreatedAt); err != nil {
		return nil, err
	}
	d, err := decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("invalid balance %q in store: %w", balance, err)
	}
	account.Balance = d
	return &account, nil
}

// List retrieves all accounts ordered by id.
func (r *AccountRepository) List(ctx context.Context) ([]domain.Account, error) {
	query := `
		SELECT id, name, balance::text, created_at
		FROM accounts
		ORDER BY id
	`

	rows, err := queryTarget(ctx, r.pool).Query(ctx, query)
	if err != nil {
		return nil, storeError("list accounts", err)
	}
	defer rows.Close()

	accounts := []domain.Account{}
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, storeError("scan account", err)
		}
		accounts = append(accounts, *account)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("list accounts", err)
	}

	return accounts, nil
}

// GetByID retrieves an account by its unique identifier.
func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	query := `
		SELECT id, name, balance::text, created_at
		FROM accounts
		WHERE id = $1
	`

	account, err := scanAccount(queryTarget(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, storeError("get account", err)
	}

	return account, nil
}

// Create inserts a new account and returns it with its assigned id.
func (r *AccountRepository) Create(ctx context.Context, name string, initialBalance decimal.Decimal) (*domain.Account, error) {
	query := `
		INSERT INTO accounts (name, balance)
		VALUES ($1, $2)
		RETURNING id, name, balance::text, created_at
	`

	account, err := scanAccount(queryTarget(ctx, r.pool).QueryRow(ctx, query, name, initialBalance.StringFixed(2)))
	if err != nil {
		return nil, storeError("create account", err)
	}

	return account, nil
}

// Lock reads the account and acquires a pessimistic row lock held until the
// surrounding transaction ends, via SELECT ... FOR UPDATE. Must be called
// within a transaction context.
func (r *AccountRepository) Lock(ctx context.Context, id int64) (*domain.Account, error) {
	query := `
		SELECT id, name, balance::text, created_at
		FROM accounts
		WHERE id = $1
		FOR UPDATE
	`

	account, err := scanAccount(queryTarget(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, storeError("lock account", err)
	}

	return account, nil
}

// UpdateBalance writes a new balance for the account.
func (r *AccountRepository) UpdateBalance(ctx context.Context, id int64, balance decimal.Decimal) error {
	query := `
		UPDATE accounts
		SET balance = $2
		WHERE id = $1
	`

	tag, err := queryTarget(ctx, r.pool).Exec(ctx, query, id, balance.StringFixed(2))
	if err != nil {
		return storeError("update balance", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}

	return nil
}
