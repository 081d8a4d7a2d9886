package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// AccountRepository defines the interface for account data access operations.
// This follows the Repository pattern to abstract data persistence logic.
type AccountRepository interface {
	// List retrieves all accounts ordered by id.
	List(ctx context.Context) ([]Account, error)

	// GetByID retrieves an account by its unique identifier.
	// Returns ErrAccountNotFound if the account doesn't exist.
	GetByID(ctx context.Context, id int64) (*Account, error)

	// Create inserts a new account with the given name and initial balance
	// and returns it with its store-assigned id and creation timestamp.
	Create(ctx context.Context, name string, initialBalance decimal.Decimal) (*Account, error)

	// Lock reads the account's current state and acquires an exclusive
	// row lock held until the surrounding atomic unit ends.
	// Must be called within a transaction context; safe to call for two
	// distinct ids within the same unit.
	Lock(ctx context.Context, id int64) (*Account, error)

	// UpdateBalance writes a new balance for the account. Within a
	// transaction context the write is visible only if the unit commits.
	UpdateBalance(ctx context.Context, id int64, balance decimal.Decimal) error
}

// TransactionRepository defines the interface for transfer audit records.
type TransactionRepository interface {
	// Create appends the audit record for a transfer and returns it with
	// its store-assigned id. Visible only if the surrounding unit commits.
	Create(ctx context.Context, fromID, toID int64, amount decimal.Decimal) (*Transaction, error)

	// ListRecent retrieves up to limit records, most recent first.
	ListRecent(ctx context.Context, limit int) ([]Transaction, error)
}

// TransactionManager defines the interface for the store's atomic unit.
// If fn returns an error the unit is aborted with zero observable effect;
// otherwise it is committed. Reads and writes made through the repositories
// with the ctx passed to fn are isolated from concurrent units.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// EventPublisher publishes domain events to external systems (e.g. RabbitMQ).
type EventPublisher interface {
	PublishTransferCompleted(ctx context.Context, tx *Transaction) error
}
