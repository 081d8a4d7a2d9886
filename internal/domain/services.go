package domain

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TransferService is the single point of truth for moving funds between two
// accounts. It coordinates repositories inside one atomic unit and enforces
// the conservation invariant under concurrency.
type TransferService struct {
	accountRepo     AccountRepository
	transactionRepo TransactionRepository
	txManager       TransactionManager
	// Optional publisher for transfer-completed events; nil disables publishing.
	publisher EventPublisher
	logger    *zap.Logger
}

// NewTransferService creates a new TransferService.
// Pass nil for publisher if no events should be emitted.
func NewTransferService(
	accountRepo AccountRepository,
	transactionRepo TransactionRepository,
	txManager TransactionManager,
	publisher EventPublisher,
	logger *zap.Logger,
) *TransferService {
	return &TransferService{
		accountRepo:     accountRepo,
		transactionRepo: transactionRepo,
		txManager:       txManager,
		publisher:       publisher,
		logger:          logger,
	}
}

// ExecuteTransfer moves amount from one account to another atomically:
//
//  1. Validate input (before any lock is taken).
//  2. Open an atomic unit.
//  3. Lock both account rows in ascending-id order. Acquiring in a fixed
//     total order, regardless of transfer direction, prevents deadlock
//     between concurrent opposite-direction transfers over the same pair.
//  4. Check funds against the balance read from the locked row, never a
//     pre-lock read.
//  5. Write both new balances, then append the audit record.
//  6. Commit. Any failure before commit aborts the unit with zero
//     observable effect.
//
// The returned Transaction carries the store-assigned record id. Errors are
// terminal for the single request; retry policy belongs to the caller.
func (s *TransferService) ExecuteTransfer(ctx context.Context, fromID, toID int64, amount decimal.Decimal) (*Transaction, error) {
	if err := ValidateAmount(amount); err != nil {
		return nil, err
	}
	if fromID == toID {
		return nil, ErrSameAccount
	}

	var created *Transaction
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		first, second := fromID, toID
		if second < first {
			first, second = second, first
		}

		locked := make(map[int64]*Account, 2)
		for _, id := range [2]int64{first, second} {
			account, err := s.accountRepo.Lock(txCtx, id)
			if err != nil {
				return fmt.Errorf("failed to lock account %d: %w", id, err)
			}
			locked[id] = account
		}
		from, to := locked[fromID], locked[toID]

		if from.Balance.LessThan(amount) {
			return ErrInsufficientFunds
		}

		newFrom := from.Balance.Sub(amount)
		newTo := to.Balance.Add(amount)

		if err := s.accountRepo.UpdateBalance(txCtx, from.ID, newFrom); err != nil {
			return fmt.Errorf("failed to debit account %d: %w", from.ID, err)
		}
		if err := s.accountRepo.UpdateBalance(txCtx, to.ID, newTo); err != nil {
			return fmt.Errorf("failed to credit account %d: %w", to.ID, err)
		}

		record, err := s.transactionRepo.Create(txCtx, fromID, toID, amount)
		if err != nil {
			return fmt.Errorf("failed to create transaction record: %w", err)
		}
		created = record
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The transfer is committed at this point. Publishing is best-effort and
	// asynchronous so a transient broker failure can't make an
	// already-committed transfer appear to fail.
	if s.publisher != nil {
		go func(tx Transaction) {
			if err := s.publisher.PublishTransferCompleted(context.Background(), &tx); err != nil {
				s.logger.Warn("failed to publish transfer completed event",
					zap.Int64("transaction_id", tx.ID),
					zap.Error(err))
			}
		}(*created)
	}

	return created, nil
}

// ListTransactions retrieves the most recent transfer records, newest first,
// bounded to historyLimit entries.
func (s *TransferService) ListTransactions(ctx context.Context) ([]Transaction, error) {
	records, err := s.transactionRepo.ListRecent(ctx, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return records, nil
}

// historyLimit bounds transaction history queries.
const historyLimit = 100

// AccountService handles the read/glue side of the ledger: listing,
// lookup and creation of accounts. Balances are only ever mutated by the
// TransferService.
type AccountService struct {
	accountRepo AccountRepository
}

// NewAccountService creates a new AccountService.
func NewAccountService(accountRepo AccountRepository) *AccountService {
	return &AccountService{accountRepo: accountRepo}
}

// ListAccounts returns all accounts ordered by id.
func (s *AccountService) ListAccounts(ctx context.Context) ([]Account, error) {
	return s.accountRepo.List(ctx)
}

// GetAccount returns a single account or ErrAccountNotFound.
func (s *AccountService) GetAccount(ctx context.Context, id int64) (*Account, error) {
	return s.accountRepo.GetByID(ctx, id)
}

// CreateAccount creates an account with the given name and initial balance.
// The initial balance must be non-negative with at most two decimal places.
func (s *AccountService) CreateAccount(ctx context.Context, name string, initialBalance decimal.Decimal) (*Account, error) {
	if initialBalance.Sign() < 0 || !initialBalance.Equal(initialBalance.Truncate(maxAmountScale)) {
		return nil, fmt.Errorf("%w: initial balance %s", ErrInvalidAmount, initialBalance)
	}
	return s.accountRepo.Create(ctx, name, initialBalance)
}
