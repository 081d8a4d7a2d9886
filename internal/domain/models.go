package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account represents a named ledger account.
// The balance is a fixed-point decimal with two fractional digits and is
// never negative between committed transactions.
type Account struct {
	ID        int64           // Unique identifier, assigned by the store at creation
	Name      string          // Display name, not required to be unique
	Balance   decimal.Decimal // Current balance, scale 2
	CreatedAt time.Time       // Timestamp when the account was created
}

// Transaction is the immutable audit record of one committed transfer.
// It is created atomically with the two balance mutations it describes:
// either all three effects exist or none do.
type Transaction struct {
	ID            int64           // Store-assigned, monotonically increasing (history order)
	FromAccountID int64           // Debited account
	ToAccountID   int64           // Credited account, always != FromAccountID
	Amount        decimal.Decimal // Strictly positive, scale 2
	CreatedAt     time.Time       // Timestamp when the transfer committed
}
