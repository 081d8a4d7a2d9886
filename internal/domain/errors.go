package domain

import "errors"

var (
	// ErrInvalidAmount is returned when the amount is missing, non-numeric,
	// non-positive, or has more than two decimal places.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrSameAccount is returned when source and destination are the same account.
	ErrSameAccount = errors.New("source and destination must be different accounts")

	// ErrAccountNotFound is returned when a referenced account doesn't exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrInsufficientFunds is returned when the source balance is below the
	// requested amount at lock time.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrStoreUnavailable is returned when the store could not open, lock
	// within, or commit the atomic unit. The request had no observable effect
	// and may be retried by the caller.
	ErrStoreUnavailable = errors.New("store unavailable")
)
