package db

import (
	"context"
	"fmt"
)

// schema is the relational schema for the ledger. CHECK constraints back up
// the invariants the transfer path enforces: balances never rest negative,
// recorded amounts are strictly positive, and no record references one
// account twice.
const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id         BIGSERIAL PRIMARY KEY,
	name       TEXT NOT NULL,
	balance    NUMERIC(18,2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS transactions (
	id              BIGSERIAL PRIMARY KEY,
	from_account_id BIGINT NOT NULL REFERENCES accounts (id),
	to_account_id   BIGINT NOT NULL REFERENCES accounts (id),
	amount          NUMERIC(18,2) NOT NULL CHECK (amount > 0),
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	CHECK (from_account_id <> to_account_id)
);
`

// Migrate applies the ledger schema. It is idempotent and runs at startup.
func Migrate(ctx context.Context, pool *Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
