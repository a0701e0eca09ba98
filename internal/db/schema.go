package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Schema is the PostgreSQL DDL shared by the sql access mode. The gorm models in
// gorm_models.go describe the same tables.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id         BIGSERIAL PRIMARY KEY,
		username   TEXT NOT NULL,
		hash       TEXT NOT NULL,
		cash       NUMERIC(19,4) NOT NULL DEFAULT 10000.00 CONSTRAINT cash_nonnegative CHECK (cash >= 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_username_key ON users (username)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id         BIGSERIAL PRIMARY KEY,
		user_id    BIGINT NOT NULL REFERENCES users (id),
		type       TEXT NOT NULL CONSTRAINT side_known CHECK (type IN ('BUY', 'SELL')),
		symbol     TEXT NOT NULL,
		price      NUMERIC(19,4) NOT NULL CONSTRAINT price_positive CHECK (price > 0),
		shares     BIGINT NOT NULL CONSTRAINT shares_positive CHECK (shares > 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS transactions_user_symbol_idx ON transactions (user_id, symbol, type)`,
	`CREATE TABLE IF NOT EXISTS cash_events (
		id             BIGSERIAL PRIMARY KEY,
		user_id        BIGINT NOT NULL REFERENCES users (id),
		kind           TEXT NOT NULL,
		amount         NUMERIC(19,4) NOT NULL,
		balance_after  NUMERIC(19,4) NOT NULL,
		transaction_id BIGINT REFERENCES transactions (id),
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS cash_events_user_idx ON cash_events (user_id)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		token      TEXT PRIMARY KEY,
		user_id    BIGINT NOT NULL REFERENCES users (id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		expires_at TIMESTAMPTZ NOT NULL
	)`,
}

// Migrate applies Schema. Every statement is idempotent.
func Migrate(ctx context.Context, conn *sqlx.DB) error {
	for i, stmt := range Schema {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d: %w", i+1, err)
		}
	}
	return nil
}
