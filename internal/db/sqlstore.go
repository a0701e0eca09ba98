package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/atharvakonge/paper-trader/internal/apperrors"
	"github.com/atharvakonge/paper-trader/internal/logger"
	"github.com/atharvakonge/paper-trader/internal/models"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// executor is satisfied by both *sqlx.DB and *sqlx.Tx so every query helper runs
// inside or outside a transaction.
type executor interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row
}

const (
	selectUser = `SELECT id, username, hash, cash, created_at FROM users`

	sumSharesQuery = `
		SELECT symbol, type, SUM(shares)::BIGINT AS shares
		FROM transactions
		WHERE user_id = $1
		GROUP BY symbol, type`

	insertTransaction = `
		INSERT INTO transactions (user_id, type, symbol, price, shares)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	insertCashEvent = `
		INSERT INTO cash_events (user_id, kind, amount, balance_after, transaction_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`
)

// SQLStore implements Store with hand-written SQL over sqlx and lib/pq.
type SQLStore struct {
	db  *sqlx.DB
	log logger.Logger
}

func NewSQLStore(conn *sqlx.DB, log logger.Logger) *SQLStore {
	return &SQLStore{db: conn, log: log}
}

func (s *SQLStore) CreateUser(ctx context.Context, user *models.User, opening *models.CashEvent) error {
	return s.WithinTx(ctx, func(t Tx) error {
		tx := t.(*sqlTx)
		err := tx.tx.QueryRowxContext(ctx,
			`INSERT INTO users (username, hash, cash) VALUES ($1, $2, $3) RETURNING id, created_at`,
			user.Username, user.PasswordHash, user.Cash,
		).Scan(&user.ID, &user.CreatedAt)
		if err != nil {
			return mapError(err, EntityUser, "insert user")
		}

		if opening != nil {
			opening.UserID = user.ID
			return tx.AppendCashEvent(ctx, opening)
		}
		return nil
	})
}

func (s *SQLStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	if err := s.db.GetContext(ctx, &u, selectUser+` WHERE id = $1`, id); err != nil {
		return nil, mapError(err, EntityUser, "get user")
	}
	return &u, nil
}

func (s *SQLStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	if err := s.db.GetContext(ctx, &u, selectUser+` WHERE username = $1`, username); err != nil {
		return nil, mapError(err, EntityUser, "get user by username")
	}
	return &u, nil
}

func (s *SQLStore) UpdatePasswordHash(ctx context.Context, userID int64, hash string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET hash = $1 WHERE id = $2`, hash, userID)
	if err != nil {
		return mapError(err, EntityUser, "update password")
	}
	return requireRow(res, EntityUser, "update password")
}

func (s *SQLStore) SumShares(ctx context.Context, userID int64) ([]models.ShareSum, error) {
	return sumShares(ctx, s.db, userID)
}

func (s *SQLStore) ListTransactions(ctx context.Context, userID int64, limit int) ([]models.Transaction, error) {
	txns := []models.Transaction{}
	query := `
		SELECT id, user_id, type, symbol, price, shares, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY id`
	args := []interface{}{userID}
	if limit > 0 {
		// keep the newest rows, still return them oldest first
		query = `
			SELECT * FROM (
				SELECT id, user_id, type, symbol, price, shares, created_at
				FROM transactions
				WHERE user_id = $1
				ORDER BY id DESC
				LIMIT $2
			) recent ORDER BY id`
		args = append(args, limit)
	}

	if err := s.db.SelectContext(ctx, &txns, query, args...); err != nil {
		return nil, fmt.Errorf("failed to fetch transactions for user %d: %w", userID, err)
	}
	return txns, nil
}

func (s *SQLStore) ListCashEvents(ctx context.Context, userID int64) ([]models.CashEvent, error) {
	events := []models.CashEvent{}
	err := s.db.SelectContext(ctx, &events, `
		SELECT id, user_id, kind, amount, balance_after, transaction_id, created_at
		FROM cash_events
		WHERE user_id = $1
		ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch cash events for user %d: %w", userID, err)
	}
	return events, nil
}

func (s *SQLStore) CreateSession(ctx context.Context, session *models.Session) error {
	err := s.db.QueryRowxContext(ctx,
		`INSERT INTO sessions (token, user_id, expires_at) VALUES ($1, $2, $3) RETURNING created_at`,
		session.Token, session.UserID, session.ExpiresAt,
	).Scan(&session.CreatedAt)
	return mapError(err, EntitySession, "create session")
}

func (s *SQLStore) GetSession(ctx context.Context, token string) (*models.Session, error) {
	var sess models.Session
	err := s.db.GetContext(ctx, &sess,
		`SELECT token, user_id, created_at, expires_at FROM sessions WHERE token = $1`, token)
	if err != nil {
		return nil, mapError(err, EntitySession, "get session")
	}
	return &sess, nil
}

func (s *SQLStore) DeleteSession(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = $1`, token)
	return mapError(err, EntitySession, "delete session")
}

// WithinTx begins a transaction, runs fn and commits. The deferred rollback is a no-op
// once Commit has succeeded.
func (s *SQLStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.log.Warn("Transaction rollback failed", map[string]any{"error": rbErr.Error()})
		}
	}()

	if err := fn(&sqlTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

type sqlTx struct {
	tx *sqlx.Tx
}

// LockUser uses SELECT ... FOR UPDATE so concurrent trades on the same account queue
// behind each other until commit.
func (t *sqlTx) LockUser(ctx context.Context, userID int64) (*models.User, error) {
	var u models.User
	if err := t.tx.GetContext(ctx, &u, selectUser+` WHERE id = $1 FOR UPDATE`, userID); err != nil {
		return nil, mapError(err, EntityUser, "lock user")
	}
	return &u, nil
}

func (t *sqlTx) SumShares(ctx context.Context, userID int64) ([]models.ShareSum, error) {
	return sumShares(ctx, t.tx, userID)
}

func (t *sqlTx) AppendTransaction(ctx context.Context, txn *models.Transaction) error {
	err := t.tx.QueryRowxContext(ctx, insertTransaction,
		txn.UserID, txn.Side, txn.Symbol, txn.Price, txn.Shares,
	).Scan(&txn.ID, &txn.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record transaction: %w", err)
	}
	return nil
}

func (t *sqlTx) UpdateCash(ctx context.Context, userID int64, cash decimal.Decimal) error {
	if cash.GreaterThan(models.MaxCash) {
		return apperrors.ErrCashLimitExceeded
	}
	res, err := t.tx.ExecContext(ctx, `UPDATE users SET cash = $1 WHERE id = $2`, cash, userID)
	if err != nil {
		return mapError(err, EntityUser, "update cash")
	}
	return requireRow(res, EntityUser, "update cash")
}

func (t *sqlTx) AppendCashEvent(ctx context.Context, event *models.CashEvent) error {
	err := t.tx.QueryRowxContext(ctx, insertCashEvent,
		event.UserID, event.Kind, event.Amount, event.BalanceAfter, event.TransactionID,
	).Scan(&event.ID, &event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record cash event: %w", err)
	}
	return nil
}

func sumShares(ctx context.Context, q executor, userID int64) ([]models.ShareSum, error) {
	sums := []models.ShareSum{}
	if err := q.SelectContext(ctx, &sums, sumSharesQuery, userID); err != nil {
		return nil, fmt.Errorf("failed to sum shares for user %d: %w", userID, err)
	}
	if err := checkSides(sums); err != nil {
		return nil, err
	}
	return sums, nil
}

// checkSides rejects rows whose type column holds neither BUY nor SELL.
func checkSides(sums []models.ShareSum) error {
	for _, s := range sums {
		if !s.Side.Valid() {
			return fmt.Errorf("share sum for %s: unknown trade side %q", s.Symbol, s.Side)
		}
	}
	return nil
}

func requireRow(res sql.Result, entity EntityType, operation string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	if n == 0 {
		return mapError(sql.ErrNoRows, entity, operation)
	}
	return nil
}
