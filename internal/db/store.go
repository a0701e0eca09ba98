package db

import (
	"context"
	"errors"

	"github.com/atharvakonge/paper-trader/internal/models"
	"github.com/shopspring/decimal"
)

// ErrSessionNotFound is returned for unknown session tokens.
var ErrSessionNotFound = errors.New("session not found")

// Store is the persistence boundary. SQLStore, GormStore and MemoryStore implement it
// with identical behavior.
type Store interface {
	// CreateUser inserts user and its opening cash event atomically and fills in the
	// generated IDs. A taken username yields apperrors.ErrDuplicateUsername.
	CreateUser(ctx context.Context, user *models.User, opening *models.CashEvent) error
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	UpdatePasswordHash(ctx context.Context, userID int64, hash string) error

	// SumShares returns total shares grouped by symbol and side.
	SumShares(ctx context.Context, userID int64) ([]models.ShareSum, error)
	// ListTransactions returns ledger entries oldest first. A positive limit keeps only
	// the most recent entries.
	ListTransactions(ctx context.Context, userID int64, limit int) ([]models.Transaction, error)
	ListCashEvents(ctx context.Context, userID int64) ([]models.CashEvent, error)

	CreateSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, token string) (*models.Session, error)
	DeleteSession(ctx context.Context, token string) error

	// WithinTx runs fn in one storage transaction. fn's error rolls everything back.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error
}

// Tx is the set of operations a trade needs inside its atomic unit.
type Tx interface {
	// LockUser reads the user and holds its row lock until the transaction ends.
	LockUser(ctx context.Context, userID int64) (*models.User, error)
	SumShares(ctx context.Context, userID int64) ([]models.ShareSum, error)
	// AppendTransaction inserts a ledger entry and fills in ID and CreatedAt.
	AppendTransaction(ctx context.Context, txn *models.Transaction) error
	UpdateCash(ctx context.Context, userID int64, cash decimal.Decimal) error
	// AppendCashEvent inserts an audit record and fills in ID and CreatedAt.
	AppendCashEvent(ctx context.Context, event *models.CashEvent) error
}
