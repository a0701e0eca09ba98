package db

import (
	"time"

	"github.com/atharvakonge/paper-trader/internal/models"
	"github.com/shopspring/decimal"
)

// Row types for the orm access mode. They map onto the same tables as Schema.

type userRecord struct {
	ID        int64           `gorm:"primaryKey"`
	Username  string          `gorm:"not null;uniqueIndex:users_username_key"`
	Hash      string          `gorm:"not null"`
	Cash      decimal.Decimal `gorm:"type:numeric(19,4);not null;default:10000.00;check:cash_nonnegative,cash >= 0"`
	CreatedAt time.Time       `gorm:"not null;autoCreateTime"`
}

func (userRecord) TableName() string { return "users" }

func (r userRecord) toModel() *models.User {
	return &models.User{
		ID:           r.ID,
		Username:     r.Username,
		PasswordHash: r.Hash,
		Cash:         r.Cash,
		CreatedAt:    r.CreatedAt,
	}
}

type transactionRecord struct {
	ID        int64           `gorm:"primaryKey"`
	UserID    int64           `gorm:"not null;index:transactions_user_symbol_idx,priority:1"`
	Type      string          `gorm:"not null;index:transactions_user_symbol_idx,priority:3;check:side_known,type IN ('BUY', 'SELL')"`
	Symbol    string          `gorm:"not null;index:transactions_user_symbol_idx,priority:2"`
	Price     decimal.Decimal `gorm:"type:numeric(19,4);not null;check:price_positive,price > 0"`
	Shares    int64           `gorm:"not null;check:shares_positive,shares > 0"`
	CreatedAt time.Time       `gorm:"not null;autoCreateTime"`
	User      userRecord      `gorm:"foreignKey:UserID"`
}

func (transactionRecord) TableName() string { return "transactions" }

func (r transactionRecord) toModel() models.Transaction {
	return models.Transaction{
		ID:        r.ID,
		UserID:    r.UserID,
		Side:      models.Side(r.Type),
		Symbol:    r.Symbol,
		Price:     r.Price,
		Shares:    r.Shares,
		CreatedAt: r.CreatedAt,
	}
}

type cashEventRecord struct {
	ID            int64              `gorm:"primaryKey"`
	UserID        int64              `gorm:"not null;index:cash_events_user_idx"`
	Kind          string             `gorm:"not null"`
	Amount        decimal.Decimal    `gorm:"type:numeric(19,4);not null"`
	BalanceAfter  decimal.Decimal    `gorm:"type:numeric(19,4);not null"`
	TransactionID *int64             `gorm:"column:transaction_id"`
	CreatedAt     time.Time          `gorm:"not null;autoCreateTime"`
	User          userRecord         `gorm:"foreignKey:UserID"`
	Transaction   *transactionRecord `gorm:"foreignKey:TransactionID"`
}

func (cashEventRecord) TableName() string { return "cash_events" }

func (r cashEventRecord) toModel() models.CashEvent {
	return models.CashEvent{
		ID:            r.ID,
		UserID:        r.UserID,
		Kind:          models.CashEventKind(r.Kind),
		Amount:        r.Amount,
		BalanceAfter:  r.BalanceAfter,
		TransactionID: r.TransactionID,
		CreatedAt:     r.CreatedAt,
	}
}

type sessionRecord struct {
	Token     string     `gorm:"primaryKey"`
	UserID    int64      `gorm:"not null"`
	CreatedAt time.Time  `gorm:"not null;autoCreateTime"`
	ExpiresAt time.Time  `gorm:"not null"`
	User      userRecord `gorm:"foreignKey:UserID"`
}

func (sessionRecord) TableName() string { return "sessions" }

func (r sessionRecord) toModel() *models.Session {
	return &models.Session{
		Token:     r.Token,
		UserID:    r.UserID,
		CreatedAt: r.CreatedAt,
		ExpiresAt: r.ExpiresAt,
	}
}

// shareSumRow receives the grouped-sum query; the side column is called "type".
type shareSumRow struct {
	Symbol string
	Side   string `gorm:"column:type"`
	Shares int64
}
