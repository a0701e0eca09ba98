package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of a ledger entry
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ParseSide accepts any letter case.
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToUpper(strings.TrimSpace(s))) {
	case SideBuy:
		return SideBuy, nil
	case SideSell:
		return SideSell, nil
	}
	return "", fmt.Errorf("unknown trade side %q", s)
}

func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// PriceScale is the number of fractional digits kept for prices and cash. With both at
// the same scale, price x shares never needs rounding.
const PriceScale = 4

// DefaultCash is the opening balance of a new account.
var DefaultCash = decimal.RequireFromString("10000.00")

// MaxCash is the largest balance a NUMERIC(19,4) column holds.
var MaxCash = decimal.RequireFromString("999999999999999.9999")

// User represents an account
type User struct {
	ID           int64           `json:"id" db:"id"`
	Username     string          `json:"username" db:"username"`
	PasswordHash string          `json:"-" db:"hash"`
	Cash         decimal.Decimal `json:"cash" db:"cash"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

// Transaction is one immutable ledger entry
type Transaction struct {
	ID        int64           `json:"id" db:"id"`
	UserID    int64           `json:"user_id" db:"user_id"`
	Side      Side            `json:"type" db:"type"`
	Symbol    string          `json:"symbol" db:"symbol"`
	Price     decimal.Decimal `json:"price" db:"price"`
	Shares    int64           `json:"shares" db:"shares"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// Total is price x shares.
func (t Transaction) Total() decimal.Decimal {
	return t.Price.Mul(decimal.NewFromInt(t.Shares))
}

// CashDelta is the signed effect of the entry on the owner's cash.
func (t Transaction) CashDelta() decimal.Decimal {
	if t.Side == SideBuy {
		return t.Total().Neg()
	}
	return t.Total()
}

// CashEventKind names what moved an account's cash
type CashEventKind string

const (
	CashOpening CashEventKind = "OPENING"
	CashBuy     CashEventKind = "BUY"
	CashSell    CashEventKind = "SELL"
	CashDeposit CashEventKind = "DEPOSIT"
)

// CashEvent is an audit record of a cash change. Trades reference their ledger entry;
// deposits and opening balances have none.
type CashEvent struct {
	ID            int64           `json:"id" db:"id"`
	UserID        int64           `json:"user_id" db:"user_id"`
	Kind          CashEventKind   `json:"kind" db:"kind"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	BalanceAfter  decimal.Decimal `json:"balance_after" db:"balance_after"`
	TransactionID *int64          `json:"transaction_id,omitempty" db:"transaction_id"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// Quote is a price lookup result
type Quote struct {
	Symbol string          `json:"symbol"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
}

// Session binds an opaque token to a user
type Session struct {
	Token     string    `json:"-" db:"token"`
	UserID    int64     `json:"user_id" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
}

// Expired reports whether the session is no longer valid at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// USD formats an amount the way the UI shows money, e.g. "$1,234.50".
func USD(d decimal.Decimal) string {
	neg := d.IsNegative()
	s := d.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteByte('$')
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}
