package models

import (
	"sort"

	"github.com/shopspring/decimal"
)

// ShareSum is one row of the grouped-sum query: total shares per (symbol, side).
type ShareSum struct {
	Symbol string `db:"symbol"`
	Side   Side   `db:"type"`
	Shares int64  `db:"shares"`
}

// Positions maps symbol to signed net share count.
type Positions map[string]int64

// FoldShareSums combines grouped sums into net positions: BUY adds, SELL subtracts.
// Symbols whose net is zero or negative are kept.
func FoldShareSums(sums []ShareSum) Positions {
	p := make(Positions, len(sums))
	for _, s := range sums {
		switch s.Side {
		case SideBuy:
			p[s.Symbol] += s.Shares
		case SideSell:
			p[s.Symbol] -= s.Shares
		}
	}
	return p
}

// Held returns the positive positions only.
func (p Positions) Held() Positions {
	held := make(Positions, len(p))
	for sym, n := range p {
		if n > 0 {
			held[sym] = n
		}
	}
	return held
}

// Shares returns the net position in symbol, zero when absent.
func (p Positions) Shares(symbol string) int64 {
	return p[symbol]
}

// Symbols returns the map keys in ascending order.
func (p Positions) Symbols() []string {
	out := make([]string, 0, len(p))
	for sym := range p {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Holding is one row of the portfolio overview. Price and Value are nil when the quote
// could not be fetched.
type Holding struct {
	Symbol string           `json:"symbol"`
	Name   string           `json:"name"`
	Shares int64            `json:"shares"`
	Price  *decimal.Decimal `json:"price"`
	Value  *decimal.Decimal `json:"total"`
}

// Portfolio is the account overview: priced holdings, cash and grand total.
type Portfolio struct {
	Holdings []Holding       `json:"holdings"`
	Cash     decimal.Decimal `json:"cash"`
	Total    decimal.Decimal `json:"total"`
}

// Reconciliation compares the stored cash with the cash implied by the audit trail and
// the ledger.
type Reconciliation struct {
	UserID   int64           `json:"user_id"`
	Opening  decimal.Decimal `json:"opening"`
	Deposits decimal.Decimal `json:"deposits"`
	Bought   decimal.Decimal `json:"bought"`
	Sold     decimal.Decimal `json:"sold"`
	Expected decimal.Decimal `json:"expected"`
	Actual   decimal.Decimal `json:"actual"`
}

// Balanced reports whether stored cash matches the derived cash.
func (r Reconciliation) Balanced() bool {
	return r.Expected.Equal(r.Actual)
}
