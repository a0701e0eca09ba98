package quote

import (
	"context"
	"strings"

	"github.com/atharvakonge/paper-trader/internal/models"
	"github.com/shopspring/decimal"
)

// Provider looks up the current price of a symbol. A failed or empty lookup is
// reported as *apperrors.QuoteError, which matches apperrors.ErrQuoteUnavailable.
type Provider interface {
	Lookup(ctx context.Context, symbol string) (*models.Quote, error)
}

// NormalizeSymbol trims and uppercases user input.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// roundPrice rounds half-up to models.PriceScale so stored prices multiply exactly.
func roundPrice(d decimal.Decimal) decimal.Decimal {
	return d.Round(models.PriceScale)
}
