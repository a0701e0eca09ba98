package quote

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/atharvakonge/paper-trader/internal/apperrors"
	"github.com/atharvakonge/paper-trader/internal/logger"
	"github.com/atharvakonge/paper-trader/internal/models"
	"github.com/shopspring/decimal"
)

// PriceUpdate represents a stock price update
type PriceUpdate struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Change    decimal.Decimal `json:"change"`
	Timestamp time.Time       `json:"timestamp"`
}

var startingPrices = map[string]string{
	"AAPL":  "150.00",
	"GOOGL": "140.00",
	"MSFT":  "380.00",
	"TSLA":  "250.00",
	"AMZN":  "180.00",
}

var companyNames = map[string]string{
	"AAPL":  "Apple Inc.",
	"GOOGL": "Alphabet Inc.",
	"MSFT":  "Microsoft Corporation",
	"TSLA":  "Tesla, Inc.",
	"AMZN":  "Amazon.com, Inc.",
}

var (
	minPrice    = decimal.RequireFromString("0.01")
	defaultSeed = decimal.RequireFromString("100.00")
	hundred     = decimal.NewFromInt(100)
)

// Simulator is an offline Provider: each known symbol follows a random walk of at most
// 2% per step. It also fans every step out to subscribers of the price stream.
type Simulator struct {
	mu      sync.RWMutex
	symbols []string
	prices  map[string]decimal.Decimal
	rng     *rand.Rand
	subs    map[chan PriceUpdate]struct{}
	now     func() time.Time
	log     logger.Logger
}

// NewSimulator tracks symbols. Well-known tickers start at fixed prices, others at 100.
func NewSimulator(symbols []string, seed int64, log logger.Logger) *Simulator {
	s := &Simulator{
		prices: make(map[string]decimal.Decimal, len(symbols)),
		rng:    rand.New(rand.NewSource(seed)),
		subs:   make(map[chan PriceUpdate]struct{}),
		now:    time.Now,
		log:    log,
	}
	for _, sym := range symbols {
		sym = NormalizeSymbol(sym)
		if sym == "" {
			continue
		}
		if _, dup := s.prices[sym]; dup {
			continue
		}
		price := defaultSeed
		if p, ok := startingPrices[sym]; ok {
			price = decimal.RequireFromString(p)
		}
		s.symbols = append(s.symbols, sym)
		s.prices[sym] = price
	}
	return s
}

// Symbols returns the tracked symbols in configuration order.
func (s *Simulator) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.symbols...)
}

func (s *Simulator) Lookup(ctx context.Context, symbol string) (*models.Quote, error) {
	symbol = NormalizeSymbol(symbol)
	if err := ctx.Err(); err != nil {
		return nil, &apperrors.QuoteError{Symbol: symbol, Err: err}
	}

	s.mu.RLock()
	price, ok := s.prices[symbol]
	s.mu.RUnlock()
	if !ok {
		return nil, &apperrors.QuoteError{Symbol: symbol}
	}

	name, ok := companyNames[symbol]
	if !ok {
		name = symbol
	}
	return &models.Quote{Symbol: symbol, Name: name, Price: price}, nil
}

// Set pins a symbol's price, adding the symbol if it is new.
func (s *Simulator) Set(symbol string, price decimal.Decimal) {
	symbol = NormalizeSymbol(symbol)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.prices[symbol]; !ok {
		s.symbols = append(s.symbols, symbol)
	}
	s.prices[symbol] = roundPrice(price)
}

// Step moves one random symbol and publishes the update.
func (s *Simulator) Step() (PriceUpdate, bool) {
	s.mu.Lock()
	if len(s.symbols) == 0 {
		s.mu.Unlock()
		return PriceUpdate{}, false
	}

	symbol := s.symbols[s.rng.Intn(len(s.symbols))]
	// -2% to +2%
	changePct := decimal.NewFromFloat((s.rng.Float64() - 0.5) * 4).Round(2)
	old := s.prices[symbol]
	next := roundPrice(old.Mul(hundred.Add(changePct)).Div(hundred))
	if next.LessThan(minPrice) {
		next = minPrice
	}
	s.prices[symbol] = next

	update := PriceUpdate{Symbol: symbol, Price: next, Change: changePct, Timestamp: s.now()}
	for ch := range s.subs {
		select {
		case ch <- update:
		default:
			// slow subscriber, drop the tick
		}
	}
	s.mu.Unlock()

	return update, true
}

// Run steps every interval until ctx is done.
func (s *Simulator) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info("Price simulator started", map[string]any{
		"symbols":  s.Symbols(),
		"interval": interval.String(),
	})
	for {
		select {
		case <-ctx.Done():
			s.log.Info("Price simulator stopped", nil)
			return
		case <-ticker.C:
			if u, ok := s.Step(); ok {
				s.log.Debug("Price update", map[string]any{
					"symbol": u.Symbol,
					"price":  u.Price.StringFixed(2),
					"change": u.Change.String(),
				})
			}
		}
	}
}

// Subscribe returns a channel of updates and a function that cancels the subscription.
func (s *Simulator) Subscribe(buffer int) (<-chan PriceUpdate, func()) {
	ch := make(chan PriceUpdate, buffer)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, ch)
			s.mu.Unlock()
			close(ch)
		})
	}
}
