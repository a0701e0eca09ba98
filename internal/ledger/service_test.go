package ledger

import (
	"context"
	"sync"
	"testing"

	"github.com/atharvakonge/paper-trader/internal/apperrors"
	"github.com/atharvakonge/paper-trader/internal/db"
	"github.com/atharvakonge/paper-trader/internal/logger"
	"github.com/atharvakonge/paper-trader/internal/models"
	"github.com/atharvakonge/paper-trader/internal/quote"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// stubQuotes serves fixed prices; symbols without a price are unavailable.
type stubQuotes struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
}

func newStubQuotes(prices map[string]string) *stubQuotes {
	s := &stubQuotes{prices: map[string]decimal.Decimal{}}
	for sym, p := range prices {
		s.prices[sym] = decimal.RequireFromString(p)
	}
	return s
}

func (s *stubQuotes) Lookup(_ context.Context, symbol string) (*models.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prices[symbol]
	if !ok {
		return nil, &apperrors.QuoteError{Symbol: symbol}
	}
	return &models.Quote{Symbol: symbol, Name: symbol + " Corp", Price: p}, nil
}

func (s *stubQuotes) set(symbol, price string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[symbol] = decimal.RequireFromString(price)
}

func (s *stubQuotes) remove(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.prices, symbol)
}

// MockProvider is a mock implementation of quote.Provider
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Lookup(ctx context.Context, symbol string) (*models.Quote, error) {
	args := m.Called(ctx, symbol)
	if q := args.Get(0); q != nil {
		return q.(*models.Quote), args.Error(1)
	}
	return nil, args.Error(1)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func setup(t *testing.T, cash string, quotes quote.Provider) (*Service, db.Store, *models.User) {
	t.Helper()
	store := db.NewMemoryStore()
	user := db.CreateTestUser(t, store, "trader", cash)
	return NewService(store, quotes, 0, logger.NewNoopLogger()), store, user
}

func cashOf(t *testing.T, store db.Store, userID int64) decimal.Decimal {
	t.Helper()
	u, err := store.GetUser(context.Background(), userID)
	require.NoError(t, err)
	return u.Cash
}

func TestBuySellScenario(t *testing.T) {
	sim := quote.NewSimulator(nil, 1, logger.NewNoopLogger())
	sim.Set("AAPL", dec("150.00"))
	svc, store, user := setup(t, "10000.00", sim)
	ctx := context.Background()

	r, err := svc.Buy(ctx, user.ID, "aapl", "10")
	require.NoError(t, err)
	assert.True(t, r.Cash.Equal(dec("8500")), r.Cash.String())
	assert.Equal(t, models.SideBuy, r.Transaction.Side)
	assert.Equal(t, "AAPL", r.Transaction.Symbol)

	sim.Set("AAPL", dec("160.00"))
	r, err = svc.Sell(ctx, user.ID, "AAPL", "4")
	require.NoError(t, err)
	assert.True(t, r.Cash.Equal(dec("9140")), r.Cash.String())

	positions, err := svc.Positions(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(6), positions.Shares("AAPL"))

	_, err = svc.Sell(ctx, user.ID, "AAPL", "7")
	assert.ErrorIs(t, err, apperrors.ErrInsufficientShares)
	var detail *apperrors.InsufficientSharesError
	require.ErrorAs(t, err, &detail)
	assert.Equal(t, int64(6), detail.Held)

	assert.True(t, cashOf(t, store, user.ID).Equal(dec("9140")))
	txns, err := store.ListTransactions(ctx, user.ID, 0)
	require.NoError(t, err)
	assert.Len(t, txns, 2)
}

func TestBuyValidationOrder(t *testing.T) {
	quotes := newStubQuotes(map[string]string{"AAPL": "150.00"})
	svc, store, user := setup(t, "10000", quotes)

	tests := []struct {
		name   string
		symbol string
		shares string
		want   error
	}{
		{"symbol missing beats everything", "  ", "abc", apperrors.ErrSymbolRequired},
		{"quote unavailable beats bad shares", "NOPE", "abc", apperrors.ErrQuoteUnavailable},
		{"shares not integer", "AAPL", "abc", apperrors.ErrSharesNotInteger},
		{"shares fractional", "AAPL", "1.5", apperrors.ErrSharesNotInteger},
		{"shares empty", "AAPL", "", apperrors.ErrSharesNotInteger},
		{"shares zero", "AAPL", "0", apperrors.ErrSharesNotPositive},
		{"shares negative", "AAPL", "-3", apperrors.ErrSharesNotPositive},
		{"insufficient cash", "AAPL", "67", apperrors.ErrInsufficientCash},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Buy(context.Background(), user.ID, tt.symbol, tt.shares)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.True(t, cashOf(t, store, user.ID).Equal(dec("10000")))
	txns, err := store.ListTransactions(context.Background(), user.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, txns)
}

func TestBuyInsufficientCashDetail(t *testing.T) {
	svc, _, user := setup(t, "100", newStubQuotes(map[string]string{"MSFT": "60"}))

	_, err := svc.Buy(context.Background(), user.ID, "MSFT", "2")
	var detail *apperrors.InsufficientCashError
	require.ErrorAs(t, err, &detail)
	assert.Equal(t, "120", detail.Required)
	assert.Equal(t, "100", detail.Available)
	assert.Equal(t, int64(2), detail.Shares)
}

func TestBuyExactCashLeavesZero(t *testing.T) {
	svc, store, user := setup(t, "1500.00", newStubQuotes(map[string]string{"AAPL": "150.00"}))
	ctx := context.Background()

	r, err := svc.Buy(ctx, user.ID, "AAPL", "10")
	require.NoError(t, err)
	assert.True(t, r.Cash.IsZero())

	_, err = svc.Buy(ctx, user.ID, "AAPL", "1")
	assert.ErrorIs(t, err, apperrors.ErrInsufficientCash)
	assert.True(t, cashOf(t, store, user.ID).IsZero())
}

func TestBuyRoundsQuoteToPriceScale(t *testing.T) {
	svc, _, user := setup(t, "10000", newStubQuotes(map[string]string{"XYZ": "33.333333"}))

	r, err := svc.Buy(context.Background(), user.ID, "XYZ", "3")
	require.NoError(t, err)
	assert.Equal(t, "33.3333", r.Transaction.Price.String())
	assert.True(t, r.Cash.Equal(dec("9900.0001")), r.Cash.String())
}

func TestSellValidationOrder(t *testing.T) {
	quotes := newStubQuotes(map[string]string{"AAPL": "100"})
	svc, store, user := setup(t, "10000", quotes)
	ctx := context.Background()

	_, err := svc.Sell(ctx, user.ID, "AAPL", "abc")
	assert.ErrorIs(t, err, apperrors.ErrSymbolNotHeld, "nothing held yet")

	_, err = svc.Buy(ctx, user.ID, "AAPL", "5")
	require.NoError(t, err)

	tests := []struct {
		name   string
		symbol string
		shares string
		want   error
	}{
		{"symbol missing", "", "1", apperrors.ErrSymbolNotHeld},
		{"symbol not held beats bad shares", "MSFT", "abc", apperrors.ErrSymbolNotHeld},
		{"shares not integer", "aapl", "x", apperrors.ErrSharesNotInteger},
		{"shares zero", "AAPL", "0", apperrors.ErrSharesNotPositive},
		{"too many shares", "AAPL", "6", apperrors.ErrInsufficientShares},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Sell(ctx, user.ID, tt.symbol, tt.shares)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	quotes.remove("AAPL")
	_, err = svc.Sell(ctx, user.ID, "AAPL", "6")
	assert.ErrorIs(t, err, apperrors.ErrInsufficientShares, "share check precedes quote")
	_, err = svc.Sell(ctx, user.ID, "AAPL", "5")
	assert.ErrorIs(t, err, apperrors.ErrQuoteUnavailable)

	assert.True(t, cashOf(t, store, user.ID).Equal(dec("9500")))
}

func TestSellSkipsQuoteWhenNotHeld(t *testing.T) {
	m := new(MockProvider)
	svc, _, user := setup(t, "10000", m)

	_, err := svc.Sell(context.Background(), user.ID, "AAPL", "1")
	assert.ErrorIs(t, err, apperrors.ErrSymbolNotHeld)
	m.AssertNotCalled(t, "Lookup", mock.Anything, mock.Anything)
}

func TestBuyWrapsProviderFailure(t *testing.T) {
	m := new(MockProvider)
	m.On("Lookup", mock.Anything, "AAPL").Return(nil, assert.AnError)
	svc, _, user := setup(t, "10000", m)

	_, err := svc.Buy(context.Background(), user.ID, "AAPL", "1")
	assert.ErrorIs(t, err, apperrors.ErrQuoteUnavailable)
	assert.ErrorIs(t, err, assert.AnError)
	m.AssertExpectations(t)
}

func TestSellEntirePosition(t *testing.T) {
	svc, _, user := setup(t, "10000", newStubQuotes(map[string]string{"TSLA": "250"}))
	ctx := context.Background()

	_, err := svc.Buy(ctx, user.ID, "TSLA", "4")
	require.NoError(t, err)
	r, err := svc.Sell(ctx, user.ID, "TSLA", "4")
	require.NoError(t, err)
	assert.True(t, r.Cash.Equal(dec("10000")))

	positions, err := svc.Positions(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), positions.Shares("TSLA"))
	assert.Empty(t, positions.Held())

	symbols, err := svc.SellableSymbols(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, symbols)

	_, err = svc.Sell(ctx, user.ID, "TSLA", "1")
	assert.ErrorIs(t, err, apperrors.ErrSymbolNotHeld)
}

func TestDeposit(t *testing.T) {
	svc, store, user := setup(t, "10000", newStubQuotes(nil))
	ctx := context.Background()

	r, err := svc.Deposit(ctx, user.ID, " 250 ")
	require.NoError(t, err)
	assert.Nil(t, r.Transaction)
	assert.True(t, r.Cash.Equal(dec("10250")))

	for input, want := range map[string]error{
		"abc":  apperrors.ErrDepositNotInteger,
		"12.5": apperrors.ErrDepositNotInteger,
		"0":    apperrors.ErrDepositNotPositive,
		"-10":  apperrors.ErrDepositNotPositive,
	} {
		_, err := svc.Deposit(ctx, user.ID, input)
		assert.ErrorIs(t, err, want, input)
	}

	txns, err := store.ListTransactions(ctx, user.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, txns, "deposits never create ledger entries")

	events, err := store.ListCashEvents(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, models.CashDeposit, events[1].Kind)
	assert.Nil(t, events[1].TransactionID)
}

func TestHistory(t *testing.T) {
	svc, _, user := setup(t, "10000", newStubQuotes(map[string]string{"AAPL": "10", "MSFT": "20"}))
	ctx := context.Background()

	_, err := svc.History(ctx, user.ID)
	assert.ErrorIs(t, err, apperrors.ErrNoHistory)

	_, err = svc.Buy(ctx, user.ID, "AAPL", "1")
	require.NoError(t, err)
	_, err = svc.Buy(ctx, user.ID, "MSFT", "2")
	require.NoError(t, err)
	_, err = svc.Sell(ctx, user.ID, "AAPL", "1")
	require.NoError(t, err)

	txns, err := svc.History(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, txns, 3)
	assert.Equal(t, "AAPL", txns[0].Symbol)
	assert.Equal(t, "MSFT", txns[1].Symbol)
	assert.Equal(t, models.SideSell, txns[2].Side)

	svc.historyLimit = 2
	txns, err = svc.History(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, "MSFT", txns[0].Symbol)
}

func TestPortfolio(t *testing.T) {
	quotes := newStubQuotes(map[string]string{"AAPL": "150", "MSFT": "300", "TSLA": "200"})
	svc, _, user := setup(t, "10000", quotes)
	ctx := context.Background()

	for sym, n := range map[string]string{"AAPL": "2", "MSFT": "1", "TSLA": "1"} {
		_, err := svc.Buy(ctx, user.ID, sym, n)
		require.NoError(t, err)
	}
	_, err := svc.Sell(ctx, user.ID, "TSLA", "1")
	require.NoError(t, err)

	quotes.set("AAPL", "160")
	quotes.remove("MSFT")

	p, err := svc.Portfolio(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, p.Holdings, 2, "TSLA is fully sold")

	aapl, msft := p.Holdings[0], p.Holdings[1]
	assert.Equal(t, "AAPL", aapl.Symbol)
	assert.Equal(t, "AAPL Corp", aapl.Name)
	require.NotNil(t, aapl.Value)
	assert.True(t, aapl.Value.Equal(dec("320")))

	assert.Equal(t, "MSFT", msft.Symbol)
	assert.Nil(t, msft.Price)
	assert.Nil(t, msft.Value)

	// 10000 - 300 - 300 - 200 + 200 = 9400 cash, plus 320 for AAPL
	assert.True(t, p.Cash.Equal(dec("9400")), p.Cash.String())
	assert.True(t, p.Total.Equal(dec("9720")), p.Total.String())
}

func TestQuote(t *testing.T) {
	svc, _, _ := setup(t, "10000", newStubQuotes(map[string]string{"AAPL": "150"}))
	ctx := context.Background()

	q, err := svc.Quote(ctx, " aapl")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", q.Symbol)

	_, err = svc.Quote(ctx, "")
	assert.ErrorIs(t, err, apperrors.ErrSymbolRequired)
	_, err = svc.Quote(ctx, "ZZZ")
	assert.ErrorIs(t, err, apperrors.ErrQuoteUnavailable)
}

func TestReconcile(t *testing.T) {
	quotes := newStubQuotes(map[string]string{"AAPL": "150.00"})
	svc, store, user := setup(t, "10000.00", quotes)
	ctx := context.Background()

	_, err := svc.Buy(ctx, user.ID, "AAPL", "10")
	require.NoError(t, err)
	quotes.set("AAPL", "160.00")
	_, err = svc.Sell(ctx, user.ID, "AAPL", "4")
	require.NoError(t, err)
	_, err = svc.Deposit(ctx, user.ID, "60")
	require.NoError(t, err)

	r, err := svc.Reconcile(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, r.Balanced(), "expected %s actual %s", r.Expected, r.Actual)
	assert.True(t, r.Actual.Equal(dec("9200")))
	assert.True(t, r.Bought.Equal(dec("1500")))
	assert.True(t, r.Sold.Equal(dec("640")))
	assert.True(t, r.Deposits.Equal(dec("60")))

	// drift introduced behind the service's back is reported
	require.NoError(t, store.WithinTx(ctx, func(tx db.Tx) error {
		return tx.UpdateCash(ctx, user.ID, dec("1"))
	}))
	r, err = svc.Reconcile(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, r.Balanced())
}

func TestCashInvariantAfterRandomTrades(t *testing.T) {
	quotes := newStubQuotes(map[string]string{"AAPL": "12.34", "MSFT": "56.78"})
	svc, store, user := setup(t, "10000", quotes)
	ctx := context.Background()

	ops := []struct {
		buy    bool
		sym, n string
	}{
		{true, "AAPL", "3"}, {true, "MSFT", "7"}, {false, "AAPL", "1"},
		{true, "AAPL", "11"}, {false, "MSFT", "7"}, {false, "AAPL", "13"},
		{true, "MSFT", "2"},
	}
	for _, op := range ops {
		var err error
		if op.buy {
			_, err = svc.Buy(ctx, user.ID, op.sym, op.n)
		} else {
			_, err = svc.Sell(ctx, user.ID, op.sym, op.n)
		}
		require.NoError(t, err)
	}

	txns, err := store.ListTransactions(ctx, user.ID, 0)
	require.NoError(t, err)
	expected := dec("10000")
	for _, txn := range txns {
		expected = expected.Add(txn.CashDelta())
	}
	assert.True(t, cashOf(t, store, user.ID).Equal(expected))

	positions, err := svc.Positions(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Positions{"AAPL": 0, "MSFT": 2}, positions)
}

func TestParseCount(t *testing.T) {
	tests := []struct {
		input string
		want  int64
		err   error
	}{
		{" 42 ", 42, nil},
		{"9223372036854775807", 9223372036854775807, nil},
		{"99999999999999999999", 0, apperrors.ErrSharesTooLarge},
		{"-99999999999999999999", 0, apperrors.ErrSharesNotPositive},
		{"0", 0, apperrors.ErrSharesNotPositive},
		{"1.5", 0, apperrors.ErrSharesNotInteger},
		{"", 0, apperrors.ErrSharesNotInteger},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			n, err := parseCount(tt.input, apperrors.ErrSharesNotInteger, apperrors.ErrSharesNotPositive, apperrors.ErrSharesTooLarge)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}
}

func TestDepositCashLimit(t *testing.T) {
	svc, store, user := setup(t, "10000.00", newStubQuotes(nil))
	ctx := context.Background()

	_, err := svc.Deposit(ctx, user.ID, "1000000000000000")
	assert.ErrorIs(t, err, apperrors.ErrCashLimitExceeded)
	assert.True(t, cashOf(t, store, user.ID).Equal(dec("10000")))

	events, err := store.ListCashEvents(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, events, 1)

	_, err = svc.Deposit(ctx, user.ID, "99999999999999999999")
	assert.ErrorIs(t, err, apperrors.ErrDepositTooLarge)

	r, err := svc.Deposit(ctx, user.ID, "999999999989999")
	require.NoError(t, err)
	assert.True(t, r.Cash.Equal(dec("999999999999999")), r.Cash.String())
}
