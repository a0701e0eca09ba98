package ledger

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/atharvakonge/paper-trader/internal/apperrors"
	"github.com/atharvakonge/paper-trader/internal/db"
	"github.com/atharvakonge/paper-trader/internal/logger"
	"github.com/atharvakonge/paper-trader/internal/models"
	"github.com/atharvakonge/paper-trader/internal/quote"
	"github.com/shopspring/decimal"
)

// Receipt describes the outcome of a cash-moving operation. Transaction is nil for
// deposits.
type Receipt struct {
	Transaction *models.Transaction `json:"transaction,omitempty"`
	Cash        decimal.Decimal     `json:"cash"`
}

// Service implements trading on top of the append-only ledger: positions are always
// folded from transactions, cash changes only inside a storage transaction that holds
// the user's row lock.
type Service struct {
	store        db.Store
	quotes       quote.Provider
	locks        *UserLocks
	historyLimit int
	log          logger.Logger
}

func NewService(store db.Store, quotes quote.Provider, historyLimit int, log logger.Logger) *Service {
	return &Service{
		store:        store,
		quotes:       quotes,
		locks:        NewUserLocks(),
		historyLimit: historyLimit,
		log:          log,
	}
}

// Positions returns the net share count per symbol, including zero and negative nets.
func (s *Service) Positions(ctx context.Context, userID int64) (models.Positions, error) {
	sums, err := s.store.SumShares(ctx, userID)
	if err != nil {
		return nil, err
	}
	return models.FoldShareSums(sums), nil
}

// Quote looks up a symbol for display.
func (s *Service) Quote(ctx context.Context, symbolInput string) (*models.Quote, error) {
	symbol := quote.NormalizeSymbol(symbolInput)
	if symbol == "" {
		return nil, apperrors.ErrSymbolRequired
	}
	return s.lookup(ctx, symbol)
}

// Buy purchases shares at the current quote. Checks run in order: symbol given, quote
// available, shares an integer, shares at least 1, enough cash.
func (s *Service) Buy(ctx context.Context, userID int64, symbolInput, sharesInput string) (*Receipt, error) {
	symbol := quote.NormalizeSymbol(symbolInput)
	if symbol == "" {
		return nil, apperrors.ErrSymbolRequired
	}
	q, err := s.lookup(ctx, symbol)
	if err != nil {
		return nil, err
	}
	shares, err := parseCount(sharesInput, apperrors.ErrSharesNotInteger, apperrors.ErrSharesNotPositive, apperrors.ErrSharesTooLarge)
	if err != nil {
		return nil, err
	}

	price := q.Price.Round(models.PriceScale)
	cost := price.Mul(decimal.NewFromInt(shares))

	unlock := s.locks.Lock(userID)
	defer unlock()

	var receipt *Receipt
	err = s.store.WithinTx(ctx, func(tx db.Tx) error {
		user, err := tx.LockUser(ctx, userID)
		if err != nil {
			return err
		}
		if cost.GreaterThan(user.Cash) {
			return &apperrors.InsufficientCashError{
				UserID:    userID,
				Symbol:    symbol,
				Shares:    shares,
				Required:  cost.String(),
				Available: user.Cash.String(),
			}
		}

		txn := &models.Transaction{UserID: userID, Side: models.SideBuy, Symbol: symbol, Price: price, Shares: shares}
		cash, err := s.apply(ctx, tx, user, txn)
		if err != nil {
			return err
		}
		receipt = &Receipt{Transaction: txn, Cash: cash}
		return nil
	})
	if err != nil {
		s.logRejected("Buy", userID, err)
		return nil, err
	}

	s.log.Info("Buy executed", map[string]any{
		"user_id":        userID,
		"symbol":         symbol,
		"shares":         shares,
		"price":          price.String(),
		"cash":           receipt.Cash.String(),
		"transaction_id": receipt.Transaction.ID,
	})
	return receipt, nil
}

// Sell disposes of held shares at the current quote. Checks run in order: symbol held,
// shares an integer, shares at least 1, enough shares, quote available. The position
// is folded again inside the storage transaction before anything is written.
func (s *Service) Sell(ctx context.Context, userID int64, symbolInput, sharesInput string) (*Receipt, error) {
	symbol := quote.NormalizeSymbol(symbolInput)

	unlock := s.locks.Lock(userID)
	defer unlock()

	positions, err := s.Positions(ctx, userID)
	if err != nil {
		return nil, err
	}
	held := positions.Shares(symbol)
	if symbol == "" || held <= 0 {
		return nil, apperrors.ErrSymbolNotHeld
	}

	shares, err := parseCount(sharesInput, apperrors.ErrSharesNotInteger, apperrors.ErrSharesNotPositive, apperrors.ErrSharesTooLarge)
	if err != nil {
		return nil, err
	}
	if shares > held {
		return nil, &apperrors.InsufficientSharesError{UserID: userID, Symbol: symbol, Requested: shares, Held: held}
	}

	q, err := s.lookup(ctx, symbol)
	if err != nil {
		return nil, err
	}
	price := q.Price.Round(models.PriceScale)

	var receipt *Receipt
	err = s.store.WithinTx(ctx, func(tx db.Tx) error {
		user, err := tx.LockUser(ctx, userID)
		if err != nil {
			return err
		}
		sums, err := tx.SumShares(ctx, userID)
		if err != nil {
			return err
		}
		if current := models.FoldShareSums(sums).Shares(symbol); shares > current {
			return &apperrors.InsufficientSharesError{UserID: userID, Symbol: symbol, Requested: shares, Held: current}
		}

		txn := &models.Transaction{UserID: userID, Side: models.SideSell, Symbol: symbol, Price: price, Shares: shares}
		cash, err := s.apply(ctx, tx, user, txn)
		if err != nil {
			return err
		}
		receipt = &Receipt{Transaction: txn, Cash: cash}
		return nil
	})
	if err != nil {
		s.logRejected("Sell", userID, err)
		return nil, err
	}

	s.log.Info("Sell executed", map[string]any{
		"user_id":        userID,
		"symbol":         symbol,
		"shares":         shares,
		"price":          price.String(),
		"cash":           receipt.Cash.String(),
		"transaction_id": receipt.Transaction.ID,
	})
	return receipt, nil
}

// Deposit adds a whole-dollar amount to cash. It writes an audit record but no ledger
// transaction.
func (s *Service) Deposit(ctx context.Context, userID int64, amountInput string) (*Receipt, error) {
	amount, err := parseCount(amountInput, apperrors.ErrDepositNotInteger, apperrors.ErrDepositNotPositive, apperrors.ErrDepositTooLarge)
	if err != nil {
		return nil, err
	}
	delta := decimal.NewFromInt(amount)

	unlock := s.locks.Lock(userID)
	defer unlock()

	var cash decimal.Decimal
	err = s.store.WithinTx(ctx, func(tx db.Tx) error {
		user, err := tx.LockUser(ctx, userID)
		if err != nil {
			return err
		}
		cash = user.Cash.Add(delta)
		if err := tx.UpdateCash(ctx, userID, cash); err != nil {
			return err
		}
		return tx.AppendCashEvent(ctx, &models.CashEvent{
			UserID:       userID,
			Kind:         models.CashDeposit,
			Amount:       delta,
			BalanceAfter: cash,
		})
	})
	if err != nil {
		s.logRejected("Deposit", userID, err)
		return nil, err
	}

	s.log.Info("Deposit recorded", map[string]any{"user_id": userID, "amount": delta.String(), "cash": cash.String()})
	return &Receipt{Cash: cash}, nil
}

// History returns the user's transactions oldest first.
func (s *Service) History(ctx context.Context, userID int64) ([]models.Transaction, error) {
	txns, err := s.store.ListTransactions(ctx, userID, s.historyLimit)
	if err != nil {
		return nil, err
	}
	if len(txns) == 0 {
		return nil, apperrors.ErrNoHistory
	}
	return txns, nil
}

// SellableSymbols lists the symbols with a positive position, sorted.
func (s *Service) SellableSymbols(ctx context.Context, userID int64) ([]string, error) {
	positions, err := s.Positions(ctx, userID)
	if err != nil {
		return nil, err
	}
	return positions.Held().Symbols(), nil
}

// Portfolio prices every held position. A holding whose quote fails keeps a nil price
// and is left out of the total.
func (s *Service) Portfolio(ctx context.Context, userID int64) (*models.Portfolio, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	positions, err := s.Positions(ctx, userID)
	if err != nil {
		return nil, err
	}

	held := positions.Held()
	p := &models.Portfolio{Holdings: make([]models.Holding, 0, len(held)), Cash: user.Cash}
	total := user.Cash
	for _, symbol := range held.Symbols() {
		h := models.Holding{Symbol: symbol, Name: symbol, Shares: held[symbol]}

		q, err := s.lookup(ctx, symbol)
		if err != nil {
			fields := apperrors.LogFields(err)
			fields["user_id"] = userID
			s.log.Warn("Holding left unpriced", fields)
			p.Holdings = append(p.Holdings, h)
			continue
		}

		price := q.Price.Round(models.PriceScale)
		value := price.Mul(decimal.NewFromInt(h.Shares))
		h.Name = q.Name
		h.Price = &price
		h.Value = &value
		total = total.Add(value)
		p.Holdings = append(p.Holdings, h)
	}
	p.Total = total
	return p, nil
}

// Reconcile derives cash from the audit trail and the ledger and compares it with the
// stored balance.
func (s *Service) Reconcile(ctx context.Context, userID int64) (*models.Reconciliation, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	events, err := s.store.ListCashEvents(ctx, userID)
	if err != nil {
		return nil, err
	}
	txns, err := s.store.ListTransactions(ctx, userID, 0)
	if err != nil {
		return nil, err
	}

	r := &models.Reconciliation{UserID: userID, Actual: user.Cash}
	for _, e := range events {
		switch e.Kind {
		case models.CashOpening:
			r.Opening = r.Opening.Add(e.Amount)
		case models.CashDeposit:
			r.Deposits = r.Deposits.Add(e.Amount)
		}
	}
	for _, t := range txns {
		switch t.Side {
		case models.SideBuy:
			r.Bought = r.Bought.Add(t.Total())
		case models.SideSell:
			r.Sold = r.Sold.Add(t.Total())
		}
	}
	r.Expected = r.Opening.Add(r.Deposits).Sub(r.Bought).Add(r.Sold)

	if !r.Balanced() {
		s.log.Error("Cash drift detected", map[string]any{
			"user_id":  userID,
			"expected": r.Expected.String(),
			"actual":   r.Actual.String(),
		})
	}
	return r, nil
}

// apply appends txn, moves cash by its delta and records the audit event.
func (s *Service) apply(ctx context.Context, tx db.Tx, user *models.User, txn *models.Transaction) (decimal.Decimal, error) {
	if err := tx.AppendTransaction(ctx, txn); err != nil {
		return decimal.Decimal{}, err
	}

	delta := txn.CashDelta()
	cash := user.Cash.Add(delta)
	if err := tx.UpdateCash(ctx, user.ID, cash); err != nil {
		return decimal.Decimal{}, err
	}

	kind := models.CashBuy
	if txn.Side == models.SideSell {
		kind = models.CashSell
	}
	id := txn.ID
	err := tx.AppendCashEvent(ctx, &models.CashEvent{
		UserID:        user.ID,
		Kind:          kind,
		Amount:        delta,
		BalanceAfter:  cash,
		TransactionID: &id,
	})
	return cash, err
}

// lookup normalizes every provider failure into a QuoteError.
func (s *Service) lookup(ctx context.Context, symbol string) (*models.Quote, error) {
	q, err := s.quotes.Lookup(ctx, symbol)
	if err != nil {
		var qe *apperrors.QuoteError
		if errors.As(err, &qe) {
			return nil, err
		}
		return nil, &apperrors.QuoteError{Symbol: symbol, Err: err}
	}
	if q == nil || !q.Price.IsPositive() {
		return nil, &apperrors.QuoteError{Symbol: symbol}
	}
	return q, nil
}

func (s *Service) logRejected(op string, userID int64, err error) {
	fields := apperrors.LogFields(err)
	fields["user_id"] = userID
	fields["operation"] = op
	if apperrors.CategoryOf(err) == apperrors.CategoryInternal {
		s.log.Error(op+" failed", fields)
		return
	}
	s.log.Info(op+" rejected", fields)
}

// parseCount reads a whole number of shares or dollars. Integers beyond int64 are
// reported as too large, or as not positive when negative.
func parseCount(input string, notInteger, notPositive, tooLarge error) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(input), 10, 64)
	if errors.Is(err, strconv.ErrRange) {
		if n < 0 {
			return 0, notPositive
		}
		return 0, tooLarge
	}
	if err != nil {
		return 0, notInteger
	}
	if n < 1 {
		return 0, notPositive
	}
	return n, nil
}
