package db

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/atharvakonge/paper-trader/internal/apperrors"
	"github.com/atharvakonge/paper-trader/internal/models"
	"github.com/shopspring/decimal"
)

// MemoryStore keeps everything in process. Transactions take the write lock and work
// on a copy of the state that replaces the original only when fn succeeds, which gives
// the same all-or-nothing result as the database stores.
type MemoryStore struct {
	mu    sync.RWMutex
	state *memState
	now   func() time.Time
}

type memState struct {
	users     map[int64]models.User
	usernames map[string]int64
	txns      []models.Transaction
	events    []models.CashEvent
	sessions  map[string]models.Session

	nextUserID  int64
	nextTxnID   int64
	nextEventID int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: &memState{
			users:     make(map[int64]models.User),
			usernames: make(map[string]int64),
			sessions:  make(map[string]models.Session),
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (s *memState) clone() *memState {
	cp := &memState{
		users:       make(map[int64]models.User, len(s.users)),
		usernames:   make(map[string]int64, len(s.usernames)),
		txns:        append([]models.Transaction(nil), s.txns...),
		events:      append([]models.CashEvent(nil), s.events...),
		sessions:    s.sessions,
		nextUserID:  s.nextUserID,
		nextTxnID:   s.nextTxnID,
		nextEventID: s.nextEventID,
	}
	for k, v := range s.users {
		cp.users[k] = v
	}
	for k, v := range s.usernames {
		cp.usernames[k] = v
	}
	return cp
}

func (s *MemoryStore) CreateUser(ctx context.Context, user *models.User, opening *models.CashEvent) error {
	return s.WithinTx(ctx, func(t Tx) error {
		tx := t.(*memTx)
		if _, taken := tx.state.usernames[user.Username]; taken {
			return apperrors.ErrDuplicateUsername
		}

		tx.state.nextUserID++
		user.ID = tx.state.nextUserID
		user.CreatedAt = s.now()
		tx.state.users[user.ID] = *user
		tx.state.usernames[user.Username] = user.ID

		if opening != nil {
			opening.UserID = user.ID
			return tx.AppendCashEvent(ctx, opening)
		}
		return nil
	})
}

func (s *MemoryStore) GetUser(_ context.Context, id int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.state.users[id]
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	return &u, nil
}

func (s *MemoryStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	id, ok := s.state.usernames[username]
	s.mu.RUnlock()
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	return s.GetUser(ctx, id)
}

func (s *MemoryStore) UpdatePasswordHash(_ context.Context, userID int64, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.state.users[userID]
	if !ok {
		return apperrors.ErrUserNotFound
	}
	u.PasswordHash = hash
	s.state.users[userID] = u
	return nil
}

func (s *MemoryStore) SumShares(_ context.Context, userID int64) ([]models.ShareSum, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.sumShares(userID), nil
}

func (s *MemoryStore) ListTransactions(_ context.Context, userID int64, limit int) ([]models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Transaction{}
	for _, t := range s.state.txns {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *MemoryStore) ListCashEvents(_ context.Context, userID int64) ([]models.CashEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.CashEvent{}
	for _, e := range s.state.events {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *MemoryStore) CreateSession(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.state.users[session.UserID]; !ok {
		return apperrors.ErrUserNotFound
	}
	session.CreatedAt = s.now()
	s.state.sessions[session.Token] = *session
	return nil
}

func (s *MemoryStore) GetSession(_ context.Context, token string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.state.sessions[token]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &sess, nil
}

func (s *MemoryStore) DeleteSession(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.state.sessions, token)
	return nil
}

func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(&memTx{state: work, now: s.now}); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (s *MemoryStore) Close() error { return nil }

func (s *memState) sumShares(userID int64) []models.ShareSum {
	type key struct {
		symbol string
		side   models.Side
	}
	totals := make(map[key]int64)
	var order []key
	for _, t := range s.txns {
		if t.UserID != userID {
			continue
		}
		k := key{t.Symbol, t.Side}
		if _, seen := totals[k]; !seen {
			order = append(order, k)
		}
		totals[k] += t.Shares
	}

	sums := make([]models.ShareSum, 0, len(order))
	for _, k := range order {
		sums = append(sums, models.ShareSum{Symbol: k.symbol, Side: k.side, Shares: totals[k]})
	}
	return sums
}

// memTx runs with the store's write lock held, so LockUser needs no extra locking.
type memTx struct {
	state *memState
	now   func() time.Time
}

func (t *memTx) LockUser(_ context.Context, userID int64) (*models.User, error) {
	u, ok := t.state.users[userID]
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	return &u, nil
}

func (t *memTx) SumShares(_ context.Context, userID int64) ([]models.ShareSum, error) {
	return t.state.sumShares(userID), nil
}

func (t *memTx) AppendTransaction(_ context.Context, txn *models.Transaction) error {
	if !txn.Side.Valid() {
		return fmt.Errorf("record transaction: unknown trade side %q", txn.Side)
	}
	t.state.nextTxnID++
	txn.ID = t.state.nextTxnID
	txn.CreatedAt = t.now()
	t.state.txns = append(t.state.txns, *txn)
	return nil
}

func (t *memTx) UpdateCash(_ context.Context, userID int64, cash decimal.Decimal) error {
	if cash.IsNegative() {
		return fmt.Errorf("update cash: balance %s violates cash_nonnegative", cash)
	}
	if cash.GreaterThan(models.MaxCash) {
		return apperrors.ErrCashLimitExceeded
	}
	u, ok := t.state.users[userID]
	if !ok {
		return apperrors.ErrUserNotFound
	}
	u.Cash = cash
	t.state.users[userID] = u
	return nil
}

func (t *memTx) AppendCashEvent(_ context.Context, event *models.CashEvent) error {
	t.state.nextEventID++
	event.ID = t.state.nextEventID
	event.CreatedAt = t.now()
	t.state.events = append(t.state.events, *event)
	return nil
}
