package ledger

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/atharvakonge/paper-trader/internal/apperrors"
	"github.com/atharvakonge/paper-trader/internal/db"
	"github.com/atharvakonge/paper-trader/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProcessor(t *testing.T, cash string, prices map[string]string, workers int) (*Processor, db.Store, int64) {
	t.Helper()
	svc, store, user := setup(t, cash, newStubQuotes(prices))
	p := NewProcessor(svc, workers, 16, logger.NewNoopLogger())
	p.Start()
	t.Cleanup(p.Stop)
	return p, store, user.ID
}

func TestProcessorRunsTrades(t *testing.T) {
	p, store, userID := newProcessor(t, "10000", map[string]string{"AAPL": "150"}, 2)
	ctx := context.Background()

	r, err := p.Buy(ctx, userID, "AAPL", "10")
	require.NoError(t, err)
	assert.True(t, r.Cash.Equal(dec("8500")))

	r, err = p.Sell(ctx, userID, "AAPL", "10")
	require.NoError(t, err)
	assert.True(t, r.Cash.Equal(dec("10000")))

	r, err = p.Deposit(ctx, userID, "5")
	require.NoError(t, err)
	assert.True(t, r.Cash.Equal(dec("10005")))

	_, err = p.Buy(ctx, userID, "AAPL", "0")
	assert.ErrorIs(t, err, apperrors.ErrSharesNotPositive)

	assert.True(t, cashOf(t, store, userID).Equal(dec("10005")))
}

// Concurrent buys by one user may never overspend: with cash for exactly ten shares,
// exactly ten of twenty one-share buys succeed.
func TestProcessorConcurrentBuysSameUser(t *testing.T) {
	p, store, userID := newProcessor(t, "1000", map[string]string{"AAPL": "100"}, 4)
	ctx := context.Background()

	var ok, rejected int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Buy(ctx, userID, "AAPL", "1")
			switch {
			case err == nil:
				atomic.AddInt32(&ok, 1)
			case assert.ErrorIs(t, err, apperrors.ErrInsufficientCash):
				atomic.AddInt32(&rejected, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), ok)
	assert.Equal(t, int32(10), rejected)
	assert.True(t, cashOf(t, store, userID).IsZero())

	sums, err := store.SumShares(ctx, userID)
	require.NoError(t, err)
	require.Len(t, sums, 1)
	assert.Equal(t, int64(10), sums[0].Shares)
}

func TestProcessorConcurrentSellsNeverOversell(t *testing.T) {
	p, store, userID := newProcessor(t, "1000", map[string]string{"AAPL": "10"}, 4)
	ctx := context.Background()

	_, err := p.Buy(ctx, userID, "AAPL", "5")
	require.NoError(t, err)

	var wg sync.WaitGroup
	var sold int32
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Sell(ctx, userID, "AAPL", "1"); err == nil {
				atomic.AddInt32(&sold, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(5), sold)
	assert.True(t, cashOf(t, store, userID).Equal(dec("1000")))
}

func TestProcessorStopped(t *testing.T) {
	svc, _, user := setup(t, "100", newStubQuotes(nil))
	p := NewProcessor(svc, 1, 1, logger.NewNoopLogger())
	p.Start()
	p.Stop()
	p.Stop()

	_, err := p.Deposit(context.Background(), user.ID, "1")
	assert.ErrorIs(t, err, ErrProcessorStopped)
}

func TestProcessorStopFailsQueuedRequests(t *testing.T) {
	svc, _, user := setup(t, "100", newStubQuotes(nil))
	// never started, so the request stays queued
	p := NewProcessor(svc, 1, 1, logger.NewNoopLogger())

	errCh := make(chan error, 1)
	go func() {
		_, err := p.Deposit(context.Background(), user.ID, "1")
		errCh <- err
	}()

	require.Eventually(t, func() bool { return len(p.queue) == 1 }, time.Second, time.Millisecond)
	p.Stop()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrProcessorStopped)
	case <-time.After(time.Second):
		t.Fatal("queued request was not released")
	}
}

func TestProcessorContextCancelled(t *testing.T) {
	svc, store, user := setup(t, "100", newStubQuotes(nil))
	p := NewProcessor(svc, 1, 0, logger.NewNoopLogger())
	defer p.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Deposit(ctx, user.ID, "1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, cashOf(t, store, user.ID).Equal(dec("100")))
}

func TestTradeKindString(t *testing.T) {
	assert.Equal(t, "buy", KindBuy.String())
	assert.Equal(t, "sell", KindSell.String())
	assert.Equal(t, "deposit", KindDeposit.String())
	assert.Equal(t, "TradeKind(9)", TradeKind(9).String())
}

func TestUserLocks(t *testing.T) {
	locks := NewUserLocks()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock(7)
			defer unlock()

			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(100 * time.Microsecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, locks.size())
}

func TestUserLocksIndependentUsers(t *testing.T) {
	locks := NewUserLocks()
	unlockA := locks.Lock(1)

	done := make(chan struct{})
	go func() {
		unlockB := locks.Lock(2)
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("user 2 blocked behind user 1")
	}

	unlockA()
	unlockA()
	assert.Equal(t, 0, locks.size())
}
