package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/atharvakonge/paper-trader/internal/logger"
)

// ErrProcessorStopped is returned by Submit once Stop has been called.
var ErrProcessorStopped = errors.New("trade processor stopped")

// TradeKind selects the Service operation a request runs.
type TradeKind int

const (
	KindBuy TradeKind = iota
	KindSell
	KindDeposit
)

func (k TradeKind) String() string {
	switch k {
	case KindBuy:
		return "buy"
	case KindSell:
		return "sell"
	case KindDeposit:
		return "deposit"
	}
	return fmt.Sprintf("TradeKind(%d)", int(k))
}

// TradeRequest represents a trade to be processed. Symbol is unused for deposits and
// Quantity holds the raw share count or dollar amount.
type TradeRequest struct {
	Kind     TradeKind
	UserID   int64
	Symbol   string
	Quantity string
}

// TradeResult represents result of a trade operation
type TradeResult struct {
	Receipt *Receipt
	Err     error
}

type job struct {
	ctx      context.Context
	req      TradeRequest
	resultCh chan TradeResult
}

// Processor runs trades on a fixed pool of workers. Submit waits for the result, so
// callers still see a synchronous operation.
type Processor struct {
	svc      *Service
	workers  int
	queue    chan job
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// mu guards stopped against concurrent enqueues
	mu      sync.RWMutex
	stopped bool

	log logger.Logger
}

// NewProcessor creates a new trade processor with worker pool
func NewProcessor(svc *Service, workers, queueSize int, log logger.Logger) *Processor {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	return &Processor{
		svc:     svc,
		workers: workers,
		queue:   make(chan job, queueSize),
		stopCh:  make(chan struct{}),
		log:     log,
	}
}

// Start starts the worker pool
func (p *Processor) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.log.Info("Trade workers started", map[string]any{"workers": p.workers, "queue_size": cap(p.queue)})
}

// Stop gracefully stops all workers. Trades already running finish; requests still
// queued fail with ErrProcessorStopped.
func (p *Processor) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		p.mu.Unlock()

		close(p.stopCh)
		p.wg.Wait()

		dropped := 0
	drain:
		for {
			select {
			case j := <-p.queue:
				j.resultCh <- TradeResult{Err: ErrProcessorStopped}
				dropped++
			default:
				break drain
			}
		}
		p.log.Info("Trade processor stopped", map[string]any{"dropped": dropped})
	})
}

func (p *Processor) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopCh:
			return
		case j := <-p.queue:
			p.log.Debug("Processing trade", map[string]any{
				"worker":  id,
				"kind":    j.req.Kind.String(),
				"user_id": j.req.UserID,
				"symbol":  j.req.Symbol,
			})
			j.resultCh <- p.process(j.ctx, j.req)
		}
	}
}

func (p *Processor) process(ctx context.Context, req TradeRequest) TradeResult {
	if err := ctx.Err(); err != nil {
		return TradeResult{Err: err}
	}

	var (
		r   *Receipt
		err error
	)
	switch req.Kind {
	case KindBuy:
		r, err = p.svc.Buy(ctx, req.UserID, req.Symbol, req.Quantity)
	case KindSell:
		r, err = p.svc.Sell(ctx, req.UserID, req.Symbol, req.Quantity)
	case KindDeposit:
		r, err = p.svc.Deposit(ctx, req.UserID, req.Quantity)
	default:
		err = fmt.Errorf("unknown trade kind %v", req.Kind)
	}
	return TradeResult{Receipt: r, Err: err}
}

// Submit queues req and blocks until a worker has executed it or ctx is done.
func (p *Processor) Submit(ctx context.Context, req TradeRequest) (*Receipt, error) {
	// buffered so a worker never blocks on a caller that gave up
	resultCh := make(chan TradeResult, 1)

	p.mu.RLock()
	if p.stopped {
		p.mu.RUnlock()
		return nil, ErrProcessorStopped
	}
	select {
	case p.queue <- job{ctx: ctx, req: req, resultCh: resultCh}:
		p.mu.RUnlock()
	case <-ctx.Done():
		p.mu.RUnlock()
		return nil, ctx.Err()
	}

	select {
	case res := <-resultCh:
		return res.Receipt, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Processor) Buy(ctx context.Context, userID int64, symbol, shares string) (*Receipt, error) {
	return p.Submit(ctx, TradeRequest{Kind: KindBuy, UserID: userID, Symbol: symbol, Quantity: shares})
}

func (p *Processor) Sell(ctx context.Context, userID int64, symbol, shares string) (*Receipt, error) {
	return p.Submit(ctx, TradeRequest{Kind: KindSell, UserID: userID, Symbol: symbol, Quantity: shares})
}

func (p *Processor) Deposit(ctx context.Context, userID int64, amount string) (*Receipt, error) {
	return p.Submit(ctx, TradeRequest{Kind: KindDeposit, UserID: userID, Quantity: amount})
}
