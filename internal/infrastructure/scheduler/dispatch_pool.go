package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/oms/backend/internal/application/shipping"
)

// ItemProcessor books one dispatch job item. Implementations must be
// safe to call twice for the same item.
type ItemProcessor interface {
	ProcessItem(ctx context.Context, work shipping.WorkItem) error
}

// DispatchPoolConfig holds configuration for the dispatch worker pool
type DispatchPoolConfig struct {
	// Workers is the number of concurrent booking workers
	Workers int
	// QueueSize is the buffered work queue capacity
	QueueSize int
	// ItemTimeout bounds one courier booking call
	ItemTimeout time.Duration
	// RetryAttempts is the number of retries for items whose processing
	// errored before reaching a persisted outcome
	RetryAttempts int
	// RetryDelay is the base delay between retries (with exponential backoff)
	RetryDelay time.Duration
}

// DefaultDispatchPoolConfig returns default configuration
func DefaultDispatchPoolConfig() DispatchPoolConfig {
	return DispatchPoolConfig{
		Workers:       4,
		QueueSize:     256,
		ItemTimeout:   30 * time.Second,
		RetryAttempts: 3,
		RetryDelay:    2 * time.Second,
	}
}

// Validate validates the configuration
func (c *DispatchPoolConfig) Validate() error {
	if c.Workers <= 0 {
		return ErrInvalidConfig
	}
	if c.QueueSize <= 0 {
		return ErrInvalidConfig
	}
	if c.ItemTimeout <= 0 {
		return ErrInvalidConfig
	}
	if c.RetryAttempts < 0 {
		return ErrInvalidConfig
	}
	return nil
}

// queuedItem carries the retry state of one enqueued work item
type queuedItem struct {
	work     shipping.WorkItem
	attempts int
	notAfter *time.Time
}

// DispatchPool runs the background workers that book dispatch job
// items with the courier. Work items are durable in the job tables;
// the pool is only the in-process conveyor, so anything lost on
// shutdown is re-enqueued from the database on the next start.
type DispatchPool struct {
	config    DispatchPoolConfig
	processor ItemProcessor
	logger    *zap.Logger

	items     chan queuedItem
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewDispatchPool creates a new dispatch worker pool
func NewDispatchPool(config DispatchPoolConfig, processor ItemProcessor, logger *zap.Logger) (*DispatchPool, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &DispatchPool{
		config:    config,
		processor: processor,
		logger:    logger,
		items:     make(chan queuedItem, config.QueueSize),
	}, nil
}

// Start starts the worker pool
func (p *DispatchPool) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.isRunning {
		p.mu.Unlock()
		return nil
	}
	p.isRunning = true
	p.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	for i := 0; i < p.config.Workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}

	p.logger.Info("dispatch worker pool started",
		zap.Int("workers", p.config.Workers),
		zap.Duration("item_timeout", p.config.ItemTimeout),
	)
	return nil
}

// Stop gracefully stops the pool
func (p *DispatchPool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.isRunning {
		p.mu.Unlock()
		return nil
	}
	p.isRunning = false
	p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
	}
	// The queue channel stays open: workers exit on context
	// cancellation, and a worker mid-retry or a racing Enqueue may
	// still send. Items left in the buffer are re-enqueued from the
	// database on the next start.

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("dispatch worker pool stopped gracefully")
		return nil
	case <-ctx.Done():
		p.logger.Warn("dispatch worker pool stop timed out")
		return ctx.Err()
	}
}

// Enqueue submits one work item for processing
func (p *DispatchPool) Enqueue(work shipping.WorkItem) error {
	p.mu.Lock()
	if !p.isRunning {
		p.mu.Unlock()
		return ErrPoolNotRunning
	}
	p.mu.Unlock()

	select {
	case p.items <- queuedItem{work: work}:
		return nil
	default:
		return ErrQueueFull
	}
}

// worker processes items from the queue
func (p *DispatchPool) worker(ctx context.Context, workerID int) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case item, ok := <-p.items:
			if !ok {
				return
			}
			p.processItem(ctx, item, workerID)
		}
	}
}

// processItem runs one booking with a timeout. A returned error means
// the processor never reached a persisted outcome (the database was
// down, the job row was locked), so the item is retried with backoff;
// booking failures are persisted by the processor and return nil.
func (p *DispatchPool) processItem(ctx context.Context, item queuedItem, workerID int) {
	if item.notAfter != nil {
		if wait := time.Until(*item.notAfter); wait > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
		}
	}

	itemCtx, cancel := context.WithTimeout(ctx, p.config.ItemTimeout)
	err := p.processor.ProcessItem(itemCtx, item.work)
	cancel()
	if err == nil {
		return
	}

	p.logger.Warn("dispatch item processing errored",
		zap.Int("worker_id", workerID),
		zap.String("job_id", item.work.JobID.String()),
		zap.String("item_id", item.work.ItemID.String()),
		zap.Int("attempts", item.attempts),
		zap.Error(err),
	)

	if item.attempts >= p.config.RetryAttempts {
		// left in pending/processing state; picked up again at startup
		p.logger.Error("dispatch item abandoned after retries",
			zap.String("item_id", item.work.ItemID.String()),
		)
		return
	}

	item.attempts++
	// Exponential backoff: RetryDelay * 2^(attempts-1)
	delay := p.config.RetryDelay * time.Duration(1<<(item.attempts-1))
	next := time.Now().Add(delay)
	item.notAfter = &next

	select {
	case p.items <- item:
	default:
		p.logger.Warn("failed to re-queue dispatch item for retry",
			zap.String("item_id", item.work.ItemID.String()),
		)
	}
}
