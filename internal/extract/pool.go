package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/time/rate"
)

var (
	// ErrQueueFull is returned when the pool cannot accept more work.
	ErrQueueFull = errors.New("extraction queue full")

	// ErrPoolStopped is returned when the pool has been shut down.
	ErrPoolStopped = errors.New("extraction pool stopped")
)

// Pool runs extractions on a fixed set of workers.
// All workers share a single queue - natural load balancing via Go channel semantics.
type Pool struct {
	name        string
	logger      *slog.Logger
	workerCount int
	extractor   TextExtractor
	limiter     *rate.Limiter

	// Single shared queue (all workers pull from this)
	queue chan *task
	done  chan struct{}

	inFlight atomic.Int32
	started  atomic.Bool
}

// PoolStatus reports current pool state.
type PoolStatus struct {
	Name       string  `json:"name"`
	Workers    int     `json:"workers"`
	InFlight   int     `json:"in_flight"`
	QueueDepth int     `json:"queue_depth"`
	QueueSize  int     `json:"queue_size"`
	RateLimit  float64 `json:"rate_limit,omitempty"`
}

// PoolConfig configures a new Pool.
type PoolConfig struct {
	Name        string
	Logger      *slog.Logger
	Extractor   TextExtractor
	WorkerCount int     // Number of worker goroutines (default: 1)
	QueueSize   int     // Queue size (default: 64)
	RateLimit   float64 // Admissions per second, 0 disables limiting
}

type task struct {
	ctx   context.Context
	data  []byte
	reply chan outcome
}

type outcome struct {
	result *Result
	err    error
}

// NewPool creates a new extraction pool. Call Start before submitting work.
func NewPool(cfg PoolConfig) *Pool {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	name := cfg.Name
	if name == "" {
		name = "extract"
	}

	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 64
	}

	workerCount := cfg.WorkerCount
	if workerCount <= 0 {
		workerCount = 1
	}

	extractor := cfg.Extractor
	if extractor == nil {
		extractor = NewPDFExtractor(logger)
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &Pool{
		name:        name,
		logger:      logger.With("pool", name, "workers", workerCount),
		workerCount: workerCount,
		extractor:   extractor,
		limiter:     limiter,
		queue:       make(chan *task, queueSize),
		done:        make(chan struct{}),
	}
}

// Start begins the pool's processing. Blocks until ctx cancelled.
func (p *Pool) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	p.logger.Info("extraction pool starting")

	for i := 0; i < p.workerCount; i++ {
		go p.worker(ctx, i)
	}

	<-ctx.Done()
	close(p.done)
	p.logger.Info("extraction pool stopping")
}

// worker processes tasks from the shared queue.
func (p *Pool) worker(ctx context.Context, id int) {
	p.logger.Debug("extraction worker started", "worker_id", id)
	for {
		select {
		case <-ctx.Done():
			return

		case t := <-p.queue:
			if err := t.ctx.Err(); err != nil {
				t.reply <- outcome{err: err}
				continue
			}
			p.inFlight.Add(1)
			res, err := p.extractor.Extract(t.ctx, t.data)
			p.inFlight.Add(-1)
			p.logger.Debug("extraction worker completed task", "worker_id", id, "success", err == nil)
			t.reply <- outcome{result: res, err: err}
		}
	}
}

// Extract queues data for extraction and waits for the result.
func (p *Pool) Extract(ctx context.Context, data []byte) (*Result, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	t := &task{ctx: ctx, data: data, reply: make(chan outcome, 1)}

	select {
	case <-p.done:
		return nil, ErrPoolStopped
	default:
	}

	select {
	case p.queue <- t:
	default:
		p.logger.Warn("extraction queue full", "queue_len", len(p.queue))
		return nil, fmt.Errorf("%w: %s", ErrQueueFull, p.name)
	}

	select {
	case out := <-t.reply:
		return out.result, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.done:
		return nil, ErrPoolStopped
	}
}

// Status returns current pool status.
func (p *Pool) Status() PoolStatus {
	s := PoolStatus{
		Name:       p.name,
		Workers:    p.workerCount,
		InFlight:   int(p.inFlight.Load()),
		QueueDepth: len(p.queue),
		QueueSize:  cap(p.queue),
	}
	if p.limiter != nil {
		s.RateLimit = float64(p.limiter.Limit())
	}
	return s
}
