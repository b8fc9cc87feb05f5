package job

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Queued is one job waiting for a worker, tagged with the intake that
// produced it.
type Queued struct {
	Request Request
	Source  string
}

// ResultFunc is a callback invoked with the outcome of every queued job.
// Exactly one of result/err is meaningful.
type ResultFunc func(q Queued, result Result, err error)

// PoolOptions configures the job worker pool.
type PoolOptions struct {
	Processor *Processor
	Workers   int
	QueueSize int
	OnResult  ResultFunc
	Log       zerolog.Logger
}

// Pool runs queued jobs from the async intakes. Each job is processed start
// to finish on one worker; the synchronous HTTP path bypasses the pool and
// calls the processor directly.
type Pool struct {
	jobs   chan Queued
	proc   *Processor
	opts   PoolOptions
	log    zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	completed atomic.Int64
	failed    atomic.Int64
}

// Stats reports the current state of the job queue.
type Stats struct {
	Pending   int   `json:"pending"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// NewPool creates a job worker pool.
func NewPool(opts PoolOptions) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		jobs:   make(chan Queued, opts.QueueSize),
		proc:   opts.Processor,
		opts:   opts,
		log:    opts.Log,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the worker goroutines.
func (p *Pool) Start() {
	for i := 0; i < p.opts.Workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.log.Info().Int("workers", p.opts.Workers).Int("queue_size", p.opts.QueueSize).Msg("job worker pool started")
}

// Stop signals workers to drain and waits for completion. In-flight engine
// invocations run to completion; cancellation of a launched job is not
// supported.
func (p *Pool) Stop() {
	p.mu.Lock()
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
	p.cancel()
	p.log.Info().
		Int64("completed", p.completed.Load()).
		Int64("failed", p.failed.Load()).
		Msg("job worker pool stopped")
}

// Enqueue adds a job to the queue. Returns false if the queue is full or the
// pool has been stopped.
func (p *Pool) Enqueue(q Queued) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.jobs <- q:
		return true
	default:
		return false
	}
}

// Stats returns current queue statistics.
func (p *Pool) Stats() Stats {
	return Stats{
		Pending:   len(p.jobs),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
	}
}

// Workers returns the number of worker goroutines.
func (p *Pool) Workers() int { return p.opts.Workers }

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	log := p.log.With().Int("worker", id).Logger()

	for q := range p.jobs {
		result, err := p.proc.Process(p.ctx, q.Request, q.Source)
		if err != nil {
			p.failed.Add(1)
			log.Warn().Err(err).Str("audio", q.Request.AudioPath).Msg("job failed")
		} else {
			p.completed.Add(1)
		}
		if p.opts.OnResult != nil {
			p.opts.OnResult(q, result, err)
		}
	}
}
