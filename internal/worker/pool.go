package worker

import (
	"context"
	"sync"
)

// Job represents a unit of work.
type Job interface {
	Execute(ctx context.Context) Result
}

// Result represents the outcome of a job.
type Result interface {
	GetError() error
}

// JobFunc adapts a plain function to Job.
type JobFunc func(ctx context.Context) error

func (f JobFunc) Execute(ctx context.Context) Result { return funcResult{err: f(ctx)} }

type funcResult struct{ err error }

func (r funcResult) GetError() error { return r.err }

// Pool is a long-lived worker pool with a bounded queue. Submit never
// blocks: a full queue is reported to the caller so it can shed load.
type Pool struct {
	workers    int
	jobQueue   chan Job
	onResult   func(Result)
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc

	mu      sync.RWMutex
	started bool
	stopped bool
}

// NewPool creates a pool. queueSize <= 0 defaults to workers*2.
// onResult, when non-nil, is called from the worker goroutine after each job.
func NewPool(workers, queueSize int, onResult func(Result)) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = workers * 2
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		workers:    workers,
		jobQueue:   make(chan Job, queueSize),
		onResult:   onResult,
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start launches the worker goroutines. Calling it twice is a no-op.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopped {
		return
	}
	p.started = true
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for job := range p.jobQueue {
		result := job.Execute(p.ctx)
		if p.onResult != nil {
			p.onResult(result)
		}
	}
}

// Submit enqueues job. It returns false when the queue is full or the pool
// has been stopped.
func (p *Pool) Submit(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return false
	}
	select {
	case p.jobQueue <- job:
		return true
	default:
		return false
	}
}

// Stop refuses new jobs and waits for queued ones to finish. If ctx expires
// first, the context passed to running jobs is cancelled and Stop returns
// ctx.Err() once the workers have exited.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.jobQueue)
	started := p.started
	p.mu.Unlock()

	if !started {
		p.cancelFunc()
		return nil
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancelFunc()
		return nil
	case <-ctx.Done():
		p.cancelFunc()
		<-done
		return ctx.Err()
	}
}
