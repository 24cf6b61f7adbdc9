package usage

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

// Pool defaults.
const (
	DefaultPoolWorkers   = 8
	DefaultPoolQueueSize = 1024
)

var (
	// ErrPoolClosed is returned by Submit after Drain started.
	ErrPoolClosed = errors.New("usage: pool closed")
	// ErrDrainTimeout is returned by Drain when tasks were abandoned.
	ErrDrainTimeout = errors.New("usage: drain timed out")
)

// Task is a unit of background work. ctx is canceled when a drain times out.
type Task func(ctx context.Context)

// Pool runs tasks on a fixed set of workers behind a bounded queue. When the queue is full
// the submitting goroutine runs the task itself.
type Pool struct {
	tasks     chan Task
	wg        sync.WaitGroup
	mu        sync.RWMutex
	closed    bool
	abandoned atomic.Bool
	dropped   atomic.Int64
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewPool starts workers goroutines reading from a queue of queueSize.
func NewPool(workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = DefaultPoolWorkers
	}
	if queueSize < 0 {
		queueSize = DefaultPoolQueueSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		tasks:  make(chan Task, queueSize),
		ctx:    ctx,
		cancel: cancel,
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

// Submit queues task, or runs it on the calling goroutine when the queue is full.
func (p *Pool) Submit(task Task) error {
	if task == nil {
		return nil
	}
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrPoolClosed
	}
	select {
	case p.tasks <- task:
		p.mu.RUnlock()
		return nil
	default:
	}
	p.mu.RUnlock()

	log.Warn("usage: pool queue full, running task inline")
	p.run(task)
	return nil
}

// Drain stops accepting tasks and waits up to timeout for queued and running tasks.
// Tasks still queued at the deadline are discarded and running ones see their context canceled.
func (p *Pool) Drain(timeout time.Duration) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		p.cancel()
		return nil
	case <-timer.C:
	}

	p.abandoned.Store(true)
	for range p.tasks {
		p.dropped.Add(1)
	}
	p.cancel()
	dropped := p.Dropped()
	log.Warnf("usage: drain timed out after %s, abandoning %d queued tasks", timeout, dropped)
	return fmt.Errorf("%w: %d queued tasks abandoned", ErrDrainTimeout, dropped)
}

// Dropped returns the number of tasks discarded by a timed-out drain.
func (p *Pool) Dropped() int64 {
	return p.dropped.Load()
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		if p.abandoned.Load() {
			p.dropped.Add(1)
			continue
		}
		p.run(task)
	}
}

func (p *Pool) run(task Task) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Errorf("usage: task panicked\n%s", debug.Stack())
		}
	}()
	task(p.ctx)
}
