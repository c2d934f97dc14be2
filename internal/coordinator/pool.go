package coordinator

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/faceterm/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

// Pool is a fixed set of workers for short tasks handed off by the
// transport callback (listener notifications), plus long running loops
// such as the registration sweeper.
type Pool struct {
	mu     sync.RWMutex
	closed bool
	tasks  chan func()

	group errgroup.Group
}

// NewPool starts workers goroutines reading from a queue of queueSize tasks.
func NewPool(workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	p := &Pool{
		tasks: make(chan func(), queueSize),
	}

	for range workers {
		p.group.Go(p.work)
	}

	return p
}

// Go runs a long lived loop alongside the workers. Its error is returned
// by Close.
func (p *Pool) Go(fn func() error) {
	p.group.Go(fn)
}

// Submit queues task without blocking. It returns false if the pool is
// closed or its queue is full, in which case the task is dropped.
func (p *Pool) Submit(task func()) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return false
	}

	select {
	case p.tasks <- task:
		return true
	default:
		telemetry.GetMetrics().TasksRejectedTotal.Add(context.Background(), 1)
		log.Error().Int("capacity", cap(p.tasks)).Msg("Worker pool queue full, dropping task")
		return false
	}
}

// Close stops accepting tasks, runs the ones already queued and waits for
// every worker and loop to return.
func (p *Pool) Close() error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
	p.mu.Unlock()

	return p.group.Wait()
}

func (p *Pool) work() error {
	for task := range p.tasks {
		p.run(task)
	}
	return nil
}

func (p *Pool) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Worker pool task panicked")
		}
	}()
	task()
}
