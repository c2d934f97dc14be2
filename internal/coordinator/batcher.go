package coordinator

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/faceterm/internal/clock"
	"github.com/wolfeidau/faceterm/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Flush reasons passed to a FlushFunc.
const (
	FlushBatchSize = "batch_size" // queue reached the batch size
	FlushSweep     = "sweep"      // periodic sweep of a straggler
)

// FlushFunc dispatches registrations drained from an organization's queue.
type FlushFunc func(ctx context.Context, orgID string, batch []Registration, reason string) error

// Batcher keeps a FIFO queue of registrations per organization. A queue
// that reaches batchSize is drained as one batch; a periodic sweep takes
// one registration from every non-empty queue so nothing below the
// threshold waits forever.
type Batcher struct {
	mu     sync.Mutex
	queues map[string]*registrationQueue

	batchSize int
	interval  time.Duration
	clock     clock.Clock
	flush     FlushFunc
	metrics   *telemetry.Metrics

	stopCh   chan struct{}
	stopOnce sync.Once
}

type registrationQueue struct {
	mu      sync.Mutex
	items   []Registration
	retired bool // pruned from Batcher.queues; enqueue into a fresh queue
}

// NewBatcher creates a batcher. Non-positive sizes and intervals select the
// defaults.
func NewBatcher(batchSize int, interval time.Duration, clk clock.Clock, flush FlushFunc) *Batcher {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Batcher{
		queues:    make(map[string]*registrationQueue),
		batchSize: batchSize,
		interval:  interval,
		clock:     clk,
		flush:     flush,
		metrics:   telemetry.GetMetrics(),
		stopCh:    make(chan struct{}),
	}
}

// Enqueue appends reg to its organization's queue. When the queue holds a
// full batch the first batchSize entries are drained, in order, and flushed
// on the caller's goroutine; the flush error is returned.
func (b *Batcher) Enqueue(ctx context.Context, reg Registration) error {
	select {
	case <-b.stopCh:
		return ErrStopped
	default:
	}

	q := b.queue(reg.OrgID)
	q.mu.Lock()
	for q.retired {
		q.mu.Unlock()
		q = b.queue(reg.OrgID)
		q.mu.Lock()
	}
	q.items = append(q.items, reg)
	var batch []Registration
	if len(q.items) >= b.batchSize {
		batch = slices.Clone(q.items[:b.batchSize])
		q.items = slices.Clone(q.items[b.batchSize:])
	}
	q.mu.Unlock()

	b.metrics.RegistrationsQueued.Add(ctx, int64(1-len(batch)))

	if batch == nil {
		return nil
	}
	return b.doFlush(ctx, reg.OrgID, batch, FlushBatchSize)
}

// Sweep takes the oldest registration from every non-empty queue and
// flushes it on its own. Queues found empty are dropped.
func (b *Batcher) Sweep(ctx context.Context) {
	b.mu.Lock()
	orgs := make([]string, 0, len(b.queues))
	queues := make([]*registrationQueue, 0, len(b.queues))
	for orgID, q := range b.queues {
		q.mu.Lock()
		empty := len(q.items) == 0
		if empty {
			q.retired = true
			delete(b.queues, orgID)
		}
		q.mu.Unlock()

		if !empty {
			orgs = append(orgs, orgID)
			queues = append(queues, q)
		}
	}
	b.mu.Unlock()

	for i, q := range queues {
		q.mu.Lock()
		if len(q.items) == 0 {
			q.mu.Unlock()
			continue
		}
		reg := q.items[0]
		q.items = q.items[1:]
		q.mu.Unlock()

		b.metrics.RegistrationsQueued.Add(ctx, -1)

		// errors are reported by the flush func
		_ = b.doFlush(ctx, orgs[i], []Registration{reg}, FlushSweep)
	}
}

// Run sweeps on every interval tick until Stop is called or ctx is done.
func (b *Batcher) Run(ctx context.Context) error {
	ticker := b.clock.NewTicker(b.interval)
	defer ticker.Stop()

	log.Debug().Dur("interval", b.interval).Int("batch_size", b.batchSize).Msg("Registration sweeper started")

	for {
		select {
		case <-ticker.C:
			b.Sweep(ctx)
		case <-b.stopCh:
			log.Debug().Msg("Registration sweeper stopped")
			return nil
		case <-ctx.Done():
			log.Debug().Msg("Registration sweeper context cancelled")
			return nil
		}
	}
}

// Stop ends Run and rejects further enqueues. Queued registrations are left
// in place.
func (b *Batcher) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
}

// Pending returns the number of registrations queued for orgID.
func (b *Batcher) Pending(orgID string) int {
	b.mu.Lock()
	q := b.queues[orgID]
	b.mu.Unlock()

	if q == nil {
		return 0
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (b *Batcher) queue(orgID string) *registrationQueue {
	b.mu.Lock()
	defer b.mu.Unlock()

	q, ok := b.queues[orgID]
	if !ok {
		q = &registrationQueue{}
		b.queues[orgID] = q
	}
	return q
}

func (b *Batcher) doFlush(ctx context.Context, orgID string, batch []Registration, reason string) error {
	b.metrics.BatchesFlushedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))

	log.Debug().
		Str("org_id", orgID).
		Int("count", len(batch)).
		Str("reason", reason).
		Msg("Flushing registrations")

	return b.flush(ctx, orgID, batch, reason)
}
