package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/faceterm/internal/clock"
	"github.com/wolfeidau/faceterm/internal/protocol"
	"github.com/wolfeidau/faceterm/internal/telemetry"
	"github.com/wolfeidau/faceterm/internal/terminal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Publisher sends a payload to a topic. It is the only part of the
// transport the correlator needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Pending is the caller's handle on a dispatched command. It resolves
// exactly once: with the decoded ack, ErrAckTimeout, a cancellation, or
// ErrStopped.
type Pending struct {
	cmd    *Command
	sentAt time.Time
	done   chan struct{}
	onDone func(*Pending)
	timer  *clock.Timer // guarded by Correlator.mu until resolution

	ok  bool
	err error
}

func (p *Pending) ID() string { return p.cmd.ID }

func (p *Pending) Command() *Command { return p.cmd }

// Done is closed once the result is available.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Result returns the outcome. Only meaningful after Done is closed.
func (p *Pending) Result() (bool, error) { return p.ok, p.err }

// Correlator matches outbound commands with their asynchronous acks. Every
// dispatched command carries a deadline; whichever of ack, deadline,
// abandonment or shutdown comes first resolves it.
type Correlator struct {
	mu      sync.Mutex
	pending map[string]*Pending
	stopped bool

	registry  *terminal.Registry
	scheme    protocol.Scheme
	publisher Publisher
	clock     clock.Clock
	ids       *idGenerator
	timeout   time.Duration
	metrics   *telemetry.Metrics
}

// NewCorrelator creates a correlator routing through registry. A
// non-positive timeout selects DefaultAckTimeout.
func NewCorrelator(registry *terminal.Registry, scheme protocol.Scheme, publisher Publisher, clk clock.Clock, timeout time.Duration) *Correlator {
	if clk == nil {
		clk = clock.Real()
	}
	if timeout <= 0 {
		timeout = DefaultAckTimeout
	}
	return &Correlator{
		pending:   make(map[string]*Pending),
		registry:  registry,
		scheme:    scheme,
		publisher: publisher,
		clock:     clk,
		ids:       &idGenerator{clock: clk},
		timeout:   timeout,
		metrics:   telemetry.GetMetrics(),
	}
}

// Dispatch routes cmd to its organization's terminal and publishes it. The
// pending entry is registered before publishing so an ack cannot overtake
// it, and the ack deadline starts once the publish succeeds. Routing and
// encoding failures return before any entry exists; a publish failure
// removes the entry and returns ErrTransport. onDone, if set, is called
// once when the command resolves.
func (c *Correlator) Dispatch(ctx context.Context, cmd *Command, onDone func(*Pending)) (*Pending, error) {
	c.mu.Lock()
	stopped := c.stopped
	c.mu.Unlock()
	if stopped {
		return nil, ErrStopped
	}

	terminalID, err := c.registry.Resolve(cmd.OrgID)
	if err != nil {
		return nil, err
	}

	cmd.ID = c.ids.Next()
	payload, err := protocol.Encode(cmd.Operator, cmd.ID, cmd.Persons)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s command: %w", cmd.Operator, err)
	}

	p := &Pending{
		cmd:    cmd,
		sentAt: c.clock.Now(),
		done:   make(chan struct{}),
		onDone: onDone,
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil, ErrStopped
	}
	c.pending[cmd.ID] = p
	c.mu.Unlock()

	attrs := metric.WithAttributes(attribute.String("operator", cmd.Operator))

	topic := c.scheme.CommandTopic(terminalID)
	if err := c.publisher.Publish(ctx, topic, payload); err != nil {
		c.mu.Lock()
		owned := c.pending[cmd.ID] == p
		if owned {
			delete(c.pending, cmd.ID)
		}
		c.mu.Unlock()

		c.metrics.PublishErrorsTotal.Add(ctx, 1, attrs)
		log.Error().Err(err).
			Str("org_id", cmd.OrgID).
			Str("terminal_id", terminalID).
			Str("message_id", cmd.ID).
			Str("operator", cmd.Operator).
			Msg("Failed to publish command")

		// resolved while publishing, onDone has already run
		if !owned {
			return p, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	c.mu.Lock()
	if c.pending[cmd.ID] == p {
		p.timer = c.clock.AfterFunc(c.timeout, func() { c.expire(p) })
	}
	c.mu.Unlock()

	c.metrics.CommandsDispatchedTotal.Add(ctx, 1, attrs)
	log.Info().
		Str("org_id", cmd.OrgID).
		Str("terminal_id", terminalID).
		Str("message_id", cmd.ID).
		Str("operator", cmd.Operator).
		Int("count", len(cmd.Persons)).
		Msg("Command dispatched")

	return p, nil
}

// Await blocks until p resolves or ctx is done. Cancelling ctx abandons
// this wait only; the command already sent to the terminal stands, and a
// later ack for it is discarded.
func (c *Correlator) Await(ctx context.Context, p *Pending) (bool, error) {
	select {
	case <-p.done:
	case <-ctx.Done():
		c.resolve(p, false, fmt.Errorf("abandoned wait for %s: %w", p.ID(), ctx.Err()))
		<-p.done
	}
	return p.Result()
}

// OnAck resolves the command with the given correlation id. Unknown ids,
// including ones that already timed out, are discarded.
func (c *Correlator) OnAck(id string, info []byte) bool {
	c.mu.Lock()
	p := c.pending[id]
	c.mu.Unlock()

	if p == nil {
		c.metrics.AcksDiscardedTotal.Add(context.Background(), 1)
		log.Debug().Str("message_id", id).Msg("Discarding ack with no outstanding command")
		return false
	}

	ok := p.cmd.decode(info)
	if !c.resolve(p, ok, nil) {
		c.metrics.AcksDiscardedTotal.Add(context.Background(), 1)
		return false
	}

	c.metrics.AcksReceivedTotal.Add(context.Background(), 1, metric.WithAttributes(attribute.Bool("success", ok)))
	c.metrics.AckLatency.Record(context.Background(), float64(c.clock.Now().Sub(p.sentAt).Milliseconds()))
	log.Debug().Str("message_id", id).Str("org_id", p.cmd.OrgID).Bool("success", ok).Msg("Ack matched")
	return true
}

// Outstanding returns the number of commands waiting for an ack.
func (c *Correlator) Outstanding() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Close fails every outstanding command with ErrStopped and rejects new
// dispatches.
func (c *Correlator) Close() {
	c.mu.Lock()
	c.stopped = true
	var pending []*Pending
	for _, p := range c.pending {
		pending = append(pending, p)
	}
	c.mu.Unlock()

	for _, p := range pending {
		c.resolve(p, false, ErrStopped)
	}
}

func (c *Correlator) expire(p *Pending) {
	if !c.resolve(p, false, ErrAckTimeout) {
		return
	}
	c.metrics.AckTimeoutsTotal.Add(context.Background(), 1)
	log.Warn().
		Str("message_id", p.ID()).
		Str("org_id", p.cmd.OrgID).
		Str("operator", p.cmd.Operator).
		Dur("timeout", c.timeout).
		Msg("Command expired without ack")
}

// resolve removes p from the table and publishes its result. Only the
// caller that removes the entry gets to resolve it.
func (c *Correlator) resolve(p *Pending, ok bool, err error) bool {
	c.mu.Lock()
	if c.pending[p.cmd.ID] != p {
		c.mu.Unlock()
		return false
	}
	delete(c.pending, p.cmd.ID)
	timer := p.timer
	c.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	p.ok, p.err = ok, err
	close(p.done)

	if p.onDone != nil {
		p.onDone(p)
	}
	return true
}
