package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/faceterm/internal/clock"
	"github.com/wolfeidau/faceterm/internal/protocol"
	"github.com/wolfeidau/faceterm/internal/store"
	"github.com/wolfeidau/faceterm/internal/terminal"
)

const (
	DefaultAckTimeout     = 10 * time.Second
	DefaultBatchSize      = 10
	DefaultSweepInterval  = 3 * time.Second
	DefaultWorkers        = 3
	DefaultQueueSize      = 256
	DefaultPublishBackoff = 200 * time.Millisecond
)

// Config tunes a Coordinator. Zero values select the defaults.
type Config struct {
	BatchSize      int
	SweepInterval  time.Duration
	AckTimeout     time.Duration
	Workers        int
	QueueSize      int
	PublishRetries int
	PublishBackoff time.Duration
	Scheme         protocol.Scheme
	Clock          clock.Clock
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	if c.AckTimeout <= 0 {
		c.AckTimeout = DefaultAckTimeout
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.PublishBackoff <= 0 {
		c.PublishBackoff = DefaultPublishBackoff
	}
	if c.Scheme.Prefix == "" {
		c.Scheme = protocol.DefaultScheme()
	}
	if c.Clock == nil {
		c.Clock = clock.Real()
	}
}

// Coordinator owns the terminal registry, registration queues and
// outstanding commands for one fleet of terminals. Independent
// coordinators share no state.
type Coordinator struct {
	cfg        Config
	registry   *terminal.Registry
	store      store.TerminalStore
	listener   Listener
	correlator *Correlator
	batcher    *Batcher
	router     *Router
	pool       *Pool

	// serializes terminal changes so the registry and store move together
	terminalsMu sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

// New creates a coordinator publishing through publisher. A nil listener
// discards notifications.
func New(cfg Config, registry *terminal.Registry, publisher Publisher, listener Listener) *Coordinator {
	cfg.ApplyDefaults()
	if registry == nil {
		registry = terminal.NewRegistry(nil)
	}
	if listener == nil {
		listener = NopListener{}
	}

	c := &Coordinator{
		cfg:      cfg,
		registry: registry,
		listener: listener,
		pool:     NewPool(cfg.Workers, cfg.QueueSize),
	}

	publisher = WithRetry(publisher, cfg.PublishRetries, cfg.PublishBackoff)
	c.correlator = NewCorrelator(registry, cfg.Scheme, publisher, cfg.Clock, cfg.AckTimeout)
	c.batcher = NewBatcher(cfg.BatchSize, cfg.SweepInterval, cfg.Clock, c.flush)
	c.router = NewRouter(registry, cfg.Scheme, c.correlator, c.recognized)

	return c
}

// WithStore makes terminal changes write through to s. Call LoadTerminals
// to seed the registry from it.
func (c *Coordinator) WithStore(s store.TerminalStore) *Coordinator {
	c.store = s
	return c
}

// Registry exposes the terminal registry.
func (c *Coordinator) Registry() *terminal.Registry { return c.registry }

// Scheme returns the topic scheme in use.
func (c *Coordinator) Scheme() protocol.Scheme { return c.cfg.Scheme }

// Terminals returns orgID's terminals in routing order.
func (c *Coordinator) Terminals(orgID string) []string { return c.registry.Terminals(orgID) }

// Outstanding returns the number of commands waiting for an ack.
func (c *Coordinator) Outstanding() int { return c.correlator.Outstanding() }

// Queued returns the number of registrations waiting in orgID's queue.
func (c *Coordinator) Queued(orgID string) int { return c.batcher.Pending(orgID) }

// LoadTerminals adds every stored assignment to the registry.
func (c *Coordinator) LoadTerminals(ctx context.Context) error {
	if c.store == nil {
		return nil
	}

	c.terminalsMu.Lock()
	defer c.terminalsMu.Unlock()

	assignments, err := c.store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list terminals: %w", err)
	}

	for _, a := range assignments {
		if err := c.registry.Add(a.OrgID, a.TerminalID); err != nil {
			return fmt.Errorf("failed to load terminal %s: %w", a.TerminalID, err)
		}
	}

	log.Info().Int("count", len(assignments)).Msg("Terminals loaded")
	return nil
}

// AddTerminal assigns terminalID to orgID. Re-adding an existing
// assignment is a no-op.
func (c *Coordinator) AddTerminal(ctx context.Context, orgID, terminalID string) error {
	c.terminalsMu.Lock()
	defer c.terminalsMu.Unlock()

	if owner, err := c.registry.Organization(terminalID); err == nil && owner == orgID {
		return nil
	}

	if err := c.registry.Add(orgID, terminalID); err != nil {
		return err
	}

	if c.store != nil {
		if err := c.store.Add(ctx, orgID, terminalID); err != nil {
			_ = c.registry.Remove(orgID, terminalID)
			if errors.Is(err, store.ErrTerminalAlreadyExists) {
				return fmt.Errorf("%w: %s", terminal.ErrTerminalConflict, terminalID)
			}
			return fmt.Errorf("failed to store terminal: %w", err)
		}
	}

	log.Info().Str("org_id", orgID).Str("terminal_id", terminalID).Msg("Terminal added")
	return nil
}

// RemoveTerminal unassigns terminalID from orgID.
func (c *Coordinator) RemoveTerminal(ctx context.Context, orgID, terminalID string) error {
	c.terminalsMu.Lock()
	defer c.terminalsMu.Unlock()

	if c.store != nil {
		if err := c.store.Remove(ctx, orgID, terminalID); err != nil && !errors.Is(err, store.ErrTerminalNotFound) {
			return fmt.Errorf("failed to remove stored terminal: %w", err)
		}
	}

	if err := c.registry.Remove(orgID, terminalID); err != nil {
		return err
	}

	log.Info().Str("org_id", orgID).Str("terminal_id", terminalID).Msg("Terminal removed")
	return nil
}

// ReplaceTerminal swaps oldID for newID in orgID, keeping its routing
// position.
func (c *Coordinator) ReplaceTerminal(ctx context.Context, orgID, oldID, newID string) error {
	c.terminalsMu.Lock()
	defer c.terminalsMu.Unlock()

	if err := c.registry.Replace(orgID, oldID, newID); err != nil {
		return err
	}
	if oldID == newID {
		return nil
	}

	if c.store != nil {
		if err := c.store.Replace(ctx, orgID, oldID, newID); err != nil {
			_ = c.registry.Replace(orgID, newID, oldID)
			if errors.Is(err, store.ErrTerminalAlreadyExists) {
				return fmt.Errorf("%w: %s", terminal.ErrTerminalConflict, newID)
			}
			return fmt.Errorf("failed to store terminal replacement: %w", err)
		}
	}

	log.Info().Str("org_id", orgID).Str("old_terminal_id", oldID).Str("terminal_id", newID).Msg("Terminal replaced")
	return nil
}

// Register queues a face registration for orgID. It returns once the
// request is queued, or flushed if it completed a batch; the outcome
// arrives later through the listener.
func (c *Coordinator) Register(ctx context.Context, orgID, userID, name, imageURI string) error {
	reg := Registration{OrgID: orgID, UserID: userID, Name: name, ImageURI: imageURI}
	if err := reg.Validate(); err != nil {
		return err
	}

	if !c.registry.HasTerminal(orgID) {
		return fmt.Errorf("%w: %s", terminal.ErrNoTerminalRegistered, orgID)
	}

	err := c.batcher.Enqueue(ctx, reg)
	if errors.Is(err, ErrStopped) {
		return err
	}
	// flush failures are reported per user through the listener
	return nil
}

// AddPerson sends a single registration straight to orgID's terminal and
// waits for its ack. The wait is bounded by the ack timeout and ctx.
func (c *Coordinator) AddPerson(ctx context.Context, orgID, userID, name, imageURI string) (bool, error) {
	reg := Registration{OrgID: orgID, UserID: userID, Name: name, ImageURI: imageURI}
	if err := reg.Validate(); err != nil {
		return false, err
	}

	p, err := c.correlator.Dispatch(ctx, NewEditPerson(orgID, reg.person()), nil)
	if err != nil {
		return false, err
	}
	return c.correlator.Await(ctx, p)
}

// HandleMessage is the transport's inbound callback.
func (c *Coordinator) HandleMessage(topic string, payload []byte) {
	// dropped messages are logged by the router
	_ = c.router.OnMessage(topic, payload)
}

// Start runs the registration sweeper until Close or ctx is done.
func (c *Coordinator) Start(ctx context.Context) {
	c.pool.Go(func() error { return c.batcher.Run(ctx) })
}

// Close stops the sweeper, fails every outstanding command with
// ErrStopped and waits for queued notifications to run. Registrations
// still queued are dropped.
func (c *Coordinator) Close() error {
	c.closeOnce.Do(func() {
		c.batcher.Stop()
		c.correlator.Close()
		c.closeErr = c.pool.Close()
		log.Info().Msg("Coordinator stopped")
	})
	return c.closeErr
}

func (c *Coordinator) flush(ctx context.Context, orgID string, batch []Registration, reason string) error {
	persons := make([]protocol.Person, len(batch))
	for i, reg := range batch {
		persons[i] = reg.person()
	}

	cmd := NewAddPersons(orgID, persons)
	if reason == FlushSweep {
		cmd = NewEditPerson(orgID, persons[0])
	}

	if _, err := c.correlator.Dispatch(ctx, cmd, c.registered); err != nil {
		log.Error().Err(err).Str("org_id", orgID).Int("count", len(batch)).Str("reason", reason).Msg("Failed to dispatch registrations")
		c.notify(orgID, persons, false)
		return err
	}
	return nil
}

func (c *Coordinator) registered(p *Pending) {
	ok, _ := p.Result()
	c.notify(p.Command().OrgID, p.Command().Persons, ok)
}

func (c *Coordinator) notify(orgID string, persons []protocol.Person, ok bool) {
	c.pool.Submit(func() {
		for _, person := range persons {
			if ok {
				c.listener.OnFaceRegisterSuccess(orgID, person.UserID)
			} else {
				c.listener.OnFaceRegisterFailed(orgID, person.UserID)
			}
		}
	})
}

func (c *Coordinator) recognized(orgID string, rec protocol.Recognition) {
	c.pool.Submit(func() {
		c.listener.OnFaceRecognized(orgID, rec.UserID, rec.ImageData)
	})
}
