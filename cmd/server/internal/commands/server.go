package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/faceterm/internal/coordinator"
	"github.com/wolfeidau/faceterm/internal/logger"
	"github.com/wolfeidau/faceterm/internal/mqtt"
	"github.com/wolfeidau/faceterm/internal/protocol"
	"github.com/wolfeidau/faceterm/internal/server"
	"github.com/wolfeidau/faceterm/internal/store"
	memorystore "github.com/wolfeidau/faceterm/internal/store/memory"
	postgresstore "github.com/wolfeidau/faceterm/internal/store/postgres"
	"github.com/wolfeidau/faceterm/internal/telemetry"
	"github.com/wolfeidau/faceterm/internal/terminal"
	"golang.org/x/sync/errgroup"
)

type ServerCmd struct {
	// Server configuration
	Listen      string   `help:"HTTP server listen address" default:"0.0.0.0:8080" env:"FACETERM_LISTEN"`
	CORSOrigins []string `help:"allowed CORS origins for API requests" env:"FACETERM_CORS_ORIGINS"`
	Tracing     bool     `help:"enable tracing and metrics export" default:"false" env:"FACETERM_TRACING"`

	// Terminal seed file
	TerminalsFile string `help:"YAML file mapping organizations to terminal ids, added at startup" type:"path" env:"FACETERM_TERMINALS_FILE"`

	// Store configuration
	StoreType     string             `help:"terminal store type (memory or postgres)" default:"memory" env:"FACETERM_STORE_TYPE" enum:"memory,postgres"`
	PostgresStore PostgresStoreFlags `embed:"" prefix:"postgres-"`

	MQTT        mqtt.Config      `embed:"" prefix:"mqtt-" envprefix:"FACETERM_MQTT_"`
	Coordinator CoordinatorFlags `embed:"" prefix:"coordinator-"`
}

type PostgresStoreFlags struct {
	// Connection Configuration
	ConnString string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`

	// Connection Pool Configuration
	MaxConns        int32         `help:"maximum number of connections in pool" default:"10"`
	MinConns        int32         `help:"minimum number of connections in pool" default:"2"`
	MaxConnLifetime time.Duration `help:"maximum connection lifetime" default:"1h"`
	MaxConnIdleTime time.Duration `help:"maximum connection idle time" default:"30m"`

	// Migration Configuration
	AutoMigrate bool `help:"run database migrations on startup" default:"false" env:"FACETERM_POSTGRES_AUTO_MIGRATE"`
}

func (s *PostgresStoreFlags) Validate() error {
	if s.ConnString == "" {
		return errors.New("PostgreSQL connection string is required (--postgres-conn-string or POSTGRES_CONNECTION_STRING)")
	}
	return nil
}

// CoordinatorFlags configures batching, ack correlation and dispatch.
type CoordinatorFlags struct {
	BatchSize      int           `help:"registrations per bulk command" default:"10" env:"FACETERM_BATCH_SIZE"`
	SweepInterval  time.Duration `help:"interval between straggler sweeps" default:"3s" env:"FACETERM_SWEEP_INTERVAL"`
	AckTimeout     time.Duration `help:"how long a command waits for its ack" default:"10s" env:"FACETERM_ACK_TIMEOUT"`
	Workers        int           `help:"notification workers" default:"3" env:"FACETERM_WORKERS"`
	QueueSize      int           `help:"notification queue capacity" default:"256" env:"FACETERM_QUEUE_SIZE"`
	PublishRetries int           `help:"publish attempts per command" default:"3" env:"FACETERM_PUBLISH_RETRIES"`
	PublishBackoff time.Duration `help:"initial delay between publish attempts" default:"200ms" env:"FACETERM_PUBLISH_BACKOFF"`
	Strategy       string        `help:"terminal routing strategy" default:"first" enum:"first,round-robin" env:"FACETERM_ROUTING_STRATEGY"`
	TopicPrefix    string        `help:"MQTT topic prefix for terminals" default:"mqtt/face" env:"FACETERM_TOPIC_PREFIX"`
	TerminalIndex  int           `help:"position of the terminal id in inbound topics" default:"2" env:"FACETERM_TERMINAL_INDEX"`
}

func (f CoordinatorFlags) config() coordinator.Config {
	return coordinator.Config{
		BatchSize:      f.BatchSize,
		SweepInterval:  f.SweepInterval,
		AckTimeout:     f.AckTimeout,
		Workers:        f.Workers,
		QueueSize:      f.QueueSize,
		PublishRetries: f.PublishRetries,
		PublishBackoff: f.PublishBackoff,
		Scheme:         protocol.Scheme{Prefix: f.TopicPrefix, TerminalIndex: f.TerminalIndex},
	}
}

func (c *ServerCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Dev)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("version", globals.Version).Bool("dev", globals.Dev).Msg("Starting server")

	// Setup telemetry if enabled
	if c.Tracing {
		log.Info().Msg("Tracing is enabled")
		shutdown, err := telemetry.InitTelemetry(ctx, "faceterm-server", globals.Version)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
			shutdown = func(ctx context.Context) error { return nil }
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Failed to shutdown telemetry")
			}
		}()
	}

	cfg := c.Coordinator.config()
	if err := cfg.Scheme.Validate(); err != nil {
		return fmt.Errorf("invalid topic layout: %w", err)
	}

	terminalStore, closeStore, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	client, err := mqtt.Connect(ctx, c.MQTT)
	if err != nil {
		return err
	}
	defer client.Close()

	registry := terminal.NewRegistry(terminal.StrategyByName(c.Coordinator.Strategy))
	coord := coordinator.New(cfg, registry, client, coordinator.LogListener{}).
		WithStore(terminalStore)
	defer func() {
		if err := coord.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to stop coordinator")
		}
	}()

	if err := coord.LoadTerminals(ctx); err != nil {
		return err
	}

	if c.TerminalsFile != "" {
		if err := seedTerminals(ctx, coord, c.TerminalsFile); err != nil {
			return err
		}
	}

	if err := client.Subscribe(ctx, coord.Scheme().Subscription(), coord.HandleMessage); err != nil {
		return err
	}

	coord.Start(ctx)

	httpServer := configureHTTPServer(c.Listen, server.NewServer(coord, globals.Version).Handler(log, c.CORSOrigins))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", c.Listen).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (c *ServerCmd) openStore(ctx context.Context) (store.TerminalStore, func(), error) {
	switch c.StoreType {
	case "postgres":
		if err := c.PostgresStore.Validate(); err != nil {
			return nil, nil, err
		}

		pool, err := postgresstore.NewPool(ctx, &postgresstore.PoolConfig{
			ConnString:      c.PostgresStore.ConnString,
			MaxConns:        c.PostgresStore.MaxConns,
			MinConns:        c.PostgresStore.MinConns,
			MaxConnLifetime: c.PostgresStore.MaxConnLifetime,
			MaxConnIdleTime: c.PostgresStore.MaxConnIdleTime,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create connection pool: %w", err)
		}

		if c.PostgresStore.AutoMigrate {
			if err := postgresstore.RunMigrations(ctx, pool); err != nil {
				pool.Close()
				return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
			}
			log.Info().Msg("Database migrations completed")
		}

		log.Info().Msg("Using PostgreSQL terminal store")
		return postgresstore.NewTerminalStore(pool), pool.Close, nil

	default:
		log.Info().Msg("Using in-memory terminal store")
		return memorystore.NewTerminalStore(), func() {}, nil
	}
}
