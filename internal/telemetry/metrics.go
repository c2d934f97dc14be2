package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/faceterm"
)

// Metrics holds the coordinator's OpenTelemetry instruments
type Metrics struct {
	// Command metrics
	CommandsDispatchedTotal metric.Int64Counter
	PublishErrorsTotal      metric.Int64Counter
	PublishRetriesTotal     metric.Int64Counter

	// Ack metrics
	AcksReceivedTotal  metric.Int64Counter
	AcksDiscardedTotal metric.Int64Counter
	AckTimeoutsTotal   metric.Int64Counter
	AckLatency         metric.Float64Histogram

	// Registration batching
	RegistrationsQueued metric.Int64UpDownCounter
	BatchesFlushedTotal metric.Int64Counter

	// Inbound messages
	RecognitionsTotal    metric.Int64Counter
	MessagesDroppedTotal metric.Int64Counter

	// Worker pool
	TasksRejectedTotal metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the process wide instruments, creating them on first use
// against the global meter provider.
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	m.CommandsDispatchedTotal, _ = meter.Int64Counter(
		"faceterm.commands.dispatched.total",
		metric.WithDescription("Total number of commands published to terminals"),
		metric.WithUnit("{command}"),
	)

	m.PublishErrorsTotal, _ = meter.Int64Counter(
		"faceterm.commands.publish.errors.total",
		metric.WithDescription("Total number of commands that could not be published"),
		metric.WithUnit("{error}"),
	)

	m.PublishRetriesTotal, _ = meter.Int64Counter(
		"faceterm.commands.publish.retries.total",
		metric.WithDescription("Total number of publish retries"),
		metric.WithUnit("{retry}"),
	)

	m.AcksReceivedTotal, _ = meter.Int64Counter(
		"faceterm.acks.received.total",
		metric.WithDescription("Total number of acks matched to an outstanding command"),
		metric.WithUnit("{ack}"),
	)

	m.AcksDiscardedTotal, _ = meter.Int64Counter(
		"faceterm.acks.discarded.total",
		metric.WithDescription("Total number of late or unknown acks discarded"),
		metric.WithUnit("{ack}"),
	)

	m.AckTimeoutsTotal, _ = meter.Int64Counter(
		"faceterm.acks.timeouts.total",
		metric.WithDescription("Total number of commands that expired without an ack"),
		metric.WithUnit("{command}"),
	)

	m.AckLatency, _ = meter.Float64Histogram(
		"faceterm.acks.latency",
		metric.WithDescription("Time from publish to matching ack"),
		metric.WithUnit("ms"),
	)

	m.RegistrationsQueued, _ = meter.Int64UpDownCounter(
		"faceterm.registrations.queued",
		metric.WithDescription("Registrations waiting in organization queues"),
		metric.WithUnit("{registration}"),
	)

	m.BatchesFlushedTotal, _ = meter.Int64Counter(
		"faceterm.registrations.flushed.total",
		metric.WithDescription("Total number of registration flushes"),
		metric.WithUnit("{flush}"),
	)

	m.RecognitionsTotal, _ = meter.Int64Counter(
		"faceterm.recognitions.total",
		metric.WithDescription("Total number of recognition events received"),
		metric.WithUnit("{event}"),
	)

	m.MessagesDroppedTotal, _ = meter.Int64Counter(
		"faceterm.messages.dropped.total",
		metric.WithDescription("Total number of inbound messages dropped"),
		metric.WithUnit("{message}"),
	)

	m.TasksRejectedTotal, _ = meter.Int64Counter(
		"faceterm.pool.rejected.total",
		metric.WithDescription("Total number of tasks rejected by a full worker pool"),
		metric.WithUnit("{task}"),
	)

	return m
}
