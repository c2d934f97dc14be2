package coordinator

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/faceterm/internal/protocol"
	"github.com/wolfeidau/faceterm/internal/telemetry"
	"github.com/wolfeidau/faceterm/internal/terminal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RecognizedFunc receives recognition events with the owning organization
// already resolved.
type RecognizedFunc func(orgID string, rec protocol.Recognition)

// Router dispatches inbound terminal messages by topic: recognitions go to
// the recognized callback, acks to the correlator. Messages from terminals
// no organization owns are dropped.
type Router struct {
	registry   *terminal.Registry
	scheme     protocol.Scheme
	correlator *Correlator
	recognized RecognizedFunc
	metrics    *telemetry.Metrics
}

func NewRouter(registry *terminal.Registry, scheme protocol.Scheme, correlator *Correlator, recognized RecognizedFunc) *Router {
	return &Router{
		registry:   registry,
		scheme:     scheme,
		correlator: correlator,
		recognized: recognized,
		metrics:    telemetry.GetMetrics(),
	}
}

// OnMessage handles one inbound message. The returned error describes why
// a message was dropped; callers on the transport goroutine only log it.
func (r *Router) OnMessage(topic string, payload []byte) error {
	terminalID, kind, err := r.scheme.Parse(topic)
	if err != nil {
		r.drop(topic, "malformed_topic", err)
		return err
	}

	orgID, err := r.registry.Organization(terminalID)
	if err != nil {
		r.drop(topic, "unknown_terminal", err)
		return err
	}

	switch kind {
	case protocol.KindRecognition:
		rec, err := protocol.DecodeRecognition(payload)
		if err != nil {
			r.drop(topic, "malformed_payload", err)
			return err
		}

		r.metrics.RecognitionsTotal.Add(context.Background(), 1)
		log.Debug().Str("org_id", orgID).Str("terminal_id", terminalID).Str("user_id", rec.UserID).Msg("Face recognized")

		if r.recognized != nil {
			r.recognized(orgID, rec)
		}
		return nil

	case protocol.KindAck:
		ack, err := protocol.DecodeAck(payload)
		if err != nil {
			r.drop(topic, "malformed_payload", err)
			return err
		}
		r.correlator.OnAck(ack.MessageID, ack.Info)
		return nil

	default:
		log.Debug().Str("topic", topic).Str("kind", kind).Msg("Ignoring message of unknown kind")
		return nil
	}
}

func (r *Router) drop(topic, reason string, err error) {
	r.metrics.MessagesDroppedTotal.Add(context.Background(), 1, metric.WithAttributes(attribute.String("reason", reason)))

	evt := log.Warn()
	if errors.Is(err, protocol.ErrMalformedPayload) || errors.Is(err, protocol.ErrMalformedTopic) {
		evt = log.Error()
	}
	evt.Err(err).Str("topic", topic).Str("reason", reason).Msg("Dropping inbound message")
}
