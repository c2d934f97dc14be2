package coordinator

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/faceterm/internal/telemetry"
)

// retryPublisher retries failed publishes with exponential backoff. The
// pending entry for the command stays registered across attempts, so an
// ack for an attempt that did reach the broker still matches.
type retryPublisher struct {
	next     Publisher
	maxTries uint
	initial  time.Duration
}

// WithRetry wraps p so each publish is attempted up to maxTries times.
// maxTries <= 1 returns p unchanged.
func WithRetry(p Publisher, maxTries int, initial time.Duration) Publisher {
	if maxTries <= 1 {
		return p
	}
	if initial <= 0 {
		initial = DefaultPublishBackoff
	}
	return &retryPublisher{next: p, maxTries: uint(maxTries), initial: initial}
}

func (r *retryPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initial

	operation := func() (struct{}, error) {
		return struct{}{}, r.next.Publish(ctx, topic, payload)
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(r.maxTries),
		backoff.WithNotify(func(err error, d time.Duration) {
			telemetry.GetMetrics().PublishRetriesTotal.Add(ctx, 1)
			log.Warn().Err(err).Str("topic", topic).Dur("retry_in", d).Msg("Publish failed, retrying")
		}),
	)
	return err
}
