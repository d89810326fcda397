package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"PriceProbe/internal/domain/models"
	drepo "PriceProbe/internal/domain/repository"
	"PriceProbe/pkg/logger"
	"PriceProbe/pkg/retry"
)

// DefaultConnectBackoff is the fixed delay between sink connection attempts.
const DefaultConnectBackoff = 2 * time.Second

// DeliveryChannel owns the session to the configured sink.
type DeliveryChannel struct {
	sink    drepo.Sink
	policy  retry.Policy
	log     *logger.Logger
	metrics drepo.Metrics
	ready   atomic.Bool
}

// NewDeliveryChannel creates a channel for sink. backoff <= 0 uses
// DefaultConnectBackoff.
func NewDeliveryChannel(sink drepo.Sink, backoff time.Duration, log *logger.Logger, metrics drepo.Metrics) *DeliveryChannel {
	if backoff <= 0 {
		backoff = DefaultConnectBackoff
	}
	return &DeliveryChannel{
		sink:    sink,
		policy:  retry.Fixed(backoff),
		log:     log,
		metrics: metrics,
	}
}

// Sink returns the configured sink name.
func (d *DeliveryChannel) Sink() string { return d.sink.Name() }

// Ready reports whether a session is open.
func (d *DeliveryChannel) Ready() bool { return d.ready.Load() }

// Open blocks until the sink accepts a session and its durable target is
// declared. Only ctx cancellation ends the wait.
func (d *DeliveryChannel) Open(ctx context.Context) error {
	err := retry.Until(ctx, d.policy, func(ctx context.Context, _ int) error {
		return d.sink.Connect(ctx)
	}, func(attempt int, err error, next time.Duration) {
		d.metrics.RecordError("connect")
		d.log.Info("waiting for sink",
			logger.String("sink", d.sink.Name()),
			logger.Int("attempt", attempt),
			logger.Duration("retry_in", next),
			logger.Error(err),
		)
	})
	if err != nil {
		return fmt.Errorf("open %s sink: %w", d.sink.Name(), err)
	}
	d.ready.Store(true)
	d.log.Info("sink connected", logger.String("sink", d.sink.Name()))
	return nil
}

// Deliver encodes o and hands it to the sink once. A lost session is reopened
// before returning so the next observation has somewhere to go; the failed
// observation itself is not resent.
func (d *DeliveryChannel) Deliver(ctx context.Context, o *models.Observation) error {
	body, err := json.Marshal(o)
	if err != nil {
		d.metrics.RecordError("encode")
		d.log.Error("encode failed, observation dropped",
			logger.String("sink", d.sink.Name()),
			logger.String("symbol", o.Symbol),
			logger.Error(err),
		)
		return fmt.Errorf("encode observation: %w", err)
	}

	if err := d.sink.Publish(ctx, o.Symbol, body); err != nil {
		d.metrics.RecordError("publish")
		d.log.Error("delivery failed",
			logger.String("sink", d.sink.Name()),
			logger.String("symbol", o.Symbol),
			logger.Error(err),
		)
		if errors.Is(err, drepo.ErrSessionLost) {
			d.ready.Store(false)
			if oerr := d.Open(ctx); oerr != nil {
				return errors.Join(err, oerr)
			}
		}
		return err
	}

	d.metrics.RecordMessageSent(d.sink.Name(), o.Symbol)
	return nil
}

// Close releases the sink session.
func (d *DeliveryChannel) Close() error {
	d.ready.Store(false)
	return d.sink.Close()
}
