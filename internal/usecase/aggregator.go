package usecase

import (
	"context"
	"time"

	"PriceProbe/internal/domain/models"
	drepo "PriceProbe/internal/domain/repository"
	"PriceProbe/pkg/logger"
)

const (
	DefaultInstrumentDelay = 200 * time.Millisecond
	DefaultCycleDelay      = 3 * time.Second
)

// AggregatorOption configures Aggregator.
type AggregatorOption func(*Aggregator)

// WithDelays sets the pause after each instrument and after each cycle.
// Negative values are ignored.
func WithDelays(instrument, cycle time.Duration) AggregatorOption {
	return func(a *Aggregator) {
		if instrument >= 0 {
			a.instrumentDelay = instrument
		}
		if cycle >= 0 {
			a.cycleDelay = cycle
		}
	}
}

// WithClock replaces the wall clock and the sleeper, for tests.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) AggregatorOption {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
		if sleep != nil {
			a.sleep = sleep
		}
	}
}

// WithSnapshot makes every observation visible to the status API.
func WithSnapshot(s drepo.SnapshotStore) AggregatorOption {
	return func(a *Aggregator) {
		a.snapshot = s
	}
}

// Aggregator runs the fetch, smooth, classify, deliver loop over a fixed
// instrument list. It is single-threaded; the window tracker is owned by it.
type Aggregator struct {
	instruments []models.Instrument
	fetcher     drepo.PriceFetcher
	fallback    drepo.FallbackGenerator
	tracker     drepo.WindowTracker
	classifier  drepo.Classifier
	delivery    *DeliveryChannel
	snapshot    drepo.SnapshotStore
	metrics     drepo.Metrics
	log         *logger.Logger

	instrumentDelay time.Duration
	cycleDelay      time.Duration
	now             func() time.Time
	sleep           func(ctx context.Context, d time.Duration) error
}

// NewAggregator wires the cycle controller.
func NewAggregator(
	instruments []models.Instrument,
	fetcher drepo.PriceFetcher,
	fallback drepo.FallbackGenerator,
	tracker drepo.WindowTracker,
	classifier drepo.Classifier,
	delivery *DeliveryChannel,
	metrics drepo.Metrics,
	log *logger.Logger,
	opts ...AggregatorOption,
) *Aggregator {
	a := &Aggregator{
		instruments:     instruments,
		fetcher:         fetcher,
		fallback:        fallback,
		tracker:         tracker,
		classifier:      classifier,
		delivery:        delivery,
		metrics:         metrics,
		log:             log,
		instrumentDelay: DefaultInstrumentDelay,
		cycleDelay:      DefaultCycleDelay,
		now:             time.Now,
		sleep:           sleepCtx,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Instruments returns the configured instruments in processing order.
func (a *Aggregator) Instruments() []models.Instrument { return a.instruments }

// Run opens the delivery channel and then cycles until ctx is cancelled.
func (a *Aggregator) Run(ctx context.Context) error {
	a.log.Info("connecting to sink", logger.String("sink", a.delivery.Sink()))
	if err := a.delivery.Open(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	a.log.Info("aggregation started",
		logger.Int("instruments", len(a.instruments)),
		logger.Duration("instrument_delay", a.instrumentDelay),
		logger.Duration("cycle_delay", a.cycleDelay),
	)
	for {
		if _, err := a.RunCycle(ctx); err != nil {
			return nil
		}
		if err := a.sleep(ctx, a.cycleDelay); err != nil {
			return nil
		}
	}
}

// RunCycle processes every instrument once, in order, and returns how many
// observations were produced. It only fails when ctx is cancelled.
func (a *Aggregator) RunCycle(ctx context.Context) (int, error) {
	start := a.now()
	produced := 0

	for _, in := range a.instruments {
		if err := ctx.Err(); err != nil {
			return produced, err
		}

		a.process(ctx, in)
		produced++

		if err := a.sleep(ctx, a.instrumentDelay); err != nil {
			return produced, err
		}
	}

	elapsed := a.now().Sub(start)
	a.metrics.RecordLatency("cycle", elapsed.Seconds())
	a.log.Info("cycle latency",
		logger.Int("observations", produced),
		logger.Int64("latency_ms", elapsed.Milliseconds()),
	)
	return produced, nil
}

func (a *Aggregator) process(ctx context.Context, in models.Instrument) {
	symbol := in.DisplaySymbol

	fetchStart := a.now()
	outcome := a.fetcher.Fetch(ctx, in)
	a.metrics.RecordLatency("fetch", a.now().Sub(fetchStart).Seconds())

	sample := models.PriceSample{Price: outcome.Price, Source: models.SourceLive}
	if !outcome.Live {
		sample = models.PriceSample{
			Price:  a.fallback.Generate(symbol, outcome.Reason),
			Source: outcome.Reason.Source(),
		}
		a.metrics.RecordFallback(string(sample.Source))
		a.log.Warn("using fallback price",
			logger.String("symbol", symbol),
			logger.String("source", string(sample.Source)),
			logger.Float64("price", sample.Price),
			logger.Error(outcome.Err),
		)
	}

	avg := a.tracker.Update(symbol, sample.Price)
	anomaly := a.classifier.Classify(symbol, sample.Price, avg)
	obs := models.NewObservation(symbol, sample, avg, anomaly, a.now())

	if anomaly {
		a.metrics.RecordAnomaly(symbol)
		a.log.Warn("anomaly detected",
			logger.String("symbol", symbol),
			logger.Float64("price", obs.Price),
			logger.Float64("average_price", obs.AveragePrice),
			logger.String("source", string(obs.Source)),
		)
	}
	a.metrics.RecordLastPrice(symbol, obs.Price)

	// Delivery failures are already logged and counted by the channel.
	_ = a.delivery.Deliver(ctx, obs)

	if a.snapshot != nil {
		if err := a.snapshot.Put(ctx, obs); err != nil {
			a.log.Warn("snapshot update failed", logger.String("symbol", symbol), logger.Error(err))
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
