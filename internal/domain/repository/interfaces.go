package repository

import (
	"context"
	"errors"

	"PriceProbe/internal/domain/models"
)

// Outcome is the tagged result of one market-data fetch. Exactly one of
// Price (when Live) or Reason (otherwise) is meaningful.
type Outcome struct {
	Live   bool
	Price  float64
	Reason models.FallbackReason
	Err    error
}

// LiveOutcome wraps a usable upstream price.
func LiveOutcome(price float64) Outcome { return Outcome{Live: true, Price: price} }

// FallbackOutcome records why the upstream price was unusable.
func FallbackOutcome(reason models.FallbackReason, err error) Outcome {
	return Outcome{Reason: reason, Err: err}
}

// PriceFetcher performs a single bounded attempt against the market-data source.
type PriceFetcher interface {
	Fetch(ctx context.Context, in models.Instrument) Outcome
}

// FallbackGenerator synthesizes a plausible price for a symbol.
type FallbackGenerator interface {
	Generate(symbol string, reason models.FallbackReason) float64
}

// WindowTracker keeps the trailing window per symbol.
type WindowTracker interface {
	Update(symbol string, price float64) float64
}

// Classifier decides whether a sample is anomalous.
type Classifier interface {
	Classify(symbol string, price, averagePrice float64) bool
}

// ErrSessionLost is wrapped by sinks when a publish failed because the
// session to the sink is gone and Connect must run again.
var ErrSessionLost = errors.New("sink session lost")

// ErrNotFound is returned by SnapshotStore for unknown symbols.
var ErrNotFound = errors.New("not found")

// Sink is the downstream collaborator. Connect establishes the session and
// declares the durable target; Publish hands one encoded observation over.
type Sink interface {
	Name() string
	Connect(ctx context.Context) error
	Publish(ctx context.Context, key string, body []byte) error
	Close() error
}

// SnapshotStore holds the latest observation per symbol for the status API.
type SnapshotStore interface {
	Put(ctx context.Context, o *models.Observation) error
	Get(ctx context.Context, symbol string) (*models.Observation, error)
	All(ctx context.Context) ([]*models.Observation, error)
}

type Metrics interface {
	RecordMessageSent(sink, symbol string)
	RecordError(kind string)
	RecordFallback(source string)
	RecordAnomaly(symbol string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
}
