package models

import "time"

// Instrument pairs the identifier used against the market-data source with the
// canonical symbol used everywhere else.
type Instrument struct {
	SourceSymbol  string
	DisplaySymbol string
}

// Source is the provenance label carried by every sample and observation.
type Source string

const (
	SourceLive                 Source = "live"
	SourceFallbackParseError   Source = "fallback-parse-error"
	SourceFallbackNetworkError Source = "fallback-network-error"
)

// IsFallback reports whether the price was synthesized.
func (s Source) IsFallback() bool { return s != SourceLive }

// FallbackReason explains why a live price could not be used.
type FallbackReason string

const (
	ReasonParseError   FallbackReason = "parse-error"
	ReasonNetworkError FallbackReason = "network-error"
)

// Source maps the reason to the label stamped on the observation.
func (r FallbackReason) Source() Source {
	if r == ReasonNetworkError {
		return SourceFallbackNetworkError
	}
	return SourceFallbackParseError
}

// PriceSample is one price together with where it came from.
type PriceSample struct {
	Price  float64
	Source Source
}

// Observation is the unit delivered downstream. Field names are part of the
// wire contract with the gateway consumers.
type Observation struct {
	Symbol       string  `json:"symbol"`
	Price        float64 `json:"price"`
	AveragePrice float64 `json:"averagePrice"`
	Source       Source  `json:"source"`
	Timestamp    int64   `json:"timestamp"`
	IsAnomaly    bool    `json:"isAnomaly"`
}

// NewObservation builds an observation stamped with at (unix seconds).
func NewObservation(symbol string, s PriceSample, avg float64, anomaly bool, at time.Time) *Observation {
	return &Observation{
		Symbol:       symbol,
		Price:        s.Price,
		AveragePrice: avg,
		Source:       s.Source,
		Timestamp:    at.Unix(),
		IsAnomaly:    anomaly,
	}
}
