package fallback

import (
	"math/rand/v2"

	"PriceProbe/internal/domain/models"
)

const (
	DefaultBase     = 100.0
	DefaultSpread   = 0.05
	BenchmarkBase   = 90000.0
	BenchmarkSymbol = "BTC-USD"
)

// Generator produces synthetic prices uniformly in [base, base*(1+spread)).
type Generator struct {
	bases     map[string]float64
	benchmark string
	benchBase float64
	def       float64
	spread    float64
	float     func() float64
}

// Option configures Generator.
type Option func(*Generator)

// WithBase sets the base price for one display symbol.
func WithBase(symbol string, base float64) Option {
	return func(g *Generator) {
		if base > 0 {
			g.bases[symbol] = base
		}
	}
}

// WithBenchmark names the benchmark instrument and its base. An explicit
// WithBase for the same symbol wins.
func WithBenchmark(symbol string, base float64) Option {
	return func(g *Generator) {
		if symbol != "" {
			g.benchmark = symbol
		}
		if base > 0 {
			g.benchBase = base
		}
	}
}

// WithDefaultBase sets the base for symbols without an explicit one.
func WithDefaultBase(base float64) Option {
	return func(g *Generator) {
		if base > 0 {
			g.def = base
		}
	}
}

// WithSpread sets the relative width of the range.
func WithSpread(spread float64) Option {
	return func(g *Generator) {
		if spread > 0 {
			g.spread = spread
		}
	}
}

// WithRand replaces the ambient random source; f must return values in [0,1).
func WithRand(f func() float64) Option {
	return func(g *Generator) {
		if f != nil {
			g.float = f
		}
	}
}

// New creates a generator seeded from the process's ambient random source.
func New(opts ...Option) *Generator {
	g := &Generator{
		bases:     map[string]float64{},
		benchmark: BenchmarkSymbol,
		benchBase: BenchmarkBase,
		def:       DefaultBase,
		spread:    DefaultSpread,
		float:     rand.Float64,
	}
	for _, opt := range opts {
		opt(g)
	}
	if _, ok := g.bases[g.benchmark]; !ok {
		g.bases[g.benchmark] = g.benchBase
	}
	return g
}

// Range returns the half-open interval prices for symbol are drawn from.
func (g *Generator) Range(symbol string) (lo, hi float64) {
	base, ok := g.bases[symbol]
	if !ok {
		base = g.def
	}
	return base, base * (1 + g.spread)
}

// Generate returns a synthetic price for symbol. The reason does not affect
// the price.
func (g *Generator) Generate(symbol string, _ models.FallbackReason) float64 {
	lo, hi := g.Range(symbol)
	p := lo + g.float()*(hi-lo)
	if p >= hi {
		// float rounding at the top edge
		p = lo
	}
	return p
}
