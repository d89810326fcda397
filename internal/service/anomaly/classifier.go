package anomaly

import "math"

// Config holds the anomaly thresholds.
type Config struct {
	// SpikeThreshold is the relative deviation from the trailing average
	// above which a sample is flagged.
	SpikeThreshold float64
	// Benchmark is the only symbol the absolute band applies to.
	Benchmark string
	BandLow   float64
	BandHigh  float64
}

// DefaultConfig returns the thresholds of the moving-average aggregator.
func DefaultConfig() Config {
	return Config{
		SpikeThreshold: 0.05,
		Benchmark:      "BTC-USD",
		BandLow:        80000,
		BandHigh:       99000,
	}
}

// Classifier applies the spike rule to every symbol and the band rule to the
// benchmark only.
type Classifier struct {
	cfg Config
}

// New creates a classifier.
func New(cfg Config) *Classifier {
	return &Classifier{cfg: cfg}
}

// Classify reports spike(price, avg) || (symbol is benchmark && outside band).
func (c *Classifier) Classify(symbol string, price, averagePrice float64) bool {
	return c.Spike(price, averagePrice) || c.OutOfBand(symbol, price)
}

// Spike reports whether |price-avg|/avg exceeds the threshold. A zero average
// has no defined deviation and is never a spike.
func (c *Classifier) Spike(price, averagePrice float64) bool {
	if averagePrice == 0 {
		return false
	}
	return math.Abs(price-averagePrice)/averagePrice > c.cfg.SpikeThreshold
}

// OutOfBand reports whether the benchmark's price left the sane corridor.
func (c *Classifier) OutOfBand(symbol string, price float64) bool {
	if symbol != c.cfg.Benchmark {
		return false
	}
	return price < c.cfg.BandLow || price > c.cfg.BandHigh
}
