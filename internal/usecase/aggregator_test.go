package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"PriceProbe/internal/domain/models"
	drepo "PriceProbe/internal/domain/repository"
	"PriceProbe/internal/repository"
	"PriceProbe/internal/service/anomaly"
	"PriceProbe/internal/service/fallback"
	"PriceProbe/internal/service/window"
	"PriceProbe/pkg/cache"
	"PriceProbe/pkg/logger"
	"PriceProbe/pkg/metrics"
)

var testInstruments = []models.Instrument{
	{SourceSymbol: "BTCUSDT", DisplaySymbol: "BTC-USD"},
	{SourceSymbol: "ETHUSDT", DisplaySymbol: "ETH-USD"},
	{SourceSymbol: "SOLUSDT", DisplaySymbol: "SOL-USD"},
}

type harness struct {
	agg     *Aggregator
	sink    *fakeSink
	fetcher *fakeFetcher
	tracker *window.Tracker
	store   drepo.SnapshotStore
	sleeps  []time.Duration
}

func newHarness(outcomes map[string][]drepo.Outcome) *harness {
	h := &harness{
		sink:    &fakeSink{},
		fetcher: &fakeFetcher{outcomes: outcomes},
		tracker: window.New(5),
		store:   repository.NewSnapshotStore(cache.NewMemoryCache()),
	}
	delivery := NewDeliveryChannel(h.sink, time.Millisecond, logger.Nop(), metrics.Nop{})
	h.agg = NewAggregator(
		testInstruments,
		h.fetcher,
		fallback.New(fallback.WithRand(func() float64 { return 0.5 })),
		h.tracker,
		anomaly.New(anomaly.DefaultConfig()),
		delivery,
		metrics.Nop{},
		logger.Nop(),
		WithSnapshot(h.store),
		WithClock(func() time.Time { return time.Unix(1700000000, 0) }, func(ctx context.Context, d time.Duration) error {
			h.sleeps = append(h.sleeps, d)
			return ctx.Err()
		}),
	)
	return h
}

func decodeAll(t *testing.T, msgs []published) []models.Observation {
	t.Helper()
	out := make([]models.Observation, len(msgs))
	for i, m := range msgs {
		if err := json.Unmarshal(m.body, &out[i]); err != nil {
			t.Fatalf("decode %d: %v", i, err)
		}
	}
	return out
}

func TestRunCycleDeliversInDeclaredOrder(t *testing.T) {
	h := newHarness(map[string][]drepo.Outcome{
		"BTCUSDT": {drepo.LiveOutcome(91000)},
		"ETHUSDT": {drepo.LiveOutcome(3000)},
		"SOLUSDT": {drepo.LiveOutcome(150)},
	})
	ctx := context.Background()
	if err := h.agg.delivery.Open(ctx); err != nil {
		t.Fatalf("open: %v", err)
	}

	for cycle := 0; cycle < 2; cycle++ {
		n, err := h.agg.RunCycle(ctx)
		if err != nil || n != 3 {
			t.Fatalf("cycle %d: n=%d err=%v", cycle, n, err)
		}
	}

	obs := decodeAll(t, h.sink.messages)
	want := []string{"BTC-USD", "ETH-USD", "SOL-USD", "BTC-USD", "ETH-USD", "SOL-USD"}
	if len(obs) != len(want) {
		t.Fatalf("expected %d observations, got %d", len(want), len(obs))
	}
	for i, o := range obs {
		if o.Symbol != want[i] || h.sink.messages[i].key != want[i] {
			t.Fatalf("observation %d: got %s want %s", i, o.Symbol, want[i])
		}
		if o.Source != models.SourceLive || o.IsAnomaly {
			t.Fatalf("unexpected observation %+v", o)
		}
	}
	if len(h.sleeps) != 6 || h.sleeps[0] != DefaultInstrumentDelay {
		t.Fatalf("expected a pause after every instrument, got %v", h.sleeps)
	}
}

func TestRunCycleNetworkFallback(t *testing.T) {
	h := newHarness(map[string][]drepo.Outcome{
		"BTCUSDT": {drepo.LiveOutcome(91000)},
		"ETHUSDT": {drepo.FallbackOutcome(models.ReasonNetworkError, context.DeadlineExceeded)},
		"SOLUSDT": {drepo.FallbackOutcome(models.ReasonParseError, errors.New("bad body"))},
	})
	ctx := context.Background()
	_ = h.agg.delivery.Open(ctx)

	if _, err := h.agg.RunCycle(ctx); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	obs := decodeAll(t, h.sink.messages)

	eth := obs[1]
	if eth.Symbol != "ETH-USD" || eth.Source != models.SourceFallbackNetworkError {
		t.Fatalf("unexpected eth observation %+v", eth)
	}
	if eth.Price != 102.5 || eth.AveragePrice != eth.Price || eth.IsAnomaly {
		t.Fatalf("first fallback sample should be its own average: %+v", eth)
	}
	if h.tracker.Len("ETH-USD") != 1 {
		t.Fatalf("window should hold one sample, has %d", h.tracker.Len("ETH-USD"))
	}
	if obs[2].Source != models.SourceFallbackParseError {
		t.Fatalf("expected parse-error provenance, got %q", obs[2].Source)
	}

	snap, err := h.store.Get(ctx, "ETH-USD")
	if err != nil || snap.Source != models.SourceFallbackNetworkError || snap.Timestamp != 1700000000 {
		t.Fatalf("snapshot not updated: %+v (%v)", snap, err)
	}
}

func TestRunCycleFlagsSpike(t *testing.T) {
	h := newHarness(map[string][]drepo.Outcome{
		"BTCUSDT": {drepo.LiveOutcome(91000)},
		"ETHUSDT": {drepo.LiveOutcome(3000), drepo.LiveOutcome(3000), drepo.LiveOutcome(3600)},
		"SOLUSDT": {drepo.LiveOutcome(150)},
	})
	ctx := context.Background()
	_ = h.agg.delivery.Open(ctx)
	for i := 0; i < 3; i++ {
		if _, err := h.agg.RunCycle(ctx); err != nil {
			t.Fatalf("cycle: %v", err)
		}
	}

	obs := decodeAll(t, h.sink.messages)
	eth := obs[7]
	if eth.Symbol != "ETH-USD" || eth.Price != 3600 || eth.AveragePrice != 3200 {
		t.Fatalf("unexpected %+v", eth)
	}
	// |3600-3200|/3200 is above the 5% threshold
	if !eth.IsAnomaly {
		t.Fatalf("expected spike to be flagged")
	}
	for _, i := range []int{0, 1, 3, 4, 6} {
		if obs[i].IsAnomaly {
			t.Fatalf("steady price flagged: %+v", obs[i])
		}
	}
}

func TestDeliveryFailureDoesNotStopCycle(t *testing.T) {
	h := newHarness(map[string][]drepo.Outcome{
		"BTCUSDT": {drepo.LiveOutcome(91000)},
		"ETHUSDT": {drepo.LiveOutcome(3000)},
		"SOLUSDT": {drepo.LiveOutcome(150)},
	})
	h.sink.publishErrs = []error{nil, errors.New("queue full")}
	ctx := context.Background()
	_ = h.agg.delivery.Open(ctx)

	n, err := h.agg.RunCycle(ctx)
	if err != nil || n != 3 {
		t.Fatalf("n=%d err=%v", n, err)
	}
	obs := decodeAll(t, h.sink.messages)
	if len(obs) != 2 || obs[0].Symbol != "BTC-USD" || obs[1].Symbol != "SOL-USD" {
		t.Fatalf("unexpected deliveries %+v", obs)
	}
	if _, err := h.store.Get(ctx, "ETH-USD"); err != nil {
		t.Fatalf("undelivered observation should still reach the snapshot: %v", err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	h := newHarness(map[string][]drepo.Outcome{
		"BTCUSDT": {drepo.LiveOutcome(91000)},
		"ETHUSDT": {drepo.LiveOutcome(3000)},
		"SOLUSDT": {drepo.LiveOutcome(150)},
	})
	ctx, cancel := context.WithCancel(context.Background())
	cycles := 0
	h.agg.sleep = func(ctx context.Context, d time.Duration) error {
		if d == DefaultCycleDelay {
			cycles++
			if cycles == 2 {
				cancel()
			}
		}
		return ctx.Err()
	}

	if err := h.agg.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(h.sink.messages) != 6 || !h.agg.delivery.Ready() {
		t.Fatalf("expected two full cycles, got %d messages", len(h.sink.messages))
	}
	if got := h.fetcher.calls; got[0] != "BTCUSDT" || got[1] != "ETHUSDT" || got[2] != "SOLUSDT" {
		t.Fatalf("unexpected fetch order %v", got)
	}
}

func TestRunWaitsForSink(t *testing.T) {
	h := newHarness(nil)
	h.agg.delivery = NewDeliveryChannel(&alwaysDown{}, time.Millisecond, logger.Nop(), metrics.Nop{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := h.agg.Run(ctx); err != nil {
		t.Fatalf("cancelled run should return nil, got %v", err)
	}
	if len(h.fetcher.calls) != 0 {
		t.Fatalf("no fetch may happen before the sink is connected")
	}
}
