package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"PriceProbe/internal/domain/models"
	drepo "PriceProbe/internal/domain/repository"
	"PriceProbe/pkg/logger"
	"PriceProbe/pkg/metrics"
)

func TestOpenRetriesUntilSinkAccepts(t *testing.T) {
	sink := &fakeSink{connectErrs: []error{errors.New("refused"), errors.New("refused")}}
	var buf bytes.Buffer
	d := NewDeliveryChannel(sink, time.Millisecond, logger.NewWriter(&buf), metrics.Nop{})

	if d.Ready() {
		t.Fatalf("channel must not be ready before Open")
	}
	if err := d.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}
	if !d.Ready() || sink.connects != 3 {
		t.Fatalf("ready=%v connects=%d", d.Ready(), sink.connects)
	}
	if n := strings.Count(buf.String(), "waiting for sink"); n != 2 {
		t.Fatalf("expected 2 waiting lines, got %d:\n%s", n, buf.String())
	}
}

func TestOpenStopsOnCancel(t *testing.T) {
	sink := &alwaysDown{}
	d := NewDeliveryChannel(sink, time.Millisecond, logger.Nop(), metrics.Nop{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := d.Open(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if d.Ready() || sink.connects < 2 {
		t.Fatalf("ready=%v connects=%d", d.Ready(), sink.connects)
	}
}

func TestDeliverEncodesObservation(t *testing.T) {
	sink := &fakeSink{}
	d := NewDeliveryChannel(sink, time.Millisecond, logger.Nop(), metrics.Nop{})
	if err := d.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}

	o := models.NewObservation("BTC-USD", models.PriceSample{Price: 91000.5, Source: models.SourceLive}, 91000.25, false, time.Unix(1700000000, 0))
	if err := d.Deliver(context.Background(), o); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if len(sink.messages) != 1 || sink.messages[0].key != "BTC-USD" {
		t.Fatalf("unexpected messages %+v", sink.messages)
	}
	var got map[string]interface{}
	if err := json.Unmarshal(sink.messages[0].body, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["symbol"] != "BTC-USD" || got["source"] != "live" || got["isAnomaly"] != false || got["timestamp"] != float64(1700000000) {
		t.Fatalf("unexpected body %v", got)
	}
}

func TestDeliverFailureIsNotRetried(t *testing.T) {
	sink := &fakeSink{publishErrs: []error{errors.New("nack")}}
	d := NewDeliveryChannel(sink, time.Millisecond, logger.Nop(), metrics.Nop{})
	_ = d.Open(context.Background())

	o := &models.Observation{Symbol: "SOL-USD"}
	if err := d.Deliver(context.Background(), o); err == nil {
		t.Fatalf("expected failure")
	}
	if len(sink.messages) != 0 || sink.connects != 1 {
		t.Fatalf("failed delivery must not be resent: %+v", sink)
	}
	if err := d.Deliver(context.Background(), o); err != nil {
		t.Fatalf("next delivery: %v", err)
	}
}

func TestDeliverReopensLostSession(t *testing.T) {
	sink := &fakeSink{publishErrs: []error{fmt.Errorf("%w: channel closed", drepo.ErrSessionLost)}}
	d := NewDeliveryChannel(sink, time.Millisecond, logger.Nop(), metrics.Nop{})
	_ = d.Open(context.Background())

	err := d.Deliver(context.Background(), &models.Observation{Symbol: "ADA-USD"})
	if !errors.Is(err, drepo.ErrSessionLost) {
		t.Fatalf("expected session lost, got %v", err)
	}
	if sink.connects != 2 || !d.Ready() {
		t.Fatalf("session not reopened: connects=%d ready=%v", sink.connects, d.Ready())
	}
	if len(sink.messages) != 0 {
		t.Fatalf("lost observation must not be resent")
	}

	if err := d.Close(); err != nil || !sink.closed || d.Ready() {
		t.Fatalf("close: %v", err)
	}
}

func TestDeliverLogsEncodeFailure(t *testing.T) {
	sink := &fakeSink{}
	var buf bytes.Buffer
	d := NewDeliveryChannel(sink, time.Millisecond, logger.NewWriter(&buf), metrics.Nop{})
	_ = d.Open(context.Background())

	o := &models.Observation{Symbol: "ETH-USD", Price: math.Inf(1), Source: models.SourceLive}
	if err := d.Deliver(context.Background(), o); err == nil {
		t.Fatalf("expected encode error")
	}
	if len(sink.messages) != 0 {
		t.Fatalf("unencodable observation reached the sink")
	}
	out := buf.String()
	if !strings.Contains(out, "encode failed") || !strings.Contains(out, "ETH-USD") || !strings.Contains(out, `"level":"error"`) {
		t.Fatalf("encode failure not logged:\n%s", out)
	}
}
