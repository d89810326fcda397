package marketdata

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"PriceProbe/internal/domain/models"
)

var btc = models.Instrument{SourceSymbol: "BTCUSDT", DisplaySymbol: "BTC-USD"}

func TestFetchOutcomes(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		live   bool
		price  float64
		reason models.FallbackReason
	}{
		{name: "live", status: 200, body: `{"symbol":"BTCUSDT","price":"91234.50000000"}`, live: true, price: 91234.5},
		{name: "malformed body", status: 200, body: `<html>`, reason: models.ReasonParseError},
		{name: "unparseable price", status: 200, body: `{"symbol":"BTCUSDT","price":"abc"}`, reason: models.ReasonParseError},
		{name: "missing price", status: 200, body: `{"symbol":"BTCUSDT"}`, reason: models.ReasonParseError},
		{name: "zero price", status: 200, body: `{"symbol":"BTCUSDT","price":"0"}`, reason: models.ReasonParseError},
		{name: "overflowing price", status: 200, body: `{"symbol":"BTCUSDT","price":"1e400"}`, reason: models.ReasonParseError},
		{name: "non-200", status: 429, body: `{"code":-1003}`, reason: models.ReasonParseError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotSymbol string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotSymbol = r.URL.Query().Get("symbol")
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			out := New(srv.URL, time.Second).Fetch(context.Background(), btc)
			if gotSymbol != "BTCUSDT" {
				t.Fatalf("upstream queried with symbol %q", gotSymbol)
			}
			if out.Live != tt.live {
				t.Fatalf("live=%v want %v (err=%v)", out.Live, tt.live, out.Err)
			}
			if tt.live && out.Price != tt.price {
				t.Fatalf("price=%v want %v", out.Price, tt.price)
			}
			if !tt.live && out.Reason != tt.reason {
				t.Fatalf("reason=%s want %s", out.Reason, tt.reason)
			}
		})
	}
}

func TestFetchTimeoutIsNetworkError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	out := New(srv.URL, 100*time.Millisecond).Fetch(context.Background(), btc)
	if out.Live || out.Reason != models.ReasonNetworkError {
		t.Fatalf("expected network fallback, got %+v", out)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("fetch not bounded by timeout")
	}
}

func TestFetchConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	out := New(url, time.Second).Fetch(context.Background(), btc)
	if out.Live || out.Reason != models.ReasonNetworkError {
		t.Fatalf("expected network fallback, got %+v", out)
	}
}

func TestFetchStalledBodyIsNetworkError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"symbol":"BTCUSDT",`)
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	out := New(srv.URL, 100*time.Millisecond).Fetch(context.Background(), btc)
	if out.Live || out.Reason != models.ReasonNetworkError {
		t.Fatalf("expected network fallback for a stalled body, got reason=%s err=%v", out.Reason, out.Err)
	}
}
