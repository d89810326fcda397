package marketdata

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"time"

	"PriceProbe/internal/domain/models"
	drepo "PriceProbe/internal/domain/repository"
	xhttp "PriceProbe/pkg/http"

	"github.com/shopspring/decimal"
)

// DefaultBaseURL is the public Binance spot ticker endpoint.
const DefaultBaseURL = "https://api.binance.com/api/v3/ticker/price"

// Client implements PriceFetcher against a Binance-style ticker endpoint:
// GET <baseURL>?symbol=<SourceSymbol> -> {"symbol":"BTCUSDT","price":"91234.50"}.
type Client struct {
	baseURL string
	http    *xhttp.Client
}

// New creates a market-data client. Each Fetch is bounded by timeout.
func New(baseURL string, timeout time.Duration, opts ...xhttp.ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	opts = append(opts, xhttp.WithTimeout(timeout))
	return &Client{
		baseURL: baseURL,
		http:    xhttp.NewClient(opts...),
	}
}

type tickerResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// Fetch issues exactly one request. It never retries and never returns an
// error: every failure is folded into a fallback outcome.
func (c *Client) Fetch(ctx context.Context, in models.Instrument) drepo.Outcome {
	var tr tickerResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         c.baseURL,
		QueryParams: map[string][]string{"symbol": {in.SourceSymbol}},
	}, &tr)
	if err != nil {
		if isNetworkError(err) {
			return drepo.FallbackOutcome(models.ReasonNetworkError, err)
		}
		return drepo.FallbackOutcome(models.ReasonParseError, err)
	}

	price, err := parsePrice(tr.Price)
	if err != nil {
		return drepo.FallbackOutcome(models.ReasonParseError, fmt.Errorf("%s: %w", in.SourceSymbol, err))
	}
	return drepo.LiveOutcome(price)
}

func parsePrice(raw string) (float64, error) {
	if raw == "" {
		return 0, errors.New("price field missing")
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", raw, err)
	}
	if !d.IsPositive() {
		return 0, fmt.Errorf("non-positive price %s", d.String())
	}
	f := d.InexactFloat64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("price %q out of range", raw)
	}
	return f, nil
}

func isNetworkError(err error) bool {
	var te *xhttp.TransportError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	// body reads can time out after headers arrived
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
