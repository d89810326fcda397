package http

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"

	"PriceProbe/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

type pingHandler struct{}

func (pingHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ping", func(c echo.Context) error { return SuccessResponse(c, "pong") })
	e.GET("/boom", func(c echo.Context) error { panic("boom") })
}

func TestServerServesRoutesAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewServer(pingHandler{}, logger.Nop(), WithHost("127.0.0.1"), WithPort(0), WithRegistry(reg))
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop(context.Background())

	base := "http://" + s.Addr().String()
	get := func(path string) (int, string) {
		resp, err := http.Get(base + path)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, string(b)
	}

	if code, body := get("/ping"); code != http.StatusOK || !strings.Contains(body, "pong") {
		t.Fatalf("ping: %d %s", code, body)
	}
	if code, _ := get("/boom"); code != http.StatusInternalServerError {
		t.Fatalf("panic should become 500, got %d", code)
	}
	code, body := get("/metrics")
	if code != http.StatusOK || !strings.Contains(body, `priceprobe_http_requests_total{method="GET",route="/ping",status="200"} 1`) {
		t.Fatalf("metrics missing request counter:\n%s", body)
	}
}

func TestServerStartFailsOnBusyPort(t *testing.T) {
	a := NewServer(nil, logger.Nop(), WithHost("127.0.0.1"), WithPort(0), WithRegistry(prometheus.NewRegistry()))
	if err := a.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer a.Stop(context.Background())

	port := a.Addr().(*net.TCPAddr).Port
	b := NewServer(nil, logger.Nop(), WithHost("127.0.0.1"), WithPort(port), WithRegistry(prometheus.NewRegistry()))
	if err := b.Start(); err == nil {
		t.Fatalf("expected bind error")
	}
}
