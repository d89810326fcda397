package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFieldsAreEncoded(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf).With(String("component", "aggregator"))

	l.Warn("fallback price used",
		String("symbol", "ETH-USD"),
		Float64("price", 101.5),
		Bool("anomaly", false),
		Error(errors.New("dial tcp: refused")),
	)

	var m map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	want := map[string]interface{}{
		"level":     "warn",
		"message":   "fallback price used",
		"component": "aggregator",
		"symbol":    "ETH-USD",
		"price":     101.5,
		"anomaly":   false,
		"error":     "dial tcp: refused",
	}
	for k, v := range want {
		if m[k] != v {
			t.Fatalf("%s=%v want %v (%s)", k, m[k], v, buf.String())
		}
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := New(&Config{Level: "loud"}); err == nil {
		t.Fatalf("expected error for invalid level")
	}
}

func TestNewFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "probe.log")
	l, err := New(&Config{Level: "info", Format: "json", Output: path})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	l.Debug("hidden")
	l.Info("visible")

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if bytes.Contains(b, []byte("hidden")) || !bytes.Contains(b, []byte("visible")) {
		t.Fatalf("unexpected log content %q", b)
	}
}
