package handlers

import (
	"net/http"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/storymine-hq/storymine-engine/pkg/config"
)

type stubConnection struct{ connected bool }

func (s stubConnection) Connected() bool { return s.connected }

func newHealthMux(connected bool) *http.ServeMux {
	cfg := &config.Config{Env: "test", Version: "1.0.0"}
	mux := http.NewServeMux()
	NewHealthHandler(cfg, stubConnection{connected: connected}, &mockUpstream{activeURL: "http://storymap-api:5001"}, zap.NewNop()).
		RegisterRoutes(mux)
	return mux
}

func TestHealth(t *testing.T) {
	rec := doRequest(t, newHealthMux(true), http.MethodGet, "/api/health", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body HealthResponse
	decodeBody(t, rec, &body)
	if body.Status != "OK" {
		t.Errorf("expected status OK, got %q", body.Status)
	}
	if body.Database != "connected" {
		t.Errorf("expected database connected, got %q", body.Database)
	}
	if _, err := time.Parse(time.RFC3339, body.Timestamp); err != nil {
		t.Errorf("timestamp is not RFC3339: %q", body.Timestamp)
	}
}

func TestHealth_DegradedDatabase(t *testing.T) {
	rec := doRequest(t, newHealthMux(false), http.MethodGet, "/api/health", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("health must stay 200 while degraded, got %d", rec.Code)
	}
	var body HealthResponse
	decodeBody(t, rec, &body)
	if body.Database != "degraded" {
		t.Errorf("expected database degraded, got %q", body.Database)
	}
}
