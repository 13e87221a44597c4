package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"stockroom/internal/logging"
	"stockroom/internal/shared/config"
	"stockroom/internal/shared/middleware"
)

func newTestHandler(t *testing.T, cfg *config.Config) http.Handler {
	t.Helper()
	deps, err := NewDependencies(context.Background(), cfg, logging.NewDiscard())
	if err != nil {
		t.Fatalf("NewDependencies() failed: %v", err)
	}
	t.Cleanup(deps.Close)
	return SetupRoutes(deps, cfg, logging.NewDiscard())
}

func memoryConfig() *config.Config {
	return &config.Config{
		Store: config.StoreConfig{Backend: config.BackendMemory, Collection: "items"},
	}
}

func TestSetupRoutes_Health(t *testing.T) {
	handler := newTestHandler(t, memoryConfig())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("expected request ID header on response")
	}
}

func TestSetupRoutes_CreateThenList(t *testing.T) {
	handler := newTestHandler(t, memoryConfig())

	body := strings.NewReader(`{"name":"Bolts","quantity":4,"price":0.5,"category":"Hardware"}`)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/items", body))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/items", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d, want %d", rec.Code, http.StatusOK)
	}

	var items []struct {
		Name     string `json:"name"`
		Quantity int    `json:"quantity"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("failed to decode list: %v", err)
	}
	if len(items) != 1 || items[0].Name != "Bolts" || items[0].Quantity != 4 {
		t.Errorf("items = %+v, want one Bolts x4", items)
	}
}

func TestSetupRoutes_HSTSWithTLS(t *testing.T) {
	cfg := memoryConfig()
	cfg.TLS.Enabled = true
	handler := newTestHandler(t, cfg)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Header().Get("Strict-Transport-Security") == "" {
		t.Error("expected HSTS header when TLS is enabled")
	}
}
