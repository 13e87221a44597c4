package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRedirectServer(t *testing.T) {
	tests := []struct {
		name         string
		host         string
		allowedHosts []string
		wantStatus   int
		wantLocation string
	}{
		{
			name:         "drops the port",
			host:         "stock.example.com:80",
			allowedHosts: []string{"stock.example.com"},
			wantStatus:   http.StatusMovedPermanently,
			wantLocation: "https://stock.example.com/api/items?x=1",
		},
		{
			name:         "keeps IPv6 brackets",
			host:         "[::1]:80",
			allowedHosts: []string{"::1"},
			wantStatus:   http.StatusMovedPermanently,
			wantLocation: "https://[::1]/api/items?x=1",
		},
		{
			name:         "rejects unknown host",
			host:         "evil.example.net",
			allowedHosts: []string{"stock.example.com"},
			wantStatus:   http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := createRedirectServer(tt.allowedHosts)

			req := httptest.NewRequest(http.MethodGet, "/api/items?x=1", nil)
			req.Host = tt.host
			rec := httptest.NewRecorder()
			srv.Handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Location"); got != tt.wantLocation {
				t.Errorf("Location = %q, want %q", got, tt.wantLocation)
			}
		})
	}
}
