package main

import (
	"context"
	"net/http"

	httphandlers "stockroom/internal/interfaces/http"
	"stockroom/internal/logging"
	"stockroom/internal/shared/config"
	"stockroom/internal/shared/middleware"
)

// SetupRoutes configures all HTTP routes and returns the final handler with middleware.
func SetupRoutes(deps *Dependencies, cfg *config.Config, logger logging.Logger) http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", httphandlers.HandleHealth)

	// Items
	mux.HandleFunc("/api/items", deps.ItemHandler.HandleItems)
	mux.HandleFunc("/api/items/stream", deps.ItemHandler.HandleStream)
	mux.HandleFunc("/api/items/{id}", deps.ItemHandler.HandleItemByID)

	// Apply global middleware, outermost last
	var handler http.Handler = middleware.CORS(cfg.Server.AllowedHosts)(mux)
	handler = middleware.Tracing(handler)
	if cfg.Telemetry.Enabled {
		handler = middleware.Telemetry(cfg.Telemetry.ServiceName)(handler)
	}
	handler = middleware.Logging(logger.With("component", "access"))(handler)
	handler = middleware.RequestID(handler)

	// Apply security middleware when TLS is enabled
	if cfg.TLS.Enabled {
		handler = middleware.HSTS(handler)
		logger.Info(context.Background(), "TLS security middleware enabled (HSTS)")
	}

	return handler
}
