package main

import (
	"context"

	"stockroom/internal/domain/item"
	"stockroom/internal/domain/stockalert"
	"stockroom/internal/infrastructure/store"
	httphandlers "stockroom/internal/interfaces/http"
	"stockroom/internal/logging"
	"stockroom/internal/shared/config"
)

// Dependencies holds all initialized application components.
type Dependencies struct {
	ItemService *item.Service
	ItemHandler *httphandlers.ItemHandler

	// AlertWatcher and AlertDispatcher are nil when alerts are disabled.
	AlertWatcher    *stockalert.Watcher
	AlertDispatcher *stockalert.Dispatcher

	store *store.Store
}

// NewDependencies initializes all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger logging.Logger) (*Dependencies, error) {
	st, err := store.Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	deps := &Dependencies{store: st}

	deps.ItemService = item.NewService(st.Collection, logger.With("component", "item_service"))
	deps.ItemHandler = httphandlers.NewItemHandler(deps.ItemService, logger.With("component", "http"), cfg.Server.AllowedHosts)

	if cfg.Alerts.Enabled {
		messenger, err := st.App.Messenger(ctx)
		if err != nil {
			deps.Close()
			return nil, err
		}
		alertLogger := logger.With("component", "stockalert")
		deps.AlertDispatcher = stockalert.NewDispatcher(messenger, stockalert.DispatcherConfig{
			Workers:       cfg.Alerts.Workers,
			QueueSize:     cfg.Alerts.QueueSize,
			RatePerSecond: cfg.Alerts.RatePerSecond,
		}, alertLogger)
		deps.AlertWatcher = stockalert.NewWatcher(deps.ItemService, deps.AlertDispatcher, stockalert.Config{
			Topic:     cfg.Alerts.Topic,
			Threshold: cfg.Alerts.Threshold,
		}, alertLogger)
		logger.Info(ctx, "low stock alerts enabled", "topic", cfg.Alerts.Topic, "threshold", cfg.Alerts.Threshold)
	}

	return deps, nil
}

// Close releases all resources held by dependencies.
func (d *Dependencies) Close() {
	d.store.Close()
}
