// Package stockalert pushes a notification when an item runs low.
package stockalert

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"stockroom/internal/domain/item"
	"stockroom/internal/logging"
)

var (
	alertMeter      = otel.Meter("stockroom/stockalert")
	alertsRaised, _ = alertMeter.Int64Counter("stockalert.raised", metric.WithDescription("Low stock alerts raised"))
)

// Notifier delivers a message to every device subscribed to a topic.
type Notifier interface {
	SendToTopic(ctx context.Context, topic, title, body string, data map[string]string) error
}

// Subscriber opens a feed of item snapshots.
type Subscriber interface {
	Subscribe(ctx context.Context) *item.Subscription
}

// Config holds the alert settings
type Config struct {
	Topic     string
	Threshold int
}

// Watcher observes the item feed and sends one alert each time an item's
// quantity drops to or below the threshold. An item is re-armed once its
// quantity rises above the threshold again.
type Watcher struct {
	feed     Subscriber
	notifier Notifier
	cfg      Config
	logger   logging.Logger

	seeded bool
	low    map[string]bool
}

func NewWatcher(feed Subscriber, notifier Notifier, cfg Config, logger logging.Logger) *Watcher {
	return &Watcher{
		feed:     feed,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		low:      make(map[string]bool),
	}
}

// Run observes the feed until ctx is cancelled or the feed fails.
// It returns nil on cancellation and the feed error otherwise.
// Each Run seeds from its own first snapshot, so calling it again after a
// failure does not alert on items that ran low while the feed was down.
func (w *Watcher) Run(ctx context.Context) error {
	w.seeded = false
	clear(w.low)

	sub := w.feed.Subscribe(ctx)
	defer sub.Cancel()

	w.logger.Info(ctx, "stock alerts enabled", "topic", w.cfg.Topic, "threshold", w.cfg.Threshold)

	for snap, err := range sub.All(ctx) {
		if err != nil {
			return fmt.Errorf("stock alert feed: %w", err)
		}
		w.Observe(ctx, snap)
	}
	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Observe processes one snapshot. The first snapshot only records which
// items are already low, so a restart does not repeat old alerts.
func (w *Watcher) Observe(ctx context.Context, snap []item.Item) {
	present := make(map[string]struct{}, len(snap))
	for _, it := range snap {
		present[it.ID] = struct{}{}
		isLow := it.Quantity <= w.cfg.Threshold

		switch {
		case !isLow:
			delete(w.low, it.ID)
		case w.low[it.ID]:
		default:
			w.low[it.ID] = true
			if w.seeded {
				w.alert(ctx, it)
			}
		}
	}

	for id := range w.low {
		if _, ok := present[id]; !ok {
			delete(w.low, id)
		}
	}
	w.seeded = true
}

func (w *Watcher) alert(ctx context.Context, it item.Item) {
	title := "Low stock"
	body := fmt.Sprintf("%s: %d left", it.Name, it.Quantity)
	data := map[string]string{
		"itemId":   it.ID,
		"quantity": strconv.Itoa(it.Quantity),
	}

	if err := w.notifier.SendToTopic(ctx, w.cfg.Topic, title, body, data); err != nil {
		w.logger.Error(ctx, "failed to raise low stock alert", "id", it.ID, "error", err)
		return
	}

	alertsRaised.Add(ctx, 1)
	w.logger.Info(ctx, "low stock alert raised", "id", it.ID, "quantity", it.Quantity)
}
