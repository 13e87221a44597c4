package stockalert

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"stockroom/internal/logging"
)

var (
	dispatchTracer      = otel.Tracer("stockroom/stockalert")
	dispatchDuration, _ = alertMeter.Float64Histogram("stockalert.send.duration", metric.WithDescription("Alert delivery duration in seconds"), metric.WithUnit("s"))
	dispatchTotal, _    = alertMeter.Int64Counter("stockalert.send.total", metric.WithDescription("Alert deliveries by status"))
	dispatchDropped, _  = alertMeter.Int64Counter("stockalert.send.dropped", metric.WithDescription("Alerts dropped due to a full queue"))
)

// ErrQueueFull is returned by SendToTopic when no worker can take the alert.
var ErrQueueFull = errors.New("alert queue full")

// ErrDispatcherClosed is returned by SendToTopic after Shutdown.
var ErrDispatcherClosed = errors.New("alert dispatcher closed")

// DispatcherConfig sizes the delivery pool.
type DispatcherConfig struct {
	Workers   int
	QueueSize int
	// RatePerSecond caps deliveries across all workers. Zero means unlimited.
	RatePerSecond float64
	SendTimeout   time.Duration
}

type message struct {
	topic, title, body string
	data               map[string]string
}

// Dispatcher delivers alerts on a pool of workers so a slow push service
// never holds up the snapshot feed. It implements Notifier.
type Dispatcher struct {
	next    Notifier
	cfg     DispatcherConfig
	limiter *rate.Limiter
	logger  logging.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan message
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewDispatcher(next Notifier, cfg DispatcherConfig, logger logging.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 30 * time.Second
	}

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		next:    next,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
		queue:   make(chan message, cfg.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the worker goroutines.
func (d *Dispatcher) Start() {
	d.logger.Info(d.ctx, "starting alert dispatcher", "workers", d.cfg.Workers, "queue", d.cfg.QueueSize)
	for i := 1; i <= d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
}

// SendToTopic queues the alert and returns without waiting for delivery.
func (d *Dispatcher) SendToTopic(ctx context.Context, topic, title, body string, data map[string]string) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}

	select {
	case d.queue <- message{topic: topic, title: title, body: body, data: data}:
		return nil
	default:
		dispatchDropped.Add(ctx, 1)
		return ErrQueueFull
	}
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()

	for msg := range d.queue {
		if err := d.limiter.Wait(d.ctx); err != nil {
			// Shutdown timed out; drain without sending.
			continue
		}
		d.deliver(id, msg)
	}
}

func (d *Dispatcher) deliver(workerID int, msg message) {
	ctx, cancel := context.WithTimeout(d.ctx, d.cfg.SendTimeout)
	defer cancel()

	ctx, span := dispatchTracer.Start(ctx, "stockalert.send",
		trace.WithAttributes(
			attribute.Int("worker.id", workerID),
			attribute.String("alert.topic", msg.topic),
			attribute.String("alert.item_id", msg.data["itemId"]),
		),
	)
	defer span.End()

	start := time.Now()
	err := d.next.SendToTopic(ctx, msg.topic, msg.title, msg.body, msg.data)
	dispatchDuration.Record(ctx, time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		dispatchTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "error")))
		d.logger.Error(ctx, "failed to deliver alert", "worker", workerID, "item_id", msg.data["itemId"], "error", err)
		return
	}

	dispatchTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "success")))
	d.logger.Info(ctx, "alert delivered", "worker", workerID, "item_id", msg.data["itemId"])
}

// Shutdown stops accepting alerts and waits for queued ones to be delivered.
// After timeout, in-flight sends are cancelled and the rest are discarded.
func (d *Dispatcher) Shutdown(timeout time.Duration) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		d.logger.Warn(d.ctx, "alert dispatcher shutdown timed out, dropping queued alerts")
		d.cancel()
		<-done
	}
	d.cancel()
}
