package item

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"stockroom/internal/logging"
)

var (
	itemTracer             = otel.Tracer("stockroom/item")
	itemMeter              = otel.Meter("stockroom/item")
	snapshotsPublished, _  = itemMeter.Int64Counter("item.snapshots.published", metric.WithDescription("Snapshots published to observers"))
	documentsDecoded, _    = itemMeter.Int64Counter("item.documents.decoded", metric.WithDescription("Documents decoded from the live query"))
	activeSubscriptions, _ = itemMeter.Int64UpDownCounter("item.subscriptions.active", metric.WithDescription("Observers currently subscribed"))
	liveQueryFailures, _   = itemMeter.Int64Counter("item.live_query.failures", metric.WithDescription("Live queries ended by a store error"))
)

// Service is the single access point to one remote item collection.
// It shares one live query among all subscribers and publishes a decoded,
// createdAt-descending snapshot to each of them on every store change.
type Service struct {
	coll   Collection
	logger logging.Logger

	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	query  *liveQuery
	latest []Item
}

// liveQuery is one running Watch shared by the current subscribers.
type liveQuery struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new sync service over the collection
func NewService(coll Collection, logger logging.Logger) *Service {
	return &Service{
		coll:   coll,
		logger: logger,
		subs:   make(map[*Subscription]struct{}),
	}
}

// Subscribe registers an observer of the collection.
// The first subscriber opens the live query; later subscribers immediately
// receive the latest published snapshot. The subscription ends on Cancel or
// when ctx is done, and after a live query failure.
func (s *Service) Subscribe(ctx context.Context) *Subscription {
	sub := newSubscription(s)

	s.mu.Lock()
	s.subs[sub] = struct{}{}
	if s.query == nil {
		s.startLocked()
	} else if s.latest != nil {
		sub.push(slices.Clone(s.latest))
	}
	n := len(s.subs)
	s.mu.Unlock()

	sub.bind(ctx)
	activeSubscriptions.Add(ctx, 1)
	s.logger.Debug(ctx, "observer subscribed", "subscribers", n)
	return sub
}

// Current returns the next available snapshot: the latest published one if a
// live query is already running, otherwise the initial load of a new one.
func (s *Service) Current(ctx context.Context) ([]Item, error) {
	sub := s.Subscribe(ctx)
	defer sub.Cancel()
	return sub.Next(ctx)
}

// Create encodes item and appends it as a new document.
// It returns the identifier assigned by the store.
func (s *Service) Create(ctx context.Context, it Item) (string, error) {
	ctx, span := itemTracer.Start(ctx, "item.Create")
	defer span.End()

	if it.IsPersisted() {
		return "", fmt.Errorf("create item: %w", ErrAlreadyPersisted)
	}

	id, err := s.coll.Add(ctx, ToWire(it))
	if err != nil {
		recordError(span, err)
		return "", fmt.Errorf("create item: %w", err)
	}

	span.SetAttributes(attribute.String("item.id", id))
	s.logger.Info(ctx, "item created", "id", id, "name", it.Name)
	return id, nil
}

// Update overwrites the whole document stored under item.ID, createdAt included.
// An item without an ID was never persisted; the call is then a no-op.
// A document deleted in the meantime is not recreated; the error wraps ErrItemNotFound.
func (s *Service) Update(ctx context.Context, it Item) error {
	if !it.IsPersisted() {
		s.logger.Warn(ctx, "update skipped for unpersisted item", "name", it.Name)
		return nil
	}

	ctx, span := itemTracer.Start(ctx, "item.Update", trace.WithAttributes(attribute.String("item.id", it.ID)))
	defer span.End()

	if err := s.coll.Set(ctx, it.ID, ToWire(it)); err != nil {
		recordError(span, err)
		return fmt.Errorf("update item %s: %w", it.ID, err)
	}

	s.logger.Info(ctx, "item updated", "id", it.ID)
	return nil
}

// Delete removes the document with the given id. Missing ids succeed.
func (s *Service) Delete(ctx context.Context, id string) error {
	ctx, span := itemTracer.Start(ctx, "item.Delete", trace.WithAttributes(attribute.String("item.id", id)))
	defer span.End()

	if err := s.coll.Delete(ctx, id); err != nil {
		recordError(span, err)
		return fmt.Errorf("delete item %s: %w", id, err)
	}

	s.logger.Info(ctx, "item deleted", "id", id)
	return nil
}

// startLocked opens a new live query. s.mu must be held.
func (s *Service) startLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	q := &liveQuery{cancel: cancel, done: make(chan struct{})}
	s.query = q
	s.latest = nil
	go s.watch(ctx, q)
}

// watch is the only goroutine that publishes for q, so snapshots reach
// subscribers in the order the store reported them.
func (s *Service) watch(ctx context.Context, q *liveQuery) {
	defer close(q.done)

	stream := s.coll.Watch(ctx)
	defer stream.Stop()

	s.logger.Info(ctx, "live query opened")
	for {
		docs, err := stream.Next()
		if ctx.Err() != nil {
			s.logger.Info(context.Background(), "live query closed")
			return
		}
		if err != nil {
			s.fail(q, err)
			return
		}
		s.publish(ctx, q, decodeSnapshot(docs))
	}
}

func (s *Service) publish(ctx context.Context, q *liveQuery, items []Item) {
	documentsDecoded.Add(ctx, int64(len(items)))

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.query != q {
		return
	}
	s.latest = items
	for sub := range s.subs {
		sub.push(slices.Clone(items))
	}
	snapshotsPublished.Add(ctx, 1)
	s.logger.Debug(ctx, "snapshot published", "items", len(items), "subscribers", len(s.subs))
}

// fail delivers err to every active subscriber and tears the live query down.
func (s *Service) fail(q *liveQuery, err error) {
	ctx := context.Background()

	s.mu.Lock()
	if s.query != q {
		s.mu.Unlock()
		return
	}
	subs := s.subs
	s.subs = make(map[*Subscription]struct{})
	s.query = nil
	s.latest = nil
	s.mu.Unlock()

	q.cancel()
	for sub := range subs {
		sub.terminate(err)
	}

	liveQueryFailures.Add(ctx, 1)
	activeSubscriptions.Add(ctx, -int64(len(subs)))
	s.logger.Error(ctx, "live query failed", "error", err, "subscribers", len(subs))
}

// remove unregisters sub and closes the live query after the last observer leaves.
func (s *Service) remove(sub *Subscription) {
	s.mu.Lock()
	if _, ok := s.subs[sub]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.subs, sub)

	var q *liveQuery
	if len(s.subs) == 0 && s.query != nil {
		q = s.query
		s.query = nil
		s.latest = nil
	}
	s.mu.Unlock()

	activeSubscriptions.Add(context.Background(), -1)
	if q != nil {
		q.cancel()
	}
}

// decodeSnapshot decodes every document, drops repeated ids, and orders the
// result by createdAt descending. Store order breaks ties.
func decodeSnapshot(docs []Document) []Item {
	items := make([]Item, 0, len(docs))
	seen := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		if _, dup := seen[d.ID]; dup {
			continue
		}
		seen[d.ID] = struct{}{}
		items = append(items, FromWire(d.ID, d.Fields))
	}
	slices.SortStableFunc(items, func(a, b Item) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return items
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
