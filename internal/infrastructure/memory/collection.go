// Package memory provides an in-process document collection with live queries.
// It backs the "memory" store for local development and serves as the fake
// collection in tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"stockroom/internal/domain/item"
)

// ErrStreamStopped is returned by Next after Stop.
var ErrStreamStopped = errors.New("live query stopped")

type record struct {
	fields map[string]any
	seq    uint64
}

// Collection implements item.Collection in memory.
type Collection struct {
	mu       sync.Mutex
	docs     map[string]record
	seq      uint64
	streams  map[*stream]struct{}
	watches  int
	writes   int
	writeErr error
}

// NewCollection creates an empty collection
func NewCollection() *Collection {
	return &Collection{
		docs:    make(map[string]record),
		streams: make(map[*stream]struct{}),
	}
}

func (c *Collection) Add(ctx context.Context, fields map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c.mu.Lock()
	if c.writeErr != nil {
		err := c.writeErr
		c.mu.Unlock()
		return "", err
	}
	id := ulid.Make().String()
	c.seq++
	c.docs[id] = record{fields: maps.Clone(fields), seq: c.seq}
	c.writes++
	c.mu.Unlock()

	c.changed()
	return id, nil
}

func (c *Collection) Set(ctx context.Context, id string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	if c.writeErr != nil {
		err := c.writeErr
		c.mu.Unlock()
		return err
	}
	rec, ok := c.docs[id]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("document %s: %w", id, item.ErrItemNotFound)
	}
	rec.fields = maps.Clone(fields)
	c.docs[id] = rec
	c.writes++
	c.mu.Unlock()

	c.changed()
	return nil
}

func (c *Collection) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	if c.writeErr != nil {
		err := c.writeErr
		c.mu.Unlock()
		return err
	}
	_, existed := c.docs[id]
	delete(c.docs, id)
	c.writes++
	c.mu.Unlock()

	if existed {
		c.changed()
	}
	return nil
}

// Watch opens a live query. Its first Next returns the current documents.
func (c *Collection) Watch(ctx context.Context) item.DocumentStream {
	s := &stream{
		c:       c,
		ctx:     ctx,
		changed: make(chan struct{}, 1),
		failed:  make(chan error, 1),
		stopped: make(chan struct{}),
	}

	c.mu.Lock()
	c.streams[s] = struct{}{}
	c.watches++
	c.mu.Unlock()

	return s
}

// Fail ends every open live query with err. Later Watch calls are unaffected.
func (c *Collection) Fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for s := range c.streams {
		select {
		case s.failed <- err:
		default:
		}
	}
}

// SetWriteError makes every following Add, Set and Delete fail with err.
// A nil err restores normal writes.
func (c *Collection) SetWriteError(err error) {
	c.mu.Lock()
	c.writeErr = err
	c.mu.Unlock()
}

// Watches returns how many live queries were opened.
func (c *Collection) Watches() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.watches
}

// OpenStreams returns how many live queries are currently open.
func (c *Collection) OpenStreams() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.streams)
}

// Writes returns how many successful writes reached the collection.
func (c *Collection) Writes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes
}

// Put stores raw fields under id without going through the codec,
// which lets callers seed malformed documents.
func (c *Collection) Put(id string, fields map[string]any) {
	c.mu.Lock()
	rec, ok := c.docs[id]
	if !ok {
		c.seq++
		rec.seq = c.seq
	}
	rec.fields = maps.Clone(fields)
	c.docs[id] = rec
	c.mu.Unlock()

	c.changed()
}

func (c *Collection) changed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for s := range c.streams {
		select {
		case s.changed <- struct{}{}:
		default:
		}
	}
}

// snapshot returns all documents ordered by createdAt descending.
// Documents without a native timestamp sort last; insertion order breaks ties.
func (c *Collection) snapshot() []item.Document {
	c.mu.Lock()
	type entry struct {
		doc item.Document
		at  time.Time
		seq uint64
	}
	entries := make([]entry, 0, len(c.docs))
	for id, rec := range c.docs {
		at, _ := rec.fields[item.FieldCreatedAt].(time.Time)
		entries = append(entries, entry{
			doc: item.Document{ID: id, Fields: maps.Clone(rec.fields)},
			at:  at,
			seq: rec.seq,
		})
	}
	c.mu.Unlock()

	slices.SortFunc(entries, func(a, b entry) int {
		if n := b.at.Compare(a.at); n != 0 {
			return n
		}
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		}
		return 0
	})

	docs := make([]item.Document, len(entries))
	for i, e := range entries {
		docs[i] = e.doc
	}
	return docs
}

func (c *Collection) unregister(s *stream) {
	c.mu.Lock()
	delete(c.streams, s)
	c.mu.Unlock()
}

type stream struct {
	c       *Collection
	ctx     context.Context
	changed chan struct{}
	failed  chan error
	stopped chan struct{}
	loaded  bool
	once    sync.Once
}

func (s *stream) Next() ([]item.Document, error) {
	if !s.loaded {
		s.loaded = true
		select {
		case err := <-s.failed:
			return nil, err
		default:
		}
		// The initial load already reflects any change signalled so far.
		select {
		case <-s.changed:
		default:
		}
		return s.c.snapshot(), nil
	}

	select {
	case <-s.changed:
		return s.c.snapshot(), nil
	case err := <-s.failed:
		return nil, err
	case <-s.stopped:
		return nil, ErrStreamStopped
	case <-s.ctx.Done():
		return nil, s.ctx.Err()
	}
}

func (s *stream) Stop() {
	s.once.Do(func() {
		close(s.stopped)
		s.c.unregister(s)
	})
}
