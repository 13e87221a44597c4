package item_test

import (
	"context"
	"sync"

	"stockroom/internal/domain/item"
)

// MockCollection is a mock implementation of item.Collection
type MockCollection struct {
	AddFunc    func(ctx context.Context, fields map[string]any) (string, error)
	SetFunc    func(ctx context.Context, id string, fields map[string]any) error
	DeleteFunc func(ctx context.Context, id string) error
	WatchFunc  func(ctx context.Context) item.DocumentStream
}

func (m *MockCollection) Add(ctx context.Context, fields map[string]any) (string, error) {
	if m.AddFunc != nil {
		return m.AddFunc(ctx, fields)
	}
	return "", nil
}

func (m *MockCollection) Set(ctx context.Context, id string, fields map[string]any) error {
	if m.SetFunc != nil {
		return m.SetFunc(ctx, id, fields)
	}
	return nil
}

func (m *MockCollection) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func (m *MockCollection) Watch(ctx context.Context) item.DocumentStream {
	if m.WatchFunc != nil {
		return m.WatchFunc(ctx)
	}
	return &MockStream{ctx: ctx}
}

// MockStream replays Batches in order, then blocks until its context ends.
type MockStream struct {
	Batches [][]item.Document

	ctx     context.Context
	mu      sync.Mutex
	stopped bool
}

func (m *MockStream) Next() ([]item.Document, error) {
	m.mu.Lock()
	if len(m.Batches) > 0 {
		batch := m.Batches[0]
		m.Batches = m.Batches[1:]
		m.mu.Unlock()
		return batch, nil
	}
	m.mu.Unlock()

	<-m.ctx.Done()
	return nil, m.ctx.Err()
}

func (m *MockStream) Stop() {
	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()
}
