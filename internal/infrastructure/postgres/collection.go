package postgres

import (
	"context"

	"stockroom/internal/domain/item"
)

// Watcher opens live queries over a DocumentRepository.
type Watcher interface {
	Watch(ctx context.Context) item.DocumentStream
}

// Collection implements item.Collection: writes go to the repository and
// live queries come from the watcher.
type Collection struct {
	*DocumentRepository
	watcher Watcher
}

func NewCollection(repo *DocumentRepository, watcher Watcher) *Collection {
	return &Collection{DocumentRepository: repo, watcher: watcher}
}

func (c *Collection) Watch(ctx context.Context) item.DocumentStream {
	return c.watcher.Watch(ctx)
}
