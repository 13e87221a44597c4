package item

import "context"

// Document is one persisted record of the remote collection.
type Document struct {
	ID     string
	Fields map[string]any
}

// DocumentStream is a live query over the collection.
// Next blocks until the store reports a change and returns the complete
// current result set ordered by createdAt descending. The first call
// returns the initial load.
type DocumentStream interface {
	Next() ([]Document, error)
	Stop()
}

// Collection defines the remote document collection the sync service writes to and watches.
// It is implemented in the infrastructure layer (Firestore, PostgreSQL, memory).
type Collection interface {
	// Add appends a new document and returns the identifier assigned by the store
	Add(ctx context.Context, fields map[string]any) (string, error)

	// Set overwrites the whole document stored under id. It never creates
	// a document: a missing id returns ErrItemNotFound.
	Set(ctx context.Context, id string, fields map[string]any) error

	// Delete removes the document; deleting a missing id succeeds
	Delete(ctx context.Context, id string) error

	// Watch opens a live query ordered by createdAt descending.
	// The stream ends when ctx is cancelled or Stop is called.
	Watch(ctx context.Context) DocumentStream
}
