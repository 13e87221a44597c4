// Package firestore adapts a Cloud Firestore collection to item.Collection.
package firestore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"stockroom/internal/domain/item"
)

// ErrStreamClosed is returned by Next once the live query was stopped or its
// context ended.
var ErrStreamClosed = errors.New("firestore live query closed")

// Collection implements item.Collection on one Firestore collection
type Collection struct {
	client *firestore.Client
	ref    *firestore.CollectionRef
}

// NewCollection returns the collection called name.
func NewCollection(client *firestore.Client, name string) *Collection {
	return &Collection{client: client, ref: client.Collection(name)}
}

func (c *Collection) Add(ctx context.Context, fields map[string]any) (string, error) {
	doc, _, err := c.ref.Add(ctx, fields)
	if err != nil {
		return "", fmt.Errorf("failed to add document: %w", err)
	}
	return doc.ID, nil
}

// Set replaces the document inside a transaction so a concurrent delete is
// not undone.
func (c *Collection) Set(ctx context.Context, id string, fields map[string]any) error {
	doc := c.ref.Doc(id)
	err := c.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(doc); err != nil {
			if status.Code(err) == codes.NotFound {
				return item.ErrItemNotFound
			}
			return err
		}
		return tx.Set(doc, fields)
	})
	if errors.Is(err, item.ErrItemNotFound) {
		return fmt.Errorf("document %s: %w", id, item.ErrItemNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to set document %s: %w", id, err)
	}
	return nil
}

// Delete removes the document. Firestore treats deleting a missing document as success.
func (c *Collection) Delete(ctx context.Context, id string) error {
	if _, err := c.ref.Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", id, err)
	}
	return nil
}

// Watch opens a snapshot listener ordered by createdAt descending.
func (c *Collection) Watch(ctx context.Context) item.DocumentStream {
	q := c.ref.OrderBy(item.FieldCreatedAt, firestore.Desc)
	return &stream{it: q.Snapshots(ctx)}
}

type stream struct {
	it *firestore.QuerySnapshotIterator
}

func (s *stream) Next() ([]item.Document, error) {
	snap, err := s.it.Next()
	if err != nil {
		if isClosed(err) {
			return nil, ErrStreamClosed
		}
		return nil, fmt.Errorf("firestore live query failed: %w", err)
	}

	docs, err := snap.Documents.GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read query snapshot: %w", err)
	}

	out := make([]item.Document, 0, len(docs))
	for _, d := range docs {
		out = append(out, item.Document{ID: d.Ref.ID, Fields: d.Data()})
	}
	return out, nil
}

func (s *stream) Stop() {
	s.it.Stop()
}

func isClosed(err error) bool {
	if errors.Is(err, iterator.Done) || errors.Is(err, context.Canceled) {
		return true
	}
	return status.Code(err) == codes.Canceled
}
