package postgres

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"stockroom/internal/domain/item"
)

// DocumentRepository stores the documents of one collection as JSONB rows.
type DocumentRepository struct {
	db         *DB
	collection string
}

func NewDocumentRepository(db *DB, collection string) *DocumentRepository {
	return &DocumentRepository{db: db, collection: collection}
}

// Collection returns the collection name the repository is bound to.
func (r *DocumentRepository) Collection() string {
	return r.collection
}

func (r *DocumentRepository) Add(ctx context.Context, fields map[string]any) (string, error) {
	body, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("failed to encode document: %w", err)
	}

	query := `
		INSERT INTO item_documents (collection, fields, created_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	var id string
	err = r.db.QueryRowContext(ctx, query, r.collection, body, sortKey(fields)).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to add document: %w", err)
	}
	return id, nil
}

func (r *DocumentRepository) Set(ctx context.Context, id string, fields map[string]any) error {
	body, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode document %s: %w", id, err)
	}

	query := `
		UPDATE item_documents
		SET fields = $3,
		    created_at = $4,
		    updated_at = CURRENT_TIMESTAMP
		WHERE collection = $1 AND id = $2
	`

	result, err := r.db.ExecContext(ctx, query, r.collection, id, body, sortKey(fields))
	if err != nil {
		return fmt.Errorf("failed to set document %s: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to set document %s: %w", id, err)
	}
	if rows == 0 {
		return fmt.Errorf("document %s: %w", id, item.ErrItemNotFound)
	}
	return nil
}

// Delete removes the document. Deleting a missing document succeeds.
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM item_documents WHERE collection = $1 AND id = $2`

	if _, err := r.db.ExecContext(ctx, query, r.collection, id); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", id, err)
	}
	return nil
}

// List returns every document ordered by createdAt descending.
// Documents without a timestamp sort last, in insertion order.
func (r *DocumentRepository) List(ctx context.Context) ([]item.Document, error) {
	query := `
		SELECT id, fields
		FROM item_documents
		WHERE collection = $1
		ORDER BY created_at DESC NULLS LAST, seq ASC
	`

	rows, err := r.db.QueryContext(ctx, query, r.collection)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []item.Document
	for rows.Next() {
		var (
			id   string
			body []byte
		)
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, item.Document{ID: id, Fields: decodeFields(body)})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}

	return docs, nil
}

// decodeFields keeps numbers as json.Number. A body that is not a JSON
// object decodes to an empty map and the codec applies its defaults.
func decodeFields(body []byte) map[string]any {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	fields := map[string]any{}
	if err := dec.Decode(&fields); err != nil || fields == nil {
		return map[string]any{}
	}
	return fields
}

func sortKey(fields map[string]any) *time.Time {
	if t, ok := fields[item.FieldCreatedAt].(time.Time); ok {
		t = t.UTC()
		return &t
	}
	return nil
}
