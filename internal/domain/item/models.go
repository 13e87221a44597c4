package item

import (
	"errors"
	"strings"
	"time"
)

// Domain errors
var (
	ErrAlreadyPersisted = errors.New("item already has an id")
	ErrItemNotFound     = errors.New("item not found")
	ErrNameRequired     = errors.New("item name is required")
	ErrNegativeQuantity = errors.New("quantity must not be negative")
	ErrNegativePrice    = errors.New("price must not be negative")
)

// Epoch is the createdAt assigned to documents whose timestamp is missing or malformed.
// It sorts such records to the oldest position.
var Epoch = time.Unix(0, 0).UTC()

// Item represents one inventory record.
// ID is empty until the store has persisted the record.
type Item struct {
	ID        string    `json:"id,omitempty"`
	Name      string    `json:"name"`
	Quantity  int       `json:"quantity"`
	Price     float64   `json:"price"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"createdAt"`
}

// IsPersisted reports whether the item was obtained from (or written to) the store.
func (i Item) IsPersisted() bool {
	return i.ID != ""
}

// CreateParams contains the user-editable fields of an item
type CreateParams struct {
	Name     string
	Quantity int
	Price    float64
	Category string
}

// Validate validates the create parameters
func (p CreateParams) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrNameRequired
	}
	if p.Quantity < 0 {
		return ErrNegativeQuantity
	}
	if p.Price < 0 {
		return ErrNegativePrice
	}
	return nil
}

// NewItem builds an unpersisted item stamped with createdAt.
func (p CreateParams) NewItem(createdAt time.Time) Item {
	return Item{
		Name:      strings.TrimSpace(p.Name),
		Quantity:  p.Quantity,
		Price:     p.Price,
		Category:  strings.TrimSpace(p.Category),
		CreatedAt: createdAt.UTC(),
	}
}

// Apply overwrites the editable fields of an existing item, keeping its ID and CreatedAt.
func (p CreateParams) Apply(existing Item) Item {
	existing.Name = strings.TrimSpace(p.Name)
	existing.Quantity = p.Quantity
	existing.Price = p.Price
	existing.Category = strings.TrimSpace(p.Category)
	return existing
}

// FindByID returns the item with the given id from a snapshot.
func FindByID(items []Item, id string) (Item, bool) {
	for _, it := range items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}
