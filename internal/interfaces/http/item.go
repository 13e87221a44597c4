package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"stockroom/internal/domain/item"
	"stockroom/internal/logging"
)

const lookupTimeout = 10 * time.Second

// ItemService is the part of item.Service the handlers use.
type ItemService interface {
	Subscribe(ctx context.Context) *item.Subscription
	Current(ctx context.Context) ([]item.Item, error)
	Create(ctx context.Context, it item.Item) (string, error)
	Update(ctx context.Context, it item.Item) error
	Delete(ctx context.Context, id string) error
}

type ItemHandler struct {
	svc    ItemService
	logger logging.Logger
	now    func() time.Time
	stream streamConfig
}

func NewItemHandler(svc ItemService, logger logging.Logger, allowedHosts []string) *ItemHandler {
	return &ItemHandler{
		svc:    svc,
		logger: logger,
		now:    time.Now,
		stream: newStreamConfig(allowedHosts),
	}
}

// Request/Response DTOs

type ItemRequest struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
	Category string  `json:"category"`
}

func (r ItemRequest) params() item.CreateParams {
	return item.CreateParams{
		Name:     r.Name,
		Quantity: r.Quantity,
		Price:    r.Price,
		Category: r.Category,
	}
}

type ItemResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Quantity  int       `json:"quantity"`
	Price     float64   `json:"price"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"createdAt"`
}

func toItemResponse(it item.Item) ItemResponse {
	return ItemResponse{
		ID:        it.ID,
		Name:      it.Name,
		Quantity:  it.Quantity,
		Price:     it.Price,
		Category:  it.Category,
		CreatedAt: it.CreatedAt,
	}
}

func toItemResponses(items []item.Item) []ItemResponse {
	out := make([]ItemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, toItemResponse(it))
	}
	return out
}

// HandleItems routes requests to the appropriate handler based on method
func (h *ItemHandler) HandleItems(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleListItems(w, r)
	case http.MethodPost:
		h.handleCreateItem(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleItemByID routes requests for a specific item
func (h *ItemHandler) HandleItemByID(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPut:
		h.handleUpdateItem(w, r)
	case http.MethodDelete:
		h.handleDeleteItem(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *ItemHandler) handleListItems(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), lookupTimeout)
	defer cancel()

	items, err := h.svc.Current(ctx)
	if err != nil {
		h.logger.Error(r.Context(), "failed to list items", "error", err)
		http.Error(w, "Failed to list items", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, toItemResponses(items))
}

func (h *ItemHandler) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var req ItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	params := req.params()
	if err := params.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	it := params.NewItem(h.now())
	id, err := h.svc.Create(r.Context(), it)
	if err != nil {
		h.logger.Error(r.Context(), "failed to create item", "error", err)
		http.Error(w, "Failed to create item", http.StatusInternalServerError)
		return
	}
	it.ID = id

	writeJSON(w, http.StatusCreated, toItemResponse(it))
}

// handleUpdateItem overwrites the editable fields. createdAt is taken from the
// current snapshot so the item keeps its position.
func (h *ItemHandler) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "Item ID is required", http.StatusBadRequest)
		return
	}

	var req ItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	params := req.params()
	if err := params.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	existing, err := h.lookup(r.Context(), id)
	if err != nil {
		if errors.Is(err, item.ErrItemNotFound) {
			http.Error(w, "Item not found", http.StatusNotFound)
			return
		}
		h.logger.Error(r.Context(), "failed to load item", "id", id, "error", err)
		http.Error(w, "Failed to update item", http.StatusInternalServerError)
		return
	}

	updated := params.Apply(existing)
	if err := h.svc.Update(r.Context(), updated); err != nil {
		if errors.Is(err, item.ErrItemNotFound) {
			http.Error(w, "Item not found", http.StatusNotFound)
			return
		}
		h.logger.Error(r.Context(), "failed to update item", "id", id, "error", err)
		http.Error(w, "Failed to update item", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, toItemResponse(updated))
}

func (h *ItemHandler) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "Item ID is required", http.StatusBadRequest)
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.logger.Error(r.Context(), "failed to delete item", "id", id, "error", err)
		http.Error(w, "Failed to delete item", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ItemHandler) lookup(ctx context.Context, id string) (item.Item, error) {
	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	items, err := h.svc.Current(ctx)
	if err != nil {
		return item.Item{}, err
	}
	it, ok := item.FindByID(items, id)
	if !ok {
		return item.Item{}, item.ErrItemNotFound
	}
	return it, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
