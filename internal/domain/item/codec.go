package item

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"google.golang.org/protobuf/types/known/timestamppb"
)

// Wire field names of an item document.
const (
	FieldName      = "name"
	FieldQuantity  = "quantity"
	FieldPrice     = "price"
	FieldCategory  = "category"
	FieldCreatedAt = "createdAt"
)

// FromWire decodes a document's field map into an Item.
// It never fails: missing or malformed fields fall back to zero values
// and createdAt falls back to Epoch. The id always comes from the document key.
func FromWire(id string, fields map[string]any) Item {
	return Item{
		ID:        id,
		Name:      stringField(fields[FieldName]),
		Quantity:  intField(fields[FieldQuantity]),
		Price:     floatField(fields[FieldPrice]),
		Category:  stringField(fields[FieldCategory]),
		CreatedAt: timeField(fields[FieldCreatedAt]),
	}
}

// ToWire encodes an item into the document field map. The id is never a field.
func ToWire(it Item) map[string]any {
	return map[string]any{
		FieldName:      it.Name,
		FieldQuantity:  it.Quantity,
		FieldPrice:     it.Price,
		FieldCategory:  it.Category,
		FieldCreatedAt: it.CreatedAt.UTC(),
	}
}

func stringField(v any) string {
	s, _ := v.(string)
	return s
}

func intField(v any) int {
	if f, ok := number(v); ok {
		return truncate(f)
	}
	switch x := v.(type) {
	case int64:
		return int(x)
	case uint64:
		if x > math.MaxInt {
			return math.MaxInt
		}
		return int(x)
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return int(n)
		}
		if f, err := x.Float64(); err == nil {
			return truncate(f)
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(x)); err == nil {
			return n
		}
	}
	return 0
}

// truncate converts f toward zero, saturating at the int range.
func truncate(f float64) int {
	switch {
	case math.IsNaN(f) || math.IsInf(f, 0):
		return 0
	case f >= math.MaxInt:
		return math.MaxInt
	case f <= math.MinInt:
		return math.MinInt
	}
	return int(f)
}

func floatField(v any) float64 {
	if f, ok := number(v); ok {
		return f
	}
	switch x := v.(type) {
	case int64:
		return float64(x)
	case uint64:
		return float64(x)
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
			return f
		}
	}
	return 0
}

// number widens the native numeric kinds that fit a float64 exactly enough for coercion.
// int64 and uint64 are handled by callers so large integers keep their precision.
func number(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

func timeField(v any) time.Time {
	switch x := v.(type) {
	case time.Time:
		return x.UTC()
	case *time.Time:
		if x != nil {
			return x.UTC()
		}
	case *timestamppb.Timestamp:
		if x != nil && x.IsValid() {
			return x.AsTime().UTC()
		}
	case interface{ AsTime() time.Time }:
		return x.AsTime().UTC()
	case string:
		if t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(x)); err == nil {
			return t.UTC()
		}
	}
	return Epoch
}
