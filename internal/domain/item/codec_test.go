package item

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/timestamppb"
)

func TestFromWire_EmptyMapYieldsDefaults(t *testing.T) {
	got := FromWire("doc-1", map[string]any{})

	assert.Equal(t, Item{ID: "doc-1", CreatedAt: Epoch}, got)
	assert.True(t, got.CreatedAt.Equal(time.Unix(0, 0)))
}

func TestFromWire_NilMap(t *testing.T) {
	got := FromWire("doc-1", nil)
	assert.Equal(t, Item{ID: "doc-1", CreatedAt: Epoch}, got)
}

func TestFromWire_Quantity(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want int
	}{
		{"int", 7, 7},
		{"int64 from firestore", int64(12), 12},
		{"int32", int32(3), 3},
		{"uint8", uint8(9), 9},
		{"float truncates", 4.9, 4},
		{"negative float truncates toward zero", -2.7, -2},
		{"json number", json.Number("15"), 15},
		{"fractional json number truncates", json.Number("3.7"), 3},
		{"exponent json number", json.Number("1e2"), 100},
		{"malformed json number", json.Number("1..2"), 0},
		{"huge float saturates", 1e300, math.MaxInt},
		{"huge negative float saturates", -1e300, math.MinInt},
		{"huge json number saturates", json.Number("1e300"), math.MaxInt},
		{"uint64 above int range saturates", uint64(math.MaxUint64), math.MaxInt},
		{"numeric string", "42", 42},
		{"padded string", " 8 ", 8},
		{"decimal string is not an integer", "3.5", 0},
		{"garbage string", "abc", 0},
		{"bool", true, 0},
		{"nil", nil, 0},
		{"NaN", math.NaN(), 0},
		{"Inf", math.Inf(1), 0},
		{"slice", []any{1}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromWire("id", map[string]any{FieldQuantity: tt.in})
			assert.Equal(t, tt.want, got.Quantity)
		})
	}
}

func TestFromWire_Price(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want float64
	}{
		{"float64", 2.5, 2.5},
		{"float32", float32(1.5), 1.5},
		{"int", 3, 3},
		{"int64", int64(10), 10},
		{"json number", json.Number("9.99"), 9.99},
		{"numeric string", "19.95", 19.95},
		{"integer string", "4", 4},
		{"garbage string", "abc", 0},
		{"map", map[string]any{}, 0},
		{"nil", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromWire("id", map[string]any{FieldPrice: tt.in})
			assert.InDelta(t, tt.want, got.Price, 1e-9)
		})
	}
}

func TestFromWire_CreatedAt(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 30, 0, 123000000, time.UTC)
	local := at.In(time.FixedZone("UTC+2", 2*3600))

	tests := []struct {
		name string
		in   any
		want time.Time
	}{
		{"time", at, at},
		{"time in other zone", local, at},
		{"pointer", &at, at},
		{"nil pointer", (*time.Time)(nil), Epoch},
		{"protobuf timestamp", timestamppb.New(at), at},
		{"rfc3339 string", "2024-03-01T10:30:00.123Z", at},
		{"malformed string", "yesterday", Epoch},
		{"number", 1709288400, Epoch},
		{"missing", nil, Epoch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromWire("id", map[string]any{FieldCreatedAt: tt.in})
			assert.True(t, tt.want.Equal(got.CreatedAt), "got %v, want %v", got.CreatedAt, tt.want)
			assert.Equal(t, time.UTC, got.CreatedAt.Location())
		})
	}
}

func TestFromWire_TextFields(t *testing.T) {
	got := FromWire("id", map[string]any{
		FieldName:     "Bolts",
		FieldCategory: 17,
	})
	assert.Equal(t, "Bolts", got.Name)
	assert.Equal(t, "", got.Category)
}

func TestFromWire_IDComesFromDocumentKey(t *testing.T) {
	got := FromWire("doc-key", map[string]any{"id": "field-id", FieldName: "Nuts"})
	assert.Equal(t, "doc-key", got.ID)
}

func TestFromWire_NeverPanics(t *testing.T) {
	inputs := []map[string]any{
		nil,
		{},
		{FieldQuantity: "abc"},
		{FieldName: nil, FieldQuantity: struct{}{}, FieldPrice: []byte("1"), FieldCategory: 1.0, FieldCreatedAt: false},
		{FieldCreatedAt: (*timestamppb.Timestamp)(nil)},
	}
	for _, in := range inputs {
		require.NotPanics(t, func() { FromWire("id", in) })
	}
}

func TestToWire_OmitsID(t *testing.T) {
	it := Item{ID: "abc", Name: "Washer", Quantity: 3, Price: 0.25, Category: "Hardware", CreatedAt: time.Now()}

	fields := ToWire(it)

	assert.NotContains(t, fields, "id")
	assert.Len(t, fields, 5)
	assert.Equal(t, "Washer", fields[FieldName])
	assert.Equal(t, 3, fields[FieldQuantity])
	assert.Equal(t, 0.25, fields[FieldPrice])
	assert.Equal(t, "Hardware", fields[FieldCategory])
	assert.IsType(t, time.Time{}, fields[FieldCreatedAt])
}

func TestRoundTrip(t *testing.T) {
	items := []Item{
		{ID: "a", Name: "Hammer", Quantity: 2, Price: 12.99, Category: "Tools", CreatedAt: time.Date(2023, 5, 6, 7, 8, 9, 0, time.UTC)},
		{ID: "b", Name: "Glue", Quantity: 0, Price: 0, Category: "", CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 999, time.UTC)},
		{ID: "c", Name: "Paint", Quantity: 100, Price: 0.1 + 0.2, Category: "Supplies", CreatedAt: Epoch},
	}

	for _, it := range items {
		got := FromWire(it.ID, ToWire(it))
		assert.InDelta(t, it.Price, got.Price, 1e-9)
		got.Price = it.Price
		assert.Equal(t, it, got)
	}
}

func TestCreateParams_Validate(t *testing.T) {
	tests := []struct {
		name    string
		params  CreateParams
		wantErr error
	}{
		{"valid", CreateParams{Name: "Saw", Quantity: 1, Price: 9.5}, nil},
		{"blank name", CreateParams{Name: "   "}, ErrNameRequired},
		{"negative quantity", CreateParams{Name: "Saw", Quantity: -1}, ErrNegativeQuantity},
		{"negative price", CreateParams{Name: "Saw", Price: -0.01}, ErrNegativePrice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCreateParams_ApplyKeepsIdentity(t *testing.T) {
	created := time.Date(2022, 2, 2, 2, 2, 2, 0, time.UTC)
	existing := Item{ID: "x", Name: "Old", Quantity: 1, Price: 1, Category: "A", CreatedAt: created}

	got := CreateParams{Name: " New ", Quantity: 5, Price: 2.5, Category: "B"}.Apply(existing)

	assert.Equal(t, Item{ID: "x", Name: "New", Quantity: 5, Price: 2.5, Category: "B", CreatedAt: created}, got)
}
