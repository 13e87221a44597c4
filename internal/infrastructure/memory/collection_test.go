package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockroom/internal/domain/item"
)

func docIDs(docs []item.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}

func TestCollection_AddAssignsUniqueIDs(t *testing.T) {
	c := NewCollection()
	ctx := context.Background()

	a, err := c.Add(ctx, map[string]any{item.FieldName: "A"})
	require.NoError(t, err)
	b, err := c.Add(ctx, map[string]any{item.FieldName: "B"})
	require.NoError(t, err)

	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, c.Writes())
}

func TestCollection_AddCopiesFields(t *testing.T) {
	c := NewCollection()
	fields := map[string]any{item.FieldName: "Before"}

	_, err := c.Add(context.Background(), fields)
	require.NoError(t, err)
	fields[item.FieldName] = "After"

	docs := c.snapshot()
	require.Len(t, docs, 1)
	assert.Equal(t, "Before", docs[0].Fields[item.FieldName])
}

func TestCollection_SnapshotOrder(t *testing.T) {
	c := NewCollection()
	day := func(d int) time.Time { return time.Date(2024, 6, d, 0, 0, 0, 0, time.UTC) }

	c.Put("first-untimed", map[string]any{item.FieldCreatedAt: "garbage"})
	c.Put("old", map[string]any{item.FieldCreatedAt: day(1)})
	c.Put("tie-a", map[string]any{item.FieldCreatedAt: day(5)})
	c.Put("tie-b", map[string]any{item.FieldCreatedAt: day(5)})
	c.Put("second-untimed", map[string]any{})
	c.Put("newest", map[string]any{item.FieldCreatedAt: day(9)})

	assert.Equal(t,
		[]string{"newest", "tie-a", "tie-b", "old", "first-untimed", "second-untimed"},
		docIDs(c.snapshot()))
}

func TestCollection_SetOverwritesAndKeepsPosition(t *testing.T) {
	c := NewCollection()
	ctx := context.Background()
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	c.Put("a", map[string]any{item.FieldName: "A", item.FieldCreatedAt: at})
	c.Put("b", map[string]any{item.FieldName: "B", item.FieldCreatedAt: at})
	require.NoError(t, c.Set(ctx, "a", map[string]any{item.FieldName: "A2", item.FieldCreatedAt: at}))

	docs := c.snapshot()
	assert.Equal(t, []string{"a", "b"}, docIDs(docs))
	assert.Equal(t, "A2", docs[0].Fields[item.FieldName])
	assert.Equal(t, 1, c.Writes())
}

func TestCollection_SetAfterDeleteDoesNotRecreate(t *testing.T) {
	c := NewCollection()
	ctx := context.Background()

	id, err := c.Add(ctx, map[string]any{item.FieldName: "A"})
	require.NoError(t, err)
	require.NoError(t, c.Delete(ctx, id))

	err = c.Set(ctx, id, map[string]any{item.FieldName: "A2"})

	assert.ErrorIs(t, err, item.ErrItemNotFound)
	assert.Empty(t, c.snapshot())
	assert.Equal(t, 2, c.Writes())
}

func TestCollection_DeleteMissingSucceeds(t *testing.T) {
	c := NewCollection()
	assert.NoError(t, c.Delete(context.Background(), "nope"))
}

func TestCollection_WriteError(t *testing.T) {
	c := NewCollection()
	ctx := context.Background()
	boom := errors.New("unavailable")
	c.SetWriteError(boom)

	_, err := c.Add(ctx, map[string]any{})
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, c.Set(ctx, "a", map[string]any{}), boom)
	assert.ErrorIs(t, c.Delete(ctx, "a"), boom)
	assert.Zero(t, c.Writes())

	c.SetWriteError(nil)
	_, err = c.Add(ctx, map[string]any{})
	assert.NoError(t, err)
}

func TestCollection_CancelledContextRejectsWrites(t *testing.T) {
	c := NewCollection()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Add(ctx, map[string]any{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStream_InitialLoadThenChanges(t *testing.T) {
	c := NewCollection()
	c.Put("seed", map[string]any{item.FieldName: "Seed"})

	s := c.Watch(context.Background())
	defer s.Stop()

	docs, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, []string{"seed"}, docIDs(docs))

	_, err = c.Add(context.Background(), map[string]any{item.FieldName: "New"})
	require.NoError(t, err)

	docs, err = s.Next()
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestStream_Fail(t *testing.T) {
	c := NewCollection()
	boom := errors.New("listen failed")

	s := c.Watch(context.Background())
	defer s.Stop()
	_, err := s.Next()
	require.NoError(t, err)

	c.Fail(boom)

	_, err = s.Next()
	assert.ErrorIs(t, err, boom)
}

func TestStream_StopAndContext(t *testing.T) {
	c := NewCollection()

	s := c.Watch(context.Background())
	_, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, 1, c.OpenStreams())

	s.Stop()
	s.Stop()
	_, err = s.Next()
	assert.ErrorIs(t, err, ErrStreamStopped)
	assert.Zero(t, c.OpenStreams())

	ctx, cancel := context.WithCancel(context.Background())
	s = c.Watch(ctx)
	defer s.Stop()
	_, err = s.Next()
	require.NoError(t, err)
	cancel()
	_, err = s.Next()
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, c.Watches())
}
