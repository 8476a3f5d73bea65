package docstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, s *MemoryStore, collection string, docs ...Document) []string {
	t.Helper()
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		id, err := s.Create(context.Background(), collection, d)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func TestMemoryStore_QueryFilters(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seed(t, s, "lessons",
		Document{"date": "2025-01-06", "status": "delivered", "isBilled": false, "n": 1},
		Document{"date": "2025-01-13", "status": "scheduled", "isBilled": false, "n": 2},
		Document{"date": "2025-01-20", "status": "absent", "isBilled": true, "n": 3},
	)

	tests := []struct {
		name    string
		filters []Filter
		want    int
	}{
		{"eq string", []Filter{Where("status", OpEq, "delivered")}, 1},
		{"eq bool", []Filter{Where("isBilled", OpEq, false)}, 2},
		{"in", []Filter{Where("status", OpIn, []string{"delivered", "absent"})}, 2},
		{"lte number", []Filter{Where("n", OpLte, 2)}, 2},
		{"gt string", []Filter{Where("date", OpGt, "2025-01-06")}, 2},
		{"combined", []Filter{Where("isBilled", OpEq, false), Where("status", OpIn, []string{"delivered", "absent"})}, 1},
		{"type mismatch", []Filter{Where("n", OpLt, "9")}, 0},
		{"missing field", []Filter{Where("nope", OpEq, 1)}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := s.Query(ctx, Query{Collection: "lessons", Filters: tt.filters})
			require.NoError(t, err)
			assert.Len(t, docs, tt.want)
		})
	}
}

func TestMemoryStore_OrderAndLimit(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seed(t, s, "n", Document{"v": 3}, Document{"v": 1}, Document{"v": 2})

	docs, err := s.Query(ctx, Query{Collection: "n", OrderBy: "v", Limit: 2})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, float64(1), docs[0]["v"])
	assert.Equal(t, float64(2), docs[1]["v"])

	docs, err = s.Query(ctx, Query{Collection: "n", OrderBy: "v", Desc: true})
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, float64(3), docs[0]["v"])
}

func TestMemoryStore_GetUpdateDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	ids := seed(t, s, "c", Document{"a": 1, "b": "x"})

	require.NoError(t, s.Update(ctx, "c", ids[0], Document{"b": "y"}))
	doc, err := s.Get(ctx, "c", ids[0])
	require.NoError(t, err)
	assert.Equal(t, ids[0], doc.ID())
	assert.Equal(t, float64(1), doc["a"])
	assert.Equal(t, "y", doc["b"])

	err = s.Update(ctx, "c", "missing", Document{"b": "z"})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Delete(ctx, "c", ids[0]))
	require.NoError(t, s.Delete(ctx, "c", ids[0]))
	_, err = s.Get(ctx, "c", ids[0])
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ReturnedDocumentsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	ids := seed(t, s, "c", Document{"a": "orig"})

	doc, err := s.Get(ctx, "c", ids[0])
	require.NoError(t, err)
	doc["a"] = "mutated"

	again, err := s.Get(ctx, "c", ids[0])
	require.NoError(t, err)
	assert.Equal(t, "orig", again["a"])
}

func TestMemoryStore_BatchIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	ids := seed(t, s, "lessons", Document{"isBilled": false}, Document{"isBilled": true})

	err := s.Batch(ctx, []Op{
		CreateOp("invoices", "inv-1", Document{"total": "10"}),
		UpdateOp("lessons", ids[0], Document{"isBilled": true}, Where("isBilled", OpEq, false)),
		UpdateOp("lessons", ids[1], Document{"isBilled": true}, Where("isBilled", OpEq, false)),
	})
	require.ErrorIs(t, err, ErrConflict)

	assert.Equal(t, 0, s.Len("invoices"))
	doc, err := s.Get(ctx, "lessons", ids[0])
	require.NoError(t, err)
	assert.Equal(t, false, doc["isBilled"])
}

func TestMemoryStore_BatchCommits(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	ids := seed(t, s, "notifications", Document{"x": 1}, Document{"x": 2})

	err := s.Batch(ctx, []Op{
		DeleteOp("notifications", ids[0]),
		DeleteOp("notifications", ids[1]),
		CreateOp("invoices", "inv-1", Document{"total": "10"}),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len("notifications"))
	assert.Equal(t, 1, s.Len("invoices"))

	err = s.Batch(ctx, []Op{CreateOp("invoices", "inv-1", Document{})})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestMemoryStore_InvalidRequests(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Query(ctx, Query{})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = s.Query(ctx, Query{Collection: "c", Filters: []Filter{Where("a", "~", 1)}})
	assert.ErrorIs(t, err, ErrInvalid)

	err = s.Batch(ctx, []Op{{Kind: OpUpdate, Collection: "c"}})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemoryStore().Query(ctx, Query{Collection: "c"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEncodeDecode(t *testing.T) {
	type item struct {
		ID    string `json:"id,omitempty"`
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	doc, err := Encode(item{ID: "x", Name: "a", Count: 2})
	require.NoError(t, err)
	_, hasID := doc[IDField]
	assert.False(t, hasID)
	assert.Equal(t, "a", doc["name"])

	doc[IDField] = "y"
	var out item
	require.NoError(t, Decode(doc, &out))
	assert.Equal(t, item{ID: "y", Name: "a", Count: 2}, out)
}
