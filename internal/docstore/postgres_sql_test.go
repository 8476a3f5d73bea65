package docstore

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLBuilder_Condition(t *testing.T) {
	tests := []struct {
		name     string
		prefix   []any
		filter   Filter
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "eq string",
			filter:   Where("status", OpEq, "delivered"),
			wantSQL:  "(jsonb_typeof(data -> $1::text) = jsonb_typeof($2::jsonb) AND data -> $1::text = $2::jsonb)",
			wantArgs: []any{"status", []byte(`"delivered"`)},
		},
		{
			name:     "eq bool",
			filter:   Where("isBilled", OpEq, false),
			wantSQL:  "(jsonb_typeof(data -> $1::text) = jsonb_typeof($2::jsonb) AND data -> $1::text = $2::jsonb)",
			wantArgs: []any{"isBilled", []byte(`false`)},
		},
		{
			name:     "lt number after collection and id",
			prefix:   []any{"notifications", "n1"},
			filter:   Where("expiresAt", OpLt, 1700000000000),
			wantSQL:  "(jsonb_typeof(data -> $3::text) = jsonb_typeof($4::jsonb) AND data -> $3::text < $4::jsonb)",
			wantArgs: []any{"notifications", "n1", "expiresAt", []byte(`1700000000000`)},
		},
		{
			name:     "gte string",
			filter:   Where("date", OpGte, "2025-03-01"),
			wantSQL:  "(jsonb_typeof(data -> $1::text) = jsonb_typeof($2::jsonb) AND data -> $1::text >= $2::jsonb)",
			wantArgs: []any{"date", []byte(`"2025-03-01"`)},
		},
		{
			name:     "in list",
			filter:   Where("status", OpIn, []string{"delivered", "absent"}),
			wantSQL:  "$2::jsonb @> jsonb_build_array(data -> $1::text)",
			wantArgs: []any{"status", []byte(`["delivered","absent"]`)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &sqlBuilder{args: tt.prefix}
			sql, err := b.condition(tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantArgs, b.args)
		})
	}
}

func TestSQLBuilder_ConditionRejectsUnencodable(t *testing.T) {
	b := &sqlBuilder{}
	_, err := b.condition(Where("x", OpEq, make(chan int)))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestQuerySQL(t *testing.T) {
	t.Run("expired page ordered by expiry", func(t *testing.T) {
		sql, args, err := querySQL(Query{
			Collection: "notifications",
			Filters:    []Filter{Where("expiresAt", OpLt, 100)},
			OrderBy:    "expiresAt",
			Limit:      400,
		})
		require.NoError(t, err)
		assert.Equal(t,
			"SELECT id, data FROM documents WHERE collection = $1 AND "+
				"(jsonb_typeof(data -> $2::text) = jsonb_typeof($3::jsonb) AND data -> $2::text < $3::jsonb)"+
				" ORDER BY data -> $4::text, id LIMIT $5",
			sql)
		assert.Equal(t, []any{"notifications", "expiresAt", []byte(`100`), "expiresAt", 400}, args)
	})

	t.Run("descending without limit", func(t *testing.T) {
		sql, args, err := querySQL(Query{Collection: "invoices", OrderBy: "createdAt", Desc: true})
		require.NoError(t, err)
		assert.Equal(t, "SELECT id, data FROM documents WHERE collection = $1 ORDER BY data -> $2::text DESC, id", sql)
		assert.Equal(t, []any{"invoices", "createdAt"}, args)
	})

	t.Run("unordered falls back to id", func(t *testing.T) {
		sql, args, err := querySQL(Query{Collection: "users"})
		require.NoError(t, err)
		assert.Equal(t, "SELECT id, data FROM documents WHERE collection = $1 ORDER BY id", sql)
		assert.Equal(t, []any{"users"}, args)
	})
}

func TestUpdateSQL(t *testing.T) {
	data := []byte(`{"isBilled":true}`)

	sql, args, err := updateSQL(UpdateOp("lessons", "l1", nil), data)
	require.NoError(t, err)
	assert.Equal(t,
		"UPDATE documents SET data = data || $3::jsonb, updated_at = now() WHERE collection = $1 AND id = $2",
		sql)
	assert.Equal(t, []any{"lessons", "l1", data}, args)

	sql, args, err = updateSQL(UpdateOp("lessons", "l1", nil,
		Where("isBilled", OpEq, false),
		Where("status", OpIn, []string{"delivered", "absent"}),
	), data)
	require.NoError(t, err)
	assert.Equal(t,
		"UPDATE documents SET data = data || $3::jsonb, updated_at = now() WHERE collection = $1 AND id = $2"+
			" AND (jsonb_typeof(data -> $4::text) = jsonb_typeof($5::jsonb) AND data -> $4::text = $5::jsonb)"+
			" AND $7::jsonb @> jsonb_build_array(data -> $6::text)",
		sql)
	assert.Equal(t, []any{
		"lessons", "l1", data,
		"isBilled", []byte(`false`),
		"status", []byte(`["delivered","absent"]`),
	}, args)
}

func TestDeleteSQL(t *testing.T) {
	sql, args, err := deleteSQL(DeleteOp("lessons", "l1"))
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM documents WHERE collection = $1 AND id = $2", sql)
	assert.Equal(t, []any{"lessons", "l1"}, args)

	sql, args, err = deleteSQL(DeleteOp("lessons", "l1", Where("isBilled", OpEq, false)))
	require.NoError(t, err)
	assert.Equal(t,
		"DELETE FROM documents WHERE collection = $1 AND id = $2"+
			" AND (jsonb_typeof(data -> $3::text) = jsonb_typeof($4::jsonb) AND data -> $3::text = $4::jsonb)",
		sql)
	assert.Equal(t, []any{"lessons", "l1", "isBilled", []byte(`false`)}, args)
}

func TestMapError(t *testing.T) {
	plain := errors.New("connection reset")

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"statement timeout", &pgconn.PgError{Code: "57014", Message: "canceling statement"}, context.DeadlineExceeded},
		{"too many connections", &pgconn.PgError{Code: "53300", Message: "too many connections"}, ErrQuota},
		{"disk full", &pgconn.PgError{Code: "53100", Message: "disk full"}, ErrQuota},
		{"unique violation", &pgconn.PgError{Code: "23505", Message: "duplicate key"}, ErrConflict},
		{"other pg error", &pgconn.PgError{Code: "42601", Message: "syntax error"}, nil},
		{"non pg error", plain, plain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.err)
			if tt.want == nil {
				assert.Same(t, tt.err, got)
				return
			}
			assert.ErrorIs(t, got, tt.want)
		})
	}
}
