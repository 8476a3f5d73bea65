package docstore_test

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Freeeeeet/timetutor/internal/app"
	"github.com/Freeeeeet/timetutor/internal/docstore"
	"github.com/Freeeeeet/timetutor/migrations"
)

// newPostgresStore подключается к DB_DSN, применяет миграции и возвращает
// хранилище и уникальный для теста префикс коллекций
func newPostgresStore(t *testing.T) (*docstore.PostgresStore, string) {
	t.Helper()
	if os.Getenv("INTEGRATION_TESTS") != "1" {
		t.Skip("set INTEGRATION_TESTS=1 to run")
	}
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		t.Skip("set DB_DSN to run")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	migrator, err := app.NewMigrator(pool, migrations.FS, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, migrator.Run(ctx))
	require.NoError(t, migrator.Close())

	prefix := "it_" + uuid.NewString()[:8] + "_"
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM documents WHERE collection LIKE $1`, prefix+"%")
	})
	return docstore.NewPostgresStore(pool), prefix
}

func TestPostgresStore_OverlappingInvoiceCommitsOnce(t *testing.T) {
	store, prefix := newPostgresStore(t)
	ctx := context.Background()
	lessons, invoices := prefix+"lessons", prefix+"invoices"

	ids := make([]string, 3)
	for i := range ids {
		id, err := store.Create(ctx, lessons, docstore.Document{"status": "delivered", "isBilled": false, "invoiceId": nil})
		require.NoError(t, err)
		ids[i] = id
	}

	bill := func(invoiceID string, lessonIDs ...string) error {
		ops := []docstore.Op{docstore.CreateOp(invoices, invoiceID, docstore.Document{"lessonIds": lessonIDs})}
		for _, id := range lessonIDs {
			ops = append(ops, docstore.UpdateOp(lessons, id,
				docstore.Document{"isBilled": true, "invoiceId": invoiceID},
				docstore.Where("isBilled", docstore.OpEq, false),
				docstore.Where("status", docstore.OpIn, []string{"delivered", "absent"}),
			))
		}
		return store.Batch(ctx, ops)
	}

	require.NoError(t, bill("inv-1", ids[0], ids[1]))
	assert.ErrorIs(t, bill("inv-2", ids[1], ids[2]), docstore.ErrConflict)

	_, err := store.Get(ctx, invoices, "inv-2")
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	doc, err := store.Get(ctx, lessons, ids[2])
	require.NoError(t, err)
	assert.Equal(t, false, doc["isBilled"])
	assert.Nil(t, doc["invoiceId"])

	doc, err = store.Get(ctx, lessons, ids[1])
	require.NoError(t, err)
	assert.Equal(t, "inv-1", doc["invoiceId"])
}

func TestPostgresStore_ConditionalWrites(t *testing.T) {
	store, prefix := newPostgresStore(t)
	ctx := context.Background()
	lessons := prefix + "lessons"
	notBilled := docstore.Where("isBilled", docstore.OpEq, false)

	id, err := store.Create(ctx, lessons, docstore.Document{"status": "scheduled", "isBilled": true})
	require.NoError(t, err)

	err = store.Batch(ctx, []docstore.Op{docstore.UpdateOp(lessons, id, docstore.Document{"status": "absent"}, notBilled)})
	assert.ErrorIs(t, err, docstore.ErrConflict)

	err = store.Batch(ctx, []docstore.Op{docstore.UpdateOp(lessons, "missing", docstore.Document{"status": "absent"}, notBilled)})
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	err = store.Batch(ctx, []docstore.Op{docstore.DeleteOp(lessons, id, notBilled)})
	assert.ErrorIs(t, err, docstore.ErrConflict)
	_, err = store.Get(ctx, lessons, id)
	require.NoError(t, err)

	require.NoError(t, store.Batch(ctx, []docstore.Op{docstore.DeleteOp(lessons, "missing", notBilled)}))

	require.NoError(t, store.Update(ctx, lessons, id, docstore.Document{"isBilled": false}))
	require.NoError(t, store.Batch(ctx, []docstore.Op{docstore.DeleteOp(lessons, id, notBilled)}))
	_, err = store.Get(ctx, lessons, id)
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestPostgresStore_ExpiredPagesInExpiryOrder(t *testing.T) {
	store, prefix := newPostgresStore(t)
	ctx := context.Background()
	notifications := prefix + "notifications"

	for _, exp := range []int64{300, 100, 900, 200, 1500} {
		_, err := store.Create(ctx, notifications, docstore.Document{"expiresAt": exp})
		require.NoError(t, err)
	}

	var seen []float64
	for {
		docs, err := store.Query(ctx, docstore.Query{
			Collection: notifications,
			Filters:    []docstore.Filter{docstore.Where("expiresAt", docstore.OpLt, 1000)},
			OrderBy:    "expiresAt",
			Limit:      2,
		})
		require.NoError(t, err)
		if len(docs) == 0 {
			break
		}
		for _, d := range docs {
			seen = append(seen, d["expiresAt"].(float64))
			require.NoError(t, store.Delete(ctx, notifications, d.ID()))
		}
	}
	assert.Equal(t, []float64{100, 200, 300, 900}, seen)

	left, err := store.Query(ctx, docstore.Query{Collection: notifications})
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, float64(1500), left[0]["expiresAt"])
}
