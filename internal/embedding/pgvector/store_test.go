package pgvector

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/matchai/internal/database"
	"github.com/spigell/matchai/internal/embedding"
	"github.com/spigell/matchai/internal/failure"
)

func openTestStore(t *testing.T, dim int) (*Store, func()) {
	t.Helper()

	dsn := os.Getenv("MATCHAI_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("MATCHAI_TEST_DATABASE_URL is not set")
	}

	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{DSN: dsn}, nil)
	require.NoError(t, err)

	table := fmt.Sprintf("test_embeddings_%d", time.Now().UnixNano())
	store, err := New(ctx, db, table, dim)
	require.NoError(t, err)

	return store, func() { db.Exec("DROP TABLE IF EXISTS " + table) }
}

func TestStoreRoundTrip(t *testing.T) {
	store, cleanup := openTestStore(t, 3)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, []embedding.Record{
		{ID: "b", Vector: []float32{1, 0, 0}, Metadata: embedding.Metadata{"title": "B"}},
		{ID: "a", Vector: []float32{1, 0, 0}},
		{ID: "c", Vector: []float32{0, 1, 0}},
	}))
	require.NoError(t, store.Upsert(ctx, []embedding.Record{{ID: "c", Vector: []float32{0, 0, 1}}}))

	ids, err := store.ExistingIDs(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 3)

	found, err := store.Fetch(ctx, []string{"c", "missing"})
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 1}, found["c"])
	assert.NotContains(t, found, "missing")

	matches, err := store.QuerySimilar(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "a", matches[0].ID)
	assert.Equal(t, "b", matches[1].ID)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-6)
}

func TestStoreRejectsDimensionChange(t *testing.T) {
	store, cleanup := openTestStore(t, 3)
	defer cleanup()

	_, err := New(context.Background(), store.db, store.table, 4)
	require.Error(t, err)
	assert.True(t, failure.IsConfiguration(err))
}

func TestNewRejectsBadTableName(t *testing.T) {
	_, err := New(context.Background(), nil, "jobs; drop table x", 3)
	require.Error(t, err)
	assert.True(t, failure.IsConfiguration(err))
}
