package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	_ "modernc.org/sqlite"

	"shopsync/internal/remote"
)

func newTestPersistence(t *testing.T) *Persistence {
	t.Helper()
	dial := gormsqlite.Dialector{DriverName: "sqlite", DSN: "file:persist_" + t.Name() + "?mode=memory&cache=shared"}
	db, err := gorm.Open(dial, &gorm.Config{})
	require.NoError(t, err)
	p, err := NewPersistence(db)
	require.NoError(t, err)
	return p
}

func TestPersistence_ApplyAndSeed(t *testing.T) {
	p := newTestPersistence(t)

	require.NoError(t, p.Apply("products", []remote.WriteOp{
		{ID: "p1", Data: remote.Document{"name": "Beans", "price": 12.5}},
		{ID: "p2", Data: remote.Document{"name": "Paper"}},
	}))
	require.NoError(t, p.Apply("users/u1/cart", []remote.WriteOp{
		{ID: "p1", Data: remote.Document{"quantity": 2.0}},
	}))

	// a fresh hub sees exactly what was persisted
	hub := remote.NewMemoryStore()
	require.NoError(t, p.SeedInto(hub))

	ctx := context.Background()
	ids, err := hub.Collection("products").ListIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, ids)

	docs, err := hub.Collection("users/u1/cart").FetchByIDs(ctx, []string{"p1"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, 2.0, docs[0]["quantity"])
}

func TestPersistence_ApplyDeleteAndMerge(t *testing.T) {
	p := newTestPersistence(t)

	require.NoError(t, p.Apply("orders", []remote.WriteOp{
		{ID: "o1", Data: remote.Document{"status": "assembling", "phone": "123"}},
	}))
	require.NoError(t, p.Apply("orders", []remote.WriteOp{
		{ID: "o1", Data: remote.Document{"status": "in_transit"}, Merge: true},
	}))

	hub := remote.NewMemoryStore()
	require.NoError(t, p.SeedInto(hub))
	docs, err := hub.Collection("orders").FetchByIDs(context.Background(), []string{"o1"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "in_transit", docs[0]["status"])
	assert.Equal(t, "123", docs[0]["phone"], "merge must keep existing fields")

	require.NoError(t, p.Apply("orders", []remote.WriteOp{{ID: "o1", Delete: true}}))
	hub = remote.NewMemoryStore()
	require.NoError(t, p.SeedInto(hub))
	ids, err := hub.Collection("orders").ListIDs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}
