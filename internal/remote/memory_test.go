package remote

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvDocs(t *testing.T, ch <-chan []Document) []Document {
	t.Helper()
	select {
	case docs, ok := <-ch:
		if !ok {
			t.Fatalf("listen channel closed unexpectedly")
		}
		return docs
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for snapshot")
		return nil
	}
}

func TestMemoryCollection_WriteAndFetch(t *testing.T) {
	col := NewMemoryStore().Collection("products")
	ctx := context.Background()

	require.NoError(t, col.Write(ctx, "p1", Document{"name": "Beans"}, false))
	require.NoError(t, col.Write(ctx, "p2", Document{"name": "Paper"}, false))

	docs, err := col.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "p1", DocID(docs[0]))

	ids, err := col.ListIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, ids)

	docs, err = col.FetchByIDs(ctx, []string{"p2", "missing"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Paper", docs[0]["name"])
}

func TestMemoryCollection_MergeWrite(t *testing.T) {
	col := NewMemoryStore().Collection("users/u1/orders")
	ctx := context.Background()

	require.NoError(t, col.Write(ctx, "o1", Document{"status": "assembling", "phone": "123"}, false))
	require.NoError(t, col.Write(ctx, "o1", Document{"status": "in_transit"}, true))

	docs, err := col.FetchByIDs(ctx, []string{"o1"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "in_transit", docs[0]["status"])
	assert.Equal(t, "123", docs[0]["phone"], "merge must keep untouched fields")

	// non-merge write replaces the whole document
	require.NoError(t, col.Write(ctx, "o1", Document{"status": "delivered"}, false))
	docs, err = col.FetchByIDs(ctx, []string{"o1"})
	require.NoError(t, err)
	_, ok := docs[0]["phone"]
	assert.False(t, ok)
}

func TestMemoryCollection_BatchWriteAtomic(t *testing.T) {
	col := NewMemoryStore().Collection("products")
	ctx := context.Background()

	err := col.BatchWrite(ctx, []WriteOp{
		{ID: "p1", Data: Document{"name": "ok"}},
		{ID: "", Data: Document{"name": "broken"}},
	})
	require.Error(t, err)
	assert.Equal(t, CodeInvalidArgument, CodeOf(err))

	// nothing from the failed batch is visible
	ids, err := col.ListIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestMemoryCollection_Listen(t *testing.T) {
	col := NewMemoryStore().Collection("products")
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := col.Listen(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, col.ListenerCount())

	// first delivery is the current (empty) snapshot
	assert.Empty(t, recvDocs(t, ch))

	require.NoError(t, col.Write(ctx, "p1", Document{"name": "Beans"}, false))
	docs := recvDocs(t, ch)
	require.Len(t, docs, 1)
	assert.Equal(t, "p1", DocID(docs[0]))

	cancel()
	for docs := range ch {
		_ = docs // drain whatever was in flight until the close
	}
	assert.Eventually(t, func() bool { return col.ListenerCount() == 0 },
		time.Second, 10*time.Millisecond)
}

func TestMemoryCollection_ListenConflatesSnapshots(t *testing.T) {
	col := NewMemoryStore().Collection("products")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := col.Listen(ctx)
	require.NoError(t, err)

	// three writes while the consumer is not reading; the initial snapshot and
	// the intermediate ones are conflated away
	require.NoError(t, col.Write(ctx, "p1", Document{"v": 1.0}, false))
	require.NoError(t, col.Write(ctx, "p1", Document{"v": 2.0}, false))
	require.NoError(t, col.Write(ctx, "p1", Document{"v": 3.0}, false))

	docs := recvDocs(t, ch)
	require.Len(t, docs, 1)
	assert.Equal(t, 3.0, docs[0]["v"])
}

func TestMemoryCollection_DeleteAbsentIsNoError(t *testing.T) {
	col := NewMemoryStore().Collection("products")
	ctx := context.Background()

	require.NoError(t, col.Delete(ctx, "ghost"))
	require.NoError(t, col.BatchDelete(ctx, []string{"a", "b"}))
}

func TestMemoryCollection_SeedDoesNotNotify(t *testing.T) {
	col := NewMemoryStore().Collection("products")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := col.Listen(ctx)
	require.NoError(t, err)
	assert.Empty(t, recvDocs(t, ch))

	col.Seed([]Document{{"id": "p1", "name": "Beans"}})
	select {
	case docs := <-ch:
		t.Fatalf("seed must not broadcast, got %v", docs)
	case <-time.After(50 * time.Millisecond):
	}

	docs, err := col.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
}

func TestMemoryStore_Paths(t *testing.T) {
	s := NewMemoryStore()
	s.Collection("products")
	s.Collection("brands")
	assert.Equal(t, []string{"brands", "products"}, s.Paths())

	// the Source adapter hands out the same underlying collection
	src := s.Source()
	ctx := context.Background()
	require.NoError(t, src.Collection("products").Write(ctx, "p1", Document{}, false))
	ids, err := s.Collection("products").ListIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, ids)
}
