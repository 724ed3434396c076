package repo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopsync/internal/model"
	"shopsync/internal/remote"
	"shopsync/internal/store"
)

func newCartFixture(t *testing.T) (*CartRepository, *store.CartStore, *remote.MemoryCollection) {
	t.Helper()
	st := newTestStore(t)
	catalog := store.NewCatalogStore(st)
	seedCatalog(t, catalog)
	cart := store.NewCartStore(st)
	col := remote.NewMemoryStore().Collection("users/u1/cart")
	r := NewCartRepository("u1", cart, catalog, col, nil)
	t.Cleanup(r.Close)
	return r, cart, col
}

// waitCart polls until the cached cart converges to the expected per-product
// quantities. The realtime echo applies asynchronously, so post-command state
// is eventual, never immediate.
func waitCart(t *testing.T, cart *store.CartStore, want map[string]int) []model.CartLine {
	t.Helper()
	var got []model.CartLine
	require.Eventually(t, func() bool {
		var err error
		got, err = cart.Snapshot(context.Background(), "u1")
		if err != nil || len(got) != len(want) {
			return false
		}
		for _, l := range got {
			if want[l.ProductID] != l.Quantity {
				return false
			}
		}
		return true
	}, 2*time.Second, 10*time.Millisecond, "cart did not converge to %v", want)
	return got
}

func TestCartRepository_AddFreezesCatalogSnapshot(t *testing.T) {
	r, cart, col := newCartFixture(t)
	ctx := context.Background()

	require.NoError(t, r.Add(ctx, "p1", 2))

	got := waitCart(t, cart, map[string]int{"p1": 2})
	assert.Equal(t, "Espresso Beans", got[0].Title)
	assert.Equal(t, "Roastery", got[0].BrandName)
	assert.Equal(t, 12.50, got[0].Price)

	// the remote line carries the same snapshot
	docs, err := col.FetchByIDs(ctx, []string{"p1"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Espresso Beans", docs[0]["title"])
}

func TestCartRepository_AddAccumulates(t *testing.T) {
	r, cart, _ := newCartFixture(t)
	ctx := context.Background()

	require.NoError(t, r.Add(ctx, "p1", 2))
	require.NoError(t, r.Add(ctx, "p1", 3))
	waitCart(t, cart, map[string]int{"p1": 5})

	// decrement below zero clamps to zero and removes the line
	require.NoError(t, r.Add(ctx, "p1", -99))
	waitCart(t, cart, map[string]int{})
}

func TestCartRepository_AddUnknownProductFails(t *testing.T) {
	r, _, _ := newCartFixture(t)
	err := r.Add(context.Background(), "ghost", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not in catalog cache")
}

func TestCartRepository_SetQuantity(t *testing.T) {
	r, cart, col := newCartFixture(t)
	ctx := context.Background()

	require.NoError(t, r.SetQuantity(ctx, "p1", 4))
	waitCart(t, cart, map[string]int{"p1": 4})

	// zero deletes locally and remotely
	require.NoError(t, r.SetQuantity(ctx, "p1", 0))
	waitCart(t, cart, map[string]int{})
	ids, err := col.ListIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	// negative input clamps to zero: still no line
	require.NoError(t, r.SetQuantity(ctx, "p1", -3))
	waitCart(t, cart, map[string]int{})
}

func TestCartRepository_SetQuantityFromInputFloorsAtOne(t *testing.T) {
	r, cart, _ := newCartFixture(t)
	ctx := context.Background()

	// a typed zero on the detail screen still means one item
	require.NoError(t, r.SetQuantityFromInput(ctx, "p1", 0))
	waitCart(t, cart, map[string]int{"p1": 1})

	require.NoError(t, r.SetQuantityFromInput(ctx, "p1", -7))
	waitCart(t, cart, map[string]int{"p1": 1})
}

func TestCartRepository_RemoteFailureRollsBack(t *testing.T) {
	r, cart, col := newCartFixture(t)
	ctx := context.Background()

	require.NoError(t, r.Add(ctx, "p1", 2))
	waitCart(t, cart, map[string]int{"p1": 2})

	// remote rejects the next command; the optimistic bump must be undone
	failOp(col, "batch_write")
	err := r.Add(ctx, "p1", 1)
	require.Error(t, err)
	waitCart(t, cart, map[string]int{"p1": 2})

	// a failed first add leaves no line at all
	col.SetErrorHook(nil)
	require.NoError(t, r.Remove(ctx, "p1"))
	waitCart(t, cart, map[string]int{})
	failOp(col, "batch_write")
	err = r.Add(ctx, "p1", 1)
	require.Error(t, err)
	waitCart(t, cart, map[string]int{})
}

func TestCartRepository_RealtimeSnapshotWins(t *testing.T) {
	_, cart, col := newCartFixture(t)
	ctx := context.Background()

	line := model.CartLine{
		UserID: "u1", ProductID: "p9", Title: "Remote Item",
		Price: 3, Quantity: 7, UpdatedAt: testTS,
	}
	require.NoError(t, col.Write(ctx, "p9", line.Document(), false))
	waitCart(t, cart, map[string]int{"p9": 7})

	// the authoritative empty snapshot clears the local cart
	require.NoError(t, col.Delete(ctx, "p9"))
	waitCart(t, cart, map[string]int{})
}

func TestCartRepository_Clear(t *testing.T) {
	r, cart, col := newCartFixture(t)
	ctx := context.Background()

	require.NoError(t, r.Add(ctx, "p1", 2))
	require.NoError(t, r.Clear(ctx))

	waitCart(t, cart, map[string]int{})
	ids, err := col.ListIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
