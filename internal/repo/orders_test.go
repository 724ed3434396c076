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

func newOrdersFixture(t *testing.T) (*OrdersRepository, *remote.MemoryCollection) {
	t.Helper()
	st := newTestStore(t)
	col := remote.NewMemoryStore().Collection("users/u1/orders")
	r := NewOrdersRepository("u1", store.NewOrderStore(st), col, nil)
	t.Cleanup(r.Close)
	return r, col
}

func checkoutLines() []model.CartLine {
	return []model.CartLine{
		{UserID: "u1", ProductID: "p1", Title: "Beans", BrandName: "Roastery", Price: 12.5, Quantity: 2, UpdatedAt: testTS},
		{UserID: "u1", ProductID: "p2", Title: "Paper", Price: 3.1, Quantity: 1, UpdatedAt: testTS},
	}
}

// waitOrders polls until the cached order count converges.
func waitOrders(t *testing.T, r *OrdersRepository, want int) []model.Order {
	t.Helper()
	var got []model.Order
	require.Eventually(t, func() bool {
		var err error
		got, err = r.Snapshot(context.Background())
		return err == nil && len(got) == want
	}, 2*time.Second, 10*time.Millisecond, "order cache did not converge to %d orders", want)
	return got
}

func TestOrdersRepository_Create(t *testing.T) {
	r, col := newOrdersFixture(t)
	ctx := context.Background()

	order, err := r.Create(ctx, OrderDraft{
		ReceiveAddress: "Main St 1",
		PaymentMethod:  "card",
		Phone:          "123",
	}, checkoutLines())
	require.NoError(t, err)
	assert.NotEmpty(t, order.ID)
	assert.Equal(t, model.OrderAssembling, order.Status)
	require.Len(t, order.Lines, 2)
	assert.Equal(t, 0, order.Lines[0].Position)
	assert.Equal(t, "Beans", order.Lines[0].Title)

	// cached locally with the lines attached
	got := waitOrders(t, r, 1)
	require.Len(t, got[0].Lines, 2)
	assert.Equal(t, "Main St 1", got[0].ReceiveAddress)

	// and written remotely with the lines embedded
	docs, err := col.FetchByIDs(ctx, []string{order.ID})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	lines, ok := docs[0]["lines"].([]any)
	require.True(t, ok)
	assert.Len(t, lines, 2)
}

func TestOrdersRepository_CreateEmptyCartFails(t *testing.T) {
	r, _ := newOrdersFixture(t)
	_, err := r.Create(context.Background(), OrderDraft{}, nil)
	require.Error(t, err)
}

func TestOrdersRepository_CreateRollsBackOnRemoteFailure(t *testing.T) {
	r, col := newOrdersFixture(t)
	ctx := context.Background()

	failOp(col, "batch_write")
	_, err := r.Create(ctx, OrderDraft{}, checkoutLines())
	require.Error(t, err)

	// the failed order must not linger in the cache
	waitOrders(t, r, 0)
}

func TestOrdersRepository_UpdateStatus(t *testing.T) {
	r, col := newOrdersFixture(t)
	ctx := context.Background()

	order, err := r.Create(ctx, OrderDraft{}, checkoutLines())
	require.NoError(t, err)

	require.NoError(t, r.UpdateStatus(ctx, order.ID, model.OrderInTransit))

	docs, err := col.FetchByIDs(ctx, []string{order.ID})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "in_transit", docs[0]["status"])
	// the merge patch must not wipe the rest of the document
	assert.Equal(t, "u1", docs[0]["user_id"])

	// the authoritative echo moves the cached copy too
	require.Eventually(t, func() bool {
		got, err := r.Snapshot(ctx)
		return err == nil && len(got) == 1 && got[0].Status == model.OrderInTransit
	}, 2*time.Second, 10*time.Millisecond)

	err = r.UpdateStatus(ctx, order.ID, model.OrderStatus("teleported"))
	require.Error(t, err)
}
