package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopsync/internal/model"
)

func mkOrder(id, userID string, created time.Time, productIDs ...string) model.Order {
	o := model.Order{
		ID:        id,
		UserID:    userID,
		Status:    model.OrderAssembling,
		CreatedAt: created,
		UpdatedAt: created,
	}
	for i, pid := range productIDs {
		o.Lines = append(o.Lines, model.OrderLine{
			OrderID:   id,
			Position:  i,
			ProductID: pid,
			Title:     "Item " + pid,
			Price:     5,
			Quantity:  1,
		})
	}
	return o
}

func TestOrderStore_UpsertReplacesLines(t *testing.T) {
	s := newTestStore(t)
	o := NewOrderStore(s)
	ctx := context.Background()

	require.NoError(t, o.Upsert(ctx, mkOrder("o1", "u1", testTS, "p1", "p2", "p3")))

	got, err := o.Snapshot(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Len(t, got[0].Lines, 3)
	assert.Equal(t, "p1", got[0].Lines[0].ProductID)
	assert.Equal(t, 2, got[0].Lines[2].Position)

	// rewriting the order swaps the whole line list, no orphans
	require.NoError(t, o.Upsert(ctx, mkOrder("o1", "u1", testTS, "p9")))
	got, err = o.Snapshot(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Len(t, got[0].Lines, 1)
	assert.Equal(t, "p9", got[0].Lines[0].ProductID)
}

func TestOrderStore_SnapshotNewestFirst(t *testing.T) {
	s := newTestStore(t)
	o := NewOrderStore(s)
	ctx := context.Background()

	require.NoError(t, o.Upsert(ctx, mkOrder("o1", "u1", testTS, "p1")))
	require.NoError(t, o.Upsert(ctx, mkOrder("o2", "u1", testTS.Add(time.Hour), "p2")))

	got, err := o.Snapshot(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "o2", got[0].ID)
	assert.Equal(t, "o1", got[1].ID)
}

func TestOrderStore_ReplaceAll_IdenticalSetIsQuiet(t *testing.T) {
	s := newTestStore(t)
	o := NewOrderStore(s)
	ctx := context.Background()

	orders := []model.Order{mkOrder("o1", "u1", testTS, "p1")}
	require.NoError(t, o.ReplaceAll(ctx, "u1", orders))

	sub, err := o.Observe("u1")
	require.NoError(t, err)
	require.Len(t, recv(t, sub.C), 1)

	require.NoError(t, o.ReplaceAll(ctx, "u1", orders))
	expectQuiet(t, sub.C)

	// removing the order from the authoritative set clears the cache
	require.NoError(t, o.ReplaceAll(ctx, "u1", nil))
	assert.Empty(t, recv(t, sub.C))

	sub.Cancel()
}

func TestOrderStore_Delete(t *testing.T) {
	s := newTestStore(t)
	o := NewOrderStore(s)
	ctx := context.Background()

	require.NoError(t, o.Upsert(ctx, mkOrder("o1", "u1", testTS, "p1", "p2")))
	require.NoError(t, o.Upsert(ctx, mkOrder("o2", "u1", testTS, "p3")))

	require.NoError(t, o.Delete(ctx, "u1", "o1"))
	got, err := o.Snapshot(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "o2", got[0].ID)

	// o1's lines are gone with it, o2's survive
	var lines []model.OrderLine
	require.NoError(t, s.db.Order("product_id ASC").Find(&lines).Error)
	require.Len(t, lines, 1)
	assert.Equal(t, "p3", lines[0].ProductID)

	// a foreign or absent id is a quiet no-op
	require.NoError(t, o.Upsert(ctx, mkOrder("o3", "u2", testTS, "p4")))
	sub, err := o.Observe("u1")
	require.NoError(t, err)
	require.Len(t, recv(t, sub.C), 1)
	require.NoError(t, o.Delete(ctx, "u1", "o3"))
	require.NoError(t, o.Delete(ctx, "u1", "missing"))
	expectQuiet(t, sub.C)
	sub.Cancel()

	got, err = o.Snapshot(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestOrderStore_Clear(t *testing.T) {
	s := newTestStore(t)
	o := NewOrderStore(s)
	ctx := context.Background()

	require.NoError(t, o.Upsert(ctx, mkOrder("o1", "u1", testTS, "p1")))
	require.NoError(t, o.Upsert(ctx, mkOrder("o2", "u2", testTS, "p2")))
	require.NoError(t, o.Clear(ctx, "u1"))

	got, err := o.Snapshot(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, got)

	// the other user's order survives
	got, err = o.Snapshot(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, got, 1)
}
