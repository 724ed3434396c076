package repo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"shopsync/internal/model"
	"shopsync/internal/remote"
	"shopsync/internal/store"
)

var testTS = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.OpenMemory(zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("failed to open in-memory store: %v", err)
	}
	if err := s.Migrate(); err != nil {
		t.Fatalf("failed to automigrate: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// seedCatalog caches one brand and one product so snapshot-freezing commands
// have something to freeze.
func seedCatalog(t *testing.T, catalog *store.CatalogStore) {
	t.Helper()
	ctx := context.Background()
	_, err := catalog.UpsertBrands(ctx, []model.Brand{{
		ID: "b1", Name: "Roastery", IsActive: true, CreatedAt: testTS, UpdatedAt: testTS,
	}})
	require.NoError(t, err)
	_, err = catalog.UpsertProducts(ctx, []model.Product{{
		ID: "p1", Name: "Espresso Beans", CategoryID: "c1", BrandID: "b1",
		Price: 12.50, ImageURL: "img/p1.png", IsActive: true,
		CreatedAt: testTS, UpdatedAt: testTS,
	}})
	require.NoError(t, err)
}

// failOp makes every matching collection operation fail fatally, which stops
// the retry loop on the first attempt.
func failOp(col *remote.MemoryCollection, op string) {
	col.SetErrorHook(func(got string) error {
		if got == op {
			return remote.Errorf(remote.CodePermissionDenied, op, "injected failure")
		}
		return nil
	})
}

func recvEmit[T any](t *testing.T, ch <-chan []T) []T {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatalf("subscription channel closed unexpectedly")
		}
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for emission")
		return nil
	}
}
