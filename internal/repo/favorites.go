package repo

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"shopsync/internal/model"
	"shopsync/internal/remote"
	"shopsync/internal/store"
)

// FavoritesRepository reconciles one user's favorites sub-collection with the
// local cache. Toggle is optimistic with rollback on remote failure.
type FavoritesRepository struct {
	userID  string
	favs    *store.FavoritesStore
	catalog *store.CatalogStore
	col     remote.Collection
	retry   remote.RetryPolicy
	log     *zap.SugaredLogger

	cancel context.CancelFunc
}

func NewFavoritesRepository(
	userID string,
	favs *store.FavoritesStore,
	catalog *store.CatalogStore,
	col remote.Collection,
	log *zap.SugaredLogger,
) *FavoritesRepository {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	r := &FavoritesRepository{
		userID:  userID,
		favs:    favs,
		catalog: catalog,
		col:     col,
		retry:   remote.DefaultRetryPolicy(),
		log:     log,
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	bindListener(ctx, col, log, func(docs []remote.Document) error {
		entries := make([]model.FavoriteEntry, 0, len(docs))
		for _, d := range docs {
			entries = append(entries, model.FavoriteEntryFromDocument(userID, d))
		}
		return favs.ReplaceAll(ctx, userID, entries)
	})
	return r
}

// Close detaches the realtime listener.
func (r *FavoritesRepository) Close() { r.cancel() }

// Entries opens a live query over the user's favorites.
func (r *FavoritesRepository) Entries() (*store.Subscription[model.FavoriteEntry], error) {
	return r.favs.Observe(r.userID)
}

// IsFavorite reports whether productID is currently favorited.
func (r *FavoritesRepository) IsFavorite(ctx context.Context, productID string) (bool, error) {
	entries, err := r.favs.Snapshot(ctx, r.userID)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.ProductID == productID {
			return true, nil
		}
	}
	return false, nil
}

// Toggle flips the favorite state of productID: adds an entry with a frozen
// catalog snapshot when absent, removes it when present. Returns the new
// state.
func (r *FavoritesRepository) Toggle(ctx context.Context, productID string) (bool, error) {
	entries, err := r.favs.Snapshot(ctx, r.userID)
	if err != nil {
		return false, err
	}
	var prev *model.FavoriteEntry
	for i := range entries {
		if entries[i].ProductID == productID {
			prev = &entries[i]
			break
		}
	}

	if prev != nil {
		if err := r.favs.Delete(ctx, r.userID, productID); err != nil {
			return true, err
		}
		err := r.retry.Do(ctx, "favorite delete", func(ctx context.Context) error {
			return r.col.Delete(ctx, productID)
		})
		if err != nil {
			if rbErr := r.favs.Upsert(ctx, *prev); rbErr != nil {
				r.log.Errorw("favorite rollback failed", "user", r.userID, "product", productID, "error", rbErr)
			}
			return true, err
		}
		return false, nil
	}

	entry, err := r.snapshotEntry(ctx, productID)
	if err != nil {
		return false, err
	}
	if err := r.favs.Upsert(ctx, entry); err != nil {
		return false, err
	}
	doc := entry.Document()
	err = r.retry.Do(ctx, "favorite write", func(ctx context.Context) error {
		return r.col.Write(ctx, productID, doc, false)
	})
	if err != nil {
		if rbErr := r.favs.Delete(ctx, r.userID, productID); rbErr != nil {
			r.log.Errorw("favorite rollback failed", "user", r.userID, "product", productID, "error", rbErr)
		}
		return false, err
	}
	return true, nil
}

// ClearLocal drops the cached favorites only (logout path).
func (r *FavoritesRepository) ClearLocal(ctx context.Context) error {
	return r.favs.Clear(ctx, r.userID)
}

func (r *FavoritesRepository) snapshotEntry(ctx context.Context, productID string) (model.FavoriteEntry, error) {
	p, err := r.catalog.Product(ctx, productID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return model.FavoriteEntry{}, fmt.Errorf("product %s not in catalog cache", productID)
		}
		return model.FavoriteEntry{}, err
	}
	brandName := ""
	if b, err := r.catalog.Brand(ctx, p.BrandID); err == nil {
		brandName = b.Name
	}
	return model.FavoriteEntry{
		UserID:    r.userID,
		ProductID: p.ID,
		BrandName: brandName,
		Title:     p.Name,
		Price:     p.Price,
		ImageURL:  p.ImageURL,
		UpdatedAt: time.Now().UTC(),
	}, nil
}
