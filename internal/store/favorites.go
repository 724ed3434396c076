package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"shopsync/internal/model"
)

// FavoritesStore caches the user's favorite products.
type FavoritesStore struct {
	s *Store
}

func NewFavoritesStore(s *Store) *FavoritesStore { return &FavoritesStore{s: s} }

var favoriteTables = []string{model.FavoriteEntry{}.TableName()}

// ReplaceAll swaps the user's favorites for the given entries in one
// transaction, skipping the write when nothing differs.
func (f *FavoritesStore) ReplaceAll(ctx context.Context, userID string, entries []model.FavoriteEntry) error {
	return f.s.write(ctx, favoriteTables, func(tx *gorm.DB) (bool, error) {
		var existing []model.FavoriteEntry
		if err := tx.Where("user_id = ?", userID).Find(&existing).Error; err != nil {
			return false, fmt.Errorf("load favorites: %w", err)
		}
		if favoriteSetsEqual(existing, entries) {
			return false, nil
		}
		if err := tx.Where("user_id = ?", userID).Delete(&model.FavoriteEntry{}).Error; err != nil {
			return false, fmt.Errorf("clear favorites: %w", err)
		}
		for _, e := range entries {
			e.UserID = userID
			if err := tx.Create(&e).Error; err != nil {
				return false, fmt.Errorf("insert favorite %s: %w", e.ProductID, err)
			}
		}
		return true, nil
	})
}

// Upsert writes a single entry (optimistic toggle-on path).
func (f *FavoritesStore) Upsert(ctx context.Context, entry model.FavoriteEntry) error {
	return f.s.write(ctx, favoriteTables, func(tx *gorm.DB) (bool, error) {
		var old model.FavoriteEntry
		err := tx.Where("user_id = ? AND product_id = ?", entry.UserID, entry.ProductID).
			First(&old).Error
		switch {
		case err == nil:
			if old.Equal(entry) {
				return false, nil
			}
			return true, tx.Save(&entry).Error
		case err == gorm.ErrRecordNotFound:
			return true, tx.Create(&entry).Error
		default:
			return false, err
		}
	})
}

// Delete removes one entry (optimistic toggle-off path).
func (f *FavoritesStore) Delete(ctx context.Context, userID, productID string) error {
	return f.s.write(ctx, favoriteTables, func(tx *gorm.DB) (bool, error) {
		res := tx.Where("user_id = ? AND product_id = ?", userID, productID).
			Delete(&model.FavoriteEntry{})
		return res.RowsAffected > 0, res.Error
	})
}

// Snapshot returns the user's favorites, one-shot.
func (f *FavoritesStore) Snapshot(ctx context.Context, userID string) ([]model.FavoriteEntry, error) {
	var out []model.FavoriteEntry
	err := f.s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("product_id ASC").
		Find(&out).Error
	return out, err
}

// Clear removes every entry of the user.
func (f *FavoritesStore) Clear(ctx context.Context, userID string) error {
	return f.s.write(ctx, favoriteTables, func(tx *gorm.DB) (bool, error) {
		res := tx.Where("user_id = ?", userID).Delete(&model.FavoriteEntry{})
		return res.RowsAffected > 0, res.Error
	})
}

// Observe opens a live query over the user's favorites.
func (f *FavoritesStore) Observe(userID string) (*Subscription[model.FavoriteEntry], error) {
	return observe(f.s, favoriteTables,
		func() ([]model.FavoriteEntry, error) { return f.Snapshot(context.Background(), userID) },
		func(a, b []model.FavoriteEntry) bool { return sliceEqual(a, b, model.FavoriteEntry.Equal) },
	)
}

func favoriteSetsEqual(existing, incoming []model.FavoriteEntry) bool {
	if len(existing) != len(incoming) {
		return false
	}
	byKey := make(map[string]model.FavoriteEntry, len(existing))
	for _, e := range existing {
		byKey[e.ProductID] = e
	}
	for _, e := range incoming {
		old, ok := byKey[e.ProductID]
		if !ok {
			return false
		}
		e.UserID = old.UserID
		if !old.Equal(e) {
			return false
		}
	}
	return true
}
