package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"shopsync/internal/model"
)

// CartStore caches the user-scoped cart. The realtime listener replaces the
// whole per-user set; commands touch single lines optimistically.
type CartStore struct {
	s *Store
}

func NewCartStore(s *Store) *CartStore { return &CartStore{s: s} }

var cartTables = []string{model.CartLine{}.TableName()}

// ReplaceAll swaps the user's cart for the given lines in one transaction.
// A replace that leaves every row identical commits nothing and notifies
// nobody.
func (c *CartStore) ReplaceAll(ctx context.Context, userID string, lines []model.CartLine) error {
	return c.s.write(ctx, cartTables, func(tx *gorm.DB) (bool, error) {
		var existing []model.CartLine
		if err := tx.Where("user_id = ?", userID).Find(&existing).Error; err != nil {
			return false, fmt.Errorf("load cart: %w", err)
		}
		if cartSetsEqual(existing, lines) {
			return false, nil
		}
		if err := tx.Where("user_id = ?", userID).Delete(&model.CartLine{}).Error; err != nil {
			return false, fmt.Errorf("clear cart: %w", err)
		}
		for _, l := range lines {
			l.UserID = userID
			if l.Quantity <= 0 {
				// Zero-quantity lines are deleted, never stored.
				continue
			}
			if err := tx.Create(&l).Error; err != nil {
				return false, fmt.Errorf("insert cart line %s: %w", l.ProductID, err)
			}
		}
		return true, nil
	})
}

// UpsertLine writes a single line (optimistic command path). Quantity <= 0
// deletes the line.
func (c *CartStore) UpsertLine(ctx context.Context, line model.CartLine) error {
	return c.s.write(ctx, cartTables, func(tx *gorm.DB) (bool, error) {
		if line.Quantity <= 0 {
			res := tx.Where("user_id = ? AND product_id = ?", line.UserID, line.ProductID).
				Delete(&model.CartLine{})
			return res.RowsAffected > 0, res.Error
		}
		var old model.CartLine
		err := tx.Where("user_id = ? AND product_id = ?", line.UserID, line.ProductID).
			First(&old).Error
		switch {
		case err == nil:
			if old.Equal(line) {
				return false, nil
			}
			return true, tx.Save(&line).Error
		case err == gorm.ErrRecordNotFound:
			return true, tx.Create(&line).Error
		default:
			return false, err
		}
	})
}

// DeleteLine removes one line.
func (c *CartStore) DeleteLine(ctx context.Context, userID, productID string) error {
	return c.s.write(ctx, cartTables, func(tx *gorm.DB) (bool, error) {
		res := tx.Where("user_id = ? AND product_id = ?", userID, productID).
			Delete(&model.CartLine{})
		return res.RowsAffected > 0, res.Error
	})
}

// Snapshot returns the user's current cart, one-shot.
func (c *CartStore) Snapshot(ctx context.Context, userID string) ([]model.CartLine, error) {
	var out []model.CartLine
	err := c.s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("product_id ASC").
		Find(&out).Error
	return out, err
}

// Clear removes every line of the user (logout / account switch).
func (c *CartStore) Clear(ctx context.Context, userID string) error {
	return c.s.write(ctx, cartTables, func(tx *gorm.DB) (bool, error) {
		res := tx.Where("user_id = ?", userID).Delete(&model.CartLine{})
		return res.RowsAffected > 0, res.Error
	})
}

// Observe opens a live query over the user's cart.
func (c *CartStore) Observe(userID string) (*Subscription[model.CartLine], error) {
	return observe(c.s, cartTables,
		func() ([]model.CartLine, error) { return c.Snapshot(context.Background(), userID) },
		func(a, b []model.CartLine) bool { return sliceEqual(a, b, model.CartLine.Equal) },
	)
}

func cartSetsEqual(existing, incoming []model.CartLine) bool {
	stored := 0
	byKey := make(map[string]model.CartLine, len(existing))
	for _, l := range existing {
		byKey[l.ProductID] = l
	}
	for _, l := range incoming {
		if l.Quantity <= 0 {
			continue
		}
		stored++
		old, ok := byKey[l.ProductID]
		if !ok {
			return false
		}
		l.UserID = old.UserID
		if !old.Equal(l) {
			return false
		}
	}
	return stored == len(existing)
}
