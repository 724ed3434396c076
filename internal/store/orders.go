package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"shopsync/internal/model"
)

// OrderStore caches the user's orders together with their owned lines.
// Writing an order always rewrites its whole line list in the same
// transaction.
type OrderStore struct {
	s *Store
}

func NewOrderStore(s *Store) *OrderStore { return &OrderStore{s: s} }

var orderTables = []string{model.Order{}.TableName(), model.OrderLine{}.TableName()}

// ReplaceAll swaps the user's orders (and their lines) for the given set.
func (o *OrderStore) ReplaceAll(ctx context.Context, userID string, orders []model.Order) error {
	return o.s.write(ctx, orderTables, func(tx *gorm.DB) (bool, error) {
		existing, err := loadOrders(tx, userID)
		if err != nil {
			return false, err
		}
		if orderSetsEqual(existing, orders) {
			return false, nil
		}
		ids := make([]string, 0, len(existing))
		for _, ord := range existing {
			ids = append(ids, ord.ID)
		}
		if len(ids) > 0 {
			if err := tx.Where("order_id IN ?", ids).Delete(&model.OrderLine{}).Error; err != nil {
				return false, fmt.Errorf("clear order lines: %w", err)
			}
			if err := tx.Where("user_id = ?", userID).Delete(&model.Order{}).Error; err != nil {
				return false, fmt.Errorf("clear orders: %w", err)
			}
		}
		for _, ord := range orders {
			ord.UserID = userID
			if err := insertOrder(tx, ord); err != nil {
				return false, err
			}
		}
		return true, nil
	})
}

// Upsert writes one order, replacing its previous line list atomically.
func (o *OrderStore) Upsert(ctx context.Context, order model.Order) error {
	return o.s.write(ctx, orderTables, func(tx *gorm.DB) (bool, error) {
		var old model.Order
		err := tx.Where("id = ?", order.ID).First(&old).Error
		switch {
		case err == nil:
			var oldLines []model.OrderLine
			if err := tx.Where("order_id = ?", order.ID).Order("position ASC").Find(&oldLines).Error; err != nil {
				return false, err
			}
			old.Lines = oldLines
			if old.Equal(order) {
				return false, nil
			}
			if err := tx.Where("order_id = ?", order.ID).Delete(&model.OrderLine{}).Error; err != nil {
				return false, fmt.Errorf("replace order lines %s: %w", order.ID, err)
			}
			if err := tx.Where("id = ?", order.ID).Delete(&model.Order{}).Error; err != nil {
				return false, fmt.Errorf("replace order %s: %w", order.ID, err)
			}
			return true, insertOrder(tx, order)
		case err == gorm.ErrRecordNotFound:
			return true, insertOrder(tx, order)
		default:
			return false, err
		}
	})
}

// Delete removes one order and its lines. Deleting an absent order is a
// no-op and emits no notification.
func (o *OrderStore) Delete(ctx context.Context, userID, orderID string) error {
	return o.s.write(ctx, orderTables, func(tx *gorm.DB) (bool, error) {
		res := tx.Where("id = ? AND user_id = ?", orderID, userID).Delete(&model.Order{})
		if res.Error != nil {
			return false, fmt.Errorf("delete order %s: %w", orderID, res.Error)
		}
		if res.RowsAffected == 0 {
			return false, nil
		}
		if err := tx.Where("order_id = ?", orderID).Delete(&model.OrderLine{}).Error; err != nil {
			return false, fmt.Errorf("delete order lines %s: %w", orderID, err)
		}
		return true, nil
	})
}

// Snapshot returns the user's orders newest first, lines attached in position
// order.
func (o *OrderStore) Snapshot(ctx context.Context, userID string) ([]model.Order, error) {
	return loadOrders(o.s.db.WithContext(ctx), userID)
}

// Clear removes the user's orders and their lines.
func (o *OrderStore) Clear(ctx context.Context, userID string) error {
	return o.s.write(ctx, orderTables, func(tx *gorm.DB) (bool, error) {
		var ids []string
		if err := tx.Model(&model.Order{}).Where("user_id = ?", userID).Pluck("id", &ids).Error; err != nil {
			return false, err
		}
		if len(ids) == 0 {
			return false, nil
		}
		if err := tx.Where("order_id IN ?", ids).Delete(&model.OrderLine{}).Error; err != nil {
			return false, err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&model.Order{}).Error; err != nil {
			return false, err
		}
		return true, nil
	})
}

// Observe opens a live query over the user's orders.
func (o *OrderStore) Observe(userID string) (*Subscription[model.Order], error) {
	return observe(o.s, orderTables,
		func() ([]model.Order, error) { return loadOrders(o.s.db, userID) },
		func(a, b []model.Order) bool { return sliceEqual(a, b, model.Order.Equal) },
	)
}

func insertOrder(tx *gorm.DB, ord model.Order) error {
	lines := ord.Lines
	ord.Lines = nil
	if err := tx.Create(&ord).Error; err != nil {
		return fmt.Errorf("insert order %s: %w", ord.ID, err)
	}
	for i, l := range lines {
		l.OrderID = ord.ID
		l.Position = i
		if err := tx.Create(&l).Error; err != nil {
			return fmt.Errorf("insert order line %s/%d: %w", ord.ID, i, err)
		}
	}
	return nil
}

func loadOrders(db *gorm.DB, userID string) ([]model.Order, error) {
	var orders []model.Order
	if err := db.Where("user_id = ?", userID).
		Order("created_at DESC, id ASC").
		Find(&orders).Error; err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	var lines []model.OrderLine
	if err := db.Where("order_id IN ?", ids).Order("order_id ASC, position ASC").Find(&lines).Error; err != nil {
		return nil, err
	}
	byOrder := make(map[string][]model.OrderLine)
	for _, l := range lines {
		byOrder[l.OrderID] = append(byOrder[l.OrderID], l)
	}
	for i := range orders {
		orders[i].Lines = byOrder[orders[i].ID]
	}
	return orders, nil
}

func orderSetsEqual(existing, incoming []model.Order) bool {
	if len(existing) != len(incoming) {
		return false
	}
	byID := make(map[string]model.Order, len(existing))
	for _, o := range existing {
		byID[o.ID] = o
	}
	for _, o := range incoming {
		old, ok := byID[o.ID]
		if !ok {
			return false
		}
		o.UserID = old.UserID
		if !old.Equal(o) {
			return false
		}
	}
	return true
}
