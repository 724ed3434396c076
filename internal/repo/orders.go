package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"shopsync/internal/model"
	"shopsync/internal/remote"
	"shopsync/internal/store"
)

// OrderDraft carries the user-entered checkout fields.
type OrderDraft struct {
	ReceiveAddress string
	PaymentMethod  string
	Comment        string
	Phone          string
}

// OrdersRepository reconciles one user's orders sub-collection with the local
// cache and issues order commands.
type OrdersRepository struct {
	userID string
	orders *store.OrderStore
	col    remote.Collection
	retry  remote.RetryPolicy
	log    *zap.SugaredLogger

	cancel context.CancelFunc
}

func NewOrdersRepository(
	userID string,
	orders *store.OrderStore,
	col remote.Collection,
	log *zap.SugaredLogger,
) *OrdersRepository {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	r := &OrdersRepository{
		userID: userID,
		orders: orders,
		col:    col,
		retry:  remote.DefaultRetryPolicy(),
		log:    log,
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	bindListener(ctx, col, log, func(docs []remote.Document) error {
		list := make([]model.Order, 0, len(docs))
		for _, d := range docs {
			list = append(list, model.OrderFromDocument(userID, d))
		}
		return orders.ReplaceAll(ctx, userID, list)
	})
	return r
}

// Close detaches the realtime listener.
func (r *OrdersRepository) Close() { r.cancel() }

// Orders opens a live query over the user's orders.
func (r *OrdersRepository) Orders() (*store.Subscription[model.Order], error) {
	return r.orders.Observe(r.userID)
}

// Snapshot returns the cached orders one-shot.
func (r *OrdersRepository) Snapshot(ctx context.Context) ([]model.Order, error) {
	return r.orders.Snapshot(ctx, r.userID)
}

// Create places a new order from the given cart lines. The line snapshots are
// frozen as-is; the order id and timestamps are stamped here. The remote write
// is awaited and its failure surfaced; the optimistic local copy is removed
// again if the remote command fails.
func (r *OrdersRepository) Create(ctx context.Context, draft OrderDraft, lines []model.CartLine) (model.Order, error) {
	if len(lines) == 0 {
		return model.Order{}, fmt.Errorf("cannot place an order with no lines")
	}
	now := time.Now().UTC()
	order := model.Order{
		ID:             uuid.NewString(),
		UserID:         r.userID,
		Status:         model.OrderAssembling,
		ReceiveAddress: draft.ReceiveAddress,
		PaymentMethod:  draft.PaymentMethod,
		Comment:        draft.Comment,
		Phone:          draft.Phone,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	for i, l := range lines {
		order.Lines = append(order.Lines, model.OrderLine{
			OrderID:   order.ID,
			Position:  i,
			ProductID: l.ProductID,
			BrandName: l.BrandName,
			Title:     l.Title,
			Price:     l.Price,
			ImageURL:  l.ImageURL,
			Quantity:  l.Quantity,
		})
	}

	if err := r.orders.Upsert(ctx, order); err != nil {
		return model.Order{}, err
	}
	doc := order.Document()
	err := r.retry.Do(ctx, "order create", func(ctx context.Context) error {
		return r.col.Write(ctx, order.ID, doc, false)
	})
	if err != nil {
		if rbErr := r.orders.Delete(ctx, r.userID, order.ID); rbErr != nil {
			r.log.Errorw("order rollback failed", "user", r.userID, "order", order.ID, "error", rbErr)
		}
		return model.Order{}, err
	}
	return order, nil
}

// UpdateStatus moves an order to the given status. The remote write merges
// only the status and timestamp; the authoritative echo refreshes the cache.
func (r *OrdersRepository) UpdateStatus(ctx context.Context, orderID string, status model.OrderStatus) error {
	if !status.Valid() {
		return fmt.Errorf("unknown order status %q", status)
	}
	patch := remote.Document{
		"status":     string(status),
		"updated_at": time.Now().UTC().Format(time.RFC3339Nano),
	}
	return r.retry.Do(ctx, "order status", func(ctx context.Context) error {
		return r.col.Write(ctx, orderID, patch, true)
	})
}

// ClearLocal drops the cached orders only (logout path).
func (r *OrdersRepository) ClearLocal(ctx context.Context) error {
	return r.orders.Clear(ctx, r.userID)
}
