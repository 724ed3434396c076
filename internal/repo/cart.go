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

// CartRepository reconciles one user's remote cart sub-collection with the
// local cart cache. Quantity commands are reflected optimistically so the UI
// does not wait on the remote round-trip; the realtime snapshot always wins.
type CartRepository struct {
	userID  string
	cart    *store.CartStore
	catalog *store.CatalogStore
	col     remote.Collection
	retry   remote.RetryPolicy
	log     *zap.SugaredLogger

	cancel context.CancelFunc
}

// NewCartRepository binds the remote listener at construction. The binding
// stays active until Close.
func NewCartRepository(
	userID string,
	cart *store.CartStore,
	catalog *store.CatalogStore,
	col remote.Collection,
	log *zap.SugaredLogger,
) *CartRepository {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	r := &CartRepository{
		userID:  userID,
		cart:    cart,
		catalog: catalog,
		col:     col,
		retry:   remote.DefaultRetryPolicy(),
		log:     log,
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	bindListener(ctx, col, log, func(docs []remote.Document) error {
		lines := make([]model.CartLine, 0, len(docs))
		for _, d := range docs {
			lines = append(lines, model.CartLineFromDocument(userID, d))
		}
		return cart.ReplaceAll(ctx, userID, lines)
	})
	return r
}

// Close detaches the realtime listener.
func (r *CartRepository) Close() { r.cancel() }

// Lines opens a live query over the user's cart.
func (r *CartRepository) Lines() (*store.Subscription[model.CartLine], error) {
	return r.cart.Observe(r.userID)
}

// Snapshot returns the current cart one-shot.
func (r *CartRepository) Snapshot(ctx context.Context) ([]model.CartLine, error) {
	return r.cart.Snapshot(ctx, r.userID)
}

// Add accumulates quantity onto the user's line for productID, creating it
// with a frozen catalog snapshot when absent. The resulting quantity is
// clamped to zero or above; reaching zero deletes the line.
func (r *CartRepository) Add(ctx context.Context, productID string, quantity int) error {
	prev, err := r.currentLine(ctx, productID)
	if err != nil {
		return err
	}

	next, err := r.lineWithQuantity(ctx, prev, productID, addQuantity(prev, quantity))
	if err != nil {
		return err
	}
	return r.pushLine(ctx, prev, next)
}

// SetQuantity sets the absolute quantity of an existing or new line.
// Negative input clamps to zero; zero deletes the line, never storing a
// zero-quantity row.
func (r *CartRepository) SetQuantity(ctx context.Context, productID string, quantity int) error {
	if quantity < 0 {
		quantity = 0
	}
	prev, err := r.currentLine(ctx, productID)
	if err != nil {
		return err
	}
	next, err := r.lineWithQuantity(ctx, prev, productID, quantity)
	if err != nil {
		return err
	}
	return r.pushLine(ctx, prev, next)
}

// SetQuantityFromInput applies a user-typed quantity from a detail screen,
// where the floor is one (an empty or negative entry still means one item).
func (r *CartRepository) SetQuantityFromInput(ctx context.Context, productID string, quantity int) error {
	if quantity < 1 {
		quantity = 1
	}
	return r.SetQuantity(ctx, productID, quantity)
}

// Remove deletes the line outright.
func (r *CartRepository) Remove(ctx context.Context, productID string) error {
	return r.SetQuantity(ctx, productID, 0)
}

// Clear empties the user's cart remotely and locally.
func (r *CartRepository) Clear(ctx context.Context) error {
	lines, err := r.cart.Snapshot(ctx, r.userID)
	if err != nil {
		return err
	}
	if err := r.cart.Clear(ctx, r.userID); err != nil {
		return err
	}
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	err = r.retry.Do(ctx, "cart clear", func(ctx context.Context) error {
		remoteIDs, err := r.col.ListIDs(ctx)
		if err != nil {
			return err
		}
		all := union(ids, remoteIDs)
		if len(all) == 0 {
			return nil
		}
		return r.col.BatchDelete(ctx, all)
	})
	if err != nil {
		// Roll the optimistic clear back; the listener would correct it
		// eventually, but the caller should not see a lying empty cart.
		if rbErr := r.cart.ReplaceAll(ctx, r.userID, lines); rbErr != nil {
			r.log.Errorw("cart clear rollback failed", "user", r.userID, "error", rbErr)
		}
		return err
	}
	return nil
}

// ClearLocal drops the cached cart only, used on logout or account switch.
func (r *CartRepository) ClearLocal(ctx context.Context) error {
	return r.cart.Clear(ctx, r.userID)
}

func (r *CartRepository) currentLine(ctx context.Context, productID string) (*model.CartLine, error) {
	lines, err := r.cart.Snapshot(ctx, r.userID)
	if err != nil {
		return nil, err
	}
	for i := range lines {
		if lines[i].ProductID == productID {
			return &lines[i], nil
		}
	}
	return nil, nil
}

func addQuantity(prev *model.CartLine, delta int) int {
	q := delta
	if prev != nil {
		q += prev.Quantity
	}
	if q < 0 {
		q = 0
	}
	return q
}

// lineWithQuantity builds the post-command line. For a new line the catalog
// snapshot (brand name, title, price, image) is frozen now; an existing line
// keeps its original snapshot untouched.
func (r *CartRepository) lineWithQuantity(ctx context.Context, prev *model.CartLine, productID string, quantity int) (model.CartLine, error) {
	if prev != nil {
		next := *prev
		next.Quantity = quantity
		next.UpdatedAt = time.Now().UTC()
		return next, nil
	}
	p, err := r.catalog.Product(ctx, productID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return model.CartLine{}, fmt.Errorf("product %s not in catalog cache", productID)
		}
		return model.CartLine{}, err
	}
	brandName := ""
	if b, err := r.catalog.Brand(ctx, p.BrandID); err == nil {
		brandName = b.Name
	}
	return model.SnapshotFromProduct(r.userID, *p, brandName, quantity, time.Now()), nil
}

// pushLine applies the optimistic local write, performs the remote mutation
// with retry, and rolls the local state back to prev when the remote command
// ultimately fails.
func (r *CartRepository) pushLine(ctx context.Context, prev *model.CartLine, next model.CartLine) error {
	if err := r.cart.UpsertLine(ctx, next); err != nil {
		return err
	}

	var remoteErr error
	if next.Quantity <= 0 {
		remoteErr = r.retry.Do(ctx, "cart delete", func(ctx context.Context) error {
			return r.col.Delete(ctx, next.ProductID)
		})
	} else {
		doc := next.Document()
		remoteErr = r.retry.Do(ctx, "cart write", func(ctx context.Context) error {
			return r.col.Write(ctx, next.ProductID, doc, false)
		})
	}
	if remoteErr == nil {
		return nil
	}

	var rbErr error
	if prev != nil {
		rbErr = r.cart.UpsertLine(ctx, *prev)
	} else {
		rbErr = r.cart.DeleteLine(ctx, r.userID, next.ProductID)
	}
	if rbErr != nil {
		r.log.Errorw("cart rollback failed", "user", r.userID, "product", next.ProductID, "error", rbErr)
	}
	return remoteErr
}

// bindListener wires a remote listen stream into a local apply func. Snapshot
// deliveries are processed strictly in arrival order; failures are logged and
// never surfaced to observers.
func bindListener(ctx context.Context, col remote.Collection, log *zap.SugaredLogger, apply func([]remote.Document) error) {
	ch, err := col.Listen(ctx)
	if err != nil {
		log.Errorw("realtime subscribe failed", "collection", col.Path(), "error", err)
		return
	}
	go func() {
		for docs := range ch {
			if err := apply(docs); err != nil {
				log.Errorw("realtime apply failed", "collection", col.Path(), "error", err)
			}
		}
	}()
}

func union(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range append(append([]string{}, a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
