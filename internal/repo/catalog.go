// Package repo binds the local cache and the remote collections into one
// consistent view per domain. Consumers observe the local cache; the realtime
// listeners keep it current; commands write to the remote and reflect
// optimistically where responsiveness requires it.
package repo

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"shopsync/internal/model"
	"shopsync/internal/remote"
	"shopsync/internal/store"
)

// CatalogRepository reconciles the products/categories/brands collections into
// the local catalog cache and serves filtered live product queries.
type CatalogRepository struct {
	catalog *store.CatalogStore

	products   remote.Collection
	categories remote.Collection
	brands     remote.Collection

	log *zap.SugaredLogger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc

	// queries tracks every open product query by token so a cancelled
	// consumer never leaves a dangling subscription behind.
	queries map[string]*ProductQuery
}

func NewCatalogRepository(
	catalog *store.CatalogStore,
	products, categories, brands remote.Collection,
	log *zap.SugaredLogger,
) *CatalogRepository {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &CatalogRepository{
		catalog:    catalog,
		products:   products,
		categories: categories,
		brands:     brands,
		log:        log,
		queries:    make(map[string]*ProductQuery),
	}
}

// StartRealtimeSync refreshes the cache once and attaches the three realtime
// listeners. Idempotent: a second call while running is a no-op, so duplicate
// listener subscriptions cannot occur.
func (r *CatalogRepository) StartRealtimeSync(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return nil
	}
	r.started = true
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.cancel = cancel
	r.mu.Unlock()

	if err := r.RefreshAll(ctx); err != nil {
		// The listeners still attach; the cache converges on first delivery.
		r.log.Warnw("initial catalog refresh failed", "error", err)
	}

	r.listen(runCtx, r.products, func(docs []remote.Document) error {
		items := make([]model.Product, 0, len(docs))
		for _, d := range docs {
			items = append(items, model.ProductFromDocument(d))
		}
		_, err := r.catalog.UpsertProducts(runCtx, items)
		return err
	})
	r.listen(runCtx, r.categories, func(docs []remote.Document) error {
		items := make([]model.Category, 0, len(docs))
		for _, d := range docs {
			items = append(items, model.CategoryFromDocument(d))
		}
		_, err := r.catalog.UpsertCategories(runCtx, items)
		return err
	})
	r.listen(runCtx, r.brands, func(docs []remote.Document) error {
		items := make([]model.Brand, 0, len(docs))
		for _, d := range docs {
			items = append(items, model.BrandFromDocument(d))
		}
		_, err := r.catalog.UpsertBrands(runCtx, items)
		return err
	})
	return nil
}

// StopRealtimeSync cancels the listeners and resets the started flag so a
// later start re-subscribes cleanly.
func (r *CatalogRepository) StopRealtimeSync() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		return
	}
	r.started = false
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

// Started reports whether realtime sync is active.
func (r *CatalogRepository) Started() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

// listen pumps every delivered snapshot through apply, strictly in arrival
// order. Failures are logged, never surfaced: the local view simply stays at
// its last state.
func (r *CatalogRepository) listen(ctx context.Context, col remote.Collection, apply func([]remote.Document) error) {
	ch, err := col.Listen(ctx)
	if err != nil {
		r.log.Errorw("realtime subscribe failed", "collection", col.Path(), "error", err)
		return
	}
	go func() {
		for docs := range ch {
			if err := apply(docs); err != nil {
				r.log.Errorw("realtime upsert failed", "collection", col.Path(), "error", err)
			}
		}
	}()
}

// RefreshAll fetches the three catalog collections in parallel and upserts
// each into the cache.
func (r *CatalogRepository) RefreshAll(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		docs, err := r.products.FetchAll(gctx)
		if err != nil {
			return err
		}
		items := make([]model.Product, 0, len(docs))
		for _, d := range docs {
			items = append(items, model.ProductFromDocument(d))
		}
		_, err = r.catalog.UpsertProducts(gctx, items)
		return err
	})
	g.Go(func() error {
		docs, err := r.categories.FetchAll(gctx)
		if err != nil {
			return err
		}
		items := make([]model.Category, 0, len(docs))
		for _, d := range docs {
			items = append(items, model.CategoryFromDocument(d))
		}
		_, err = r.catalog.UpsertCategories(gctx, items)
		return err
	})
	g.Go(func() error {
		docs, err := r.brands.FetchAll(gctx)
		if err != nil {
			return err
		}
		items := make([]model.Brand, 0, len(docs))
		for _, d := range docs {
			items = append(items, model.BrandFromDocument(d))
		}
		_, err = r.catalog.UpsertBrands(gctx, items)
		return err
	})
	return g.Wait()
}

// ProductQuery is one tracked live product query. Cancelling it detaches the
// underlying cache subscription and removes the tracking entry.
type ProductQuery struct {
	C <-chan []model.Product

	token string
	sub   *store.Subscription[model.Product]
	repo  *CatalogRepository
	once  sync.Once
}

func (q *ProductQuery) Token() string { return q.token }

func (q *ProductQuery) Cancel() {
	q.once.Do(func() {
		q.sub.Cancel()
		q.repo.mu.Lock()
		delete(q.repo.queries, q.token)
		q.repo.mu.Unlock()
	})
}

// ObserveProducts opens an independently cancellable live query. Many
// differently filtered queries may run concurrently without interfering.
func (r *CatalogRepository) ObserveProducts(f store.ProductFilter) (*ProductQuery, error) {
	sub, err := r.catalog.ObserveProducts(f)
	if err != nil {
		return nil, err
	}
	q := &ProductQuery{C: sub.C, token: sub.Token(), sub: sub, repo: r}
	r.mu.Lock()
	r.queries[q.token] = q
	r.mu.Unlock()
	return q, nil
}

// OpenQueries reports the number of tracked product queries.
func (r *CatalogRepository) OpenQueries() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queries)
}

// SearchProducts is the one-shot variant of ObserveProducts.
func (r *CatalogRepository) SearchProducts(ctx context.Context, f store.ProductFilter) ([]model.Product, error) {
	return r.catalog.Products(ctx, f)
}

// ObserveCategories opens a live query over active categories.
func (r *CatalogRepository) ObserveCategories() (*store.Subscription[model.Category], error) {
	return r.catalog.ObserveCategories(true)
}

// ObserveBrands opens a live query over active brands.
func (r *CatalogRepository) ObserveBrands() (*store.Subscription[model.Brand], error) {
	return r.catalog.ObserveBrands(true)
}
