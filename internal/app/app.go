// Package app composes the engine: one local store, one remote source, and
// the per-domain repositories, wired explicitly at construction. There is no
// ambient global state; everything a repository needs is passed in here.
package app

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"shopsync/internal/remote"
	"shopsync/internal/repo"
	"shopsync/internal/store"
)

// Collection paths on the remote document database.
const (
	CollectionProducts   = "products"
	CollectionCategories = "categories"
	CollectionBrands     = "brands"
)

func UserCartPath(userID string) string {
	return remote.CollectionPath("users", userID, "cart")
}

func UserFavoritesPath(userID string) string {
	return remote.CollectionPath("users", userID, "favorites")
}

func UserOrdersPath(userID string) string {
	return remote.CollectionPath("users", userID, "orders")
}

func UserProfilePath(userID string) string {
	return remote.CollectionPath("users", userID, "profile")
}

// Engine is the assembled sync engine for one signed-in user.
type Engine struct {
	Store *store.Store

	Catalog   *repo.CatalogRepository
	Cart      *repo.CartRepository
	Favorites *repo.FavoritesRepository
	Orders    *repo.OrdersRepository
	Profile   *repo.ProfileRepository

	userID string
	log    *zap.SugaredLogger
}

// New wires the engine. The user-scoped repositories attach their realtime
// listeners immediately; catalog sync starts on StartRealtimeSync.
func New(st *store.Store, src remote.Source, userID string, log *zap.SugaredLogger) (*Engine, error) {
	if st == nil || src == nil {
		return nil, errors.New("store and remote source are required")
	}
	if userID == "" {
		return nil, errors.New("user id is required")
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	catalogStore := store.NewCatalogStore(st)
	e := &Engine{
		Store:  st,
		userID: userID,
		log:    log,
	}
	e.Catalog = repo.NewCatalogRepository(
		catalogStore,
		src.Collection(CollectionProducts),
		src.Collection(CollectionCategories),
		src.Collection(CollectionBrands),
		log,
	)
	e.Cart = repo.NewCartRepository(userID, store.NewCartStore(st), catalogStore,
		src.Collection(UserCartPath(userID)), log)
	e.Favorites = repo.NewFavoritesRepository(userID, store.NewFavoritesStore(st), catalogStore,
		src.Collection(UserFavoritesPath(userID)), log)
	e.Orders = repo.NewOrdersRepository(userID, store.NewOrderStore(st),
		src.Collection(UserOrdersPath(userID)), log)
	e.Profile = repo.NewProfileRepository(userID, store.NewProfileStore(st),
		src.Collection(UserProfilePath(userID)), log)
	return e, nil
}

// StartRealtimeSync begins catalog realtime sync (idempotent).
func (e *Engine) StartRealtimeSync(ctx context.Context) error {
	return e.Catalog.StartRealtimeSync(ctx)
}

// Close stops catalog sync and detaches every user-scoped listener.
func (e *Engine) Close() {
	e.Catalog.StopRealtimeSync()
	e.Cart.Close()
	e.Favorites.Close()
	e.Orders.Close()
	e.Profile.Close()
}

// ClearUserData drops every cached row of the user, used on logout or
// account switch. The catalog cache is shared and stays.
func (e *Engine) ClearUserData(ctx context.Context) error {
	var errs []error
	errs = append(errs, e.Cart.ClearLocal(ctx))
	errs = append(errs, e.Favorites.ClearLocal(ctx))
	errs = append(errs, e.Orders.ClearLocal(ctx))
	errs = append(errs, e.Profile.ClearLocal(ctx))
	return errors.Join(errs...)
}
