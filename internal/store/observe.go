package store

import (
	"sync"

	"github.com/google/uuid"
)

// registry tracks active live queries. Every committed write that changed rows
// names the tables it touched; all registered queries over those tables are
// re-run, and subscribers see a new emission only when their result set
// actually differs from the last one delivered.
type registry struct {
	mu   sync.Mutex
	subs map[string]*liveQuery
}

type liveQuery struct {
	tables  map[string]bool
	refresh func()
	close   func()
}

func newRegistry() *registry {
	return &registry{subs: make(map[string]*liveQuery)}
}

func (r *registry) add(token string, q *liveQuery) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[token] = q
}

// remove drops the subscription and closes its channel. Idempotent.
func (r *registry) remove(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.subs[token]
	if !ok {
		return
	}
	delete(r.subs, token)
	q.close()
}

func (r *registry) notify(tables ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, q := range r.subs {
		for _, t := range tables {
			if q.tables[t] {
				q.refresh()
				break
			}
		}
	}
}

// active reports whether a token is still registered (test hook for leak checks).
func (r *registry) active(token string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.subs[token]
	return ok
}

// Subscription is a cancellable live query. C emits the current result set
// immediately on subscribe and again whenever a committed write changes it.
// Delivery is conflated: a slow consumer observes the latest state, not every
// intermediate one.
type Subscription[T any] struct {
	C <-chan []T

	token string
	store *Store
	once  sync.Once
}

// Token identifies this subscription in the store's tracking table.
func (s *Subscription[T]) Token() string { return s.token }

// Cancel detaches the live query. After Cancel returns no further emissions
// are delivered and the registry entry is gone.
func (s *Subscription[T]) Cancel() {
	s.once.Do(func() {
		s.store.reg.remove(s.token)
	})
}

// observe registers a live query over the given tables. equal gates
// re-emission: identical consecutive result sets are suppressed.
func observe[T any](s *Store, tables []string, query func() ([]T, error), equal func(a, b []T) bool) (*Subscription[T], error) {
	initial, err := query()
	if err != nil {
		return nil, err
	}

	ch := make(chan []T, 1)
	ch <- initial

	token := uuid.NewString()
	sub := &Subscription[T]{C: ch, token: token, store: s}

	last := initial
	tset := make(map[string]bool, len(tables))
	for _, t := range tables {
		tset[t] = true
	}

	q := &liveQuery{
		tables: tset,
		refresh: func() {
			next, err := query()
			if err != nil {
				s.log.Errorw("live query refresh failed", "token", token, "error", err)
				return
			}
			if equal(last, next) {
				return
			}
			last = next
			// Conflate: drop the undelivered emission, keep the newest.
			select {
			case <-ch:
			default:
			}
			ch <- next
		},
		close: func() { close(ch) },
	}
	s.reg.add(token, q)
	return sub, nil
}

// ActiveSubscriptions returns the number of registered live queries.
func (s *Store) ActiveSubscriptions() int {
	s.reg.mu.Lock()
	defer s.reg.mu.Unlock()
	return len(s.reg.subs)
}

func sliceEqual[T any](a, b []T, eq func(x, y T) bool) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !eq(a[i], b[i]) {
			return false
		}
	}
	return true
}
