package remote

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-process document database: collections of JSON-shaped
// documents with atomic batched commits and snapshot push to listeners. Used
// by tests and by the dev server as its live hub.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string]*MemoryCollection
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*MemoryCollection)}
}

// Collection returns the collection at path, creating it empty on first use.
func (s *MemoryStore) Collection(path string) *MemoryCollection {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[path]
	if !ok {
		c = &MemoryCollection{
			path:      path,
			docs:      make(map[string]Document),
			listeners: make(map[string]*memListener),
		}
		s.collections[path] = c
	}
	return c
}

// Paths returns every collection path touched so far, sorted.
func (s *MemoryStore) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.collections))
	for p := range s.collections {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Source adapts the store to the Source interface (its Collection method
// returns the concrete type, which tests rely on).
func (s *MemoryStore) Source() Source { return memorySource{s} }

type memorySource struct{ s *MemoryStore }

func (m memorySource) Collection(path string) Collection { return m.s.Collection(path) }

type memListener struct {
	ch   chan []Document
	done <-chan struct{}
}

// MemoryCollection implements Collection in memory.
type MemoryCollection struct {
	path string

	mu        sync.Mutex
	docs      map[string]Document
	listeners map[string]*memListener

	// errHook, when set, is consulted before every operation; a non-nil
	// return aborts the call. Tests use it to inject transient failures.
	errHook func(op string) error
}

var _ Collection = (*MemoryCollection)(nil)

// SetErrorHook installs a fault-injection hook (tests only).
func (c *MemoryCollection) SetErrorHook(hook func(op string) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errHook = hook
}

func (c *MemoryCollection) fail(op string) error {
	if c.errHook != nil {
		return c.errHook(op)
	}
	return nil
}

func (c *MemoryCollection) Path() string { return c.path }

func (c *MemoryCollection) FetchAll(ctx context.Context) ([]Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.fail("fetch_all"); err != nil {
		return nil, err
	}
	return c.snapshotLocked(), nil
}

func (c *MemoryCollection) FetchByIDs(ctx context.Context, ids []string) ([]Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.fail("fetch_by_ids"); err != nil {
		return nil, err
	}
	out := make([]Document, 0, len(ids))
	for _, id := range ids {
		if d, ok := c.docs[id]; ok {
			out = append(out, cloneDoc(d))
		}
	}
	sortDocs(out)
	return out, nil
}

func (c *MemoryCollection) ListIDs(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.fail("list_ids"); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(c.docs))
	for id := range c.docs {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (c *MemoryCollection) Listen(ctx context.Context) (<-chan []Document, error) {
	c.mu.Lock()
	if err := c.fail("listen"); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	token := uuid.NewString()
	l := &memListener{ch: make(chan []Document, 1), done: ctx.Done()}
	l.ch <- c.snapshotLocked()
	c.listeners[token] = l
	c.mu.Unlock()

	go func() {
		<-ctx.Done()
		c.mu.Lock()
		if cur, ok := c.listeners[token]; ok {
			delete(c.listeners, token)
			close(cur.ch)
		}
		c.mu.Unlock()
	}()
	return l.ch, nil
}

// ListenerCount reports attached listeners (test hook for leak checks).
func (c *MemoryCollection) ListenerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.listeners)
}

func (c *MemoryCollection) Write(ctx context.Context, id string, data Document, merge bool) error {
	return c.BatchWrite(ctx, []WriteOp{{ID: id, Data: data, Merge: merge}})
}

func (c *MemoryCollection) BatchWrite(ctx context.Context, ops []WriteOp) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.fail("batch_write"); err != nil {
		return err
	}
	if len(ops) == 0 {
		return nil
	}
	// Apply to a scratch copy first; the commit is all-or-nothing.
	next := make(map[string]Document, len(c.docs))
	for id, d := range c.docs {
		next[id] = d
	}
	for _, op := range ops {
		if op.ID == "" {
			return Errorf(CodeInvalidArgument, "batch_write", "empty document id in %s", c.path)
		}
		if op.Delete {
			delete(next, op.ID)
			continue
		}
		doc := cloneDoc(op.Data)
		doc["id"] = op.ID
		if op.Merge {
			if old, ok := next[op.ID]; ok {
				merged := cloneDoc(old)
				for k, v := range doc {
					merged[k] = v
				}
				doc = merged
			}
		}
		next[op.ID] = doc
	}
	c.docs = next
	c.broadcastLocked()
	return nil
}

func (c *MemoryCollection) Delete(ctx context.Context, id string) error {
	return c.BatchWrite(ctx, []WriteOp{{ID: id, Delete: true}})
}

func (c *MemoryCollection) BatchDelete(ctx context.Context, ids []string) error {
	ops := make([]WriteOp, 0, len(ids))
	for _, id := range ids {
		ops = append(ops, WriteOp{ID: id, Delete: true})
	}
	return c.BatchWrite(ctx, ops)
}

// Seed loads documents without notifying listeners (server startup restore).
func (c *MemoryCollection) Seed(docs []Document) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range docs {
		if id := DocID(d); id != "" {
			c.docs[id] = cloneDoc(d)
		}
	}
}

func (c *MemoryCollection) snapshotLocked() []Document {
	out := make([]Document, 0, len(c.docs))
	for _, d := range c.docs {
		out = append(out, cloneDoc(d))
	}
	sortDocs(out)
	return out
}

// broadcastLocked pushes the full snapshot to every listener. Delivery is
// conflated per listener: an undelivered older snapshot is replaced by the
// newest one, so a slow consumer can never apply stale state last.
func (c *MemoryCollection) broadcastLocked() {
	snap := c.snapshotLocked()
	for _, l := range c.listeners {
		select {
		case <-l.done:
			continue
		default:
		}
		select {
		case <-l.ch:
		default:
		}
		l.ch <- snap
	}
}

func cloneDoc(d Document) Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

func sortDocs(docs []Document) {
	sort.Slice(docs, func(i, j int) bool { return DocID(docs[i]) < DocID(docs[j]) })
}
