// Package remote talks to the server-hosted document database: collection
// scoped CRUD, batched commits and a realtime subscription that re-delivers
// the full collection snapshot on every change.
package remote

import "context"

// Document is one remote collection entry, JSON-shaped (numbers are float64,
// timestamps RFC3339 strings). Every document carries its id under "id".
type Document = map[string]any

// WriteOp is one entry of a batched commit. Delete=true removes the document,
// otherwise Data is set (Merge=true merges into the existing document).
type WriteOp struct {
	ID     string
	Data   Document
	Merge  bool
	Delete bool
}

// Collection is the logical interface of one remote collection (or one
// user-scoped sub-collection). Batched commits are atomic at the remote: no
// partial state is assumed committed on failure.
type Collection interface {
	// Path identifies the collection, e.g. "products" or "users/u1/cart".
	Path() string

	// FetchAll reads every document once.
	FetchAll(ctx context.Context) ([]Document, error)

	// FetchByIDs reads the documents whose id is in ids; missing ids are
	// simply absent from the result.
	FetchByIDs(ctx context.Context, ids []string) ([]Document, error)

	// ListIDs returns the ids of every document currently in the collection.
	ListIDs(ctx context.Context) ([]string, error)

	// Listen delivers the full current snapshot immediately and again after
	// every remote change, in arrival order. Cancelling ctx releases the
	// subscription and closes the channel.
	Listen(ctx context.Context) (<-chan []Document, error)

	// Write sets (or merges into) a single document.
	Write(ctx context.Context, id string, data Document, merge bool) error

	// BatchWrite commits all ops atomically.
	BatchWrite(ctx context.Context, ops []WriteOp) error

	// Delete removes a single document. Deleting an absent id is not an error.
	Delete(ctx context.Context, id string) error

	// BatchDelete removes all ids atomically.
	BatchDelete(ctx context.Context, ids []string) error
}

// Source hands out collection handles by path. Implemented by the HTTP
// client and by the in-memory store.
type Source interface {
	Collection(path string) Collection
}

// DocID extracts the document id.
func DocID(d Document) string {
	if v, ok := d["id"].(string); ok {
		return v
	}
	return ""
}
