package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"shopsync/internal/middleware"
	"shopsync/internal/remote"
)

// DocsHandler serves collection-scoped document CRUD, batched commits and the
// watch stream.
type DocsHandler struct {
	hub     *remote.MemoryStore
	persist *Persistence
	log     *zap.SugaredLogger
}

func NewDocsHandler(hub *remote.MemoryStore, persist *Persistence, log *zap.SugaredLogger) *DocsHandler {
	return &DocsHandler{hub: hub, persist: persist, log: log}
}

// collection resolves the target collection and enforces access. User-scoped
// paths ("users/{uid}/...") are visible only to that user or an admin token;
// top-level catalog collections are world-readable but admin-writable.
func (h *DocsHandler) collection(w http.ResponseWriter, r *http.Request, write bool) (*remote.MemoryCollection, bool) {
	path := r.URL.Query().Get("c")
	if path == "" || strings.Contains(path, "..") {
		http.Error(w, "missing or invalid collection", http.StatusBadRequest)
		return nil, false
	}
	ctx := r.Context()
	if parts := strings.Split(path, "/"); parts[0] == "users" {
		if len(parts) < 3 {
			http.Error(w, "invalid user collection", http.StatusBadRequest)
			return nil, false
		}
		if !middleware.IsAdmin(ctx) && middleware.Subject(ctx) != parts[1] {
			http.Error(w, "forbidden", http.StatusForbidden)
			return nil, false
		}
	} else if write && !middleware.IsAdmin(ctx) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return nil, false
	}
	return h.hub.Collection(path), true
}

func (h *DocsHandler) List(w http.ResponseWriter, r *http.Request) {
	col, ok := h.collection(w, r, false)
	if !ok {
		return
	}
	docs, err := col.FetchAll(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"documents": docs})
}

func (h *DocsHandler) IDs(w http.ResponseWriter, r *http.Request) {
	col, ok := h.collection(w, r, false)
	if !ok {
		return
	}
	ids, err := col.ListIDs(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"ids": ids})
}

func (h *DocsHandler) Query(w http.ResponseWriter, r *http.Request) {
	col, ok := h.collection(w, r, false)
	if !ok {
		return
	}
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}
	docs, err := col.FetchByIDs(r.Context(), req.IDs)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"documents": docs})
}

func (h *DocsHandler) Commit(w http.ResponseWriter, r *http.Request) {
	col, ok := h.collection(w, r, true)
	if !ok {
		return
	}
	var req struct {
		Ops []struct {
			ID     string          `json:"id"`
			Data   remote.Document `json:"data,omitempty"`
			Merge  bool            `json:"merge,omitempty"`
			Delete bool            `json:"delete,omitempty"`
		} `json:"ops"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}
	ops := make([]remote.WriteOp, 0, len(req.Ops))
	for _, op := range req.Ops {
		ops = append(ops, remote.WriteOp{ID: op.ID, Data: op.Data, Merge: op.Merge, Delete: op.Delete})
	}
	if err := col.BatchWrite(r.Context(), ops); err != nil {
		if remote.CodeOf(err) == remote.CodeInvalidArgument {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	// Write-through persistence: the live hub already committed; a storage
	// failure is logged and repaired on next restart seed.
	if h.persist != nil {
		if err := h.persist.Apply(col.Path(), ops); err != nil {
			h.log.Errorw("persist commit failed", "collection", col.Path(), "error", err)
		}
	}
	writeJSON(w, map[string]any{"committed": len(ops)})
}

// Watch streams the full collection snapshot as a server-sent event on every
// change, starting with the current state.
func (h *DocsHandler) Watch(w http.ResponseWriter, r *http.Request) {
	col, ok := h.collection(w, r, false)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	ch, err := col.Listen(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for docs := range ch {
		payload, err := json.Marshal(docs)
		if err != nil {
			h.log.Errorw("watch encode failed", "collection", col.Path(), "error", err)
			continue
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return
		}
		flusher.Flush()
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
