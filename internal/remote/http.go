package remote

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Client talks to a remoted document server over HTTP. One Client serves many
// collections; per-collection handles come from Collection().
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	// stream has no timeout; watch streams are long-lived and bounded only
	// by their context.
	stream *http.Client
	log    *zap.SugaredLogger
}

// NewClient builds a client for the server at baseURL. token, when non-empty,
// is sent as a bearer token on every request.
func NewClient(baseURL, token string, log *zap.SugaredLogger) *Client {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
		stream:  &http.Client{},
		log:     log,
	}
}

// Collection returns the handle for the collection at path.
func (c *Client) Collection(path string) Collection {
	return &httpCollection{client: c, path: path}
}

type httpCollection struct {
	client *Client
	path   string
}

var _ Collection = (*httpCollection)(nil)

func (h *httpCollection) Path() string { return h.path }

func (h *httpCollection) url(endpoint string) string {
	return h.client.baseURL + endpoint + "?c=" + url.QueryEscape(h.path)
}

func (h *httpCollection) do(ctx context.Context, op, method, endpoint string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return Errorf(CodeInvalidArgument, op, "encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, h.url(endpoint), body)
	if err != nil {
		return Errorf(CodeInvalidArgument, op, "build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.client.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.client.token)
	}
	resp, err := h.client.http.Do(req)
	if err != nil {
		// Transport failures count as generic network errors (retryable).
		return &Error{Code: CodeUnavailable, Op: op, Err: err}
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return statusError(op, resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return Errorf(CodeUnknown, op, "decode response: %w", err)
	}
	return nil
}

// statusError maps an HTTP status to the remote error taxonomy.
func statusError(op string, status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(status)
	}
	code := CodeUnknown
	switch status {
	case http.StatusServiceUnavailable, http.StatusBadGateway:
		code = CodeUnavailable
	case http.StatusGatewayTimeout, http.StatusRequestTimeout:
		code = CodeDeadlineExceeded
	case http.StatusTooManyRequests:
		code = CodeResourceExhausted
	case http.StatusForbidden:
		code = CodePermissionDenied
	case http.StatusUnauthorized:
		code = CodeUnauthenticated
	case http.StatusBadRequest:
		code = CodeInvalidArgument
	case http.StatusNotFound:
		code = CodeNotFound
	}
	return Errorf(code, op, "status %d: %s", status, msg)
}

type documentsResponse struct {
	Documents []Document `json:"documents"`
}

type idsResponse struct {
	IDs []string `json:"ids"`
}

type queryRequest struct {
	IDs []string `json:"ids"`
}

type commitRequest struct {
	Ops []commitOp `json:"ops"`
}

type commitOp struct {
	ID     string   `json:"id"`
	Data   Document `json:"data,omitempty"`
	Merge  bool     `json:"merge,omitempty"`
	Delete bool     `json:"delete,omitempty"`
}

func (h *httpCollection) FetchAll(ctx context.Context) ([]Document, error) {
	var out documentsResponse
	if err := h.do(ctx, "fetch_all", http.MethodGet, "/api/docs", nil, &out); err != nil {
		return nil, err
	}
	return out.Documents, nil
}

func (h *httpCollection) FetchByIDs(ctx context.Context, ids []string) ([]Document, error) {
	var out documentsResponse
	if err := h.do(ctx, "fetch_by_ids", http.MethodPost, "/api/docs/query", queryRequest{IDs: ids}, &out); err != nil {
		return nil, err
	}
	return out.Documents, nil
}

func (h *httpCollection) ListIDs(ctx context.Context) ([]string, error) {
	var out idsResponse
	if err := h.do(ctx, "list_ids", http.MethodGet, "/api/docs/ids", nil, &out); err != nil {
		return nil, err
	}
	return out.IDs, nil
}

func (h *httpCollection) Write(ctx context.Context, id string, data Document, merge bool) error {
	return h.BatchWrite(ctx, []WriteOp{{ID: id, Data: data, Merge: merge}})
}

func (h *httpCollection) BatchWrite(ctx context.Context, ops []WriteOp) error {
	req := commitRequest{Ops: make([]commitOp, 0, len(ops))}
	for _, op := range ops {
		req.Ops = append(req.Ops, commitOp(op))
	}
	return h.do(ctx, "batch_write", http.MethodPost, "/api/docs/commit", req, nil)
}

func (h *httpCollection) Delete(ctx context.Context, id string) error {
	return h.BatchWrite(ctx, []WriteOp{{ID: id, Delete: true}})
}

func (h *httpCollection) BatchDelete(ctx context.Context, ids []string) error {
	ops := make([]WriteOp, 0, len(ids))
	for _, id := range ids {
		ops = append(ops, WriteOp{ID: id, Delete: true})
	}
	return h.BatchWrite(ctx, ops)
}

// Listen subscribes to the server's watch stream (server-sent events). Every
// event carries the full collection snapshot. The goroutine exits and the
// channel closes when ctx is cancelled or the stream breaks.
func (h *httpCollection) Listen(ctx context.Context) (<-chan []Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url("/api/docs/watch"), nil)
	if err != nil {
		return nil, Errorf(CodeInvalidArgument, "listen", "build request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	if h.client.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.client.token)
	}
	resp, err := h.client.stream.Do(req)
	if err != nil {
		return nil, &Error{Code: CodeUnavailable, Op: "listen", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, statusError("listen", resp.StatusCode, data)
	}

	ch := make(chan []Document, 1)
	go func() {
		defer close(ch)
		defer resp.Body.Close()
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		var payload []byte
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "data: "):
				payload = append(payload, strings.TrimPrefix(line, "data: ")...)
			case line == "" && len(payload) > 0:
				var docs []Document
				if err := json.Unmarshal(payload, &docs); err != nil {
					h.client.log.Errorw("watch event decode failed", "collection", h.path, "error", err)
					payload = payload[:0]
					continue
				}
				payload = payload[:0]
				// Conflate undelivered snapshots, keep the newest.
				select {
				case <-ch:
				default:
				}
				select {
				case ch <- docs:
				case <-ctx.Done():
					return
				}
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			h.client.log.Warnw("watch stream closed", "collection", h.path, "error", err)
		}
	}()
	return ch, nil
}

// CollectionPath builds a user-scoped sub-collection path.
func CollectionPath(parts ...string) string {
	return strings.Join(parts, "/")
}
