package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"shopsync/internal/config"
	"shopsync/internal/middleware"
	"shopsync/internal/remote"
)

const testSecret = "test-secret"

type serverFixture struct {
	hub *remote.MemoryStore
	srv *httptest.Server
}

func newServerFixture(t *testing.T) serverFixture {
	t.Helper()
	hub := remote.NewMemoryStore()
	h := NewHandler(hub, nil, zap.NewNop().Sugar(), &config.Config{AuthSecret: testSecret})
	srv := httptest.NewServer(h.Router)
	t.Cleanup(srv.Close)
	return serverFixture{hub: hub, srv: srv}
}

func token(t *testing.T, sub string, admin bool) string {
	t.Helper()
	tok, err := middleware.NewToken(testSecret, sub, admin)
	require.NoError(t, err)
	return tok
}

func doRequest(t *testing.T, method, url, bearer string, body any) *http.Response {
	t.Helper()
	var payload *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		payload = bytes.NewReader(data)
	} else {
		payload = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, payload)
	require.NoError(t, err)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestDocs_CatalogIsWorldReadable(t *testing.T) {
	f := newServerFixture(t)
	f.hub.Collection("products").Seed([]remote.Document{{"id": "p1", "name": "Beans"}})

	resp := doRequest(t, http.MethodGet, f.srv.URL+"/api/docs?c=products", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Documents []remote.Document `json:"documents"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out.Documents, 1)
	assert.Equal(t, "Beans", out.Documents[0]["name"])
}

func TestDocs_MissingCollectionIsBadRequest(t *testing.T) {
	f := newServerFixture(t)
	resp := doRequest(t, http.MethodGet, f.srv.URL+"/api/docs", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, f.srv.URL+"/api/docs?c=users/../secrets", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDocs_CatalogWriteRequiresAdmin(t *testing.T) {
	f := newServerFixture(t)
	commit := map[string]any{"ops": []map[string]any{{"id": "p1", "data": map[string]any{"name": "Beans"}}}}

	resp := doRequest(t, http.MethodPost, f.srv.URL+"/api/docs/commit?c=products", "", commit)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = doRequest(t, http.MethodPost, f.srv.URL+"/api/docs/commit?c=products", token(t, "u1", false), commit)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = doRequest(t, http.MethodPost, f.srv.URL+"/api/docs/commit?c=products", token(t, "importer", true), commit)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	ids, err := f.hub.Collection("products").ListIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, ids)
}

func TestDocs_UserCollectionsAreScoped(t *testing.T) {
	f := newServerFixture(t)
	f.hub.Collection("users/u1/cart").Seed([]remote.Document{{"id": "p1", "quantity": 2.0}})

	// anonymous and foreign tokens are rejected
	resp := doRequest(t, http.MethodGet, f.srv.URL+"/api/docs?c=users/u1/cart", "", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp = doRequest(t, http.MethodGet, f.srv.URL+"/api/docs?c=users/u1/cart", token(t, "u2", false), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// the owner and an admin may read
	resp = doRequest(t, http.MethodGet, f.srv.URL+"/api/docs?c=users/u1/cart", token(t, "u1", false), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp = doRequest(t, http.MethodGet, f.srv.URL+"/api/docs?c=users/u1/cart", token(t, "support", true), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// the owner may write without admin rights
	commit := map[string]any{"ops": []map[string]any{{"id": "p2", "data": map[string]any{"quantity": 1}}}}
	resp = doRequest(t, http.MethodPost, f.srv.URL+"/api/docs/commit?c=users/u1/cart", token(t, "u1", false), commit)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDocs_InvalidTokenIsRejected(t *testing.T) {
	f := newServerFixture(t)
	resp := doRequest(t, http.MethodGet, f.srv.URL+"/api/docs?c=products", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	other, err := middleware.NewToken("wrong-secret", "u1", false)
	require.NoError(t, err)
	resp = doRequest(t, http.MethodGet, f.srv.URL+"/api/docs?c=products", other, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

// The HTTP client and the document server speak the same wire format; drive
// the full loop including the watch stream.
func TestDocs_EndToEndWithClient(t *testing.T) {
	f := newServerFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	admin := remote.NewClient(f.srv.URL, token(t, "importer", true), nil)
	products := admin.Collection("products")

	ch, err := products.Listen(ctx)
	require.NoError(t, err)

	require.NoError(t, products.BatchWrite(ctx, []remote.WriteOp{
		{ID: "p1", Data: remote.Document{"name": "Beans", "price": 12.5}},
		{ID: "p2", Data: remote.Document{"name": "Paper", "price": 3.1}},
	}))

	// the stream starts with the pre-write snapshot and follows the commit
	deadline := time.After(2 * time.Second)
	waitForCommit := func() []remote.Document {
		for {
			select {
			case docs, ok := <-ch:
				require.True(t, ok, "watch stream closed early")
				if len(docs) == 2 {
					return docs
				}
			case <-deadline:
				t.Fatal("watch stream never delivered the commit")
				return nil
			}
		}
	}
	streamed := waitForCommit()
	assert.Equal(t, "p1", remote.DocID(streamed[0]))

	docs, err := products.FetchByIDs(ctx, []string{"p2"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Paper", docs[0]["name"])

	require.NoError(t, products.Delete(ctx, "p1"))
	ids, err := products.ListIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"p2"}, ids)
}
