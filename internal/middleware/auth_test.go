package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func authEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "sub=%s admin=%v", Subject(r.Context()), IsAdmin(r.Context()))
	})
}

func callAuth(t *testing.T, header string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/docs", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	WithAuth(testSecret)(authEcho()).ServeHTTP(rec, req)
	return rec
}

func TestWithAuth_AnonymousPassesThrough(t *testing.T) {
	rec := callAuth(t, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sub= admin=false", rec.Body.String())
}

func TestWithAuth_ValidToken(t *testing.T) {
	tok, err := NewToken(testSecret, "u1", false)
	require.NoError(t, err)
	rec := callAuth(t, "Bearer "+tok)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sub=u1 admin=false", rec.Body.String())
}

func TestWithAuth_AdminToken(t *testing.T) {
	tok, err := NewToken(testSecret, "importer", true)
	require.NoError(t, err)
	rec := callAuth(t, "Bearer "+tok)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sub=importer admin=true", rec.Body.String())
}

func TestWithAuth_RejectsBadTokens(t *testing.T) {
	// malformed header scheme
	rec := callAuth(t, "Basic dXNlcjpwYXNz")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// garbage token
	rec = callAuth(t, "Bearer not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// wrong signing secret
	tok, err := NewToken("other-secret", "u1", false)
	require.NoError(t, err)
	rec = callAuth(t, "Bearer "+tok)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestClaimsFrom_NilForAnonymous(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Nil(t, ClaimsFrom(req.Context()))
	assert.Equal(t, "", Subject(req.Context()))
	assert.False(t, IsAdmin(req.Context()))
}
