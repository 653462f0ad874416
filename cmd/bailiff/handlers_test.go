package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hearthmod/bailiff/moderation/rolestore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServer(t *testing.T, adminToken string) *Server {
	store := rolestore.NewMemRoleStore()
	require.NoError(t, store.Record(context.Background(), "123", "role-muted"))
	srv := &Server{
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		store:      store,
		adminToken: adminToken,
	}
	srv.setupEcho(":0")
	return srv
}

func doRequest(srv *Server, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {
	assert := assert.New(t)
	srv := testServer(t, "")

	rec := doRequest(srv, "/_health", "")
	assert.Equal(http.StatusOK, rec.Code)
	var out GenericStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal("ok", out.Status)
	assert.Equal("bailiff", out.Daemon)
}

func TestTrackedLookup(t *testing.T) {
	assert := assert.New(t)
	srv := testServer(t, "secret")

	rec := doRequest(srv, "/admin/tracked/123", "secret")
	assert.Equal(http.StatusOK, rec.Code)
	var out TrackedRolesOutput
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal("123", out.Member)
	assert.Equal([]string{"role-muted"}, out.Roles)

	// unknown members have an empty (not null) role list
	rec = doRequest(srv, "/admin/tracked/999", "secret")
	assert.Equal(http.StatusOK, rec.Code)
	assert.Contains(rec.Body.String(), `"roles":[]`)
}

func TestTrackedLookupAuth(t *testing.T) {
	assert := assert.New(t)
	srv := testServer(t, "secret")

	assert.Equal(http.StatusUnauthorized, doRequest(srv, "/admin/tracked/123", "").Code)
	assert.Equal(http.StatusForbidden, doRequest(srv, "/admin/tracked/123", "wrong").Code)

	// admin routes do not exist without a token
	srv = testServer(t, "")
	assert.Equal(http.StatusNotFound, doRequest(srv, "/admin/tracked/123", "").Code)
}
