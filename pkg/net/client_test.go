package net

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/leads.csv", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, clientAgent, r.Header.Get("User-Agent"))
		_, _ = io.WriteString(w, "lead_id\nL1\n")
	})
	mux.HandleFunc("/broken.csv", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestGetHTTPClient(t *testing.T) {
	client, err := GetHTTPClient()
	require.NoError(t, err)
	assert.NotNil(t, client)
	assert.NotNil(t, client.Jar)
}

func TestIsURL(t *testing.T) {
	assert.True(t, IsURL("https://example.com/leads.csv"))
	assert.True(t, IsURL("http://localhost:8080/leads.csv"))
	assert.False(t, IsURL("leads.csv"))
	assert.False(t, IsURL("/tmp/https.csv"))
}

func TestOpen(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	body, err := Open(ctx, srv.URL+"/leads.csv")
	require.NoError(t, err)
	b, err := io.ReadAll(body)
	require.NoError(t, body.Close())
	require.NoError(t, err)
	assert.Equal(t, "lead_id\nL1\n", string(b))

	_, err = Open(ctx, srv.URL+"/missing.csv")
	assert.ErrorIs(t, err, ErrorURLNotFound)

	_, err = Open(ctx, srv.URL+"/broken.csv")
	assert.ErrorContains(t, err, "502")
}

func TestDownload(t *testing.T) {
	srv := newTestServer(t)
	path := filepath.Join(t.TempDir(), "leads.csv")

	require.NoError(t, Download(context.Background(), srv.URL+"/leads.csv", path))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "lead_id\nL1\n", string(b))

	err = Download(context.Background(), srv.URL+"/missing.csv", filepath.Join(t.TempDir(), "x.csv"))
	assert.ErrorIs(t, err, ErrorURLNotFound)
}

func TestPrintHTTPResponse_Nil(t *testing.T) {
	// should not panic
	PrintHTTPResponse(nil)
}

func TestPrintHTTPResponse_WithResponse(t *testing.T) {
	resp := &http.Response{
		StatusCode: 200,
		Header:     http.Header{},
		Body:       http.NoBody,
	}
	// should not panic
	PrintHTTPResponse(resp)
}
