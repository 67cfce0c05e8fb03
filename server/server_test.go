package server_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/imrenagi/docstore/api/documents"
	"github.com/imrenagi/docstore/config"
	. "github.com/imrenagi/docstore/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHandler(t *testing.T) http.Handler {
	cfg := config.Default()
	cfg.Storage.Dir = t.TempDir()

	svc, closeFn, err := NewService(t.Context(), cfg)
	require.NoError(t, err)
	t.Cleanup(closeFn)

	ctrl, err := documents.NewController(svc)
	require.NoError(t, err)
	return NewHTTPHandler(ctrl, cfg.Storage.URLPrefix)
}

func TestRoutes(t *testing.T) {
	h := newHandler(t)

	tests := []struct {
		method string
		target string
		code   int
	}{
		{http.MethodGet, "/", http.StatusOK},
		{http.MethodGet, "/documents", http.StatusOK},
		{http.MethodGet, "/labels", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodDelete, "/documents/missing.txt", http.StatusNotFound},
		{http.MethodGet, "/uploads/missing.txt", http.StatusNotFound},
		{http.MethodGet, "/uploads/meta.json", http.StatusNotFound},
		{http.MethodGet, "/upload", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(tt.method, tt.target, nil))
			assert.Equal(t, tt.code, w.Code)
		})
	}
}

func TestCORS(t *testing.T) {
	h := newHandler(t)
	const origin = "http://localhost:3000"

	t.Run("Preflight requests are answered for any origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/documents/a.txt", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Contains(t, []int{http.StatusOK, http.StatusNoContent}, w.Code)
		assert.Equal(t, origin, w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("The origin is echoed on simple requests", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", origin)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, origin, w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestNewServiceRejectsUnknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Backend = "ftp"

	_, _, err := NewService(t.Context(), cfg)
	assert.Error(t, err)
}
