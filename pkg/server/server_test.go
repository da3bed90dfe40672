package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/sunquote/sunquote/pkg/storage/storagemock"
)

func TestHealthz(t *testing.T) {
	srv := newTestServer(&storagemock.MockDatabase{})
	req := httptest.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()

	srv.handleHealthz(w, req)
	assert.Equal(t, http.StatusOK, w.Result().StatusCode)
	assert.Equal(t, "ok", w.Body.String())
}

func TestWebHandler(t *testing.T) {
	dist := fstest.MapFS{
		"index.html":     {Data: []byte("<html>app</html>")},
		"assets/main.js": {Data: []byte("console.log('hi')")},
	}
	srv := newTestServer(&storagemock.MockDatabase{})
	handler := srv.webHandler(dist, http.FileServer(http.FS(dist)))

	t.Run("Serves Existing File", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/assets/main.js", nil)
		w := httptest.NewRecorder()
		handler(w, req)
		assert.Equal(t, http.StatusOK, w.Result().StatusCode)
		assert.Contains(t, w.Body.String(), "console.log")
	})

	t.Run("SPA Fallback", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/quotes/abc123", nil)
		w := httptest.NewRecorder()
		handler(w, req)
		assert.Equal(t, http.StatusOK, w.Result().StatusCode)
		assert.Contains(t, w.Body.String(), "<html>app</html>")
	})

	t.Run("No Fallback For WellKnown", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/.well-known/acme", nil)
		w := httptest.NewRecorder()
		handler(w, req)
		assert.Equal(t, http.StatusNotFound, w.Result().StatusCode)
	})

	t.Run("Cache Header", func(t *testing.T) {
		srv.webCacheDuration = time.Hour
		req := httptest.NewRequest("GET", "/", nil)
		w := httptest.NewRecorder()
		handler(w, req)
		assert.Equal(t, "public, max-age=3600", w.Header().Get("Cache-Control"))
		srv.webCacheDuration = 0
	})
}

func TestSecurityHeaders(t *testing.T) {
	srv := newTestServer(&storagemock.MockDatabase{})
	handler := srv.securityHeadersMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, w.Header().Get("Strict-Transport-Security"))
}

func TestWriteJSONError(t *testing.T) {
	w := httptest.NewRecorder()
	writeJSONError(w, "something broke", http.StatusBadRequest)

	assert.Equal(t, http.StatusBadRequest, w.Result().StatusCode)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error": "something broke"}`, w.Body.String())
}
