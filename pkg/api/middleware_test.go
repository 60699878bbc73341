package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/opencanarias/taple-client-sub000/pkg/backend"
	"github.com/opencanarias/taple-client-sub000/pkg/codec"
	"github.com/opencanarias/taple-client-sub000/pkg/collection"
	"github.com/opencanarias/taple-client-sub000/pkg/keys"
	"github.com/opencanarias/taple-client-sub000/pkg/log"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestAPIKeyMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		apiKey         string
		requestHeader  string
		expectedStatus int
	}{
		{
			name:           "valid API key",
			apiKey:         "test-key",
			requestHeader:  "test-key",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "missing API key header",
			apiKey:         "test-key",
			requestHeader:  "",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "invalid API key",
			apiKey:         "test-key",
			requestHeader:  "wrong-key",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "no key configured",
			apiKey:         "",
			requestHeader:  "anything",
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := apiKeyMiddleware(tt.apiKey, nil)(okHandler)

			req := httptest.NewRequest("GET", "/test", nil)
			if tt.requestHeader != "" {
				req.Header.Set("X-API-Key", tt.requestHeader)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestAPIKeyMiddleware_StoredKeys(t *testing.T) {
	server := setupTestServer(t, ServerConfig{APIKey: testClientKey, SystemKey: testSystemKey})
	system := server.systemService

	expired := time.Now().Add(-time.Minute)
	require.NoError(t, system.StoreAPIKey(APIKey{ID: "active", Key: "active-secret", IsActive: true}))
	require.NoError(t, system.StoreAPIKey(APIKey{ID: "inactive", Key: "inactive-secret", IsActive: false}))
	require.NoError(t, system.StoreAPIKey(APIKey{ID: "expired", Key: "expired-secret", IsActive: true, ExpiresAt: &expired}))

	handler := apiKeyMiddleware(testClientKey, system)(okHandler)

	tests := map[string]int{
		testClientKey:     http.StatusOK,
		"active-secret":   http.StatusOK,
		"inactive-secret": http.StatusUnauthorized,
		"expired-secret":  http.StatusUnauthorized,
		"unknown-secret":  http.StatusUnauthorized,
	}
	for key, want := range tests {
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("X-API-Key", key)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, want, w.Code, key)
	}
}

func TestSystemKeyMiddleware(t *testing.T) {
	handler := systemKeyMiddleware(testSystemKey)(okHandler)

	tests := map[string]int{
		"":            http.StatusUnauthorized,
		testClientKey: http.StatusForbidden,
		testSystemKey: http.StatusOK,
	}
	for key, want := range tests {
		req := httptest.NewRequest("GET", "/test", nil)
		if key != "" {
			req.Header.Set("X-API-Key", key)
		}
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, want, w.Code, "key %q", key)
	}
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	var fields []zap.Field
	handler := requestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fields = log.Fields(r.Context())
		requestLog(r).Info("inside handler")
		w.WriteHeader(http.StatusTeapot)
	}))

	t.Run("generates request ID", func(t *testing.T) {
		logs.TakeAll()
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/generated", nil))

		requestID := w.Header().Get(requestIDHeader)
		require.NotEmpty(t, requestID)
		assert.Contains(t, fields, zap.String("request_id", requestID))

		entries := logs.TakeAll()
		require.Len(t, entries, 2)
		assert.Equal(t, "inside handler", entries[0].Message)
		assert.Equal(t, requestID, entries[0].ContextMap()["request_id"])
		assert.Equal(t, "request served", entries[1].Message)
		assert.Equal(t, int64(http.StatusTeapot), entries[1].ContextMap()["status"])
	})

	t.Run("keeps incoming request ID", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/given", nil)
		req.Header.Set(requestIDHeader, "given-id")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, "given-id", w.Header().Get(requestIDHeader))
	})
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{collection.ErrEntryNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: x", ErrAPIKeyNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: bad", keys.ErrInvalidKey), http.StatusBadRequest},
		{fmt.Errorf("%w: bad", keys.ErrInvalidName), http.StatusBadRequest},
		{fmt.Errorf("%w: _system", errReservedCollection), http.StatusForbidden},
		{&codec.SerializeError{Err: errors.New("x")}, http.StatusUnprocessableEntity},
		{&codec.DeserializeError{Err: errors.New("x")}, http.StatusUnprocessableEntity},
		{collection.ErrClosed, http.StatusServiceUnavailable},
		{&collection.BackendError{Op: "get", Err: backend.ErrClosed}, http.StatusServiceUnavailable},
		{ErrSystemClosed, http.StatusServiceUnavailable},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestSendSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	w.Header().Set(requestIDHeader, "req-1")

	sendSuccess(w, httptest.NewRequest("GET", "/", nil), map[string]string{"message": "test"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp APIResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "req-1", resp.RequestID)
}

func TestSendError(t *testing.T) {
	tests := []struct {
		name       string
		message    string
		statusCode int
	}{
		{"bad request error", "Invalid request", http.StatusBadRequest},
		{"unauthorized error", "Not authorized", http.StatusUnauthorized},
		{"internal server error", "Server error", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			sendError(w, httptest.NewRequest("GET", "/", nil), tt.message, tt.statusCode)

			assert.Equal(t, tt.statusCode, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var resp APIResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.False(t, resp.Success)
			assert.Equal(t, tt.message, resp.Error)
		})
	}
}
