package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	"github.com/opencanarias/taple-client-sub000/pkg/backend"
	"github.com/opencanarias/taple-client-sub000/pkg/codec"
	"github.com/opencanarias/taple-client-sub000/pkg/collection"
	"github.com/opencanarias/taple-client-sub000/pkg/keys"
	"github.com/opencanarias/taple-client-sub000/pkg/log"
)

const requestIDHeader = "X-Request-ID"

// errReservedCollection is returned for client access to internal collections
var errReservedCollection = errors.New("collection is reserved")

// requestLogger tags every request with an ID and logs its outcome.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get(requestIDHeader)
			if requestID == "" {
				requestID = ksuid.New().String()
			}
			w.Header().Set(requestIDHeader, requestID)

			ctx := log.WithFields(r.Context(),
				zap.String("request_id", requestID),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path))
			ctx = log.WithLogger(ctx, logger)
			reqLogger, ctx := log.LoggerFromContext(ctx, logger)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.Debug("request served",
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)))
		})
	}
}

func keyMatches(given, expected string) bool {
	return expected != "" && subtle.ConstantTimeCompare([]byte(given), []byte(expected)) == 1
}

// apiKeyMiddleware validates the X-API-Key header against the configured
// client key and, when system is set, the active keys stored in the system
// collection.
func apiKeyMiddleware(expectedKey string, system *SystemService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := r.Header.Get("X-API-Key")
			if apiKey == "" {
				sendError(w, r, "Missing X-API-Key header", http.StatusUnauthorized)
				return
			}
			if keyMatches(apiKey, expectedKey) {
				next.ServeHTTP(w, r)
				return
			}
			if system != nil {
				ok, err := system.ValidateAPIKey(apiKey)
				if err != nil {
					requestLog(r).Warn("api key lookup failed", zap.Error(err))
				}
				if ok {
					next.ServeHTTP(w, r)
					return
				}
			}
			sendError(w, r, "Invalid API key", http.StatusUnauthorized)
		})
	}
}

// systemKeyMiddleware restricts administrative routes to the system API key.
func systemKeyMiddleware(systemKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := r.Header.Get("X-API-Key")
			if apiKey == "" {
				sendError(w, r, "Missing X-API-Key header", http.StatusUnauthorized)
				return
			}
			if !keyMatches(apiKey, systemKey) {
				sendError(w, r, "System API key required", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requestLog returns the request's logger, or a no-op logger outside of
// requestLogger.
func requestLog(r *http.Request) *zap.Logger {
	logger, _ := log.LoggerFromContext(r.Context(), zap.NewNop())
	return logger
}

// statusFor maps collection errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, collection.ErrEntryNotFound), errors.Is(err, ErrAPIKeyNotFound):
		return http.StatusNotFound
	case errors.Is(err, keys.ErrInvalidKey), errors.Is(err, keys.ErrInvalidName):
		return http.StatusBadRequest
	case errors.Is(err, errReservedCollection):
		return http.StatusForbidden
	case errors.Is(err, codec.ErrSerialize), errors.Is(err, codec.ErrDeserialize):
		return http.StatusUnprocessableEntity
	case errors.Is(err, collection.ErrClosed), errors.Is(err, backend.ErrClosed), errors.Is(err, ErrSystemClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// sendSuccess sends a successful JSON response
func sendSuccess(w http.ResponseWriter, r *http.Request, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	response := APIResponse{
		Success:   true,
		Data:      data,
		RequestID: w.Header().Get(requestIDHeader),
	}
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

// sendError sends an error JSON response
func sendError(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	if statusCode >= http.StatusInternalServerError {
		requestLog(r).Error("request failed", zap.Int("status", statusCode), zap.String("error", message))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	response := APIResponse{
		Success:   false,
		Error:     message,
		RequestID: w.Header().Get(requestIDHeader),
	}
	_ = json.NewEncoder(w).Encode(response)
}

// sendErr sends err with the status statusFor assigns it.
func sendErr(w http.ResponseWriter, r *http.Request, err error) {
	sendError(w, r, err.Error(), statusFor(err))
}
