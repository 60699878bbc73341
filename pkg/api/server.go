// Package api serves collections over a REST API.
//
// @title           tapledb REST API
// @version         1.0.0
// @description     REST API for tapledb, a hierarchical collection store.
// @BasePath        /api/v1
//
// @securityDefinitions.apikey ApiKeyAuth
// @in              header
// @name            X-API-Key
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/opencanarias/taple-client-sub000/pkg/store"
)

const shutdownTimeout = 10 * time.Second

// Router builds the HTTP handler serving the API.
func (s *Server) Router() http.Handler {
	m := s.metrics

	r := chi.NewRouter()

	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Link", requestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Prometheus metrics endpoint (unprotected for scraping)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(m.InstrumentAuthMiddleware(apiKeyMiddleware(s.config.APIKey, s.systemService)))

			r.Get("/health", m.InstrumentHandler("GET", "/api/v1/health", s.handleHealth))

			r.Route("/collections/{collection}/entries", func(r chi.Router) {
				r.Get("/", m.InstrumentHandler("GET", "/api/v1/collections/{collection}/entries", s.handleList))
				r.Put("/{key}", m.InstrumentHandler("PUT", "/api/v1/collections/{collection}/entries/{key}", s.handlePut))
				r.Get("/{key}", m.InstrumentHandler("GET", "/api/v1/collections/{collection}/entries/{key}", s.handleGet))
				r.Delete("/{key}", m.InstrumentHandler("DELETE", "/api/v1/collections/{collection}/entries/{key}", s.handleDelete))
			})

			r.Get("/explain", m.InstrumentHandler("GET", "/api/v1/explain", s.handleExplain))
			r.Get("/stats", m.InstrumentHandler("GET", "/api/v1/stats", s.handleStats))
		})

		if s.systemService == nil {
			return
		}

		r.Route("/system", func(r chi.Router) {
			r.Use(m.InstrumentAuthMiddleware(systemKeyMiddleware(s.config.SystemKey)))

			r.Post("/api-keys", m.InstrumentHandler("POST", "/api/v1/system/api-keys", s.handleCreateAPIKey))
			r.Get("/api-keys", m.InstrumentHandler("GET", "/api/v1/system/api-keys", s.handleListAPIKeys))
			r.Get("/api-keys/{id}", m.InstrumentHandler("GET", "/api/v1/system/api-keys/{id}", s.handleGetAPIKey))
			r.Delete("/api-keys/{id}", m.InstrumentHandler("DELETE", "/api/v1/system/api-keys/{id}", s.handleDeleteAPIKey))
			r.Get("/config/{key}", m.InstrumentHandler("GET", "/api/v1/system/config/{key}", s.handleGetSystemConfig))
			r.Put("/config/{key}", m.InstrumentHandler("PUT", "/api/v1/system/config/{key}", s.handleSetSystemConfig))
		})
	})

	return r
}

// StartServer serves the API until ctx is cancelled, then shuts down
// gracefully. The system service is opened over st when a system key is
// configured.
func StartServer(ctx context.Context, st *store.Store, config ServerConfig, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("api")

	var systemService *SystemService
	if config.SystemKey != "" {
		var err error
		systemService, err = NewSystemService(st, SystemConfig{
			EncryptionKey: config.SystemEncryptionKey,
			Logger:        logger,
		})
		if err != nil {
			return fmt.Errorf("failed to open system service: %w", err)
		}
		defer systemService.Close()
	}

	server := NewServer(st, systemService, config, logger)

	bind := config.Bind
	if bind == "" {
		bind = "127.0.0.1"
	}
	httpServer := &http.Server{
		Addr:              net.JoinHostPort(bind, strconv.Itoa(config.Port)),
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go server.startMetricsUpdater(ctx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting REST API server",
			zap.String("addr", httpServer.Addr),
			zap.String("metrics", "/metrics"))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down REST API server")
	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}
