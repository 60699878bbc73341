package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/opencanarias/taple-client-sub000/pkg/backend"
	"github.com/opencanarias/taple-client-sub000/pkg/collection"
	"github.com/opencanarias/taple-client-sub000/pkg/keys"
	"github.com/opencanarias/taple-client-sub000/pkg/store"
)

const (
	// maxBodyBytes bounds the size of a stored value
	maxBodyBytes = 4 << 20
	// defaultExplainSamples is the number of samples explain returns
	defaultExplainSamples = 10
	metricsInterval       = 30 * time.Second
)

// Server holds the API server state
type Server struct {
	store         *store.Store
	systemService *SystemService
	config        ServerConfig
	metrics       *Metrics
	registry      *prometheus.Registry
	logger        *zap.Logger
}

// NewServer creates a new API server with its own metrics registry.
// systemService may be nil, in which case only the configured keys
// authenticate and the system routes are not mounted.
func NewServer(st *store.Store, systemService *SystemService, config ServerConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	registry := prometheus.NewRegistry()
	return &Server{
		store:         st,
		systemService: systemService,
		config:        config,
		metrics:       NewMetrics(registry),
		registry:      registry,
		logger:        logger,
	}
}

// handleHealth godoc
//
//	@Summary		Health check
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	map[string]string
//	@Router			/health [get]
//	@Security		ApiKeyAuth
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.metrics.RecordHealthCheck(true)
	sendSuccess(w, r, map[string]string{"status": "healthy"})
}

// collectionPath builds the path of the collection a request addresses:
// the {collection} URL parameter followed by every ?partition= value in
// order.
func (s *Server) collectionPath(r *http.Request) (keys.Path, error) {
	name := chi.URLParam(r, "collection")
	if strings.HasPrefix(name, "_") {
		return keys.Path{}, fmt.Errorf("%w: %s", errReservedCollection, name)
	}

	path, err := keys.Root(name, s.store.RootMode())
	if err != nil {
		return keys.Path{}, err
	}
	for _, partition := range r.URL.Query()["partition"] {
		if path, err = path.Child(partition); err != nil {
			return keys.Path{}, err
		}
	}
	return path, nil
}

// openCollection opens the document collection a request addresses. The
// caller must close it.
func (s *Server) openCollection(r *http.Request) (*collection.Collection[store.Document], error) {
	path, err := s.collectionPath(r)
	if err != nil {
		return nil, err
	}
	return store.At(s.store, path, store.DocumentCodec())
}

// entryKey returns the {key} URL parameter, path-unescaped when the request
// carried an escaped path.
func entryKey(r *http.Request) (string, error) {
	key := chi.URLParam(r, "key")
	if r.URL.RawPath == "" {
		return key, nil
	}
	unescaped, err := url.PathUnescape(key)
	if err != nil {
		return "", fmt.Errorf("%w: bad escaping in %q", keys.ErrInvalidKey, key)
	}
	return unescaped, nil
}

// withEntry opens the addressed collection and resolves the entry key, then
// runs fn and records its outcome as a collection operation.
func (s *Server) withEntry(w http.ResponseWriter, r *http.Request, op string,
	fn func(c *collection.Collection[store.Document], key string) error) {
	start := time.Now()

	err := func() error {
		key, err := entryKey(r)
		if err != nil {
			return err
		}
		c, err := s.openCollection(r)
		if err != nil {
			return err
		}
		defer c.Close()
		return fn(c, key)
	}()

	s.metrics.RecordDBOperation(op, err == nil || errors.Is(err, collection.ErrEntryNotFound), time.Since(start))
	if err != nil {
		sendErr(w, r, err)
	}
}

// handlePut godoc
//
//	@Summary		Put an entry
//	@Description	Store a JSON value under a key of a collection or partition
//	@Tags			collections
//	@Accept			json
//	@Produce		json
//	@Param			collection	path		string		true	"Root collection"
//	@Param			key			path		string		true	"Key"
//	@Param			partition	query		[]string	false	"Partition path below the collection"
//	@Param			body		body		object		true	"Value"
//	@Success		200			{object}	map[string]string
//	@Failure		400			{object}	map[string]string
//	@Failure		403			{object}	map[string]string
//	@Router			/collections/{collection}/entries/{key} [put]
//	@Security		ApiKeyAuth
func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.metrics.RecordDBOperation("put", false, 0)
		sendError(w, r, "Failed to read request body", http.StatusBadRequest)
		return
	}
	if !json.Valid(body) {
		s.metrics.RecordDBOperation("put", false, 0)
		sendError(w, r, "Invalid JSON in request body", http.StatusBadRequest)
		return
	}

	s.withEntry(w, r, "put", func(c *collection.Collection[store.Document], key string) error {
		if err := c.Put(key, store.Document(body)); err != nil {
			return err
		}
		sendSuccess(w, r, map[string]string{"message": "Entry stored successfully", "key": key})
		return nil
	})
}

// handleGet godoc
//
//	@Summary		Get an entry
//	@Tags			collections
//	@Produce		json
//	@Param			collection	path		string		true	"Root collection"
//	@Param			key			path		string		true	"Key"
//	@Param			partition	query		[]string	false	"Partition path below the collection"
//	@Success		200			{object}	EntryResponse
//	@Failure		404			{object}	map[string]string
//	@Router			/collections/{collection}/entries/{key} [get]
//	@Security		ApiKeyAuth
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	s.withEntry(w, r, "get", func(c *collection.Collection[store.Document], key string) error {
		value, err := c.Get(key)
		if err != nil {
			return err
		}
		sendSuccess(w, r, EntryResponse{Key: key, Path: []string{key}, Value: json.RawMessage(value)})
		return nil
	})
}

// handleDelete godoc
//
//	@Summary		Delete an entry
//	@Description	Deleting an absent key succeeds
//	@Tags			collections
//	@Produce		json
//	@Param			collection	path		string		true	"Root collection"
//	@Param			key			path		string		true	"Key"
//	@Param			partition	query		[]string	false	"Partition path below the collection"
//	@Success		200			{object}	map[string]string
//	@Router			/collections/{collection}/entries/{key} [delete]
//	@Security		ApiKeyAuth
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	s.withEntry(w, r, "delete", func(c *collection.Collection[store.Document], key string) error {
		if err := c.Delete(key); err != nil {
			return err
		}
		sendSuccess(w, r, map[string]string{"message": "Entry deleted successfully", "key": key})
		return nil
	})
}

// handleList godoc
//
//	@Summary		Scan a collection
//	@Description	List the entries of a collection or partition, including those of nested partitions, in key order
//	@Tags			collections
//	@Produce		json
//	@Param			collection	path		string		true	"Root collection"
//	@Param			partition	query		[]string	false	"Partition path below the collection"
//	@Param			reverse		query		bool		false	"Descending key order"
//	@Param			limit		query		int			false	"Maximum number of entries"
//	@Success		200			{object}	ListResponse
//	@Router			/collections/{collection}/entries [get]
//	@Security		ApiKeyAuth
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	query := r.URL.Query()

	reverse := false
	if v := query.Get("reverse"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			sendError(w, r, "reverse must be a boolean", http.StatusBadRequest)
			return
		}
		reverse = parsed
	}

	limit := 0
	if v := query.Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			sendError(w, r, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	c, err := s.openCollection(r)
	if err != nil {
		s.metrics.RecordDBOperation("scan", false, time.Since(start))
		sendErr(w, r, err)
		return
	}
	defer c.Close()

	dir := backend.Forward
	if reverse {
		dir = backend.Reverse
	}
	entries, err := collection.Collect(c.Scan(dir), limit)
	s.metrics.RecordDBOperation("scan", err == nil, time.Since(start))
	if err != nil {
		sendErr(w, r, err)
		return
	}
	s.metrics.RecordScan(reverse, len(entries))

	resp := ListResponse{
		Collection: chi.URLParam(r, "collection"),
		Partitions: query["partition"],
		Reverse:    reverse,
		Count:      len(entries),
		Entries:    make([]EntryResponse, 0, len(entries)),
	}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, EntryResponse{
			Key:   e.Key,
			Path:  strings.Split(e.Key, keys.SeparatorString),
			Value: json.RawMessage(e.Value),
		})
	}

	sendSuccess(w, r, resp)
}

// handleExplain godoc
//
//	@Summary		Get store explain information
//	@Description	Report keys, sizes and partitions per root collection
//	@Tags			diagnostics
//	@Produce		json
//	@Param			collection	query		string	false	"Root collection to explain"
//	@Param			samples		query		int		false	"Number of sample entries"
//	@Success		200			{object}	store.ExplainResult
//	@Router			/explain [get]
//	@Security		ApiKeyAuth
func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	opts := store.ExplainOptions{
		WithSamples: defaultExplainSamples,
		Collection:  r.URL.Query().Get("collection"),
	}
	if v := r.URL.Query().Get("samples"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			sendError(w, r, "samples must be a non-negative integer", http.StatusBadRequest)
			return
		}
		opts.WithSamples = n
	}

	result, err := s.store.Explain(r.Context(), opts)
	if err != nil {
		sendError(w, r, fmt.Sprintf("Failed to get explain data: %v", err), statusFor(err))
		return
	}

	sendSuccess(w, r, result)
}

// handleStats godoc
//
//	@Summary		Get store statistics
//	@Tags			diagnostics
//	@Produce		json
//	@Success		200	{object}	store.StoreStats
//	@Router			/stats [get]
//	@Security		ApiKeyAuth
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		sendError(w, r, fmt.Sprintf("Failed to get stats: %v", err), statusFor(err))
		return
	}
	s.metrics.UpdateDBStats(stats.Keys, stats.DataSize)
	sendSuccess(w, r, stats)
}

// startMetricsUpdater periodically updates backend metrics until ctx is done
func (s *Server) startMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats, err := s.store.Stats(ctx)
			if err != nil {
				s.logger.Warn("failed to collect store stats", zap.Error(err))
				continue
			}
			s.metrics.UpdateDBStats(stats.Keys, stats.DataSize)
		}
	}
}

// System API handlers

// handleCreateAPIKey godoc
//
//	@Summary		Create a new API key
//	@Description	ID and key are generated when omitted
//	@Tags			system
//	@Accept			json
//	@Produce		json
//	@Param			request	body		CreateAPIKeyRequest	true	"API key details"
//	@Success		200		{object}	APIKey
//	@Router			/system/api-keys [post]
//	@Security		ApiKeyAuth
func (s *Server) handleCreateAPIKey(w http.ResponseWriter, r *http.Request) {
	var req CreateAPIKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, r, "Invalid JSON request", http.StatusBadRequest)
		return
	}
	if req.TTLSeconds < 0 {
		sendError(w, r, "ttl_seconds must not be negative", http.StatusBadRequest)
		return
	}

	apiKey, err := s.systemService.CreateAPIKey(req)
	if err != nil {
		sendError(w, r, fmt.Sprintf("Failed to create API key: %v", err), statusFor(err))
		return
	}

	sendSuccess(w, r, apiKey)
}

// handleListAPIKeys godoc
//
//	@Summary		List all API key IDs
//	@Tags			system
//	@Produce		json
//	@Success		200	{object}	map[string]interface{}
//	@Router			/system/api-keys [get]
//	@Security		ApiKeyAuth
func (s *Server) handleListAPIKeys(w http.ResponseWriter, r *http.Request) {
	ids, err := s.systemService.ListAPIKeys()
	if err != nil {
		sendError(w, r, fmt.Sprintf("Failed to list API keys: %v", err), statusFor(err))
		return
	}

	sendSuccess(w, r, map[string]interface{}{"api_keys": ids})
}

// handleGetAPIKey godoc
//
//	@Summary		Get API key details
//	@Tags			system
//	@Produce		json
//	@Param			id	path		string	true	"API key ID"
//	@Success		200	{object}	APIKey
//	@Failure		404	{object}	map[string]string
//	@Router			/system/api-keys/{id} [get]
//	@Security		ApiKeyAuth
func (s *Server) handleGetAPIKey(w http.ResponseWriter, r *http.Request) {
	apiKey, err := s.systemService.GetAPIKey(chi.URLParam(r, "id"))
	if err != nil {
		sendError(w, r, fmt.Sprintf("Failed to get API key: %v", err), statusFor(err))
		return
	}

	sendSuccess(w, r, apiKey)
}

// handleDeleteAPIKey godoc
//
//	@Summary		Delete an API key
//	@Tags			system
//	@Produce		json
//	@Param			id	path		string	true	"API key ID"
//	@Success		200	{object}	map[string]string
//	@Router			/system/api-keys/{id} [delete]
//	@Security		ApiKeyAuth
func (s *Server) handleDeleteAPIKey(w http.ResponseWriter, r *http.Request) {
	keyID := chi.URLParam(r, "id")
	if keyID == RootAPIKeyID {
		sendError(w, r, "The system root key cannot be deleted", http.StatusForbidden)
		return
	}

	if err := s.systemService.DeleteAPIKey(keyID); err != nil {
		sendError(w, r, fmt.Sprintf("Failed to delete API key: %v", err), statusFor(err))
		return
	}

	sendSuccess(w, r, map[string]string{"message": "API key deleted successfully"})
}

// handleGetSystemConfig godoc
//
//	@Summary		Get a system configuration value
//	@Tags			system
//	@Produce		json
//	@Param			key	path		string	true	"Configuration key"
//	@Success		200	{object}	map[string]interface{}
//	@Router			/system/config/{key} [get]
//	@Security		ApiKeyAuth
func (s *Server) handleGetSystemConfig(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var value interface{}
	if err := s.systemService.GetSystemConfig(key, &value); err != nil {
		sendError(w, r, fmt.Sprintf("Failed to get config: %v", err), statusFor(err))
		return
	}

	sendSuccess(w, r, map[string]interface{}{"key": key, "value": value})
}

// handleSetSystemConfig godoc
//
//	@Summary		Set a system configuration value
//	@Tags			system
//	@Accept			json
//	@Produce		json
//	@Param			key		path		string		true	"Configuration key"
//	@Param			value	body		interface{}	true	"Configuration value"
//	@Success		200		{object}	map[string]string
//	@Router			/system/config/{key} [put]
//	@Security		ApiKeyAuth
func (s *Server) handleSetSystemConfig(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var value interface{}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&value); err != nil {
		sendError(w, r, "Invalid JSON request", http.StatusBadRequest)
		return
	}

	if err := s.systemService.StoreSystemConfig(key, value); err != nil {
		sendError(w, r, fmt.Sprintf("Failed to set config: %v", err), statusFor(err))
		return
	}

	sendSuccess(w, r, map[string]string{"message": "Configuration updated successfully"})
}
