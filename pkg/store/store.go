// Package store opens the configured backend and hands out collections over
// it. It owns the process-wide backend reference.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/opencanarias/taple-client-sub000/pkg/backend"
	_ "github.com/opencanarias/taple-client-sub000/pkg/backend/bbolt"  // register driver
	_ "github.com/opencanarias/taple-client-sub000/pkg/backend/memory" // register driver
	_ "github.com/opencanarias/taple-client-sub000/pkg/backend/pebble" // register driver
	"github.com/opencanarias/taple-client-sub000/pkg/codec"
	"github.com/opencanarias/taple-client-sub000/pkg/collection"
	"github.com/opencanarias/taple-client-sub000/pkg/config"
	"github.com/opencanarias/taple-client-sub000/pkg/keys"
)

// SystemCollection is the root collection reserved for internal data.
const SystemCollection = "_system"

// Document is the value type of collections managed through the CLI and the
// REST API: any JSON value.
type Document = json.RawMessage

// Config holds the options for Open.
type Config struct {
	Backend  backend.Config
	RootMode keys.RootMode
	Logger   *zap.Logger
}

// FromConfig builds store options from the application configuration.
func FromConfig(c *config.Config, logger *zap.Logger) Config {
	cfg := c.BackendConfig()
	cfg.Logger = logger
	return Config{
		Backend:  cfg,
		RootMode: c.RootMode(),
		Logger:   logger,
	}
}

// Store owns one backend handle.
type Store struct {
	handle    *backend.Handle
	rootMode  keys.RootMode
	logger    *zap.Logger
	startTime time.Time

	mutex  sync.Mutex
	isOpen bool
}

// Open opens the backend described by cfg, creating its data directory if
// needed.
func Open(cfg Config) (*Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.Backend.Logger = logger

	if cfg.Backend.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Backend.Path), 0750); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	handle, err := backend.Open(cfg.Backend)
	if err != nil {
		return nil, err
	}

	return &Store{
		handle:    handle,
		rootMode:  cfg.RootMode,
		logger:    logger,
		startTime: time.Now(),
		isOpen:    true,
	}, nil
}

// Handle returns the shared backend handle.
func (s *Store) Handle() *backend.Handle {
	return s.handle
}

// RootMode returns the root layout collections are opened with.
func (s *Store) RootMode() keys.RootMode {
	return s.rootMode
}

// Collection opens the collection at path, a "/"-separated sequence of names
// such as "first/inner1", with codec c. The caller must close it.
func Collection[V any](s *Store, path string, c codec.Codec[V]) (*collection.Collection[V], error) {
	p, err := keys.ParsePath(path, s.rootMode)
	if err != nil {
		return nil, err
	}
	return At(s, p, c)
}

// At opens the collection at an already parsed path.
func At[V any](s *Store, p keys.Path, c codec.Codec[V]) (*collection.Collection[V], error) {
	segments := p.Segments()

	coll, err := collection.New[V](s.handle, segments[0], c,
		collection.WithRootMode(s.rootMode),
		collection.WithLogger(s.logger.Named("collection")))
	if err != nil {
		return nil, err
	}

	for _, name := range segments[1:] {
		child, err := coll.Partition(name)
		coll.Close()
		if err != nil {
			return nil, err
		}
		coll = child
	}

	return coll, nil
}

// DocumentCodec is the codec of document collections: checksummed JSON.
func DocumentCodec() codec.Codec[Document] {
	return codec.NewFramed[Document](codec.JSON[Document]{}, codec.FormatJSON)
}

// Documents opens the document collection at path.
func (s *Store) Documents(path string) (*collection.Collection[Document], error) {
	return Collection(s, path, DocumentCodec())
}

// Close releases the store's reference. The backend closes once every
// collection opened from the store is closed too.
func (s *Store) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isOpen {
		return nil
	}
	s.isOpen = false

	s.logger.Info("closing store",
		zap.String("driver", s.handle.Driver()),
		zap.Int64("open_references", s.handle.Refs()-1))
	return s.handle.Release()
}
