// Package pebble provides the LSM backend driver, built on cockroachdb/pebble.
package pebble

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"go.uber.org/zap"

	"github.com/opencanarias/taple-client-sub000/pkg/backend"
)

// DriverName is the name the driver registers under.
const DriverName = "pebble"

// ComparerName identifies the key order on disk. Pebble refuses to open a
// database written with a differently named comparer.
const ComparerName = "tapledb.bytewise.v1"

// comparer is pebble's bytewise comparer under our own name. Collection range
// bounds depend on plain byte order.
var comparer = func() *pebble.Comparer {
	c := *pebble.DefaultComparer
	c.Name = ComparerName
	return &c
}()

const (
	defaultCacheSize    = 64 << 20
	defaultMemTableSize = 32 << 20
)

func init() {
	backend.Register(DriverName, backend.DriverFunc(func(cfg backend.Config) (backend.Store, error) {
		return Open(cfg)
	}))
}

// Store is a backend.Store over a pebble database.
type Store struct {
	db        *pebble.DB
	writeOpts *pebble.WriteOptions
	logger    *zap.Logger

	mu     sync.RWMutex
	closed bool
}

var _ backend.Store = (*Store)(nil)

// Open opens the pebble database at cfg.Path. An empty path opens an
// in-memory database that is discarded on Close.
func Open(cfg backend.Config) (*Store, error) {
	cacheSize := cfg.CacheSize
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	memTableSize := cfg.MemTableSize
	if memTableSize == 0 {
		memTableSize = defaultMemTableSize
	}

	cache := pebble.NewCache(cacheSize)
	defer cache.Unref()

	opts := &pebble.Options{
		Comparer:                    comparer,
		Cache:                       cache,
		MemTableSize:                memTableSize,
		MemTableStopWritesThreshold: 4,
	}
	if cfg.Path == "" {
		opts.FS = vfs.NewMem()
	}

	db, err := pebble.Open(cfg.Path, opts)
	if err != nil {
		return nil, fmt.Errorf("pebble: open %q: %w", cfg.Path, err)
	}

	writeOpts := pebble.NoSync
	if cfg.Sync {
		writeOpts = pebble.Sync
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Store{
		db:        db,
		writeOpts: writeOpts,
		logger:    logger.Named(DriverName),
	}, nil
}

func (s *Store) Get(key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, backend.ErrClosed
	}

	value, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, backend.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	result := make([]byte, len(value))
	copy(result, value)
	return result, nil
}

func (s *Store) Put(key, value []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return backend.ErrClosed
	}

	return s.db.Set(key, value, s.writeOpts)
}

func (s *Store) Delete(key []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return backend.ErrClosed
	}

	return s.db.Delete(key, s.writeOpts)
}

func (s *Store) NewIterator(dir backend.Direction) (backend.Iterator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, backend.ErrClosed
	}

	iter, err := s.db.NewIter(nil)
	if err != nil {
		return nil, fmt.Errorf("pebble: create iterator: %w", err)
	}
	return &Iterator{iter: iter, dir: dir}, nil
}

// Close flushes and closes the database. Closing twice is a no-op.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.db.Flush(); err != nil {
		s.logger.Warn("flush before close failed", zap.Error(err))
	}
	return s.db.Close()
}

// Metrics returns the engine's internal metrics.
func (s *Store) Metrics() *pebble.Metrics {
	return s.db.Metrics()
}
