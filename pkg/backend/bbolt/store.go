// Package bbolt provides a single-file B+tree backend driver, built on
// go.etcd.io/bbolt. All entries live in one bucket.
package bbolt

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/opencanarias/taple-client-sub000/pkg/backend"
)

// DriverName is the name the driver registers under.
const DriverName = "bbolt"

var bucketName = []byte("entries")

// ErrPathRequired is returned when opening without a file path.
var ErrPathRequired = errors.New("bbolt: a file path is required")

func init() {
	backend.Register(DriverName, backend.DriverFunc(func(cfg backend.Config) (backend.Store, error) {
		return Open(cfg)
	}))
}

// Store is a backend.Store over a bbolt database file.
type Store struct {
	db     *bolt.DB
	logger *zap.Logger
}

var _ backend.Store = (*Store)(nil)

// Open opens or creates the bbolt file at cfg.Path.
func Open(cfg backend.Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, ErrPathRequired
	}

	db, err := bolt.Open(cfg.Path, 0o600, &bolt.Options{
		Timeout:         time.Second,
		NoSync:          !cfg.Sync,
		InitialMmapSize: 1 << 26,
	})
	if err != nil {
		return nil, fmt.Errorf("bbolt: open %q: %w", cfg.Path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("bbolt: create bucket: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Store{db: db, logger: logger.Named(DriverName)}, nil
}

func (s *Store) Get(key []byte) ([]byte, error) {
	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		// A cursor distinguishes an empty value from an absent key.
		k, v := tx.Bucket(bucketName).Cursor().Seek(key)
		if k == nil || !bytes.Equal(k, key) {
			return backend.ErrNotFound
		}
		value = make([]byte, len(v))
		copy(value, v)
		return nil
	})
	if err != nil {
		return nil, mapError(err)
	}
	return value, nil
}

func (s *Store) Put(key, value []byte) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		if value == nil {
			value = []byte{}
		}
		return tx.Bucket(bucketName).Put(key, value)
	})
	return mapError(err)
}

func (s *Store) Delete(key []byte) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Delete(key)
	})
	return mapError(err)
}

// NewIterator opens a read transaction that stays open until the iterator
// is closed. Long-lived iterators keep bbolt from reusing freed pages.
func (s *Store) NewIterator(dir backend.Direction) (backend.Iterator, error) {
	tx, err := s.db.Begin(false)
	if err != nil {
		return nil, mapError(err)
	}
	return &Iterator{tx: tx, cursor: tx.Bucket(bucketName).Cursor(), dir: dir}, nil
}

func (s *Store) Close() error {
	err := s.db.Close()
	if err != nil {
		s.logger.Warn("close failed", zap.Error(err))
	}
	return err
}

// Size returns the size of the database file in bytes.
func (s *Store) Size() int64 {
	var size int64
	_ = s.db.View(func(tx *bolt.Tx) error {
		size = tx.Size()
		return nil
	})
	return size
}

// Stats returns the database statistics.
func (s *Store) Stats() bolt.Stats {
	return s.db.Stats()
}

func mapError(err error) error {
	if errors.Is(err, bolt.ErrDatabaseNotOpen) {
		return backend.ErrClosed
	}
	return err
}
