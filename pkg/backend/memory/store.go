// Package memory provides an in-process backend driver over an ordered
// B-tree. Data does not survive Close.
package memory

import (
	"bytes"
	"sync"

	"github.com/google/btree"

	"github.com/opencanarias/taple-client-sub000/pkg/backend"
)

// DriverName is the name the driver registers under.
const DriverName = "memory"

const degree = 32

func init() {
	backend.Register(DriverName, backend.DriverFunc(func(cfg backend.Config) (backend.Store, error) {
		return New(), nil
	}))
}

type item struct {
	key   []byte
	value []byte
}

func less(a, b item) bool {
	return bytes.Compare(a.key, b.key) < 0
}

// Store is a backend.Store held entirely in memory.
type Store struct {
	mu     sync.RWMutex
	tree   *btree.BTreeG[item]
	closed bool
}

var _ backend.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{tree: btree.NewG(degree, less)}
}

func (s *Store) Get(key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, backend.ErrClosed
	}

	it, ok := s.tree.Get(item{key: key})
	if !ok {
		return nil, backend.ErrNotFound
	}
	return clone(it.value), nil
}

func (s *Store) Put(key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return backend.ErrClosed
	}

	s.tree.ReplaceOrInsert(item{key: clone(key), value: clone(value)})
	return nil
}

func (s *Store) Delete(key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return backend.ErrClosed
	}

	s.tree.Delete(item{key: key})
	return nil
}

// NewIterator iterates over a copy-on-write snapshot of the tree.
func (s *Store) NewIterator(dir backend.Direction) (backend.Iterator, error) {
	// Clone mutates copy-on-write bookkeeping on the source tree.
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, backend.ErrClosed
	}
	return &Iterator{tree: s.tree.Clone(), dir: dir}, nil
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Len()
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.tree.Clear(false)
	return nil
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
