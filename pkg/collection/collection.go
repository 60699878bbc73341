// Package collection exposes named, ordered key-value collections layered on
// one shared backend store.
//
// A root collection is created with New. Partition derives a child collection
// whose entries live inside the parent's key range, so scanning a collection
// also yields the entries of all its descendants. Their keys come back with
// the descendant path still attached:
//
//	first.Put("a", v)        // scan of first yields "a"
//	inner1.Put("b", v)       // scan of first yields "inner1\U0010FFFFb"
//
// Collections share the backend through a reference-counted handle. Every
// collection and every open scanner holds a reference, and the store is
// closed when the last one is released.
package collection

import (
	"errors"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/opencanarias/taple-client-sub000/pkg/backend"
	"github.com/opencanarias/taple-client-sub000/pkg/codec"
	"github.com/opencanarias/taple-client-sub000/pkg/keys"
)

// DatabaseCollection is the capability set consumers need from a collection.
type DatabaseCollection[V any] interface {
	Put(key string, value V) error
	Get(key string) (V, error)
	Delete(key string) error
	Iter() *Scanner[V]
	RevIter() *Scanner[V]
	Close() error
}

// Collection is a handle to one partition path. It caches nothing; every
// operation goes to the backend.
type Collection[V any] struct {
	handle *backend.Handle
	path   keys.Path
	prefix []byte
	codec  codec.Codec[V]
	logger *zap.Logger
	closed atomic.Bool
}

var _ DatabaseCollection[struct{}] = (*Collection[struct{}])(nil)

// New creates the root collection name over h and takes a reference on h.
func New[V any](h *backend.Handle, name string, c codec.Codec[V], opts ...Option) (*Collection[V], error) {
	o := options{logger: zap.NewNop(), rootMode: keys.SeparatedRoot}
	for _, opt := range opts {
		opt(&o)
	}

	path, err := keys.Root(name, o.rootMode)
	if err != nil {
		return nil, err
	}

	return newCollection(h, path, c, o.logger)
}

func newCollection[V any](h *backend.Handle, path keys.Path, c codec.Codec[V], logger *zap.Logger) (*Collection[V], error) {
	if err := h.Retain(); err != nil {
		return nil, ErrClosed
	}
	return &Collection[V]{
		handle: h,
		path:   path,
		prefix: path.Prefix(),
		codec:  c,
		logger: logger,
	}, nil
}

// Partition derives the child collection name. Derivation has no side
// effects: the same name always addresses the same entries, whether or not
// anything was stored under it before. The child holds its own reference and
// must be closed separately.
func (c *Collection[V]) Partition(name string) (*Collection[V], error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}

	path, err := c.path.Child(name)
	if err != nil {
		return nil, err
	}

	return newCollection(c.handle, path, c.codec, c.logger)
}

// Put stores value under key, replacing any previous value.
func (c *Collection[V]) Put(key string, value V) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if err := keys.ValidateKey(key); err != nil {
		return err
	}

	data, err := c.codec.Encode(value)
	if err != nil {
		return err
	}

	if err := c.handle.Store().Put(keys.Compose(c.prefix, key), data); err != nil {
		return &BackendError{Op: "put", Key: key, Err: err}
	}

	c.logger.Debug("put", zap.Stringer("collection", c.path), zap.String("key", key), zap.Int("size", len(data)))
	return nil
}

// Get returns the value stored under key, or ErrEntryNotFound.
func (c *Collection[V]) Get(key string) (V, error) {
	var zero V
	if c.closed.Load() {
		return zero, ErrClosed
	}
	if err := keys.ValidateKey(key); err != nil {
		return zero, err
	}

	data, err := c.handle.Store().Get(keys.Compose(c.prefix, key))
	if errors.Is(err, backend.ErrNotFound) {
		return zero, ErrEntryNotFound
	}
	if err != nil {
		return zero, &BackendError{Op: "get", Key: key, Err: err}
	}

	return c.codec.Decode(data)
}

// Delete removes key. Deleting an absent key succeeds.
func (c *Collection[V]) Delete(key string) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if err := keys.ValidateKey(key); err != nil {
		return err
	}

	if err := c.handle.Store().Delete(keys.Compose(c.prefix, key)); err != nil {
		return &BackendError{Op: "delete", Key: key, Err: err}
	}

	c.logger.Debug("delete", zap.Stringer("collection", c.path), zap.String("key", key))
	return nil
}

// Iter returns an ascending scanner over this collection and its descendants.
// The caller must Close it; see Scan.
func (c *Collection[V]) Iter() *Scanner[V] {
	return c.Scan(backend.Forward)
}

// RevIter returns a descending scanner over this collection and its
// descendants. It yields exactly the reverse of Iter. The caller must Close
// it; see Scan.
func (c *Collection[V]) RevIter() *Scanner[V] {
	return c.Scan(backend.Reverse)
}

// Scan returns a scanner in the given direction. The scanner holds a backend
// reference and an open iterator from the moment it is returned, so it must
// be closed, or drained to the end, even when it is never advanced. Pick the
// direction before building it rather than discarding one.
func (c *Collection[V]) Scan(dir backend.Direction) *Scanner[V] {
	if c.closed.Load() {
		return failedScanner[V](ErrClosed)
	}
	return newScanner(c.handle, c.prefix, c.codec, dir)
}

// Path returns the collection's partition path.
func (c *Collection[V]) Path() keys.Path {
	return c.path
}

// Name returns the last segment of the collection's path.
func (c *Collection[V]) Name() string {
	return c.path.Name()
}

// Close releases the collection's reference on the backend. Later calls
// return ErrClosed.
func (c *Collection[V]) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	return c.handle.Release()
}
