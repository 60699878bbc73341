package backend

import (
	"sync"
	"sync/atomic"
)

// Handle is a reference-counted share of a Store. The Store is closed when
// the last reference is released.
type Handle struct {
	store    Store
	driver   string
	refs     atomic.Int64
	once     sync.Once
	closeErr error
}

// NewHandle wraps store in a handle holding one reference, owned by the caller.
func NewHandle(store Store, driver string) *Handle {
	h := &Handle{store: store, driver: driver}
	h.refs.Store(1)
	return h
}

// Retain takes an additional reference. It fails with ErrClosed once the
// store has been closed.
func (h *Handle) Retain() error {
	for {
		n := h.refs.Load()
		if n <= 0 {
			return ErrClosed
		}
		if h.refs.CompareAndSwap(n, n+1) {
			return nil
		}
	}
}

// Release drops a reference and closes the store when none remain. Releasing
// more references than were taken returns ErrClosed.
func (h *Handle) Release() error {
	n := h.refs.Add(-1)
	switch {
	case n > 0:
		return nil
	case n < 0:
		h.refs.Add(1)
		return ErrClosed
	}

	h.once.Do(func() {
		h.closeErr = h.store.Close()
	})
	return h.closeErr
}

// Refs returns the number of live references.
func (h *Handle) Refs() int64 {
	return h.refs.Load()
}

// Store returns the underlying store.
func (h *Handle) Store() Store {
	return h.store
}

// Driver returns the name of the driver that opened the store.
func (h *Handle) Driver() string {
	return h.driver
}
