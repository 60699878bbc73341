// Package backend defines the physical ordered key-value store that collections
// are layered on, and the reference-counted handle through which collections
// share it.
//
// A Store is a flat, totally ordered keyspace with bytewise key order. Drivers
// live in subpackages (pebble, bbolt, memory) and register themselves with
// Register; Open picks one by name.
package backend

import "errors"

var (
	// ErrNotFound is returned by Store.Get for absent keys
	ErrNotFound = errors.New("backend: key not found")
	// ErrClosed is returned by operations on a closed store or handle
	ErrClosed = errors.New("backend: store is closed")
	// ErrUnknownDriver is returned by Open for unregistered driver names
	ErrUnknownDriver = errors.New("backend: unknown driver")
)

// Direction is the order in which an Iterator walks the keyspace.
type Direction uint8

const (
	Forward Direction = iota
	Reverse
)

func (d Direction) String() string {
	if d == Reverse {
		return "reverse"
	}
	return "forward"
}

// Store is the physical ordered key-value engine.
type Store interface {
	Put(key, value []byte) error
	// Get returns ErrNotFound when key is absent.
	Get(key []byte) ([]byte, error)
	// Delete removes key. Deleting an absent key is not an error.
	Delete(key []byte) error
	// NewIterator returns an unpositioned iterator over a consistent view of
	// the store as of the call.
	NewIterator(dir Direction) (Iterator, error)
	Close() error
}

// Iterator walks a Store in one direction. It must only be used by one
// goroutine at a time and must be closed after use.
type Iterator interface {
	// Seek positions the iterator at the first key >= key. This holds for
	// Reverse iterators too: Seek never lands below key.
	Seek(key []byte)
	// Next moves one step in the iterator's direction. On an unpositioned
	// iterator it moves to the first key (Forward) or the last key (Reverse).
	// It returns false once the iterator is exhausted.
	Next() bool
	// Valid reports whether the iterator is positioned at an entry.
	Valid() bool
	// Key returns a copy of the current key.
	Key() []byte
	// Value returns a copy of the current value.
	Value() ([]byte, error)
	// Err returns any error the iterator hit while moving.
	Err() error
	Close() error
}
