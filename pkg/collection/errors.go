package collection

import (
	"errors"
	"fmt"
)

var (
	// ErrEntryNotFound is returned by Get for absent keys
	ErrEntryNotFound = errors.New("entry not found")
	// ErrClosed is returned by operations on a closed collection
	ErrClosed = errors.New("collection is closed")
)

// BackendError wraps a failure of the physical store. The collection layer
// never retries.
type BackendError struct {
	Op  string
	Key string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// CorruptEntryError is the panic value raised by a scanner that reads a
// stored value it cannot decode.
type CorruptEntryError struct {
	PhysicalKey []byte
	Err         error
}

func (e *CorruptEntryError) Error() string {
	return fmt.Sprintf("corrupt entry at physical key %q: %v", e.PhysicalKey, e.Err)
}

func (e *CorruptEntryError) Unwrap() error {
	return e.Err
}
