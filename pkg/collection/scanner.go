package collection

import (
	"iter"

	"github.com/opencanarias/taple-client-sub000/pkg/backend"
	"github.com/opencanarias/taple-client-sub000/pkg/codec"
	"github.com/opencanarias/taple-client-sub000/pkg/keys"
)

// Entry is one logical key and its decoded value.
type Entry[V any] struct {
	Key   string
	Value V
}

// Scanner walks the entries of one collection range in a single pass:
//
//	s := c.Iter()
//	defer s.Close()
//	for s.Next() {
//		use(s.Key(), s.Value())
//	}
//	if err := s.Err(); err != nil { ... }
//
// The backend iterator is opened when the scanner is created and observes the
// store as of that moment. It is released by Close or by reaching the end;
// a scanner that is dropped without either keeps the backend open.
//
// A stored value that fails to decode is not skipped. Next panics with a
// *CorruptEntryError instead, since it means the store holds data this
// collection did not write.
type Scanner[V any] struct {
	handle *backend.Handle
	it     backend.Iterator
	prefix []byte
	codec  codec.Codec[V]

	// pending is set while the iterator sits on an entry that Next has not
	// returned yet.
	pending bool
	done    bool
	key     string
	value   V
	err     error
}

func failedScanner[V any](err error) *Scanner[V] {
	return &Scanner[V]{err: err, done: true}
}

func newScanner[V any](h *backend.Handle, prefix []byte, c codec.Codec[V], dir backend.Direction) *Scanner[V] {
	if err := h.Retain(); err != nil {
		return failedScanner[V](ErrClosed)
	}

	s := &Scanner[V]{handle: h, prefix: prefix, codec: c}

	var err error
	if dir == backend.Reverse {
		err = s.seekReverse()
	} else {
		err = s.seekForward()
	}
	if err != nil {
		s.err = &BackendError{Op: "scan", Err: err}
		s.finish()
		return s
	}

	s.pending = true
	return s
}

// seekForward lands on the first physical key >= prefix.
func (s *Scanner[V]) seekForward() error {
	it, err := s.handle.Store().NewIterator(backend.Forward)
	if err != nil {
		return err
	}
	it.Seek(s.prefix)
	s.it = it
	return nil
}

// seekReverse lands on the last physical key below the range's upper bound.
// A seek on a reverse iterator finds the first key >= the bound, which lies
// outside the range, so one step back is needed. When nothing sorts at or
// after the bound, the range may end at the last key of the whole store and
// the iterator is reopened from there.
func (s *Scanner[V]) seekReverse() error {
	it, err := s.handle.Store().NewIterator(backend.Reverse)
	if err != nil {
		return err
	}

	it.Seek(keys.UpperBound(s.prefix))
	if it.Valid() {
		it.Next()
		s.it = it
		return nil
	}
	if err := it.Err(); err != nil {
		it.Close()
		return err
	}
	it.Close()

	it, err = s.handle.Store().NewIterator(backend.Reverse)
	if err != nil {
		return err
	}
	it.Next()
	s.it = it
	return nil
}

// Next advances to the next entry in range. It returns false when the range
// is exhausted or the backend failed; see Err.
func (s *Scanner[V]) Next() bool {
	if s.done {
		return false
	}

	if s.pending {
		s.pending = false
	} else {
		s.it.Next()
	}

	if !s.it.Valid() {
		if err := s.it.Err(); err != nil {
			s.err = &BackendError{Op: "scan", Err: err}
		}
		s.finish()
		return false
	}

	physical := s.it.Key()
	key, ok := keys.Strip(s.prefix, physical)
	if !ok {
		s.finish()
		return false
	}

	data, err := s.it.Value()
	if err != nil {
		s.err = &BackendError{Op: "scan", Key: key, Err: err}
		s.finish()
		return false
	}

	value, err := s.codec.Decode(data)
	if err != nil {
		s.finish()
		panic(&CorruptEntryError{PhysicalKey: physical, Err: err})
	}

	s.key, s.value = key, value
	return true
}

// Key returns the current logical key, relative to the scanned collection.
func (s *Scanner[V]) Key() string {
	return s.key
}

// Value returns the current decoded value.
func (s *Scanner[V]) Value() V {
	return s.value
}

// Err returns the first backend error met by the scanner.
func (s *Scanner[V]) Err() error {
	return s.err
}

// Close releases the backend iterator and the scanner's handle reference.
// It is safe to call more than once, and scanners that ran to the end are
// already closed.
func (s *Scanner[V]) Close() error {
	s.finish()
	return s.err
}

func (s *Scanner[V]) finish() {
	s.done = true
	if s.it != nil {
		if err := s.it.Close(); err != nil && s.err == nil {
			s.err = &BackendError{Op: "scan", Err: err}
		}
		s.it = nil
	}
	if s.handle != nil {
		if err := s.handle.Release(); err != nil && s.err == nil {
			s.err = &BackendError{Op: "scan", Err: err}
		}
		s.handle = nil
	}
}

// All returns the remaining entries as a range-over-func sequence. The
// scanner is closed when the loop ends.
func (s *Scanner[V]) All() iter.Seq2[string, V] {
	return func(yield func(string, V) bool) {
		defer s.Close()
		for s.Next() {
			if !yield(s.key, s.value) {
				return
			}
		}
	}
}

// Collect drains s into a slice and closes it. A positive limit stops after
// that many entries.
func Collect[V any](s *Scanner[V], limit int) ([]Entry[V], error) {
	defer s.Close()

	entries := []Entry[V]{}
	for s.Next() {
		entries = append(entries, Entry[V]{Key: s.Key(), Value: s.Value()})
		if limit > 0 && len(entries) >= limit {
			break
		}
	}
	return entries, s.Close()
}
