package pebble

import (
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/opencanarias/taple-client-sub000/pkg/backend"
)

// Iterator adapts a pebble iterator to backend.Iterator. Pebble iterators
// read from an implicit snapshot taken at creation.
type Iterator struct {
	iter       *pebble.Iterator
	dir        backend.Direction
	positioned bool
	valid      bool
}

var _ backend.Iterator = (*Iterator)(nil)

func (it *Iterator) Seek(key []byte) {
	it.positioned = true
	it.valid = it.iter.SeekGE(key)
}

func (it *Iterator) Next() bool {
	if !it.positioned {
		it.positioned = true
		if it.dir == backend.Reverse {
			it.valid = it.iter.Last()
		} else {
			it.valid = it.iter.First()
		}
		return it.valid
	}
	// Exhausted iterators stay exhausted.
	if !it.valid {
		return false
	}
	if it.dir == backend.Reverse {
		it.valid = it.iter.Prev()
	} else {
		it.valid = it.iter.Next()
	}
	return it.valid
}

func (it *Iterator) Valid() bool {
	return it.valid
}

func (it *Iterator) Key() []byte {
	key := it.iter.Key()
	result := make([]byte, len(key))
	copy(result, key)
	return result
}

func (it *Iterator) Value() ([]byte, error) {
	if !it.valid {
		return nil, fmt.Errorf("pebble: iterator is not positioned")
	}

	val, err := it.iter.ValueAndErr()
	if err != nil {
		return nil, fmt.Errorf("pebble: read value: %w", err)
	}

	result := make([]byte, len(val))
	copy(result, val)
	return result, nil
}

func (it *Iterator) Err() error {
	return it.iter.Error()
}

func (it *Iterator) Close() error {
	return it.iter.Close()
}
