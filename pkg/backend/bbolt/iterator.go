package bbolt

import (
	"errors"

	bolt "go.etcd.io/bbolt"

	"github.com/opencanarias/taple-client-sub000/pkg/backend"
)

var errNotPositioned = errors.New("bbolt: iterator is not positioned")

// Iterator walks the bucket with a cursor inside a read transaction.
type Iterator struct {
	tx         *bolt.Tx
	cursor     *bolt.Cursor
	dir        backend.Direction
	positioned bool
	key        []byte
	value      []byte
}

var _ backend.Iterator = (*Iterator)(nil)

func (it *Iterator) Seek(key []byte) {
	if it.tx == nil {
		return
	}
	it.positioned = true
	it.set(it.cursor.Seek(key))
}

func (it *Iterator) Next() bool {
	if it.tx == nil {
		return false
	}
	if !it.positioned {
		it.positioned = true
		if it.dir == backend.Reverse {
			it.set(it.cursor.Last())
		} else {
			it.set(it.cursor.First())
		}
		return it.Valid()
	}
	if it.key == nil {
		return false
	}
	if it.dir == backend.Reverse {
		it.set(it.cursor.Prev())
	} else {
		it.set(it.cursor.Next())
	}
	return it.Valid()
}

func (it *Iterator) set(k, v []byte) {
	it.key, it.value = k, v
}

func (it *Iterator) Valid() bool {
	return it.key != nil
}

func (it *Iterator) Key() []byte {
	result := make([]byte, len(it.key))
	copy(result, it.key)
	return result
}

func (it *Iterator) Value() ([]byte, error) {
	if it.key == nil {
		return nil, errNotPositioned
	}
	result := make([]byte, len(it.value))
	copy(result, it.value)
	return result, nil
}

func (it *Iterator) Err() error {
	return nil
}

func (it *Iterator) Close() error {
	if it.tx == nil {
		return nil
	}
	tx := it.tx
	it.tx, it.cursor, it.key, it.value = nil, nil, nil, nil
	return tx.Rollback()
}
