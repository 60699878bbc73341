package memory

import (
	"bytes"
	"errors"

	"github.com/google/btree"

	"github.com/opencanarias/taple-client-sub000/pkg/backend"
)

var errNotPositioned = errors.New("memory: iterator is not positioned")

// Iterator walks a snapshot tree. Each step is a fresh O(log n) descent
// from the current key.
type Iterator struct {
	tree       *btree.BTreeG[item]
	dir        backend.Direction
	positioned bool
	cur        item
	valid      bool
}

var _ backend.Iterator = (*Iterator)(nil)

func (it *Iterator) Seek(key []byte) {
	if it.tree == nil {
		return
	}
	it.positioned = true
	it.valid = false
	it.tree.AscendGreaterOrEqual(item{key: key}, func(i item) bool {
		it.cur, it.valid = i, true
		return false
	})
}

func (it *Iterator) Next() bool {
	if it.tree == nil {
		return false
	}
	if !it.positioned {
		it.positioned = true
		if it.dir == backend.Reverse {
			it.cur, it.valid = it.tree.Max()
		} else {
			it.cur, it.valid = it.tree.Min()
		}
		return it.valid
	}
	if !it.valid {
		return false
	}

	from := it.cur
	it.valid = false
	step := func(i item) bool {
		if bytes.Equal(i.key, from.key) {
			return true
		}
		it.cur, it.valid = i, true
		return false
	}
	if it.dir == backend.Reverse {
		it.tree.DescendLessOrEqual(from, step)
	} else {
		it.tree.AscendGreaterOrEqual(from, step)
	}
	return it.valid
}

func (it *Iterator) Valid() bool {
	return it.valid
}

func (it *Iterator) Key() []byte {
	if !it.valid {
		return nil
	}
	return clone(it.cur.key)
}

func (it *Iterator) Value() ([]byte, error) {
	if !it.valid {
		return nil, errNotPositioned
	}
	return clone(it.cur.value), nil
}

func (it *Iterator) Err() error {
	return nil
}

func (it *Iterator) Close() error {
	it.tree = nil
	it.valid = false
	return nil
}
