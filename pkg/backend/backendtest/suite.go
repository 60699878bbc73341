// Package backendtest holds the behavioral checks every backend driver must
// pass. Driver packages call Run from their own tests.
package backendtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencanarias/taple-client-sub000/pkg/backend"
)

// Opener returns a fresh, empty store for one test case.
type Opener func(t *testing.T) backend.Store

// Run executes the driver checks against stores produced by open.
func Run(t *testing.T, open Opener) {
	tests := []struct {
		name string
		fn   func(t *testing.T, store backend.Store)
	}{
		{name: "put_get_delete", fn: testPutGetDelete},
		{name: "empty_value", fn: testEmptyValue},
		{name: "forward_iteration", fn: testForwardIteration},
		{name: "reverse_iteration", fn: testReverseIteration},
		{name: "seek", fn: testSeek},
		{name: "seek_past_end", fn: testSeekPastEnd},
		{name: "empty_store", fn: testEmptyStore},
		{name: "iterator_snapshot", fn: testIteratorSnapshot},
		{name: "returned_slices_are_copies", fn: testCopies},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := open(t)
			tc.fn(t, store)
		})
	}
}

func putAll(t *testing.T, store backend.Store, keys ...string) {
	t.Helper()
	for _, k := range keys {
		require.NoError(t, store.Put([]byte(k), []byte("value-"+k)))
	}
}

func drain(t *testing.T, it backend.Iterator) []string {
	t.Helper()
	var keys []string
	for it.Next() {
		keys = append(keys, string(it.Key()))
	}
	require.NoError(t, it.Err())
	return keys
}

func testPutGetDelete(t *testing.T, store backend.Store) {
	require.NoError(t, store.Put([]byte("a"), []byte("1")))

	got, err := store.Get([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), got)

	require.NoError(t, store.Put([]byte("a"), []byte("2")))
	got, err = store.Get([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), got)

	require.NoError(t, store.Delete([]byte("a")))
	_, err = store.Get([]byte("a"))
	assert.ErrorIs(t, err, backend.ErrNotFound)

	// Deleting again is not an error.
	require.NoError(t, store.Delete([]byte("a")))

	_, err = store.Get([]byte("missing"))
	assert.ErrorIs(t, err, backend.ErrNotFound)
}

func testEmptyValue(t *testing.T, store backend.Store) {
	require.NoError(t, store.Put([]byte("k"), []byte{}))

	got, err := store.Get([]byte("k"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func testForwardIteration(t *testing.T, store backend.Store) {
	putAll(t, store, "c", "a", "d", "b")

	it, err := store.NewIterator(backend.Forward)
	require.NoError(t, err)
	defer it.Close()

	assert.False(t, it.Valid())
	assert.Equal(t, []string{"a", "b", "c", "d"}, drain(t, it))
	assert.False(t, it.Valid())
	assert.False(t, it.Next())
}

func testReverseIteration(t *testing.T, store backend.Store) {
	putAll(t, store, "c", "a", "d", "b")

	it, err := store.NewIterator(backend.Reverse)
	require.NoError(t, err)
	defer it.Close()

	assert.Equal(t, []string{"d", "c", "b", "a"}, drain(t, it))
	assert.False(t, it.Next())
}

func testSeek(t *testing.T, store backend.Store) {
	putAll(t, store, "a", "b", "d", "e")

	fwd, err := store.NewIterator(backend.Forward)
	require.NoError(t, err)
	defer fwd.Close()

	fwd.Seek([]byte("c"))
	require.True(t, fwd.Valid())
	assert.Equal(t, []byte("d"), fwd.Key())
	value, err := fwd.Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("value-d"), value)
	require.True(t, fwd.Next())
	assert.Equal(t, []byte("e"), fwd.Key())

	rev, err := store.NewIterator(backend.Reverse)
	require.NoError(t, err)
	defer rev.Close()

	// Seek lands on the first key >= target in both directions.
	rev.Seek([]byte("c"))
	require.True(t, rev.Valid())
	assert.Equal(t, []byte("d"), rev.Key())
	require.True(t, rev.Next())
	assert.Equal(t, []byte("b"), rev.Key())
	require.True(t, rev.Next())
	assert.Equal(t, []byte("a"), rev.Key())
	assert.False(t, rev.Next())

	rev2, err := store.NewIterator(backend.Reverse)
	require.NoError(t, err)
	defer rev2.Close()

	rev2.Seek([]byte("b"))
	require.True(t, rev2.Valid())
	assert.Equal(t, []byte("b"), rev2.Key())
}

func testSeekPastEnd(t *testing.T, store backend.Store) {
	putAll(t, store, "a", "b")

	for _, dir := range []backend.Direction{backend.Forward, backend.Reverse} {
		t.Run(dir.String(), func(t *testing.T) {
			it, err := store.NewIterator(dir)
			require.NoError(t, err)
			defer it.Close()

			it.Seek([]byte("z"))
			assert.False(t, it.Valid())
			assert.False(t, it.Next())
		})
	}
}

func testEmptyStore(t *testing.T, store backend.Store) {
	for _, dir := range []backend.Direction{backend.Forward, backend.Reverse} {
		it, err := store.NewIterator(dir)
		require.NoError(t, err)
		assert.False(t, it.Next())
		assert.False(t, it.Valid())
		require.NoError(t, it.Close())
	}
}

func testIteratorSnapshot(t *testing.T, store backend.Store) {
	putAll(t, store, "a", "b")

	it, err := store.NewIterator(backend.Forward)
	require.NoError(t, err)

	putAll(t, store, "c")
	require.NoError(t, store.Delete([]byte("a")))

	assert.Equal(t, []string{"a", "b"}, drain(t, it))
	require.NoError(t, it.Close())
}

func testCopies(t *testing.T, store backend.Store) {
	key := []byte("k")
	value := []byte("v")
	require.NoError(t, store.Put(key, value))
	key[0], value[0] = 'x', 'x'

	got, err := store.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	got[0] = 'y'
	again, err := store.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), again)
}
