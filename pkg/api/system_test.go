package api

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencanarias/taple-client-sub000/pkg/backend"
	"github.com/opencanarias/taple-client-sub000/pkg/backend/memory"
	"github.com/opencanarias/taple-client-sub000/pkg/codec"
	"github.com/opencanarias/taple-client-sub000/pkg/store"
)

func openTestStore(t *testing.T, cfg backend.Config) *store.Store {
	t.Helper()

	st, err := store.Open(store.Config{Backend: cfg})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func memoryStore(t *testing.T) *store.Store {
	return openTestStore(t, backend.Config{Driver: "memory"})
}

var errIteratorUnavailable = errors.New("iterator unavailable")

// scanFailingStore is an in-memory store whose iterators cannot be opened
type scanFailingStore struct {
	backend.Store
}

func (scanFailingStore) NewIterator(backend.Direction) (backend.Iterator, error) {
	return nil, errIteratorUnavailable
}

func init() {
	backend.Register("scan-failing", backend.DriverFunc(func(cfg backend.Config) (backend.Store, error) {
		return scanFailingStore{Store: memory.New()}, nil
	}))
}

func TestSystemService_ScanErrors(t *testing.T) {
	st := openTestStore(t, backend.Config{Driver: "scan-failing"})

	service, err := NewSystemService(st, SystemConfig{})
	require.NoError(t, err)
	defer service.Close()

	require.NoError(t, service.StoreAPIKey(APIKey{ID: "k1", Key: "secret", IsActive: true}))

	ids, err := service.ListAPIKeys()
	assert.ErrorIs(t, err, errIteratorUnavailable)
	assert.Nil(t, ids)

	valid, err := service.ValidateAPIKey("secret")
	assert.ErrorIs(t, err, errIteratorUnavailable)
	assert.False(t, valid)
}

func TestSystemService(t *testing.T) {
	t.Run("Open and Close", func(t *testing.T) {
		st := memoryStore(t)
		refs := st.Handle().Refs()

		service, err := NewSystemService(st, SystemConfig{})
		require.NoError(t, err)
		assert.True(t, service.IsOpen())
		assert.Equal(t, refs+2, st.Handle().Refs())

		require.NoError(t, service.Close())
		assert.False(t, service.IsOpen())
		assert.Equal(t, refs, st.Handle().Refs())

		// Closing twice is a no-op
		assert.NoError(t, service.Close())

		_, err = service.GetAPIKey("anything")
		assert.ErrorIs(t, err, ErrSystemClosed)
		assert.ErrorIs(t, service.StoreAPIKey(APIKey{ID: "x"}), ErrSystemClosed)
	})

	t.Run("API Key Management", func(t *testing.T) {
		service, err := NewSystemService(memoryStore(t), SystemConfig{EncryptionKey: "system-secret"})
		require.NoError(t, err)
		defer service.Close()

		apiKey := APIKey{
			ID:          "test-key-1",
			Key:         "secret123",
			Description: "Test API key",
			CreatedAt:   time.Now().UTC(),
			IsActive:    true,
		}
		require.NoError(t, service.StoreAPIKey(apiKey))

		retrieved, err := service.GetAPIKey("test-key-1")
		require.NoError(t, err)
		assert.Equal(t, "test-key-1", retrieved.ID)
		assert.Equal(t, "secret123", retrieved.Key)
		assert.Equal(t, "Test API key", retrieved.Description)
		assert.True(t, retrieved.IsActive)

		valid, err := service.ValidateAPIKey("secret123")
		require.NoError(t, err)
		assert.True(t, valid)

		valid, err = service.ValidateAPIKey("wrong-key")
		require.NoError(t, err)
		assert.False(t, valid)

		ids, err := service.ListAPIKeys()
		require.NoError(t, err)
		assert.Equal(t, []string{"test-key-1"}, ids)

		require.NoError(t, service.DeleteAPIKey("test-key-1"))
		// Deleting an absent key succeeds
		require.NoError(t, service.DeleteAPIKey("test-key-1"))

		_, err = service.GetAPIKey("test-key-1")
		assert.ErrorIs(t, err, ErrAPIKeyNotFound)

		valid, err = service.ValidateAPIKey("secret123")
		require.NoError(t, err)
		assert.False(t, valid)
	})

	t.Run("Create API Key", func(t *testing.T) {
		service, err := NewSystemService(memoryStore(t), SystemConfig{})
		require.NoError(t, err)
		defer service.Close()

		generated, err := service.CreateAPIKey(CreateAPIKeyRequest{Description: "generated", TTLSeconds: 60})
		require.NoError(t, err)
		assert.NotEmpty(t, generated.ID)
		assert.Len(t, generated.Key, 64)
		require.NotNil(t, generated.ExpiresAt)
		assert.WithinDuration(t, generated.CreatedAt.Add(time.Minute), *generated.ExpiresAt, time.Second)

		named, err := service.CreateAPIKey(CreateAPIKeyRequest{ID: "named", Key: "named-secret"})
		require.NoError(t, err)
		assert.Nil(t, named.ExpiresAt)

		ids, err := service.ListAPIKeys()
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{generated.ID, "named"}, ids)

		valid, err := service.ValidateAPIKey(generated.Key)
		require.NoError(t, err)
		assert.True(t, valid)
	})

	t.Run("System Config Management", func(t *testing.T) {
		service, err := NewSystemService(memoryStore(t), SystemConfig{})
		require.NoError(t, err)
		defer service.Close()

		in := map[string]interface{}{"max_connections": float64(100), "timeout": "30s"}
		require.NoError(t, service.StoreSystemConfig("server", in))

		var out map[string]interface{}
		require.NoError(t, service.GetSystemConfig("server", &out))
		assert.Equal(t, in, out)

		var missing interface{}
		assert.Error(t, service.GetSystemConfig("missing", &missing))
	})

	t.Run("Initialize System", func(t *testing.T) {
		service, err := NewSystemService(memoryStore(t), SystemConfig{EncryptionKey: "system-secret"})
		require.NoError(t, err)
		defer service.Close()

		require.NoError(t, service.InitializeSystem("root-secret"))

		root, err := service.GetAPIKey(RootAPIKeyID)
		require.NoError(t, err)
		assert.Equal(t, "root-secret", root.Key)
		assert.True(t, root.IsActive)

		var info map[string]interface{}
		require.NoError(t, service.GetSystemConfig("system-info", &info))
		assert.Equal(t, true, info["encryption_enabled"])
	})
}

func TestSystemService_SealedAtRest(t *testing.T) {
	st := memoryStore(t)

	service, err := NewSystemService(st, SystemConfig{EncryptionKey: "system-secret"})
	require.NoError(t, err)
	require.NoError(t, service.StoreAPIKey(APIKey{ID: "k", Key: "plain-secret-value", IsActive: true}))
	require.NoError(t, service.Close())

	it, err := st.Handle().Store().NewIterator(backend.Forward)
	require.NoError(t, err)
	for it.Next() {
		value, err := it.Value()
		require.NoError(t, err)
		assert.False(t, bytes.Contains(value, []byte("plain-secret-value")), "secret stored in the clear")
	}
	require.NoError(t, it.Err())
	require.NoError(t, it.Close())

	wrongKey, err := NewSystemService(st, SystemConfig{EncryptionKey: "other-secret"})
	require.NoError(t, err)
	defer wrongKey.Close()

	_, err = wrongKey.GetAPIKey("k")
	assert.ErrorIs(t, err, codec.ErrDeserialize)
}

func TestSystemService_Persistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "system.db")
	cfg := backend.Config{Driver: "bbolt", Path: path}

	st, err := store.Open(store.Config{Backend: cfg})
	require.NoError(t, err)
	service, err := NewSystemService(st, SystemConfig{EncryptionKey: "system-secret"})
	require.NoError(t, err)
	require.NoError(t, service.InitializeSystem("root-secret"))
	require.NoError(t, service.Close())
	require.NoError(t, st.Close())

	st = openTestStore(t, cfg)
	service, err = NewSystemService(st, SystemConfig{EncryptionKey: "system-secret"})
	require.NoError(t, err)
	defer service.Close()

	valid, err := service.ValidateAPIKey("root-secret")
	require.NoError(t, err)
	assert.True(t, valid)

	result, err := st.Explain(context.Background(), store.ExplainOptions{WithSamples: 10})
	require.NoError(t, err)
	require.Contains(t, result.Collections, store.SystemCollection)
	assert.ElementsMatch(t, []string{apiKeysPartition, settingsPartition}, result.Collections[store.SystemCollection].Partitions)
	assert.Empty(t, result.Samples, "system entries are never sampled")
}
