package di

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/opencanarias/taple-client-sub000/pkg/api"
	"github.com/opencanarias/taple-client-sub000/pkg/backend"
	"github.com/opencanarias/taple-client-sub000/pkg/store"
)

type stubStarter struct{ called bool }

func (s *stubStarter) StartServer(ctx context.Context, st *store.Store, config api.ServerConfig, logger *zap.Logger) error {
	s.called = true
	return nil
}

type stubServerFactory struct{ starter *stubStarter }

func (f stubServerFactory) CreateServerStarter() api.ServerStarter { return f.starter }

func TestContainer_Defaults(t *testing.T) {
	c := NewContainer()

	st, err := c.GetStoreOpener()(store.Config{Backend: backend.Config{Driver: "memory"}})
	require.NoError(t, err)
	defer st.Close()

	system, err := c.GetSystemServiceFactory().CreateSystemService(st, "secret")
	require.NoError(t, err)
	require.NoError(t, system.InitializeSystem("root"))

	key, err := system.GetAPIKey(api.RootAPIKeyID)
	require.NoError(t, err)
	assert.Equal(t, "root", key.Key)
	require.NoError(t, system.Close())

	assert.NotNil(t, c.GetServerFactory().CreateServerStarter())
}

func TestContainer_Overrides(t *testing.T) {
	c := NewContainer()

	opened := false
	c.SetStoreOpener(func(cfg store.Config) (*store.Store, error) {
		opened = true
		return store.Open(store.Config{Backend: backend.Config{Driver: "memory"}})
	})
	starter := &stubStarter{}
	c.SetServerFactory(stubServerFactory{starter: starter})

	st, err := c.GetStoreOpener()(store.Config{})
	require.NoError(t, err)
	defer st.Close()
	assert.True(t, opened)

	require.NoError(t, c.GetServerFactory().CreateServerStarter().StartServer(context.Background(), st, api.ServerConfig{}, zap.NewNop()))
	assert.True(t, starter.called)
}
