// Package di provides dependency injection container
package di

import (
	"github.com/opencanarias/taple-client-sub000/pkg/api"
	"github.com/opencanarias/taple-client-sub000/pkg/store"
)

// StoreOpener opens a store from its options
type StoreOpener func(cfg store.Config) (*store.Store, error)

// Container holds all the dependencies for the application
type Container struct {
	storeOpener          StoreOpener
	systemServiceFactory api.SystemServiceFactory
	serverFactory        api.ServerFactory
}

// NewContainer creates a new dependency injection container
func NewContainer() *Container {
	return &Container{
		storeOpener:          store.Open,
		systemServiceFactory: api.NewSystemServiceFactory(),
		serverFactory:        api.NewServerFactory(),
	}
}

// GetStoreOpener returns the function used to open stores
func (c *Container) GetStoreOpener() StoreOpener {
	return c.storeOpener
}

// GetSystemServiceFactory returns the system service factory
func (c *Container) GetSystemServiceFactory() api.SystemServiceFactory {
	return c.systemServiceFactory
}

// GetServerFactory returns the server factory
func (c *Container) GetServerFactory() api.ServerFactory {
	return c.serverFactory
}

// SetStoreOpener allows overriding how stores are opened (for testing)
func (c *Container) SetStoreOpener(opener StoreOpener) {
	c.storeOpener = opener
}

// SetSystemServiceFactory allows overriding the system service factory (for testing)
func (c *Container) SetSystemServiceFactory(factory api.SystemServiceFactory) {
	c.systemServiceFactory = factory
}

// SetServerFactory allows overriding the server factory (for testing)
func (c *Container) SetServerFactory(factory api.ServerFactory) {
	c.serverFactory = factory
}
