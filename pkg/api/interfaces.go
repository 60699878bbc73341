// Package api provides interfaces for dependency injection
package api

import (
	"context"

	"go.uber.org/zap"

	"github.com/opencanarias/taple-client-sub000/pkg/store"
)

// SystemInitializer defines the interface for system initialization operations
type SystemInitializer interface {
	// InitializeSystem records the root system API key
	InitializeSystem(systemAPIKey string) error

	// GetAPIKey retrieves an API key
	GetAPIKey(keyID string) (*APIKey, error)

	// Close releases the system collections
	Close() error
}

// SystemServiceFactory creates system services
type SystemServiceFactory interface {
	// CreateSystemService creates a system service over the given store
	CreateSystemService(s *store.Store, encryptionKey string) (SystemInitializer, error)
}

// ServerStarter defines the interface for starting the API server
type ServerStarter interface {
	// StartServer serves the API until ctx is cancelled
	StartServer(ctx context.Context, s *store.Store, config ServerConfig, logger *zap.Logger) error
}

// ServerFactory creates server instances
type ServerFactory interface {
	// CreateServerStarter creates a server starter
	CreateServerStarter() ServerStarter
}
