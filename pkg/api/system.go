package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	"github.com/opencanarias/taple-client-sub000/pkg/codec"
	"github.com/opencanarias/taple-client-sub000/pkg/collection"
	"github.com/opencanarias/taple-client-sub000/pkg/config"
	"github.com/opencanarias/taple-client-sub000/pkg/store"
)

const (
	apiKeysPartition  = "api_keys"
	settingsPartition = "config"

	// RootAPIKeyID is the ID under which the system API key is recorded.
	RootAPIKeyID = "system-root"
)

var (
	// ErrAPIKeyNotFound is returned for unknown API key IDs
	ErrAPIKeyNotFound = errors.New("api key not found")
	// ErrSystemClosed is returned after Close
	ErrSystemClosed = errors.New("system service is not open")
)

// SystemService manages system-level data kept in partitions of the reserved
// system collection.
type SystemService struct {
	apiKeys  *collection.Collection[APIKey]
	settings *collection.Collection[json.RawMessage]
	config   SystemConfig
	logger   *zap.Logger

	mu     sync.RWMutex
	isOpen bool
}

// SystemConfig holds configuration for the system service
type SystemConfig struct {
	// EncryptionKey seals system values. Empty disables encryption.
	EncryptionKey string
	Logger        *zap.Logger
}

// APIKey represents an API key stored in the system
type APIKey struct {
	ID          string     `json:"id"`
	Key         string     `json:"key"`
	Description string     `json:"description,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	IsActive    bool       `json:"is_active"`
}

// Expired reports whether the key is past its expiry at now.
func (k *APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && now.After(*k.ExpiresAt)
}

// systemCodec returns checksummed JSON, sealed when a key is configured.
func systemCodec[V any](encryptionKey string) (codec.Codec[V], error) {
	framed := codec.NewFramed[V](codec.JSON[V]{}, codec.FormatJSON)
	if encryptionKey == "" {
		return framed, nil
	}

	key, err := codec.KeyFromSecret(encryptionKey)
	if err != nil {
		return nil, err
	}
	return codec.NewSealed[V](framed, key)
}

// NewSystemService opens the system partitions of s.
func NewSystemService(s *store.Store, cfg SystemConfig) (*SystemService, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	keyCodec, err := systemCodec[APIKey](cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create system codec: %w", err)
	}
	settingsCodec, err := systemCodec[json.RawMessage](cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create system codec: %w", err)
	}

	apiKeys, err := store.Collection(s, store.SystemCollection+"/"+apiKeysPartition, keyCodec)
	if err != nil {
		return nil, fmt.Errorf("failed to open api key collection: %w", err)
	}
	settings, err := store.Collection(s, store.SystemCollection+"/"+settingsPartition, settingsCodec)
	if err != nil {
		apiKeys.Close()
		return nil, fmt.Errorf("failed to open system config collection: %w", err)
	}

	return &SystemService{
		apiKeys:  apiKeys,
		settings: settings,
		config:   cfg,
		logger:   logger.Named("system"),
		isOpen:   true,
	}, nil
}

// Close releases the system collections
func (s *SystemService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isOpen {
		return nil
	}
	s.isOpen = false

	return errors.Join(s.apiKeys.Close(), s.settings.Close())
}

// IsOpen returns whether the system service is open
func (s *SystemService) IsOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isOpen
}

func (s *SystemService) checkOpen() error {
	if !s.isOpen {
		return ErrSystemClosed
	}
	return nil
}

// StoreAPIKey stores an API key in the system collection
func (s *SystemService) StoreAPIKey(apiKey APIKey) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	if err := s.apiKeys.Put(apiKey.ID, apiKey); err != nil {
		return fmt.Errorf("failed to store API key: %w", err)
	}
	s.logger.Info("stored api key", zap.String("id", apiKey.ID), zap.Bool("active", apiKey.IsActive))
	return nil
}

// CreateAPIKey stores a new API key, generating its ID and secret if absent.
func (s *SystemService) CreateAPIKey(req CreateAPIKeyRequest) (*APIKey, error) {
	apiKey := APIKey{
		ID:          req.ID,
		Key:         req.Key,
		Description: req.Description,
		CreatedAt:   time.Now().UTC(),
		IsActive:    true,
	}
	if apiKey.ID == "" {
		apiKey.ID = ksuid.New().String()
	}
	if apiKey.Key == "" {
		secret, err := config.GenerateSecureKey(32)
		if err != nil {
			return nil, err
		}
		apiKey.Key = secret
	}
	if req.TTLSeconds > 0 {
		expires := apiKey.CreatedAt.Add(time.Duration(req.TTLSeconds) * time.Second)
		apiKey.ExpiresAt = &expires
	}

	if err := s.StoreAPIKey(apiKey); err != nil {
		return nil, err
	}
	return &apiKey, nil
}

// GetAPIKey retrieves an API key from the system collection
func (s *SystemService) GetAPIKey(keyID string) (*APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	apiKey, err := s.apiKeys.Get(keyID)
	if errors.Is(err, collection.ErrEntryNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrAPIKeyNotFound, keyID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get API key: %w", err)
	}
	return &apiKey, nil
}

// ValidateAPIKey reports whether an active, unexpired key with this secret
// exists.
func (s *SystemService) ValidateAPIKey(apiKeyValue string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return false, err
	}

	now := time.Now()
	scanner := s.apiKeys.Iter()
	defer scanner.Close()

	for scanner.Next() {
		apiKey := scanner.Value()
		if subtle.ConstantTimeCompare([]byte(apiKey.Key), []byte(apiKeyValue)) == 1 {
			return apiKey.IsActive && !apiKey.Expired(now), nil
		}
	}
	return false, scanner.Err()
}

// ListAPIKeys returns the IDs of all API keys in ascending order
func (s *SystemService) ListAPIKeys() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	entries, err := collection.Collect(s.apiKeys.Iter(), 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list API keys: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.Key)
	}
	return ids, nil
}

// DeleteAPIKey removes an API key from the system collection
func (s *SystemService) DeleteAPIKey(keyID string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	if err := s.apiKeys.Delete(keyID); err != nil {
		return fmt.Errorf("failed to delete API key: %w", err)
	}
	s.logger.Info("deleted api key", zap.String("id", keyID))
	return nil
}

// StoreSystemConfig stores system configuration data
func (s *SystemService) StoreSystemConfig(key string, value interface{}) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal config value: %w", err)
	}
	if err := s.settings.Put(key, data); err != nil {
		return fmt.Errorf("failed to store config value: %w", err)
	}
	return nil
}

// GetSystemConfig retrieves system configuration data into value
func (s *SystemService) GetSystemConfig(key string, value interface{}) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	data, err := s.settings.Get(key)
	if err != nil {
		return fmt.Errorf("failed to get config value: %w", err)
	}
	if err := json.Unmarshal(data, value); err != nil {
		return fmt.Errorf("failed to unmarshal config value: %w", err)
	}
	return nil
}

// InitializeSystem records the root system API key and the system info
func (s *SystemService) InitializeSystem(systemAPIKey string) error {
	apiKey := APIKey{
		ID:          RootAPIKeyID,
		Key:         systemAPIKey,
		Description: "System root API key for administrative operations",
		CreatedAt:   time.Now().UTC(),
		IsActive:    true,
	}
	if err := s.StoreAPIKey(apiKey); err != nil {
		return fmt.Errorf("failed to store system API key: %w", err)
	}

	info := map[string]interface{}{
		"initialized_at":     time.Now().UTC().Format(time.RFC3339),
		"version":            "1.0.0",
		"encryption_enabled": s.config.EncryptionKey != "",
	}
	if err := s.StoreSystemConfig("system-info", info); err != nil {
		return fmt.Errorf("failed to store system configuration: %w", err)
	}

	return nil
}
