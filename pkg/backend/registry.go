package backend

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Config holds the options shared by all drivers. Drivers ignore options
// that do not apply to them.
type Config struct {
	Driver string
	// Path is the data directory (pebble) or file (bbolt). An empty path
	// selects an in-memory store where the driver supports it.
	Path string
	// Sync makes every write durable before it returns.
	Sync bool
	// CacheSize is the block cache size in bytes (pebble).
	CacheSize int64
	// MemTableSize is the memtable size in bytes (pebble).
	MemTableSize uint64
	Logger       *zap.Logger
}

// Driver opens stores of one kind.
type Driver interface {
	Open(cfg Config) (Store, error)
}

// DriverFunc adapts a function to the Driver interface.
type DriverFunc func(cfg Config) (Store, error)

func (f DriverFunc) Open(cfg Config) (Store, error) {
	return f(cfg)
}

var (
	driversMu sync.RWMutex
	drivers   = map[string]Driver{}
)

// Register makes a driver available to Open. It panics on duplicate names.
func Register(name string, driver Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()

	if driver == nil {
		panic("backend: Register driver is nil")
	}
	if _, dup := drivers[name]; dup {
		panic("backend: Register called twice for driver " + name)
	}
	drivers[name] = driver
}

// Drivers returns the sorted names of the registered drivers.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()

	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open opens a store with the configured driver and returns a handle holding
// one reference.
func Open(cfg Config) (*Handle, error) {
	driversMu.RLock()
	driver, ok := drivers[cfg.Driver]
	driversMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w %q (registered: %v)", ErrUnknownDriver, cfg.Driver, Drivers())
	}

	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	store, err := driver.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Driver, err)
	}

	cfg.Logger.Info("opened backend store",
		zap.String("driver", cfg.Driver),
		zap.String("path", cfg.Path),
		zap.Bool("sync", cfg.Sync))

	return NewHandle(store, cfg.Driver), nil
}
