package mailcapture

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/infodancer/mailcapture/errors"
)

// StoreFactory creates a CaptureStore from configuration.
type StoreFactory func(config StoreConfig) (CaptureStore, error)

// StoreConfig contains settings for opening a store.
type StoreConfig struct {
	// Type is the store type name (e.g., "file", "maildir").
	Type string

	// BasePath is the directory captures are written to.
	BasePath string

	// Options contains implementation-specific settings.
	Options map[string]string

	// Builder builds messages passed to Send. Defaults to NewBuilder().
	Builder Builder

	// Logger receives store diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// CatalogOptions translates the shared settings into Catalog options.
func (c StoreConfig) CatalogOptions() []Option {
	return []Option{WithBuilder(c.Builder), WithLogger(c.Logger)}
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]StoreFactory)
)

// Register adds a store factory to the registry.
// It panics if called with an empty name or nil factory,
// or if the name is already registered.
func Register(name string, factory StoreFactory) {
	if name == "" {
		panic("mailcapture: Register called with empty name")
	}
	if factory == nil {
		panic("mailcapture: Register called with nil factory")
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[name]; exists {
		panic("mailcapture: Register called twice for " + name)
	}
	registry[name] = factory
}

// Open creates a CaptureStore using the registered factory for the config type.
func Open(config StoreConfig) (CaptureStore, error) {
	registryMu.RLock()
	factory, ok := registry[config.Type]
	registryMu.RUnlock()

	if !ok {
		return nil, errors.ErrStoreNotRegistered
	}
	return factory(config)
}

// RegisteredTypes returns a sorted list of registered store type names.
func RegisteredTypes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	types := make([]string, 0, len(registry))
	for name := range registry {
		types = append(types, name)
	}
	sort.Strings(types)
	return types
}
