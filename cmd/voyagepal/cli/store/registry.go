package store

import (
	"fmt"
	"sort"
	"sync"
)

// Backend names accepted by the state_backend setting.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Factory opens a backend rooted at the CLI home directory.
type Factory func(home string) (Backend, error)

// Register adds a backend factory to the registry.
// This is typically called from init() functions in backend implementations.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Open opens the backend registered under name.
// Returns an error if the backend is not registered.
func Open(name, home string) (Backend, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown state backend: %s (available: %v)", name, List())
	}
	return factory(home)
}

// List returns all registered backend names in sorted order.
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
