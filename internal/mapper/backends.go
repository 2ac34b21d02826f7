package mapper

import (
	"fmt"
	"sort"
	"sync"

	"github.com/cryguy/mapengine/internal/core"
	"github.com/cryguy/mapengine/internal/gojaengine"
	"github.com/cryguy/mapengine/internal/quickjs"
)

var (
	backendsMu sync.RWMutex
	backends   = map[string]core.RuntimeFactory{
		"quickjs": quickjs.New,
		"goja":    gojaengine.New,
	}
)

// RegisterBackend makes a runtime factory available under name. Build
// tagged backends register themselves from init.
func RegisterBackend(name string, factory core.RuntimeFactory) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends[name] = factory
}

// Backend returns the runtime factory registered under name.
func Backend(name string) (core.RuntimeFactory, error) {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	f, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown backend %q (available: %v)", core.ErrEngineInit, name, backendNamesLocked())
	}
	return f, nil
}

// Backends lists the registered backend names in sorted order.
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	return backendNamesLocked()
}

func backendNamesLocked() []string {
	names := make([]string, 0, len(backends))
	for n := range backends {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
