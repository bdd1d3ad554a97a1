package plugins

import (
	"fmt"
	"sort"
	"sync"
)

const duplicateRegistrationPanicTemplateConstant = "plot module %q already registered"

// Catalog holds the explicitly registered module implementations the loader
// resolves discovered manifests against. Registration replaces runtime code
// loading: adding a module means registering its capabilities under the name
// its manifest declares, with no changes to the engine.
type Catalog struct {
	mutex        sync.RWMutex
	capabilities map[string]Capabilities
}

// NewCatalog constructs an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{capabilities: map[string]Capabilities{}}
}

// Register records the capabilities for a module name. Registering the same
// name twice is a programming error and panics.
func (catalog *Catalog) Register(moduleName string, capabilities Capabilities) {
	catalog.mutex.Lock()
	defer catalog.mutex.Unlock()
	if _, exists := catalog.capabilities[moduleName]; exists {
		panic(fmt.Sprintf(duplicateRegistrationPanicTemplateConstant, moduleName))
	}
	catalog.capabilities[moduleName] = capabilities
}

// Lookup resolves the capabilities registered under the module name.
func (catalog *Catalog) Lookup(moduleName string) (Capabilities, bool) {
	catalog.mutex.RLock()
	defer catalog.mutex.RUnlock()
	capabilities, exists := catalog.capabilities[moduleName]
	return capabilities, exists
}

// RegisteredNames lists every registered module name in sorted order.
func (catalog *Catalog) RegisteredNames() []string {
	catalog.mutex.RLock()
	defer catalog.mutex.RUnlock()
	names := make([]string, 0, len(catalog.capabilities))
	for moduleName := range catalog.capabilities {
		names = append(names, moduleName)
	}
	sort.Strings(names)
	return names
}

var defaultCatalog = NewCatalog()

// DefaultCatalog returns the process-wide catalog used by module packages
// that register themselves from init functions.
func DefaultCatalog() *Catalog {
	return defaultCatalog
}

// RegisterBuiltin registers capabilities in the process-wide catalog.
func RegisterBuiltin(moduleName string, capabilities Capabilities) {
	defaultCatalog.Register(moduleName, capabilities)
}
