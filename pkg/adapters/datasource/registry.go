package datasource

import (
	"context"
	"sort"
	"sync"

	"github.com/ekaya-inc/ekaya-dataagents/pkg/models"
)

// AdapterInfo describes a registered adapter for API discovery.
type AdapterInfo struct {
	Engine      models.Engine       `json:"engine"`       // "postgres", "bigquery"
	DisplayName string              `json:"display_name"` // "PostgreSQL", "Google BigQuery"
	Description string              `json:"description"`
	Family      models.EngineFamily `json:"family"`
	// SecretFields lists the bundle keys the adapter reads.
	SecretFields []string `json:"secret_fields"`
}

// AdapterFunc opens a connected adapter. It must close anything it opened when
// it returns an error.
type AdapterFunc func(ctx context.Context, profile models.ConnectionProfile, secrets models.SecretBundle, opts Options) (ConnectionAdapter, error)

// AdapterRegistration contains info + factory for one engine.
type AdapterRegistration struct {
	Info    AdapterInfo
	Factory AdapterFunc
}

var (
	registryMu sync.RWMutex
	registry   = make(map[models.Engine]AdapterRegistration)
)

// Register is called by each adapter's init() function.
// Thread-safe for concurrent init() calls.
func Register(reg AdapterRegistration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if reg.Info.Family == "" {
		reg.Info.Family = reg.Info.Engine.Family()
	}
	registry[reg.Info.Engine] = reg
}

// RegisteredAdapters returns info for all registered adapters, sorted by engine.
func RegisteredAdapters() []AdapterInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]AdapterInfo, 0, len(registry))
	for _, reg := range registry {
		result = append(result, reg.Info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Engine < result[j].Engine })
	return result
}

// Lookup returns the factory for an engine, or nil if the engine is not compiled in.
func Lookup(engine models.Engine) AdapterFunc {
	registryMu.RLock()
	defer registryMu.RUnlock()

	if reg, ok := registry[engine]; ok {
		return reg.Factory
	}
	return nil
}

// IsRegistered checks if an adapter is available for engine.
func IsRegistered(engine models.Engine) bool {
	return Lookup(engine) != nil
}
