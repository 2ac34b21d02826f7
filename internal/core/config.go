package core

const (
	// MaxWorkers bounds the number of workers in one pool.
	MaxWorkers = 64

	// DefaultResultCapacity is the number of tokens (and slots) a single
	// invocation may produce.
	DefaultResultCapacity = 20

	// DefaultBackend is used when EngineConfig.Backend is empty.
	DefaultBackend = "quickjs"
)

// EngineConfig holds runtime configuration for the map engine.
type EngineConfig struct {
	Workers        int    // number of script workers, 1..MaxWorkers
	Backend        string // "quickjs", "goja" or "v8" (v8 requires -tags v8)
	ResultCapacity int    // token/slot bound per invocation; 0 means DefaultResultCapacity
}

// Capacity returns the effective result capacity.
func (c EngineConfig) Capacity() int {
	if c.ResultCapacity <= 0 {
		return DefaultResultCapacity
	}
	return c.ResultCapacity
}

// BackendName returns the effective backend name.
func (c EngineConfig) BackendName() string {
	if c.Backend == "" {
		return DefaultBackend
	}
	return c.Backend
}
