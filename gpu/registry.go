package gpu

import (
	"errors"
	"sync"
)

// Well-known backend names.
const (
	// BackendSoftware is the CPU implementation in gpu/softgpu.
	BackendSoftware = "softgpu"

	// BackendWGPU is the hardware implementation in gpu/wgpu.
	BackendWGPU = "wgpu"
)

// ErrBackendNotAvailable is returned when no requested backend can be opened.
var ErrBackendNotAvailable = errors.New("gpu: backend not available")

// Factory opens a new device instance.
type Factory func() (Device, error)

var (
	registryMu sync.RWMutex
	backends   = make(map[string]Factory)
	// Priority order for device selection (first that opens wins).
	backendPriority = []string{BackendWGPU, BackendSoftware}
)

// Register registers a device factory with the given name.
// This is typically called from init() functions in backend packages.
// If a backend with the same name is already registered, it is replaced.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	backends[name] = factory
}

// Unregister removes a backend from the registry.
// This is useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(backends, name)
}

// Available returns a list of registered backend names.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	return names
}

// Open opens a device by backend name.
func Open(name string) (Device, error) {
	registryMu.RLock()
	factory, ok := backends[name]
	registryMu.RUnlock()
	if !ok {
		return nil, ErrBackendNotAvailable
	}
	return factory()
}

// Default opens the best available device: hardware first, software
// fallback. Returns ErrBackendNotAvailable if nothing is registered or no
// registered backend opens successfully.
func Default() (Device, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	for _, name := range backendPriority {
		if factory, ok := backends[name]; ok {
			if d, err := factory(); err == nil {
				return d, nil
			}
		}
	}

	// Fallback: first registered backend that opens.
	for _, factory := range backends {
		if d, err := factory(); err == nil {
			return d, nil
		}
	}

	return nil, ErrBackendNotAvailable
}
