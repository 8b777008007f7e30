package registry

import (
	"sort"
	"sync"

	"github.com/solar-surv/coldwatch/internal/domain/telemetry"
)

// Registry is the authoritative in-memory map of device id to latest state.
// All methods are safe for concurrent use. States are stored and returned by
// value so no internal references escape.
type Registry struct {
	// mu protects devices. Upsert holds the write lock across its
	// read-modify-write, so updates to a single device never interleave.
	mu      sync.RWMutex
	devices map[int64]telemetry.DeviceState
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		devices: make(map[int64]telemetry.DeviceState),
	}
}

// Get returns the latest state for the device, if any. An unknown id is not
// an error; devices self-register on their first reading.
func (r *Registry) Get(deviceID int64) (telemetry.DeviceState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, ok := r.devices[deviceID]

	return state, ok
}

// Upsert stores the state under its device id and returns the previous state
// if the device was already known.
func (r *Registry) Upsert(state telemetry.DeviceState) (telemetry.DeviceState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous, existed := r.devices[state.DeviceID]
	r.devices[state.DeviceID] = state

	return previous, existed
}

// Snapshot returns all known device states ordered by ascending device id,
// for deterministic broadcast and testing.
func (r *Registry) Snapshot() []telemetry.DeviceState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	states := make([]telemetry.DeviceState, 0, len(r.devices))
	for _, state := range r.devices {
		states = append(states, state)
	}

	sort.Slice(states, func(i, j int) bool {
		return states[i].DeviceID < states[j].DeviceID
	})

	return states
}

// Len returns the number of known devices.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.devices)
}
