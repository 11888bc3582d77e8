package emulator

import (
	"fmt"
	"ioctest/applog"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Registry maps an emulator id, or a multi-device test name, to the launcher
// serving it. Entries live strictly between a launcher's Open and Close.
type Registry struct {
	mu      sync.Mutex
	runID   string
	entries map[string]Resource
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

func NewRegistry() *Registry {
	return &Registry{
		runID:   uuid.NewString(),
		entries: make(map[string]Resource),
	}
}

// DefaultRegistry is the process wide registry for callers that have no
// registry of their own.
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// RunID identifies this registry in logs.
func (r *Registry) RunID() string {
	return r.runID
}

func (r *Registry) Get(key string) (Resource, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[key]
	return entry, ok
}

// Launcher returns the single-device launcher registered under key.
func (r *Registry) Launcher(key string) (Launcher, bool) {
	entry, ok := r.Get(key)
	if !ok {
		return nil, false
	}
	l, ok := entry.(Launcher)
	return l, ok
}

// Multi returns the multi-device launcher registered under key.
func (r *Registry) Multi(key string) (*MultiLewisLauncher, bool) {
	entry, ok := r.Get(key)
	if !ok {
		return nil, false
	}
	m, ok := entry.(*MultiLewisLauncher)
	return m, ok
}

// Add registers entry under key. An existing entry is never overwritten: the
// call fails with ErrAlreadyRegistered and the original stays in place.
func (r *Registry) Add(key string, entry Resource) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[key]; exists {
		applog.Warn("Rejected duplicate emulator registration",
			zap.String("emulatorId", key),
			zap.String("runId", r.runID),
		)
		return fmt.Errorf("%w: '%s'", ErrAlreadyRegistered, key)
	}
	r.entries[key] = entry
	applog.Debug("Registered emulator", zap.String("emulatorId", key), zap.String("runId", r.runID))
	return nil
}

// Remove drops key. Removing an absent key does nothing.
func (r *Registry) Remove(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[key]; !exists {
		return
	}
	delete(r.entries, key)
	applog.Debug("Deregistered emulator", zap.String("emulatorId", key), zap.String("runId", r.runID))
}

func (r *Registry) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Sorted(maps.Keys(r.entries))
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
